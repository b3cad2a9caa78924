package cmd

import "errors"

var (
	ErrSignaling = errors.New("signaling error")
	ErrNoPeer    = errors.New("peer never joined")
)
