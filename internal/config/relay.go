package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// Room identifier styles.
const (
	RoomIDsUUID  = "uuid"
	RoomIDsWords = "words"
)

// Relay holds configuration for the signaling relay.
type Relay struct {
	// Listen is the HTTP listen address.
	Listen string

	// RoomIDs selects the room identifier generator.
	RoomIDs string

	// AllowedOrigins restricts websocket upgrades. Empty allows every origin.
	AllowedOrigins []string

	// MaxMessageBytes bounds a single inbound websocket message.
	MaxMessageBytes int64

	// MessagesPerSecond bounds inbound messages per connection. Zero disables the limit.
	MessagesPerSecond int

	// SendQueue is the per-connection outbound buffer.
	SendQueue int
}

// LoadRelay reads relay configuration. Flags are looked up by name (listen,
// room-ids, allowed-origin, max-message-bytes, messages-per-second,
// send-queue); flags may be nil. PORT is honoured for platforms that inject it.
func LoadRelay(flags *pflag.FlagSet) (*Relay, error) {
	v, err := newViper(flags, nil)
	if err != nil {
		return nil, err
	}

	listen := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		listen = ":" + port
	}
	v.SetDefault("listen", listen)
	v.SetDefault("room-ids", RoomIDsUUID)
	v.SetDefault("max-message-bytes", 64*1024)
	v.SetDefault("messages-per-second", 50)
	v.SetDefault("send-queue", 256)

	cfg := &Relay{
		Listen:            v.GetString("listen"),
		RoomIDs:           v.GetString("room-ids"),
		AllowedOrigins:    v.GetStringSlice("allowed-origin"),
		MaxMessageBytes:   v.GetInt64("max-message-bytes"),
		MessagesPerSecond: v.GetInt("messages-per-second"),
		SendQueue:         v.GetInt("send-queue"),
	}

	switch cfg.RoomIDs {
	case RoomIDsUUID, RoomIDsWords:
	default:
		return nil, fmt.Errorf("invalid room-ids %q (want %s or %s)", cfg.RoomIDs, RoomIDsUUID, RoomIDsWords)
	}
	if cfg.MaxMessageBytes <= 0 {
		return nil, fmt.Errorf("max-message-bytes must be positive, got %d", cfg.MaxMessageBytes)
	}
	if cfg.SendQueue <= 0 {
		return nil, fmt.Errorf("send-queue must be positive, got %d", cfg.SendQueue)
	}

	return cfg, nil
}
