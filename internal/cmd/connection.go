package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/protocol"
	"github.com/BioHazard786/Warpcall/internal/session"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// ConnectionContext is an open relay connection with its message handler.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Client
	Logger  *slog.Logger
}

func NewConnectionContext(ctx context.Context, cfg *config.Client) (*ConnectionContext, error) {
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return nil, session.NewError("select codec", err)
	}

	logger := logging.Get("signaling")
	client := signaling.NewClient(cfg.WebSocketURL, codec, logger)
	if err := client.Connect(ctx); err != nil {
		return nil, session.NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client, logger)
	go handler.Start()

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
		Logger:  logging.Get("call"),
	}, nil
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

func LoadConfig(cmd *cobra.Command) (*config.Client, error) {
	cfg, err := config.LoadClient(cmd.Flags())
	if err != nil {
		return nil, session.NewError("load config", err)
	}
	return cfg, nil
}
