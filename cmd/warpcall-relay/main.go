package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/metrics"
	"github.com/BioHazard786/Warpcall/internal/relay"
	"github.com/BioHazard786/Warpcall/internal/server"
	"github.com/BioHazard786/Warpcall/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "warpcall-relay",
	Short:   "Signaling relay for Warpcall",
	Long:    `warpcall-relay pairs two call participants in a room and forwards their negotiation messages. It never carries media.`,
	Version: version.Version,
	Args:    cobra.NoArgs,
	RunE:    run,
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadRelay(cmd.Flags())
	if err != nil {
		return err
	}
	logger := logging.Get("relay")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewRelay(reg)
	if err != nil {
		return err
	}

	ids := relay.UUIDs()
	if cfg.RoomIDs == config.RoomIDsWords {
		ids = relay.Words()
	}
	hub := relay.NewHub(relay.HubConfig{IDs: ids, Metrics: m, Logger: logger})

	logger.Info("Relay configured",
		"listen", cfg.Listen,
		"room_ids", cfg.RoomIDs,
		"version", version.Version,
	)
	return server.New(cfg, hub, reg, logger).Run(cmd.Context())
}

func main() {
	logging.Init(slog.LevelInfo)

	flags := rootCmd.Flags()
	flags.String("listen", "", "HTTP listen address (default \":8080\", or \":$PORT\")")
	flags.String("room-ids", "", "Room identifier style: uuid or words")
	flags.StringSlice("allowed-origin", nil, "Origins allowed to open a websocket (default: any)")
	flags.Int64("max-message-bytes", 0, "Largest inbound websocket message (default 65536)")
	flags.Int("messages-per-second", 0, "Inbound messages per connection per second (default 50)")
	flags.Int("send-queue", 0, "Outbound messages buffered per connection (default 256)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Relay stopped", "err", err)
		stop()
		os.Exit(1)
	}
}
