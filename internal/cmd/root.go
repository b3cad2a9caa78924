// Package cmd holds the warpcall command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/BioHazard786/Warpcall/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "warpcall",
	Short:   "Peer-to-peer audio and video calls over WebRTC",
	Long:    `Warpcall sets up a direct audio/video call between two participants. A small relay introduces the peers; media flows between them directly and never passes through the relay.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("domain", "d", "", "Relay domain")
	flags.StringP("stun", "s", "", "Custom STUN server")
	flags.StringP("turn", "t", "", "Custom TURN server")
	flags.StringP("turn-user", "u", "", "TURN username")
	flags.StringP("turn-pass", "p", "", "TURN password")
	flags.BoolP("relay", "r", false, "Force relay mode")
	flags.String("codec", "", "Signaling codec (json or msgpack)")
	flags.Bool("insecure", false, "Dial the relay over ws:// instead of wss://")
	flags.String("video", "", "IVF (VP8) file to send as video")
	flags.String("audio", "", "Ogg (Opus) file to send as audio")
	flags.String("record-dir", "", "Directory to save the remote tracks to")
}
