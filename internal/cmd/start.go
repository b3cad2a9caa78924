package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/session"
	"github.com/BioHazard786/Warpcall/internal/ui"
)

var startCmd = &cobra.Command{
	Use:     "start",
	Aliases: []string{"s"},
	Short:   "Start a call and wait for someone to join",
	Long: `Create a room on the relay and wait for the other participant.

Examples:
  warpcall start
  warpcall start --video cam.ivf --audio mic.ogg
  warpcall start --relay --record-dir ./calls`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startCall(cmd)
	},
}

func startCall(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := LoadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	conn, err := NewConnectionContext(ctx, cfg)
	stopSpinner()
	if err != nil {
		return err
	}
	defer conn.Close()

	roomID, err := conn.Handler.CreateRoom(ctx)
	if err != nil {
		return session.WrapError("create room", ErrSignaling, err.Error())
	}
	ui.RenderRoomInfo(roomID, cfg.GetRoomLink(roomID))

	c, err := newCall(conn, session.RoleInitiator, roomID)
	if err != nil {
		return err
	}
	if err := c.capture(ctx); err != nil {
		return c.abort(err)
	}

	if err := waitForPeer(cmd, conn); err != nil {
		return c.abort(err)
	}

	if err := c.session.BeginAsInitiator(); err != nil {
		return c.abort(session.NewError("begin call", err))
	}
	return c.run(ctx)
}

func waitForPeer(cmd *cobra.Command, conn *ConnectionContext) error {
	fmt.Println()
	stopSpinner := ui.RunWaitingSpinner("Waiting for someone to join...")
	defer stopSpinner()

	h := conn.Handler
	select {
	case peer := <-h.PeerJoined:
		conn.Logger.Info("Peer joined", "peer", peer)
		return nil
	case relayErr := <-h.Error:
		return session.WrapError("wait for peer", ErrSignaling, relayErr.Error())
	case <-h.Done():
		return session.WrapError("wait for peer", ErrNoPeer, "lost connection to relay")
	case <-cmd.Context().Done():
		return session.NewError("wait for peer", ErrNoPeer)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
}
