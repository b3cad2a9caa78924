package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/session"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a call someone started",
	Long: `Join an existing room and start the call.

Examples:
  warpcall join 3f2c9a1e-5b7d-4c2a-9e8f-1a2b3c4d5e6f
  warpcall join https://warpcall.qzz.io/r/3f2c9a1e-5b7d-4c2a-9e8f-1a2b3c4d5e6f
  warpcall join brave-otter-sings-loudly --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return joinCall(cmd, roomID)
	},
}

func joinCall(cmd *cobra.Command, roomID string) error {
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

	if err := conn.Handler.JoinRoom(ctx, roomID); err != nil {
		switch {
		case errors.Is(err, signaling.ErrRoomNotFound):
			return session.WrapError("join room", err, "check the room ID, the call may have ended")
		case errors.Is(err, signaling.ErrRoomFull):
			return session.WrapError("join room", err, "this call already has two participants")
		default:
			return session.WrapError("join room", ErrSignaling, err.Error())
		}
	}
	ui.PrintSuccessf("Joined room %s", roomID)

	c, err := newCall(conn, session.RoleJoiner, roomID)
	if err != nil {
		return err
	}
	if err := c.capture(ctx); err != nil {
		return c.abort(err)
	}
	if err := c.session.BeginAsJoiner(); err != nil {
		return c.abort(session.NewError("begin call", err))
	}
	return c.run(ctx)
}

func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, ".") {
		return extractRoomIDFromURL(input)
	}

	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", session.NewError("parse URL", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
