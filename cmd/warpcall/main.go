package main

import (
	"log/slog"

	"github.com/BioHazard786/Warpcall/internal/cmd"
	"github.com/BioHazard786/Warpcall/internal/logging"
)

func main() {
	// Errors only by default; the call view owns the terminal.
	logging.Init(slog.LevelError)
	cmd.Execute()
}
