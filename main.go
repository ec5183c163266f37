package main

import (
	"log/slog"

	"github.com/BioHazard786/warpcast/cmd"
	"github.com/BioHazard786/warpcast/internal/logging"
)

func main() {
	logging.Init(slog.LevelError)
	cmd.Execute()
}
