package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/warpcast/internal/ui"
	"github.com/BioHazard786/warpcast/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warpcast",
	Short: "Stream stored media between two peers over WebRTC",
	Long: `Warpcast streams video and audio directly between two peers using WebRTC.
A small broker pairs exactly one sender with one receiver and relays their
offer and answer; media then flows peer-to-peer.

  warpcast serve                         run the broker
  warpcast send --source clip.ivf        offer a stored clip
  warpcast receive --save                play back and record what arrives`,
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
