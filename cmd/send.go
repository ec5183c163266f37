package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/warpcast/internal/config"
	"github.com/BioHazard786/warpcast/internal/engine"
	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/BioHazard786/warpcast/internal/ui"
	"github.com/spf13/cobra"
)

var flagSource string

var sendCmd = &cobra.Command{
	Use:     "send",
	Aliases: []string{"s"},
	Short:   "Offer stored media to a receiver",
	Long: `Take the sender slot on the broker and stream stored media to the receiver.

Sources are IVF files (VP8, VP9 or AV1 video) and Ogg files (Opus audio).
The session ends when the video source runs out, the receiver leaves, or
you press q.

Examples:
  warpcast send --source clip.ivf
  warpcast send --source clip.ivf,clip.ogg --server ws://10.0.0.2:8765/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd.Context())
	},
}

func init() {
	sendCmd.Flags().StringVar(&flagSource, "source", "", "comma separated .ivf/.ogg files to stream (env WARPCAST_SOURCE)")
	addPeerFlags(sendCmd)
	rootCmd.AddCommand(sendCmd)
}

func send(ctx context.Context) error {
	cfg, err := config.Load(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		Source:     flagSource,
		Timeout:    flagTimeout,
	})
	if err != nil {
		return err
	}
	// Only stored media is supported; there is no camera fallback.
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("no source given: pass --source clip.ivf[,clip.ogg] or set WARPCAST_SOURCE")
	}

	sp := ui.NewSimpleSpinner("Opening sources...")
	sp.Start()
	src, err := engine.NewFileSource(cfg.Sources, slog.Default())
	if err != nil {
		sp.Error("Could not open sources")
		return err
	}
	sp.Success(fmt.Sprintf("Opened %d track(s)", len(src.Tracks())))
	displayTracks(src)

	peer, err := engine.NewPeer(engine.Options{
		STUNServers: cfg.GetSTUNServers(),
		Logger:      slog.Default(),
	})
	if err != nil {
		src.Close()
		return err
	}

	view := newLiveView(ui.ModeSend, cfg.ServerURL)
	for _, t := range src.Tracks() {
		view.addTrack(string(t.Kind()), t.ID())
	}
	sender := session.NewInitiator(peer, src, sessionOptions(cfg, view.onState))
	return view.run(ctx, sender, nil)
}

func displayTracks(src *engine.FileSource) {
	var items []ui.TrackTableItem
	for i, t := range src.Files() {
		items = append(items, ui.TrackTableItem{
			Index: i + 1,
			Kind:  string(t.Kind()),
			Codec: t.Codec(),
			File:  t.Path(),
		})
	}
	ui.RenderTrackTable(items)
}
