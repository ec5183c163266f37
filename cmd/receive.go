package cmd

import (
	"context"
	"log/slog"

	"github.com/BioHazard786/warpcast/internal/config"
	"github.com/BioHazard786/warpcast/internal/engine"
	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/BioHazard786/warpcast/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagSave      bool
	flagOutputDir string
)

var receiveCmd = &cobra.Command{
	Use:     "receive",
	Aliases: []string{"r", "recv"},
	Short:   "Receive media from a sender",
	Long: `Take the receiver slot on the broker, answer the sender's offer and
consume the incoming tracks. With --save, video is written to
received_output.ivf and audio to received_output.ogg.

Press q to close the session.

Examples:
  warpcast receive
  warpcast receive --save --output-dir ./recordings`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return receive(cmd.Context())
	},
}

func init() {
	receiveCmd.Flags().BoolVar(&flagSave, "save", false, "record incoming media (env WARPCAST_SAVE)")
	receiveCmd.Flags().StringVarP(&flagOutputDir, "output-dir", "o", "", "directory for recordings (env WARPCAST_OUTPUT_DIR)")
	addPeerFlags(receiveCmd)
	rootCmd.AddCommand(receiveCmd)
}

// trackListener reports attached tracks to the live view.
type trackListener struct {
	*engine.Recorder
	view *liveView
}

func (l trackListener) Attach(t session.RemoteTrack) error {
	l.view.addTrack(string(t.Kind()), t.ID())
	return l.Recorder.Attach(t)
}

func receive(ctx context.Context) error {
	cfg, err := config.Load(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		Save:       flagSave,
		OutputDir:  flagOutputDir,
		Timeout:    flagTimeout,
	})
	if err != nil {
		return err
	}

	peer, err := engine.NewPeer(engine.Options{
		STUNServers: cfg.GetSTUNServers(),
		Logger:      slog.Default(),
	})
	if err != nil {
		return err
	}

	if cfg.SaveOutput {
		ui.PrintInfof("%s Recording to %s", ui.IconSave, cfg.OutputDir)
	}
	recorder := engine.NewRecorder(cfg.OutputDir, cfg.SaveOutput, slog.Default())

	view := newLiveView(ui.ModeReceive, cfg.ServerURL)
	receiver := session.NewResponder(peer, trackListener{Recorder: recorder, view: view},
		sessionOptions(cfg, view.onState))
	return view.run(ctx, receiver, recorder.Outputs)
}
