package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BioHazard786/warpcast/internal/config"
	"github.com/BioHazard786/warpcast/internal/session"
	"github.com/BioHazard786/warpcast/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagServer  string
	flagSTUN    string
	flagTimeout time.Duration
)

// addPeerFlags registers the flags shared by send and receive.
func addPeerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagServer, "server", "s", "", "broker URL (default ws://localhost:8765/ws, env WARPCAST_SERVER)")
	cmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL (env STUN_SERVER)")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "how long to wait for the peer (default 30s, env WARPCAST_TIMEOUT)")
}

// Session is what send and receive drive: an Initiator or a Responder.
type Session interface {
	Run(ctx context.Context) error
	Close() error
	Reason() string
}

// sessionOptions builds orchestrator options from the loaded config.
func sessionOptions(cfg *config.Config, onState func(session.State)) session.Options {
	return session.Options{
		ServerURL:          cfg.ServerURL,
		NegotiationTimeout: cfg.NegotiationTimeout,
		OnStateChange:      onState,
		Logger:             slog.Default(),
	}
}

// liveView is the status display while a session runs. It is a no-op when
// stdout is not a terminal.
type liveView struct {
	status *ui.StatusUI
	sess   Session
}

func newLiveView(mode ui.Mode, server string) *liveView {
	v := &liveView{}
	if ui.IsTerminal() {
		v.status = ui.NewStatusUI(mode, server, func() {
			if v.sess != nil {
				v.sess.Close()
			}
		})
	}
	return v
}

func (v *liveView) onState(st session.State) {
	if v.status != nil {
		v.status.SetState(st)
	}
}

func (v *liveView) addTrack(kind, id string) {
	if v.status != nil {
		v.status.AddTrack(kind, id)
	}
}

// run drives sess to completion and prints a summary.
func (v *liveView) run(ctx context.Context, sess Session, saved func() []string) error {
	v.sess = sess
	if v.status != nil {
		v.status.Start()
	}

	start := time.Now()
	err := sess.Run(ctx)

	if v.status != nil {
		v.status.Stop()
	}

	summary := ui.SessionSummary{
		Status:   "closed",
		Reason:   sess.Reason(),
		Duration: time.Since(start).Truncate(time.Millisecond).String(),
	}
	if saved != nil {
		summary.Saved = saved()
	}

	switch {
	case err == nil:
		ui.RenderSessionSummary(summary)
		ui.PrintSuccessf("Session finished after %s", summary.Duration)
		return nil
	case errors.Is(err, session.ErrCancelled):
		ui.PrintWarning("Session cancelled")
		return nil
	default:
		summary.Status = "failed"
		ui.RenderSessionSummary(summary)
		return err
	}
}
