package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BioHazard786/warpcast/internal/broker"
	"github.com/BioHazard786/warpcast/internal/config"
	"github.com/BioHazard786/warpcast/internal/logging"
	"github.com/BioHazard786/warpcast/internal/metrics"
	"github.com/BioHazard786/warpcast/internal/server"
	"github.com/BioHazard786/warpcast/internal/ui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling broker",
	Long: `Run the broker that pairs one sender with one receiver.

Endpoints:
  /ws       websocket signaling
  /health   slot state as JSON
  /metrics  Prometheus metrics

Examples:
  warpcast serve
  warpcast serve --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(slog.LevelInfo)
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "listen port (default 8765, env WARPCAST_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(config.Options{Port: flagPort})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b := broker.New(metrics.NewBroker(reg), slog.Default())
	go b.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.NewMux(b, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	ui.PrintInfof("%s Broker listening on %s", ui.IconServer,
		ui.BoldStyle.Render(fmt.Sprintf("ws://localhost%s/ws", cfg.ListenAddr())))
	slog.Info("broker started", "addr", cfg.ListenAddr())

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.ListenAddr(), err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	<-b.Done()
	ui.PrintSuccess("Broker stopped")
	return nil
}
