package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/network"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
	"github.com/google/blockly-games-sub000/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Play a game live with websocket spectators",
		Long: `serve plays one game at the configured tick delay and streams every
event to spectators on /ws. Late joiners receive the game so far first.
The server keeps running after the game ends until interrupted, unless
--exit is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				cfg.Server.Listen = listen
			}
			exitOnEnd, _ := cmd.Flags().GetBool("exit")
			poll, _ := cmd.Flags().GetDuration("poll")
			specs, _ := cmd.Flags().GetStringArray("player")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			log := newLogger(cmd, cfg)
			mc := metrics.NewCollector()
			g, err := newGame(ctx, cfg, specs, log, mc)
			if err != nil {
				return err
			}
			defer g.Close()

			recorder, err := telemetry.NewRecorder(cfg.Telemetry.CSVDir)
			if err != nil {
				return err
			}
			defer recorder.Close()

			log.Info("bootstrapping websocket hub")
			hub := network.NewHub(log, mc)
			go hub.Run(ctx)

			ended := make(chan struct{})
			finisher := func(_ int64, e events.Event) {
				end, ok := e.(events.EndGame)
				if !ok {
					return
				}
				if err := g.finish(context.Background(), &end); err != nil {
					log.Error("failed to record game outcome", "err", err)
				}
				close(ended)
			}
			pollerDone := hub.StartEventPoller(ctx, g.log, poll, recorder.Observe, finisher)

			deps := network.ServerDeps{
				Hub:     hub,
				Cage:    g.cage,
				GameID:  g.gameID,
				Metrics: mc,
				Logger:  log,
			}
			if g.repo != nil {
				deps.Repo = g.repo
			}
			srv := &http.Server{
				Addr:              cfg.Server.Listen,
				Handler:           network.NewServeMux(deps),
				ReadHeaderTimeout: 10 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				log.Info("spectator server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			if err := g.cage.Start(nil); err != nil {
				return err
			}
			go func() {
				if err := g.cage.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("cage stopped", "err", err)
				}
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Serving game %s on %s (Ctrl+C to stop)\n", g.gameID, cfg.Server.Listen)

			sigCh := make(chan os.Signal, 1)
			notifySignals(sigCh)
			defer stopSignals(sigCh)

			var runErr error
		wait:
			for {
				select {
				case <-sigCh:
					log.Info("interrupt received, shutting down")
					break wait
				case err := <-serveErr:
					runErr = fmt.Errorf("spectator server failed: %w", err)
					break wait
				case <-ended:
					ended = nil
					log.Info("game over", "round", g.cage.Snapshot().Round)
					if exitOnEnd {
						// The poller exits once END_GAME has gone out.
						<-pollerDone
						break wait
					}
				}
			}

			g.cage.Stop()
			cancel()
			<-pollerDone

			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("spectator server shutdown", "err", err)
			}
			return runErr
		},
	}
	addGameFlags(cmd)
	cmd.Flags().String("listen", "", "Listen address (overrides server.listen)")
	cmd.Flags().Duration("poll", network.DefaultPollInterval, "How often events are pushed to spectators")
	cmd.Flags().Bool("exit", false, "Stop serving once the game ends")
	return cmd
}
