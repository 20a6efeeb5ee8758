package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
	"github.com/google/blockly-games-sub000/internal/telemetry"
)

// runResult is the summary printed after a batch game.
type runResult struct {
	GameID     string          `json:"game_id,omitempty"`
	Seed       uint64          `json:"seed"`
	Rounds     int             `json:"rounds"`
	Events     int64           `json:"events"`
	Population int             `json:"population"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
	End        *events.EndGame `json:"end_game"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play a game to completion and print the result",
		Example: `  cage run -p alice=testdata/aggressive.star -p bob=testdata/romantic.star
  cage run -p a.star -p b.star --seed 42 --db games.db --csv out/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			specs, _ := cmd.Flags().GetStringArray("player")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go cancelOnSignal(ctx, cancel)

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

			if err := g.cage.Start(nil); err != nil {
				recorder.Close()
				return err
			}

			var end *events.EndGame
			started := time.Now()
			err = g.cage.RunToEnd(ctx, func(batch []events.Event) {
				recorder.ObserveBatch(batch)
				if last, ok := batch[len(batch)-1].(events.EndGame); ok {
					end = &last
				}
			})
			elapsed := time.Since(started)
			if cerr := recorder.Close(); cerr != nil {
				log.Warn("failed to write telemetry", "dir", recorder.Dir(), "err", cerr)
			}
			if err != nil {
				return err
			}
			if err := g.finish(ctx, end); err != nil {
				return err
			}

			snap := g.cage.Snapshot()
			result := runResult{
				GameID:     g.gameID,
				Seed:       g.opts.Seed,
				Rounds:     snap.Round,
				Events:     g.log.Seq(),
				Population: len(snap.Mice),
				Elapsed:    elapsed,
				End:        end,
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(cmd.OutOrStdout(), g, result)
			if recorder != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Telemetry: %d rounds written to %s\n", recorder.Rounds(), recorder.Dir())
			}
			return nil
		},
	}
	addGameFlags(cmd)
	return cmd
}

func printResult(w io.Writer, g *game, r runResult) {
	fmt.Fprintf(w, "Game over after %s rounds (%s events in %s, seed %d)\n",
		humanize.Comma(int64(r.Rounds)), humanize.Comma(r.Events), r.Elapsed.Round(time.Millisecond), r.Seed)
	if r.GameID != "" {
		fmt.Fprintf(w, "Recorded as %s\n", r.GameID)
	}

	switch {
	case r.End == nil:
		fmt.Fprintln(w, "No END_GAME event was produced")
	case r.End.Success:
		fmt.Fprintf(w, "%s controls every mouse (%d alive)\n", g.playerName(0), r.Population)
	case len(r.End.Rankings) == 0:
		fmt.Fprintln(w, "Every mouse is dead")
	default:
		fmt.Fprintf(w, "Time ran out with %d mice alive\n", r.Population)
		for _, fn := range mouse.Functions {
			fmt.Fprintf(w, "  %s:\n", fn)
			for place, group := range r.End.Rankings[fn] {
				names := make([]string, len(group))
				for i, id := range group {
					names[i] = g.playerName(id)
				}
				fmt.Fprintf(w, "    %s  %s\n", humanize.Ordinal(place+1), strings.Join(names, ", "))
			}
		}
	}
}

// cancelOnSignal cancels the game on the first interrupt.
func cancelOnSignal(ctx context.Context, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer stopSignals(sigCh)
	select {
	case <-sigCh:
		cancel()
	case <-ctx.Done():
	}
}
