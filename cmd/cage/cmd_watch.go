package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/infra/storage"
)

// watchStats tracks what a spectator received.
type watchStats struct {
	Received int64
	Errors   int64
	Births   int
	Deaths   int
	Started  time.Time
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a live game as a spectator",
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL, _ := cmd.Flags().GetString("url")
			raw, _ := cmd.Flags().GetBool("raw")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			u, err := url.Parse(serverURL)
			if err != nil {
				return fmt.Errorf("invalid --url: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			go cancelOnSignal(ctx, cancel)

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
			if err != nil {
				return fmt.Errorf("connection failed: %w", err)
			}
			defer conn.Close()
			go func() {
				<-ctx.Done()
				conn.Close()
			}()

			stats, err := watch(conn, cmd.OutOrStdout(), raw)
			printWatchStats(cmd.OutOrStdout(), stats)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().String("url", "ws://localhost:8080/ws", "Spectator websocket URL")
	cmd.Flags().Bool("raw", false, "Print event envelopes as received")
	cmd.Flags().Duration("timeout", 0, "Give up after this long (0 waits for END_GAME)")
	return cmd
}

// watch prints events from conn until END_GAME or a read error.
func watch(conn *websocket.Conn, w io.Writer, raw bool) (*watchStats, error) {
	stats := &watchStats{Started: time.Now()}
	mirror := storage.NewMirror()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return stats, nil
			}
			stats.Errors++
			return stats, err
		}
		stats.Received++

		seq, e, err := events.Unmarshal(data)
		if err != nil {
			stats.Errors++
			fmt.Fprintf(w, "undecodable message: %v\n", err)
			continue
		}
		mirror.Apply(e)
		switch storage.Impact(e) {
		case "BIRTH":
			stats.Births++
		case "DEATH":
			stats.Deaths += len(events.Deaths(e))
		}

		if raw {
			fmt.Fprintln(w, string(data))
		} else {
			fmt.Fprintf(w, "%6d  %-14s %s  [%d alive]\n", seq, e.Type(), storage.Summarize(e), mirror.Len())
		}
		if e.Type() == events.EventTypeEndGame {
			return stats, nil
		}
	}
}

func printWatchStats(w io.Writer, stats *watchStats) {
	if stats == nil {
		return
	}
	fmt.Fprintln(w, "-----------------------------------------")
	fmt.Fprintf(w, "Events received: %s\n", humanize.Comma(stats.Received))
	fmt.Fprintf(w, "Births:          %s\n", humanize.Comma(int64(stats.Births)))
	fmt.Fprintf(w, "Deaths:          %s\n", humanize.Comma(int64(stats.Deaths)))
	fmt.Fprintf(w, "Errors:          %d\n", stats.Errors)
	fmt.Fprintf(w, "Watched for:     %s\n", time.Since(stats.Started).Round(time.Millisecond))
}
