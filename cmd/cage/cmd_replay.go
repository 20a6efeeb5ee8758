package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/google/blockly-games-sub000/internal/infra/storage"
)

// openRepo opens the recording database named by --db.
func openRepo(cmd *cobra.Command) (*storage.SQLiteEventRepository, func() error, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		return nil, nil, fmt.Errorf("--db is required")
	}
	db, err := storage.InitSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return storage.NewSQLiteEventRepository(db), db.Close, nil
}

func outcome(g storage.Game) string {
	switch {
	case g.Success == nil:
		return "unfinished"
	case *g.Success:
		return "success"
	}
	return "failure"
}

func newGamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "List recorded games",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			repo, closeDB, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			games, err := repo.ListGames(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				if games == nil {
					games = []storage.Game{}
				}
				return json.NewEncoder(out).Encode(games)
			}
			if len(games) == 0 {
				fmt.Fprintln(out, "No recorded games.")
				return nil
			}
			for _, g := range games {
				fmt.Fprintf(out, "%s  %-10s %8s events  started %s  players: %s\n",
					g.ID, outcome(g), humanize.Comma(int64(g.Events)), humanize.Time(g.StartedAt), strings.Join(g.Players, ", "))
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite recording database")
	return cmd
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print the transcript of a recorded game",
		Long: `replay prints every recorded event of a game. Without --game the most
recently started game is shown. --seq prints the population alive after
that event instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			gameID, _ := cmd.Flags().GetString("game")
			upTo, _ := cmd.Flags().GetInt64("seq")

			repo, closeDB, err := openRepo(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			ctx := cmd.Context()

			if gameID == "" {
				games, err := repo.ListGames(ctx)
				if err != nil {
					return err
				}
				if len(games) == 0 {
					return fmt.Errorf("no recorded games")
				}
				gameID = games[0].ID
			}
			game, err := repo.GetGame(ctx, gameID)
			if err != nil {
				return err
			}

			rc := storage.NewReconstructor(repo)
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)

			if cmd.Flags().Changed("seq") {
				mice, err := rc.Population(ctx, gameID, upTo)
				if err != nil {
					return err
				}
				if jsonOut {
					return enc.Encode(mice)
				}
				fmt.Fprintf(out, "%d mice alive after event %d of %s\n", len(mice), upTo, gameID)
				for _, m := range mice {
					fmt.Fprintf(out, "  mouse %-4d %-6s size %.2f age %d owners %d/%d/%d\n",
						m.ID, m.Sex, m.Size, m.Age, m.Owners.PickFight, m.Owners.ProposeMate, m.Owners.AcceptMate)
				}
				return nil
			}

			recap, err := rc.Recap(ctx, gameID)
			if err != nil {
				return err
			}
			if jsonOut {
				return enc.Encode(recap)
			}
			fmt.Fprintf(out, "Game %s (%s), players: %s, seed %d\n", game.ID, outcome(*game), strings.Join(game.Players, ", "), game.Seed)
			for _, e := range recap {
				fmt.Fprintf(out, "%6d  %-14s %-7s %s\n", e.Seq, e.Type, e.Impact, e.Summary)
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite recording database")
	cmd.Flags().String("game", "", "Game id (defaults to the latest game)")
	cmd.Flags().Int64("seq", 0, "Print the population after this event")
	return cmd
}
