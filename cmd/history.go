package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/marinapotashenkova/SCPlayer/internal/history"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently played tracks",
	Long: `Show the most recent plays recorded by the daemon.

A listen is recorded once it reaches half the track or 4 minutes,
for tracks at least as long as history.min_duration.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of plays to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dir, err := dataDir()
	if err != nil {
		return err
	}

	store, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	plays, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	printPlays(cmd.OutOrStdout(), plays)
	return nil
}

// printPlays writes one line per play, newest first
func printPlays(w io.Writer, plays []history.Play) {
	if len(plays) == 0 {
		fmt.Fprintln(w, "No plays recorded yet")
		return
	}
	for _, p := range plays {
		fmt.Fprintf(w, "%s  %s - %s (%s)\n",
			p.Timestamp.Local().Format("2006-01-02 15:04"),
			p.Owner, p.Title, formatClock(p.Played))
	}
}
