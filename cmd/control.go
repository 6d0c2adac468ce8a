package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/config"
	"github.com/marinapotashenkova/SCPlayer/internal/server"
)

var statusJSON bool

// toggleCmd represents the toggle command
var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle play/pause",
	Long:  `Toggle between play and pause. If nothing is selected, starts the first track of the playlist.`,
	RunE:  commandRunner("toggle", (*server.Client).Toggle),
}

// nextCmd represents the next command
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to next track",
	Long:  `Skip to the next track in the playlist. Does nothing on the last track.`,
	RunE:  commandRunner("skip to next track", (*server.Client).Next),
}

// prevCmd represents the prev command
var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go to previous track",
	Long:  `Go to the previous track in the playlist. Does nothing on the first track.`,
	RunE:  commandRunner("go to previous track", (*server.Client).Prev),
}

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	Long:  `Stop playback and release the current track.`,
	RunE:  commandRunner("stop", (*server.Client).Stop),
}

// selectCmd represents the select command
var selectCmd = &cobra.Command{
	Use:   "select <index>",
	Short: "Play the track at a playlist position",
	Long: `Play the track at the given playlist position, counting from 1 as
listed by 'scplayer tracks'.`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the player status",
	RunE:  runStatus,
}

// tracksCmd represents the tracks command
var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List the playlist",
	RunE:  runTracks,
}

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print player events as they happen",
	Long:  `Connect to the daemon and print every playback event until interrupted.`,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(prevCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tracksCmd)
	rootCmd.AddCommand(watchCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw status as JSON")
}

// newControlClient connects to the daemon configured in config.yaml
func newControlClient() (*server.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return server.NewClient(cfg.ListenAddr, nil), nil
}

// commandRunner builds the RunE for a command without arguments
func commandRunner(action string, fn func(*server.Client, context.Context) (server.StatusMessage, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client, err := newControlClient()
		if err != nil {
			return err
		}

		st, err := fn(client, ctx)
		if err != nil {
			return fmt.Errorf("failed to %s: %w", action, err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), describeStatus(st))
		return nil
	}
}

func runSelect(cmd *cobra.Command, args []string) error {
	position, err := strconv.Atoi(args[0])
	if err != nil || position < 1 {
		return fmt.Errorf("invalid track position: %s (must be a number from 1)", args[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newControlClient()
	if err != nil {
		return err
	}

	st, err := client.Select(ctx, position-1)
	if err != nil {
		var apiErr *server.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return fmt.Errorf("no track at position %d", position)
		}
		return fmt.Errorf("failed to select track: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), describeStatus(st))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newControlClient()
	if err != nil {
		return err
	}

	st, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintln(cmd.OutOrStdout(), describeStatus(st))
	return nil
}

func runTracks(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := newControlClient()
	if err != nil {
		return err
	}

	tracks, err := client.Tracks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}

	st, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	printTracks(cmd.OutOrStdout(), tracks, st)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := newControlClient()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	err = client.Watch(ctx, func(msg *server.Message) error {
		line, err := describeMessage(msg)
		if err != nil {
			return err
		}
		if line != "" {
			fmt.Fprintln(out, line)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// describeStatus renders a status as one line, e.g.
// "playing 2/10: Owner - Title"
func describeStatus(st server.StatusMessage) string {
	if st.Track == nil {
		return "idle"
	}

	phase := st.Phase
	if phase == "idle" {
		phase = "loading"
	}
	line := phase
	if st.Index >= 0 {
		line += fmt.Sprintf(" %d", st.Index+1)
	}
	line += fmt.Sprintf(": %s - %s", st.Track.Owner, st.Track.Title)
	if st.Duration > 0 {
		duration := time.Duration(st.Duration * float64(time.Second))
		elapsed := time.Duration(st.Progress * float64(duration))
		line += fmt.Sprintf(" [%s/%s]", formatClock(elapsed), formatClock(duration))
	}
	return line
}

// describeMessage renders a websocket message, or "" for messages not
// worth printing
func describeMessage(msg *server.Message) (string, error) {
	switch msg.Type {
	case server.MessageTypeHello:
		var hello server.HelloMessage
		if err := msg.Decode(&hello); err != nil {
			return "", err
		}
		return "connected: " + describeStatus(hello.Status), nil
	case server.MessageTypeEvent:
		var ev server.EventMessage
		if err := msg.Decode(&ev); err != nil {
			return "", err
		}
		line := ev.Kind
		if ev.Track != nil {
			line += fmt.Sprintf(" %d: %s - %s", ev.Index+1, ev.Track.Owner, ev.Track.Title)
		}
		if ev.Error != "" {
			line += " (" + ev.Error + ")"
		}
		return line, nil
	case server.MessageTypeError:
		var e server.ErrorMessage
		if err := msg.Decode(&e); err != nil {
			return "", err
		}
		return "error: " + e.Reason, nil
	default:
		return "", nil
	}
}

// printTracks lists tracks numbered from 1, marking the current one
func printTracks(w io.Writer, tracks []catalog.Track, st server.StatusMessage) {
	for i, t := range tracks {
		marker := " "
		if st.Track != nil && st.Index == i {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %3d  %s - %s\n", marker, i+1, t.Owner, t.Title)
	}
}
