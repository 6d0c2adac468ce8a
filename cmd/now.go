package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/marinapotashenkova/SCPlayer/internal/config"
	"github.com/marinapotashenkova/SCPlayer/internal/nowplaying"
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the track the daemon is playing",
	Long: `Read the daemon's now playing state and display the current track.

The output format can be customized in ~/.config/scplayer/config.yaml
using a Go template. Available fields: .Title, .Owner, .Status,
.Elapsed, .Duration, .Percent, .ArtworkURL

Exit codes:
  0 - Track is currently playing
  1 - No track playing, paused, or daemon not running`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	// Add format flag to override config
	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	// Add marquee flag to enable scrolling
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text (overrides config)")
	// Show paused tracks too
	nowCmd.Flags().Bool("paused", false, "Also display a paused track")
}

// nowTrack is the data available to the output template
type nowTrack struct {
	Title      string
	Owner      string
	Status     string
	ArtworkURL string
	Elapsed    string
	Duration   string
	Percent    int
}

func runNow(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check for format flag override
	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	dir, err := dataDir()
	if err != nil {
		return err
	}

	// Read the daemon's snapshot
	snap, err := nowplaying.Read(filepath.Join(dir, "state.json"))
	if err != nil {
		// Daemon never ran or state is unreadable, exit with code 1
		return err
	}

	// If not playing, exit with code 1
	showPaused, _ := cmd.Flags().GetBool("paused")
	if !snap.IsPlaying() && !(showPaused && snap.Track != nil && snap.Status == nowplaying.StatusPaused) {
		os.Exit(1)
		return nil
	}

	// Format and print output
	output, err := formatTrack(trackFromSnapshot(snap, time.Now()), cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// Apply width padding/marquee if requested
	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	marquee, _ := cmd.Flags().GetBool("marquee")
	if !marquee && !cmd.Flags().Changed("marquee") {
		// Flag not set, use config default
		marquee = cfg.MarqueeEnabled
	}

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, cfg.MarqueeSpeed, cfg.MarqueeSeparator)
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Println(output)
	return nil
}

// trackFromSnapshot builds the template data. The snapshot's progress
// may be a few seconds old, so a playing track is advanced to now.
func trackFromSnapshot(snap nowplaying.Snapshot, now time.Time) nowTrack {
	t := nowTrack{Status: snap.Status}
	if snap.Track == nil {
		return t
	}
	t.Title = snap.Track.Title
	t.Owner = snap.Track.Owner
	t.ArtworkURL = snap.Track.ArtworkURL

	var elapsed time.Duration
	if snap.Duration > 0 {
		elapsed = time.Duration(snap.Progress * float64(snap.Duration))
		if snap.IsPlaying() && !snap.UpdatedAt.IsZero() && now.After(snap.UpdatedAt) {
			elapsed += now.Sub(snap.UpdatedAt)
		}
		elapsed = min(elapsed, snap.Duration)
		t.Duration = formatClock(snap.Duration)
		t.Percent = int(elapsed * 100 / snap.Duration)
	} else {
		elapsed = snap.Played(now)
	}
	t.Elapsed = formatClock(elapsed)
	return t
}

// formatClock renders d as m:ss, or h:mm:ss for an hour or more
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatTrack applies the template to the track data
func formatTrack(track nowTrack, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, track); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to exactly width display columns,
// ending truncated text with "...". Width <= 0 leaves text unchanged.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	if runewidth.StringWidth(text) > width {
		const ellipsis = "..."
		if width <= len(ellipsis) {
			return ellipsis[:width]
		}
		// wide runes may leave one column free, FillRight covers it
		text = runewidth.Truncate(text, width-len(ellipsis), "") + ellipsis
	}
	return runewidth.FillRight(text, width)
}

// marqueeText scrolls text that is wider than width, using the wall
// clock to pick the window.
//
// The position is derived from the unix time rather than kept between
// calls, so every status bar refresh (tmux status-interval) shows the
// next step of the loop. With speed=2 and a 5s interval the text moves
// 10 columns per refresh.
func marqueeText(text string, width int, speed int, separator string) string {
	return marqueeAt(text, width, speed, separator, time.Now().Unix())
}

// marqueeAt returns the width-column window of the text+separator loop
// starting speed*unix runes in. Text that fits is only padded.
func marqueeAt(text string, width int, speed int, separator string, unix int64) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	loop := []rune(text + separator)
	offset := 0
	if speed > 0 && unix > 0 {
		offset = int(unix * int64(speed) % int64(len(loop)))
	}

	var b strings.Builder
	used := 0
	for i := 0; i < len(loop); i++ {
		r := loop[(offset+i)%len(loop)]
		rw := runewidth.RuneWidth(r)
		if used+rw > width {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	return runewidth.FillRight(b.String(), width)
}
