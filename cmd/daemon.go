package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/config"
	"github.com/marinapotashenkova/SCPlayer/internal/daemon"
	"github.com/marinapotashenkova/SCPlayer/internal/engine"
	"github.com/marinapotashenkova/SCPlayer/internal/history"
	"github.com/marinapotashenkova/SCPlayer/internal/soundcloud"
)

var (
	daemonLogFile  string
	daemonLogLevel string
	daemonAutoplay bool
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the playback daemon",
	Long: `Run the playback daemon that owns the audio device and the playlist.

The daemon will:
- Load the playlist configured in ~/.config/scplayer/config.yaml
- Resolve stream locations through the SoundCloud API, caching them locally
- Play, pause and skip tracks on request from the control API
- Record listens to the local history (30 seconds minimum, half the track or 4 minutes)
- Keep a now playing snapshot for the 'now' command
- Show the playing track in Discord when discord.app_id is set
- Handle graceful shutdown on SIGINT/SIGTERM

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	// Command-line flags
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	daemonCmd.Flags().BoolVar(&daemonAutoplay, "play", false, "Start playing the first track immediately")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate SoundCloud credentials
	if cfg.SoundCloud.ClientID == "" {
		return fmt.Errorf("SoundCloud client id not configured. Set soundcloud.client_id in %s",
			filepath.Join(config.GetConfigDir(), "config.yaml"))
	}

	// Set up logging
	logger := setupLogger(daemonLogFile, daemonLogLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting scplayer daemon")

	// Determine data directory
	dir, err := dataDir()
	if err != nil {
		return err
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger.Info().Str("data_dir", dir).Msg("Using data directory")

	// Load playlist
	cat, err := catalog.LoadPlaylist(cfg.Playlist)
	if err != nil {
		return err
	}
	logger.Info().Str("playlist", cfg.Playlist).Int("tracks", cat.Len()).Msg("Loaded playlist")

	// Create SoundCloud client
	sc, err := soundcloud.NewClient(soundcloud.Config{
		ClientID: cfg.SoundCloud.ClientID,
		BaseURL:  cfg.SoundCloud.BaseURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create SoundCloud client: %w", err)
	}

	// Open audio output
	eng, err := engine.NewSpeaker(nil, logger)
	if err != nil {
		return err
	}

	rules := history.DefaultRules()
	rules.MinDuration = cfg.History.MinDuration

	// Create daemon config
	daemonCfg := daemon.Config{
		PollInterval:     time.Duration(cfg.PollInterval) * time.Second,
		StateFile:        filepath.Join(dir, "state.json"),
		HistoryDB:        filepath.Join(dir, "history.db"),
		ListenAddr:       cfg.ListenAddr,
		DiscordAppID:     cfg.Discord.AppID,
		MetadataTTL:      6 * time.Hour,        // SoundCloud stream URLs expire
		HistoryRetention: 365 * 24 * time.Hour, // Keep a year of plays
		Rules:            rules,
	}

	// Create daemon
	d, err := daemon.New(daemonCfg, cat, sc, eng, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if daemonAutoplay && cat.Len() > 0 {
		if err := d.Player().Select(0); err != nil {
			logger.Warn().Err(err).Msg("Failed to start playback")
		}
	}

	// Run daemon (blocks until shutdown signal)
	runErr := d.Run()

	// Graceful shutdown
	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}
	if runErr != nil {
		return fmt.Errorf("daemon error: %w", runErr)
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
