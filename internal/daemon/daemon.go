package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/discord"
	"github.com/marinapotashenkova/SCPlayer/internal/engine"
	"github.com/marinapotashenkova/SCPlayer/internal/history"
	"github.com/marinapotashenkova/SCPlayer/internal/nowplaying"
	"github.com/marinapotashenkova/SCPlayer/internal/player"
	"github.com/marinapotashenkova/SCPlayer/internal/server"
)

// Config holds daemon configuration
type Config struct {
	PollInterval     time.Duration // How often to sample playback progress
	StateFile        string        // Path to the now playing snapshot
	HistoryDB        string        // Path to the play history database
	ListenAddr       string        // Control API address
	DiscordAppID     string        // Rich Presence application, empty to disable
	MetadataTTL      time.Duration // How long resolved metadata is reused
	HistoryRetention time.Duration // Plays older than this are removed on shutdown
	Rules            history.Rules // When a listen counts as a play
}

// Daemon wires the player to its observers and the control server.
// It holds every observer strongly; the player only keeps weak
// references.
type Daemon struct {
	config   Config
	player   *player.Coordinator
	store    *history.Store
	recorder *history.Recorder
	writer   *nowplaying.Writer
	presence *discord.Presence
	server   *server.Server
	poller   *Poller
	logger   zerolog.Logger
}

// New creates a new Daemon instance. The engine belongs to the daemon's
// player from here on.
func New(cfg Config, cat *catalog.Catalog, resolver player.Resolver, eng engine.Engine, logger zerolog.Logger) (*Daemon, error) {
	// Open history
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	// Cache metadata next to the history
	if cfg.MetadataTTL > 0 {
		resolver = history.NewCachingResolver(resolver, store, cfg.MetadataTTL, logger)
	}

	p := player.New(cat, resolver, eng, logger)

	writer, err := nowplaying.NewWriter(cfg.StateFile, p, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create now playing writer: %w", err)
	}

	d := &Daemon{
		config:   cfg,
		player:   p,
		store:    store,
		recorder: history.NewRecorder(store, cfg.Rules, p, logger),
		writer:   writer,
		server:   server.New(p, cat, logger),
		logger:   logger.With().Str("component", "daemon").Logger(),
	}

	p.RegisterObserver(player.Weak(d.recorder))
	p.RegisterObserver(player.Weak(d.writer))

	if cfg.DiscordAppID != "" {
		d.presence = discord.New(cfg.DiscordAppID, p, logger)
		p.RegisterObserver(player.Weak(d.presence))
	}

	d.poller = NewPoller(p, cfg.PollInterval, logger, d.writer.SetProgress, d.server.BroadcastProgress)

	return d, nil
}

// Player returns the coordinator the daemon drives
func (d *Daemon) Player() *player.Coordinator {
	return d.player
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	// Run the daemon
	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// run is the main daemon loop. It returns once every component has
// stopped; a control server failure stops the rest.
func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info().Msg("Starting daemon")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var serverErr error

	// Start player
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.player.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("Player error")
		}
	}()

	// Start progress poller
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("Poller error")
		}
	}()

	// Start Rich Presence
	if d.presence != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.presence.Run(ctx)
		}()
	}

	// Start control server
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.server.ListenAndServe(ctx, d.config.ListenAddr); err != nil {
			d.logger.Error().Err(err).Msg("Control server error")
			serverErr = err
			cancel()
		}
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	d.logger.Info().Msg("Daemon stopped")
	if serverErr != nil {
		return fmt.Errorf("control server: %w", serverErr)
	}
	return ctx.Err()
}

// Shutdown records the listen in progress, marks the snapshot idle and
// closes the history
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	d.recorder.Flush()
	d.writer.OnStopped()

	ctx := context.Background()

	// Cleanup old records
	if d.config.HistoryRetention > 0 {
		if _, err := d.store.Cleanup(ctx, d.config.HistoryRetention); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to cleanup history")
		}
	}

	// Close history
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}

	return nil
}
