package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Source is the playback the poller samples
type Source interface {
	IsPlaying() bool
	CurrentProgress() float64
	CurrentDuration() time.Duration
}

// ProgressFunc receives a progress sample
type ProgressFunc func(progress float64, duration time.Duration)

// Poller samples playback progress at regular intervals and hands it to
// every sink. Nothing is sent while playback is not advancing.
type Poller struct {
	source   Source
	interval time.Duration
	sinks    []ProgressFunc
	logger   zerolog.Logger
}

// NewPoller creates a new Poller instance
func NewPoller(source Source, interval time.Duration, logger zerolog.Logger, sinks ...ProgressFunc) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		source:   source,
		interval: interval,
		sinks:    sinks,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run starts the polling loop
// Blocks until context is cancelled
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Msg("Starting poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll takes one sample
func (p *Poller) poll() {
	if !p.source.IsPlaying() {
		return
	}

	progress := p.source.CurrentProgress()
	duration := p.source.CurrentDuration()
	for _, sink := range p.sinks {
		sink(progress, duration)
	}

	p.logger.Debug().
		Float64("progress", progress).
		Dur("duration", duration).
		Msg("Poll update")
}
