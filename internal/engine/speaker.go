package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog"
)

const (
	// DefaultSampleRate is the output rate of the speaker
	DefaultSampleRate = beep.SampleRate(44100)

	// maxStreamBytes bounds how much of a stream is buffered in memory
	maxStreamBytes = 256 << 20

	resampleQuality = 4
)

// Verify Speaker implements Engine at compile time.
var _ Engine = (*Speaker)(nil)

// Speaker plays mp3 streams on the default audio device.
//
// A stream is downloaded into memory before it is reported ready, so
// duration and seeking are always available.
type Speaker struct {
	mu         sync.Mutex
	client     *http.Client
	logger     zerolog.Logger
	sampleRate beep.SampleRate
	events     chan Event

	item     uint64
	cancel   context.CancelFunc
	stream   beep.StreamSeekCloser
	format   beep.Format
	resample *beep.Resampler
	ctrl     *beep.Ctrl
	ended    atomic.Bool
}

// NewSpeaker initializes the audio device and returns an engine using it
func NewSpeaker(client *http.Client, logger zerolog.Logger) (*Speaker, error) {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	sr := DefaultSampleRate
	if err := speaker.Init(sr, sr.N(100*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	return &Speaker{
		client:     client,
		logger:     logger.With().Str("component", "engine").Logger(),
		sampleRate: sr,
		events:     make(chan Event, 16),
	}, nil
}

func (s *Speaker) Load(item uint64, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.item = item

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.logger.Debug().Uint64("item", item).Msg("Loading stream")
	go s.fetch(ctx, item, url)
}

func (s *Speaker) fetch(ctx context.Context, item uint64, url string) {
	stream, format, err := openStream(ctx, s.client, url)
	if err != nil {
		if ctx.Err() == nil {
			s.emit(Event{Item: item, Kind: Failed, Err: err})
		}
		return
	}

	s.mu.Lock()
	if s.item != item || ctx.Err() != nil {
		s.mu.Unlock()
		_ = stream.Close()
		return
	}
	s.stream = stream
	s.format = format
	s.resample = beep.Resample(resampleQuality, format.SampleRate, s.sampleRate, stream)
	s.attachLocked(item)
	s.mu.Unlock()

	s.emit(Event{Item: item, Kind: Ready})
}

// attachLocked hands a paused controller for the loaded stream to the
// speaker. The end callback runs on the speaker goroutine with the
// speaker lock held, so it only flips a flag and hands off.
func (s *Speaker) attachLocked(item uint64) {
	s.ended.Store(false)
	s.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(s.resample, beep.Callback(func() {
			s.ended.Store(true)
			go s.emit(Event{Item: item, Kind: Ended})
		})),
		Paused: true,
	}
	speaker.Play(s.ctrl)
}

// emit never blocks: with nobody draining Events a full buffer drops
// the signal instead of stranding the sender
func (s *Speaker) emit(ev Event) {
	s.mu.Lock()
	current := s.item == ev.Item
	s.mu.Unlock()

	if !current {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().
			Uint64("item", ev.Item).
			Str("event", ev.Kind.String()).
			Msg("Event buffer full, dropping signal")
	}
}

func (s *Speaker) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return
	}
	if s.ended.Load() {
		s.rewindLocked()
	}
	speaker.Lock()
	s.ctrl.Paused = false
	speaker.Unlock()
}

func (s *Speaker) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return
	}
	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
}

func (s *Speaker) SeekToStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return
	}
	s.rewindLocked()
}

func (s *Speaker) rewindLocked() {
	speaker.Lock()
	err := s.stream.Seek(0)
	speaker.Unlock()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to seek stream")
	}

	// a finished Seq is dropped by the mixer, so hand over a fresh one
	if s.ended.Load() {
		s.attachLocked(s.item)
	}
}

func (s *Speaker) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return 0
	}
	speaker.Lock()
	pos := s.stream.Position()
	speaker.Unlock()
	return s.format.SampleRate.D(pos)
}

func (s *Speaker) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return 0
	}
	return s.format.SampleRate.D(s.stream.Len())
}

func (s *Speaker) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil || s.ended.Load() {
		return 0
	}
	speaker.Lock()
	paused := s.ctrl.Paused
	speaker.Unlock()
	if paused {
		return 0
	}
	return 1
}

func (s *Speaker) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	s.item = 0
}

func (s *Speaker) releaseLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.ctrl != nil {
		speaker.Clear()
		s.ctrl = nil
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to close stream")
		}
		s.stream = nil
		s.resample = nil
	}
	s.ended.Store(false)
}

func (s *Speaker) Events() <-chan Event { return s.events }

// memStream makes a fully buffered stream seekable for the decoder
type memStream struct {
	*bytes.Reader
}

func (memStream) Close() error { return nil }

// openStream downloads url and decodes it as mp3
func openStream(ctx context.Context, client *http.Client, url string) (beep.StreamSeekCloser, beep.Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, beep.Format{}, fmt.Errorf("unexpected stream status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxStreamBytes))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to read stream: %w", err)
	}

	stream, format, err := mp3.Decode(memStream{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode stream: %w", err)
	}
	return stream, format, nil
}
