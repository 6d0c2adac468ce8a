package engine

import (
	"sync"
	"time"
)

// Verify Mock implements Engine at compile time.
var _ Engine = (*Mock)(nil)

// Mock is a scripted engine for tests. Signals are only emitted when a
// test calls Ready, Fail or End.
type Mock struct {
	mu       sync.Mutex
	item     uint64
	url      string
	loaded   bool
	playing  bool
	elapsed  time.Duration
	duration time.Duration
	loads    []string
	seeks    int
	events   chan Event
}

// NewMock creates a new mock engine
func NewMock() *Mock {
	return &Mock{
		events: make(chan Event, 64),
	}
}

func (m *Mock) Load(item uint64, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.item = item
	m.url = url
	m.loaded = true
	m.playing = false
	m.elapsed = 0
	m.loads = append(m.loads, url)
}

func (m *Mock) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		m.playing = true
	}
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
}

func (m *Mock) SeekToStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed = 0
	m.seeks++
}

func (m *Mock) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return 0
	}
	return m.duration
}

func (m *Mock) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing {
		return 1
	}
	return 0
}

func (m *Mock) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	m.playing = false
	m.url = ""
	m.elapsed = 0
}

func (m *Mock) Events() <-chan Event { return m.events }

// SetTimes sets the reported elapsed time and duration
func (m *Mock) SetTimes(elapsed, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed = elapsed
	m.duration = duration
}

// Item returns the stamp of the most recent Load
func (m *Mock) Item() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.item
}

// URL returns the loaded stream location, empty when released
func (m *Mock) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Loads returns every url passed to Load
func (m *Mock) Loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}

// Seeks returns how many times SeekToStart was called
func (m *Mock) Seeks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seeks
}

// Ready signals that item is ready to play
func (m *Mock) Ready(item uint64) { m.events <- Event{Item: item, Kind: Ready} }

// Fail signals that item failed to load
func (m *Mock) Fail(item uint64, err error) {
	m.events <- Event{Item: item, Kind: Failed, Err: err}
}

// End signals that item played to the end
func (m *Mock) End(item uint64) {
	m.mu.Lock()
	m.playing = false
	m.mu.Unlock()
	m.events <- Event{Item: item, Kind: Ended}
}
