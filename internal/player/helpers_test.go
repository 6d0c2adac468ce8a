package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/engine"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// recorder logs every notification as "kind:trackID"
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) add(kind string, t catalog.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%s:%d", kind, t.ID))
}

func (r *recorder) OnStarted(t catalog.Track)   { r.add("started", t) }
func (r *recorder) OnPaused(t catalog.Track)    { r.add("paused", t) }
func (r *recorder) OnContinued(t catalog.Track) { r.add("continued", t) }
func (r *recorder) OnChanged(t catalog.Track)   { r.add("changed", t) }
func (r *recorder) OnLoading(t catalog.Track)   { r.add("loading", t) }

func (r *recorder) OnFailed(t catalog.Track, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.add("failed", t)
}

func (r *recorder) OnStopped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "stopped")
}

func (r *recorder) Errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// fakeResolver answers with a stream URL derived from the id. Gated ids
// block until their gate is closed.
type fakeResolver struct {
	mu    sync.Mutex
	gates map[catalog.TrackID]chan struct{}
	errs  map[catalog.TrackID]error
	calls []catalog.TrackID
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		gates: make(map[catalog.TrackID]chan struct{}),
		errs:  make(map[catalog.TrackID]error),
	}
}

func (f *fakeResolver) gate(id catalog.TrackID) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

func (f *fakeResolver) fail(id catalog.TrackID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

func (f *fakeResolver) Calls() []catalog.TrackID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.TrackID(nil), f.calls...)
}

func (f *fakeResolver) Resolve(ctx context.Context, id catalog.TrackID) (*catalog.ExtendedInfo, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	gate := f.gates[id]
	err := f.errs[id]
	f.mu.Unlock()

	if gate != nil {
		<-gate // resolves even when cancelled, like a request already on the wire
	}
	if err != nil {
		return nil, err
	}
	return &catalog.ExtendedInfo{
		Description: fmt.Sprintf("track %d", id),
		StreamURL:   streamURL(id),
	}, nil
}

func streamURL(id catalog.TrackID) string {
	return fmt.Sprintf("https://stream.test/%d", id)
}

type harness struct {
	t        *testing.T
	catalog  *catalog.Catalog
	engine   *engine.Mock
	resolver *fakeResolver
	player   *Coordinator
	rec      *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cat := catalog.New(
		catalog.Track{ID: 101, Title: "First", Owner: "a"},
		catalog.Track{ID: 102, Title: "Second", Owner: "b"},
		catalog.Track{ID: 103, Title: "Third", Owner: "c"},
	)
	eng := engine.NewMock()
	res := newFakeResolver()
	c := New(cat, res, eng, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := &harness{t: t, catalog: cat, engine: eng, resolver: res, player: c, rec: &recorder{}}
	c.RegisterObserver(Weak(h.rec))
	return h
}

// loaded waits until the engine holds the stream for id and returns its item
func (h *harness) loaded(id catalog.TrackID) uint64 {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.engine.URL() == streamURL(id)
	}, waitFor, tick, "stream for %d never loaded", id)
	return h.engine.Item()
}

// play selects index and drives it to Playing
func (h *harness) play(index int) {
	h.t.Helper()
	require.NoError(h.t, h.player.Select(index))
	track, _ := h.catalog.At(index)
	h.engine.Ready(h.loaded(track.ID))
	h.waitState(PlayingAt(index))
}

func (h *harness) waitState(want State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.player.State() == want
	}, waitFor, tick, "state never became %s (is %s)", want, h.player.State())
}

func (h *harness) waitEvents(want ...string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return len(h.rec.Events()) >= len(want)
	}, waitFor, tick, "expected events %v, got %v", want, h.rec.Events())
	require.Equal(h.t, want, h.rec.Events())
}
