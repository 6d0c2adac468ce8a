package player

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{EventLoading, "loading"},
		{EventStarted, "started"},
		{EventPaused, "paused"},
		{EventContinued, "continued"},
		{EventChanged, "changed"},
		{EventFailed, "failed"},
		{EventStopped, "stopped"},
		{EventKind(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestEvent_DeliverSkipsOptionalCallbacks(t *testing.T) {
	var obs struct{ NopObserver }

	// must not panic on observers without OnFailed/OnStopped
	Event{Kind: EventFailed, Err: errors.New("x")}.deliver(obs)
	Event{Kind: EventStopped}.deliver(obs)
}

func TestRegistry_NotifyAllDeliversOnce(t *testing.T) {
	r := NewRegistry()
	a, b := &recorder{}, &recorder{}
	r.Register(Weak(a))
	r.Register(Weak(b))

	n := r.NotifyAll(Event{Kind: EventStarted, Track: catalog.Track{ID: 7}})

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"started:7"}, a.Events())
	assert.Equal(t, []string{"started:7"}, b.Events())
}

func TestRegistry_RegisterIsUpsert(t *testing.T) {
	r := NewRegistry()
	a := &recorder{}
	r.Register(Weak(a))
	r.Register(Weak(a))

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, r.NotifyAll(Event{Kind: EventPaused, Track: catalog.Track{ID: 1}}))
	assert.Equal(t, []string{"paused:1"}, a.Events())
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	a, b := &recorder{}, &recorder{}
	r.Register(Weak(a))

	r.Unregister(Weak(b)) // absent, no-op
	assert.Equal(t, 1, r.Len())

	r.Unregister(Weak(a))
	assert.Equal(t, 0, r.Len())
	assert.Zero(t, r.NotifyAll(Event{Kind: EventStarted}))
	assert.Empty(t, a.Events())
}

func TestRegistry_IgnoresZeroRef(t *testing.T) {
	r := NewRegistry()
	r.Register(ObserverRef{})
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_CollectedObserverIsPruned(t *testing.T) {
	r := NewRegistry()
	func() {
		gone := &recorder{events: make([]string, 0, 8)}
		r.Register(Weak(gone))
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return r.NotifyAll(Event{Kind: EventStarted}) == 0
	}, waitFor, 10*time.Millisecond, "observer was never collected")
	assert.Equal(t, 0, r.Len())

	// a fresh observer registered afterwards still receives notifications
	fresh := &recorder{}
	r.Register(Weak(fresh))
	assert.Equal(t, 1, r.NotifyAll(Event{Kind: EventChanged, Track: catalog.Track{ID: 3}}))
	assert.Equal(t, []string{"changed:3"}, fresh.Events())
}

func TestDispatcher_PreservesOrder(t *testing.T) {
	d := newDispatcher()
	for i := 0; i < 100; i++ {
		d.push(Event{Index: i})
	}

	var got []int
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.run(ctx, func(ev Event) { got = append(got, ev.Index) })

	require.Len(t, got, 100)
	for i, idx := range got {
		assert.Equal(t, i, idx)
	}
}
