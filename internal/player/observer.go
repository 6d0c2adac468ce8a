package player

import (
	"sync"
	"weak"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

// Observer receives playback lifecycle notifications. Callbacks run on
// the player's dispatch goroutine, one at a time, in transition order.
// They may call back into the Coordinator.
type Observer interface {
	OnStarted(track catalog.Track)
	OnPaused(track catalog.Track)
	OnContinued(track catalog.Track)
	OnChanged(track catalog.Track)
	OnLoading(track catalog.Track)
}

// FailureObserver is implemented by observers that want to hear about
// tracks that could not be resolved or loaded
type FailureObserver interface {
	OnFailed(track catalog.Track, err error)
}

// StopObserver is implemented by observers that want to hear about Stop
type StopObserver interface {
	OnStopped()
}

// NopObserver implements Observer with no-ops, for embedding
type NopObserver struct{}

func (NopObserver) OnStarted(catalog.Track)   {}
func (NopObserver) OnPaused(catalog.Track)    {}
func (NopObserver) OnContinued(catalog.Track) {}
func (NopObserver) OnChanged(catalog.Track)   {}
func (NopObserver) OnLoading(catalog.Track)   {}

// EventKind identifies a lifecycle notification
type EventKind int

const (
	EventLoading EventKind = iota
	EventStarted
	EventPaused
	EventContinued
	EventChanged
	EventFailed
	EventStopped
)

// String returns a human-readable representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventLoading:
		return "loading"
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventContinued:
		return "continued"
	case EventChanged:
		return "changed"
	case EventFailed:
		return "failed"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification
type Event struct {
	Kind  EventKind
	Track catalog.Track
	Index int
	Err   error
}

// deliver invokes the callback matching ev.Kind
func (ev Event) deliver(o Observer) {
	switch ev.Kind {
	case EventLoading:
		o.OnLoading(ev.Track)
	case EventStarted:
		o.OnStarted(ev.Track)
	case EventPaused:
		o.OnPaused(ev.Track)
	case EventContinued:
		o.OnContinued(ev.Track)
	case EventChanged:
		o.OnChanged(ev.Track)
	case EventFailed:
		if f, ok := o.(FailureObserver); ok {
			f.OnFailed(ev.Track, ev.Err)
		}
	case EventStopped:
		if s, ok := o.(StopObserver); ok {
			s.OnStopped()
		}
	}
}

// ObserverRef is a non-owning handle to an observer. Build one with Weak.
type ObserverRef struct {
	key  any
	load func() Observer
}

// Weak returns a handle that does not keep obs alive. Handles made from
// the same pointer share an identity, so registering twice replaces the
// first registration.
func Weak[T any, P interface {
	*T
	Observer
}](obs P) ObserverRef {
	wp := weak.Make((*T)(obs))
	return ObserverRef{
		key: wp,
		load: func() Observer {
			p := wp.Value()
			if p == nil {
				return nil
			}
			return P(p)
		},
	}
}

// Registry maps observer identities to non-owning handles
type Registry struct {
	mu      sync.Mutex
	entries map[any]ObserverRef
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[any]ObserverRef)}
}

// Register stores ref, replacing any handle with the same identity
func (r *Registry) Register(ref ObserverRef) {
	if ref.key == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[ref.key] = ref
}

// Unregister removes ref; removing an absent handle is a no-op
func (r *Registry) Unregister(ref ObserverRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, ref.key)
}

// Len returns the number of registered handles, live or not
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// NotifyAll delivers ev to every live observer exactly once and prunes
// handles whose observer has been collected. It returns the number of
// observers notified.
func (r *Registry) NotifyAll(ev Event) int {
	r.mu.Lock()
	refs := make([]ObserverRef, 0, len(r.entries))
	for _, ref := range r.entries {
		refs = append(refs, ref)
	}
	r.mu.Unlock()

	notified := 0
	for _, ref := range refs {
		obs := ref.load()
		if obs == nil {
			r.prune(ref.key)
			continue
		}
		ev.deliver(obs)
		notified++
	}
	return notified
}

func (r *Registry) prune(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.entries[key]; ok && ref.load() == nil {
		delete(r.entries, key)
	}
}
