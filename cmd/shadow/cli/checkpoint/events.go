package checkpoint

import (
	"sort"
	"sync"
	"time"
)

// EventKind names one variant of Event.
type EventKind string

const (
	KindInitialize EventKind = "initialize"
	KindCheckpoint EventKind = "checkpoint"
	KindRestore    EventKind = "restore"
	KindError      EventKind = "error"

	// AllEvents subscribes a listener to every kind.
	AllEvents EventKind = "*"
)

// Event is the closed set of notifications published by a ShadowGit.
// Consumers type-switch over InitializeEvent, CheckpointEvent, RestoreEvent and ErrorEvent.
type Event interface {
	Kind() EventKind
	sealed()
}

// InitializeEvent is published after a successful Initialize.
type InitializeEvent struct {
	WorkspaceDir string
	BaseHash     string
	Created      bool
	Duration     time.Duration
}

// CheckpointEvent is published after a Save that produced a commit.
type CheckpointEvent struct {
	FromHash        string
	ToHash          string
	Duration        time.Duration
	SuppressMessage bool
}

// RestoreEvent is published after a successful Restore.
type RestoreEvent struct {
	CommitHash string
	Duration   time.Duration
}

// ErrorEvent is published when Save or Restore fails.
type ErrorEvent struct {
	Err error
}

func (InitializeEvent) Kind() EventKind { return KindInitialize }
func (CheckpointEvent) Kind() EventKind { return KindCheckpoint }
func (RestoreEvent) Kind() EventKind    { return KindRestore }
func (ErrorEvent) Kind() EventKind      { return KindError }

func (InitializeEvent) sealed() {}
func (CheckpointEvent) sealed() {}
func (RestoreEvent) sealed()    {}
func (ErrorEvent) sealed()      {}

// Listener receives published events. Listeners run synchronously on the
// publishing goroutine and must not call back into the publishing ShadowGit.
type Listener func(Event)

type subscription struct {
	kind EventKind
	fn   Listener
}

// emitter is a small subscribe/publish registry. The zero value is ready to use.
type emitter struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

func (e *emitter) subscribe(kind EventKind, fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs == nil {
		e.subs = make(map[int]subscription)
	}
	id := e.nextID
	e.nextID++
	e.subs[id] = subscription{kind: kind, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

func (e *emitter) publish(ev Event) {
	e.mu.RLock()
	ids := make([]int, 0, len(e.subs))
	for id, sub := range e.subs {
		if sub.kind == AllEvents || sub.kind == ev.Kind() {
			ids = append(ids, id)
		}
	}
	// Deliver in subscription order.
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, e.subs[id].fn)
	}
	e.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
