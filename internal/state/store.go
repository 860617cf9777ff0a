package state

import (
	"log/slog"
	"sync"
)

// Commit is one committed transition as seen by a Listener. Seq is the
// logical time of the commit; Prev and Next are the states on either side
// of it.
type Commit struct {
	Prev   AppState
	Next   AppState
	Action Action
	Seq    int64

	store   *Store
	capture bool
}

// Dispatch queues a follow-up action behind the commit being delivered. It
// returns immediately; the action is applied by the same drain, in FIFO
// order, once every listener has seen this commit. Follow-ups of an Undo or
// Redo are applied without history capture.
//
// Listeners must use Commit.Dispatch rather than Store.Dispatch, which
// would wait on the drain the listener is running in.
func (c Commit) Dispatch(a Action) {
	if a == nil || c.store == nil {
		return
	}
	c.store.follow(a, c.capture)
}

// Listener observes committed transitions.
type Listener func(c Commit)

// Store owns an AppState and serializes every transition through Reduce.
//
// Thread-safety model:
//   - Dispatch: safe from any goroutine except a Listener; returns once the
//     action has been applied and delivered
//   - Commit.Dispatch: for use inside a Listener; queues and returns
//   - State: safe from any goroutine, never observes a partial update
//
// Actions are applied in FIFO order, one drain at a time. A Dispatch that
// arrives while another goroutine is draining is appended to the queue and
// waits until the draining goroutine has applied it.
//
// A panicking listener is recovered and logged; the drain carries on with
// the next listener.
type Store struct {
	mu       sync.Mutex
	state    AppState
	queue    []queued
	draining bool

	clock     *Clock
	listeners map[int]Listener
	nextID    int
	logger    *slog.Logger
}

type queued struct {
	action  Action
	capture bool
	done    chan struct{} // nil for follow-ups
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the logical clock used to stamp commits. Used by replay to
// continue a sequence.
func WithClock(c *Clock) StoreOption {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore returns a store holding initial.
func NewStore(initial AppState, opts ...StoreOption) *Store {
	s := &Store{
		state:     initial,
		clock:     NewClock(),
		listeners: make(map[int]Listener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Store) State() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Seq returns the sequence number of the last commit, 0 if none.
func (s *Store) Seq() int64 {
	return s.clock.Current()
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Dispatch applies a and returns after every listener has seen the
// commit. See Store for ordering rules.
func (s *Store) Dispatch(a Action) {
	if a == nil {
		return
	}
	s.mu.Lock()
	if s.draining {
		done := make(chan struct{})
		s.queue = append(s.queue, queued{action: a, capture: true, done: done})
		s.mu.Unlock()
		<-done
		return
	}
	s.queue = append(s.queue, queued{action: a, capture: true})
	s.drain()
}

// follow queues a listener's follow-up action. When no drain is running,
// which only happens if a Commit outlives its delivery, it drains itself.
func (s *Store) follow(a Action, capture bool) {
	s.mu.Lock()
	s.queue = append(s.queue, queued{action: a, capture: capture})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.drain()
}

// drain applies queued actions until the queue is empty. Caller holds s.mu;
// drain releases it.
func (s *Store) drain() {
	s.draining = true
	locked := true
	defer func() {
		if !locked {
			s.mu.Lock()
		}
		for _, q := range s.queue {
			if q.done != nil {
				close(q.done)
			}
		}
		s.queue = nil
		s.draining = false
		s.mu.Unlock()
	}()

	for len(s.queue) > 0 {
		q := s.queue[0]
		s.queue = s.queue[1:]

		prev := s.state
		next := reduce(prev, q.action, q.capture)
		s.state = next
		c := Commit{
			Prev:    prev,
			Next:    next,
			Action:  q.action,
			Seq:     s.clock.Next(),
			store:   s,
			capture: !isRestore(q.action),
		}
		listeners := s.snapshotListeners()
		s.mu.Unlock()
		locked = false

		s.logger.Debug("state commit",
			"seq", c.Seq,
			"action", q.action.Type(),
			"capture", q.capture,
			"undo", len(next.Undo),
			"redo", len(next.Redo))
		for _, l := range listeners {
			s.deliver(l, c)
		}
		if q.done != nil {
			close(q.done)
		}

		s.mu.Lock()
		locked = true
	}
}

// deliver calls l, recovering a panic so the drain stays usable.
func (s *Store) deliver(l Listener, c Commit) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("state listener panicked",
				"seq", c.Seq,
				"action", c.Action.Type(),
				"panic", r)
		}
	}()
	l(c)
}

func isRestore(a Action) bool {
	switch a.(type) {
	case Undo, Redo:
		return true
	}
	return false
}

// snapshotListeners returns the listeners in subscription order.
// Caller holds s.mu.
func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}
