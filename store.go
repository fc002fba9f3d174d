package searchfn

import "sync"

// Snapshot is a point-in-time copy of a store's state
type Snapshot[P, R any] struct {
	Data       *R
	IsLoading  bool
	IsError    bool
	Parameters P
}

// Cleanup removes a subscription
type Cleanup func()

type watcher[P, R any] struct {
	id int
	fn func(Snapshot[P, R])
}

// Store holds the result state of one coordinator: the latest accepted
// response, the loading and error flags, and the current call parameters.
// Reads return copies. Mutation happens only through the owning coordinator,
// so a settlement that fails the freshness check never reaches the store.
type Store[P, R any] struct {
	mu          sync.Mutex
	data        *R
	isLoading   bool
	isError     bool
	params      P
	watchers    []watcher[P, R]
	nextWatcher int
}

func newStore[P, R any](params P, data *R) *Store[P, R] {
	return &Store[P, R]{
		data:   data,
		params: params,
	}
}

// Snapshot returns a copy of the current state
func (s *Store[P, R]) Snapshot() Snapshot[P, R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Data returns the latest accepted response, or nil if none settled yet.
// The pointed-to response must be treated as read-only.
func (s *Store[P, R]) Data() *R {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// IsLoading reports whether the store is in its loading state
func (s *Store[P, R]) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// IsError reports whether the last applied settlement was a failure
func (s *Store[P, R]) IsError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isError
}

// Parameters returns a copy of the current call parameters
func (s *Store[P, R]) Parameters() P {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Subscribe registers a watcher invoked synchronously after every applied
// state change, in registration order. The returned cleanup removes the
// watcher and is safe to call more than once.
func (s *Store[P, R]) Subscribe(fn func(Snapshot[P, R])) Cleanup {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers = append(s.watchers, watcher[P, R]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w.id == id {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store[P, R]) snapshotLocked() Snapshot[P, R] {
	return Snapshot[P, R]{
		Data:       s.data,
		IsLoading:  s.isLoading,
		IsError:    s.isError,
		Parameters: s.params,
	}
}

// notify runs the watchers outside the lock; snap was taken while the
// mutation still held it
func (s *Store[P, R]) notify(snap Snapshot[P, R], watchers []watcher[P, R]) {
	for _, w := range watchers {
		w.fn(snap)
	}
}

func (s *Store[P, R]) watchersLocked() []watcher[P, R] {
	out := make([]watcher[P, R], len(s.watchers))
	copy(out, s.watchers)
	return out
}
