package detect

import (
	"context"
	"sync"
)

// loadFlight tracks one in-flight load so concurrent callers share a
// single load sequence and its outcome.
type loadFlight struct {
	done chan struct{}
	err  error
}

// SingleFlight guards a one-time load operation. Concurrent callers
// share one in-flight load; after a failed load the guard returns to
// the unloaded state so a later call can retry.
type SingleFlight struct {
	mu       sync.Mutex
	loaded   bool
	inflight *loadFlight
}

// Do runs load at most once concurrently. If a load is already in
// flight, Do waits for it and returns its result. Once a load has
// succeeded, Do returns nil without calling load again.
func (s *SingleFlight) Do(ctx context.Context, load func(context.Context) error) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	if f := s.inflight; f != nil {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	flight := &loadFlight{done: make(chan struct{})}
	s.inflight = flight
	s.mu.Unlock()

	err := load(ctx)

	s.mu.Lock()
	s.inflight = nil
	s.loaded = err == nil
	s.mu.Unlock()

	flight.err = err
	close(flight.done)
	return err
}

// Loaded reports whether a load has completed successfully.
func (s *SingleFlight) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Reset returns the guard to the unloaded state. The owner is
// responsible for releasing whatever the load acquired.
func (s *SingleFlight) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}
