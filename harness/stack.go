package harness

import (
	"sync"

	"go.uber.org/multierr"

	"github.com/hugolhafner/go-streams-testing/service"
)

// Stack owns handles and closes them in reverse push order, so a handle is
// always closed before the handles it was started against.
type Stack struct {
	mu      sync.Mutex
	handles []service.Handle
	closed  bool
}

func (s *Stack) Push(h service.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handles = append(s.handles, h)
}

func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.handles)
}

// Close closes every handle, continuing past failures, and returns the
// aggregated errors. Calls after the first return nil.
func (s *Stack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs error
	for i := len(s.handles) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, s.handles[i].Close())
	}
	return errs
}
