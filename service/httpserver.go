package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hugolhafner/go-streams-testing/port"
)

// HTTPServer serves a handler on a leased listener until stopped.
type HTTPServer struct {
	srv  *http.Server
	done chan struct{}

	mu       sync.Mutex
	serveErr error
}

// ServeHTTP takes ownership of the lease's listener and starts serving in
// the background.
func ServeHTTP(lease *port.Lease, h http.Handler) (*HTTPServer, error) {
	ln := lease.Listener()
	if ln == nil {
		return nil, fmt.Errorf("port %d: listener already handed out", lease.Port())
	}

	s := &HTTPServer{
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		err := s.srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()

	return s, nil
}

// Exited returns a non-nil error once the serve loop has stopped.
func (s *HTTPServer) Exited() error {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.serveErr != nil {
			return fmt.Errorf("server exited: %w", s.serveErr)
		}
		return errors.New("server exited")
	default:
		return nil
	}
}

// Stop shuts down gracefully within ctx, then forcibly closes remaining
// connections. It returns once the serve loop has exited.
func (s *HTTPServer) Stop(ctx context.Context) error {
	var forced bool
	if err := s.srv.Shutdown(ctx); err != nil {
		forced = true
		_ = s.srv.Close()
	}
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serveErr != nil {
		return s.serveErr
	}
	if forced {
		return fmt.Errorf("graceful shutdown timed out, connections force closed")
	}
	return nil
}
