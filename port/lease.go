package port

import (
	"net"
	"strconv"
	"sync"
)

// Lease is exclusive ownership of one bound port.
type Lease struct {
	allocator *Allocator
	host      string
	port      int

	mu       sync.Mutex
	ln       net.Listener
	handed   bool
	released bool
}

func (l *Lease) Port() int {
	return l.port
}

func (l *Lease) Host() string {
	return l.host
}

// Addr returns host:port.
func (l *Lease) Addr() string {
	return net.JoinHostPort(l.host, strconv.Itoa(l.port))
}

// Listener hands the bound listener to the caller, who becomes responsible
// for closing it. The port stays reserved until Release. Subsequent calls
// return nil.
func (l *Lease) Listener() net.Listener {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handed || l.released {
		return nil
	}

	l.handed = true
	return l.ln
}

// Release closes the listener if it was never handed out and frees the
// reservation. Safe to call more than once.
func (l *Lease) Release() error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return nil
	}
	l.released = true

	var err error
	if !l.handed {
		err = l.ln.Close()
	}
	l.mu.Unlock()

	l.allocator.release(l)
	return err
}
