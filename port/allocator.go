package port

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
)

const DefaultHost = "127.0.0.1"

const maxEphemeralAttempts = 8

var (
	ErrUnavailable = errors.New("port unavailable")
	ErrInvalidPort = errors.New("invalid port")
)

// Default is the process-wide allocator used when no other is configured.
var Default = NewAllocator(DefaultHost)

type Allocator struct {
	host   string
	listen func(network, address string) (net.Listener, error)

	mu     sync.Mutex
	leased map[int]*Lease
}

func NewAllocator(host string) *Allocator {
	if host == "" {
		host = DefaultHost
	}

	return &Allocator{
		host:   host,
		listen: net.Listen,
		leased: make(map[int]*Lease),
	}
}

func (a *Allocator) Host() string {
	return a.host
}

// Allocate binds requested, or an ephemeral port when requested is 0.
// An explicit port that is already bound, by this process or another,
// fails immediately with ErrUnavailable.
func (a *Allocator) Allocate(requested int) (*Lease, error) {
	if requested < 0 || requested > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, requested)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if requested != 0 {
		if _, ok := a.leased[requested]; ok {
			return nil, fmt.Errorf("%w: %d is leased by another service", ErrUnavailable, requested)
		}
	}

	var (
		ln    net.Listener
		bound int
		err   error
	)
	if requested == 0 {
		ln, bound, err = a.bindEphemeral()
		if err != nil {
			return nil, err
		}
	} else {
		ln, err = a.listen("tcp", net.JoinHostPort(a.host, strconv.Itoa(requested)))
		if err != nil {
			return nil, fmt.Errorf("%w: %d: %w", ErrUnavailable, requested, err)
		}
		bound = requested
	}

	l := &Lease{
		allocator: a,
		host:      a.host,
		port:      bound,
		ln:        ln,
	}
	a.leased[bound] = l

	return l, nil
}

// bindEphemeral asks the OS for a port until it returns one that is not
// reserved here. A lease keeps its reservation after its listener is closed,
// so the OS may hand such a port back. Colliding listeners stay open until
// a free port is found so the OS does not return them again.
func (a *Allocator) bindEphemeral() (net.Listener, int, error) {
	var collided []net.Listener
	defer func() {
		for _, ln := range collided {
			_ = ln.Close()
		}
	}()

	for range maxEphemeralAttempts {
		ln, err := a.listen("tcp", net.JoinHostPort(a.host, "0"))
		if err != nil {
			return nil, 0, fmt.Errorf("bind ephemeral port: %w", err)
		}

		bound := ln.Addr().(*net.TCPAddr).Port
		if _, ok := a.leased[bound]; !ok {
			return ln, bound, nil
		}
		collided = append(collided, ln)
	}

	return nil, 0, fmt.Errorf("bind ephemeral port: no unreserved port after %d attempts", maxEphemeralAttempts)
}

// InUse reports whether the port is currently leased from this allocator.
func (a *Allocator) InUse(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.leased[port]
	return ok
}

// Leased returns the currently leased ports in ascending order.
func (a *Allocator) Leased() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	ports := make([]int, 0, len(a.leased))
	for p := range a.leased {
		ports = append(ports, p)
	}
	slices.Sort(ports)

	return ports
}

func (a *Allocator) release(l *Lease) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cur, ok := a.leased[l.port]; ok && cur == l {
		delete(a.leased, l.port)
	}
}

// Free reports whether the port can currently be bound on host. It is a
// point-in-time check.
func Free(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
