package committer

import (
	"sync"
	"time"
)

var _ Committer = (*PeriodicCommitter)(nil)

type PeriodicCommitterConfig struct {
	MaxInterval time.Duration
	MaxCount    int
}

type PeriodicCommitterOption func(*PeriodicCommitterConfig)

func WithMaxInterval(d time.Duration) PeriodicCommitterOption {
	return func(cfg *PeriodicCommitterConfig) {
		cfg.MaxInterval = d
	}
}

func WithMaxCount(c int) PeriodicCommitterOption {
	return func(cfg *PeriodicCommitterConfig) {
		cfg.MaxCount = c
	}
}

func DefaultConfig() PeriodicCommitterConfig {
	return PeriodicCommitterConfig{
		MaxInterval: 5 * time.Second,
		MaxCount:    100,
	}
}

// PeriodicCommitter signals once MaxCount records are pending, or once
// MaxInterval has passed with at least one record pending. Signals do not
// queue: at most one is outstanding.
type PeriodicCommitter struct {
	c PeriodicCommitterConfig

	mu      sync.Mutex
	pending int

	channel   chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewPeriodicCommitter(opts ...PeriodicCommitterOption) *PeriodicCommitter {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &PeriodicCommitter{
		c:       cfg,
		channel: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go p.tick()
	return p
}

func (p *PeriodicCommitter) tick() {
	defer close(p.done)

	if p.c.MaxInterval <= 0 {
		<-p.stop
		return
	}

	t := time.NewTicker(p.c.MaxInterval)
	defer t.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			p.mu.Lock()
			if p.pending > 0 {
				p.signal()
			}
			p.mu.Unlock()
		}
	}
}

func (p *PeriodicCommitter) signal() {
	select {
	case p.channel <- struct{}{}:
	default:
	}
}

func (p *PeriodicCommitter) RecordProcessed(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending += count
	if p.pending > 0 && p.c.MaxCount > 0 && p.pending >= p.c.MaxCount {
		p.signal()
	}
}

func (p *PeriodicCommitter) Committed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = 0
}

// Pending is the number of records processed since the last commit.
func (p *PeriodicCommitter) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pending
}

func (p *PeriodicCommitter) C() <-chan struct{} {
	return p.channel
}

// Close stops the interval timer. The signal channel is left open so a
// select on C never observes a spurious signal.
func (p *PeriodicCommitter) Close() {
	p.closeOnce.Do(
		func() {
			close(p.stop)
			<-p.done
		},
	)
}
