package challenges

import (
	"context"
	"sync"
	"time"

	"github.com/vibeai/backend/internal/logger"
	"go.uber.org/zap"
)

// SweepFunc drops expired entries from an in-memory store and reports how
// many it removed
type SweepFunc func() int

// Sweeper periodically purges expired state from the in-memory stores
// (counters, consumed challenges, session history)
type Sweeper struct {
	interval time.Duration
	mu       sync.Mutex
	targets  map[string]SweepFunc
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper running every interval
func NewSweeper(interval time.Duration) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		interval: interval,
		targets:  make(map[string]SweepFunc),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Register adds a named store to sweep
func (s *Sweeper) Register(name string, fn SweepFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[name] = fn
}

// Start begins sweeping in the background. Calls after the first are no-ops.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	logger.Log.Info("Starting in-memory store sweeper", zap.Duration("interval", s.interval))
	go s.run()
}

// Stop halts the sweeper and waits for the loop to exit, if it was started
func (s *Sweeper) Stop() {
	s.cancel()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce()
		case <-s.ctx.Done():
			return
		}
	}
}

// SweepOnce runs every registered sweep immediately
func (s *Sweeper) SweepOnce() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]int, len(s.targets))
	for name, fn := range s.targets {
		n := fn()
		removed[name] = n
		if n > 0 {
			logger.Log.Debug("Swept expired entries", zap.String("store", name), zap.Int("removed", n))
		}
	}
	return removed
}
