package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/metrics"
	"go.uber.org/zap"
)

// ErrStopped is returned by Stop when the drain deadline passes
var ErrStopped = errors.New("audit dispatcher stopped before draining")

// Dispatcher fans events out to sinks from a bounded buffer. Enqueue never
// blocks; events arriving while the buffer is full are dropped and counted.
type Dispatcher struct {
	events  chan Event
	sinks   []Sink
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given buffer size and worker count
func NewDispatcher(buffer, workers int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	if workers <= 0 {
		workers = 2
	}
	return &Dispatcher{
		events:  make(chan Event, buffer),
		sinks:   sinks,
		workers: workers,
		timeout: 5 * time.Second,
	}
}

// Start launches the workers
func (d *Dispatcher) Start() {
	logger.Log.Info("Starting audit dispatcher", zap.Int("workers", d.workers), zap.Int("sinks", len(d.sinks)))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Enqueue hands e to the workers. It reports false when the event was dropped.
func (d *Dispatcher) Enqueue(e Event) bool {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.Get().AuditDroppedTotal.Inc()
		return false
	}

	select {
	case d.events <- e:
		return true
	default:
		metrics.Get().AuditDroppedTotal.Inc()
		logger.Log.Warn("Audit buffer full, dropping event", logger.WithPostID(e.PostID))
		return false
	}
}

// Stop closes the buffer and waits for queued events to be written
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrStopped
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for e := range d.events {
		d.dispatch(e)
	}
	logger.Log.Debug("Audit worker shutting down", zap.Int("worker_id", id))
}

func (d *Dispatcher) dispatch(e Event) {
	m := metrics.Get()
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := s.Write(ctx, e)
		cancel()
		if err != nil {
			m.AuditEventsTotal.WithLabelValues(s.Name(), "error").Inc()
			logger.Log.Warn("Audit sink write failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", e.ID),
				zap.Error(err),
			)
			continue
		}
		m.AuditEventsTotal.WithLabelValues(s.Name(), "success").Inc()
	}
}
