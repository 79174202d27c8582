package ticket

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Sweeper runs the SLA expiry sweep on a fixed interval until stopped.
type Sweeper struct {
	workflow *Workflow
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	stop    chan struct{}
	done    chan struct{}
	running atomic.Bool
}

// NewSweeper creates a sweeper. A non-positive interval falls back to
// 30 seconds.
func NewSweeper(workflow *Workflow, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		workflow: workflow,
		interval: interval,
		timeout:  30 * time.Second,
		logger:   logger.With("component", "sweeper"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("sweeper started", "interval", s.interval.String())
	go s.loop()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.done
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.safeSweep()
		case <-s.stop:
			return
		}
	}
}

// safeSweep runs one sweep, containing panics so a bad cycle cannot kill
// the loop.
func (s *Sweeper) safeSweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	expired, err := s.workflow.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	if expired > 0 {
		s.logger.Info("sweep expired tickets", "count", expired)
	}
}
