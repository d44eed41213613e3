package scheduler

import (
	"context"
	"time"

	"licitahub/internal/ports"
)

// Interval re-runs a job on a fixed period; watch mode uses it to refresh
// the consolidated snapshot.
type Interval struct {
	every time.Duration
	stop  chan struct{}
}

var _ ports.Scheduler = (*Interval)(nil)

// NewInterval builds a scheduler; non-positive periods default to 30m.
func NewInterval(every time.Duration) *Interval {
	if every <= 0 {
		every = 30 * time.Minute
	}
	return &Interval{every: every}
}

// Start runs the job once immediately, then on every tick until Stop or
// context cancellation.
func (s *Interval) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.every)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (s *Interval) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
