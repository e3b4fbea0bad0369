package session

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is 60 ticks per second.
const DefaultTickInterval = time.Second / 60

type command struct {
	fn   func(*Session) error
	done chan error
}

// Runner owns a Session and drives it from one goroutine. Other goroutines
// reach the session only through Do.
type Runner struct {
	s        *Session
	interval time.Duration
	cmds     chan command

	mu     sync.RWMutex
	status Status
}

// NewRunner creates a runner ticking s every interval.
func NewRunner(s *Session, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Runner{
		s:        s,
		interval: interval,
		cmds:     make(chan command),
		status:   s.Status(),
	}
}

// Run ticks the session until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-r.cmds:
			c.done <- c.fn(r.s)
			r.publish()
		case now := <-ticker.C:
			r.s.Tick(now.Sub(last))
			last = now
			r.publish()
		}
	}
}

func (r *Runner) publish() {
	st := r.s.Status()
	r.mu.Lock()
	r.status = st
	r.mu.Unlock()
}

// Do runs fn on the tick goroutine and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(*Session) error) error {
	c := command{fn: fn, done: make(chan error, 1)}
	select {
	case r.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the status as of the last tick or command.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Reset restarts the session everywhere.
func (r *Runner) Reset(ctx context.Context) error {
	return r.Do(ctx, func(s *Session) error {
		s.Reset()
		return nil
	})
}

// Advance skips the current task.
func (r *Runner) Advance(ctx context.Context) error {
	return r.Do(ctx, func(s *Session) error {
		s.Advance()
		return nil
	})
}

// Unlock unlocks node i.
func (r *Runner) Unlock(ctx context.Context, i int) error {
	return r.Do(ctx, func(s *Session) error { return s.Unlock(i) })
}

// Lock locks or unlocks node i.
func (r *Runner) Lock(ctx context.Context, i int, locked, recursive bool) error {
	return r.Do(ctx, func(s *Session) error { return s.SetLock(i, locked, recursive) })
}

// ResetPose returns node i to its baseline placement.
func (r *Runner) ResetPose(ctx context.Context, i int, recursive bool) error {
	return r.Do(ctx, func(s *Session) error { return s.ResetPose(i, recursive) })
}

// FitToScale scales the cage to target.
func (r *Runner) FitToScale(ctx context.Context, target float64) error {
	return r.Do(ctx, func(s *Session) error {
		_, err := s.FitToScale(target)
		return err
	})
}

// ShowSilhouette toggles the assembled preview.
func (r *Runner) ShowSilhouette(ctx context.Context, on bool) error {
	return r.Do(ctx, func(s *Session) error {
		s.ShowSilhouette(on)
		return nil
	})
}
