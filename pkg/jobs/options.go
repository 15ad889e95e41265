package jobs

import (
	"log/slog"
	"time"
)

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLocker makes every run acquire a named lock first, so only one
// replica executes a job per tick.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

// WithRunOnStart executes every job once as soon as Run starts.
func WithRunOnStart() Option {
	return func(s *Scheduler) { s.runOnStart = true }
}

// WithClock overrides time.Now. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

type JobOption func(*job)

// WithTimeout bounds a single run of the job. Default is ten minutes.
func WithTimeout(d time.Duration) JobOption {
	return func(j *job) {
		if d > 0 {
			j.timeout = d
		}
	}
}
