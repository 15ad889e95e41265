package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/diary/pkg/logger"
)

// Func is the body of a periodic job.
type Func func(ctx context.Context) error

// Locker provides cross-process mutual exclusion. The redis package's
// Locker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

type job struct {
	name     string
	schedule Schedule
	fn       Func
	timeout  time.Duration
	running  atomic.Bool
}

// Scheduler runs registered jobs on their schedules until its context ends.
// A job whose previous run is still in progress is skipped for that tick.
type Scheduler struct {
	mu         sync.Mutex
	jobs       map[string]*job
	order      []string
	log        *slog.Logger
	locker     Locker
	now        func() time.Time
	runOnStart bool
	started    atomic.Bool
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs: make(map[string]*job),
		log:  logger.Discard(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Names must be unique; registering after Run panics.
func (s *Scheduler) Register(name string, schedule Schedule, fn Func, opts ...JobOption) error {
	if name == "" || schedule == nil || fn == nil {
		return ErrInvalidJob
	}
	if s.started.Load() {
		panic("jobs: Register called after Run")
	}

	j := &job{name: name, schedule: schedule, fn: fn, timeout: 10 * time.Minute}
	for _, opt := range opts {
		opt(j)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyRegistered, name)
	}
	s.jobs[name] = j
	s.order = append(s.order, name)
	s.log.Info("registered periodic job", logger.Job(name), slog.String("schedule", schedule.String()))
	return nil
}

// Run blocks until ctx is cancelled. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return ErrNoJobs
	}
	jobs := make([]*job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()
	s.started.Store(true)

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			s.loop(gctx, j)
			return nil
		})
	}
	return g.Wait()
}

// RunNow executes the named job once, synchronously, honouring the overlap
// guard and the lock.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	if s.runOnStart {
		_ = s.execute(ctx, j)
	}
	for {
		now := s.now()
		wait := j.schedule.Next(now).Sub(now)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		_ = s.execute(ctx, j)
	}
}

func (s *Scheduler) execute(ctx context.Context, j *job) (err error) {
	if !j.running.CompareAndSwap(false, true) {
		s.log.WarnContext(ctx, "job still running, skipping tick", logger.Job(j.name))
		return ErrJobRunning
	}
	defer j.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if s.locker != nil {
		release, lerr := s.locker.TryLock(runCtx, "jobs:"+j.name, j.timeout)
		if lerr != nil {
			s.log.InfoContext(ctx, "job lock not acquired, skipping", logger.Job(j.name), logger.Error(lerr))
			return lerr
		}
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				s.log.WarnContext(ctx, "failed to release job lock", logger.Job(j.name), logger.Error(rerr))
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
			s.log.ErrorContext(ctx, "job panicked",
				logger.Job(j.name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	started := s.now()
	err = j.fn(runCtx)
	if err != nil {
		s.log.ErrorContext(ctx, "job failed", logger.Job(j.name), logger.Duration(s.now().Sub(started)), logger.Error(err))
		return err
	}
	s.log.InfoContext(ctx, "job finished", logger.Job(j.name), logger.Duration(s.now().Sub(started)))
	return nil
}
