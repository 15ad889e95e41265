package billing

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/diary/pkg/jobs"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

// Job names, also used as lock keys.
const (
	JobSweep      = "subscriptions.sweep"
	JobReminders  = "reminders.dispatch"
	JobUsageReset = "usage.monthly_reset"
)

// JobsConfig controls the periodic billing jobs.
type JobsConfig struct {
	GraceDays     int           `env:"GRACE_PERIOD_DAYS" envDefault:"3"`
	SweepMinute   int           `env:"SWEEP_MINUTE" envDefault:"5"`
	ReminderEvery time.Duration `env:"REMINDER_INTERVAL" envDefault:"15m"`
	UsageResetDay int           `env:"USAGE_RESET_DAY" envDefault:"1"`
	DispatchLimit int           `env:"REMINDER_BATCH" envDefault:"0"`
	JobTimeout    time.Duration `env:"JOB_TIMEOUT" envDefault:"10m"`
}

// Jobs holds the bodies of the periodic billing jobs. The CLI runs them
// directly; the serve command registers them with a scheduler.
type Jobs struct {
	svc      subscription.Service
	notifier subscription.Notifier
	cfg      JobsConfig
	metrics  *Metrics
	now      func() time.Time
}

type JobsOption func(*Jobs)

func WithJobsMetrics(m *Metrics) JobsOption {
	return func(j *Jobs) { j.metrics = m }
}

func WithJobsClock(now func() time.Time) JobsOption {
	return func(j *Jobs) {
		if now != nil {
			j.now = now
		}
	}
}

func NewJobs(svc subscription.Service, notifier subscription.Notifier, cfg JobsConfig, opts ...JobsOption) *Jobs {
	if svc == nil {
		panic("billing: subscription service cannot be nil")
	}
	j := &Jobs{svc: svc, notifier: notifier, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Register adds the sweep, reminder and usage reset jobs to s.
func (j *Jobs) Register(s *jobs.Scheduler) error {
	timeout := jobs.WithTimeout(j.cfg.JobTimeout)
	return errors.Join(
		s.Register(JobSweep, jobs.HourlyAt(j.cfg.SweepMinute), j.wrap(JobSweep, j.sweep), timeout),
		s.Register(JobReminders, jobs.Every(j.cfg.ReminderEvery), j.wrap(JobReminders, j.dispatch), timeout),
		s.Register(JobUsageReset, jobs.MonthlyOn(j.cfg.UsageResetDay, 0, 0), j.wrap(JobUsageReset, j.resetUsage), timeout),
	)
}

func (j *Jobs) wrap(name string, fn jobs.Func) jobs.Func {
	return func(ctx context.Context) error {
		err := fn(ctx)
		j.metrics.jobRun(name, err)
		return err
	}
}

func (j *Jobs) sweep(ctx context.Context) error {
	_, err := j.Sweep(ctx, j.cfg.GraceDays)
	return err
}

func (j *Jobs) dispatch(ctx context.Context) error {
	_, err := j.Dispatch(ctx, false)
	return err
}

func (j *Jobs) resetUsage(ctx context.Context) error {
	_, err := j.ResetUsage(ctx)
	return err
}

// Sweep expires lapsed subscriptions and downgrades those past graceDays.
func (j *Jobs) Sweep(ctx context.Context, graceDays int) (subscription.SweepResult, error) {
	res, err := j.svc.SweepExpired(ctx, graceDays)
	j.metrics.sweep(res)
	return res, err
}

// Dispatch delivers due payment reminders. With dryRun nothing is sent or
// marked.
func (j *Jobs) Dispatch(ctx context.Context, dryRun bool) (subscription.DispatchResult, error) {
	res, err := j.svc.DispatchReminders(ctx, j.notifier, subscription.DispatchOptions{
		DryRun: dryRun,
		Limit:  j.cfg.DispatchLimit,
	})
	j.metrics.dispatch(res)
	return res, err
}

// ResetUsage zeroes every counter not reset since the start of the current
// month.
func (j *Jobs) ResetUsage(ctx context.Context) (int, error) {
	now := j.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	n, err := j.svc.ResetStaleUsage(ctx, cutoff)
	j.metrics.resets(n)
	return n, err
}
