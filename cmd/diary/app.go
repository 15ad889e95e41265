package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/diary/pkg/config"
	"github.com/dmitrymomot/diary/pkg/email"
	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/pg"
	"github.com/dmitrymomot/diary/pkg/redis"
	"github.com/dmitrymomot/diary/pkg/requestid"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/svc/auth"
	"github.com/dmitrymomot/diary/svc/billing"
	"github.com/dmitrymomot/diary/svc/journal"
	"github.com/dmitrymomot/diary/svc/repository"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg       appConfig
	log       *slog.Logger
	pool      *pgxpool.Pool
	journalDB *sqlx.DB
	redis     *goredis.Client
	catalog   *subscription.Catalog
	provider  subscription.Provider
	subs      subscription.Service
	contacts  *repository.Contacts
	journal   journal.Service
	jobsCfg   billing.JobsConfig
	metrics   *billing.Metrics
}

type appOption func(*appOptions)

type appOptions struct {
	redis   bool
	metrics *billing.Metrics
}

// withRedis connects to Redis when REDIS_URL is set.
func withRedis() appOption {
	return func(o *appOptions) { o.redis = true }
}

func withMetrics(m *billing.Metrics) appOption {
	return func(o *appOptions) { o.metrics = m }
}

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "diary"),
		logger.WithContextExtractors(requestid.LoggerExtractor(), auth.LoggerExtractor()),
		logger.WithOutput(os.Stderr),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}

func newApp(ctx context.Context, opts ...appOption) (_ *app, err error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &app{metrics: o.metrics}
	if err := config.Load(&a.cfg); err != nil {
		return nil, err
	}
	if err := config.Load(&a.jobsCfg); err != nil {
		return nil, err
	}
	a.log = newLogger(a.cfg)
	logger.SetAsDefault(a.log)

	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return nil, err
	}
	if a.pool, err = pg.Connect(ctx, pgCfg); err != nil {
		return nil, err
	}

	if a.catalog, err = loadCatalog(ctx, a.cfg); err != nil {
		return nil, err
	}
	if a.provider, err = newProvider(a.cfg); err != nil {
		return nil, err
	}

	subsOpts := []subscription.ServiceOption{
		subscription.WithLogger(a.log),
		subscription.WithGatewayTimeout(a.cfg.GatewayTimeout),
	}
	if a.provider != nil {
		subsOpts = append(subsOpts, subscription.WithProvider(a.provider))
	}

	if o.redis {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, err
		}
		if redisCfg.Enabled() {
			if a.redis, err = redis.Connect(ctx, redisCfg); err != nil {
				return nil, err
			}
			subsOpts = append(subsOpts, subscription.WithDeduper(subscription.NewRedisDeduper(a.redis, a.cfg.WebhookDedupeTTL)))
		}
	}

	a.subs = subscription.NewService(repository.New(a.pool), a.catalog, subsOpts...)
	a.contacts = repository.NewContacts(a.pool)

	var store journal.Store
	switch a.cfg.JournalStore {
	case "postgres":
		a.journalDB = journal.OpenDB(a.pool)
		store = journal.NewPGStore(a.journalDB)
	case "memory":
		store = journal.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown JOURNAL_STORE %q", a.cfg.JournalStore)
	}
	a.journal = journal.NewService(store, a.subs, journal.WithLogger(a.log))

	return a, nil
}

// notifier delivers reminder emails through Postmark, or into EMAIL_DEV_DIR
// when no Postmark token is configured.
func (a *app) notifier() (*billing.EmailNotifier, error) {
	var cfg email.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	var sender email.EmailSender = email.NewDevSender(cfg.DevOutputDir)
	if cfg.UsePostmark() {
		pm, err := email.NewPostmarkClient(cfg)
		if err != nil {
			return nil, err
		}
		sender = pm
	} else {
		a.log.Warn("postmark is not configured, writing emails to disk", slog.String("dir", cfg.DevOutputDir))
	}

	return billing.NewEmailNotifier(sender, a.contacts,
		billing.WithSiteURL(a.cfg.SiteURL),
		billing.WithSupportEmail(cfg.SupportEmail),
		billing.WithNotifierLogger(a.log),
	), nil
}

func (a *app) jobs() (*billing.Jobs, error) {
	n, err := a.notifier()
	if err != nil {
		return nil, err
	}
	return billing.NewJobs(a.subs, n, a.jobsCfg,
		billing.WithJobsMetrics(a.metrics),
	), nil
}

func (a *app) close() {
	var errs []error
	if a.journalDB != nil {
		errs = append(errs, a.journalDB.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := errors.Join(errs...); err != nil && a.log != nil {
		a.log.Warn("failed to close connections", logger.Error(err))
	}
}
