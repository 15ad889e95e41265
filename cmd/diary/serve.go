package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/diary/pkg/config"
	"github.com/dmitrymomot/diary/pkg/httpserver"
	"github.com/dmitrymomot/diary/pkg/jobs"
	"github.com/dmitrymomot/diary/pkg/pg"
	"github.com/dmitrymomot/diary/pkg/redis"
	"github.com/dmitrymomot/diary/pkg/requestid"
	"github.com/dmitrymomot/diary/svc/auth"
	"github.com/dmitrymomot/diary/svc/billing"
	"github.com/dmitrymomot/diary/svc/journal"
)

func newServeCmd() *cobra.Command {
	var noJobs bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, !noJobs)
		},
	}
	cmd.Flags().BoolVar(&noJobs, "no-jobs", false, "serve HTTP only, without the periodic jobs")
	return cmd
}

func serve(ctx context.Context, runJobs bool) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := billing.NewMetrics(reg)

	a, err := newApp(ctx, withRedis(), withMetrics(metrics))
	if err != nil {
		return err
	}
	defer a.close()

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(a.log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, a.router(reg, metrics))
	})

	if runJobs {
		scheduler, err := a.scheduler()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	a.log.InfoContext(ctx, "diary started", slog.String("addr", httpCfg.Addr), slog.Bool("jobs", runJobs))
	return g.Wait()
}

func (a *app) router(reg *prometheus.Registry, metrics *billing.Metrics) http.Handler {
	checks := []httpserver.Check{pg.Healthcheck(a.pool)}
	if a.redis != nil {
		checks = append(checks, redis.Healthcheck(a.redis))
	}

	billingOpts := []billing.Option{billing.WithLogger(a.log), billing.WithMetrics(metrics)}
	if a.provider != nil {
		billingOpts = append(billingOpts, billing.WithProviderName(string(a.provider.Method())))
	}
	bh := billing.NewHandler(a.subs, billingOpts...)
	authenticate := auth.Middleware(auth.NewHeaderResolver(a.cfg.UserHeader),
		auth.WithProvisioner(a.subs),
		auth.WithLogger(a.log),
	)

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(a.log, checks...))
	r.Handle("/metrics", billing.MetricsHandler(reg))

	r.Get("/plans", bh.PlansHandler())
	r.Post("/webhooks/{provider}", bh.WebhookHandler())

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Mount("/subscription", bh.Routes())
		r.Mount("/", journal.NewHandler(a.journal, a.log))
	})
	return r
}

func (a *app) scheduler() (*jobs.Scheduler, error) {
	opts := []jobs.Option{jobs.WithLogger(a.log)}
	if a.redis != nil {
		opts = append(opts, jobs.WithLocker(redis.NewLocker(a.redis, "diary:")))
	}
	s := jobs.NewScheduler(opts...)

	j, err := a.jobs()
	if err != nil {
		return nil, err
	}
	if err := j.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}
