// Package billing exposes the subscription service to the outside world:
// the user-facing JSON API, gateway webhooks, reminder emails, Prometheus
// metrics and the periodic jobs that drive expiry, reminders and usage
// resets.
//
// Routes are split in two groups. The plan catalog and gateway webhooks
// (PublicRoutes, or PlansHandler and WebhookHandler individually) must not
// sit behind authentication. Routes serves the current user's subscription
// and expects auth.Middleware upstream.
//
//	h := billing.NewHandler(subs,
//		billing.WithLogger(log),
//		billing.WithMetrics(metrics),
//		billing.WithProviderName(string(provider.Method())),
//	)
//	r.Mount("/", h.PublicRoutes())
//	r.With(auth.Middleware(resolver)).Mount("/subscription", h.Routes())
package billing
