package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/diary/pkg/config"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

// appConfig holds the settings that belong to the binary rather than to a
// single package.
type appConfig struct {
	Env              string        `env:"APP_ENV" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL"`
	SiteURL          string        `env:"SITE_URL" envDefault:"http://localhost:8080"`
	UserHeader       string        `env:"AUTH_USER_HEADER" envDefault:"X-User-ID"`
	BillingProvider  string        `env:"BILLING_PROVIDER"`
	PlansFile        string        `env:"PLANS_FILE"`
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	WebhookDedupeTTL time.Duration `env:"WEBHOOK_DEDUPE_TTL" envDefault:"72h"`
	JournalStore     string        `env:"JOURNAL_STORE" envDefault:"postgres"`
}

const (
	providerStripe = "stripe"
	providerPaddle = "paddle"
	providerSigned = "signed"
)

// loadCatalog reads plans from PLANS_FILE, or the built-in catalog.
func loadCatalog(ctx context.Context, cfg appConfig) (*subscription.Catalog, error) {
	src := subscription.NewInMemSource(subscription.DefaultPlans()...)
	if cfg.PlansFile != "" {
		src = subscription.NewYAMLSource(cfg.PlansFile)
	}
	return subscription.LoadCatalog(ctx, src)
}

// newProvider builds the configured payment gateway. An empty
// BILLING_PROVIDER disables payments.
func newProvider(cfg appConfig) (subscription.Provider, error) {
	switch cfg.BillingProvider {
	case "":
		return nil, nil
	case providerStripe:
		var c subscription.StripeConfig
		if err := config.Load(&c); err != nil {
			return nil, err
		}
		return subscription.NewStripeProvider(c)
	case providerPaddle:
		var c subscription.PaddleConfig
		if err := config.Load(&c); err != nil {
			return nil, err
		}
		return subscription.NewPaddleProvider(c)
	case providerSigned:
		var c subscription.SignedConfig
		if err := config.Load(&c); err != nil {
			return nil, err
		}
		return subscription.NewSignedProvider(c)
	}
	return nil, fmt.Errorf("unknown BILLING_PROVIDER %q", cfg.BillingProvider)
}
