package subscription_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/subscription"
)

func TestPlan_Validate(t *testing.T) {
	t.Parallel()

	valid := subscription.Plan{
		ID: "pro", Name: "Pro", Type: subscription.PlanMonthly,
		Price: decimal.RequireFromString("4.99"), DurationDays: 30,
		MaxEntries: subscription.Unlimited, MaxReminders: 10,
	}

	tests := []struct {
		name   string
		mutate func(p *subscription.Plan)
		ok     bool
	}{
		{"valid", func(*subscription.Plan) {}, true},
		{"missing id", func(p *subscription.Plan) { p.ID = "" }, false},
		{"unknown type", func(p *subscription.Plan) { p.Type = "weekly" }, false},
		{"negative price", func(p *subscription.Plan) { p.Price = decimal.NewFromInt(-1) }, false},
		{"recurring without duration", func(p *subscription.Plan) { p.DurationDays = 0 }, false},
		{"free with price", func(p *subscription.Plan) { p.Type = subscription.PlanFree }, false},
		{"lifetime with duration", func(p *subscription.Plan) { p.Type = subscription.PlanLifetime }, false},
		{"limit below unlimited", func(p *subscription.Plan) { p.MaxReminders = -2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, subscription.ErrInvalidPlanConfiguration)
		})
	}
}

func TestPlan_EndDate(t *testing.T) {
	t.Parallel()

	catalog := subscription.MustCatalog(subscription.DefaultPlans()...)

	monthly, err := catalog.Get("pro-monthly")
	require.NoError(t, err)
	assert.Equal(t, t0.AddDate(0, 0, 30), monthly.EndDate(t0))

	free, err := catalog.Free()
	require.NoError(t, err)
	assert.Equal(t, t0.AddDate(subscription.SentinelYears, 0, 0), free.EndDate(t0))

	lifetime := subscription.Plan{Type: subscription.PlanLifetime}
	assert.Equal(t, t0.AddDate(subscription.SentinelYears, 0, 0), lifetime.EndDate(t0))
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	t.Run("rejects duplicates", func(t *testing.T) {
		t.Parallel()
		plans := subscription.DefaultPlans()
		_, err := subscription.NewCatalog(append(plans, plans[1]))
		assert.ErrorIs(t, err, subscription.ErrInvalidPlanConfiguration)
	})

	t.Run("rejects two free plans", func(t *testing.T) {
		t.Parallel()
		plans := subscription.DefaultPlans()
		second := plans[0]
		second.ID = "free-2"
		_, err := subscription.NewCatalog(append(plans, second))
		assert.ErrorIs(t, err, subscription.ErrInvalidPlanConfiguration)
	})

	t.Run("missing free plan", func(t *testing.T) {
		t.Parallel()
		c := subscription.MustCatalog(subscription.DefaultPlans()[1:]...)
		_, err := c.Free()
		assert.ErrorIs(t, err, subscription.ErrFreePlanMissing)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		c := subscription.MustCatalog(subscription.DefaultPlans()...)
		_, err := c.Get("enterprise")
		assert.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})

	t.Run("active sorted by price", func(t *testing.T) {
		t.Parallel()
		plans := subscription.DefaultPlans()
		plans[1], plans[2] = plans[2], plans[1]
		hidden := plans[1]
		hidden.ID = "legacy"
		hidden.Active = false
		c := subscription.MustCatalog(append(plans, hidden)...)

		var ids []string
		for _, p := range c.Active() {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []string{"free", "pro-monthly", "pro-yearly"}, ids)
		assert.Len(t, c.All(), 4)
	})
}

func TestParsePlansYAML(t *testing.T) {
	t.Parallel()

	doc := `
plans:
  - id: free
    name: Free
    type: free
    max_entries: 30
    max_reminders: 5
  - id: pro-monthly
    name: Pro Monthly
    type: monthly
    price: "4.99"
    duration_days: 30
    max_reminders: 50
    provider_price_id: price_123
  - id: legacy
    name: Legacy
    type: yearly
    price: "19.00"
    duration_days: 365
    active: false
`
	plans, err := subscription.ParsePlansYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, plans, 3)

	assert.Equal(t, int64(30), plans[0].MaxEntries)
	assert.True(t, plans[0].Price.IsZero())

	assert.True(t, plans[1].Price.Equal(decimal.RequireFromString("4.99")))
	assert.Equal(t, subscription.Unlimited, plans[1].MaxEntries)
	assert.Equal(t, "price_123", plans[1].ProviderPriceID)
	assert.True(t, plans[1].Active)

	assert.False(t, plans[2].Active)

	catalog, err := subscription.LoadCatalog(context.Background(), subscription.NewInMemSource(plans...))
	require.NoError(t, err)
	p, err := catalog.Get("pro-monthly")
	require.NoError(t, err)
	assert.Equal(t, subscription.DefaultCurrency, p.Currency)
}

func TestParsePlansYAML_Invalid(t *testing.T) {
	t.Parallel()

	_, err := subscription.ParsePlansYAML(strings.NewReader("plans:\n  - id: x\n    price: abc\n"))
	assert.Error(t, err)

	_, err = subscription.ParsePlansYAML(strings.NewReader("plans:\n  - id: x\n    colour: red\n"))
	assert.Error(t, err)
}

func TestLoadCatalog_SourceError(t *testing.T) {
	t.Parallel()

	_, err := subscription.LoadCatalog(context.Background(), subscription.NewYAMLSource("testdata/missing.yaml"))
	assert.ErrorIs(t, err, subscription.ErrFailedToLoadPlans)
	assert.False(t, errors.Is(err, subscription.ErrInvalidPlanConfiguration))
}
