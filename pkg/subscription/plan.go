package subscription

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Plan describes a subscription tier and its entitlements.
// Plans are reference data owned by operators, never by end users.
type Plan struct {
	ID           string
	Name         string
	Type         PlanType
	Description  string
	Price        decimal.Decimal
	Currency     string
	DurationDays int   // 0 means lifetime
	MaxEntries   int64 // Unlimited (-1) for no cap
	MaxReminders int64
	Active       bool

	// ProviderPriceID is the gateway's catalog price identifier. When empty,
	// gateways that support it build an inline price from Price and Name.
	ProviderPriceID string
}

// IsFree reports whether the plan costs nothing.
func (p Plan) IsFree() bool {
	return p.Type == PlanFree || p.Price.IsZero()
}

func (p Plan) IsLifetime() bool {
	return p.DurationDays == 0
}

// Limit returns the plan's cap for res, or 0 for unknown resources.
func (p Plan) Limit(res Resource) int64 {
	switch res {
	case ResourceEntries:
		return p.MaxEntries
	case ResourceReminders:
		return p.MaxReminders
	}
	return 0
}

// EndDate returns when a subscription to p started at start ends.
// Lifetime and free plans get the far-future sentinel.
func (p Plan) EndDate(start time.Time) time.Time {
	if p.DurationDays <= 0 || p.Type == PlanFree {
		return start.AddDate(SentinelYears, 0, 0)
	}
	return start.AddDate(0, 0, p.DurationDays)
}

// DurationLabel renders the billing period for display.
func (p Plan) DurationLabel() string {
	switch {
	case p.DurationDays == 0:
		return "Lifetime"
	case p.DurationDays <= 31:
		return "Month"
	case p.DurationDays <= 366:
		return "Year"
	}
	return fmt.Sprintf("%d days", p.DurationDays)
}

// Validate checks the plan is internally consistent.
func (p Plan) Validate() error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !p.Type.Valid() {
		errs = append(errs, fmt.Errorf("unknown plan type %q", p.Type))
	}
	if p.Price.IsNegative() {
		errs = append(errs, errors.New("price must not be negative"))
	}
	if p.DurationDays < 0 {
		errs = append(errs, errors.New("duration_days must not be negative"))
	}
	if p.Type == PlanFree && !p.Price.IsZero() {
		errs = append(errs, errors.New("free plan must have zero price"))
	}
	if p.Type == PlanLifetime && p.DurationDays != 0 {
		errs = append(errs, errors.New("lifetime plan must have duration_days = 0"))
	}
	if (p.Type == PlanMonthly || p.Type == PlanYearly) && p.DurationDays == 0 {
		errs = append(errs, errors.New("recurring plan must have a positive duration"))
	}
	for _, l := range []int64{p.MaxEntries, p.MaxReminders} {
		if l < Unlimited {
			errs = append(errs, fmt.Errorf("limit %d is invalid, use -1 for unlimited", l))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: plan %q: %w", ErrInvalidPlanConfiguration, p.ID, errors.Join(errs...))
}

// Catalog is the immutable set of plans known to the service.
// It is built once at startup and injected wherever plans are looked up.
type Catalog struct {
	plans map[string]Plan
	order []string
}

// NewCatalog validates plans and indexes them by ID. At most one plan may be
// of type free. A catalog without a free plan is accepted; operations that
// need it fail with ErrFreePlanMissing.
func NewCatalog(plans []Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	var frees int
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %q", ErrInvalidPlanConfiguration, p.ID)
		}
		if p.Currency == "" {
			p.Currency = DefaultCurrency
		}
		if p.Type == PlanFree {
			frees++
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	if frees > 1 {
		return nil, fmt.Errorf("%w: more than one free plan", ErrInvalidPlanConfiguration)
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics on invalid input.
func MustCatalog(plans ...Plan) *Catalog {
	c, err := NewCatalog(plans)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the plan with id, active or not.
func (c *Catalog) Get(id string) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// Free returns the plan users are provisioned on and downgraded to.
func (c *Catalog) Free() (Plan, error) {
	for _, id := range c.order {
		if p := c.plans[id]; p.Type == PlanFree && p.Active {
			return p, nil
		}
	}
	return Plan{}, ErrFreePlanMissing
}

// ByType returns the first active plan of the given type.
func (c *Catalog) ByType(t PlanType) (Plan, error) {
	p, ok := lo.Find(c.All(), func(p Plan) bool { return p.Type == t && p.Active })
	if !ok {
		return Plan{}, fmt.Errorf("%w: type %s", ErrPlanNotFound, t)
	}
	return p, nil
}

// All returns every plan in declaration order.
func (c *Catalog) All() []Plan {
	return lo.Map(c.order, func(id string, _ int) Plan { return c.plans[id] })
}

// Active returns purchasable plans ordered by price, cheapest first.
func (c *Catalog) Active() []Plan {
	active := lo.Filter(c.All(), func(p Plan, _ int) bool { return p.Active })
	slices.SortStableFunc(active, func(a, b Plan) int { return a.Price.Cmp(b.Price) })
	return active
}

// DefaultPlans is the catalog used when no plans file is configured.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:           "free",
			Name:         "Free",
			Type:         PlanFree,
			Description:  "Basic diary with a monthly entry allowance.",
			Price:        decimal.Zero,
			Currency:     DefaultCurrency,
			MaxEntries:   30,
			MaxReminders: 5,
			Active:       true,
		},
		{
			ID:           "pro-monthly",
			Name:         "Pro Monthly",
			Type:         PlanMonthly,
			Description:  "Unlimited entries, billed monthly.",
			Price:        decimal.RequireFromString("4.99"),
			Currency:     DefaultCurrency,
			DurationDays: 30,
			MaxEntries:   Unlimited,
			MaxReminders: 50,
			Active:       true,
		},
		{
			ID:           "pro-yearly",
			Name:         "Pro Yearly",
			Type:         PlanYearly,
			Description:  "Unlimited entries, billed yearly.",
			Price:        decimal.RequireFromString("49.99"),
			Currency:     DefaultCurrency,
			DurationDays: 365,
			MaxEntries:   Unlimited,
			MaxReminders: 100,
			Active:       true,
		},
	}
}
