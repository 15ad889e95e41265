package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PlansSource loads plan definitions.
type PlansSource interface {
	Load(ctx context.Context) ([]Plan, error)
}

// LoadCatalog reads src and builds a validated Catalog.
func LoadCatalog(ctx context.Context, src PlansSource) (*Catalog, error) {
	if src == nil {
		panic("subscription: PlansSource is required")
	}
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return NewCatalog(plans)
}

type inMemSource struct {
	plans []Plan
}

// NewInMemSource serves a fixed set of plans. The slice is copied.
func NewInMemSource(plans ...Plan) PlansSource {
	return &inMemSource{plans: append([]Plan(nil), plans...)}
}

func (s *inMemSource) Load(context.Context) ([]Plan, error) {
	return append([]Plan(nil), s.plans...), nil
}

type yamlSource struct {
	path string
}

// NewYAMLSource reads plans from a YAML file of the form:
//
//	plans:
//	  - id: pro-monthly
//	    name: Pro Monthly
//	    type: monthly
//	    price: "4.99"
//	    duration_days: 30
//	    max_entries: -1
//	    max_reminders: 50
func NewYAMLSource(path string) PlansSource {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(context.Context) ([]Plan, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePlansYAML(f)
}

type yamlPlans struct {
	Plans []yamlPlan `yaml:"plans"`
}

type yamlPlan struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	Description     string `yaml:"description"`
	Price           string `yaml:"price"`
	Currency        string `yaml:"currency"`
	DurationDays    int    `yaml:"duration_days"`
	MaxEntries      *int64 `yaml:"max_entries"`
	MaxReminders    *int64 `yaml:"max_reminders"`
	Active          *bool  `yaml:"active"`
	ProviderPriceID string `yaml:"provider_price_id"`
}

// ParsePlansYAML decodes a plans document. Omitted limits default to
// unlimited and omitted active flags default to true.
func ParsePlansYAML(r io.Reader) ([]Plan, error) {
	var doc yamlPlans
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode plans yaml: %w", err)
	}

	plans := make([]Plan, 0, len(doc.Plans))
	for i, yp := range doc.Plans {
		price := decimal.Zero
		if yp.Price != "" {
			p, err := decimal.NewFromString(yp.Price)
			if err != nil {
				return nil, fmt.Errorf("plan #%d (%s): invalid price %q: %w", i, yp.ID, yp.Price, err)
			}
			price = p
		}
		plan := Plan{
			ID:              yp.ID,
			Name:            yp.Name,
			Type:            PlanType(yp.Type),
			Description:     yp.Description,
			Price:           price,
			Currency:        yp.Currency,
			DurationDays:    yp.DurationDays,
			MaxEntries:      Unlimited,
			MaxReminders:    Unlimited,
			Active:          true,
			ProviderPriceID: yp.ProviderPriceID,
		}
		if yp.MaxEntries != nil {
			plan.MaxEntries = *yp.MaxEntries
		}
		if yp.MaxReminders != nil {
			plan.MaxReminders = *yp.MaxReminders
		}
		if yp.Active != nil {
			plan.Active = *yp.Active
		}
		plans = append(plans, plan)
	}
	return plans, nil
}
