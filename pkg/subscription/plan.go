package subscription

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Plan describes a subscription tier and its resource constraints.
// Tier is an explicit ordinal used for upgrade/downgrade classification; it
// is deliberately independent of both catalog ordering and price, so
// reordering the catalog or running a promotion cannot flip the
// classification of a plan change.
type Plan struct {
	ID        PlanID             `yaml:"id"`
	Name      string             `yaml:"name"`
	Tier      int                `yaml:"tier"`
	Price     Money              `yaml:"price"`
	Features  []string           `yaml:"features"`
	Limits    map[Resource]int64 `yaml:"limits"` // -1 represents unlimited
	TrialDays int                `yaml:"trial_days"`
}

// Limit returns the plan's limit for a resource.
func (p Plan) Limit(res Resource) (int64, bool) {
	limit, ok := p.Limits[res]
	return limit, ok
}

// Catalog is the immutable, process-wide plan table, loaded once at startup.
type Catalog struct {
	plans map[PlanID]Plan
	order []PlanID // sorted by tier for display
}

// PlansSource defines how plans are loaded into a catalog.
type PlansSource interface {
	Load(ctx context.Context) (map[PlanID]Plan, error)
}

// NewCatalog loads and validates plans from the given source.
func NewCatalog(ctx context.Context, src PlansSource) (*Catalog, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadPlans, err)
	}
	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	order := slices.Collect(maps.Keys(plans))
	slices.SortFunc(order, func(a, b PlanID) int {
		return plans[a].Tier - plans[b].Tier
	})

	return &Catalog{plans: plans, order: order}, nil
}

// Get looks up a plan by ID.
func (c *Catalog) Get(id PlanID) (Plan, error) {
	plan, ok := c.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// Plans returns all plans ordered by tier.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

// Classify compares two plans by tier.
func (c *Catalog) Classify(from, to PlanID) (PlanChange, error) {
	fromPlan, err := c.Get(from)
	if err != nil {
		return "", err
	}
	toPlan, err := c.Get(to)
	if err != nil {
		return "", err
	}

	switch {
	case toPlan.Tier > fromPlan.Tier:
		return PlanChangeUpgrade, nil
	case toPlan.Tier < fromPlan.Tier:
		return PlanChangeDowngrade, nil
	default:
		return PlanChangeLateral, nil
	}
}

func validatePlans(plans map[PlanID]Plan) error {
	if len(plans) == 0 {
		return fmt.Errorf("%w: catalog is empty", ErrInvalidPlanConfiguration)
	}

	tiers := make(map[int]PlanID, len(plans))
	for id, plan := range plans {
		if plan.ID != id {
			return fmt.Errorf("%w: map key %s != plan.ID %s", ErrInvalidPlanConfiguration, id, plan.ID)
		}
		if plan.TrialDays < 0 {
			return fmt.Errorf("%w: plan %s has negative trial days", ErrInvalidPlanConfiguration, id)
		}
		if other, taken := tiers[plan.Tier]; taken {
			return fmt.Errorf("%w: plans %s and %s share tier %d", ErrInvalidPlanConfiguration, other, id, plan.Tier)
		}
		tiers[plan.Tier] = id
	}
	return nil
}

// DefaultPlans returns the TaskFlow catalog: Starter, Pro and Enterprise
// monthly tiers with a 14-day trial each.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:    PlanStarter,
			Name:  "Starter",
			Tier:  1,
			Price: Money{Amount: 2900, Currency: "EUR"},
			Features: []string{
				"Up to 5 projects",
				"3 team members",
				"Basic reports",
				"Email support",
				"5GB storage",
			},
			Limits: map[Resource]int64{
				ResourceProjects:    5,
				ResourceTeamMembers: 3,
				ResourceStorage:     5,
			},
			TrialDays: 14,
		},
		{
			ID:    PlanPro,
			Name:  "Pro",
			Tier:  2,
			Price: Money{Amount: 7900, Currency: "EUR"},
			Features: []string{
				"Up to 20 projects",
				"10 team members",
				"Advanced reports",
				"Priority support",
				"25GB storage",
				"Custom fields",
				"API access",
			},
			Limits: map[Resource]int64{
				ResourceProjects:    20,
				ResourceTeamMembers: 10,
				ResourceStorage:     25,
			},
			TrialDays: 14,
		},
		{
			ID:    PlanEnterprise,
			Name:  "Enterprise",
			Tier:  3,
			Price: Money{Amount: 19900, Currency: "EUR"},
			Features: []string{
				"Unlimited projects",
				"Unlimited team members",
				"Custom reports",
				"Dedicated support",
				"Unlimited storage",
				"Custom fields",
				"API access",
				"SSO integration",
				"Advanced security",
				"SLA guarantee",
			},
			Limits: map[Resource]int64{
				ResourceProjects:    Unlimited,
				ResourceTeamMembers: Unlimited,
				ResourceStorage:     Unlimited,
			},
			TrialDays: 14,
		},
	}
}
