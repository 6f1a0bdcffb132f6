package subscription

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

type inMemSource struct {
	mu    sync.RWMutex
	plans map[PlanID]Plan
}

// NewInMemSource returns an in-memory PlansSource holding a deep copy of the
// given plans. Panics when called without plans so the catalog can never be
// constructed empty by accident.
func NewInMemSource(plans ...Plan) PlansSource {
	if len(plans) == 0 {
		panic("subscription: at least one plan is required")
	}
	copied := make(map[PlanID]Plan, len(plans))
	for _, plan := range plans {
		copied[plan.ID] = clonePlan(plan)
	}
	return &inMemSource{plans: copied}
}

// NewDefaultSource returns an in-memory source with the built-in TaskFlow catalog.
func NewDefaultSource() PlansSource {
	return NewInMemSource(DefaultPlans()...)
}

func (s *inMemSource) Load(ctx context.Context) (map[PlanID]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make(map[PlanID]Plan, len(s.plans))
	for id, plan := range s.plans {
		copied[id] = clonePlan(plan)
	}
	return copied, nil
}

// clonePlan deep-copies a plan so callers cannot mutate the source's state.
func clonePlan(p Plan) Plan {
	p.Features = slices.Clone(p.Features)
	p.Limits = maps.Clone(p.Limits)
	return p
}

type yamlFileSource struct {
	path string
}

// NewYAMLFileSource returns a PlansSource that reads the catalog from a YAML
// file on every Load. The file holds a list of plans:
//
//	- id: starter
//	  name: Starter
//	  tier: 1
//	  price: {amount: 2900, currency: EUR}
//	  limits: {projects: 5, team_members: 3, storage: 5}
//	  trial_days: 14
func NewYAMLFileSource(path string) PlansSource {
	return &yamlFileSource{path: path}
}

func (s *yamlFileSource) Load(ctx context.Context) (map[PlanID]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", s.path, err)
	}

	var plans []Plan
	if err := yaml.Unmarshal(raw, &plans); err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", s.path, err)
	}

	out := make(map[PlanID]Plan, len(plans))
	for _, plan := range plans {
		if _, dup := out[plan.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %s", ErrInvalidPlanConfiguration, plan.ID)
		}
		out[plan.ID] = plan
	}
	return out, nil
}
