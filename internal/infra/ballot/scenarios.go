package ballot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/store"
)

// ─── Scenario Storage ───────────────────────────────────────────────────────

const currentScenarioKey = "scenario:current"

func scenarioKey(id string) string {
	return "scenario:" + id
}

// Scenarios persists published scenarios and tracks the single currently
// active one. Scenario authoring and balancing happen upstream; only
// approved scenarios are published here.
type Scenarios struct {
	store store.Store
}

// NewScenarios creates scenario storage over the given store.
func NewScenarios(s store.Store) *Scenarios {
	return &Scenarios{store: s}
}

// Publish freezes an approved scenario, marks it active, and makes it the
// current scenario. The approval invariants are re-checked at this boundary.
func (s *Scenarios) Publish(ctx context.Context, scenario *domain.Scenario) error {
	if err := scenario.ValidateApproved(); err != nil {
		return err
	}
	scenario.Active = true

	raw, err := json.Marshal(scenario)
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := s.store.Set(ctx, scenarioKey(scenario.ID), string(raw), 0); err != nil {
		return fmt.Errorf("persist scenario: %w", err)
	}
	if err := s.store.Set(ctx, currentScenarioKey, scenario.ID, 0); err != nil {
		return fmt.Errorf("set current scenario: %w", err)
	}
	return nil
}

// Current returns the active scenario, or nil when none is published.
func (s *Scenarios) Current(ctx context.Context) (*domain.Scenario, error) {
	id, err := s.store.Get(ctx, currentScenarioKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get returns a scenario by id, or nil when unknown.
func (s *Scenarios) Get(ctx context.Context, id string) (*domain.Scenario, error) {
	raw, err := s.store.Get(ctx, scenarioKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var scenario domain.Scenario
	if err := json.Unmarshal([]byte(raw), &scenario); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", id, err)
	}
	return &scenario, nil
}

// Deactivate clears the active flag after a close. The scenario record
// itself is kept for history.
func (s *Scenarios) Deactivate(ctx context.Context, id string) error {
	scenario, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if scenario == nil {
		return nil
	}
	scenario.Active = false
	raw, err := json.Marshal(scenario)
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := s.store.Set(ctx, scenarioKey(id), string(raw), 0); err != nil {
		return fmt.Errorf("persist scenario: %w", err)
	}

	current, err := s.store.Get(ctx, currentScenarioKey)
	if err == nil && current == id {
		return s.store.Delete(ctx, currentScenarioKey)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
