package balance

import (
	"math/rand"
	"testing"

	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/electorate"
)

// ─── Fake Simulator ─────────────────────────────────────────────────────────

// scriptedSimulator returns canned distributions in sequence, repeating the
// last one when the script runs out.
type scriptedSimulator struct {
	script []map[string]int
	calls  int
}

func (s *scriptedSimulator) Simulate(*domain.Scenario) map[string]int {
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	out := make(map[string]int, len(s.script[i]))
	for k, v := range s.script[i] {
		out[k] = v
	}
	return out
}

func (s *scriptedSimulator) PopulationSize() int { return 100 }

// ─── Loop Tests ─────────────────────────────────────────────────────────────

func TestLoop_AcceptsFirstAttempt(t *testing.T) {
	sim := &scriptedSimulator{script: []map[string]int{
		{"a": 33, "b": 33, "c": 34},
	}}
	s := scenarioWithEffects(
		domain.EffectVector{Stability: 1},
		domain.EffectVector{Economy: 1},
		domain.EffectVector{Morale: 1},
	)
	report, err := NewLoop(sim).Run(s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Accepted {
		t.Error("balanced scenario not accepted")
	}
	if report.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", report.Attempts)
	}
	if len(report.Adjustments) != 0 {
		t.Errorf("adjustments = %v, want none on first-attempt accept", report.Adjustments)
	}
	if sim.calls != 1 {
		t.Errorf("simulation rounds = %d, want 1", sim.calls)
	}
}

func TestLoop_AdjustsThenAccepts(t *testing.T) {
	sim := &scriptedSimulator{script: []map[string]int{
		{"a": 80, "b": 15, "c": 5},  // monotonous
		{"a": 35, "b": 33, "c": 32}, // balanced after one adjustment
	}}
	s := scenarioWithEffects(
		domain.EffectVector{Stability: 2},
		domain.EffectVector{Economy: 1},
		domain.EffectVector{Morale: -1},
	)
	report, err := NewLoop(sim).Run(s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Accepted {
		t.Error("scenario not accepted after adjustment")
	}
	if report.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", report.Attempts)
	}
	if len(report.Adjustments) == 0 {
		t.Error("adjustment log empty after an adjustment round")
	}
}

func TestLoop_ExhaustsBudget(t *testing.T) {
	sim := &scriptedSimulator{script: []map[string]int{
		{"a": 90, "b": 8, "c": 2}, // hopeless every round
	}}
	s := scenarioWithEffects(
		domain.EffectVector{Stability: 3, Economy: 3},
		domain.EffectVector{Economy: 1},
		domain.EffectVector{Morale: -1},
	)
	report, err := NewLoop(sim).Run(s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Accepted {
		t.Error("hopeless scenario accepted")
	}
	if report.Attempts != MaxAttempts {
		t.Errorf("attempts = %d, want %d", report.Attempts, MaxAttempts)
	}
	if sim.calls != MaxAttempts {
		t.Errorf("simulation rounds = %d, want exactly %d", sim.calls, MaxAttempts)
	}
	// The final re-simulation result is returned regardless of score.
	if report.Result.TotalVotes != 100 {
		t.Errorf("final result total = %d, want 100", report.Result.TotalVotes)
	}
}

func TestLoop_ConfiguredThresholds(t *testing.T) {
	// Score ≈ 0.59: fails the default 0.6 bar but passes a lowered one.
	sim := &scriptedSimulator{script: []map[string]int{
		{"a": 60, "b": 30, "c": 10},
	}}
	s := scenarioWithEffects(
		domain.EffectVector{Stability: 1},
		domain.EffectVector{Economy: 1},
		domain.EffectVector{Morale: 1},
	)
	loop := NewLoop(sim)
	loop.SetAcceptScore(0.3)
	loop.SetMaxAttempts(1)

	report, err := loop.Run(s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Accepted {
		t.Error("scenario not accepted at lowered threshold")
	}
	if sim.calls != 1 {
		t.Errorf("simulation rounds = %d, want 1", sim.calls)
	}

	// Out-of-range overrides are ignored.
	loop.SetAcceptScore(2.0)
	loop.SetMaxAttempts(0)
	if loop.acceptScore != 0.3 || loop.maxAttempts != 1 {
		t.Errorf("invalid overrides applied: score=%v attempts=%d", loop.acceptScore, loop.maxAttempts)
	}
}

func TestLoop_RejectsInvalidScenario(t *testing.T) {
	sim := &scriptedSimulator{script: []map[string]int{{"a": 1}}}
	s := scenarioWithEffects(domain.EffectVector{}, domain.EffectVector{}, domain.EffectVector{})
	s.Options = s.Options[:2]
	if _, err := NewLoop(sim).Run(s); err == nil {
		t.Fatal("expected error for 2-option scenario")
	}
	if sim.calls != 0 {
		t.Error("simulation ran against an invalid scenario")
	}
}

// TestLoop_TerminatesWithRealElectorate pins a seed and drives the loop with
// the real synthetic electorate to confirm the round budget holds end-to-end.
func TestLoop_TerminatesWithRealElectorate(t *testing.T) {
	model := electorate.New(electorate.DefaultArchetypes, rand.New(rand.NewSource(1234)))
	s := scenarioWithEffects(
		domain.EffectVector{Stability: 3, Economy: 3, Morale: 3}, // heavily dominant
		domain.EffectVector{Stability: -1},
		domain.EffectVector{Economy: -2, Freedom: -1},
	)
	report, err := NewLoop(model).Run(s)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Attempts > MaxAttempts {
		t.Errorf("attempts = %d, exceeds budget %d", report.Attempts, MaxAttempts)
	}
	if report.Accepted && (report.Result.BalanceScore < AcceptScore || report.Result.IsMonotonous) {
		t.Error("accepted report violates acceptance condition")
	}
	if !report.Accepted && report.Attempts != MaxAttempts {
		t.Error("rejected report without exhausting the budget")
	}
}
