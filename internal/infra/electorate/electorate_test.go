package electorate

import (
	"math/rand"
	"testing"
	"time"

	"github.com/crossroads-network/crossroads/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func newTestModel(t *testing.T, seed int64) *Model {
	t.Helper()
	return New(DefaultArchetypes, rand.New(rand.NewSource(seed)))
}

func balancedScenario() *domain.Scenario {
	return &domain.Scenario{
		ID:    "dilemma-1",
		Title: "The Harvest Pact",
		Options: []domain.Option{
			{ID: "a", Text: "Trade the surplus", Effects: domain.EffectVector{Economy: 2, Stability: -1}},
			{ID: "b", Text: "Store for winter", Effects: domain.EffectVector{Stability: 2, Morale: -1}},
			{ID: "c", Text: "Hold a festival", Effects: domain.EffectVector{Morale: 2, Freedom: 1}},
		},
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
}

// ─── Archetype Table ────────────────────────────────────────────────────────

func TestDefaultArchetypes_WeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, a := range DefaultArchetypes {
		sum += a.Weight
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("weights sum = %f, want 1.0", sum)
	}
}

func TestDefaultArchetypes_FiveEntries(t *testing.T) {
	if len(DefaultArchetypes) != 5 {
		t.Errorf("archetype count = %d, want 5", len(DefaultArchetypes))
	}
}

func TestDefaultArchetypes_ValidRanges(t *testing.T) {
	for _, a := range DefaultArchetypes {
		for axis, p := range a.Preferences {
			if p < -1 || p > 1 {
				t.Errorf("%s preference[%d] = %f outside [-1,1]", a.Name, axis, p)
			}
		}
		if a.RiskTolerance < 0 || a.RiskTolerance > 1 {
			t.Errorf("%s risk tolerance = %f outside [0,1]", a.Name, a.RiskTolerance)
		}
	}
}

// ─── Population Generation ──────────────────────────────────────────────────

func TestPopulation_SizeNearNominal(t *testing.T) {
	m := newTestModel(t, 42)
	voters := m.Population()
	// Independent per-archetype rounding may drift a little from 100.
	if len(voters) < 95 || len(voters) > 105 {
		t.Errorf("population = %d, want ~100", len(voters))
	}
}

func TestPopulation_JitterStaysClamped(t *testing.T) {
	m := newTestModel(t, 7)
	for _, v := range m.Population() {
		for axis, p := range v.Preferences {
			if p < -1 || p > 1 {
				t.Fatalf("voter %s preference[%d] = %f outside [-1,1]", v.Archetype, axis, p)
			}
		}
		if v.RiskTolerance < 0 || v.RiskTolerance > 1 {
			t.Fatalf("voter %s risk = %f outside [0,1]", v.Archetype, v.RiskTolerance)
		}
	}
}

func TestPopulation_Deterministic(t *testing.T) {
	a := newTestModel(t, 99).Population()
	b := newTestModel(t, 99).Population()
	if len(a) != len(b) {
		t.Fatalf("population sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("voter %d differs between identically seeded runs", i)
		}
	}
}

func TestPopulation_CountsFollowWeights(t *testing.T) {
	m := newTestModel(t, 3)
	counts := make(map[string]int)
	for _, v := range m.Population() {
		counts[v.Archetype]++
	}
	for _, a := range DefaultArchetypes {
		want := int(100*a.Weight + 0.5)
		if counts[a.Name] != want {
			t.Errorf("%s count = %d, want %d", a.Name, counts[a.Name], want)
		}
	}
}

// ─── Choice Simulation ──────────────────────────────────────────────────────

func TestPickOption_ReturnsScenarioOption(t *testing.T) {
	m := newTestModel(t, 11)
	s := balancedScenario()
	valid := map[string]bool{"a": true, "b": true, "c": true}
	for _, v := range m.Population() {
		pick := m.PickOption(v, s)
		if !valid[pick] {
			t.Fatalf("pick = %q, not a scenario option", pick)
		}
	}
}

func TestPickOption_RiskPull(t *testing.T) {
	// A maximally risk-tolerant voter with neutral preferences should favor
	// the high-magnitude option; a risk-averse one should avoid it.
	s := &domain.Scenario{
		ID: "risk",
		Options: []domain.Option{
			{ID: "bold", Effects: domain.EffectVector{Stability: 3, Economy: 3, Morale: 3}},
			{ID: "timid", Effects: domain.EffectVector{Stability: 1}},
			{ID: "nothing", Effects: domain.EffectVector{}},
		},
	}
	m := newTestModel(t, 5)

	bold := domain.SimulatedVoter{RiskTolerance: 1.0}
	timid := domain.SimulatedVoter{RiskTolerance: 0.0}

	boldPicks := make(map[string]int)
	timidPicks := make(map[string]int)
	for i := 0; i < 200; i++ {
		boldPicks[m.PickOption(bold, s)]++
		timidPicks[m.PickOption(timid, s)]++
	}
	if boldPicks["bold"] < 150 {
		t.Errorf("risk-tolerant voter picked bold only %d/200 times", boldPicks["bold"])
	}
	if timidPicks["bold"] > 10 {
		t.Errorf("risk-averse voter picked bold %d/200 times", timidPicks["bold"])
	}
}

func TestSimulate_TotalMatchesPopulation(t *testing.T) {
	m := newTestModel(t, 21)
	votes := m.Simulate(balancedScenario())
	total := 0
	for _, n := range votes {
		total += n
	}
	// One pick per voter.
	m2 := newTestModel(t, 21)
	if want := len(m2.Population()); total != want {
		t.Errorf("simulated votes = %d, want %d", total, want)
	}
}
