// Package electorate implements the synthetic voter model used to
// pre-validate scenario balance before publication.
//
// Five fixed archetypes describe the electorate. A simulation run
// instantiates a jittered population from them, scores each scenario option
// per voter, and aggregates the picks. All randomness flows through one
// injectable source so tests can pin a seed and assert exact outcomes.
package electorate

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"

	"github.com/crossroads-network/crossroads/internal/domain"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	// PopulationSize is the nominal synthetic population. Per-archetype
	// rounding may leave the actual total slightly off; that drift is
	// accepted, not corrected.
	PopulationSize = 100

	// PreferenceJitter is the uniform jitter applied to each preference axis.
	PreferenceJitter = 0.2

	// RiskJitter is the uniform jitter applied to risk tolerance.
	RiskJitter = 0.1

	// ChoiceNoise is the uniform perturbation added to each option score so
	// equally scored options do not tie deterministically.
	ChoiceNoise = 0.25
)

// ─── Archetypes ─────────────────────────────────────────────────────────────

// DefaultArchetypes is the fixed electorate composition. Preference axes are
// parallel to the effect vector: stability, economy, morale, freedom.
// Weights sum to 1.0.
var DefaultArchetypes = []domain.VoterArchetype{
	{
		Name:          "traditionalist",
		Preferences:   [4]float64{0.9, 0.2, 0.3, -0.4},
		RiskTolerance: 0.2,
		Weight:        0.25,
	},
	{
		Name:          "merchant",
		Preferences:   [4]float64{0.1, 0.9, -0.1, 0.3},
		RiskTolerance: 0.6,
		Weight:        0.20,
	},
	{
		Name:          "idealist",
		Preferences:   [4]float64{-0.3, -0.2, 0.8, 0.9},
		RiskTolerance: 0.7,
		Weight:        0.20,
	},
	{
		Name:          "populist",
		Preferences:   [4]float64{0.2, 0.4, 0.9, 0.1},
		RiskTolerance: 0.5,
		Weight:        0.20,
	},
	{
		Name:          "anarchist",
		Preferences:   [4]float64{-0.9, -0.3, 0.1, 0.9},
		RiskTolerance: 0.9,
		Weight:        0.15,
	},
}

// ─── Model ──────────────────────────────────────────────────────────────────

// Model generates synthetic populations and simulates their votes.
// Not safe for concurrent use; each balancing run owns its own Model.
type Model struct {
	archetypes []domain.VoterArchetype
	population int
	rng        *rand.Rand
}

// New creates a Model over the given archetype table.
// Pass a seeded rand for reproducible runs.
func New(archetypes []domain.VoterArchetype, rng *rand.Rand) *Model {
	return &Model{
		archetypes: archetypes,
		population: PopulationSize,
		rng:        rng,
	}
}

// NewDefault creates a Model over DefaultArchetypes with an entropy-seeded
// random source.
func NewDefault() *Model {
	return New(DefaultArchetypes, rand.New(rand.NewSource(entropySeed())))
}

// entropySeed derives an int64 seed from crypto/rand.
func entropySeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 1 // degraded but functional; simulation quality only
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// PopulationSize returns the nominal population size.
func (m *Model) PopulationSize() int { return m.population }

// SetPopulation overrides the nominal population size. Values under 1 are
// ignored.
func (m *Model) SetPopulation(n int) {
	if n > 0 {
		m.population = n
	}
}

// Population instantiates the jittered synthetic electorate: round(weight ×
// population) voters per archetype, each axis jittered ±PreferenceJitter and
// risk tolerance jittered ±RiskJitter, clamped back into valid range.
func (m *Model) Population() []domain.SimulatedVoter {
	voters := make([]domain.SimulatedVoter, 0, m.population)
	for _, a := range m.archetypes {
		count := int(float64(m.population)*a.Weight + 0.5)
		for i := 0; i < count; i++ {
			var prefs [4]float64
			for axis := range prefs {
				prefs[axis] = clamp(a.Preferences[axis]+m.jitter(PreferenceJitter), -1, 1)
			}
			voters = append(voters, domain.SimulatedVoter{
				Archetype:     a.Name,
				Preferences:   prefs,
				RiskTolerance: clamp(a.RiskTolerance+m.jitter(RiskJitter), 0, 1),
			})
		}
	}
	return voters
}

// PickOption scores each option for one voter and returns the pick.
//
// Score = dot(effects, preferences)
//   - magnitude × (riskTolerance − 0.5)   risk pull/push
//   - uniform noise ±ChoiceNoise
//
// The scan replaces the current best only on a strictly greater score, so
// the first-seen option wins exact ties.
func (m *Model) PickOption(voter domain.SimulatedVoter, scenario *domain.Scenario) string {
	bestID := ""
	bestScore := 0.0
	for i := range scenario.Options {
		opt := &scenario.Options[i]
		score := m.scoreOption(voter, opt)
		if bestID == "" || score > bestScore {
			bestID = opt.ID
			bestScore = score
		}
	}
	return bestID
}

func (m *Model) scoreOption(voter domain.SimulatedVoter, opt *domain.Option) float64 {
	score := 0.0
	for i, v := range opt.Effects.Axes() {
		score += float64(v) * voter.Preferences[i]
	}
	score += float64(opt.Effects.Magnitude()) * (voter.RiskTolerance - 0.5)
	score += m.jitter(ChoiceNoise)
	return score
}

// Simulate runs the full population against a scenario and aggregates picks.
func (m *Model) Simulate(scenario *domain.Scenario) map[string]int {
	votes := make(map[string]int, len(scenario.Options))
	voters := m.Population()
	for _, voter := range voters {
		votes[m.PickOption(voter, scenario)]++
	}
	return votes
}

// jitter returns a uniform value in [-bound, +bound].
func (m *Model) jitter(bound float64) float64 {
	return (m.rng.Float64()*2 - 1) * bound
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
