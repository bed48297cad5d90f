package balance

import (
	"log"

	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/observability"
)

// Simulator runs one synthetic-electorate pass over a scenario.
type Simulator interface {
	Simulate(*domain.Scenario) map[string]int
	PopulationSize() int
}

// Loop drives simulate, score, and adjust until the scenario is balanced or
// the attempt budget runs out. It mutates the scenario in place across
// attempts and always terminates within MaxAttempts simulation rounds.
// Authoring-time only, never on the live voting path.
type Loop struct {
	sim         Simulator
	maxAttempts int
	acceptScore float64
}

// NewLoop creates a balancing loop over the given simulator.
func NewLoop(sim Simulator) *Loop {
	return &Loop{sim: sim, maxAttempts: MaxAttempts, acceptScore: AcceptScore}
}

// SetAcceptScore overrides the acceptance threshold. Values outside (0, 1]
// are ignored.
func (l *Loop) SetAcceptScore(score float64) {
	if score > 0 && score <= 1 {
		l.acceptScore = score
	}
}

// SetMaxAttempts overrides the simulation budget. Values under 1 are ignored.
func (l *Loop) SetMaxAttempts(n int) {
	if n > 0 {
		l.maxAttempts = n
	}
}

// Run balances a candidate scenario. On acceptance the report carries the
// passing simulation; on budget exhaustion it carries the final re-simulated
// result for the mutated scenario, accepted or not.
func (l *Loop) Run(scenario *domain.Scenario) (domain.BalanceReport, error) {
	if err := scenario.Validate(); err != nil {
		return domain.BalanceReport{}, err
	}

	var adjustments []string
	var result domain.SimulationResult

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		votes := l.sim.Simulate(scenario)
		verdict := Score(votes)
		result = domain.SimulationResult{
			OptionVotes:  votes,
			TotalVotes:   verdict.TotalVotes,
			Population:   l.sim.PopulationSize(),
			BalanceScore: verdict.Score,
			DominancePct: verdict.DominancePct,
			IsMonotonous: verdict.IsMonotonous,
		}

		if verdict.Score >= l.acceptScore && !verdict.IsMonotonous {
			observability.BalanceAttempts.Observe(float64(attempt))
			return domain.BalanceReport{
				Scenario:    scenario,
				Result:      result,
				Attempts:    attempt,
				Accepted:    true,
				Adjustments: adjustments,
			}, nil
		}

		if attempt < l.maxAttempts {
			applied := Adjust(scenario, votes)
			adjustments = append(adjustments, applied...)
			log.Printf("[balance] attempt %d: score=%.2f dominance=%d%%, applied %d adjustments",
				attempt, verdict.Score, verdict.DominancePct, len(applied))
		}
	}

	// Budget exhausted: return the final mutated scenario regardless of score.
	observability.BalanceAttempts.Observe(float64(l.maxAttempts))
	log.Printf("[balance] budget exhausted: score=%.2f dominance=%d%%",
		result.BalanceScore, result.DominancePct)
	return domain.BalanceReport{
		Scenario:    scenario,
		Result:      result,
		Attempts:    l.maxAttempts,
		Accepted:    false,
		Adjustments: adjustments,
	}, nil
}
