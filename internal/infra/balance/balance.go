// Package balance implements pre-publication scenario balancing: scoring how
// evenly a simulated vote distributes across the three options, nudging
// effect vectors when one option dominates, and the bounded loop that drives
// both until the scenario is publishable.
package balance

import (
	"fmt"
	"math"

	"github.com/crossroads-network/crossroads/internal/domain"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	// MonotonyThreshold is the dominance percentage at/above which a
	// distribution counts as monopolized by one option.
	MonotonyThreshold = 70

	// MonotonyPenalty is subtracted from the distribution score when the
	// distribution is monotonous.
	MonotonyPenalty = 0.3

	// AcceptScore is the minimum balance score for publication.
	AcceptScore = 0.6

	// MaxAttempts is the total simulation-round budget of the loop
	// (at most MaxAttempts-1 adjustment rounds).
	MaxAttempts = 3
)

// ─── Scorer ─────────────────────────────────────────────────────────────────

// Verdict is the balance assessment of one simulated vote distribution.
type Verdict struct {
	Score        float64 // [0, 1], rounded to 2 decimals
	DominancePct int     // share of the single most-voted option
	IsMonotonous bool
	TotalVotes   int
}

// Score converts an aggregate vote distribution into a balance verdict.
//
// distributionScore = max(0, 1 − stddev / (total/2)); the denominator is the
// theoretical maximum standard deviation, reached when every vote lands on
// one option. Monotony (dominance ≥ 70%) costs a flat penalty.
func Score(optionVotes map[string]int) Verdict {
	total := 0
	maxVotes := 0
	for _, n := range optionVotes {
		total += n
		if n > maxVotes {
			maxVotes = n
		}
	}
	if total == 0 {
		return Verdict{}
	}

	mean := float64(total) / float64(domain.OptionCount)
	variance := 0.0
	for _, n := range optionVotes {
		d := float64(n) - mean
		variance += d * d
	}
	// Options with zero recorded votes still contribute to the population
	// variance as deviations from the mean.
	for i := len(optionVotes); i < domain.OptionCount; i++ {
		variance += mean * mean
	}
	variance /= domain.OptionCount
	stddev := math.Sqrt(variance)

	distScore := 1 - stddev/(float64(total)/2)
	if distScore < 0 {
		distScore = 0
	}

	dominance := int(math.Round(100 * float64(maxVotes) / float64(total)))
	monotonous := dominance >= MonotonyThreshold

	score := distScore
	if monotonous {
		score -= MonotonyPenalty
	}
	if score < 0 {
		score = 0
	}

	return Verdict{
		Score:        math.Round(score*100) / 100,
		DominancePct: dominance,
		IsMonotonous: monotonous,
		TotalVotes:   total,
	}
}

// ─── Adjuster ───────────────────────────────────────────────────────────────

// Adjust mutates the dominant option's effects downward and the weakest
// option's upward, leaving the third option untouched. Ties for dominant or
// weakest resolve to the first option in definition order. Returns
// human-readable descriptions of every mutation applied.
func Adjust(scenario *domain.Scenario, optionVotes map[string]int) []string {
	dominant, weakest := pickExtremes(scenario, optionVotes)
	if dominant == nil || weakest == nil || dominant == weakest {
		return nil
	}

	var log []string
	log = append(log, dampen(dominant)...)
	log = append(log, boost(weakest)...)
	return log
}

// pickExtremes finds the most- and least-voted options in definition order.
func pickExtremes(scenario *domain.Scenario, votes map[string]int) (dominant, weakest *domain.Option) {
	for i := range scenario.Options {
		opt := &scenario.Options[i]
		n := votes[opt.ID]
		if dominant == nil || n > votes[dominant.ID] {
			dominant = opt
		}
		if weakest == nil || n < votes[weakest.ID] {
			weakest = opt
		}
	}
	return dominant, weakest
}

// dampen reduces the appeal of the dominant option: positive axes step down
// (floored at 0), zero axes go negative, negatives stay.
func dampen(opt *domain.Option) []string {
	var log []string
	axes := opt.Effects.Axes()
	for i, v := range axes {
		switch {
		case v > 0:
			opt.Effects.SetAxis(i, v-1)
			log = append(log, fmt.Sprintf("dampened %s: %s %d → %d", opt.ID, domain.AxisNames[i], v, v-1))
		case v == 0:
			opt.Effects.SetAxis(i, -1)
			log = append(log, fmt.Sprintf("dampened %s: %s 0 → -1", opt.ID, domain.AxisNames[i]))
		}
	}
	return log
}

// boost raises the appeal of the weakest option: negative axes step toward
// zero, zero axes go positive, positives below the bound step up.
func boost(opt *domain.Option) []string {
	var log []string
	axes := opt.Effects.Axes()
	for i, v := range axes {
		switch {
		case v < 0:
			opt.Effects.SetAxis(i, v+1)
			log = append(log, fmt.Sprintf("boosted %s: %s %d → %d", opt.ID, domain.AxisNames[i], v, v+1))
		case v == 0:
			opt.Effects.SetAxis(i, 1)
			log = append(log, fmt.Sprintf("boosted %s: %s 0 → 1", opt.ID, domain.AxisNames[i]))
		case v < domain.EffectBound:
			opt.Effects.SetAxis(i, v+1)
			log = append(log, fmt.Sprintf("boosted %s: %s %d → %d", opt.ID, domain.AxisNames[i], v, v+1))
		}
	}
	return log
}
