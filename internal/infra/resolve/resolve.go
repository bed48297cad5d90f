// Package resolve turns a closed tally into an outcome: winner resolution,
// the one-line summary, and the close orchestration with per-user fan-out.
package resolve

import (
	"fmt"
	"math"
	"strings"

	"github.com/crossroads-network/crossroads/internal/domain"
)

// ─── Winner Resolution ──────────────────────────────────────────────────────

// ResolveWinner picks the winning option from a closed tally. Options are
// scanned in definition order and only a strictly greater count displaces
// the leader, so ties always go to the earliest-defined option. With zero
// votes the first option wins by default.
func ResolveWinner(scenario *domain.Scenario, tally domain.VoteTally) domain.Option {
	winner := scenario.Options[0]
	best := tally.OptionVotes[winner.ID]
	for _, opt := range scenario.Options[1:] {
		if n := tally.OptionVotes[opt.ID]; n > best {
			winner = opt
			best = n
		}
	}
	return winner
}

// ─── Summary ────────────────────────────────────────────────────────────────

// Summarize renders the one-line outcome narrative for the winning option.
func Summarize(winner domain.Option, tally domain.VoteTally) string {
	pct := 0
	if tally.TotalVotes > 0 {
		pct = int(math.Round(100 * float64(tally.OptionVotes[winner.ID]) / float64(tally.TotalVotes)))
	}

	var prefix string
	switch {
	case pct >= 70:
		prefix = "The community overwhelmingly chose to"
	case pct >= 60:
		prefix = "The community decided to"
	case pct >= 50:
		prefix = "After deliberation, the community chose to"
	default:
		prefix = "In a close decision, the community chose to"
	}

	return fmt.Sprintf("%s %s. %s", prefix, cleanOptionText(winner.Text), winner.Description)
}

// cleanOptionText lower-cases the option text and strips a leading "to " or
// "the " so it reads naturally after the narrative prefix.
func cleanOptionText(text string) string {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	for _, lead := range []string{"to ", "the "} {
		if strings.HasPrefix(cleaned, lead) {
			cleaned = strings.TrimPrefix(cleaned, lead)
			break
		}
	}
	return cleaned
}
