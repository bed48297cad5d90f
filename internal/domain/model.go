// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture: it depends on nothing.
package domain

import (
	"fmt"
	"time"
)

// ─── Effect Vector ──────────────────────────────────────────────────────────

// EffectBound is the per-axis limit for option effects.
const EffectBound = 3

// EffectVector is an option's numeric effect on the four world axes.
// Axes are always present; an absent effect is simply zero.
type EffectVector struct {
	Stability int `json:"stability"`
	Economy   int `json:"economy"`
	Morale    int `json:"morale"`
	Freedom   int `json:"freedom"`
}

// AxisNames lists the world axes in canonical order.
var AxisNames = [4]string{"stability", "economy", "morale", "freedom"}

// Axes returns the effect values in canonical axis order.
func (e EffectVector) Axes() [4]int {
	return [4]int{e.Stability, e.Economy, e.Morale, e.Freedom}
}

// SetAxis sets the value of the axis at the given canonical index.
func (e *EffectVector) SetAxis(i, v int) {
	switch i {
	case 0:
		e.Stability = v
	case 1:
		e.Economy = v
	case 2:
		e.Morale = v
	case 3:
		e.Freedom = v
	}
}

// Magnitude returns the sum of absolute effect values across all axes.
func (e EffectVector) Magnitude() int {
	m := 0
	for _, v := range e.Axes() {
		if v < 0 {
			m -= v
		} else {
			m += v
		}
	}
	return m
}

// Clamp forces every axis back into [-EffectBound, +EffectBound].
func (e *EffectVector) Clamp() {
	for i, v := range e.Axes() {
		if v < -EffectBound {
			e.SetAxis(i, -EffectBound)
		} else if v > EffectBound {
			e.SetAxis(i, EffectBound)
		}
	}
}

// Validate checks that every axis stays within [-EffectBound, +EffectBound].
func (e EffectVector) Validate() error {
	for i, v := range e.Axes() {
		if v < -EffectBound || v > EffectBound {
			return fmt.Errorf("%w: %s = %d", ErrEffectOutOfRange, AxisNames[i], v)
		}
	}
	return nil
}

// ─── Scenario & Options ─────────────────────────────────────────────────────

// OptionCount is the fixed number of options per scenario.
const OptionCount = 3

// Option is one selectable choice with a bounded effect on the world axes.
type Option struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Description string       `json:"description"`
	Effects     EffectVector `json:"effects"`
	Pros        []string     `json:"pros,omitempty"` // display only
	Cons        []string     `json:"cons,omitempty"` // display only
}

// Scenario is the published decision: exactly three options, a narrative,
// and an expiry after which no further votes are admitted.
type Scenario struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Narrative string    `json:"narrative"`
	Theme     string    `json:"theme,omitempty"`
	Options   []Option  `json:"options"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// Validate enforces the structural invariants of a scenario.
func (s *Scenario) Validate() error {
	if len(s.Options) != OptionCount {
		return fmt.Errorf("%w: got %d", ErrOptionCount, len(s.Options))
	}
	for i := range s.Options {
		if s.Options[i].ID == "" {
			return fmt.Errorf("option %d has no id", i)
		}
		if err := s.Options[i].Effects.Validate(); err != nil {
			return fmt.Errorf("option %s: %w", s.Options[i].ID, err)
		}
	}
	return nil
}

// ValidateApproved applies the stricter invariants required at publication:
// structural validity plus no two byte-identical effect vectors.
func (s *Scenario) ValidateApproved() error {
	if err := s.Validate(); err != nil {
		return err
	}
	for i := 0; i < len(s.Options); i++ {
		for j := i + 1; j < len(s.Options); j++ {
			if s.Options[i].Effects == s.Options[j].Effects {
				return fmt.Errorf("%w: options %s and %s",
					ErrDegenerateOptions, s.Options[i].ID, s.Options[j].ID)
			}
		}
	}
	return nil
}

// OptionByID returns the option with the given id, or nil.
func (s *Scenario) OptionByID(id string) *Option {
	for i := range s.Options {
		if s.Options[i].ID == id {
			return &s.Options[i]
		}
	}
	return nil
}

// Expired reports whether voting has closed at the given time.
func (s *Scenario) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ─── Synthetic Electorate ───────────────────────────────────────────────────

// VoterArchetype is a fixed synthetic-voter personality template.
// Preferences are parallel to the effect-vector axes, in [-1, 1].
type VoterArchetype struct {
	Name          string     `json:"name"`
	Preferences   [4]float64 `json:"preferences"`
	RiskTolerance float64    `json:"risk_tolerance"` // [0, 1]
	Weight        float64    `json:"weight"`         // population fraction
}

// SimulatedVoter is one jittered instantiation of an archetype.
// It exists only for the duration of a simulation run.
type SimulatedVoter struct {
	Archetype     string
	Preferences   [4]float64
	RiskTolerance float64
}

// ─── Votes & Tallies ────────────────────────────────────────────────────────

// VoteSource identifies how a vote reached the system.
type VoteSource string

const (
	SourceComment VoteSource = "comment" // parsed from a comment
	SourceNative  VoteSource = "native"  // platform-native vote widget
	SourceWeb     VoteSource = "web"     // direct web submission
)

// VoteRecord is one user's immutable vote on a scenario.
type VoteRecord struct {
	ID         string     `json:"id"`
	ScenarioID string     `json:"scenario_id"`
	OptionID   string     `json:"option_id"`
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	CastAt     time.Time  `json:"cast_at"`
	Source     VoteSource `json:"source"`
}

// VoteTally aggregates per-option counts for one scenario.
// Invariant: TotalVotes == sum of OptionVotes at all times.
type VoteTally struct {
	ScenarioID   string         `json:"scenario_id"`
	OptionVotes  map[string]int `json:"option_votes"` // keys populated lazily
	TotalVotes   int            `json:"total_votes"`
	UniqueVoters int            `json:"unique_voters"` // derived, always recomputed
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
}

// RecomputeUniqueVoters derives the unique-voter count from the option sums.
// Under correct dedup one vote = one voter, so this equals TotalVotes; the
// field is kept for compatibility, never as an independent signal.
func (t *VoteTally) RecomputeUniqueVoters() {
	sum := 0
	for _, n := range t.OptionVotes {
		sum += n
	}
	t.UniqueVoters = sum
}

// LastVotePointer records a user's most recent vote. It is overwritten when
// the user votes on a different scenario; a vote on the same scenario as the
// pointer is a duplicate.
type LastVotePointer struct {
	UserID     string    `json:"user_id"`
	ScenarioID string    `json:"scenario_id"`
	OptionID   string    `json:"option_id"`
	VoteID     string    `json:"vote_id"`
	CastAt     time.Time `json:"cast_at"`
}

// VoteRequest is the vote-submission input contract.
type VoteRequest struct {
	ScenarioID string     `json:"scenario_id"`
	OptionID   string     `json:"option_id"`
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Source     VoteSource `json:"source"`
}

// VoteResponse is the vote-submission output contract.
type VoteResponse struct {
	IsValid bool        `json:"is_valid"`
	Reason  string      `json:"reason,omitempty"`
	Vote    *VoteRecord `json:"vote,omitempty"`
}

// ─── Close Processing ───────────────────────────────────────────────────────

// ProcessingState is the state of one scenario's closing operation.
type ProcessingState string

const (
	StateCollecting ProcessingState = "collecting"
	StateProcessing ProcessingState = "processing"
	StateCompleted  ProcessingState = "completed"
	StateFailed     ProcessingState = "failed"
)

// ProcessingStatus tracks a close operation. External readers poll it; it
// never gates vote admission (expiry time does that).
type ProcessingStatus struct {
	ScenarioID string          `json:"scenario_id"`
	State      ProcessingState `json:"state"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// CloseResult is returned to the external close trigger.
type CloseResult struct {
	ScenarioID        string       `json:"scenario_id"`
	Winner            Option       `json:"winner"`
	Tally             VoteTally    `json:"tally"`
	Summary           string       `json:"summary"`
	Effects           EffectVector `json:"effects"`
	ParticipationRate float64      `json:"participation_rate"`
}

// ─── User Outcome State ─────────────────────────────────────────────────────

// RecentWindowSize caps the rolling recent-vote window.
const RecentWindowSize = 30

// RecentVote is one entry in a user's rolling outcome window.
type RecentVote struct {
	ScenarioID string    `json:"scenario_id"`
	Won        bool      `json:"won"`
	Impact     int       `json:"impact"`
	CastAt     time.Time `json:"cast_at"`
}

// UserOutcomeState holds per-user streak and impact statistics.
type UserOutcomeState struct {
	UserID        string       `json:"user_id"`
	Username      string       `json:"username"`
	TotalVotes    int          `json:"total_votes"`
	WinningVotes  int          `json:"winning_votes"`
	CurrentStreak int          `json:"current_streak"`
	LongestStreak int          `json:"longest_streak"`
	AvgImpact     float64      `json:"avg_impact"`
	RecentVotes   []RecentVote `json:"recent_votes"`
	DailyVotes    int          `json:"daily_votes"`
	WeeklyVotes   int          `json:"weekly_votes"`
	MonthlyVotes  int          `json:"monthly_votes"`
}

// ─── Simulation & Balancing Results ─────────────────────────────────────────

// SimulationResult is one synthetic-electorate run over a scenario.
type SimulationResult struct {
	OptionVotes  map[string]int `json:"option_votes"`
	TotalVotes   int            `json:"total_votes"`
	Population   int            `json:"population"`
	BalanceScore float64        `json:"balance_score"`
	DominancePct int            `json:"dominance_pct"`
	IsMonotonous bool           `json:"is_monotonous"`
}

// BalanceReport is the outcome of the pre-publication balancing loop.
type BalanceReport struct {
	Scenario    *Scenario        `json:"scenario"`
	Result      SimulationResult `json:"result"`
	Attempts    int              `json:"attempts"`
	Accepted    bool             `json:"accepted"`
	Adjustments []string         `json:"adjustments,omitempty"`
}
