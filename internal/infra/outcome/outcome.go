// Package outcome maintains per-user streak and impact statistics updated
// after every scenario close, plus the winning-vote leaderboard mirror.
package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/store"
)

// ─── Key Scheme ─────────────────────────────────────────────────────────────

// leaderboardKey is the sorted set mirroring winning-vote counts.
const leaderboardKey = "leaderboard:wins"

func stateKey(userID string) string {
	return "outcome:" + userID
}

func appliedKey(scenarioID, userID string) string {
	return "outcome:applied:" + scenarioID + ":" + userID
}

// ─── Tracker ────────────────────────────────────────────────────────────────

// Tracker records scenario outcomes against per-user state. One outcome per
// (user, scenario) pair is applied; replays are skipped, which keeps the
// close fan-out safe to retry.
type Tracker struct {
	store store.Store
	now   func() time.Time
}

func NewTracker(s store.Store) *Tracker {
	return &Tracker{store: s, now: time.Now}
}

// SetClock overrides the clock, for tests.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// RecordOutcome applies one settled vote to the user's running statistics.
// The leaderboard mirror is a non-critical write: a failure there is logged
// and the state update still counts.
func (t *Tracker) RecordOutcome(ctx context.Context, userID, username, scenarioID string, won bool, impact int, at time.Time) error {
	claimed, err := t.store.SetNX(ctx, appliedKey(scenarioID, userID), "1", 0)
	if err != nil {
		return fmt.Errorf("claim outcome %s/%s: %w", scenarioID, userID, err)
	}
	if !claimed {
		log.Printf("[outcome] outcome for user %s on scenario %s already applied, skipping", userID, scenarioID)
		return nil
	}

	state, err := t.load(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &domain.UserOutcomeState{UserID: userID}
	}
	state.Username = username

	state.TotalVotes++
	if won {
		state.WinningVotes++
		state.CurrentStreak++
		if state.CurrentStreak > state.LongestStreak {
			state.LongestStreak = state.CurrentStreak
		}
	} else {
		state.CurrentStreak = 0
	}
	// Rolling mean over all settled votes, not just the recent window.
	state.AvgImpact = (state.AvgImpact*float64(state.TotalVotes-1) + float64(impact)) / float64(state.TotalVotes)

	state.RecentVotes = append(state.RecentVotes, domain.RecentVote{
		ScenarioID: scenarioID,
		Won:        won,
		Impact:     impact,
		CastAt:     at,
	})
	if len(state.RecentVotes) > domain.RecentWindowSize {
		state.RecentVotes = state.RecentVotes[len(state.RecentVotes)-domain.RecentWindowSize:]
	}
	refreshWindowCounts(state, t.now())

	if err := t.save(ctx, state); err != nil {
		return err
	}

	if err := t.store.SortedSetAdd(ctx, leaderboardKey, userID, float64(state.WinningVotes)); err != nil {
		log.Printf("[outcome] leaderboard update for user %s failed: %v", userID, err)
	}
	return nil
}

// State returns the user's outcome statistics with the time-window counts
// recomputed against the current clock. Unknown users get a zero state.
func (t *Tracker) State(ctx context.Context, userID string) (*domain.UserOutcomeState, error) {
	state, err := t.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &domain.UserOutcomeState{UserID: userID}, nil
	}
	refreshWindowCounts(state, t.now())
	return state, nil
}

// Rank returns the user's 1-based leaderboard position by winning votes.
// Rank reads are non-critical: any storage failure degrades to 0 (unranked)
// rather than failing the caller.
func (t *Tracker) Rank(ctx context.Context, userID string) int {
	rank, err := t.store.SortedSetRank(ctx, leaderboardKey, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[outcome] leaderboard rank read for user %s failed: %v", userID, err)
		}
		return 0
	}
	return int(rank) + 1
}

func (t *Tracker) load(ctx context.Context, userID string) (*domain.UserOutcomeState, error) {
	raw, err := t.store.Get(ctx, stateKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load outcome state for user %s: %w", userID, err)
	}
	var state domain.UserOutcomeState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode outcome state for user %s: %w", userID, err)
	}
	return &state, nil
}

func (t *Tracker) save(ctx context.Context, state *domain.UserOutcomeState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode outcome state for user %s: %w", state.UserID, err)
	}
	if err := t.store.Set(ctx, stateKey(state.UserID), string(raw), 0); err != nil {
		return fmt.Errorf("save outcome state for user %s: %w", state.UserID, err)
	}
	return nil
}

// refreshWindowCounts recomputes the daily/weekly/monthly vote counts from
// the recent-vote window against fixed cutoffs behind now.
func refreshWindowCounts(state *domain.UserOutcomeState, now time.Time) {
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	month := now.Add(-30 * 24 * time.Hour)

	state.DailyVotes, state.WeeklyVotes, state.MonthlyVotes = 0, 0, 0
	for _, v := range state.RecentVotes {
		if v.CastAt.After(day) {
			state.DailyVotes++
		}
		if v.CastAt.After(week) {
			state.WeeklyVotes++
		}
		if v.CastAt.After(month) {
			state.MonthlyVotes++
		}
	}
}
