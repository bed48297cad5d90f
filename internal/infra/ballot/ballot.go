// Package ballot admits and records live votes.
//
// Validation and recording run on every vote submission from many
// independent callers with no shared in-process state; all coordination
// happens through the store. Dedup is decided by a set-if-not-exists claim
// so two racing submissions from one user cannot both count, and tally
// counters are storage-level atomic increments so concurrent votes from
// different users cannot lose updates.
package ballot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/store"
)

// ─── Key Scheme ─────────────────────────────────────────────────────────────

// TallyTotalField is the hash field holding the scenario's total vote count;
// per-option counts live under "opt:<id>".
const TallyTotalField = "total"

func claimKey(scenarioID, userID string) string {
	return fmt.Sprintf("vote:claim:%s:%s", scenarioID, userID)
}

func recordsKey(scenarioID string) string {
	return "vote:records:" + scenarioID
}

func tallyKey(scenarioID string) string {
	return "tally:" + scenarioID
}

func tallyMetaKey(scenarioID string) string {
	return "tally:meta:" + scenarioID
}

func lastVoteKey(userID string) string {
	return "lastvote:" + userID
}

func optionField(optionID string) string {
	return "opt:" + optionID
}

// ─── Validator ──────────────────────────────────────────────────────────────

// Validate admits or rejects a vote against the currently active scenario.
// Pure: the caller supplies the active scenario, the user's last-vote
// pointer (nil when absent), and the current time.
func Validate(active *domain.Scenario, last *domain.LastVotePointer, req domain.VoteRequest, now time.Time) error {
	if active == nil || !active.Active {
		return domain.ErrNoActiveScenario
	}
	if active.ID != req.ScenarioID {
		return domain.ErrScenarioMismatch
	}
	if active.Expired(now) {
		return domain.ErrScenarioExpired
	}
	if active.OptionByID(req.OptionID) == nil {
		return domain.ErrInvalidOption
	}
	if last != nil && last.ScenarioID == req.ScenarioID {
		return domain.ErrDuplicateVote
	}
	return nil
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// Ledger is the durable, deduplicated record of votes plus the live tally.
type Ledger struct {
	store store.Store
	seen  *seenFilter

	// Injectable for deterministic tests.
	now   func() time.Time
	newID func() string
}

// NewLedger creates a ledger over the given store.
func NewLedger(s store.Store) *Ledger {
	return &Ledger{
		store: s,
		seen:  newSeenFilter(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SetClock overrides the ledger clock. Test hook.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// SetIDFunc overrides vote-record id generation. Test hook.
func (l *Ledger) SetIDFunc(f func() string) { l.newID = f }

// Cast validates and records one vote. Validation failures come back in the
// response with a specific reason and a nil error; store failures on the
// critical path (claim, record, tally, pointer) propagate as errors; a
// silently lost vote is never acceptable.
func (l *Ledger) Cast(ctx context.Context, active *domain.Scenario, req domain.VoteRequest) (domain.VoteResponse, error) {
	now := l.now()

	// The pointer read is only needed when this process may already have
	// seen the pair; a negative from the filter is definitive, and the
	// claim below catches duplicates the filter never saw.
	var last *domain.LastVotePointer
	if l.seen.seen(req.ScenarioID, req.UserID) {
		var err error
		last, err = l.LastVote(ctx, req.UserID)
		if err != nil {
			return domain.VoteResponse{}, fmt.Errorf("read last-vote pointer: %w", err)
		}
	}

	if err := Validate(active, last, req, now); err != nil {
		return domain.VoteResponse{IsValid: false, Reason: err.Error()}, nil
	}

	vote := domain.VoteRecord{
		ID:         l.newID(),
		ScenarioID: req.ScenarioID,
		OptionID:   req.OptionID,
		UserID:     req.UserID,
		Username:   req.Username,
		CastAt:     now,
		Source:     req.Source,
	}

	// Claim the user's vote slot for this scenario. Under a race the store
	// admits exactly one writer; the loser is told "already voted", not
	// double-counted.
	won, err := l.store.SetNX(ctx, claimKey(req.ScenarioID, req.UserID), vote.ID, 0)
	if err != nil {
		return domain.VoteResponse{}, fmt.Errorf("claim vote slot: %w", err)
	}
	if !won {
		return domain.VoteResponse{IsValid: false, Reason: domain.ErrDuplicateVote.Error()}, nil
	}

	if err := l.persist(ctx, vote, now); err != nil {
		// Nothing counted for this vote yet. Release the slot so the user
		// can retry once the store recovers; holding it would reject every
		// retry as a duplicate while no vote exists.
		if delErr := l.store.Delete(ctx, claimKey(req.ScenarioID, req.UserID)); delErr != nil {
			log.Printf("[ballot] release vote slot %s/%s: %v", req.ScenarioID, req.UserID, delErr)
		}
		return domain.VoteResponse{}, err
	}
	l.seen.add(req.ScenarioID, req.UserID)

	return domain.VoteResponse{IsValid: true, Vote: &vote}, nil
}

// persist applies the three effects of an admitted vote: immutable record,
// atomic tally increments, and the overwritten last-vote pointer.
func (l *Ledger) persist(ctx context.Context, vote domain.VoteRecord, now time.Time) error {
	raw, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("encode vote record: %w", err)
	}
	if err := l.store.HashSet(ctx, recordsKey(vote.ScenarioID), vote.ID, string(raw)); err != nil {
		return fmt.Errorf("persist vote record: %w", err)
	}

	// Voting-start timestamp: first vote wins, later votes are no-ops.
	if _, err := l.store.SetNX(ctx, tallyMetaKey(vote.ScenarioID), now.UTC().Format(time.RFC3339Nano), 0); err != nil {
		return fmt.Errorf("mark voting start: %w", err)
	}

	if _, err := l.store.HashIncrBy(ctx, tallyKey(vote.ScenarioID), optionField(vote.OptionID), 1); err != nil {
		return fmt.Errorf("increment option tally: %w", err)
	}
	if _, err := l.store.HashIncrBy(ctx, tallyKey(vote.ScenarioID), TallyTotalField, 1); err != nil {
		return fmt.Errorf("increment total tally: %w", err)
	}

	pointer := domain.LastVotePointer{
		UserID:     vote.UserID,
		ScenarioID: vote.ScenarioID,
		OptionID:   vote.OptionID,
		VoteID:     vote.ID,
		CastAt:     vote.CastAt,
	}
	rawPtr, err := json.Marshal(pointer)
	if err != nil {
		return fmt.Errorf("encode last-vote pointer: %w", err)
	}
	if err := l.store.Set(ctx, lastVoteKey(vote.UserID), string(rawPtr), 0); err != nil {
		return fmt.Errorf("write last-vote pointer: %w", err)
	}
	return nil
}

// LastVote returns the user's last-vote pointer, or nil when absent.
func (l *Ledger) LastVote(ctx context.Context, userID string) (*domain.LastVotePointer, error) {
	raw, err := l.store.Get(ctx, lastVoteKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p domain.LastVotePointer
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode last-vote pointer: %w", err)
	}
	return &p, nil
}

// Tally reads the live tally for a scenario. Unique voters are recomputed
// from the option sums, never tracked independently.
func (l *Ledger) Tally(ctx context.Context, scenarioID string) (domain.VoteTally, error) {
	fields, err := l.store.HashGetAll(ctx, tallyKey(scenarioID))
	if err != nil {
		return domain.VoteTally{}, fmt.Errorf("read tally: %w", err)
	}

	tally := domain.VoteTally{
		ScenarioID:  scenarioID,
		OptionVotes: make(map[string]int),
	}
	for field, raw := range fields {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.VoteTally{}, fmt.Errorf("corrupt tally field %s: %w", field, err)
		}
		if field == TallyTotalField {
			tally.TotalVotes = n
			continue
		}
		if len(field) > 4 && field[:4] == "opt:" {
			tally.OptionVotes[field[4:]] = n
		}
	}
	tally.RecomputeUniqueVoters()

	// Voting-start timestamp is a non-critical read; degrade to zero time.
	if raw, err := l.store.Get(ctx, tallyMetaKey(scenarioID)); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			tally.StartedAt = ts
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("[ballot] voting-start lookup failed for %s: %v", scenarioID, err)
	}

	return tally, nil
}

// Records returns every vote record for a scenario.
func (l *Ledger) Records(ctx context.Context, scenarioID string) ([]domain.VoteRecord, error) {
	fields, err := l.store.HashGetAll(ctx, recordsKey(scenarioID))
	if err != nil {
		return nil, fmt.Errorf("read vote records: %w", err)
	}
	records := make([]domain.VoteRecord, 0, len(fields))
	for id, raw := range fields {
		var v domain.VoteRecord
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode vote record %s: %w", id, err)
		}
		records = append(records, v)
	}
	return records, nil
}
