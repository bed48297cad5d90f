package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/crossroads-network/crossroads/internal/domain"
	"github.com/crossroads-network/crossroads/internal/infra/ballot"
	"github.com/crossroads-network/crossroads/internal/infra/observability"
	"github.com/crossroads-network/crossroads/internal/infra/store"
)

// DefaultFanoutWorkers bounds the per-user update parallelism during close.
const DefaultFanoutWorkers = 8

func statusKey(scenarioID string) string {
	return "processing:" + scenarioID
}

func claimKey(scenarioID string) string {
	return "processing:claim:" + scenarioID
}

// OutcomeRecorder applies one settled vote to a user's statistics.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, userID, username, scenarioID string, won bool, impact int, at time.Time) error
}

// ─── Closer ─────────────────────────────────────────────────────────────────

// Closer orchestrates scenario close: claim the processing slot exactly
// once, resolve the winner, render the summary, fan out per-user outcome
// updates, and record the processing status for external polling.
type Closer struct {
	store     store.Store
	ledger    *ballot.Ledger
	scenarios *ballot.Scenarios
	recorder  OutcomeRecorder
	workers   int
	now       func() time.Time
}

func NewCloser(s store.Store, ledger *ballot.Ledger, scenarios *ballot.Scenarios, recorder OutcomeRecorder) *Closer {
	return &Closer{
		store:     s,
		ledger:    ledger,
		scenarios: scenarios,
		recorder:  recorder,
		workers:   DefaultFanoutWorkers,
		now:       time.Now,
	}
}

// SetClock overrides the clock, for tests.
func (c *Closer) SetClock(now func() time.Time) { c.now = now }

// SetWorkers overrides the fan-out pool size, for tests.
func (c *Closer) SetWorkers(n int) { c.workers = n }

// Close settles a scenario. Exactly one caller wins the processing claim;
// replays get ErrAlreadyProcessed, which makes the whole close, fan-out
// included, idempotent. A failed close releases the claim so it can be
// retried once the cause is repaired. Individual fan-out failures are
// logged and counted but never abort the batch.
func (c *Closer) Close(ctx context.Context, scenario *domain.Scenario, eligibleUsers int) (*domain.CloseResult, error) {
	start := c.now()
	claimed, err := c.store.SetNX(ctx, claimKey(scenario.ID), "1", 0)
	if err != nil {
		return nil, fmt.Errorf("claim processing for scenario %s: %w", scenario.ID, err)
	}
	if !claimed {
		return nil, fmt.Errorf("scenario %s: %w", scenario.ID, domain.ErrAlreadyProcessed)
	}

	status := domain.ProcessingStatus{
		ScenarioID: scenario.ID,
		State:      domain.StateProcessing,
		StartedAt:  start,
	}
	c.saveStatus(ctx, status)
	defer func() {
		observability.CloseDuration.Observe(time.Since(start).Seconds())
	}()

	tally, err := c.ledger.Tally(ctx, scenario.ID)
	if err != nil {
		c.finish(ctx, status, err)
		return nil, fmt.Errorf("load tally for scenario %s: %w", scenario.ID, err)
	}
	if len(tally.OptionVotes) == 0 {
		err := fmt.Errorf("scenario %s: %w", scenario.ID, domain.ErrTallyMissing)
		c.finish(ctx, status, err)
		return nil, err
	}

	winner := ResolveWinner(scenario, tally)
	summary := Summarize(winner, tally)

	records, err := c.ledger.Records(ctx, scenario.ID)
	if err != nil {
		c.finish(ctx, status, err)
		return nil, fmt.Errorf("load vote records for scenario %s: %w", scenario.ID, err)
	}
	failed := c.fanout(ctx, scenario, winner, records)
	if failed > 0 {
		log.Printf("[resolve] scenario %s: %d of %d outcome updates failed", scenario.ID, failed, len(records))
	}

	if err := c.scenarios.Deactivate(ctx, scenario.ID); err != nil {
		log.Printf("[resolve] deactivate scenario %s: %v", scenario.ID, err)
	}
	observability.ActiveScenario.Set(0)

	c.finish(ctx, status, nil)
	log.Printf("[resolve] scenario %s closed: winner=%s votes=%d/%d", scenario.ID, winner.ID, tally.OptionVotes[winner.ID], tally.TotalVotes)

	ended := c.now()
	tally.EndedAt = &ended
	return &domain.CloseResult{
		ScenarioID:        scenario.ID,
		Winner:            winner,
		Tally:             tally,
		Summary:           summary,
		Effects:           winner.Effects,
		ParticipationRate: participationRate(tally.TotalVotes, eligibleUsers),
	}, nil
}

// fanout applies outcome updates for every voter through a bounded worker
// pool. Settle-all semantics: every record is attempted regardless of other
// failures. Returns the number of failed updates.
func (c *Closer) fanout(ctx context.Context, scenario *domain.Scenario, winner domain.Option, records []domain.VoteRecord) int {
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, rec := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(rec domain.VoteRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			won := rec.OptionID == winner.ID
			impact := 0
			if opt := scenario.OptionByID(rec.OptionID); opt != nil {
				impact = opt.Effects.Magnitude()
			}
			if err := c.recorder.RecordOutcome(ctx, rec.UserID, rec.Username, scenario.ID, won, impact, rec.CastAt); err != nil {
				log.Printf("[resolve] outcome update for user %s failed: %v", rec.UserID, err)
				observability.FanoutFailures.Inc()
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(rec)
	}
	wg.Wait()
	return failed
}

// finish records the terminal processing state. A failed close releases the
// processing claim so the scenario can be closed again after repair; a
// completed close keeps it, which is what blocks replays. Status writes are
// best effort once the claim is held; a failure here is logged, not
// returned, so close results are never lost to a status bookkeeping error.
func (c *Closer) finish(ctx context.Context, status domain.ProcessingStatus, cause error) {
	ended := c.now()
	status.EndedAt = &ended
	if cause != nil {
		status.State = domain.StateFailed
		status.Error = cause.Error()
	} else {
		status.State = domain.StateCompleted
	}
	c.saveStatus(ctx, status)
	if cause != nil {
		if err := c.store.Delete(ctx, claimKey(status.ScenarioID)); err != nil {
			log.Printf("[resolve] release claim for scenario %s: %v", status.ScenarioID, err)
		}
	}
}

func (c *Closer) saveStatus(ctx context.Context, status domain.ProcessingStatus) {
	raw, err := json.Marshal(status)
	if err != nil {
		log.Printf("[resolve] encode status for scenario %s: %v", status.ScenarioID, err)
		return
	}
	if err := c.store.Set(ctx, statusKey(status.ScenarioID), string(raw), 0); err != nil {
		log.Printf("[resolve] save status for scenario %s: %v", status.ScenarioID, err)
	}
}

// Status returns the processing status for a scenario. Scenarios that were
// never closed report the collecting state.
func (c *Closer) Status(ctx context.Context, scenarioID string) (domain.ProcessingStatus, error) {
	raw, err := c.store.Get(ctx, statusKey(scenarioID))
	if errors.Is(err, store.ErrNotFound) {
		return domain.ProcessingStatus{ScenarioID: scenarioID, State: domain.StateCollecting}, nil
	}
	if err != nil {
		return domain.ProcessingStatus{}, fmt.Errorf("load processing status for scenario %s: %w", scenarioID, err)
	}
	var status domain.ProcessingStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return domain.ProcessingStatus{}, fmt.Errorf("decode processing status for scenario %s: %w", scenarioID, err)
	}
	return status, nil
}

func participationRate(total, eligible int) float64 {
	if eligible <= 0 {
		return 0
	}
	rate := float64(total) / float64(eligible)
	if rate > 1 {
		return 1
	}
	return rate
}
