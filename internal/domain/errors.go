package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, no infrastructure dependency.

var (
	// Vote validation errors are always reported to the caller with a
	// specific reason, never retried automatically.
	ErrNoActiveScenario = errors.New("no scenario is currently active")
	ErrScenarioMismatch = errors.New("vote targets a different scenario")
	ErrScenarioExpired  = errors.New("voting period has ended")
	ErrInvalidOption    = errors.New("option is not part of this scenario")
	ErrDuplicateVote    = errors.New("user already voted on this scenario")

	// Scenario structure errors
	ErrOptionCount       = errors.New("scenario must have exactly 3 options")
	ErrDegenerateOptions = errors.New("two options share an identical effect vector")
	ErrEffectOutOfRange  = errors.New("effect value outside [-3, 3]")

	// Close processing errors are fatal to that close attempt, recorded on
	// the processing status, safe to retry once the data issue is fixed.
	ErrTallyMissing     = errors.New("no tally data for scenario")
	ErrAlreadyProcessed = errors.New("scenario close already processed")
)
