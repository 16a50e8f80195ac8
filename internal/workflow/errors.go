package workflow

import "errors"

// Engine error taxonomy. Every gating failure is one of these sentinels so
// callers can branch with errors.Is; transient store failures are surfaced
// separately by the service layer and are safe to retry.
var (
	// ErrAlreadyFinalized is returned when the request is already approved or
	// rejected and no further action is possible.
	ErrAlreadyFinalized = errors.New("request has already been finalized")

	// ErrNotAnApprover is returned when the actor has no derivable approval level.
	ErrNotAnApprover = errors.New("user does not have approval privileges")

	// ErrNoApprovalSlot is returned when no approval record exists for the
	// actor's level. Given atomic creation of both records this is a
	// data-integrity violation and should be unreachable.
	ErrNoApprovalSlot = errors.New("no approval record found for level")

	// ErrAlreadyProcessed is returned when the level's record already left pending.
	ErrAlreadyProcessed = errors.New("approval at this level has already been processed")

	// ErrPriorLevelIncomplete is returned when a level-2 action is attempted
	// before level 1 has approved. The caller may retry after level 1 completes.
	ErrPriorLevelIncomplete = errors.New("level 1 approval must be completed before level 2")
)
