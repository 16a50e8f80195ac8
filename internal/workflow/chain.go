// Package workflow holds the two-level approval chain as one explicit
// transition table. Approve, Reject, CanApprove and the pending queries all
// gate through Decide so the level-ordering rules live in a single place.
package workflow

import (
	"procure/internal/model"
)

// Event is an action an approver can take on a purchase request.
type Event string

const (
	EventApprove Event = "approve"
	EventReject  Event = "reject"
)

// Snapshot is the slice of aggregate state the chain decides on. It must be
// built from freshly locked data inside the transition transaction; for the
// read-only predicates it may come from an unlocked load.
type Snapshot struct {
	RequestStatus string
	ActorLevel    int            // 0 when the actor is not a reviewer
	Records       map[int]string // approval status per level
}

// Snap builds a Snapshot for an actor acting on a request. The request's
// Approvals must be loaded.
func Snap(pr *model.PurchaseRequest, actorLevel int) Snapshot {
	records := make(map[int]string, len(pr.Approvals))
	for i := range pr.Approvals {
		records[pr.Approvals[i].Level] = pr.Approvals[i].Status
	}
	return Snapshot{
		RequestStatus: pr.Status,
		ActorLevel:    actorLevel,
		Records:       records,
	}
}

// guard checks one precondition of a transition and returns the taxonomy
// error when it fails.
type guard func(s Snapshot) error

func requestOpen(s Snapshot) error {
	if s.RequestStatus != model.StatusPending {
		return ErrAlreadyFinalized
	}
	return nil
}

func actorIsReviewer(s Snapshot) error {
	if s.ActorLevel != model.LevelFirst && s.ActorLevel != model.LevelFinal {
		return ErrNotAnApprover
	}
	return nil
}

func slotExists(s Snapshot) error {
	if _, ok := s.Records[s.ActorLevel]; !ok {
		return ErrNoApprovalSlot
	}
	return nil
}

func slotPending(s Snapshot) error {
	if s.Records[s.ActorLevel] != model.StatusPending {
		return ErrAlreadyProcessed
	}
	return nil
}

func priorLevelApproved(s Snapshot) error {
	if s.ActorLevel == model.LevelFinal && s.Records[model.LevelFirst] != model.StatusApproved {
		return ErrPriorLevelIncomplete
	}
	return nil
}

// transitions is the chain's full rule set. Approval is strictly ordered
// level 1 before level 2; rejection at either level needs no ordering and
// short-circuits the whole request.
var transitions = map[Event][]guard{
	EventApprove: {requestOpen, actorIsReviewer, slotExists, slotPending, priorLevelApproved},
	EventReject:  {requestOpen, actorIsReviewer, slotExists, slotPending},
}

// Decide evaluates the event's guards in order and returns the first
// violation, or nil when the transition is legal.
func Decide(s Snapshot, e Event) error {
	for _, g := range transitions[e] {
		if err := g(s); err != nil {
			return err
		}
	}
	return nil
}

// Allowed is the read-only predicate form of Decide, used by callers to
// pre-filter actionability without mutating state.
func Allowed(s Snapshot, e Event) bool {
	return Decide(s, e) == nil
}

// DeriveStatus recomputes the request status from its approval records:
// rejected if any record is rejected, approved only when every record is
// approved, pending otherwise.
func DeriveStatus(approvals []model.Approval) string {
	if len(approvals) == 0 {
		return model.StatusPending
	}
	allApproved := true
	for i := range approvals {
		switch approvals[i].Status {
		case model.StatusRejected:
			return model.StatusRejected
		case model.StatusApproved:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return model.StatusApproved
	}
	return model.StatusPending
}
