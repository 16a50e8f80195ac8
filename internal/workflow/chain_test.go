package workflow

import (
	"testing"

	"procure/internal/model"

	"github.com/stretchr/testify/assert"
)

func snapshot(requestStatus string, actorLevel int, l1, l2 string) Snapshot {
	return Snapshot{
		RequestStatus: requestStatus,
		ActorLevel:    actorLevel,
		Records:       map[int]string{1: l1, 2: l2},
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		snap  Snapshot
		event Event
		want  error
	}{
		{
			name:  "level 1 approve on fresh request",
			snap:  snapshot(model.StatusPending, 1, model.StatusPending, model.StatusPending),
			event: EventApprove,
			want:  nil,
		},
		{
			name:  "level 2 approve before level 1",
			snap:  snapshot(model.StatusPending, 2, model.StatusPending, model.StatusPending),
			event: EventApprove,
			want:  ErrPriorLevelIncomplete,
		},
		{
			name:  "level 2 approve after level 1 approved",
			snap:  snapshot(model.StatusPending, 2, model.StatusApproved, model.StatusPending),
			event: EventApprove,
			want:  nil,
		},
		{
			name:  "level 2 reject needs no prior level",
			snap:  snapshot(model.StatusPending, 2, model.StatusPending, model.StatusPending),
			event: EventReject,
			want:  nil,
		},
		{
			name:  "approve on approved request",
			snap:  snapshot(model.StatusApproved, 1, model.StatusApproved, model.StatusApproved),
			event: EventApprove,
			want:  ErrAlreadyFinalized,
		},
		{
			name:  "reject on rejected request",
			snap:  snapshot(model.StatusRejected, 2, model.StatusRejected, model.StatusPending),
			event: EventReject,
			want:  ErrAlreadyFinalized,
		},
		{
			name:  "actor without approval level",
			snap:  snapshot(model.StatusPending, 0, model.StatusPending, model.StatusPending),
			event: EventApprove,
			want:  ErrNotAnApprover,
		},
		{
			name:  "double approve at same level",
			snap:  snapshot(model.StatusPending, 1, model.StatusApproved, model.StatusPending),
			event: EventApprove,
			want:  ErrAlreadyProcessed,
		},
		{
			name:  "reject already processed level",
			snap:  snapshot(model.StatusPending, 1, model.StatusApproved, model.StatusPending),
			event: EventReject,
			want:  ErrAlreadyProcessed,
		},
		{
			name: "missing approval record",
			snap: Snapshot{
				RequestStatus: model.StatusPending,
				ActorLevel:    2,
				Records:       map[int]string{1: model.StatusPending},
			},
			event: EventApprove,
			want:  ErrNoApprovalSlot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decide(tt.snap, tt.event)
			if tt.want == nil {
				assert.NoError(t, err)
				assert.True(t, Allowed(tt.snap, tt.event))
			} else {
				assert.ErrorIs(t, err, tt.want)
				assert.False(t, Allowed(tt.snap, tt.event))
			}
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	approvals := func(l1, l2 string) []model.Approval {
		return []model.Approval{
			{Level: 1, Status: l1},
			{Level: 2, Status: l2},
		}
	}

	assert.Equal(t, model.StatusPending, DeriveStatus(approvals(model.StatusPending, model.StatusPending)))
	assert.Equal(t, model.StatusPending, DeriveStatus(approvals(model.StatusApproved, model.StatusPending)))
	assert.Equal(t, model.StatusApproved, DeriveStatus(approvals(model.StatusApproved, model.StatusApproved)))
	assert.Equal(t, model.StatusRejected, DeriveStatus(approvals(model.StatusRejected, model.StatusPending)))
	assert.Equal(t, model.StatusRejected, DeriveStatus(approvals(model.StatusApproved, model.StatusRejected)))
	assert.Equal(t, model.StatusPending, DeriveStatus(nil))
}

func TestSnap(t *testing.T) {
	pr := &model.PurchaseRequest{
		Status: model.StatusPending,
		Approvals: []model.Approval{
			{Level: 1, Status: model.StatusApproved},
			{Level: 2, Status: model.StatusPending},
		},
	}

	s := Snap(pr, 2)
	assert.Equal(t, model.StatusPending, s.RequestStatus)
	assert.Equal(t, 2, s.ActorLevel)
	assert.Equal(t, model.StatusApproved, s.Records[1])
	assert.Equal(t, model.StatusPending, s.Records[2])
}
