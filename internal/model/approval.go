package model

import (
	"time"

	"github.com/google/uuid"
)

// Approval levels of the fixed two-stage chain.
const (
	LevelFirst = 1
	LevelFinal = 2
)

// Approval is one reviewer slot of the two-level approval chain. Both records
// are created atomically with the parent request, unassigned and pending.
// A record transitions out of pending exactly once, by exactly one actor
// whose derived level matches, and is immutable afterwards.
type Approval struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PurchaseRequestID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_approvals_request_level;index" json:"purchase_request_id"`
	Level             int        `gorm:"not null;uniqueIndex:idx_approvals_request_level;index:idx_approvals_status_level" json:"level"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_approvals_status_level" json:"status"`
	ApproverID        *uuid.UUID `gorm:"type:uuid;index" json:"approver_id"`
	Approver          *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Comments          string     `gorm:"type:text" json:"comments"`
	ReviewedAt        *time.Time `json:"reviewed_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Processed reports whether this record has left pending.
func (a *Approval) Processed() bool {
	return a.Status != StatusPending
}
