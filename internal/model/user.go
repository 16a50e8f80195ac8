package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role enum constants. Approval levels are derived one-to-one from the
// approver roles; every other role has no level.
const (
	RoleStaff      = "staff"
	RoleApproverL1 = "approver_l1"
	RoleApproverL2 = "approver_l2"
	RoleFinance    = "finance"
	RoleAdmin      = "admin"
)

// User represents the central user entity for logic and database structure
type User struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username   string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email      string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password   string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Role       string         `gorm:"type:varchar(20);not null;default:'staff'" json:"role"`
	Department string         `gorm:"type:varchar(100)" json:"department"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// IsApprover reports whether the user holds one of the two reviewer roles.
func (u *User) IsApprover() bool {
	return u.Role == RoleApproverL1 || u.Role == RoleApproverL2
}

// ApprovalLevel returns the approval chain level derived from the user's
// role: 1 for L1 approvers, 2 for L2 approvers, 0 for everyone else.
func (u *User) ApprovalLevel() int {
	switch u.Role {
	case RoleApproverL1:
		return 1
	case RoleApproverL2:
		return 2
	default:
		return 0
	}
}

// ValidRole reports whether the given role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleStaff, RoleApproverL1, RoleApproverL2, RoleFinance, RoleAdmin:
		return true
	}
	return false
}

// RefreshToken stores long-lived tokens allowing users to request new access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
