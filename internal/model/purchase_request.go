package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enum constants shared by purchase requests and their approvals.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// JSONMap is an opaque key/value document stored as jsonb. Used for the
// metadata blobs produced by the document collaborator.
type JSONMap map[string]interface{}

// Value implements driver.Valuer for gorm jsonb persistence
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for gorm jsonb persistence
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}

// PurchaseRequest represents a request for purchasing goods/services.
//
// Workflow:
//  1. Staff creates the request (optionally with a proforma invoice)
//  2. L1 approver approves/rejects
//  3. L2 approver approves/rejects (only after L1 approved)
//  4. On full approval a purchase order document is generated
//  5. Staff uploads a receipt which is validated against the PO
//
// The stored Status is denormalized from the two Approval records for read
// efficiency; the records remain the source of truth. Requests are never
// deleted (audit requirement).
type PurchaseRequest struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status      string          `gorm:"type:varchar(20);not null;default:'pending';index:idx_requests_status_created" json:"status"`
	CreatedByID uuid.UUID       `gorm:"type:uuid;not null;index" json:"created_by_id"`
	CreatedBy   *User           `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	// Document attachments plus the metadata blobs the collaborator produces
	ProformaPath      string  `gorm:"type:varchar(512)" json:"proforma_path"`
	ProformaMetadata  JSONMap `gorm:"type:jsonb;default:'{}'" json:"proforma_metadata"`
	PurchaseOrderPath string  `gorm:"type:varchar(512)" json:"purchase_order_path"`
	POMetadata        JSONMap `gorm:"type:jsonb;default:'{}'" json:"po_metadata"`
	ReceiptPath       string  `gorm:"type:varchar(512)" json:"receipt_path"`
	ReceiptValidation JSONMap `gorm:"type:jsonb;default:'{}'" json:"receipt_validation"`

	Approvals []Approval `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE" json:"approvals,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_requests_status_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApprovalAt returns the approval record at the given level, or nil.
// Requires Approvals to be loaded.
func (pr *PurchaseRequest) ApprovalAt(level int) *Approval {
	for i := range pr.Approvals {
		if pr.Approvals[i].Level == level {
			return &pr.Approvals[i]
		}
	}
	return nil
}

// IsFinalized reports whether the request reached a terminal status.
func (pr *PurchaseRequest) IsFinalized() bool {
	return pr.Status == StatusApproved || pr.Status == StatusRejected
}

// CanEdit reports whether title/description/amount/proforma may still be
// changed: only while pending and before any approval has been processed.
func (pr *PurchaseRequest) CanEdit() bool {
	if pr.Status != StatusPending {
		return false
	}
	for i := range pr.Approvals {
		if pr.Approvals[i].Status != StatusPending {
			return false
		}
	}
	return true
}

// CanSubmitReceipt reports whether a receipt may be attached: the request
// must be fully approved, have a generated purchase order, and no receipt yet.
func (pr *PurchaseRequest) CanSubmitReceipt() bool {
	return pr.Status == StatusApproved && pr.PurchaseOrderPath != "" && pr.ReceiptPath == ""
}
