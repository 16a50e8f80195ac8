package repository

import (
	"context"

	"procure/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApprovalRepository defines data access for the per-level approval records.
// A (purchase_request, level) pair is unique by constraint; CreateAll is only
// ever called inside the same transaction that creates the parent request.
type ApprovalRepository interface {
	CreateAll(ctx context.Context, approvals []model.Approval) error
	FindForUpdate(ctx context.Context, requestID uuid.UUID, level int) (*model.Approval, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Approval, error)
	Update(ctx context.Context, approval *model.Approval) error
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) CreateAll(ctx context.Context, approvals []model.Approval) error {
	return GetDB(ctx, r.db).Create(&approvals).Error
}

// FindForUpdate locks the single approval record for the given level.
// Callers must already hold the parent request's lock.
func (r *approvalRepository) FindForUpdate(ctx context.Context, requestID uuid.UUID, level int) (*model.Approval, error) {
	var approval model.Approval
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("purchase_request_id = ? AND level = ?", requestID, level).
		First(&approval).Error
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (r *approvalRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Approval, error) {
	var approvals []model.Approval
	err := GetDB(ctx, r.db).
		Where("purchase_request_id = ?", requestID).
		Order("level asc").
		Find(&approvals).Error
	if err != nil {
		return nil, err
	}
	return approvals, nil
}

func (r *approvalRepository) Update(ctx context.Context, approval *model.Approval) error {
	return GetDB(ctx, r.db).Save(approval).Error
}
