package repository

import (
	"context"

	"procure/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseRequestRepository defines data access for the purchase request
// aggregate. The ForUpdate variant is the entry point of every state
// transition: it takes the row-level exclusive lock that serializes
// concurrent approve/reject calls on the same request.
type PurchaseRequestRepository interface {
	Create(ctx context.Context, pr *model.PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	Update(ctx context.Context, pr *model.PurchaseRequest) error
	UpdateDocuments(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	ListByCreator(ctx context.Context, creatorID uuid.UUID, status string, page, limit int) ([]model.PurchaseRequest, int64, error)
	ListByStatus(ctx context.Context, status string, page, limit int) ([]model.PurchaseRequest, int64, error)
	ListPendingForLevel(ctx context.Context, level, page, limit int) ([]model.PurchaseRequest, int64, error)
}

type purchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) PurchaseRequestRepository {
	return &purchaseRequestRepository{db: db}
}

func (r *purchaseRequestRepository) Create(ctx context.Context, pr *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Create(pr).Error
}

func (r *purchaseRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var pr model.PurchaseRequest
	err := GetDB(ctx, r.db).
		Preload("CreatedBy").
		Preload("Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("level asc") }).
		Preload("Approvals.Approver").
		First(&pr, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// FindByIDForUpdate loads the request under SELECT ... FOR UPDATE. Only the
// aggregate root row is locked here; the per-level record is locked
// separately by ApprovalRepository.FindForUpdate. Approvals are loaded after
// the lock is held, so the snapshot reflects committed state.
func (r *purchaseRequestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	db := GetDB(ctx, r.db)

	var pr model.PurchaseRequest
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&pr, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if err := db.Where("purchase_request_id = ?", id).
		Order("level asc").
		Find(&pr.Approvals).Error; err != nil {
		return nil, err
	}

	return &pr, nil
}

func (r *purchaseRequestRepository) Update(ctx context.Context, pr *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Omit("Approvals", "CreatedBy").Save(pr).Error
}

// UpdateDocuments persists document attachment fields (paths/metadata)
// without touching workflow state. Used by the best-effort side effects that
// run outside the approval transaction.
func (r *purchaseRequestRepository) UpdateDocuments(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return GetDB(ctx, r.db).Model(&model.PurchaseRequest{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *purchaseRequestRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, status string, page, limit int) ([]model.PurchaseRequest, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.PurchaseRequest{}).Where("created_by_id = ?", creatorID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return r.paginate(query, page, limit)
}

func (r *purchaseRequestRepository) ListByStatus(ctx context.Context, status string, page, limit int) ([]model.PurchaseRequest, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.PurchaseRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return r.paginate(query, page, limit)
}

// ListPendingForLevel returns the actionable queue for one approver level:
// level 1 sees every pending request whose level-1 record is pending; level 2
// only sees requests whose level-1 record is approved and level-2 pending.
func (r *purchaseRequestRepository) ListPendingForLevel(ctx context.Context, level, page, limit int) ([]model.PurchaseRequest, int64, error) {
	query := GetDB(ctx, r.db).Model(&model.PurchaseRequest{}).
		Where("status = ?", model.StatusPending).
		Where("EXISTS (SELECT 1 FROM approvals a WHERE a.purchase_request_id = purchase_requests.id AND a.level = ? AND a.status = ?)",
			level, model.StatusPending)

	if level == model.LevelFinal {
		query = query.Where("EXISTS (SELECT 1 FROM approvals a WHERE a.purchase_request_id = purchase_requests.id AND a.level = ? AND a.status = ?)",
			model.LevelFirst, model.StatusApproved)
	}

	return r.paginate(query, page, limit)
}

func (r *purchaseRequestRepository) paginate(query *gorm.DB, page, limit int) ([]model.PurchaseRequest, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []model.PurchaseRequest
	offset := (page - 1) * limit
	err := query.
		Preload("CreatedBy").
		Preload("Approvals", func(db *gorm.DB) *gorm.DB { return db.Order("level asc") }).
		Preload("Approvals.Approver").
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
