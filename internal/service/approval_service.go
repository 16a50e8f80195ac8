package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"procure/internal/document"
	"procure/internal/model"
	"procure/internal/repository"
	"procure/internal/storage"
	"procure/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRequestDTO struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`

	// Optional proforma invoice uploaded with the request
	ProformaFilename string `json:"-"`
	ProformaContent  []byte `json:"-"`
}

type ReviewDTO struct {
	Comments string `json:"comments"`
}

// --- Interface ---

// ApprovalService drives the two-level approval chain. All state
// transitions run inside a transaction holding row locks on the request and
// the targeted approval record; document side effects run after commit and
// never fail the transition.
type ApprovalService interface {
	CreateRequest(ctx context.Context, req CreateRequestDTO, creator *model.User) (*model.PurchaseRequest, error)
	Approve(ctx context.Context, requestID string, actor *model.User, comments string) (*model.PurchaseRequest, error)
	Reject(ctx context.Context, requestID string, actor *model.User, comments string) (*model.PurchaseRequest, error)
	CanApprove(pr *model.PurchaseRequest, actor *model.User) bool
	PendingFor(ctx context.Context, actor *model.User, page, limit int) ([]model.PurchaseRequest, int64, error)
}

type approvalService struct {
	txManager repository.TransactionManager
	requests  repository.PurchaseRequestRepository
	approvals repository.ApprovalRepository
	audits    repository.AuditRepository
	documents document.Collaborator
	files     storage.FileStorage
	events    EventPublisher
	logger    *zap.Logger
}

func NewApprovalService(
	txManager repository.TransactionManager,
	requests repository.PurchaseRequestRepository,
	approvals repository.ApprovalRepository,
	audits repository.AuditRepository,
	documents document.Collaborator,
	files storage.FileStorage,
	events EventPublisher,
	logger *zap.Logger,
) ApprovalService {
	return &approvalService{
		txManager: txManager,
		requests:  requests,
		approvals: approvals,
		audits:    audits,
		documents: documents,
		files:     files,
		events:    events,
		logger:    logger,
	}
}

// --- Implementation ---

// CreateRequest creates a purchase request together with its two pending
// approval records in one transaction. Proforma metadata extraction happens
// after commit and degrades to an error marker when it fails.
func (s *approvalService) CreateRequest(ctx context.Context, req CreateRequestDTO, creator *model.User) (*model.PurchaseRequest, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidationFailed)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidationFailed)
	}

	var proformaPath string
	if len(req.ProformaContent) > 0 {
		path, err := s.files.Save(storage.CategoryProforma, req.ProformaFilename, req.ProformaContent)
		if err != nil {
			return nil, fmt.Errorf("failed to store proforma: %w", err)
		}
		proformaPath = path
	}

	pr := &model.PurchaseRequest{
		Title:        req.Title,
		Description:  req.Description,
		Amount:       req.Amount,
		Status:       model.StatusPending,
		CreatedByID:  creator.ID,
		ProformaPath: proformaPath,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.requests.Create(txCtx, pr); createErr != nil {
			return fmt.Errorf("failed to create purchase request: %w", createErr)
		}

		chain := []model.Approval{
			{PurchaseRequestID: pr.ID, Level: model.LevelFirst, Status: model.StatusPending},
			{PurchaseRequestID: pr.ID, Level: model.LevelFinal, Status: model.StatusPending},
		}
		if createErr := s.approvals.CreateAll(txCtx, chain); createErr != nil {
			return fmt.Errorf("failed to create approval chain: %w", createErr)
		}

		audit := model.AuditLog{
			UserID:     &creator.ID,
			Action:     model.ActionCreateRequest,
			EntityID:   pr.ID.String(),
			EntityName: pr.Title,
			Details: mustJSON(map[string]interface{}{
				"amount":       pr.Amount.String(),
				"has_proforma": proformaPath != "",
			}),
		}
		if auditErr := s.audits.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		if proformaPath != "" {
			if rmErr := s.files.Remove(proformaPath); rmErr != nil {
				s.logger.Warn("Failed to remove proforma after rollback",
					zap.String("path", proformaPath),
					zap.Error(rmErr))
			}
		}
		return nil, err
	}

	if proformaPath != "" {
		s.extractProforma(ctx, pr.ID, proformaPath)
	}

	publishEvent(s.events, EventRequestCreated, map[string]interface{}{
		"request_id": pr.ID.String(),
		"title":      pr.Title,
		"amount":     pr.Amount.String(),
	})

	return s.requests.FindByID(ctx, pr.ID)
}

// Approve records the actor's approval at their derived level. When the
// final level approves, the request becomes approved and purchase order
// generation is kicked off after commit.
func (s *approvalService) Approve(ctx context.Context, requestID string, actor *model.User, comments string) (*model.PurchaseRequest, error) {
	return s.review(ctx, requestID, actor, comments, workflow.EventApprove)
}

// Reject records the actor's rejection at their derived level and finalizes
// the request as rejected immediately.
func (s *approvalService) Reject(ctx context.Context, requestID string, actor *model.User, comments string) (*model.PurchaseRequest, error) {
	return s.review(ctx, requestID, actor, comments, workflow.EventReject)
}

// CanApprove reports whether the actor could currently approve this request.
// Advisory only; the transition re-checks under lock.
func (s *approvalService) CanApprove(pr *model.PurchaseRequest, actor *model.User) bool {
	return workflow.Allowed(workflow.Snap(pr, actor.ApprovalLevel()), workflow.EventApprove)
}

// PendingFor lists requests awaiting the actor's level: for level 1 every
// open request with a pending first slot, for level 2 only those whose first
// level already approved.
func (s *approvalService) PendingFor(ctx context.Context, actor *model.User, page, limit int) ([]model.PurchaseRequest, int64, error) {
	level := actor.ApprovalLevel()
	if level == 0 {
		return nil, 0, workflow.ErrNotAnApprover
	}
	return s.requests.ListPendingForLevel(ctx, level, page, limit)
}

// review is the shared transition for approve and reject. The request row is
// locked first, then the approval record, so concurrent reviewers of the
// same request serialize on the parent row.
func (s *approvalService) review(ctx context.Context, requestID string, actor *model.User, comments string, event workflow.Event) (*model.PurchaseRequest, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidationFailed)
	}
	level := actor.ApprovalLevel()

	var finalStatus string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pr, findErr := s.requests.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("failed to load purchase request: %w", findErr)
		}

		if decideErr := workflow.Decide(workflow.Snap(pr, level), event); decideErr != nil {
			return decideErr
		}

		record, findErr := s.approvals.FindForUpdate(txCtx, pr.ID, level)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return workflow.ErrNoApprovalSlot
			}
			return fmt.Errorf("failed to load approval record: %w", findErr)
		}
		if record.Processed() {
			return workflow.ErrAlreadyProcessed
		}

		now := time.Now()
		record.Status = model.StatusApproved
		if event == workflow.EventReject {
			record.Status = model.StatusRejected
		}
		record.ApproverID = &actor.ID
		record.Comments = comments
		record.ReviewedAt = &now
		if updateErr := s.approvals.Update(txCtx, record); updateErr != nil {
			return fmt.Errorf("failed to update approval record: %w", updateErr)
		}

		for i := range pr.Approvals {
			if pr.Approvals[i].Level == level {
				pr.Approvals[i] = *record
			}
		}
		pr.Status = workflow.DeriveStatus(pr.Approvals)
		if updateErr := s.requests.Update(txCtx, pr); updateErr != nil {
			return fmt.Errorf("failed to update purchase request: %w", updateErr)
		}
		finalStatus = pr.Status

		action := model.ActionApproveLevel
		if event == workflow.EventReject {
			action = model.ActionRejectLevel
		}
		audit := model.AuditLog{
			UserID:     &actor.ID,
			Action:     action,
			EntityID:   pr.ID.String(),
			EntityName: pr.Title,
			Details: mustJSON(map[string]interface{}{
				"level":          level,
				"request_status": pr.Status,
				"comments":       comments,
			}),
		}
		if auditErr := s.audits.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Side effects strictly after commit. Their failure is logged and
	// recorded, never propagated to the caller.
	switch {
	case finalStatus == model.StatusApproved:
		s.generatePurchaseOrder(ctx, id, actor)
		publishEvent(s.events, EventRequestApproved, map[string]interface{}{
			"request_id": id.String(),
		})
	case finalStatus == model.StatusRejected:
		publishEvent(s.events, EventRequestRejected, map[string]interface{}{
			"request_id": id.String(),
			"level":      level,
		})
	default:
		publishEvent(s.events, EventLevelApproved, map[string]interface{}{
			"request_id": id.String(),
			"level":      level,
		})
	}

	return s.requests.FindByID(ctx, id)
}

// extractProforma runs metadata extraction for a freshly uploaded proforma
// and records the result, degraded or not.
func (s *approvalService) extractProforma(ctx context.Context, requestID uuid.UUID, relPath string) {
	meta, err := s.documents.ExtractProformaData(ctx, relPath)
	if err != nil {
		s.logger.Error("proforma extraction failed",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		meta = model.JSONMap{"error": err.Error()}
	}
	if updateErr := s.requests.UpdateDocuments(ctx, requestID, map[string]interface{}{
		"proforma_metadata": meta,
	}); updateErr != nil {
		s.logger.Error("failed to record proforma metadata",
			zap.String("request_id", requestID.String()),
			zap.Error(updateErr))
	}
}

// generatePurchaseOrder renders the PO for a fully approved request. Runs
// outside the approval transaction; a failure leaves the request approved
// with no PO and is only logged.
func (s *approvalService) generatePurchaseOrder(ctx context.Context, requestID uuid.UUID, actor *model.User) {
	pr, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		s.logger.Error("failed to reload request for purchase order generation",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		return
	}

	relPath, meta, err := s.documents.GeneratePurchaseOrder(ctx, pr)
	if err != nil {
		s.logger.Error("purchase order generation failed",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		return
	}

	if err := s.requests.UpdateDocuments(ctx, requestID, map[string]interface{}{
		"purchase_order_path": relPath,
		"po_metadata":         meta,
	}); err != nil {
		s.logger.Error("failed to record purchase order",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		return
	}

	audit := model.AuditLog{
		UserID:     &actor.ID,
		Action:     model.ActionGeneratePO,
		EntityID:   requestID.String(),
		EntityName: pr.Title,
		Details:    mustJSON(map[string]interface{}{"path": relPath}),
	}
	if err := s.audits.Log(ctx, &audit); err != nil {
		s.logger.Error("failed to write purchase order audit log",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
	}
}
