package service

import (
	"context"
	"errors"
	"fmt"

	"procure/internal/document"
	"procure/internal/model"
	"procure/internal/repository"
	"procure/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type UpdateRequestDTO struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`

	// Optional replacement proforma
	ProformaFilename string `json:"-"`
	ProformaContent  []byte `json:"-"`
}

type RequestFilter struct {
	Status string
	Page   int
	Limit  int
}

// --- Interface ---

// PurchaseRequestService covers the non-transition operations on requests:
// reads with role-based visibility, edits while the request is still
// untouched, and receipt submission after full approval.
type PurchaseRequestService interface {
	Get(ctx context.Context, requestID string, viewer *model.User) (*model.PurchaseRequest, error)
	List(ctx context.Context, viewer *model.User, filter RequestFilter) ([]model.PurchaseRequest, int64, error)
	MyRequests(ctx context.Context, viewer *model.User, filter RequestFilter) ([]model.PurchaseRequest, int64, error)
	Update(ctx context.Context, requestID string, req UpdateRequestDTO, actor *model.User) (*model.PurchaseRequest, error)
	SubmitReceipt(ctx context.Context, requestID string, filename string, content []byte, actor *model.User) (*model.PurchaseRequest, error)
	Document(ctx context.Context, requestID, kind string, viewer *model.User) (string, []byte, error)
}

type purchaseRequestService struct {
	txManager repository.TransactionManager
	requests  repository.PurchaseRequestRepository
	audits    repository.AuditRepository
	documents document.Collaborator
	files     storage.FileStorage
	events    EventPublisher
	logger    *zap.Logger
}

func NewPurchaseRequestService(
	txManager repository.TransactionManager,
	requests repository.PurchaseRequestRepository,
	audits repository.AuditRepository,
	documents document.Collaborator,
	files storage.FileStorage,
	events EventPublisher,
	logger *zap.Logger,
) PurchaseRequestService {
	return &purchaseRequestService{
		txManager: txManager,
		requests:  requests,
		audits:    audits,
		documents: documents,
		files:     files,
		events:    events,
		logger:    logger,
	}
}

// --- Implementation ---

// Get loads a single request. Staff only see their own; approvers, finance
// and admin see everything.
func (s *purchaseRequestService) Get(ctx context.Context, requestID string, viewer *model.User) (*model.PurchaseRequest, error) {
	pr, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !canView(pr, viewer) {
		return nil, ErrForbidden
	}
	return pr, nil
}

// List returns requests visible to the viewer: staff get their own, every
// other role gets the full set, optionally filtered by status.
func (s *purchaseRequestService) List(ctx context.Context, viewer *model.User, filter RequestFilter) ([]model.PurchaseRequest, int64, error) {
	if viewer.Role == model.RoleStaff {
		return s.requests.ListByCreator(ctx, viewer.ID, filter.Status, filter.Page, filter.Limit)
	}
	return s.requests.ListByStatus(ctx, filter.Status, filter.Page, filter.Limit)
}

// MyRequests lists the viewer's own requests regardless of role.
func (s *purchaseRequestService) MyRequests(ctx context.Context, viewer *model.User, filter RequestFilter) ([]model.PurchaseRequest, int64, error) {
	return s.requests.ListByCreator(ctx, viewer.ID, filter.Status, filter.Page, filter.Limit)
}

// Update edits a request. Only the creator may edit, and only while the
// request is pending with no processed approvals.
func (s *purchaseRequestService) Update(ctx context.Context, requestID string, req UpdateRequestDTO, actor *model.User) (*model.PurchaseRequest, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidationFailed)
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidationFailed)
	}
	if req.Title != nil && *req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidationFailed)
	}

	var newProformaPath string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pr, findErr := s.requests.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("failed to load purchase request: %w", findErr)
		}

		if pr.CreatedByID != actor.ID {
			return ErrForbidden
		}
		if !pr.CanEdit() {
			return ErrNotEditable
		}

		if req.Title != nil {
			pr.Title = *req.Title
		}
		if req.Description != nil {
			pr.Description = *req.Description
		}
		if req.Amount != nil {
			pr.Amount = *req.Amount
		}
		if len(req.ProformaContent) > 0 {
			path, saveErr := s.files.Save(storage.CategoryProforma, req.ProformaFilename, req.ProformaContent)
			if saveErr != nil {
				return fmt.Errorf("failed to store proforma: %w", saveErr)
			}
			pr.ProformaPath = path
			pr.ProformaMetadata = model.JSONMap{}
			newProformaPath = path
		}

		if updateErr := s.requests.Update(txCtx, pr); updateErr != nil {
			return fmt.Errorf("failed to update purchase request: %w", updateErr)
		}

		audit := model.AuditLog{
			UserID:     &actor.ID,
			Action:     model.ActionUpdateRequest,
			EntityID:   pr.ID.String(),
			EntityName: pr.Title,
			Details: mustJSON(map[string]interface{}{
				"amount":           pr.Amount.String(),
				"proforma_changed": newProformaPath != "",
			}),
		}
		if auditErr := s.audits.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		s.removeOrphan(newProformaPath)
		return nil, err
	}

	if newProformaPath != "" {
		s.extractProforma(ctx, id, newProformaPath)
	}

	publishEvent(s.events, EventRequestUpdated, map[string]interface{}{
		"request_id": id.String(),
	})

	return s.requests.FindByID(ctx, id)
}

// SubmitReceipt attaches a receipt to a fully approved request and runs
// validation against the proforma/PO data. Validation failures degrade to an
// error marker on the stored result, they never reject the upload.
func (s *purchaseRequestService) SubmitReceipt(ctx context.Context, requestID string, filename string, content []byte, actor *model.User) (*model.PurchaseRequest, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidationFailed)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: receipt file is empty", ErrValidationFailed)
	}

	var receiptPath string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pr, findErr := s.requests.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("failed to load purchase request: %w", findErr)
		}

		if pr.CreatedByID != actor.ID {
			return ErrForbidden
		}
		if !pr.CanSubmitReceipt() {
			return ErrReceiptNotAllowed
		}

		path, saveErr := s.files.Save(storage.CategoryReceipt, filename, content)
		if saveErr != nil {
			return fmt.Errorf("failed to store receipt: %w", saveErr)
		}
		receiptPath = path

		if updateErr := s.requests.UpdateDocuments(txCtx, id, map[string]interface{}{
			"receipt_path": path,
		}); updateErr != nil {
			return fmt.Errorf("failed to record receipt: %w", updateErr)
		}

		audit := model.AuditLog{
			UserID:     &actor.ID,
			Action:     model.ActionSubmitReceipt,
			EntityID:   pr.ID.String(),
			EntityName: pr.Title,
			Details:    mustJSON(map[string]interface{}{"path": path}),
		}
		if auditErr := s.audits.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		s.removeOrphan(receiptPath)
		return nil, err
	}

	s.validateReceipt(ctx, id, receiptPath, actor)

	publishEvent(s.events, EventReceiptUploaded, map[string]interface{}{
		"request_id": id.String(),
	})

	return s.requests.FindByID(ctx, id)
}

// Document streams a stored attachment. kind is one of proforma,
// purchase_order, receipt.
func (s *purchaseRequestService) Document(ctx context.Context, requestID, kind string, viewer *model.User) (string, []byte, error) {
	pr, err := s.load(ctx, requestID)
	if err != nil {
		return "", nil, err
	}
	if !canView(pr, viewer) {
		return "", nil, ErrForbidden
	}

	var path string
	switch kind {
	case "proforma":
		path = pr.ProformaPath
	case "purchase_order":
		path = pr.PurchaseOrderPath
	case "receipt":
		path = pr.ReceiptPath
	default:
		return "", nil, fmt.Errorf("%w: unknown document kind %q", ErrValidationFailed, kind)
	}
	if path == "" {
		return "", nil, ErrRequestNotFound
	}

	content, err := s.files.Read(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read document: %w", err)
	}
	return path, content, nil
}

// removeOrphan deletes a file written during a transaction that rolled back.
func (s *purchaseRequestService) removeOrphan(relPath string) {
	if relPath == "" {
		return
	}
	if err := s.files.Remove(relPath); err != nil {
		s.logger.Warn("Failed to remove file after rollback",
			zap.String("path", relPath),
			zap.Error(err))
	}
}

func (s *purchaseRequestService) load(ctx context.Context, requestID string) (*model.PurchaseRequest, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid request id", ErrValidationFailed)
	}
	pr, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to load purchase request: %w", err)
	}
	return pr, nil
}

// validateReceipt runs post-commit receipt validation and records the
// result, degraded or not.
func (s *purchaseRequestService) validateReceipt(ctx context.Context, requestID uuid.UUID, receiptPath string, actor *model.User) {
	pr, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		s.logger.Error("failed to reload request for receipt validation",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		return
	}

	result, err := s.documents.ValidateReceipt(ctx, pr, receiptPath)
	if err != nil {
		s.logger.Error("receipt validation failed",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		result = model.JSONMap{"error": err.Error()}
	}
	if err := s.requests.UpdateDocuments(ctx, requestID, map[string]interface{}{
		"receipt_validation": result,
	}); err != nil {
		s.logger.Error("failed to record receipt validation",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		return
	}

	audit := model.AuditLog{
		UserID:   &actor.ID,
		Action:   model.ActionValidateReceipt,
		EntityID: requestID.String(),
		Details:  mustJSON(result),
	}
	if err := s.audits.Log(ctx, &audit); err != nil {
		s.logger.Error("failed to write receipt validation audit log",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
	}
}

// extractProforma mirrors the post-create extraction for replaced proformas.
func (s *purchaseRequestService) extractProforma(ctx context.Context, requestID uuid.UUID, relPath string) {
	meta, err := s.documents.ExtractProformaData(ctx, relPath)
	if err != nil {
		s.logger.Error("proforma extraction failed",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
		meta = model.JSONMap{"error": err.Error()}
	}
	if err := s.requests.UpdateDocuments(ctx, requestID, map[string]interface{}{
		"proforma_metadata": meta,
	}); err != nil {
		s.logger.Error("failed to record proforma metadata",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
	}
}

// canView implements the role-based visibility rule.
func canView(pr *model.PurchaseRequest, viewer *model.User) bool {
	if viewer.Role != model.RoleStaff {
		return true
	}
	return pr.CreatedByID == viewer.ID
}
