// Package document is the external document collaborator: proforma metadata
// extraction, purchase-order generation and receipt validation. Every
// operation here is best-effort from the workflow's point of view — callers
// log failures and record degraded metadata, they never roll back an
// approval because of them.
package document

import (
	"context"

	"procure/internal/model"
	"procure/internal/storage"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Collaborator is the contract the approval workflow consumes.
type Collaborator interface {
	// ExtractProformaData extracts structured metadata from an uploaded
	// proforma invoice.
	ExtractProformaData(ctx context.Context, relPath string) (model.JSONMap, error)

	// GeneratePurchaseOrder renders the PO artifact for a fully approved
	// request and returns its storage path plus metadata.
	GeneratePurchaseOrder(ctx context.Context, pr *model.PurchaseRequest) (string, model.JSONMap, error)

	// ValidateReceipt compares an uploaded receipt against the request's
	// proforma/PO data and returns a validation result document.
	ValidateReceipt(ctx context.Context, pr *model.PurchaseRequest, receiptRelPath string) (model.JSONMap, error)
}

// Service implements Collaborator on top of OpenAI chat completions and
// local file storage.
type Service struct {
	client      *openai.Client
	model       string
	temperature float32
	storage     storage.FileStorage
	logger      *zap.Logger
}

// Config holds the collaborator's OpenAI settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// NewService creates the document collaborator. An empty API key is allowed;
// extraction and validation then return error-flagged results instead of
// calling out.
func NewService(cfg Config, store storage.FileStorage, logger *zap.Logger) *Service {
	var client *openai.Client
	if cfg.APIKey != "" {
		client = openai.NewClient(cfg.APIKey)
	}
	return &Service{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		storage:     store,
		logger:      logger,
	}
}
