package document

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"procure/internal/model"

	"go.uber.org/zap"
)

const receiptSystemPrompt = `You are an accounts-payable assistant. You compare receipts against purchase orders and reply with JSON only.`

const receiptUserPromptTemplate = `Compare this receipt against the expected purchase data and return a JSON object with:
- matches: boolean, whether the receipt plausibly corresponds to the purchase
- vendor_match: boolean
- amount_match: boolean, true if the receipt total is within 5%% of the expected amount
- discrepancies: array of strings describing any mismatches
- confidence: number between 0 and 1

Expected purchase data:
%s

Receipt text:
%s`

// ValidateReceipt compares an uploaded receipt against the request's
// proforma metadata and expected amount. Failures degrade to an
// error-flagged result so receipt submission never blocks on validation.
func (s *Service) ValidateReceipt(ctx context.Context, pr *model.PurchaseRequest, receiptRelPath string) (model.JSONMap, error) {
	text, err := s.extractText(receiptRelPath)
	if err != nil {
		s.logger.Warn("receipt text extraction failed",
			zap.String("request_id", pr.ID.String()),
			zap.Error(err))
		return degradedValidation(fmt.Sprintf("text extraction failed: %v", err)), nil
	}

	if s.client == nil {
		return degradedValidation("OpenAI API key not configured"), nil
	}

	expected := model.JSONMap{
		"total_amount": pr.Amount.String(),
		"title":        pr.Title,
	}
	if pr.ProformaMetadata != nil {
		expected["vendor_name"] = pr.ProformaMetadata["vendor_name"]
		expected["currency"] = pr.ProformaMetadata["currency"]
	}
	if pr.POMetadata != nil {
		expected["po_number"] = pr.POMetadata["po_number"]
	}
	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		return nil, fmt.Errorf("receipt validation: %w", err)
	}

	prompt := fmt.Sprintf(receiptUserPromptTemplate, string(expectedJSON), truncate(text, maxPromptChars))
	raw, err := s.complete(ctx, receiptSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("receipt validation: %w", err)
	}

	result, err := parseJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("receipt validation: %w", err)
	}
	result["validated_at"] = time.Now().UTC().Format(time.RFC3339)
	return result, nil
}

// degradedValidation is the result recorded when validation could not run.
func degradedValidation(reason string) model.JSONMap {
	return model.JSONMap{
		"error":         reason,
		"matches":       nil,
		"discrepancies": []interface{}{},
		"validated_at":  time.Now().UTC().Format(time.RFC3339),
	}
}
