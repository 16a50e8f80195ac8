package document

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"procure/internal/model"

	"github.com/gen2brain/go-fitz"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// maxPromptChars caps the amount of extracted text sent to the model.
const maxPromptChars = 8000

const proformaSystemPrompt = `You are an accounts-payable assistant. You extract structured data from proforma invoices and reply with JSON only.`

const proformaUserPromptTemplate = `Extract the following fields from this proforma invoice text and return them as a JSON object:
- vendor_name: the supplier's name
- vendor_address: the supplier's address, or null
- invoice_number: the proforma/invoice number, or null
- currency: the ISO currency code, default "USD"
- total_amount: the invoice total as a number
- line_items: array of {description, quantity, unit_price, amount}
- payment_terms: payment terms if stated, or null

Invoice text:
%s`

// ExtractProformaData pulls the text out of an uploaded proforma and asks the
// model for structured metadata. When the document is unreadable or the API
// is unavailable it returns a degraded result with an "error" key rather
// than failing.
func (s *Service) ExtractProformaData(ctx context.Context, relPath string) (model.JSONMap, error) {
	text, err := s.extractText(relPath)
	if err != nil {
		s.logger.Warn("proforma text extraction failed",
			zap.String("path", relPath),
			zap.Error(err))
		return degradedResult(fmt.Sprintf("text extraction failed: %v", err)), nil
	}

	if s.client == nil {
		return degradedResult("OpenAI API key not configured"), nil
	}

	prompt := fmt.Sprintf(proformaUserPromptTemplate, truncate(text, maxPromptChars))
	raw, err := s.complete(ctx, proformaSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("proforma extraction: %w", err)
	}

	result, err := parseJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("proforma extraction: %w", err)
	}
	result["extracted_at"] = time.Now().UTC().Format(time.RFC3339)
	return result, nil
}

// extractText reads a stored document and returns its plain text. Only PDFs
// are supported; other formats surface as degraded metadata upstream.
func (s *Service) extractText(relPath string) (string, error) {
	if strings.ToLower(filepath.Ext(relPath)) != ".pdf" {
		return "", fmt.Errorf("unsupported document type %q", filepath.Ext(relPath))
	}

	fullPath, err := s.storage.AbsPath(relPath)
	if err != nil {
		return "", fmt.Errorf("resolve document path: %w", err)
	}
	doc, err := fitz.New(fullPath)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		page, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i+1, err)
		}
		b.WriteString(page)
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("document contains no extractable text")
	}
	return text, nil
}

// complete sends a single-shot chat completion in JSON mode and returns the
// raw response content.
func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// parseJSONObject decodes a model response into a map, tolerating fenced
// code blocks around the JSON body.
func parseJSONObject(raw string) (model.JSONMap, error) {
	cleaned := stripCodeFence(raw)
	var out model.JSONMap
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return out, nil
}

// stripCodeFence removes a surrounding ```json ... ``` fence if present.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// degradedResult is the metadata recorded when extraction could not run.
func degradedResult(reason string) model.JSONMap {
	return model.JSONMap{
		"error":        reason,
		"vendor_name":  nil,
		"total_amount": nil,
		"line_items":   []interface{}{},
		"extracted_at": time.Now().UTC().Format(time.RFC3339),
	}
}
