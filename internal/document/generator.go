package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"procure/internal/model"
	"procure/internal/storage"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// GeneratePurchaseOrder renders an xlsx purchase order for a fully approved
// request and stores it. The PO number is derived from the request ID so
// regeneration is idempotent.
func (s *Service) GeneratePurchaseOrder(ctx context.Context, pr *model.PurchaseRequest) (string, model.JSONMap, error) {
	poNumber := PurchaseOrderNumber(pr.ID.String())

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate purchase order: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDDDDD"}},
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate purchase order: %w", err)
	}

	f.MergeCell(sheet, "A1", "D1")
	f.SetCellValue(sheet, "A1", "PURCHASE ORDER")
	f.SetCellStyle(sheet, "A1", "D1", titleStyle)

	vendor := stringField(pr.ProformaMetadata, "vendor_name", "N/A")
	currency := stringField(pr.ProformaMetadata, "currency", "USD")

	f.SetCellValue(sheet, "A3", "PO Number:")
	f.SetCellValue(sheet, "B3", poNumber)
	f.SetCellValue(sheet, "A4", "Date:")
	f.SetCellValue(sheet, "B4", time.Now().Format("2006-01-02"))
	f.SetCellValue(sheet, "A5", "Vendor:")
	f.SetCellValue(sheet, "B5", vendor)
	f.SetCellValue(sheet, "A6", "Requested By:")
	requester := ""
	if pr.CreatedBy != nil {
		requester = pr.CreatedBy.Username
	}
	f.SetCellValue(sheet, "B6", requester)
	f.SetCellValue(sheet, "A7", "Request:")
	f.SetCellValue(sheet, "B7", pr.Title)

	f.SetCellValue(sheet, "A9", "Description")
	f.SetCellValue(sheet, "B9", "Quantity")
	f.SetCellValue(sheet, "C9", "Unit Price")
	f.SetCellValue(sheet, "D9", "Amount")
	f.SetCellStyle(sheet, "A9", "D9", headerStyle)

	row := 10
	for _, item := range lineItems(pr.ProformaMetadata) {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), item["description"])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item["quantity"])
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item["unit_price"])
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), item["amount"])
		row++
	}
	if row == 10 {
		f.SetCellValue(sheet, "A10", pr.Title)
		f.SetCellValue(sheet, "D10", pr.Amount.String())
		row = 11
	}

	totalRow := row + 1
	f.SetCellValue(sheet, fmt.Sprintf("C%d", totalRow), fmt.Sprintf("Total (%s):", currency))
	f.SetCellValue(sheet, fmt.Sprintf("D%d", totalRow), pr.Amount.String())
	f.SetCellStyle(sheet, fmt.Sprintf("C%d", totalRow), fmt.Sprintf("D%d", totalRow), headerStyle)

	f.SetColWidth(sheet, "A", "A", 40)
	f.SetColWidth(sheet, "B", "D", 15)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, fmt.Errorf("generate purchase order: %w", err)
	}

	relPath, err := s.storage.Save(storage.CategoryPurchaseOrder, poNumber+".xlsx", buf.Bytes())
	if err != nil {
		return "", nil, fmt.Errorf("generate purchase order: %w", err)
	}

	s.logger.Info("purchase order generated",
		zap.String("request_id", pr.ID.String()),
		zap.String("po_number", poNumber),
		zap.String("path", relPath))

	meta := model.JSONMap{
		"po_number":    poNumber,
		"vendor_name":  vendor,
		"currency":     currency,
		"total_amount": pr.Amount.String(),
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
	return relPath, meta, nil
}

// PurchaseOrderNumber builds the stable PO number for a request ID.
func PurchaseOrderNumber(requestID string) string {
	id := strings.ReplaceAll(requestID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "PO-" + strings.ToUpper(id)
}

// stringField reads a string value out of metadata, falling back when the
// key is missing or not a string.
func stringField(m model.JSONMap, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// lineItems reads the line_items array out of proforma metadata.
func lineItems(m model.JSONMap) []map[string]interface{} {
	if m == nil {
		return nil
	}
	raw, ok := m["line_items"].([]interface{})
	if !ok {
		return nil
	}
	items := make([]map[string]interface{}, 0, len(raw))
	for _, entry := range raw {
		if item, ok := entry.(map[string]interface{}); ok {
			items = append(items, item)
		}
	}
	return items
}
