package document

import (
	"testing"

	"procure/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONObject(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		out, err := parseJSONObject(`{"vendor_name": "Acme", "total_amount": 120.5}`)
		require.NoError(t, err)
		assert.Equal(t, "Acme", out["vendor_name"])
		assert.Equal(t, 120.5, out["total_amount"])
	})

	t.Run("fenced json", func(t *testing.T) {
		out, err := parseJSONObject("```json\n{\"vendor_name\": \"Acme\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "Acme", out["vendor_name"])
	})

	t.Run("fence without language tag", func(t *testing.T) {
		out, err := parseJSONObject("```\n{\"currency\": \"EUR\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "EUR", out["currency"])
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := parseJSONObject("not json at all")
		assert.Error(t, err)
	})
}

func TestPurchaseOrderNumber(t *testing.T) {
	assert.Equal(t, "PO-A1B2C3D4", PurchaseOrderNumber("a1b2c3d4-e5f6-7890-abcd-ef1234567890"))
	assert.Equal(t, "PO-ABC", PurchaseOrderNumber("abc"))
}

func TestStringField(t *testing.T) {
	meta := model.JSONMap{"vendor_name": "Acme", "total_amount": 42.0, "empty": ""}

	assert.Equal(t, "Acme", stringField(meta, "vendor_name", "N/A"))
	assert.Equal(t, "N/A", stringField(meta, "missing", "N/A"))
	assert.Equal(t, "N/A", stringField(meta, "total_amount", "N/A"))
	assert.Equal(t, "N/A", stringField(meta, "empty", "N/A"))
	assert.Equal(t, "N/A", stringField(nil, "vendor_name", "N/A"))
}

func TestLineItems(t *testing.T) {
	meta := model.JSONMap{
		"line_items": []interface{}{
			map[string]interface{}{"description": "Laptop", "quantity": 2.0},
			"not an object",
		},
	}

	items := lineItems(meta)
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop", items[0]["description"])

	assert.Nil(t, lineItems(nil))
	assert.Nil(t, lineItems(model.JSONMap{"line_items": "wrong type"}))
}

func TestDegradedResult(t *testing.T) {
	out := degradedResult("boom")
	assert.Equal(t, "boom", out["error"])
	assert.NotEmpty(t, out["extracted_at"])

	val := degradedValidation("down")
	assert.Equal(t, "down", val["error"])
	assert.Nil(t, val["matches"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
