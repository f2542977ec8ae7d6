package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldsPurchaseOrder(t *testing.T) {
	text := `Acme Building Supplies
PURCHASE ORDER
PO # 1002
Date: 2024-03-12
Qty 3  Timber battens  45.00
Grand Total: $1,890.50`

	fields := ParseFields(text)
	require.NotNil(t, fields)

	assert.Equal(t, "PO-1002", fields.DocumentNumber)
	assert.Equal(t, "2024-03-12", fields.Date)
	assert.Equal(t, "Acme Building Supplies", fields.VendorName)
	assert.Equal(t, 1890.50, fields.TotalAmount)
}

func TestParseFieldsTotalFallsBackToLargestAmount(t *testing.T) {
	text := `Harbor Timber Co
Invoice INV-2024-042
$120.00
$3,150.25`

	fields := ParseFields(text)
	assert.Equal(t, 3150.25, fields.Amount)
	assert.Equal(t, 3150.25, fields.TotalAmount)
}

func TestParseDocumentNumberVariants(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"dashed", "see PO-1002 attached", "PO-1002"},
		{"spaced hash", "PO # 1002", "PO-1002"},
		{"colon", "inv:2024-17 due", "INV-2024-17"},
		{"bill hash", "BILL#88 overdue", "BILL-88"},
		{"labeled fallback", "Ref: 44812", "44812"},
		{"none", "blank page scan", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDocumentNumber(tt.text))
		})
	}
}

func TestParseDateFormats(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"iso", "Date: 2024-03-12", "2024-03-12"},
		{"slash month first", "3/12/2024", "2024-03-12"},
		{"word month", "Issued Mar 12, 2024", "2024-03-12"},
		{"abbreviated with period", "Dec. 5 2023", "2023-12-05"},
		{"none", "no date here", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDate(tt.text))
		})
	}
}

func TestClassifyDocument(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"purchase order keyword", "PURCHASE ORDER\nitems below", "purchase_order"},
		{"po reference only", "PO-1002\n$500.00", "purchase_order"},
		{"invoice", "INVOICE\nInvoice Number: 42", "invoice"},
		{"bill", "Utility Bill for March", "bill"},
		{"receipt", "RECEIPT\nThank you", "expense"},
		{"unknown", "Delivery note", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDocument(tt.text))
		})
	}
}

func TestParseTotalPrefersSpecificKeyword(t *testing.T) {
	lines := []string{
		"Subtotal: $100.00",
		"Grand Total: $110.00",
	}
	assert.Equal(t, 110.00, parseTotalAmount(lines))
}

func TestAmountInLineSkipsBareSmallIntegers(t *testing.T) {
	// Quantities and line numbers must not be mistaken for amounts.
	_, ok := amountInLine("Qty 3 line 12")
	assert.False(t, ok)

	amount, ok := amountInLine("Item 2 ... $18.00")
	require.True(t, ok)
	assert.Equal(t, 18.00, amount)
}

func TestParseVendorLineSkipsLabelLines(t *testing.T) {
	lines := []string{
		"INVOICE",
		"Date: 2024-01-05",
		"Northside Electrical",
	}
	assert.Equal(t, "Northside Electrical", parseVendorLine(lines))
}
