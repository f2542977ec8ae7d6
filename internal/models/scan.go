package models

import (
	"time"

	"github.com/google/uuid"
)

type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
)

type DocumentType string

const (
	DocumentTypePurchaseOrder DocumentType = "purchase_order"
	DocumentTypeInvoice       DocumentType = "invoice"
	DocumentTypeBill          DocumentType = "bill"
	DocumentTypeExpense       DocumentType = "expense"
	DocumentTypeUnknown       DocumentType = "unknown"
)

// ExtractedData holds the structured fields reported by the OCR engine for a
// scan. Stored as a JSONB column on document_scans.
type ExtractedData struct {
	DocumentNumber string  `json:"document_number,omitempty"`
	Date           string  `json:"date,omitempty"`
	Amount         float64 `json:"amount,omitempty"`
	TotalAmount    float64 `json:"total_amount,omitempty"`
	VendorName     string  `json:"vendor_name,omitempty"`
}

// Total returns the best available monetary total for matching.
func (e *ExtractedData) Total() float64 {
	if e.TotalAmount != 0 {
		return e.TotalAmount
	}
	return e.Amount
}

type DocumentScan struct {
	ID           uuid.UUID      `db:"id"`
	FilePath     string         `db:"file_path"`
	FileName     string         `db:"file_name"`
	ProjectID    *uuid.UUID     `db:"project_id"`
	UploadedBy   uuid.UUID      `db:"uploaded_by"`
	Status       ScanStatus     `db:"status"`
	DocumentType DocumentType   `db:"document_type"`
	Extracted    *ExtractedData `db:"extracted_data"`
	Confidence   float64        `db:"confidence"`
	ErrorMessage *string        `db:"error_message"`
	ProcessedAt  *time.Time     `db:"processed_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
