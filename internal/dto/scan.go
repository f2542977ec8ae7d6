package dto

import (
	"time"

	"fieldscan/internal/models"
)

type ScanResponse struct {
	ID            string                 `json:"id"`
	FileName      string                 `json:"file_name"`
	ProjectID     string                 `json:"project_id,omitempty"`
	Status        string                 `json:"status"`
	DocumentType  string                 `json:"document_type,omitempty"`
	ExtractedData *models.ExtractedData  `json:"extracted_data,omitempty"`
	Confidence    float64                `json:"confidence,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	ProcessedAt   string                 `json:"processed_at,omitempty"`
	CreatedAt     string                 `json:"created_at"`
	UpdatedAt     string                 `json:"updated_at"`
}

func NewScanResponse(scan *models.DocumentScan) *ScanResponse {
	resp := &ScanResponse{
		ID:            scan.ID.String(),
		FileName:      scan.FileName,
		Status:        string(scan.Status),
		DocumentType:  string(scan.DocumentType),
		ExtractedData: scan.Extracted,
		Confidence:    scan.Confidence,
		CreatedAt:     scan.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     scan.UpdatedAt.Format(time.RFC3339),
	}
	if scan.ProjectID != nil {
		resp.ProjectID = scan.ProjectID.String()
	}
	if scan.ErrorMessage != nil {
		resp.ErrorMessage = *scan.ErrorMessage
	}
	if scan.ProcessedAt != nil {
		resp.ProcessedAt = scan.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}
