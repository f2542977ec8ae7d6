package models

import (
	"time"

	"github.com/google/uuid"
)

// Accounting records are read models owned by the accounting system. The
// matching engine queries them and confirmation writes a single back-reference
// (scanned_document_id) into them; everything else about their schemas is
// fixed externally.

type PurchaseOrder struct {
	ID                uuid.UUID  `db:"id"`
	PONumber          string     `db:"po_number"`
	SupplierID        *uuid.UUID `db:"supplier_id"`
	SupplierName      string     `db:"supplier_name"`
	TotalAmount       float64    `db:"total_amount"`
	Date              time.Time  `db:"date"`
	ScannedDocumentID *uuid.UUID `db:"scanned_document_id"`
}

type Invoice struct {
	ID                uuid.UUID  `db:"id"`
	InvoiceNumber     string     `db:"invoice_number"`
	ClientID          *uuid.UUID `db:"client_id"`
	ClientName        string     `db:"client_name"`
	Total             float64    `db:"total"`
	IssueDate         time.Time  `db:"issue_date"`
	ScannedDocumentID *uuid.UUID `db:"scanned_document_id"`
}

type Bill struct {
	ID                uuid.UUID  `db:"id"`
	BillNumber        string     `db:"bill_number"`
	SupplierID        *uuid.UUID `db:"supplier_id"`
	SupplierName      string     `db:"supplier_name"`
	Amount            float64    `db:"amount"`
	Date              time.Time  `db:"date"`
	ScannedDocumentID *uuid.UUID `db:"scanned_document_id"`
}

type Expense struct {
	ID                uuid.UUID  `db:"id"`
	Description       string     `db:"description"`
	Amount            float64    `db:"amount"`
	Date              time.Time  `db:"date"`
	ScannedDocumentID *uuid.UUID `db:"scanned_document_id"`
}
