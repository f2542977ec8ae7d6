package models

import (
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityTypePurchaseOrder EntityType = "purchase_order"
	EntityTypeInvoice       EntityType = "invoice"
	EntityTypeBill          EntityType = "bill"
	EntityTypeExpense       EntityType = "expense"
)

// DocumentMatch is a scored candidate link between a scan and one accounting
// record. At most one match per scan may be confirmed at any time.
type DocumentMatch struct {
	ID              uuid.UUID  `db:"id"`
	ScanID          uuid.UUID  `db:"scan_id"`
	EntityType      EntityType `db:"entity_type"`
	EntityID        uuid.UUID  `db:"entity_id"`
	ConfidenceScore float64    `db:"confidence_score"`
	MatchReasons    []string   `db:"match_reasons"`
	Confirmed       bool       `db:"confirmed"`
	ConfirmedBy     *uuid.UUID `db:"confirmed_by"`
	ConfirmedAt     *time.Time `db:"confirmed_at"`
	CreatedAt       time.Time  `db:"created_at"`

	// Display fields joined from the matched record, not persisted on the
	// match row itself.
	EntityName   string  `db:"entity_name"`
	EntityAmount float64 `db:"entity_amount"`
}

// CandidateMatch is the matching engine's output before persistence.
type CandidateMatch struct {
	EntityType      EntityType
	EntityID        uuid.UUID
	ConfidenceScore float64
	Reasons         []string
	EntityName      string
	EntityAmount    float64
}
