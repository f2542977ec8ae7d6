package dto

import (
	"time"

	"fieldscan/internal/models"
)

type MatchResponse struct {
	ID              string   `json:"id"`
	ScanID          string   `json:"scan_id"`
	EntityType      string   `json:"entity_type"`
	EntityID        string   `json:"entity_id"`
	EntityName      string   `json:"entity_name"`
	EntityAmount    float64  `json:"entity_amount"`
	ConfidenceScore float64  `json:"confidence_score"`
	MatchReasons    []string `json:"match_reasons"`
	Confirmed       bool     `json:"confirmed"`
	ConfirmedBy     string   `json:"confirmed_by,omitempty"`
	ConfirmedAt     string   `json:"confirmed_at,omitempty"`
}

func NewMatchResponse(match *models.DocumentMatch) *MatchResponse {
	resp := &MatchResponse{
		ID:              match.ID.String(),
		ScanID:          match.ScanID.String(),
		EntityType:      string(match.EntityType),
		EntityID:        match.EntityID.String(),
		EntityName:      match.EntityName,
		EntityAmount:    match.EntityAmount,
		ConfidenceScore: match.ConfidenceScore,
		MatchReasons:    match.MatchReasons,
		Confirmed:       match.Confirmed,
	}
	if resp.MatchReasons == nil {
		resp.MatchReasons = []string{}
	}
	if match.ConfirmedBy != nil {
		resp.ConfirmedBy = match.ConfirmedBy.String()
	}
	if match.ConfirmedAt != nil {
		resp.ConfirmedAt = match.ConfirmedAt.Format(time.RFC3339)
	}
	return resp
}
