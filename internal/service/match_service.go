package service

import (
	"context"
	"errors"

	"fieldscan/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var ErrMatchNotFound = errors.New("match not found for scan")

// MatchStore is the persistence behind the confirmation workflow.
type MatchStore interface {
	ListUnconfirmed(ctx context.Context, scanID uuid.UUID, limit int) ([]*models.DocumentMatch, error)
	Confirm(ctx context.Context, scanID, matchID, userID uuid.UUID) error
	DeleteUnconfirmed(ctx context.Context, scanID uuid.UUID) error
}

// MatchService serves ranked matches for review and applies the human's
// confirm / reject decisions.
type MatchService struct {
	matches    MatchStore
	scans      ScanStore
	maxResults int
	logger     *zap.Logger
}

func NewMatchService(matches MatchStore, scans ScanStore, maxResults int, logger *zap.Logger) *MatchService {
	return &MatchService{
		matches:    matches,
		scans:      scans,
		maxResults: maxResults,
		logger:     logger,
	}
}

// ListMatches returns the scan's unconfirmed matches ranked by confidence.
func (s *MatchService) ListMatches(ctx context.Context, scanID uuid.UUID) ([]*models.DocumentMatch, error) {
	if _, err := s.scans.GetByID(ctx, scanID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScanNotFound
		}
		return nil, err
	}

	return s.matches.ListUnconfirmed(ctx, scanID, s.maxResults)
}

// Confirm accepts one match as authoritative. Every sibling match of the scan
// is unconfirmed in the same transaction, and the accounting record gains the
// scan's id as a back-reference.
func (s *MatchService) Confirm(ctx context.Context, scanID, matchID, userID uuid.UUID) error {
	err := s.matches.Confirm(ctx, scanID, matchID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMatchNotFound
		}
		return err
	}

	s.logger.Info("Match confirmed",
		zap.String("scan_id", scanID.String()),
		zap.String("match_id", matchID.String()),
		zap.String("confirmed_by", userID.String()),
	)
	return nil
}

// RejectAll removes every unconfirmed match of a scan so the document can be
// linked manually. Confirmed matches are untouched.
func (s *MatchService) RejectAll(ctx context.Context, scanID uuid.UUID) error {
	if _, err := s.scans.GetByID(ctx, scanID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrScanNotFound
		}
		return err
	}

	return s.matches.DeleteUnconfirmed(ctx, scanID)
}
