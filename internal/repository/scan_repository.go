package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"fieldscan/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var scanColumns = []string{
	"id", "file_path", "file_name", "project_id", "uploaded_by", "status",
	"document_type", "extracted_data", "confidence", "error_message",
	"processed_at", "created_at", "updated_at",
}

// ScanFilter narrows List results. Zero values mean "no filter".
type ScanFilter struct {
	Status       models.ScanStatus
	DocumentType models.DocumentType
	ProjectID    *uuid.UUID
	Limit        int
	Offset       int
}

type ScanRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewScanRepository(db *pgxpool.Pool, logger *zap.Logger) *ScanRepository {
	return &ScanRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ScanRepository) Create(ctx context.Context, scan *models.DocumentScan) error {
	query := squirrel.Insert("document_scans").
		Columns("id", "file_path", "file_name", "project_id", "uploaded_by", "status", "created_at", "updated_at").
		Values(scan.ID, scan.FilePath, scan.FileName, scan.ProjectID, scan.UploadedBy, scan.Status, scan.CreatedAt, scan.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ScanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DocumentScan, error) {
	query := squirrel.Select(scanColumns...).
		From("document_scans").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	return scanScanRow(r.db.QueryRow(ctx, sql, args...))
}

func (r *ScanRepository) List(ctx context.Context, filter ScanFilter) ([]*models.DocumentScan, error) {
	query := squirrel.Select(scanColumns...).
		From("document_scans").
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.DocumentType != "" {
		query = query.Where(squirrel.Eq{"document_type": filter.DocumentType})
	}
	if filter.ProjectID != nil {
		query = query.Where(squirrel.Eq{"project_id": *filter.ProjectID})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []*models.DocumentScan
	for rows.Next() {
		scan, err := scanScanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}

	return scans, rows.Err()
}

// SetProcessing transitions a scan into the processing state.
func (r *ScanRepository) SetProcessing(ctx context.Context, id uuid.UUID) error {
	query := squirrel.Update("document_scans").
		Set("status", models.ScanStatusProcessing).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// MarkFailed records a terminal failure with the triggering error's message.
func (r *ScanRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	query := squirrel.Update("document_scans").
		Set("status", models.ScanStatusFailed).
		Set("error_message", message).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// Complete writes the OCR result and the match batch in a single transaction,
// so a crash cannot leave a completed scan with a partially written match set.
func (r *ScanRepository) Complete(ctx context.Context, scan *models.DocumentScan, matches []*models.DocumentMatch) error {
	extractedJSON, err := json.Marshal(scan.Extracted)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	update := squirrel.Update("document_scans").
		Set("status", models.ScanStatusCompleted).
		Set("document_type", scan.DocumentType).
		Set("extracted_data", extractedJSON).
		Set("confidence", scan.Confidence).
		Set("processed_at", scan.ProcessedAt).
		Set("error_message", nil).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": scan.ID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := update.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return err
	}

	if len(matches) > 0 {
		insert := squirrel.Insert("document_matches").
			Columns("id", "scan_id", "entity_type", "entity_id", "confidence_score", "match_reasons", "confirmed", "created_at").
			PlaceholderFormat(squirrel.Dollar)

		for _, match := range matches {
			reasonsJSON, err := json.Marshal(match.MatchReasons)
			if err != nil {
				return fmt.Errorf("marshal match reasons: %w", err)
			}
			insert = insert.Values(match.ID, match.ScanID, match.EntityType, match.EntityID, match.ConfidenceScore, reasonsJSON, match.Confirmed, match.CreatedAt)
		}

		sql, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ResetForRetry atomically transitions a scan back to pending, but only from
// failed, or from completed with no confirmed match. Prior matches are deleted
// and the error message cleared in the same transaction. Returns false when
// the scan was not in a retryable state.
func (r *ScanRepository) ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE document_scans
		SET status = 'pending', error_message = NULL, updated_at = NOW()
		WHERE id = $1
		  AND (status = 'failed'
		       OR (status = 'completed' AND NOT EXISTS (
		           SELECT 1 FROM document_matches WHERE scan_id = $1 AND confirmed
		       )))`, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM document_matches WHERE scan_id = $1`, id); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (r *ScanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := squirrel.Delete("document_scans").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func scanScanRow(row pgx.Row) (*models.DocumentScan, error) {
	var scan models.DocumentScan
	var documentType *string
	var extractedJSON []byte

	err := row.Scan(
		&scan.ID, &scan.FilePath, &scan.FileName, &scan.ProjectID, &scan.UploadedBy,
		&scan.Status, &documentType, &extractedJSON, &scan.Confidence,
		&scan.ErrorMessage, &scan.ProcessedAt, &scan.CreatedAt, &scan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if documentType != nil {
		scan.DocumentType = models.DocumentType(*documentType)
	}
	if len(extractedJSON) > 0 {
		var extracted models.ExtractedData
		if err := json.Unmarshal(extractedJSON, &extracted); err != nil {
			return nil, fmt.Errorf("unmarshal extracted data: %w", err)
		}
		scan.Extracted = &extracted
	}

	return &scan, nil
}
