package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldscan/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type MatchRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMatchRepository(db *pgxpool.Pool, logger *zap.Logger) *MatchRepository {
	return &MatchRepository{
		db:     db,
		logger: logger,
	}
}

// backRefTables maps an entity type to the accounting table that carries the
// scanned_document_id back-reference.
var backRefTables = map[models.EntityType]string{
	models.EntityTypePurchaseOrder: "purchase_orders",
	models.EntityTypeInvoice:       "invoices",
	models.EntityTypeBill:          "bills",
	models.EntityTypeExpense:       "expenses",
}

// ListUnconfirmed returns unconfirmed matches for a scan ordered by score
// descending, each enriched with a display name and amount from the matched
// record. The enrichment branches per entity type inside one query instead of
// issuing a lookup per row.
func (r *MatchRepository) ListUnconfirmed(ctx context.Context, scanID uuid.UUID, limit int) ([]*models.DocumentMatch, error) {
	query := squirrel.Select(
		"m.id", "m.scan_id", "m.entity_type", "m.entity_id", "m.confidence_score",
		"m.match_reasons", "m.confirmed", "m.confirmed_by", "m.confirmed_at", "m.created_at",
		"COALESCE(po.po_number, inv.invoice_number, b.bill_number, e.description, '') AS entity_name",
		"COALESCE(po.total_amount, inv.total, b.amount, e.amount, 0) AS entity_amount",
	).
		From("document_matches m").
		LeftJoin("purchase_orders po ON m.entity_type = 'purchase_order' AND po.id = m.entity_id").
		LeftJoin("invoices inv ON m.entity_type = 'invoice' AND inv.id = m.entity_id").
		LeftJoin("bills b ON m.entity_type = 'bill' AND b.id = m.entity_id").
		LeftJoin("expenses e ON m.entity_type = 'expense' AND e.id = m.entity_id").
		Where(squirrel.Eq{"m.scan_id": scanID, "m.confirmed": false}).
		OrderBy("m.confidence_score DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.DocumentMatch
	for rows.Next() {
		match, err := scanMatchRow(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}

	return matches, rows.Err()
}

// Confirm marks one match as confirmed, unconfirms every sibling of the same
// scan in the same statement, and writes the scan id into the matched
// accounting record. The whole operation runs in one transaction; returns
// pgx.ErrNoRows when the match does not belong to the scan.
func (r *MatchRepository) Confirm(ctx context.Context, scanID, matchID, userID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var entityType models.EntityType
	var entityID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT entity_type, entity_id FROM document_matches WHERE id = $1 AND scan_id = $2`,
		matchID, scanID,
	).Scan(&entityType, &entityID)
	if err != nil {
		return err
	}

	// One statement scoped by scan_id keeps "at most one confirmed match"
	// true even if the transaction is retried or interleaved.
	_, err = tx.Exec(ctx, `
		UPDATE document_matches
		SET confirmed    = (id = $1),
		    confirmed_by = CASE WHEN id = $1 THEN $2 ELSE NULL END,
		    confirmed_at = CASE WHEN id = $1 THEN NOW() ELSE NULL END
		WHERE scan_id = $3`, matchID, userID, scanID)
	if err != nil {
		return err
	}

	table, ok := backRefTables[entityType]
	if !ok {
		return fmt.Errorf("unknown entity type %q", entityType)
	}
	backRef := fmt.Sprintf(`UPDATE %s SET scanned_document_id = $1 WHERE id = $2`, table)
	if _, err := tx.Exec(ctx, backRef, scanID, entityID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteUnconfirmed removes every unconfirmed match of a scan and leaves
// confirmed matches untouched.
func (r *MatchRepository) DeleteUnconfirmed(ctx context.Context, scanID uuid.UUID) error {
	query := squirrel.Delete("document_matches").
		Where(squirrel.Eq{"scan_id": scanID, "confirmed": false}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func scanMatchRow(row pgx.Row) (*models.DocumentMatch, error) {
	var match models.DocumentMatch
	var reasonsJSON []byte
	var confirmedAt *time.Time

	err := row.Scan(
		&match.ID, &match.ScanID, &match.EntityType, &match.EntityID, &match.ConfidenceScore,
		&reasonsJSON, &match.Confirmed, &match.ConfirmedBy, &confirmedAt, &match.CreatedAt,
		&match.EntityName, &match.EntityAmount,
	)
	if err != nil {
		return nil, err
	}

	match.ConfirmedAt = confirmedAt
	if len(reasonsJSON) > 0 {
		if err := json.Unmarshal(reasonsJSON, &match.MatchReasons); err != nil {
			return nil, fmt.Errorf("unmarshal match reasons: %w", err)
		}
	}

	return &match, nil
}
