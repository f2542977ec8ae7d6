package repository

import (
	"context"

	"fieldscan/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// candidateLimit caps how many records a matcher will score in one pass.
const candidateLimit = 500

// AccountingRepository reads the four externally owned record types the
// matching engine scores against.
type AccountingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAccountingRepository(db *pgxpool.Pool, logger *zap.Logger) *AccountingRepository {
	return &AccountingRepository{
		db:     db,
		logger: logger,
	}
}

// SearchPurchaseOrders returns purchase orders, narrowed by a loose substring
// match on po_number when a fragment is given.
func (r *AccountingRepository) SearchPurchaseOrders(ctx context.Context, numberFragment string) ([]*models.PurchaseOrder, error) {
	query := squirrel.Select(
		"po.id", "po.po_number", "po.supplier_id", "COALESCE(s.name, '')",
		"po.total_amount", "po.date", "po.scanned_document_id",
	).
		From("purchase_orders po").
		LeftJoin("suppliers s ON s.id = po.supplier_id").
		Limit(candidateLimit).
		PlaceholderFormat(squirrel.Dollar)

	if numberFragment != "" {
		query = query.Where(squirrel.ILike{"po.po_number": "%" + numberFragment + "%"})
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

	var orders []*models.PurchaseOrder
	for rows.Next() {
		var po models.PurchaseOrder
		if err := rows.Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.SupplierName, &po.TotalAmount, &po.Date, &po.ScannedDocumentID); err != nil {
			return nil, err
		}
		orders = append(orders, &po)
	}

	return orders, rows.Err()
}

// SearchInvoices returns invoices, narrowed by invoice_number when a fragment
// is given.
func (r *AccountingRepository) SearchInvoices(ctx context.Context, numberFragment string) ([]*models.Invoice, error) {
	query := squirrel.Select(
		"inv.id", "inv.invoice_number", "inv.client_id", "COALESCE(c.name, '')",
		"inv.total", "inv.issue_date", "inv.scanned_document_id",
	).
		From("invoices inv").
		LeftJoin("clients c ON c.id = inv.client_id").
		Limit(candidateLimit).
		PlaceholderFormat(squirrel.Dollar)

	if numberFragment != "" {
		query = query.Where(squirrel.ILike{"inv.invoice_number": "%" + numberFragment + "%"})
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

	var invoices []*models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.ClientID, &inv.ClientName, &inv.Total, &inv.IssueDate, &inv.ScannedDocumentID); err != nil {
			return nil, err
		}
		invoices = append(invoices, &inv)
	}

	return invoices, rows.Err()
}

// SearchBills returns bills with their supplier's display name, narrowed by
// bill_number when a fragment is given.
func (r *AccountingRepository) SearchBills(ctx context.Context, numberFragment string) ([]*models.Bill, error) {
	query := squirrel.Select(
		"b.id", "b.bill_number", "b.supplier_id", "COALESCE(s.name, '')",
		"b.amount", "b.date", "b.scanned_document_id",
	).
		From("bills b").
		LeftJoin("suppliers s ON s.id = b.supplier_id").
		Limit(candidateLimit).
		PlaceholderFormat(squirrel.Dollar)

	if numberFragment != "" {
		query = query.Where(squirrel.ILike{"b.bill_number": "%" + numberFragment + "%"})
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

	var bills []*models.Bill
	for rows.Next() {
		var bill models.Bill
		if err := rows.Scan(&bill.ID, &bill.BillNumber, &bill.SupplierID, &bill.SupplierName, &bill.Amount, &bill.Date, &bill.ScannedDocumentID); err != nil {
			return nil, err
		}
		bills = append(bills, &bill)
	}

	return bills, rows.Err()
}

// SearchExpensesNearAmount returns expenses whose amount falls within the
// given tolerance of the target. Expenses have no reference number, so amount
// is the only cheap narrowing available.
func (r *AccountingRepository) SearchExpensesNearAmount(ctx context.Context, amount, tolerance float64) ([]*models.Expense, error) {
	query := squirrel.Select("id", "description", "amount", "date", "scanned_document_id").
		From("expenses").
		Where(squirrel.GtOrEq{"amount": amount - tolerance}).
		Where(squirrel.LtOrEq{"amount": amount + tolerance}).
		Limit(candidateLimit).
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

	var expenses []*models.Expense
	for rows.Next() {
		var expense models.Expense
		if err := rows.Scan(&expense.ID, &expense.Description, &expense.Amount, &expense.Date, &expense.ScannedDocumentID); err != nil {
			return nil, err
		}
		expenses = append(expenses, &expense)
	}

	return expenses, rows.Err()
}
