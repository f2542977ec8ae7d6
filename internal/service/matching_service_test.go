package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fieldscan/internal/models"
	"fieldscan/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAccountingStore struct {
	purchaseOrders []*models.PurchaseOrder
	invoices       []*models.Invoice
	bills          []*models.Bill
	expenses       []*models.Expense

	poErr      error
	invoiceErr error
	billErr    error
	expenseErr error

	poCalls      int
	expenseCalls int
}

func (f *fakeAccountingStore) SearchPurchaseOrders(ctx context.Context, numberFragment string) ([]*models.PurchaseOrder, error) {
	f.poCalls++
	return f.purchaseOrders, f.poErr
}

func (f *fakeAccountingStore) SearchInvoices(ctx context.Context, numberFragment string) ([]*models.Invoice, error) {
	return f.invoices, f.invoiceErr
}

func (f *fakeAccountingStore) SearchBills(ctx context.Context, numberFragment string) ([]*models.Bill, error) {
	return f.bills, f.billErr
}

func (f *fakeAccountingStore) SearchExpensesNearAmount(ctx context.Context, amount, tolerance float64) ([]*models.Expense, error) {
	f.expenseCalls++
	return f.expenses, f.expenseErr
}

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		MinScore:   0.3,
		MaxResults: 5,

		AmountExactTolerance: 0.01,
		AmountNearTolerance:  1.0,
		DateProximityDays:    7,

		NumberStrongThreshold:  0.8,
		NumberStrongWeight:     0.5,
		NumberPartialThreshold: 0.6,
		NumberPartialWeight:    0.3,

		AmountExactWeight:        0.4,
		AmountNearWeight:         0.2,
		ExpenseAmountExactWeight: 0.5,
		ExpenseAmountNearWeight:  0.3,

		DateWeight:        0.1,
		ExpenseDateWeight: 0.2,

		SupplierNameThreshold: 0.7,
		SupplierNameWeight:    0.3,
		DescriptionThreshold:  0.6,
		DescriptionWeight:     0.2,
	}
}

func newTestMatchingService(store AccountingStore, cfg config.MatchingConfig) *MatchingService {
	return NewMatchingService(store, cfg, zap.NewNop())
}

func TestFindMatchesNilExtracted(t *testing.T) {
	svc := newTestMatchingService(&fakeAccountingStore{}, testMatchingConfig())

	found, err := svc.FindMatches(context.Background(), nil, models.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMatchPurchaseOrderAllFactors(t *testing.T) {
	poID := uuid.New()
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeAccountingStore{
		purchaseOrders: []*models.PurchaseOrder{
			{ID: poID, PONumber: "PO-1002", TotalAmount: 1890.50, Date: date},
		},
	}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{
		DocumentNumber: "PO-1002",
		TotalAmount:    1890.50,
		Date:           "2024-03-12",
	}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	require.Len(t, found, 1)

	match := found[0]
	assert.Equal(t, models.EntityTypePurchaseOrder, match.EntityType)
	assert.Equal(t, poID, match.EntityID)
	assert.InDelta(t, 1.0, match.ConfidenceScore, 1e-9)

	// Reasons carry factor order: number, amount, date.
	require.Len(t, match.Reasons, 3)
	assert.Equal(t, "Number match: PO-1002", match.Reasons[0])
	assert.Equal(t, "Amount match: $1890.50 (diff: $0.00)", match.Reasons[1])
	assert.Equal(t, "Date within 7 days", match.Reasons[2])
}

func TestMatchPurchaseOrderPartialNumber(t *testing.T) {
	// "PO-1020" vs "PO-1002" has two substitutions over seven characters,
	// similarity ~0.714: above the partial threshold, below the strong one.
	store := &fakeAccountingStore{
		purchaseOrders: []*models.PurchaseOrder{
			{ID: uuid.New(), PONumber: "PO-1002", TotalAmount: 1890.95, Date: time.Now().AddDate(0, -3, 0)},
		},
	}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{
		DocumentNumber: "PO-1020",
		TotalAmount:    1890.50,
	}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Partial number (0.3) + near amount (0.2).
	assert.InDelta(t, 0.5, found[0].ConfidenceScore, 1e-9)
	require.Len(t, found[0].Reasons, 2)
	assert.Equal(t, "Partial number match: PO-1002", found[0].Reasons[0])
	assert.Equal(t, "Amount close: $1890.95 (diff: $0.45)", found[0].Reasons[1])
}

func TestMatchPurchaseOrderBelowThresholdExcluded(t *testing.T) {
	// A lone partial number factor scores exactly 0.3, which does not clear
	// the strictly-greater-than threshold.
	store := &fakeAccountingStore{
		purchaseOrders: []*models.PurchaseOrder{
			{ID: uuid.New(), PONumber: "PO-1002", TotalAmount: 9999.99, Date: time.Now().AddDate(-1, 0, 0)},
		},
	}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{DocumentNumber: "PO-1020"}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMatchScoreClampedToOne(t *testing.T) {
	cfg := testMatchingConfig()
	cfg.NumberStrongWeight = 0.8
	cfg.AmountExactWeight = 0.4

	store := &fakeAccountingStore{
		purchaseOrders: []*models.PurchaseOrder{
			{ID: uuid.New(), PONumber: "PO-1001", TotalAmount: 2450.00, Date: time.Now()},
		},
	}
	svc := newTestMatchingService(store, cfg)

	extracted := &models.ExtractedData{DocumentNumber: "PO-1001", TotalAmount: 2450.00}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 1.0, found[0].ConfidenceScore)
}

func TestFindMatchesSortedAndTruncated(t *testing.T) {
	var orders []*models.PurchaseOrder
	for i := 0; i < 7; i++ {
		orders = append(orders, &models.PurchaseOrder{
			ID:          uuid.New(),
			PONumber:    "PO-1001",
			TotalAmount: 2450.00 + float64(i)*0.1,
			Date:        time.Now(),
		})
	}
	store := &fakeAccountingStore{purchaseOrders: orders}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{
		DocumentNumber: "PO-1001",
		TotalAmount:    2450.00,
		Date:           time.Now().Format("2006-01-02"),
	}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypePurchaseOrder)
	require.NoError(t, err)
	require.Len(t, found, 5)

	for i := 1; i < len(found); i++ {
		assert.GreaterOrEqual(t, found[i-1].ConfidenceScore, found[i].ConfidenceScore,
			fmt.Sprintf("results out of order at %d", i))
	}
	for _, match := range found {
		assert.Greater(t, match.ConfidenceScore, 0.3)
		assert.LessOrEqual(t, match.ConfidenceScore, 1.0)
	}
}

func TestMatchExpensesScoredOnAmountDateDescription(t *testing.T) {
	expenseID := uuid.New()
	store := &fakeAccountingStore{
		expenses: []*models.Expense{
			{ID: expenseID, Description: "Acme hardware", Amount: 134.99, Date: time.Now()},
		},
	}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{
		Amount:     134.99,
		Date:       time.Now().Format("2006-01-02"),
		VendorName: "Acme hardware",
	}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypeExpense)
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Exact amount (0.5) + date (0.2) + description (0.2).
	assert.InDelta(t, 0.9, found[0].ConfidenceScore, 1e-9)
	assert.Contains(t, found[0].Reasons, "Vendor name in description")
}

func TestMatchExpensesSkippedWithoutAmount(t *testing.T) {
	store := &fakeAccountingStore{}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{VendorName: "Acme"}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypeExpense)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Zero(t, store.expenseCalls, "expense matcher should not query without an amount")
}

func TestMatchBillsSupplierName(t *testing.T) {
	billID := uuid.New()
	store := &fakeAccountingStore{
		bills: []*models.Bill{
			{ID: billID, BillNumber: "BILL-553", SupplierName: "Acme Building Supplies", Amount: 480.90, Date: time.Now().AddDate(0, -2, 0)},
		},
	}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{
		DocumentNumber: "BILL-553",
		VendorName:     "Acme Building Supplies",
	}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypeBill)
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Strong number (0.5) + supplier name (0.3).
	assert.InDelta(t, 0.8, found[0].ConfidenceScore, 1e-9)
	assert.Contains(t, found[0].Reasons, "Supplier name match: Acme Building Supplies")
}

func TestMatchBillsNoPartialNumberTier(t *testing.T) {
	store := &fakeAccountingStore{
		bills: []*models.Bill{
			{ID: uuid.New(), BillNumber: "BILL-553", Amount: 9999.00, Date: time.Now().AddDate(-1, 0, 0)},
		},
	}
	svc := newTestMatchingService(store, testMatchingConfig())

	// "BILL-535" vs "BILL-553" lands in the partial band, which the bill
	// matcher does not award.
	extracted := &models.ExtractedData{DocumentNumber: "BILL-535"}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypeBill)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFindMatchesUnknownTypeRunsAllMatchers(t *testing.T) {
	store := &fakeAccountingStore{
		purchaseOrders: []*models.PurchaseOrder{
			{ID: uuid.New(), PONumber: "PO-1001", TotalAmount: 500.00, Date: time.Now()},
		},
		invoices: []*models.Invoice{
			{ID: uuid.New(), InvoiceNumber: "INV-77", Total: 500.00, IssueDate: time.Now()},
		},
		expenses: []*models.Expense{
			{ID: uuid.New(), Description: "misc", Amount: 500.00, Date: time.Now()},
		},
	}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{
		TotalAmount: 500.00,
		Date:        time.Now().Format("2006-01-02"),
	}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypeUnknown)
	require.NoError(t, err)

	types := map[models.EntityType]bool{}
	for _, match := range found {
		types[match.EntityType] = true
	}
	assert.True(t, types[models.EntityTypePurchaseOrder])
	assert.True(t, types[models.EntityTypeInvoice])
	assert.True(t, types[models.EntityTypeExpense])
}

func TestFindMatchesIsolatesFailingMatcher(t *testing.T) {
	store := &fakeAccountingStore{
		poErr: errors.New("po table gone"),
		invoices: []*models.Invoice{
			{ID: uuid.New(), InvoiceNumber: "INV-42", Total: 100.00, IssueDate: time.Now()},
		},
	}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{
		DocumentNumber: "INV-42",
		TotalAmount:    100.00,
	}

	found, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypeUnknown)
	require.NoError(t, err, "one failing matcher must not fail the run")
	require.NotEmpty(t, found)
	assert.Equal(t, models.EntityTypeInvoice, found[0].EntityType)
}

func TestFindMatchesFailsWhenAllMatchersFail(t *testing.T) {
	dbErr := errors.New("connection refused")
	store := &fakeAccountingStore{poErr: dbErr}
	svc := newTestMatchingService(store, testMatchingConfig())

	extracted := &models.ExtractedData{DocumentNumber: "PO-1001"}

	_, err := svc.FindMatches(context.Background(), extracted, models.DocumentTypePurchaseOrder)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}
