package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"fieldscan/internal/models"
	"fieldscan/pkg/config"
	"fieldscan/pkg/similarity"

	"go.uber.org/zap"
)

// AccountingStore is the read access the matching engine needs into the four
// externally owned record types.
type AccountingStore interface {
	SearchPurchaseOrders(ctx context.Context, numberFragment string) ([]*models.PurchaseOrder, error)
	SearchInvoices(ctx context.Context, numberFragment string) ([]*models.Invoice, error)
	SearchBills(ctx context.Context, numberFragment string) ([]*models.Bill, error)
	SearchExpensesNearAmount(ctx context.Context, amount, tolerance float64) ([]*models.Expense, error)
}

// MatchingService scores extracted document fields against accounting records
// and produces ranked, explainable candidate matches.
type MatchingService struct {
	accounting AccountingStore
	cfg        config.MatchingConfig
	logger     *zap.Logger
}

func NewMatchingService(accounting AccountingStore, cfg config.MatchingConfig, logger *zap.Logger) *MatchingService {
	return &MatchingService{
		accounting: accounting,
		cfg:        cfg,
		logger:     logger,
	}
}

type matcher struct {
	name string
	run  func(ctx context.Context, extracted *models.ExtractedData) ([]models.CandidateMatch, error)
}

// FindMatches runs every matcher compatible with the document type and
// returns the aggregated candidates sorted by score descending, truncated to
// the configured maximum. Matchers are isolated: one failing matcher is
// logged and skipped; FindMatches itself fails only when every matcher fails.
func (s *MatchingService) FindMatches(ctx context.Context, extracted *models.ExtractedData, docType models.DocumentType) ([]models.CandidateMatch, error) {
	if extracted == nil {
		return nil, nil
	}

	matchers := s.matchersFor(docType)

	var all []models.CandidateMatch
	var firstErr error
	failures := 0

	for _, m := range matchers {
		found, err := m.run(ctx, extracted)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Matcher failed",
				zap.String("matcher", m.name),
				zap.Error(err),
			)
			continue
		}
		all = append(all, found...)
	}

	if failures > 0 && failures == len(matchers) {
		return nil, fmt.Errorf("all matchers failed: %w", firstErr)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ConfidenceScore > all[j].ConfidenceScore
	})
	if len(all) > s.cfg.MaxResults {
		all = all[:s.cfg.MaxResults]
	}

	return all, nil
}

func (s *MatchingService) matchersFor(docType models.DocumentType) []matcher {
	switch docType {
	case models.DocumentTypePurchaseOrder:
		return []matcher{{"purchase_order", s.matchPurchaseOrders}}
	case models.DocumentTypeInvoice:
		return []matcher{{"invoice", s.matchInvoices}}
	case models.DocumentTypeBill:
		return []matcher{{"bill", s.matchBills}}
	case models.DocumentTypeExpense:
		return []matcher{{"expense", s.matchExpenses}}
	default:
		return []matcher{
			{"purchase_order", s.matchPurchaseOrders},
			{"invoice", s.matchInvoices},
			{"bill", s.matchBills},
			{"expense", s.matchExpenses},
		}
	}
}

func (s *MatchingService) matchPurchaseOrders(ctx context.Context, extracted *models.ExtractedData) ([]models.CandidateMatch, error) {
	if extracted.DocumentNumber == "" && extracted.Total() == 0 && extracted.Date == "" {
		return nil, nil
	}

	orders, err := s.accounting.SearchPurchaseOrders(ctx, extracted.DocumentNumber)
	if err != nil {
		return nil, fmt.Errorf("query purchase orders: %w", err)
	}

	extractedDate := parseExtractedDate(extracted.Date)
	var found []models.CandidateMatch
	for _, po := range orders {
		var score float64
		var reasons []string

		factor, reason := s.numberFactor(extracted.DocumentNumber, po.PONumber, false)
		score, reasons = accumulate(score, reasons, factor, reason)

		factor, reason = s.amountFactor(extracted.Total(), po.TotalAmount, s.cfg.AmountExactWeight, s.cfg.AmountNearWeight, false)
		score, reasons = accumulate(score, reasons, factor, reason)

		factor, reason = s.dateFactor(extractedDate, po.Date, s.cfg.DateWeight)
		score, reasons = accumulate(score, reasons, factor, reason)

		if score = clampScore(score); score > s.cfg.MinScore {
			found = append(found, models.CandidateMatch{
				EntityType:      models.EntityTypePurchaseOrder,
				EntityID:        po.ID,
				ConfidenceScore: score,
				Reasons:         reasons,
				EntityName:      po.PONumber,
				EntityAmount:    po.TotalAmount,
			})
		}
	}

	return found, nil
}

func (s *MatchingService) matchInvoices(ctx context.Context, extracted *models.ExtractedData) ([]models.CandidateMatch, error) {
	if extracted.DocumentNumber == "" && extracted.Total() == 0 && extracted.Date == "" {
		return nil, nil
	}

	invoices, err := s.accounting.SearchInvoices(ctx, extracted.DocumentNumber)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	extractedDate := parseExtractedDate(extracted.Date)
	var found []models.CandidateMatch
	for _, inv := range invoices {
		var score float64
		var reasons []string

		factor, reason := s.numberFactor(extracted.DocumentNumber, inv.InvoiceNumber, false)
		score, reasons = accumulate(score, reasons, factor, reason)

		factor, reason = s.amountFactor(extracted.Total(), inv.Total, s.cfg.AmountExactWeight, s.cfg.AmountNearWeight, false)
		score, reasons = accumulate(score, reasons, factor, reason)

		factor, reason = s.dateFactor(extractedDate, inv.IssueDate, s.cfg.DateWeight)
		score, reasons = accumulate(score, reasons, factor, reason)

		if score = clampScore(score); score > s.cfg.MinScore {
			found = append(found, models.CandidateMatch{
				EntityType:      models.EntityTypeInvoice,
				EntityID:        inv.ID,
				ConfidenceScore: score,
				Reasons:         reasons,
				EntityName:      inv.InvoiceNumber,
				EntityAmount:    inv.Total,
			})
		}
	}

	return found, nil
}

// matchBills uses only the strong number tier and the exact amount tier, plus
// a supplier display-name comparison.
func (s *MatchingService) matchBills(ctx context.Context, extracted *models.ExtractedData) ([]models.CandidateMatch, error) {
	if extracted.DocumentNumber == "" && extracted.Total() == 0 && extracted.VendorName == "" && extracted.Date == "" {
		return nil, nil
	}

	bills, err := s.accounting.SearchBills(ctx, extracted.DocumentNumber)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}

	extractedDate := parseExtractedDate(extracted.Date)
	var found []models.CandidateMatch
	for _, bill := range bills {
		var score float64
		var reasons []string

		factor, reason := s.numberFactor(extracted.DocumentNumber, bill.BillNumber, true)
		score, reasons = accumulate(score, reasons, factor, reason)

		factor, reason = s.amountFactor(extracted.Total(), bill.Amount, s.cfg.AmountExactWeight, 0, true)
		score, reasons = accumulate(score, reasons, factor, reason)

		factor, reason = s.dateFactor(extractedDate, bill.Date, s.cfg.DateWeight)
		score, reasons = accumulate(score, reasons, factor, reason)

		if extracted.VendorName != "" && bill.SupplierName != "" {
			if sim := similarity.Score(extracted.VendorName, bill.SupplierName); sim > s.cfg.SupplierNameThreshold {
				score, reasons = accumulate(score, reasons, s.cfg.SupplierNameWeight,
					fmt.Sprintf("Supplier name match: %s", bill.SupplierName))
			}
		}

		if score = clampScore(score); score > s.cfg.MinScore {
			found = append(found, models.CandidateMatch{
				EntityType:      models.EntityTypeBill,
				EntityID:        bill.ID,
				ConfidenceScore: score,
				Reasons:         reasons,
				EntityName:      bill.BillNumber,
				EntityAmount:    bill.Amount,
			})
		}
	}

	return found, nil
}

// matchExpenses has no reference number to go on: candidates are narrowed by
// amount and scored on amount, date, and the vendor name appearing in the
// expense description.
func (s *MatchingService) matchExpenses(ctx context.Context, extracted *models.ExtractedData) ([]models.CandidateMatch, error) {
	total := extracted.Total()
	if total == 0 {
		return nil, nil
	}

	expenses, err := s.accounting.SearchExpensesNearAmount(ctx, total, s.cfg.AmountNearTolerance)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	extractedDate := parseExtractedDate(extracted.Date)
	var found []models.CandidateMatch
	for _, expense := range expenses {
		var score float64
		var reasons []string

		factor, reason := s.amountFactor(total, expense.Amount, s.cfg.ExpenseAmountExactWeight, s.cfg.ExpenseAmountNearWeight, false)
		score, reasons = accumulate(score, reasons, factor, reason)

		factor, reason = s.dateFactor(extractedDate, expense.Date, s.cfg.ExpenseDateWeight)
		score, reasons = accumulate(score, reasons, factor, reason)

		if extracted.VendorName != "" && expense.Description != "" {
			if sim := similarity.Score(extracted.VendorName, expense.Description); sim > s.cfg.DescriptionThreshold {
				score, reasons = accumulate(score, reasons, s.cfg.DescriptionWeight, "Vendor name in description")
			}
		}

		if score = clampScore(score); score > s.cfg.MinScore {
			found = append(found, models.CandidateMatch{
				EntityType:      models.EntityTypeExpense,
				EntityID:        expense.ID,
				ConfidenceScore: score,
				Reasons:         reasons,
				EntityName:      expense.Description,
				EntityAmount:    expense.Amount,
			})
		}
	}

	return found, nil
}

// numberFactor scores identifier similarity. strongOnly disables the partial
// tier (bill matcher).
func (s *MatchingService) numberFactor(extractedNumber, recordNumber string, strongOnly bool) (float64, string) {
	if extractedNumber == "" || recordNumber == "" {
		return 0, ""
	}

	sim := similarity.Score(extractedNumber, recordNumber)
	if sim > s.cfg.NumberStrongThreshold {
		return s.cfg.NumberStrongWeight, fmt.Sprintf("Number match: %s", recordNumber)
	}
	if !strongOnly && sim > s.cfg.NumberPartialThreshold {
		return s.cfg.NumberPartialWeight, fmt.Sprintf("Partial number match: %s", recordNumber)
	}
	return 0, ""
}

// amountFactor scores monetary proximity with a fixed $0.01 "exact" band.
// exactOnly disables the near tier (bill matcher).
func (s *MatchingService) amountFactor(extractedTotal, recordAmount, exactWeight, nearWeight float64, exactOnly bool) (float64, string) {
	if extractedTotal == 0 {
		return 0, ""
	}

	diff := math.Abs(extractedTotal - recordAmount)
	if diff < s.cfg.AmountExactTolerance {
		return exactWeight, fmt.Sprintf("Amount match: $%.2f (diff: $%.2f)", recordAmount, diff)
	}
	if !exactOnly && diff < s.cfg.AmountNearTolerance {
		return nearWeight, fmt.Sprintf("Amount close: $%.2f (diff: $%.2f)", recordAmount, diff)
	}
	return 0, ""
}

func (s *MatchingService) dateFactor(extractedDate, recordDate time.Time, weight float64) (float64, string) {
	if extractedDate.IsZero() || recordDate.IsZero() {
		return 0, ""
	}

	days := int(math.Abs(extractedDate.Sub(recordDate).Hours()) / 24)
	if days <= s.cfg.DateProximityDays {
		return weight, fmt.Sprintf("Date within %d days", s.cfg.DateProximityDays)
	}
	return 0, ""
}

func accumulate(score float64, reasons []string, factor float64, reason string) (float64, []string) {
	if factor <= 0 {
		return score, reasons
	}
	return score + factor, append(reasons, reason)
}

func clampScore(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	return score
}

func parseExtractedDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}
	}
	return t
}
