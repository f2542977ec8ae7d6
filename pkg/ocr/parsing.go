package ocr

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Prefixed references first (PO-1002, INV 2024-17, BILL#88), then a
	// labeled generic fallback ("No: 44812", "Number 7_1").
	rePrefixedNumber = regexp.MustCompile(`(?i)\b((?:PO|INV|BILL|EXP)[-\s#:]*[A-Z0-9][A-Z0-9-]*\d)\b`)
	reLabeledNumber  = regexp.MustCompile(`(?i)(?:number|no\.?|ref|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{2,})`)

	reAmount = regexp.MustCompile(`\$?\s*(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)

	reISODate   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reSlashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	reWordDate  = regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
)

var totalKeywords = []string{"grand total", "amount due", "total due", "balance due", "total"}

// ParseFields extracts structured document fields from recognized text.
func ParseFields(text string) *Fields {
	fields := &Fields{}
	lines := splitLines(text)

	fields.DocumentNumber = parseDocumentNumber(text)
	fields.Date = parseDate(text)
	fields.VendorName = parseVendorLine(lines)

	fields.TotalAmount = parseTotalAmount(lines)
	fields.Amount = parseLargestAmount(lines)
	if fields.TotalAmount == 0 {
		fields.TotalAmount = fields.Amount
	}

	return fields
}

// ClassifyDocument guesses the document type from keywords in the text.
func ClassifyDocument(text string) string {
	lower := strings.ToLower(text)
	reference := strings.ToUpper(rePrefixedNumber.FindString(text))
	switch {
	case strings.Contains(lower, "purchase order") || strings.HasPrefix(reference, "PO"):
		return "purchase_order"
	case strings.Contains(lower, "invoice"):
		return "invoice"
	case strings.Contains(lower, "bill"):
		return "bill"
	case strings.Contains(lower, "receipt") || strings.Contains(lower, "expense"):
		return "expense"
	default:
		return "unknown"
	}
}

func parseDocumentNumber(text string) string {
	if m := rePrefixedNumber.FindStringSubmatch(text); len(m) > 1 {
		return normalizeReference(m[1])
	}
	if m := reLabeledNumber.FindStringSubmatch(text); len(m) > 1 {
		return strings.ToUpper(m[1])
	}
	return ""
}

// normalizeReference collapses "PO # 1002" and "po:1002" into "PO-1002".
func normalizeReference(ref string) string {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	ref = regexp.MustCompile(`[\s#:]+`).ReplaceAllString(ref, "-")
	ref = regexp.MustCompile(`-{2,}`).ReplaceAllString(ref, "-")
	return ref
}

func parseDate(text string) string {
	if m := reISODate.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006-01-02", m[0]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if m := reSlashDate.FindStringSubmatch(text); m != nil {
		// Ambiguous day/month ordering; try month-first, then day-first.
		for _, layout := range []string{"1/2/2006", "2/1/2006"} {
			if t, err := time.Parse(layout, m[0]); err == nil {
				return t.Format("2006-01-02")
			}
		}
	}
	if m := reWordDate.FindStringSubmatch(text); m != nil {
		candidate := m[1] + " " + m[2] + " " + m[3]
		if t, err := time.Parse("Jan 2 2006", candidate); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// parseVendorLine takes the first line that looks like a business name: has
// letters, is not a recognized label line, and is not mostly digits.
func parseVendorLine(lines []string) string {
	labels := []string{"invoice", "purchase order", "bill", "receipt", "date", "total", "amount", "number", "qty", "description", "page"}
	for _, line := range lines {
		lower := strings.ToLower(line)
		if len(line) < 3 || len(line) > 64 {
			continue
		}
		isLabel := false
		for _, label := range labels {
			if strings.HasPrefix(lower, label) {
				isLabel = true
				break
			}
		}
		if isLabel {
			continue
		}
		letters, digits := 0, 0
		for _, r := range line {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
				letters++
			case r >= '0' && r <= '9':
				digits++
			}
		}
		if letters >= 3 && letters > digits {
			return line
		}
	}
	return ""
}

// parseTotalAmount looks for an amount on a line containing a total keyword,
// preferring the most specific keyword.
func parseTotalAmount(lines []string) float64 {
	for _, keyword := range totalKeywords {
		for _, line := range lines {
			lower := strings.ToLower(line)
			if !strings.Contains(lower, keyword) {
				continue
			}
			if amount, ok := amountInLine(line); ok {
				return amount
			}
		}
	}
	return 0
}

func parseLargestAmount(lines []string) float64 {
	var largest float64
	for _, line := range lines {
		if amount, ok := amountInLine(line); ok && amount > largest {
			largest = amount
		}
	}
	return largest
}

// amountInLine returns the largest parseable amount in a line. Bare small
// integers are skipped to avoid picking up quantities and line numbers.
func amountInLine(line string) (float64, bool) {
	var best float64
	found := false
	for _, m := range reAmount.FindAllString(line, -1) {
		hasCurrency := strings.Contains(m, "$")
		hasCents := strings.Contains(m, ".")
		digits := strings.NewReplacer("$", "", ",", "", " ", "").Replace(m)
		value, err := strconv.ParseFloat(digits, 64)
		if err != nil || value <= 0 {
			continue
		}
		if !hasCurrency && !hasCents && value < 100 {
			continue
		}
		if value > best {
			best = value
			found = true
		}
	}
	return best, found
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
