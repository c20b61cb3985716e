package parsers

import (
	"regexp"
	"strings"

	"github.com/username/corrigefolio/backend/src/logger"
	"github.com/username/corrigefolio/backend/src/models"
)

const (
	dateToken  = `\d{1,4}[/-]\d{1,2}[/-]\d{1,4}`
	moneyToken = `[\d.,]*\d`
)

var (
	// "Cliente: 123 - John Doe"
	clientPattern = regexp.MustCompile(`(?im)cliente\s*[:.]?\s*(\d+)\s*[-–]\s*(.+)$`)

	// "Venda: 4521  10/01/2023  12.000,00" with optional per-field labels.
	salePattern = regexp.MustCompile(`(?im)venda\s*(?:n[ºo°.]*)?\s*[:.]?\s*(\S+)\s+(?:data\s*[:.]?\s*)?(` + dateToken + `)\s+(?:valor\s*[:.]?\s*)?(?:R\$\s*)?(` + moneyToken + `)`)

	// One installment row: code with a slash, due date, an optional count
	// token, an amount and an optional trailing (paid) date. Rows are loosely
	// delimited and not column-aligned, so everything between fields is
	// arbitrary horizontal whitespace.
	rowPattern = regexp.MustCompile(`(?m)^[ \t]*([A-Za-z0-9][A-Za-z0-9.\-]*/[A-Za-z0-9.]+)[ \t]+(` + dateToken + `)(?:[ \t]+(\d{1,3}))?[ \t]+(` + moneyToken + `)(?:[ \t]+(` + dateToken + `))?`)

	hasDigit = regexp.MustCompile(`\d`)
)

// totalLabels are section footers that happen to match the row code token.
// A match whose code equals one of these is a grand total, not an installment.
var totalLabels = map[string]bool{
	"total":       true,
	"totais":      true,
	"subtotal":    true,
	"total/geral": true,
	"totais/mes":  true,
}

// StatementParser recovers client, sale and installment records from one
// family of semi-structured installment-statement text. It is deliberately
// tolerant: individual malformed fields default to their zero representation
// and missing entities become warnings, never errors.
type StatementParser struct{}

func NewStatementParser() *StatementParser {
	return &StatementParser{}
}

// Parse runs the layered grammar over the full document text. It always
// returns a result; degraded extractions carry warnings.
func (p *StatementParser) Parse(text string) *models.ExtractionResult {
	result := &models.ExtractionResult{}

	client, found := extractClient(text)
	result.Client = client
	if !found {
		result.Warnings = append(result.Warnings, "client information not found in document")
	}

	sale, found := extractSale(text)
	result.Sale = sale
	if !found {
		result.Warnings = append(result.Warnings, "sale header not found in document")
	}

	result.Installments = extractInstallments(text)
	if len(result.Installments) == 0 {
		result.Warnings = append(result.Warnings, "no installments recovered from document")
	}

	logger.L.Debug("Statement parsed",
		"clientFound", client.Code != "",
		"saleFound", sale.Number != "",
		"installments", len(result.Installments),
		"warnings", len(result.Warnings))
	return result
}

func extractClient(text string) (models.Client, bool) {
	matches := clientPattern.FindStringSubmatch(text)
	if matches == nil {
		return models.Client{}, false
	}
	return models.Client{
		Code: matches[1],
		Name: strings.TrimRight(strings.TrimSpace(matches[2]), ".,;"),
	}, true
}

func extractSale(text string) (models.Sale, bool) {
	matches := salePattern.FindStringSubmatch(text)
	if matches == nil {
		return models.Sale{}, false
	}
	return models.Sale{
		Number: matches[1],
		Date:   ParseDate(matches[2]),
		Amount: ParseMoney(matches[3]),
	}, true
}

// extractInstallments scans for all row matches, filters out section headers
// and totals, then recovers paid dates in a second pass. Payment confirmation
// lines repeat the (code, due date) pair of the original row followed by the
// paid amount and paid date; they are appended separately in the source
// documents, so the first occurrence of a pair is the installment and any
// later occurrence is its payment record.
func extractInstallments(text string) []models.Installment {
	rowMatches := rowPattern.FindAllStringSubmatchIndex(text, -1)
	if rowMatches == nil {
		return nil
	}

	type row struct {
		code, dueRaw string
		start        int
	}

	var installments []models.Installment
	var rows []row
	seen := make(map[string]bool)

	for _, m := range rowMatches {
		code := text[m[2]:m[3]]
		if !hasDigit.MatchString(code) {
			continue
		}
		if totalLabels[strings.ToLower(code)] {
			continue
		}

		dueRaw := text[m[4]:m[5]]
		key := code + "|" + dueRaw
		if seen[key] {
			// A repeated (code, due date) pair is a payment confirmation
			// line for an installment already collected.
			continue
		}
		seen[key] = true

		inst := models.Installment{
			Code:           code,
			DueDate:        ParseDate(dueRaw),
			OriginalAmount: ParseMoney(text[m[8]:m[9]]),
		}
		if m[10] >= 0 {
			if paid := ParseDate(text[m[10]:m[11]]); !paid.IsZero() {
				inst.PaidDate = &paid
			}
		}

		installments = append(installments, inst)
		// Anchor on the code token, not the row match: the row pattern
		// consumes leading whitespace, so an indented row would otherwise
		// sit strictly before its own code and match itself in the paid
		// lookup below.
		rows = append(rows, row{code: code, dueRaw: dueRaw, start: m[2]})
	}

	// Second pass: for each installment, search the text after its row for
	// the exact (code, due date) pair immediately followed by an amount and
	// a date. That trailing date is the paid date and the amount the paid
	// amount. Installments without such a line stay unpaid.
	for i := range installments {
		paidPattern, err := paidPatternFor(rows[i].code, rows[i].dueRaw)
		if err != nil {
			continue
		}
		for _, pm := range paidPattern.FindAllStringSubmatchIndex(text, -1) {
			if pm[0] <= rows[i].start {
				continue
			}
			installments[i].PaidAmount = ParseMoney(text[pm[2]:pm[3]])
			if paid := ParseDate(text[pm[4]:pm[5]]); !paid.IsZero() {
				installments[i].PaidDate = &paid
			}
			break
		}
	}

	return installments
}

func paidPatternFor(code, dueRaw string) (*regexp.Regexp, error) {
	return regexp.Compile(regexp.QuoteMeta(code) + `[ \t]+` + regexp.QuoteMeta(dueRaw) + `[ \t]+(` + moneyToken + `)[ \t]+(` + dateToken + `)`)
}
