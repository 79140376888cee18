package ingest

// mapper.go converts one raw row plus the caller's column mapping into a
// canonical candidate. Mapping is pure: no I/O, no mutation, every
// failure is a RowError naming the offending rule.

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidMapping is returned when the request's column mapping is
// missing or does not name the required source headers.
var ErrInvalidMapping = errors.New("invalid column mapping")

// ColumnMapping assigns source headers to the five canonical fields.
// It is request-scoped and never persisted.
type ColumnMapping struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Kind        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Validate checks that the mapping names the headers the pipeline cannot
// do without. Kind, category and description may be unmapped; their
// values then default during mapping.
func (m ColumnMapping) Validate() error {
	if strings.TrimSpace(m.Date) == "" {
		return errInvalidMapping("date column is not mapped")
	}
	if strings.TrimSpace(m.Amount) == "" {
		return errInvalidMapping("amount column is not mapped")
	}
	return nil
}

func errInvalidMapping(msg string) error {
	return &mappingError{msg: msg}
}

type mappingError struct{ msg string }

func (e *mappingError) Error() string { return "invalid column mapping: " + e.msg }
func (e *mappingError) Is(target error) bool {
	return target == ErrInvalidMapping
}

// MapRow builds a candidate from a raw row. Rules apply in order:
// amount first, then date; kind, category and description never reject.
// The returned RowError, if any, carries the row's 1-based number.
func MapRow(row Row, m ColumnMapping, owner uuid.UUID) (Candidate, *RowError) {
	amount, ok := parseAmount(row.Get(m.Amount))
	if !ok {
		return Candidate{}, &RowError{Row: row.Number, Message: "Invalid amount"}
	}

	date, ok := NormalizeDate(row.Get(m.Date))
	if !ok {
		return Candidate{}, &RowError{Row: row.Number, Message: "Invalid date format"}
	}

	kind := Kind(strings.ToLower(strings.TrimSpace(row.Get(m.Kind))))
	if kind != KindIncome && kind != KindExpense {
		kind = KindExpense
	}

	category := row.Get(m.Category)
	if category == "" {
		category = DefaultCategory
	}

	c := Candidate{
		OwnerID:     owner,
		Date:        date,
		Amount:      amount,
		Kind:        kind,
		Category:    category,
		Description: row.Get(m.Description),
		RowNumber:   row.Number,
	}
	c.Fingerprint = Fingerprint(c)
	return c, nil
}

// parseAmount strips everything but digits, '.' and '-' (currency
// symbols, thousands separators, stray spaces) and parses the rest as a
// decimal. Only strictly positive values are accepted.
func parseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}
