package store

// convert.go bridges the domain types and pgx wire types. Amounts are
// stored as NUMERIC and travel as shopspring decimals; conversion goes
// through the decimal's coefficient and exponent, never through floats.

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/ingest"
)

// decimalToNumeric converts a decimal amount to pgtype.Numeric.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   d.Coefficient(),
		Exp:   d.Exponent(),
		Valid: true,
	}
}

// numericToDecimal converts a scanned NUMERIC back to a decimal.
func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid || n.NaN {
		return decimal.Decimal{}, fmt.Errorf("amount is not a finite numeric")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads one transactions row.
func scanTransaction(row rowScanner) (ingest.Transaction, error) {
	var (
		t      ingest.Transaction
		amount pgtype.Numeric
		kind   string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Date, &amount, &kind,
		&t.Category, &t.Description, &t.Fingerprint, &t.Deleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return ingest.Transaction{}, err
	}

	t.Kind = ingest.Kind(kind)
	t.Amount, err = numericToDecimal(amount)
	if err != nil {
		return ingest.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return t, nil
}
