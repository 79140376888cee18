package ingest

import "strings"

// fingerprintSep joins the five canonical fields. It is part of the
// stored identity of every transaction and must never change.
const fingerprintSep = "|"

// Fingerprint derives the content identity of a candidate from its five
// canonical fields: ISO date, amount, kind, description, category. The
// owner and source row number are deliberately excluded so re-importing
// the same logical event, from any file or column order, collides with
// the existing record.
//
// Amounts pass through decimal normalization first, so "1200",
// "1200.00" and "$1,200" all fingerprint identically.
func Fingerprint(c Candidate) string {
	return strings.Join([]string{
		c.Date.Format("2006-01-02"),
		c.Amount.String(),
		string(c.Kind),
		c.Description,
		c.Category,
	}, fingerprintSep)
}

// TransactionFingerprint recomputes the fingerprint from a persisted
// transaction. For any committed record it must equal the stored
// Fingerprint field; dedup depends on that identity being stable across
// parse, commit and restore.
func TransactionFingerprint(t Transaction) string {
	return Fingerprint(Candidate{
		Date:        t.Date,
		Amount:      t.Amount,
		Kind:        t.Kind,
		Description: t.Description,
		Category:    t.Category,
	})
}
