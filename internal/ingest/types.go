package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// DefaultCategory is assigned when the source row has no category.
const DefaultCategory = "Uncategorized"

// Candidate is a parsed, validated row that has not been committed yet.
// It either becomes a Transaction or is discarded.
type Candidate struct {
	OwnerID     uuid.UUID
	Date        time.Time
	Amount      decimal.Decimal
	Kind        Kind
	Category    string
	Description string
	RowNumber   int // 1-based position among data rows (header excluded)
	Fingerprint string
}

// Transaction is a persisted ledger entry. Identity for dedup is
// (OwnerID, Fingerprint); at most one non-deleted row may exist per
// identity.
type Transaction struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Date        time.Time
	Amount      decimal.Decimal
	Kind        Kind
	Category    string
	Description string
	Fingerprint string
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionStatus is the overall outcome of an import session.
type SessionStatus string

const (
	StatusSuccess SessionStatus = "success"
	StatusPartial SessionStatus = "partial"
	StatusFailed  SessionStatus = "failed"
)

// ImportSession is the immutable audit record written once per import.
// CommitOrder is assigned at actual commit time and is strictly
// increasing per owner.
type ImportSession struct {
	ID            uuid.UUID     `json:"id"`
	OwnerID       uuid.UUID     `json:"ownerId"`
	FileName      string        `json:"fileName"`
	CommitOrder   int64         `json:"commitOrder"`
	Status        SessionStatus `json:"status"`
	TotalRows     int           `json:"totalRows"`
	InsertedRows  int           `json:"insertedRows"`
	SkippedRows   int           `json:"skippedRows"`
	DuplicateRows int           `json:"duplicateRows"`
	ErrorCount    int           `json:"errorCount"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// RowError records a single skipped data row.
type RowError struct {
	Row     int    `json:"row"` // 1-based data row number
	Message string `json:"message"`
}

// InsertOutcome is the per-record result of a bulk insert. Err is nil on
// success, ErrDuplicate on a uniqueness conflict, or the underlying
// storage error otherwise.
type InsertOutcome struct {
	ID  uuid.UUID
	Err error
}

// ErrDuplicate marks a uniqueness conflict on (owner, fingerprint):
// the record was not written because the slot is already taken.
var ErrDuplicate = errors.New("duplicate transaction")

// ErrBulkUnsupported is returned by stores that cannot perform batched
// inserts; the committer falls back to single-record commits.
var ErrBulkUnsupported = errors.New("bulk insert not supported")

// Store is the persistence surface the pipeline depends on. It is
// satisfied by the pgx implementation in internal/store and by in-memory
// fakes in tests.
type Store interface {
	// ExistingByFingerprint returns all transactions (active and
	// soft-deleted) for owner whose fingerprint is in fps.
	ExistingByFingerprint(ctx context.Context, owner uuid.UUID, fps []string) ([]Transaction, error)

	// InsertBatch attempts one unordered bulk insert and reports a
	// per-record outcome; a record's uniqueness conflict must never
	// disturb the other records. It returns an error only when the
	// batch as a whole failed, in which case none of the records may
	// have persisted.
	InsertBatch(ctx context.Context, txns []Transaction) ([]InsertOutcome, error)

	// Insert persists a single transaction. A uniqueness conflict is
	// reported as ErrDuplicate.
	Insert(ctx context.Context, txn Transaction) error

	// FindByFingerprint returns the transaction for (owner, fp), or nil
	// if none exists.
	FindByFingerprint(ctx context.Context, owner uuid.UUID, fp string) (*Transaction, error)

	// Restore clears the soft-delete flag on id and overwrites the
	// mutable fields from the candidate.
	Restore(ctx context.Context, id uuid.UUID, c Candidate) error

	// LastCommitOrder returns the highest commit order recorded for
	// owner, or 0 when the owner has no sessions.
	LastCommitOrder(ctx context.Context, owner uuid.UUID) (int64, error)

	// CreateSession appends an import session audit record.
	CreateSession(ctx context.Context, s ImportSession) error

	// ListSessions returns the owner's most recent sessions.
	ListSessions(ctx context.Context, owner uuid.UUID, limit int) ([]ImportSession, error)

	// ArchiveSessionsBefore moves sessions older than cutoff to cold
	// storage and returns the number moved.
	ArchiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewTransaction builds a Transaction from a committed candidate.
func NewTransaction(c Candidate, now time.Time) Transaction {
	return Transaction{
		ID:          uuid.New(),
		OwnerID:     c.OwnerID,
		Date:        c.Date,
		Amount:      c.Amount,
		Kind:        c.Kind,
		Category:    c.Category,
		Description: c.Description,
		Fingerprint: c.Fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
