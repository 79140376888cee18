// Package store persists transactions and import sessions in
// PostgreSQL. It implements ingest.Store over a pgx connection pool;
// the ingest package never sees pgx types.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finledger/finledger/internal/ingest"
)

//go:embed schema.sql
var schemaSQL string

// Postgres implements ingest.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates a store over pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema applies the embedded schema. All statements are
// idempotent, so it is safe to run on every startup.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const txnColumns = `id, owner_id, tx_date, amount, kind, category, description, fingerprint, deleted, created_at, updated_at`

// ExistingByFingerprint returns the owner's transactions, active and
// soft-deleted, whose fingerprint appears in fps.
func (p *Postgres) ExistingByFingerprint(ctx context.Context, owner uuid.UUID, fps []string) ([]ingest.Transaction, error) {
	if len(fps) == 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE owner_id = $1 AND fingerprint = ANY($2)`,
		owner, fps)
	if err != nil {
		return nil, fmt.Errorf("query existing fingerprints: %w", err)
	}
	defer rows.Close()

	var out []ingest.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// A conflicting insert must not raise: pgx runs the whole batch in one
// implicit transaction, and a raised 23505 would roll back every insert
// already executed while poisoning the statements after it. DO NOTHING
// keeps each record's outcome independent; a duplicate simply reports
// zero rows affected.
const insertTxnSQL = `
	INSERT INTO transactions (` + txnColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (owner_id, fingerprint) DO NOTHING`

// InsertBatch sends one unordered batch of inserts and reports a
// per-record outcome. Uniqueness conflicts come back as
// ingest.ErrDuplicate on the record, never as a batch error. A raised
// statement error rolls the implicit batch transaction back, so it is
// reported as a batch error: none of the records persisted.
func (p *Postgres) InsertBatch(ctx context.Context, txns []ingest.Transaction) ([]ingest.InsertOutcome, error) {
	if len(txns) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(insertTxnSQL, insertArgs(t)...)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	outcomes := make([]ingest.InsertOutcome, len(txns))
	for i, t := range txns {
		tag, err := br.Exec()
		if err != nil {
			return nil, fmt.Errorf("batch insert: %w", err)
		}
		out := ingest.InsertOutcome{ID: t.ID}
		if tag.RowsAffected() == 0 {
			out.Err = ingest.ErrDuplicate
		}
		outcomes[i] = out
	}
	return outcomes, nil
}

// Insert persists one transaction; the single-record fallback path.
func (p *Postgres) Insert(ctx context.Context, t ingest.Transaction) error {
	tag, err := p.pool.Exec(ctx, insertTxnSQL, insertArgs(t)...)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrDuplicate
	}
	return nil
}

func insertArgs(t ingest.Transaction) []any {
	return []any{
		t.ID, t.OwnerID, t.Date, decimalToNumeric(t.Amount), string(t.Kind),
		t.Category, t.Description, t.Fingerprint, t.Deleted, t.CreatedAt, t.UpdatedAt,
	}
}

// FindByFingerprint returns the record for (owner, fp), or nil.
func (p *Postgres) FindByFingerprint(ctx context.Context, owner uuid.UUID, fp string) (*ingest.Transaction, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE owner_id = $1 AND fingerprint = $2`,
		owner, fp)

	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Restore clears the soft-delete flag and overwrites the mutable fields
// from the candidate. The fingerprint is rewritten too: it is derived
// from the same fields and must stay consistent with them.
func (p *Postgres) Restore(ctx context.Context, id uuid.UUID, c ingest.Candidate) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE transactions
		SET deleted = FALSE,
		    tx_date = $2,
		    amount = $3,
		    kind = $4,
		    category = $5,
		    description = $6,
		    fingerprint = $7,
		    updated_at = now()
		WHERE id = $1`,
		id, c.Date, decimalToNumeric(c.Amount), string(c.Kind), c.Category, c.Description, c.Fingerprint)
	if err != nil {
		return fmt.Errorf("restore transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restore transaction: no row with id %s", id)
	}
	return nil
}

// LastCommitOrder returns the highest commit order recorded for owner,
// counting archived sessions too so orders never regress after a
// retention cycle.
func (p *Postgres) LastCommitOrder(ctx context.Context, owner uuid.UUID) (int64, error) {
	var last int64
	err := p.pool.QueryRow(ctx, `
		SELECT GREATEST(
			COALESCE((SELECT MAX(commit_order) FROM import_sessions WHERE owner_id = $1), 0),
			COALESCE((SELECT MAX(commit_order) FROM import_sessions_archive WHERE owner_id = $1), 0)
		)`,
		owner).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last commit order: %w", err)
	}
	return last, nil
}

const sessionColumns = `id, owner_id, file_name, commit_order, status, total_rows, inserted_rows, skipped_rows, duplicate_rows, error_count, created_at`

// CreateSession appends one immutable import session row.
func (p *Postgres) CreateSession(ctx context.Context, s ingest.ImportSession) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO import_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.OwnerID, s.FileName, s.CommitOrder, string(s.Status),
		s.TotalRows, s.InsertedRows, s.SkippedRows, s.DuplicateRows, s.ErrorCount, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create import session: %w", err)
	}
	return nil
}

// ListSessions returns the owner's most recent sessions, newest first.
func (p *Postgres) ListSessions(ctx context.Context, owner uuid.UUID, limit int) ([]ingest.ImportSession, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM import_sessions WHERE owner_id = $1 ORDER BY commit_order DESC LIMIT $2`,
		owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list import sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ingest.ImportSession{}
	for rows.Next() {
		var (
			s      ingest.ImportSession
			status string
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.FileName, &s.CommitOrder, &status,
			&s.TotalRows, &s.InsertedRows, &s.SkippedRows, &s.DuplicateRows, &s.ErrorCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import session: %w", err)
		}
		s.Status = ingest.SessionStatus(status)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ArchiveSessionsBefore moves sessions older than cutoff into the
// archive table in one transaction and returns the number moved.
func (p *Postgres) ArchiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO import_sessions_archive (`+sessionColumns+`)
		SELECT `+sessionColumns+` FROM import_sessions WHERE created_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("copy sessions to archive: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM import_sessions WHERE created_at < $1`, cutoff); err != nil {
		return 0, fmt.Errorf("delete archived sessions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit archive: %w", err)
	}
	return tag.RowsAffected(), nil
}
