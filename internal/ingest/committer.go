package ingest

// committer.go persists an owner's resolved batch. New records go
// through one unordered bulk insert so a single row's constraint
// violation cannot block independent rows; restorable records are
// revived in place. Uniqueness conflicts surfacing at commit time are
// absorbed into duplicate accounting (re-checking for a soft-deleted
// slot first, since a direct write outside the import path may have
// raced us); any other storage error is fatal and aborts the import.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CommitStats summarizes a commit phase.
type CommitStats struct {
	Inserted   int // new rows persisted
	Restored   int // soft-deleted slots revived
	Duplicates int // uniqueness conflicts absorbed at commit time
}

// Committer persists resolved batches.
type Committer struct {
	store Store
	now   func() time.Time
}

// NewCommitter creates a committer over store.
func NewCommitter(store Store) *Committer {
	return &Committer{store: store, now: time.Now}
}

// Commit persists the batch. On a fatal storage error the returned
// stats still count every row whose outcome is known; only rows the
// store never answered for are left to the summary's unaccounted
// bucket.
func (c *Committer) Commit(ctx context.Context, res Resolution) (CommitStats, error) {
	var stats CommitStats

	for _, r := range res.Restores {
		if err := c.store.Restore(ctx, r.Target.ID, r.Candidate); err != nil {
			return stats, fmt.Errorf("restore transaction %s: %w", r.Target.ID, err)
		}
		stats.Restored++
	}

	if len(res.New) == 0 {
		return stats, nil
	}

	txns := make([]Transaction, len(res.New))
	for i, cand := range res.New {
		txns[i] = NewTransaction(cand, c.now())
	}

	outcomes, err := c.store.InsertBatch(ctx, txns)
	if errors.Is(err, ErrBulkUnsupported) {
		return c.commitOneByOne(ctx, stats, txns, res.New)
	}
	if err != nil {
		return stats, fmt.Errorf("bulk insert: %w", err)
	}

	// Scan every outcome even after a fatal one: rows the store did
	// persist must stay counted, or the summary would disown them. The
	// first fatal error is the one reported.
	var fatal error
	for i, out := range outcomes {
		switch {
		case out.Err == nil:
			stats.Inserted++
		case errors.Is(out.Err, ErrDuplicate):
			if err := c.absorbConflict(ctx, &stats, res.New[i]); err != nil {
				return stats, err
			}
		case fatal == nil:
			fatal = fmt.Errorf("insert row %d: %w", res.New[i].RowNumber, out.Err)
		}
	}
	return stats, fatal
}

// commitOneByOne is the fallback when the store cannot batch. Unlike
// the batch path it stops at the first fatal error: the store is
// answering one record at a time, and rows never attempted are honestly
// unaccounted rather than retried against a failing backend.
func (c *Committer) commitOneByOne(ctx context.Context, stats CommitStats, txns []Transaction, cands []Candidate) (CommitStats, error) {
	slog.Debug("bulk insert unavailable, committing record by record", "rows", len(txns))

	for i, txn := range txns {
		err := c.store.Insert(ctx, txn)
		switch {
		case err == nil:
			stats.Inserted++
		case errors.Is(err, ErrDuplicate):
			if err := c.absorbConflict(ctx, &stats, cands[i]); err != nil {
				return stats, err
			}
		default:
			return stats, fmt.Errorf("insert row %d: %w", cands[i].RowNumber, err)
		}
	}
	return stats, nil
}

// absorbConflict handles a uniqueness violation discovered at commit
// time. The conflicting record may have been written by a direct,
// non-import path after our existence check (the serializer only orders
// the import path), so look again: a soft-deleted record is restored in
// place, an active one counts as a duplicate.
func (c *Committer) absorbConflict(ctx context.Context, stats *CommitStats, cand Candidate) error {
	existing, err := c.store.FindByFingerprint(ctx, cand.OwnerID, cand.Fingerprint)
	if err != nil {
		return fmt.Errorf("re-check conflicting row %d: %w", cand.RowNumber, err)
	}
	if existing == nil {
		// Conflict reported but the record is gone; count it as a
		// duplicate rather than inventing an insert we cannot confirm.
		stats.Duplicates++
		return nil
	}
	if existing.Deleted {
		if err := c.store.Restore(ctx, existing.ID, cand); err != nil {
			return fmt.Errorf("restore after conflict, row %d: %w", cand.RowNumber, err)
		}
		stats.Restored++
		return nil
	}
	stats.Duplicates++
	return nil
}
