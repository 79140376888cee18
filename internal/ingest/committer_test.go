package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitter_InsertsAndRestores(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()

	deleted := candidate(owner, "revive me")
	delTxn := NewTransaction(deleted, time.Now())
	delTxn.Deleted = true
	store.seed(delTxn)

	fresh := candidate(owner, "brand new")

	stats, err := NewCommitter(store).Commit(context.Background(), Resolution{
		New:      []Candidate{fresh},
		Restores: []Restore{{Target: delTxn, Candidate: deleted}},
	})
	require.NoError(t, err)

	assert.Equal(t, CommitStats{Inserted: 1, Restored: 1}, stats)
	assert.Equal(t, 2, store.activeCount(owner))

	// The restore keeps the original row id.
	got, ok := store.get(owner, deleted.Fingerprint)
	require.True(t, ok)
	assert.Equal(t, delTxn.ID, got.ID)
	assert.False(t, got.Deleted)
}

func TestCommitter_RestoreFailureIsFatal(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()

	deleted := candidate(owner, "gone")
	stats, err := NewCommitter(store).Commit(context.Background(), Resolution{
		Restores: []Restore{{Target: NewTransaction(deleted, time.Now()), Candidate: deleted}},
	})

	require.Error(t, err) // target id was never persisted
	assert.Equal(t, CommitStats{}, stats)
}

// A commit-time conflict against an active record is absorbed as a
// duplicate; the rest of the batch lands.
func TestCommitter_AbsorbsActiveConflict(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()

	raced := candidate(owner, "raced")
	store.seed(NewTransaction(raced, time.Now()))

	stats, err := NewCommitter(store).Commit(context.Background(), Resolution{
		New: []Candidate{raced, candidate(owner, "fine")},
	})
	require.NoError(t, err)

	assert.Equal(t, CommitStats{Inserted: 1, Duplicates: 1}, stats)
	assert.Equal(t, 2, store.activeCount(owner))
}

// A conflict whose existing record turns out soft-deleted is restored in
// place instead of being counted as a duplicate. This is the degraded
// dedup path meeting a deleted slot at the constraint.
func TestCommitter_ConflictRestoresSoftDeleted(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()

	cand := candidate(owner, "deleted slot")
	delTxn := NewTransaction(cand, time.Now())
	delTxn.Deleted = true
	store.seed(delTxn)

	stats, err := NewCommitter(store).Commit(context.Background(), Resolution{
		New:      []Candidate{cand},
		Degraded: true,
	})
	require.NoError(t, err)

	assert.Equal(t, CommitStats{Restored: 1}, stats)
	got, ok := store.get(owner, cand.Fingerprint)
	require.True(t, ok)
	assert.Equal(t, delTxn.ID, got.ID)
	assert.False(t, got.Deleted)
}

func TestCommitter_NonDuplicateInsertErrorIsFatal(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	boom := errors.New("disk full")

	bad := candidate(owner, "bad")
	store.insertErr = func(txn Transaction) error {
		if txn.Fingerprint == bad.Fingerprint {
			return boom
		}
		return nil
	}

	ok := candidate(owner, "ok")
	bad.RowNumber = 2

	stats, err := NewCommitter(store).Commit(context.Background(), Resolution{
		New: []Candidate{ok, bad},
	})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "row 2")
	assert.Equal(t, 1, stats.Inserted) // the row before the failure landed
}

// Rows the store persisted after the failing one must stay counted: the
// fatal error aborts the import, not the accounting.
func TestCommitter_CountsOutcomesPastFatal(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	boom := errors.New("disk full")

	bad := candidate(owner, "bad")
	bad.RowNumber = 1
	store.insertErr = func(txn Transaction) error {
		if txn.Fingerprint == bad.Fingerprint {
			return boom
		}
		return nil
	}

	ok := candidate(owner, "ok")
	ok.RowNumber = 2
	raced := candidate(owner, "raced")
	raced.RowNumber = 3
	store.seed(NewTransaction(raced, time.Now()))

	stats, err := NewCommitter(store).Commit(context.Background(), Resolution{
		New: []Candidate{bad, ok, raced},
	})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "row 1")
	assert.Equal(t, CommitStats{Inserted: 1, Duplicates: 1}, stats)
	assert.Equal(t, 2, store.activeCount(owner))
}

func TestCommitter_BatchLevelErrorIsFatal(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	store.batchErr = errors.New("connection reset")

	_, err := NewCommitter(store).Commit(context.Background(), Resolution{
		New: []Candidate{candidate(owner, "x")},
	})
	require.ErrorContains(t, err, "bulk insert")
	assert.Equal(t, 0, store.activeCount(owner))
}

// Stores without batch support fall back to record-by-record commits
// with identical accounting.
func TestCommitter_FallsBackWithoutBulk(t *testing.T) {
	owner := uuid.New()
	store := newMemStore()
	store.noBulk = true

	raced := candidate(owner, "raced")
	store.seed(NewTransaction(raced, time.Now()))

	stats, err := NewCommitter(store).Commit(context.Background(), Resolution{
		New: []Candidate{candidate(owner, "a"), raced, candidate(owner, "b")},
	})
	require.NoError(t, err)

	assert.Equal(t, CommitStats{Inserted: 2, Duplicates: 1}, stats)
	assert.Equal(t, 3, store.activeCount(owner))
}

func TestCommitter_EmptyResolutionIsNoop(t *testing.T) {
	store := newMemStore()
	stats, err := NewCommitter(store).Commit(context.Background(), Resolution{})
	require.NoError(t, err)
	assert.Equal(t, CommitStats{}, stats)
	assert.Equal(t, 0, store.inserts)
}
