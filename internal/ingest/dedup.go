package ingest

// dedup.go classifies every candidate in one batch against the owner's
// ledger using a single batched existence query. Classifications:
//
//	new                  no record for (owner, fingerprint)
//	duplicate-active     an active record exists; reject, leave untouched
//	duplicate-restorable a soft-deleted record exists; restore in place
//	duplicate-in-file    a later occurrence of a fingerprint already seen
//	                     in this batch (first occurrence wins)
//
// If the existence query itself fails or times out, the resolver
// degrades: every candidate is treated as new and the storage layer's
// uniqueness constraint sorts it out at commit time. Rows are never
// silently dropped.

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultExistenceTimeout bounds the batched existence query.
const DefaultExistenceTimeout = 5 * time.Second

// Restore pairs a candidate with the soft-deleted record it revives.
type Restore struct {
	Target    Transaction
	Candidate Candidate
}

// Resolution is the outcome of classifying one batch.
type Resolution struct {
	New        []Candidate
	Restores   []Restore
	Duplicates []Candidate // active duplicates, rejected
	InFile     []Candidate // repeats within the batch, rejected
	Degraded   bool        // existence check failed; constraint decides
}

// DuplicateCount returns all rejected-as-duplicate rows, both against
// the ledger and within the file.
func (r Resolution) DuplicateCount() int {
	return len(r.Duplicates) + len(r.InFile)
}

// Resolver classifies candidates against the owner's ledger.
type Resolver struct {
	store   Store
	timeout time.Duration
}

// NewResolver creates a resolver whose existence query is bounded by
// timeout (DefaultExistenceTimeout when zero).
func NewResolver(store Store, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultExistenceTimeout
	}
	return &Resolver{store: store, timeout: timeout}
}

// Resolve classifies candidates. It never returns an error: a failed
// existence check flips the resolution to degraded instead.
func (r *Resolver) Resolve(ctx context.Context, owner uuid.UUID, candidates []Candidate) Resolution {
	var res Resolution

	// Within-batch dedup first: later occurrences never reach storage.
	seen := make(map[string]struct{}, len(candidates))
	firsts := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Fingerprint]; dup {
			res.InFile = append(res.InFile, c)
			continue
		}
		seen[c.Fingerprint] = struct{}{}
		firsts = append(firsts, c)
	}

	if len(firsts) == 0 {
		return res
	}

	fps := make([]string, len(firsts))
	for i, c := range firsts {
		fps[i] = c.Fingerprint
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	existing, err := r.store.ExistingByFingerprint(queryCtx, owner, fps)
	if err != nil {
		slog.Warn("existence check failed, treating batch as new",
			"owner_id", owner,
			"candidates", len(firsts),
			"error", err,
		)
		res.Degraded = true
		res.New = firsts
		return res
	}

	byFP := make(map[string]Transaction, len(existing))
	for _, t := range existing {
		byFP[t.Fingerprint] = t
	}

	for _, c := range firsts {
		t, ok := byFP[c.Fingerprint]
		switch {
		case !ok:
			res.New = append(res.New, c)
		case t.Deleted:
			res.Restores = append(res.Restores, Restore{Target: t, Candidate: c})
		default:
			res.Duplicates = append(res.Duplicates, c)
		}
	}
	return res
}
