package ingest

// report.go aggregates an import run into the user-facing summary and
// the immutable audit session. The reconciliation invariant holds in
// every response:
//
//	totalRows = insertedRows + skippedRows + duplicateRows + unaccounted
//
// where unaccounted covers rows stranded by a mid-batch abort. The audit
// record is written regardless of status; a failure to write it is
// logged and never surfaced as an import failure.

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MaxErrorSample bounds the row-level error list carried in summaries
// and responses. Counts are always exact; only the sample is truncated.
const MaxErrorSample = 50

// ImportSummary is the aggregated outcome of one import or dry run.
type ImportSummary struct {
	TotalRows     int           `json:"totalRows"`
	InsertedRows  int           `json:"insertedRows"` // new + restored
	SkippedRows   int           `json:"skippedRows"`  // validation failures
	DuplicateRows int           `json:"duplicateRows"`
	Unaccounted   int           `json:"unaccounted"` // stranded by an abort
	ErrorCount    int           `json:"errorCount"`
	Status        SessionStatus `json:"status"`
	Errors        []RowError    `json:"errors,omitempty"` // first MaxErrorSample
	Degraded      bool          `json:"degraded,omitempty"`
}

// buildSummary reconciles the counters and derives the session status.
func buildSummary(total int, stats CommitStats, res Resolution, rowErrors []RowError) ImportSummary {
	inserted := stats.Inserted + stats.Restored
	duplicates := res.DuplicateCount() + stats.Duplicates
	skipped := len(rowErrors)

	unaccounted := total - inserted - skipped - duplicates
	if unaccounted < 0 {
		unaccounted = 0
	}

	s := ImportSummary{
		TotalRows:     total,
		InsertedRows:  inserted,
		SkippedRows:   skipped,
		DuplicateRows: duplicates,
		Unaccounted:   unaccounted,
		ErrorCount:    skipped + unaccounted,
		Errors:        sampleErrors(rowErrors),
		Degraded:      res.Degraded,
	}
	s.Status = deriveStatus(s)
	return s
}

// deriveStatus: success when nothing went wrong, partial when some rows
// landed anyway, failed when nothing did. Duplicates are outcomes, not
// errors, so an all-duplicates re-import is a success.
func deriveStatus(s ImportSummary) SessionStatus {
	switch {
	case s.ErrorCount == 0:
		return StatusSuccess
	case s.InsertedRows > 0 || s.DuplicateRows > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

func sampleErrors(errs []RowError) []RowError {
	if len(errs) <= MaxErrorSample {
		return errs
	}
	return errs[:MaxErrorSample]
}

// Reporter writes the per-import audit session.
type Reporter struct {
	store Store
	now   func() time.Time
}

// NewReporter creates a reporter over store.
func NewReporter(store Store) *Reporter {
	return &Reporter{store: store, now: time.Now}
}

// Record writes the session audit record and returns it. The write is
// append-only and best-effort: on failure the session is still returned
// to the caller, with the error logged.
func (r *Reporter) Record(ctx context.Context, owner uuid.UUID, fileName string, order int64, summary ImportSummary) ImportSession {
	session := ImportSession{
		ID:            uuid.New(),
		OwnerID:       owner,
		FileName:      fileName,
		CommitOrder:   order,
		Status:        summary.Status,
		TotalRows:     summary.TotalRows,
		InsertedRows:  summary.InsertedRows,
		SkippedRows:   summary.SkippedRows,
		DuplicateRows: summary.DuplicateRows,
		ErrorCount:    summary.ErrorCount,
		CreatedAt:     r.now(),
	}

	if err := r.store.CreateSession(ctx, session); err != nil {
		slog.Error("audit session write failed",
			"owner_id", owner,
			"session_id", session.ID,
			"commit_order", order,
			"error", err,
		)
	}
	return session
}
