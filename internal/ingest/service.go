package ingest

// service.go is the entry point consumed by the HTTP layer. It wires the
// pipeline stages together and owns the three modes:
//
//	Preview  header list plus a page of raw rows; nothing validated,
//	         nothing written
//	DryRun   full validation and dedup classification, no commit
//	Import   the full pipeline, serialized per owner
//
// Parsing and classification run on the caller's goroutine and may
// overlap freely across requests; only the commit phase is funneled
// through the per-owner serializer.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sample bounds for dry-run responses.
const (
	maxValidSamples     = 10
	maxDuplicateSamples = 10
)

// Config carries the service's tunables, loaded from the environment by
// internal/config.
type Config struct {
	MaxConcurrent    int           // parallel imports (limiter slots)
	SlotWait         time.Duration // wait for a limiter slot
	ExistenceTimeout time.Duration // bound on the dedup existence query
	PreviewRows      int           // rows per preview page
}

// Service provides the import pipeline operations.
type Service struct {
	store      Store
	resolver   *Resolver
	committer  *Committer
	reporter   *Reporter
	serializer *Serializer
	limiter    *ImportLimiter
	cfg        Config
}

// NewService assembles the pipeline over store.
func NewService(store Store, cfg Config) *Service {
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 20
	}
	return &Service{
		store:      store,
		resolver:   NewResolver(store, cfg.ExistenceTimeout),
		committer:  NewCommitter(store),
		reporter:   NewReporter(store),
		serializer: NewSerializer(store.LastCommitOrder),
		limiter:    NewImportLimiter(cfg.MaxConcurrent, cfg.SlotWait),
		cfg:        cfg,
	}
}

// Limiter exposes the import limiter for graceful shutdown draining.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// Preview is the header list and one page of raw rows, unvalidated.
type Preview struct {
	Headers []string            `json:"headers"`
	Rows    []map[string]string `json:"rows"`
	Page    int                 `json:"page"`
	HasMore bool                `json:"hasMore"`
}

// PreviewFile reads one page of raw rows without validating or writing
// anything. page is 1-based.
func (s *Service) PreviewFile(ctx context.Context, r io.Reader, page int) (*Preview, error) {
	if page < 1 {
		page = 1
	}

	rr, err := NewRowReader(r)
	if err != nil {
		return nil, err
	}

	skip := (page - 1) * s.cfg.PreviewRows
	p := &Preview{Headers: rr.Headers(), Rows: []map[string]string{}, Page: page}

	for {
		row, err := rr.Next()
		if err == io.EOF {
			break
		}
		if _, bad := err.(*RowError); bad {
			continue // preview shows what it can read
		}
		if skip > 0 {
			skip--
			continue
		}
		if len(p.Rows) == s.cfg.PreviewRows {
			p.HasMore = true
			break
		}
		p.Rows = append(p.Rows, row.Values(rr.Headers()))
	}
	return p, nil
}

// CandidatePreview is a mapped row rendered for dry-run samples.
type CandidatePreview struct {
	Row         int    `json:"row"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Kind        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// DryRunResult is the classification outcome of a dry run. No mutation
// has happened; repeating the call yields the same result.
type DryRunResult struct {
	TotalRows        int                `json:"totalRows"`
	NewRows          int                `json:"newRows"`
	RestorableRows   int                `json:"restorableRows"`
	DuplicateRows    int                `json:"duplicateRows"`
	SkippedRows      int                `json:"skippedRows"`
	Degraded         bool               `json:"degraded,omitempty"`
	ValidSamples     []CandidatePreview `json:"validSamples"`
	InvalidSamples   []RowError         `json:"invalidSamples"`
	DuplicateSamples []CandidatePreview `json:"duplicateSamples"`
}

// DryRun runs validation and dedup classification and stops there.
func (s *Service) DryRun(ctx context.Context, owner uuid.UUID, mapping ColumnMapping, r io.Reader) (*DryRunResult, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	candidates, rowErrors, total, err := s.parseAll(ctx, owner, mapping, r)
	if err != nil {
		return nil, err
	}

	res := s.resolver.Resolve(ctx, owner, candidates)

	out := &DryRunResult{
		TotalRows:        total,
		NewRows:          len(res.New),
		RestorableRows:   len(res.Restores),
		DuplicateRows:    res.DuplicateCount(),
		SkippedRows:      len(rowErrors),
		Degraded:         res.Degraded,
		ValidSamples:     []CandidatePreview{},
		InvalidSamples:   sampleErrors(rowErrors),
		DuplicateSamples: []CandidatePreview{},
	}
	if out.InvalidSamples == nil {
		out.InvalidSamples = []RowError{}
	}

	for _, c := range res.New {
		if len(out.ValidSamples) == maxValidSamples {
			break
		}
		out.ValidSamples = append(out.ValidSamples, previewCandidate(c))
	}
	for _, c := range res.Duplicates {
		if len(out.DuplicateSamples) == maxDuplicateSamples {
			break
		}
		out.DuplicateSamples = append(out.DuplicateSamples, previewCandidate(c))
	}
	return out, nil
}

// ImportResult is the response of a full import.
type ImportResult struct {
	Summary ImportSummary `json:"summary"`
	Session ImportSession `json:"session"`
}

// Import runs the full pipeline. The commit phase is enqueued on the
// owner's chain; once enqueued it runs to completion even if the caller
// abandons the request, and the audit session records the true outcome.
//
// A fatal storage error returns both the error and a result whose
// summary reflects the rows committed before the abort.
func (s *Service) Import(ctx context.Context, owner uuid.UUID, fileName string, mapping ColumnMapping, r io.Reader) (*ImportResult, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()

	candidates, rowErrors, total, err := s.parseAll(ctx, owner, mapping, r)
	if err != nil {
		return nil, err
	}

	res := s.resolver.Resolve(ctx, owner, candidates)

	var (
		result   ImportResult
		fatalErr error
	)
	handle := s.serializer.Enqueue(ctx, owner, func(taskCtx context.Context, order int64) error {
		stats, commitErr := s.committer.Commit(taskCtx, res)

		summary := buildSummary(total, stats, res, rowErrors)
		if commitErr != nil {
			summary.Status = StatusFailed
		}

		session := s.reporter.Record(taskCtx, owner, fileName, order, summary)
		result = ImportResult{Summary: summary, Session: session}
		fatalErr = commitErr

		slog.Info("import committed",
			"owner_id", owner,
			"session_id", session.ID,
			"commit_order", order,
			"status", summary.Status,
			"total", summary.TotalRows,
			"inserted", summary.InsertedRows,
			"skipped", summary.SkippedRows,
			"duplicates", summary.DuplicateRows,
			"degraded", res.Degraded,
			"duration", time.Since(start),
		)
		return commitErr
	})

	if err := handle.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			// The commit task keeps running; only this caller gave up.
			return nil, ctx.Err()
		}
		if fatalErr != nil {
			return &result, fmt.Errorf("import aborted: %w", fatalErr)
		}
		return nil, err
	}
	return &result, nil
}

// Sessions returns the owner's recent import history, newest first.
func (s *Service) Sessions(ctx context.Context, owner uuid.UUID, limit int) ([]ImportSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListSessions(ctx, owner, limit)
}

// parseAll drains the row reader, mapping every data row. It returns
// the candidates, the row-level errors, and the total number of data
// rows processed. Only structural problems (no header) return an error.
func (s *Service) parseAll(ctx context.Context, owner uuid.UUID, mapping ColumnMapping, r io.Reader) ([]Candidate, []RowError, int, error) {
	rr, err := NewRowReader(r)
	if err != nil {
		return nil, nil, 0, err
	}

	var (
		candidates []Candidate
		rowErrors  []RowError
		total      int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}

		row, err := rr.Next()
		if err == io.EOF {
			break
		}
		total++
		if rerr, ok := err.(*RowError); ok {
			rowErrors = append(rowErrors, *rerr)
			continue
		}

		cand, rerr := MapRow(row, mapping, owner)
		if rerr != nil {
			rowErrors = append(rowErrors, *rerr)
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, rowErrors, total, nil
}

func previewCandidate(c Candidate) CandidatePreview {
	return CandidatePreview{
		Row:         c.RowNumber,
		Date:        c.Date.Format("2006-01-02"),
		Amount:      c.Amount.String(),
		Kind:        string(c.Kind),
		Category:    c.Category,
		Description: c.Description,
	}
}
