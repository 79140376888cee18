package web

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finledger/finledger/internal/ingest"
)

// fakeStore is a minimal in-memory ingest.Store for handler tests. It
// enforces (owner, fingerprint) uniqueness like the real schema.
type fakeStore struct {
	mu          sync.Mutex
	txns        map[uuid.UUID]map[string]ingest.Transaction
	sessions    []ingest.ImportSession
	failInserts bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{txns: make(map[uuid.UUID]map[string]ingest.Transaction)}
}

func (f *fakeStore) transactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, byFP := range f.txns {
		n += len(byFP)
	}
	return n
}

func (f *fakeStore) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeStore) ExistingByFingerprint(ctx context.Context, owner uuid.UUID, fps []string) ([]ingest.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ingest.Transaction
	for _, fp := range fps {
		if t, ok := f.txns[owner][fp]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertBatch(ctx context.Context, txns []ingest.Transaction) ([]ingest.InsertOutcome, error) {
	outcomes := make([]ingest.InsertOutcome, len(txns))
	for i, t := range txns {
		outcomes[i] = ingest.InsertOutcome{ID: t.ID, Err: f.Insert(ctx, t)}
	}
	return outcomes, nil
}

func (f *fakeStore) Insert(ctx context.Context, t ingest.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts {
		return errors.New("disk full")
	}
	if f.txns[t.OwnerID] == nil {
		f.txns[t.OwnerID] = make(map[string]ingest.Transaction)
	}
	if _, exists := f.txns[t.OwnerID][t.Fingerprint]; exists {
		return ingest.ErrDuplicate
	}
	f.txns[t.OwnerID][t.Fingerprint] = t
	return nil
}

func (f *fakeStore) FindByFingerprint(ctx context.Context, owner uuid.UUID, fp string) (*ingest.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.txns[owner][fp]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeStore) Restore(ctx context.Context, id uuid.UUID, c ingest.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fp, t := range f.txns[c.OwnerID] {
		if t.ID == id {
			delete(f.txns[c.OwnerID], fp)
			t.Deleted = false
			t.Fingerprint = c.Fingerprint
			f.txns[c.OwnerID][c.Fingerprint] = t
			return nil
		}
	}
	return errors.New("no such transaction")
}

func (f *fakeStore) LastCommitOrder(ctx context.Context, owner uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last int64
	for _, s := range f.sessions {
		if s.OwnerID == owner && s.CommitOrder > last {
			last = s.CommitOrder
		}
	}
	return last, nil
}

func (f *fakeStore) CreateSession(ctx context.Context, s ingest.ImportSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, s)
	return nil
}

func (f *fakeStore) ListSessions(ctx context.Context, owner uuid.UUID, limit int) ([]ingest.ImportSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ingest.ImportSession
	for i := len(f.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		if f.sessions[i].OwnerID == owner {
			out = append(out, f.sessions[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ArchiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
