package ingest

// memstore_test.go provides the in-memory Store fake backing the
// pipeline tests. It enforces the same (owner, fingerprint) uniqueness
// the real schema does and exposes failure hooks so tests can force the
// degraded dedup path, bulk failures and the single-record fallback.

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memStore struct {
	mu       sync.Mutex
	txns     map[uuid.UUID]map[string]Transaction // owner -> fingerprint -> record
	sessions []ImportSession
	archived []ImportSession

	// failure hooks
	existErr   error
	existDelay time.Duration
	noBulk     bool
	batchErr   error
	insertErr  func(Transaction) error
	sessionErr error
	seedErr    error

	existCalls int
	inserts    int
}

func newMemStore() *memStore {
	return &memStore{txns: make(map[uuid.UUID]map[string]Transaction)}
}

func (m *memStore) ownerTxns(owner uuid.UUID) map[string]Transaction {
	if m.txns[owner] == nil {
		m.txns[owner] = make(map[string]Transaction)
	}
	return m.txns[owner]
}

// seed places a transaction directly in the ledger, bypassing the
// pipeline, as a non-import write would.
func (m *memStore) seed(t Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.ownerTxns(t.OwnerID)[t.Fingerprint] = t
}

func (m *memStore) get(owner uuid.UUID, fp string) (Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.ownerTxns(owner)[fp]
	return t, ok
}

func (m *memStore) activeCount(owner uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.ownerTxns(owner) {
		if !t.Deleted {
			n++
		}
	}
	return n
}

func (m *memStore) ExistingByFingerprint(ctx context.Context, owner uuid.UUID, fps []string) ([]Transaction, error) {
	m.mu.Lock()
	m.existCalls++
	delay, errHook := m.existDelay, m.existErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if errHook != nil {
		return nil, errHook
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	byFP := m.ownerTxns(owner)
	for _, fp := range fps {
		if t, ok := byFP[fp]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) InsertBatch(ctx context.Context, txns []Transaction) ([]InsertOutcome, error) {
	m.mu.Lock()
	noBulk, batchErr := m.noBulk, m.batchErr
	m.mu.Unlock()

	if noBulk {
		return nil, ErrBulkUnsupported
	}
	if batchErr != nil {
		return nil, batchErr
	}

	outcomes := make([]InsertOutcome, len(txns))
	for i, t := range txns {
		outcomes[i] = InsertOutcome{ID: t.ID, Err: m.Insert(ctx, t)}
	}
	return outcomes, nil
}

func (m *memStore) Insert(ctx context.Context, t Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		if err := m.insertErr(t); err != nil {
			return err
		}
	}

	byFP := m.ownerTxns(t.OwnerID)
	if _, exists := byFP[t.Fingerprint]; exists {
		return ErrDuplicate
	}
	byFP[t.Fingerprint] = t
	m.inserts++
	return nil
}

func (m *memStore) FindByFingerprint(ctx context.Context, owner uuid.UUID, fp string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.ownerTxns(owner)[fp]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memStore) Restore(ctx context.Context, id uuid.UUID, c Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for owner, byFP := range m.txns {
		for fp, t := range byFP {
			if t.ID != id {
				continue
			}
			delete(byFP, fp)
			t.Deleted = false
			t.Date = c.Date
			t.Amount = c.Amount
			t.Kind = c.Kind
			t.Category = c.Category
			t.Description = c.Description
			t.Fingerprint = c.Fingerprint
			t.UpdatedAt = time.Now()
			m.txns[owner][c.Fingerprint] = t
			return nil
		}
	}
	return ErrDuplicate // no such id; tests never expect this
}

func (m *memStore) LastCommitOrder(ctx context.Context, owner uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seedErr != nil {
		return 0, m.seedErr
	}
	var last int64
	for _, s := range m.sessions {
		if s.OwnerID == owner && s.CommitOrder > last {
			last = s.CommitOrder
		}
	}
	for _, s := range m.archived {
		if s.OwnerID == owner && s.CommitOrder > last {
			last = s.CommitOrder
		}
	}
	return last, nil
}

func (m *memStore) CreateSession(ctx context.Context, s ImportSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionErr != nil {
		return m.sessionErr
	}
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *memStore) ListSessions(ctx context.Context, owner uuid.UUID, limit int) ([]ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ImportSession
	for i := len(m.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.sessions[i].OwnerID == owner {
			out = append(out, m.sessions[i])
		}
	}
	return out, nil
}

func (m *memStore) ArchiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []ImportSession
	var moved int64
	for _, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			m.archived = append(m.archived, s)
			moved++
		} else {
			kept = append(kept, s)
		}
	}
	m.sessions = kept
	return moved, nil
}

func (m *memStore) sessionsFor(owner uuid.UUID) []ImportSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ImportSession
	for _, s := range m.sessions {
		if s.OwnerID == owner {
			out = append(out, s)
		}
	}
	return out
}
