// Package preparedtest provides in-memory implementations of the prepared
// package's Store, Registry, and Locker interfaces for tests.
package preparedtest

import (
	"context"
	"sync"
	"time"

	"go.matview.dev/core/prepared"
)

// StoredRecord is one record held by a MemoryStore.
type StoredRecord struct {
	Data      []byte
	QueueSize int
	ExpiresAt time.Time
	Corrupted bool
}

// MemoryStore is an in-memory prepared.Store. It tracks call counts and can
// be primed to fail, to exercise caller error paths.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]StoredRecord

	// PutErr, if set, is returned by the next Put call.
	PutErr error
	// GetErr, if set, is returned by the next Get call.
	GetErr error

	// Puts and Deletes count Put and Delete calls.
	Puts, Deletes int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]StoredRecord)}
}

// Record returns the stored record of |gid|, if any.
func (s *MemoryStore) Record(gid string) (StoredRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec, ok = s.records[gid]
	return rec, ok
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Put implements prepared.Store.
func (s *MemoryStore) Put(_ context.Context, gid string, data []byte, ttl time.Duration, queueSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Puts++
	if err := s.PutErr; err != nil {
		s.PutErr = nil
		return err
	}
	s.records[gid] = StoredRecord{
		Data:      append([]byte{}, data...),
		QueueSize: queueSize,
		ExpiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get implements prepared.Store.
func (s *MemoryStore) Get(_ context.Context, gid string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.GetErr; err != nil {
		s.GetErr = nil
		return nil, false, err
	}
	var rec, ok = s.records[gid]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, rec.Data...), true, nil
}

// Delete implements prepared.Store.
func (s *MemoryStore) Delete(_ context.Context, gid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Deletes++
	delete(s.records, gid)
	return nil
}

// ScanExpired implements prepared.Store.
func (s *MemoryStore) ScanExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var gids []string
	for gid, rec := range s.records {
		if !rec.Corrupted && rec.ExpiresAt.Before(now) {
			gids = append(gids, gid)
		}
	}
	return gids, nil
}

// MarkCorrupted implements prepared.Store.
func (s *MemoryStore) MarkCorrupted(_ context.Context, gid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[gid]; ok {
		rec.Corrupted = true
		s.records[gid] = rec
	}
	return nil
}

// Expire back-dates the expiry of |gid| so the next ScanExpired returns it.
func (s *MemoryStore) Expire(gid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[gid]; ok {
		rec.ExpiresAt = time.Now().Add(-time.Minute)
		s.records[gid] = rec
	}
}

// Corrupt overwrites the stored data of |gid| with garbage.
func (s *MemoryStore) Corrupt(gid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[gid]; ok {
		rec.Data = []byte("\x00not a record")
		s.records[gid] = rec
	}
}

// MemoryRegistry is an in-memory prepared.Registry mapping gids to fixed
// Outcomes. Unmapped gids resolve as OutcomeUnknown.
type MemoryRegistry struct {
	mu       sync.Mutex
	outcomes map[string]prepared.Outcome

	// Err, if set, is returned by the next Outcome call.
	Err error
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{outcomes: make(map[string]prepared.Outcome)}
}

// SetOutcome fixes the Outcome of |gid|.
func (r *MemoryRegistry) SetOutcome(gid string, outcome prepared.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[gid] = outcome
}

// Outcome implements prepared.Registry.
func (r *MemoryRegistry) Outcome(_ context.Context, gid string) (prepared.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Err; err != nil {
		r.Err = nil
		return prepared.OutcomeUnknown, err
	}
	return r.outcomes[gid], nil
}

// MemoryLocker is an in-memory prepared.Locker. Gids named in Held are
// reported as already locked.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}

	// Releases counts invocations of returned release funcs.
	Releases int
}

// NewMemoryLocker returns an empty MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

// Hold marks |gid| as locked by another holder.
func (l *MemoryLocker) Hold(gid string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[gid] = struct{}{}
}

// TryLockGID implements prepared.Locker.
func (l *MemoryLocker) TryLockGID(_ context.Context, gid string) (func() error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[gid]; ok {
		return nil, false, nil
	}
	l.held[gid] = struct{}{}

	return func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, gid)
		l.Releases++
		return nil
	}, true, nil
}
