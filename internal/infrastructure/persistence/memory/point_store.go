// Package memory provides in-process implementations of the ledger
// collaborators, used by single-worker deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// PointStore is a ledger.Store kept in memory. It enforces the
// one-enthusiasm-record-per-key rule the way a unique index would.
type PointStore struct {
	mu      sync.RWMutex
	records map[string]ledger.PointRecord
	now     func() time.Time
}

// NewPointStore creates an empty store.
func NewPointStore() *PointStore {
	return &PointStore{
		records: make(map[string]ledger.PointRecord),
		now:     time.Now,
	}
}

// FindEnthusiasmRecords implements ledger.Store.
func (s *PointStore) FindEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) ([]ledger.PointRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("memory", "FindEnthusiasmRecords", shared.ErrServiceUnavailable, "context done", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.PointRecord
	for _, r := range s.records {
		if r.IsEnthusiasm() && matchesKey(r, studentID, date) {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

// InsertRecord implements ledger.Store.
func (s *PointStore) InsertRecord(ctx context.Context, record ledger.PointRecord) (ledger.PointRecord, error) {
	if err := ctx.Err(); err != nil {
		return ledger.PointRecord{}, shared.WrapError("memory", "InsertRecord", shared.ErrServiceUnavailable, "context done", err)
	}
	if err := record.Validate(); err != nil {
		return ledger.PointRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record.IsEnthusiasm() {
		for _, r := range s.records {
			if r.IsEnthusiasm() && matchesKey(r, record.StudentID, record.Date) {
				return ledger.PointRecord{}, shared.ErrPointRecordExists
			}
		}
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if _, taken := s.records[record.ID]; taken {
		return ledger.PointRecord{}, shared.NewDomainError("memory", "InsertRecord", shared.ErrAlreadyExists, "record ID already used")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}

	s.records[record.ID] = record
	return record, nil
}

// DeleteEnthusiasmRecords implements ledger.Store.
func (s *PointStore) DeleteEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, shared.WrapError("memory", "DeleteEnthusiasmRecords", shared.ErrServiceUnavailable, "context done", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, r := range s.records {
		if r.IsEnthusiasm() && matchesKey(r, studentID, date) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Seed stores records as-is, bypassing the uniqueness check. It exists to
// reproduce ledgers damaged by older writers.
func (s *PointStore) Seed(records ...ledger.PointRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now().UTC()
		}
		s.records[r.ID] = r
	}
}

// All returns every record, general ones included, ordered by date and creation.
func (s *PointStore) All() []ledger.PointRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ledger.PointRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sortRecords(out)
	return out
}

func matchesKey(r ledger.PointRecord, studentID string, date time.Time) bool {
	return r.StudentID == studentID && r.Date.Equal(date)
}

func sortRecords(records []ledger.PointRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

var _ ledger.Store = (*PointStore)(nil)
