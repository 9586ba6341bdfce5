package ledger

import (
	"context"
	"time"
)

// Store is the persistence contract of the point ledger.
// This interface is implemented by the infrastructure layer.
// Every failure of the underlying storage must wrap shared.ErrLedgerStoreUnavailable.
type Store interface {
	// FindEnthusiasmRecords returns all enthusiasm records for the key.
	// More than one result means the ledger is inconsistent.
	FindEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) ([]PointRecord, error)

	// InsertRecord persists a record and returns it with ID and CreatedAt set.
	// Inserting a second enthusiasm record for a key fails with
	// shared.ErrPointRecordExists when the backend enforces uniqueness.
	InsertRecord(ctx context.Context, record PointRecord) (PointRecord, error)

	// DeleteEnthusiasmRecords removes every enthusiasm record for the key and
	// returns how many were removed. General records are kept.
	DeleteEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) (int, error)
}

// Locker serializes work on a single key across workers.
type Locker interface {
	// Lock acquires the key or fails with shared.ErrKeyLocked.
	// The returned function releases it.
	Lock(ctx context.Context, key string) (unlock func(context.Context) error, err error)
}

// LockKey returns the lock name for a reconciliation key.
func LockKey(k Key) string {
	return "ledger:enthusiasm:" + k.String()
}
