// Package sqlite provides a SQLite-backed point ledger for single-node
// deployments. It uses the pure-Go modernc driver, so no cgo is needed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

const schema = `
CREATE TABLE IF NOT EXISTS point_records (
    id          TEXT PRIMARY KEY,
    student_id  TEXT NOT NULL,
    record_date TEXT NOT NULL,
    point_type  TEXT NOT NULL CHECK (point_type IN ('enthusiasm', 'general')),
    points      INTEGER NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_point_records_enthusiasm_day
    ON point_records(student_id, record_date)
    WHERE point_type = 'enthusiasm';

CREATE INDEX IF NOT EXISTS idx_point_records_student_date
    ON point_records(student_id, record_date);
`

// PointStore persists the point ledger in SQLite.
type PointStore struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies the schema.
func Open(path string) (*PointStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY churn.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PointStore{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *PointStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// FindEnthusiasmRecords implements ledger.Store.
func (s *PointStore) FindEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) ([]ledger.PointRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, student_id, record_date, point_type, points, reason, created_at
		FROM point_records
		WHERE student_id = ? AND record_date = ? AND point_type = 'enthusiasm'
		ORDER BY created_at, id`,
		studentID, ledger.FormatDate(date),
	)
	if err != nil {
		return nil, unavailable("FindEnthusiasmRecords", err)
	}
	defer rows.Close()

	var out []ledger.PointRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("FindEnthusiasmRecords", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("FindEnthusiasmRecords", err)
	}
	return out, nil
}

// InsertRecord implements ledger.Store.
func (s *PointStore) InsertRecord(ctx context.Context, record ledger.PointRecord) (ledger.PointRecord, error) {
	if err := record.Validate(); err != nil {
		return ledger.PointRecord{}, err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.CreatedAt = fromMillis(toMillis(record.CreatedAt))

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO point_records (id, student_id, record_date, point_type, points, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.StudentID,
		ledger.FormatDate(record.Date),
		string(record.PointType),
		record.Points,
		record.Reason,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.PointRecord{}, shared.ErrPointRecordExists
		}
		return ledger.PointRecord{}, unavailable("InsertRecord", err)
	}
	return record, nil
}

// DeleteEnthusiasmRecords implements ledger.Store.
func (s *PointStore) DeleteEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, `
		DELETE FROM point_records
		WHERE student_id = ? AND record_date = ? AND point_type = 'enthusiasm'`,
		studentID, ledger.FormatDate(date),
	)
	if err != nil {
		return 0, unavailable("DeleteEnthusiasmRecords", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("DeleteEnthusiasmRecords", err)
	}
	return int(n), nil
}

// CountByType returns the number of records of a type for a student.
func (s *PointStore) CountByType(ctx context.Context, studentID string, pointType ledger.PointType) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM point_records WHERE student_id = ? AND point_type = ?`,
		studentID, string(pointType),
	).Scan(&n)
	if err != nil {
		return 0, unavailable("CountByType", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ledger.PointRecord, error) {
	var (
		rec       ledger.PointRecord
		date      string
		pointType string
		createdAt int64
	)
	if err := row.Scan(&rec.ID, &rec.StudentID, &date, &pointType, &rec.Points, &rec.Reason, &createdAt); err != nil {
		return ledger.PointRecord{}, err
	}
	d, err := time.Parse(ledger.DateLayout, date)
	if err != nil {
		return ledger.PointRecord{}, fmt.Errorf("parse record_date %q: %w", date, err)
	}
	rec.Date = d
	rec.PointType = ledger.PointType(pointType)
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func unavailable(op string, err error) error {
	return shared.WrapError("sqlite", op, shared.ErrLedgerStoreUnavailable, "query failed", err)
}

var _ ledger.Store = (*PointStore)(nil)
