package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// PointRepository implements ledger.Store on the point_records table.
// The partial unique index uq_point_records_enthusiasm_day enforces one
// enthusiasm record per (student, day).
type PointRepository struct {
	conn *Connection
}

// NewPointRepository creates a new PointRepository.
func NewPointRepository(conn *Connection) *PointRepository {
	return &PointRepository{conn: conn}
}

const pointColumns = `id::text, student_id::text, record_date, point_type, points, reason, created_at`

// FindEnthusiasmRecords implements ledger.Store.
func (r *PointRepository) FindEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) ([]ledger.PointRecord, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, unavailable("FindEnthusiasmRecords", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+pointColumns+`
		FROM point_records
		WHERE student_id = $1 AND record_date = $2 AND point_type = 'enthusiasm'
		ORDER BY created_at, id
	`, studentID, date)
	if err != nil {
		return nil, unavailable("FindEnthusiasmRecords", err)
	}

	records, err := pgx.CollectRows(rows, scanPointRecord)
	if err != nil {
		return nil, unavailable("FindEnthusiasmRecords", err)
	}
	return records, nil
}

// InsertRecord implements ledger.Store.
func (r *PointRepository) InsertRecord(ctx context.Context, record ledger.PointRecord) (ledger.PointRecord, error) {
	if err := record.Validate(); err != nil {
		return ledger.PointRecord{}, err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	q, err := r.conn.querier()
	if err != nil {
		return ledger.PointRecord{}, unavailable("InsertRecord", err)
	}

	rows, err := q.Query(ctx, `
		INSERT INTO point_records (id, student_id, record_date, point_type, points, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+pointColumns,
		record.ID, record.StudentID, record.Date, string(record.PointType), record.Points, record.Reason,
	)
	if err != nil {
		return ledger.PointRecord{}, unavailable("InsertRecord", err)
	}

	saved, err := pgx.CollectExactlyOneRow(rows, scanPointRecord)
	if err != nil {
		if IsUniqueViolation(err) {
			return ledger.PointRecord{}, shared.ErrPointRecordExists
		}
		return ledger.PointRecord{}, unavailable("InsertRecord", err)
	}
	return saved, nil
}

// DeleteEnthusiasmRecords implements ledger.Store.
func (r *PointRepository) DeleteEnthusiasmRecords(ctx context.Context, studentID string, date time.Time) (int, error) {
	q, err := r.conn.querier()
	if err != nil {
		return 0, unavailable("DeleteEnthusiasmRecords", err)
	}

	tag, err := q.Exec(ctx, `
		DELETE FROM point_records
		WHERE student_id = $1 AND record_date = $2 AND point_type = 'enthusiasm'
	`, studentID, date)
	if err != nil {
		return 0, unavailable("DeleteEnthusiasmRecords", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanPointRecord(row pgx.CollectableRow) (ledger.PointRecord, error) {
	var (
		rec       ledger.PointRecord
		pointType string
	)
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.Date, &pointType, &rec.Points, &rec.Reason, &rec.CreatedAt)
	if err != nil {
		return ledger.PointRecord{}, err
	}
	rec.PointType = ledger.PointType(pointType)
	rec.Date = time.Date(rec.Date.Year(), rec.Date.Month(), rec.Date.Day(), 0, 0, 0, 0, time.UTC)
	return rec, nil
}

var _ ledger.Store = (*PointRepository)(nil)
