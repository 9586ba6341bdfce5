package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// Outcome describes what a reconciliation did to the ledger.
type Outcome string

const (
	// OutcomeAwarded means the missing enthusiasm record was inserted.
	OutcomeAwarded Outcome = "awarded"
	// OutcomeUnchanged means the ledger already matched the status.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeHealed means duplicate records were collapsed into one.
	OutcomeHealed Outcome = "healed"
	// OutcomeRevoked means the key's enthusiasm records were deleted.
	OutcomeRevoked Outcome = "revoked"
)

// Changed reports whether the ledger was modified.
func (o Outcome) Changed() bool {
	return o == OutcomeAwarded || o == OutcomeHealed || o == OutcomeRevoked
}

// Result is the detailed report of a Sync call.
type Result struct {
	Outcome  Outcome
	Inserted int
	Deleted  int
	Record   *PointRecord
}

// Synchronizer reconciles enthusiasm records with attendance status.
// It holds no state of its own: every decision is made from what the store
// returns for the key.
type Synchronizer struct {
	store    Store
	location *time.Location
	logger   *slog.Logger
}

// NewSynchronizer creates a Synchronizer. Dates passed to Sync are reduced to
// calendar days in loc.
func NewSynchronizer(store Store, loc *time.Location, logger *slog.Logger) *Synchronizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		store:    store,
		location: loc,
		logger:   logger,
	}
}

// Sync brings the enthusiasm records of (studentID, date) in line with status.
// Present keeps exactly one record, absent keeps none. General records and
// other dates are never touched. Store errors are returned unchanged so the
// caller can retry; a retried call converges.
func (s *Synchronizer) Sync(ctx context.Context, studentID string, date time.Time, status AttendanceStatus) (Outcome, error) {
	res, err := s.Reconcile(ctx, studentID, date, status)
	return res.Outcome, err
}

// Reconcile is Sync with the full result.
func (s *Synchronizer) Reconcile(ctx context.Context, studentID string, date time.Time, status AttendanceStatus) (Result, error) {
	if err := ValidateStudentID(studentID); err != nil {
		return Result{}, err
	}
	if date.IsZero() {
		return Result{}, shared.NewDomainError("ledger", "Sync", shared.ErrEmptyValue, "date is required")
	}
	if !status.IsValid() {
		return Result{}, shared.WrapError("ledger", "Sync", shared.ErrInvalidInput,
			fmt.Sprintf("unknown attendance status %q", string(status)), shared.ErrUnknownAttendanceStatus)
	}

	day := NormalizeDate(date, s.location)

	switch status {
	case StatusAbsent:
		return s.revoke(ctx, studentID, day)
	default:
		return s.award(ctx, studentID, day)
	}
}

func (s *Synchronizer) revoke(ctx context.Context, studentID string, day time.Time) (Result, error) {
	// Delete is issued even when nothing is there; it is idempotent.
	deleted, err := s.store.DeleteEnthusiasmRecords(ctx, studentID, day)
	if err != nil {
		return Result{}, fmt.Errorf("delete enthusiasm records: %w", err)
	}

	if deleted == 0 {
		return Result{Outcome: OutcomeUnchanged}, nil
	}

	s.logger.Debug("enthusiasm revoked",
		"student_id", studentID,
		"date", FormatDate(day),
		"deleted", deleted,
	)
	return Result{Outcome: OutcomeRevoked, Deleted: deleted}, nil
}

func (s *Synchronizer) award(ctx context.Context, studentID string, day time.Time) (Result, error) {
	existing, err := s.store.FindEnthusiasmRecords(ctx, studentID, day)
	if err != nil {
		return Result{}, fmt.Errorf("find enthusiasm records: %w", err)
	}

	switch {
	case len(existing) == 1:
		record := existing[0]
		return Result{Outcome: OutcomeUnchanged, Record: &record}, nil

	case len(existing) > 1:
		s.logger.Warn("inconsistent enthusiasm ledger, healing",
			"student_id", studentID,
			"date", FormatDate(day),
			"records", len(existing),
		)
		deleted, err := s.store.DeleteEnthusiasmRecords(ctx, studentID, day)
		if err != nil {
			return Result{}, fmt.Errorf("delete duplicate enthusiasm records: %w", err)
		}
		res, err := s.insert(ctx, studentID, day)
		if err != nil {
			return Result{}, err
		}
		res.Deleted = deleted
		res.Outcome = OutcomeHealed
		return res, nil
	}

	return s.insert(ctx, studentID, day)
}

func (s *Synchronizer) insert(ctx context.Context, studentID string, day time.Time) (Result, error) {
	record, err := s.store.InsertRecord(ctx, NewEnthusiasmRecord(studentID, day))
	if err != nil {
		if shared.IsAlreadyExists(err) {
			// A concurrent reconciliation inserted the record first.
			s.logger.Debug("enthusiasm record already present",
				"student_id", studentID,
				"date", FormatDate(day),
			)
			return Result{Outcome: OutcomeUnchanged}, nil
		}
		return Result{}, fmt.Errorf("insert enthusiasm record: %w", err)
	}

	s.logger.Debug("enthusiasm awarded",
		"student_id", studentID,
		"date", FormatDate(day),
		"record_id", record.ID,
	)
	return Result{Outcome: OutcomeAwarded, Inserted: 1, Record: &record}, nil
}
