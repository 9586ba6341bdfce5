// Package ledger keeps the per-day enthusiasm point records consistent with a
// student's attendance status.
// This is a pure domain layer with zero external dependencies.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// DateLayout is the wire and storage format of a ledger date.
const DateLayout = "2006-01-02"

// ReasonAttendance is the reason stored on attendance-driven enthusiasm records.
const ReasonAttendance = "attendance"

// EnthusiasmPoints is the value of one attendance-driven enthusiasm record.
const EnthusiasmPoints = 1

// ══════════════════════════════════════════════════════════════════════════════
// POINT TYPE
// ══════════════════════════════════════════════════════════════════════════════

// PointType categorizes a point record.
type PointType string

const (
	// PointTypeEnthusiasm records are owned by attendance reconciliation.
	PointTypeEnthusiasm PointType = "enthusiasm"
	// PointTypeGeneral records are entered manually and never touched here.
	PointTypeGeneral PointType = "general"
)

// IsValid reports whether the point type is known.
func (t PointType) IsValid() bool {
	return t == PointTypeEnthusiasm || t == PointTypeGeneral
}

// String returns the stored representation.
func (t PointType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE STATUS
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceStatus is a student's attendance on a given day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

// IsValid reports whether the status is present or absent.
func (s AttendanceStatus) IsValid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// String returns the status label.
func (s AttendanceStatus) String() string {
	return string(s)
}

// ParseAttendanceStatus parses "present" or "absent", ignoring case and
// surrounding whitespace.
func ParseAttendanceStatus(value string) (AttendanceStatus, error) {
	status := AttendanceStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", shared.WrapError("ledger", "ParseAttendanceStatus", shared.ErrInvalidInput,
			fmt.Sprintf("unknown attendance status %q", value), shared.ErrUnknownAttendanceStatus)
	}
	return status, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DATES AND KEYS
// ══════════════════════════════════════════════════════════════════════════════

// NormalizeDate returns the calendar date of t in loc, as midnight UTC.
// Two timestamps on the same local day always normalize to the same value.
func NormalizeDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, shared.WrapError("ledger", "ParseDate", shared.ErrInvalidFormat,
			fmt.Sprintf("invalid date %q", value), err)
	}
	return d, nil
}

// FormatDate formats a normalized date as "YYYY-MM-DD".
func FormatDate(date time.Time) string {
	return date.UTC().Format(DateLayout)
}

// Key identifies the enthusiasm slot a reconciliation owns.
type Key struct {
	StudentID string
	Date      time.Time
}

// String returns "<student>:<date>".
func (k Key) String() string {
	return k.StudentID + ":" + FormatDate(k.Date)
}

// ══════════════════════════════════════════════════════════════════════════════
// POINT RECORD
// ══════════════════════════════════════════════════════════════════════════════

// PointRecord is one row of the point ledger.
type PointRecord struct {
	ID        string
	StudentID string
	Date      time.Time
	PointType PointType
	Points    int
	Reason    string
	CreatedAt time.Time
}

// Key returns the record's (student, date) key.
func (r PointRecord) Key() Key {
	return Key{StudentID: r.StudentID, Date: r.Date}
}

// IsEnthusiasm reports whether the record is owned by attendance reconciliation.
func (r PointRecord) IsEnthusiasm() bool {
	return r.PointType == PointTypeEnthusiasm
}

// Validate checks the record before it is written.
func (r PointRecord) Validate() error {
	if r.StudentID == "" {
		return shared.NewDomainError("ledger", "Validate", shared.ErrEmptyValue, "student ID is required")
	}
	if r.Date.IsZero() {
		return shared.NewDomainError("ledger", "Validate", shared.ErrEmptyValue, "date is required")
	}
	if !r.PointType.IsValid() {
		return shared.ErrUnknownPointType
	}
	return nil
}

// ValidateStudentID accepts canonical UUID strings only, matching the
// student_id column type of the Postgres ledger.
func ValidateStudentID(id string) error {
	if id == "" {
		return shared.NewDomainError("ledger", "ValidateStudentID", shared.ErrEmptyValue, "student ID is required")
	}
	if len(id) != 36 {
		return shared.NewDomainError("ledger", "ValidateStudentID", shared.ErrInvalidID,
			fmt.Sprintf("student ID %q is not a UUID", id))
	}
	if _, err := uuid.Parse(id); err != nil {
		return shared.WrapError("ledger", "ValidateStudentID", shared.ErrInvalidID,
			fmt.Sprintf("student ID %q is not a UUID", id), err)
	}
	return nil
}

// NewEnthusiasmRecord builds the single attendance record for a key.
// The ID is left empty for the store to assign.
func NewEnthusiasmRecord(studentID string, date time.Time) PointRecord {
	return PointRecord{
		StudentID: studentID,
		Date:      date,
		PointType: PointTypeEnthusiasm,
		Points:    EnthusiasmPoints,
		Reason:    ReasonAttendance,
	}
}
