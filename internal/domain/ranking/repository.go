package ranking

import (
	"context"
)

// FactsProvider supplies a student's raw activity for a month.
// This interface is implemented by the infrastructure layer.
type FactsProvider interface {
	// MonthlyFacts returns the facts for the student and month. A month with
	// no activity yields zero-valued facts, not an error.
	MonthlyFacts(ctx context.Context, studentID string, month Month) (MonthlyFacts, error)
}

// StudentLister enumerates the students a monthly run covers.
type StudentLister interface {
	// ListActiveStudents returns the IDs of all active students.
	ListActiveStudents(ctx context.Context) ([]string, error)
}

// Standing is one entry of a monthly ranking board.
type Standing struct {
	Position  int
	StudentID string
	Breakdown Breakdown
}

// Board holds the computed breakdowns of a month for reporting pages.
// Entries are replaced wholesale on each computation.
type Board interface {
	// Publish stores the breakdown for the student and month.
	Publish(ctx context.Context, month Month, studentID string, b Breakdown) error

	// Top returns up to limit standings ordered by total, highest first.
	Top(ctx context.Context, month Month, limit int) ([]Standing, error)

	// Get returns the student's standing for the month, or an error wrapping
	// shared.ErrNotFound.
	Get(ctx context.Context, month Month, studentID string) (*Standing, error)

	// Retain removes every entry of the month whose student is not in keep
	// and returns how many were removed.
	Retain(ctx context.Context, month Month, keep []string) (int, error)
}
