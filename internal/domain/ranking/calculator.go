package ranking

import (
	"fmt"

	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POLICY CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// PerfectBehaviorBonus is awarded when every graded day is excellent.
	PerfectBehaviorBonus = 3
	// NonExcellentDayPenalty is charged per graded day below excellent.
	NonExcellentDayPenalty = -2

	// PerfectAttendanceBonus is awarded for a month without absences.
	PerfectAttendanceBonus = 3
	// AbsencePenalty is charged per absence.
	AbsencePenalty = -1

	// FullReviewScore is the review score that earns ReviewBonus.
	FullReviewScore = 100
	// ReviewPassingScore is the lowest score penalized by steps rather than the floor.
	ReviewPassingScore = 70
	// ReviewStep is the shortfall that costs one point.
	ReviewStep = 10
	// ReviewBonus is awarded for a full review score.
	ReviewBonus = 3
	// ReviewFloor is the largest penalty a review can incur.
	ReviewFloor = -3

	// PointsPerExam is awarded per completed, non-retake exam.
	PointsPerExam = 3

	// MinReviewScore and MaxReviewScore bound a monthly review score.
	MinReviewScore = 0
	MaxReviewScore = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// INPUT AND OUTPUT
// ══════════════════════════════════════════════════════════════════════════════

// MonthlyFacts is one month of a student's raw activity.
type MonthlyFacts struct {
	// Grades are the behavior grades of attended days, in date order.
	Grades []BehaviorGrade

	// Absences is the number of absent days.
	Absences int

	// ReviewScore is the monthly review score, nil when no review was taken.
	ReviewScore *int

	// ExamCount is the number of completed exams, retakes excluded.
	ExamCount int
}

// Validate rejects facts that violate input constraints. Nothing is clamped.
func (f MonthlyFacts) Validate() error {
	for i, g := range f.Grades {
		if !g.IsValid() {
			return shared.WrapError("ranking", "Validate", shared.ErrInvalidInput,
				fmt.Sprintf("grade #%d %q is not a recognized label", i+1, string(g)),
				shared.ErrUnknownBehaviorGrade)
		}
	}
	if f.Absences < 0 {
		return shared.ErrNegativeAbsences
	}
	if f.ReviewScore != nil && (*f.ReviewScore < MinReviewScore || *f.ReviewScore > MaxReviewScore) {
		return shared.ErrReviewOutOfRange
	}
	if f.ExamCount < 0 {
		return shared.ErrNegativeExamCount
	}
	return nil
}

// Breakdown is the ranking-points result for one student and month.
// It is recomputed as a whole on every run.
type Breakdown struct {
	Behavior   int `json:"behavior"`
	Attendance int `json:"attendance"`
	Review     int `json:"review"`
	Exam       int `json:"exam"`
	Total      int `json:"total"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SUB-SCORES
// ══════════════════════════════════════════════════════════════════════════════

// BehaviorPoints scores a month of behavior grades.
// No grades yet scores 0. All excellent earns the bonus; otherwise every
// non-excellent day costs two points with no lower bound.
func BehaviorPoints(grades []BehaviorGrade) int {
	if len(grades) == 0 {
		return 0
	}

	nonExcellent := 0
	for _, g := range grades {
		if !g.IsExcellent() {
			nonExcellent++
		}
	}

	if nonExcellent == 0 {
		return PerfectBehaviorBonus
	}
	return NonExcellentDayPenalty * nonExcellent
}

// AttendancePoints scores the month's absence count.
func AttendancePoints(absences int) int {
	if absences == 0 {
		return PerfectAttendanceBonus
	}
	return AbsencePenalty * absences
}

// ReviewPoints scores a monthly review in [0,100].
// Scores below 70 all hit the floor; between 70 and 99 each full 10-point
// shortfall from 100 costs a point.
func ReviewPoints(score int) int {
	switch {
	case score >= FullReviewScore:
		return ReviewBonus
	case score < ReviewPassingScore:
		return ReviewFloor
	default:
		return -((FullReviewScore - score) / ReviewStep)
	}
}

// ExamPoints scores completed exams. Retakes must already be excluded.
func ExamPoints(examCount int) int {
	return examCount * PointsPerExam
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// Aggregate validates the facts and returns the full breakdown.
// A missing review contributes 0 and ReviewPoints is not consulted.
func Aggregate(facts MonthlyFacts) (Breakdown, error) {
	if err := facts.Validate(); err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		Behavior:   BehaviorPoints(facts.Grades),
		Attendance: AttendancePoints(facts.Absences),
		Exam:       ExamPoints(facts.ExamCount),
	}
	if facts.ReviewScore != nil {
		b.Review = ReviewPoints(*facts.ReviewScore)
	}
	b.Total = b.Behavior + b.Attendance + b.Review + b.Exam

	return b, nil
}
