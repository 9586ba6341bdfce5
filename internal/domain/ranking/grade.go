// Package ranking contains the monthly ranking score engine.
// Ranking points are an internal monthly score (never shown to students)
// built from behavior, attendance, review and exam sub-scores.
// This is a pure domain layer with zero external dependencies.
package ranking

import (
	"fmt"
	"strings"

	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// BehaviorGrade is the qualitative behavior label recorded for an attended day.
type BehaviorGrade string

// Behavior grades, best first.
const (
	GradeExcellent  BehaviorGrade = "excellent"
	GradeVeryGood   BehaviorGrade = "very good"
	GradeGood       BehaviorGrade = "good"
	GradeAcceptable BehaviorGrade = "acceptable"
)

// AllBehaviorGrades lists the recognized grades in rank order.
var AllBehaviorGrades = []BehaviorGrade{GradeExcellent, GradeVeryGood, GradeGood, GradeAcceptable}

// IsValid reports whether the grade is one of the recognized labels.
func (g BehaviorGrade) IsValid() bool {
	switch g {
	case GradeExcellent, GradeVeryGood, GradeGood, GradeAcceptable:
		return true
	default:
		return false
	}
}

// IsExcellent reports whether the grade is the top label.
func (g BehaviorGrade) IsExcellent() bool {
	return g == GradeExcellent
}

// String returns the label.
func (g BehaviorGrade) String() string {
	return string(g)
}

// ParseBehaviorGrade parses a label, ignoring case and surrounding or repeated
// whitespace ("Very  Good" parses as GradeVeryGood).
func ParseBehaviorGrade(label string) (BehaviorGrade, error) {
	normalized := BehaviorGrade(strings.Join(strings.Fields(strings.ToLower(label)), " "))
	if !normalized.IsValid() {
		return "", shared.WrapError("ranking", "ParseBehaviorGrade", shared.ErrInvalidInput,
			fmt.Sprintf("unknown behavior grade %q", label), shared.ErrUnknownBehaviorGrade)
	}
	return normalized, nil
}

// ParseBehaviorGrades parses a sequence of labels, failing on the first unknown one.
func ParseBehaviorGrades(labels []string) ([]BehaviorGrade, error) {
	grades := make([]BehaviorGrade, 0, len(labels))
	for _, label := range labels {
		g, err := ParseBehaviorGrade(label)
		if err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, nil
}
