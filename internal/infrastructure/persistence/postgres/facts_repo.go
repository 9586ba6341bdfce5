package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
)

// FactsRepository reads a student's monthly activity from attendance,
// review and exam tables. It implements ranking.FactsProvider and
// ranking.StudentLister.
type FactsRepository struct {
	conn *Connection
}

// NewFactsRepository creates a new FactsRepository.
func NewFactsRepository(conn *Connection) *FactsRepository {
	return &FactsRepository{conn: conn}
}

// MonthlyFacts implements ranking.FactsProvider. All reads share one
// repeatable-read snapshot.
func (r *FactsRepository) MonthlyFacts(ctx context.Context, studentID string, month ranking.Month) (ranking.MonthlyFacts, error) {
	from, to := month.Bounds()
	var facts ranking.MonthlyFacts

	err := r.conn.WithTx(ctx, ReadOnlyTxOptions(), func(tx pgx.Tx) error {
		grades, err := loadGrades(ctx, tx, studentID, from, to)
		if err != nil {
			return err
		}
		facts.Grades = grades

		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM attendance_records
			WHERE student_id = $1 AND record_date >= $2 AND record_date < $3 AND status = 'absent'
		`, studentID, from, to).Scan(&facts.Absences); err != nil {
			return fmt.Errorf("count absences: %w", err)
		}

		var score int
		err = tx.QueryRow(ctx, `
			SELECT score FROM monthly_reviews
			WHERE student_id = $1 AND review_month = $2
		`, studentID, from).Scan(&score)
		switch {
		case err == nil:
			facts.ReviewScore = &score
		case IsNoRows(err):
			// No review this month.
		default:
			return fmt.Errorf("load review: %w", err)
		}

		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM exam_attempts
			WHERE student_id = $1 AND exam_date >= $2 AND exam_date < $3
			  AND completed AND NOT is_retake
		`, studentID, from, to).Scan(&facts.ExamCount); err != nil {
			return fmt.Errorf("count exams: %w", err)
		}
		return nil
	})
	if err != nil {
		return ranking.MonthlyFacts{}, unavailable("MonthlyFacts", err)
	}

	return facts, nil
}

func loadGrades(ctx context.Context, q Querier, studentID string, from, to time.Time) ([]ranking.BehaviorGrade, error) {
	rows, err := q.Query(ctx, `
		SELECT behavior_grade
		FROM attendance_records
		WHERE student_id = $1 AND record_date >= $2 AND record_date < $3
		  AND status = 'present' AND behavior_grade IS NOT NULL
		ORDER BY record_date
	`, studentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load grades: %w", err)
	}

	labels, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("load grades: %w", err)
	}

	// Labels are stored normalized; an unknown one is passed through so that
	// Aggregate rejects it instead of silently skipping the day.
	grades := make([]ranking.BehaviorGrade, 0, len(labels))
	for _, label := range labels {
		g, err := ranking.ParseBehaviorGrade(label)
		if err != nil {
			g = ranking.BehaviorGrade(label)
		}
		grades = append(grades, g)
	}
	return grades, nil
}

// ListActiveStudents implements ranking.StudentLister.
func (r *FactsRepository) ListActiveStudents(ctx context.Context) ([]string, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, unavailable("ListActiveStudents", err)
	}

	rows, err := q.Query(ctx, `SELECT id::text FROM students WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, unavailable("ListActiveStudents", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, unavailable("ListActiveStudents", err)
	}
	return ids, nil
}

var (
	_ ranking.FactsProvider = (*FactsRepository)(nil)
	_ ranking.StudentLister = (*FactsRepository)(nil)
)
