// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MONTHLY STANDINGS QUERY
// Reads computed breakdowns from the ranking board for reporting pages.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultStandingsLimit = 20
	maxStandingsLimit     = 200
)

// GetMonthlyStandingsQuery selects a month and either the top N or one student.
type GetMonthlyStandingsQuery struct {
	// Month is "YYYY-MM". Empty means the previous month relative to Now.
	Month string

	// StudentID restricts the result to one student when set.
	StudentID string

	// Limit is the number of top entries (default 20, max 200).
	Limit int

	// Now anchors an empty Month; zero means time.Now in Location.
	Now      time.Time
	Location *time.Location
}

// Validate checks the query and applies defaults.
func (q *GetMonthlyStandingsQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultStandingsLimit
	}
	if q.Limit > maxStandingsLimit {
		q.Limit = maxStandingsLimit
	}
	if q.Location == nil {
		q.Location = time.UTC
	}
	if q.Now.IsZero() {
		q.Now = time.Now()
	}
	return nil
}

// StandingDTO is one row of the standings.
type StandingDTO struct {
	Position   int    `json:"position"`
	StudentID  string `json:"student_id"`
	Behavior   int    `json:"behavior"`
	Attendance int    `json:"attendance"`
	Review     int    `json:"review"`
	Exam       int    `json:"exam"`
	Total      int    `json:"total"`
}

// MonthlyStandingsDTO is the query result.
type MonthlyStandingsDTO struct {
	Month   string        `json:"month"`
	Entries []StandingDTO `json:"entries"`
}

// GetMonthlyStandingsHandler handles GetMonthlyStandingsQuery.
type GetMonthlyStandingsHandler struct {
	board ranking.Board
}

// NewGetMonthlyStandingsHandler creates a new handler.
func NewGetMonthlyStandingsHandler(board ranking.Board) *GetMonthlyStandingsHandler {
	return &GetMonthlyStandingsHandler{board: board}
}

// Handle executes the query. A student without a computed breakdown yields an
// error wrapping shared.ErrNotFound.
func (h *GetMonthlyStandingsHandler) Handle(ctx context.Context, q GetMonthlyStandingsQuery) (*MonthlyStandingsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_monthly_standings: %w", err)
	}

	month := ranking.MonthOf(q.Now, q.Location).Previous()
	if q.Month != "" {
		m, err := ranking.ParseMonth(q.Month)
		if err != nil {
			return nil, fmt.Errorf("get_monthly_standings: %w", err)
		}
		month = m
	}

	result := &MonthlyStandingsDTO{Month: month.String()}

	if q.StudentID != "" {
		s, err := h.board.Get(ctx, month, q.StudentID)
		if err != nil {
			return nil, fmt.Errorf("get_monthly_standings: %w", err)
		}
		result.Entries = []StandingDTO{toStandingDTO(*s)}
		return result, nil
	}

	standings, err := h.board.Top(ctx, month, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_monthly_standings: %w", err)
	}
	result.Entries = make([]StandingDTO, 0, len(standings))
	for _, s := range standings {
		result.Entries = append(result.Entries, toStandingDTO(s))
	}
	return result, nil
}

func toStandingDTO(s ranking.Standing) StandingDTO {
	return StandingDTO{
		Position:   s.Position,
		StudentID:  s.StudentID,
		Behavior:   s.Breakdown.Behavior,
		Attendance: s.Breakdown.Attendance,
		Review:     s.Breakdown.Review,
		Exam:       s.Breakdown.Exam,
		Total:      s.Breakdown.Total,
	}
}
