package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

type stubBoard struct {
	month     ranking.Month
	standings []ranking.Standing
	lastLimit int
}

func (b *stubBoard) Publish(context.Context, ranking.Month, string, ranking.Breakdown) error {
	return nil
}

func (b *stubBoard) Top(_ context.Context, m ranking.Month, limit int) ([]ranking.Standing, error) {
	b.month = m
	b.lastLimit = limit
	if limit < len(b.standings) {
		return b.standings[:limit], nil
	}
	return b.standings, nil
}

func (b *stubBoard) Retain(context.Context, ranking.Month, []string) (int, error) {
	return 0, nil
}

func (b *stubBoard) Get(_ context.Context, m ranking.Month, id string) (*ranking.Standing, error) {
	b.month = m
	for _, s := range b.standings {
		if s.StudentID == id {
			s := s
			return &s, nil
		}
	}
	return nil, shared.WrapError("board", "Get", shared.ErrNotFound, "no standing", nil)
}

func newStubBoard() *stubBoard {
	return &stubBoard{standings: []ranking.Standing{
		{Position: 1, StudentID: "a", Breakdown: ranking.Breakdown{Behavior: 3, Attendance: 3, Total: 6}},
		{Position: 2, StudentID: "b", Breakdown: ranking.Breakdown{Exam: 3, Total: 3}},
		{Position: 3, StudentID: "c", Breakdown: ranking.Breakdown{Attendance: -2, Total: -2}},
	}}
}

func TestGetMonthlyStandings_DefaultsToPreviousMonth(t *testing.T) {
	board := newStubBoard()
	h := NewGetMonthlyStandingsHandler(board)

	res, err := h.Handle(context.Background(), GetMonthlyStandingsQuery{
		Now: time.Date(2025, time.January, 1, 3, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-12", res.Month)
	assert.Equal(t, defaultStandingsLimit, board.lastLimit)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, "a", res.Entries[0].StudentID)
	assert.Equal(t, 6, res.Entries[0].Total)
}

func TestGetMonthlyStandings_TopLimitAndClamp(t *testing.T) {
	board := newStubBoard()
	h := NewGetMonthlyStandingsHandler(board)

	res, err := h.Handle(context.Background(), GetMonthlyStandingsQuery{Month: "2025-02", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)
	assert.Equal(t, ranking.Month{Year: 2025, Month: time.February}, board.month)

	_, err = h.Handle(context.Background(), GetMonthlyStandingsQuery{Month: "2025-02", Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, maxStandingsLimit, board.lastLimit)

	_, err = h.Handle(context.Background(), GetMonthlyStandingsQuery{Limit: -1})
	assert.Error(t, err)
}

func TestGetMonthlyStandings_SingleStudent(t *testing.T) {
	h := NewGetMonthlyStandingsHandler(newStubBoard())

	res, err := h.Handle(context.Background(), GetMonthlyStandingsQuery{Month: "2025-02", StudentID: "b"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, 2, res.Entries[0].Position)
	assert.Equal(t, 3, res.Entries[0].Exam)

	_, err = h.Handle(context.Background(), GetMonthlyStandingsQuery{Month: "2025-02", StudentID: "zzz"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), GetMonthlyStandingsQuery{Month: "Feb 2025"})
	assert.True(t, shared.IsValidation(err))
}
