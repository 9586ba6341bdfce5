package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ranking/internal/application/query"
	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

type stubBoard struct {
	standings []ranking.Standing
	err       error
}

func (b *stubBoard) Publish(context.Context, ranking.Month, string, ranking.Breakdown) error {
	return nil
}

func (b *stubBoard) Top(_ context.Context, _ ranking.Month, limit int) ([]ranking.Standing, error) {
	if b.err != nil {
		return nil, b.err
	}
	if limit < len(b.standings) {
		return b.standings[:limit], nil
	}
	return b.standings, nil
}

func (b *stubBoard) Retain(context.Context, ranking.Month, []string) (int, error) {
	return 0, nil
}

func (b *stubBoard) Get(_ context.Context, _ ranking.Month, studentID string) (*ranking.Standing, error) {
	for _, s := range b.standings {
		if s.StudentID == studentID {
			return &s, nil
		}
	}
	return nil, shared.NewDomainError("ranking", "Get", shared.ErrNotFound, "no standing for "+studentID)
}

func newTestServer(board ranking.Board, health *HealthChecker) http.Handler {
	deps := Dependencies{Health: health}
	if board != nil {
		deps.Standings = query.NewGetMonthlyStandingsHandler(board)
	}
	return NewServer(DefaultConfig(), deps).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Liveness(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Readiness(t *testing.T) {
	health := NewHealthChecker("0.1.0", 0)
	health.AddCheck("postgres", func(context.Context) error { return nil })
	health.AddInfoCheck("event_forwarding", func(context.Context) error { return errors.New("circuit open") })

	rec := get(t, newTestServer(nil, health), "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.False(t, status.Checks["event_forwarding"].Healthy)
	assert.Equal(t, "0.1.0", status.Version)

	health.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	rec = get(t, newTestServer(nil, health), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "failing checks: redis", status.Message)
}

func TestServer_Standings(t *testing.T) {
	board := &stubBoard{standings: []ranking.Standing{
		{Position: 1, StudentID: "s1", Breakdown: ranking.Breakdown{Attendance: 3, Exam: 6, Total: 9}},
		{Position: 2, StudentID: "s2", Breakdown: ranking.Breakdown{Attendance: 3, Total: 3}},
	}}
	h := newTestServer(board, nil)

	rec := get(t, h, "/v1/rankings/2025-03?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var dto query.MonthlyStandingsDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "2025-03", dto.Month)
	require.Len(t, dto.Entries, 1)
	assert.Equal(t, 9, dto.Entries[0].Total)

	rec = get(t, h, "/v1/rankings/2025-03/students/s2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	require.Len(t, dto.Entries, 1)
	assert.Equal(t, "s2", dto.Entries[0].StudentID)

	rec = get(t, h, "/v1/rankings")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_StandingsErrors(t *testing.T) {
	tests := []struct {
		name  string
		board ranking.Board
		path  string
		want  int
	}{
		{"bad month", &stubBoard{}, "/v1/rankings/March", http.StatusBadRequest},
		{"bad limit", &stubBoard{}, "/v1/rankings/2025-03?limit=-4", http.StatusBadRequest},
		{"unknown student", &stubBoard{}, "/v1/rankings/2025-03/students/nobody", http.StatusNotFound},
		{"board down", &stubBoard{err: shared.NewDomainError("ranking", "Top", shared.ErrServiceUnavailable, "redis down")}, "/v1/rankings/2025-03", http.StatusServiceUnavailable},
		{"board failure", &stubBoard{err: errors.New("boom")}, "/v1/rankings/2025-03", http.StatusInternalServerError},
		{"no board", nil, "/v1/rankings/2025-03", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(tt.board, nil), tt.path)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
