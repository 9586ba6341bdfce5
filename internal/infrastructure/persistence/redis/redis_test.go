package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

func TestKeyConventions(t *testing.T) {
	assert.Equal(t, "lock:ledger:enthusiasm:s1:2025-03-14",
		LockKey(ledger.LockKey(ledger.Key{StudentID: "s1", Date: time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)})))
	assert.Equal(t, "pubsub:attendance", AttendanceChannel)
	assert.Equal(t, "ranking:2025-03:scores", RankingScoresKey("2025-03"))
	assert.Equal(t, "ranking:2025-03:breakdowns", RankingBreakdownsKey("2025-03"))
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

func TestDecodeAttendanceMessage(t *testing.T) {
	event, err := DecodeAttendanceMessage([]byte(`{"student_id":" s1 ","date":"2025-03-14","status":"Present","correlation_id":"c-9"}`))
	require.NoError(t, err)
	assert.Equal(t, "s1", event.StudentID)
	assert.Equal(t, time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC), event.Date)
	assert.Equal(t, ledger.StatusPresent, event.Status)
	assert.Equal(t, "c-9", event.CorrelationID)
}

func TestDecodeAttendanceMessage_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{`},
		{"missing student", `{"date":"2025-03-14","status":"present"}`},
		{"bad date", `{"student_id":"s1","date":"14.03.2025","status":"present"}`},
		{"unknown status", `{"student_id":"s1","date":"2025-03-14","status":"sick"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAttendanceMessage([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestDecodeBreakdown(t *testing.T) {
	bd, err := decodeBreakdown(`{"behavior":-2,"attendance":-1,"review":-1,"exam":6,"total":2}`)
	require.NoError(t, err)
	assert.Equal(t, ranking.Breakdown{Behavior: -2, Attendance: -1, Review: -1, Exam: 6, Total: 2}, bd)

	_, err = decodeBreakdown(nil)
	assert.True(t, shared.IsNotFound(err))

	_, err = decodeBreakdown("{")
	assert.ErrorIs(t, err, ErrCacheSerialization)
}

func TestMemberString(t *testing.T) {
	assert.Equal(t, "a", memberString("a"))
	assert.Equal(t, "b", memberString([]byte("b")))
	assert.Equal(t, "7", memberString(7))
}

func TestStaleMembers(t *testing.T) {
	assert.Equal(t, []string{"c", "a"}, staleMembers([]string{"c", "b", "a"}, []string{"b"}))
	assert.Empty(t, staleMembers([]string{"a", "b"}, []string{"b", "a", "z"}))
	assert.Equal(t, []string{"a"}, staleMembers([]string{"a"}, nil))
}
