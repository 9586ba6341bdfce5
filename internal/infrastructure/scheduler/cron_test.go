package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronExpression_MonthlyRanking(t *testing.T) {
	almaty := time.FixedZone("Asia/Almaty", 5*60*60)
	ce := MustParseCronExpression(MonthlyRankingCron)

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "mid month",
			after: time.Date(2025, time.March, 14, 10, 30, 0, 0, almaty),
			want:  time.Date(2025, time.April, 1, 2, 0, 0, 0, almaty),
		},
		{
			name:  "year boundary",
			after: time.Date(2025, time.December, 31, 23, 59, 0, 0, almaty),
			want:  time.Date(2026, time.January, 1, 2, 0, 0, 0, almaty),
		},
		{
			name:  "just before the run",
			after: time.Date(2025, time.May, 1, 1, 59, 30, 0, almaty),
			want:  time.Date(2025, time.May, 1, 2, 0, 0, 0, almaty),
		},
		{
			name:  "exactly at the run",
			after: time.Date(2025, time.May, 1, 2, 0, 0, 0, almaty),
			want:  time.Date(2025, time.June, 1, 2, 0, 0, 0, almaty),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ce.Next(tt.after)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestCronExpression_Fields(t *testing.T) {
	base := time.Date(2025, time.March, 14, 10, 7, 0, 0, time.UTC) // Friday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/5 * * * *", time.Date(2025, time.March, 14, 10, 10, 0, 0, time.UTC)},
		{"0 * * * *", time.Date(2025, time.March, 14, 11, 0, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC)},
		{"30 9 * * 1-5", time.Date(2025, time.March, 17, 9, 30, 0, 0, time.UTC)},
		{"0 12 1,15 * *", time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)},
		{"0 0 31 * *", time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)},
		{"0 0 29 2 *", time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC)},
		// Either day field may match when both are restricted.
		{"0 0 20 * 6", time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			got := ce.Next(base)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, tt.expr, ce.String())
		})
	}
}

func TestParseCronExpression_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
		"1,,2 * * * *",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}

	assert.Panics(t, func() { MustParseCronExpression("bad") })
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(90 * time.Second)
	base := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(90*time.Second), s.Next(base))
	assert.Equal(t, "@every 1m30s", s.String())
}
