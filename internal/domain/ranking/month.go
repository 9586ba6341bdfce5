package ranking

import (
	"fmt"
	"time"

	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// Month identifies a calendar month, the aggregation period for ranking points.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth creates a Month with validation.
func NewMonth(year int, month time.Month) (Month, error) {
	if year < 1 || month < time.January || month > time.December {
		return Month{}, shared.ErrInvalidMonth
	}
	return Month{Year: year, Month: month}, nil
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(value string) (Month, error) {
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return Month{}, shared.WrapError("ranking", "ParseMonth", shared.ErrInvalidFormat,
			fmt.Sprintf("invalid month %q", value), err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing t in the given location.
func MonthOf(t time.Time, loc *time.Location) Month {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return Month{Year: local.Year(), Month: local.Month()}
}

// IsZero reports whether the month is unset.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Previous returns the month before m.
func (m Month) Previous() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Next returns the month after m.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Bounds returns the first day of the month and the first day of the next
// month as calendar dates (midnight UTC). The upper bound is exclusive.
func (m Month) Bounds() (from, to time.Time) {
	from = time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Contains reports whether the calendar date of t (in UTC) falls within m.
func (m Month) Contains(t time.Time) bool {
	u := t.UTC()
	return u.Year() == m.Year && u.Month() == m.Month
}

// String returns "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
