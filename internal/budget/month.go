package budget

import (
	"fmt"
	"time"
)

// Month is a calendar month in "YYYY-MM" form. The string representation
// orders lexicographically, which is what the watermark comparisons rely on.
type Month string

// EpochMonth predates any real data; it is the watermark default for users
// who have never been rolled over.
const EpochMonth Month = "2000-01"

const monthLayout = "2006-01"

// MonthOf returns the calendar month containing t, in UTC.
func MonthOf(t time.Time) Month {
	return Month(t.UTC().Format(monthLayout))
}

// ParseMonth validates s as a "YYYY-MM" month.
func ParseMonth(s string) (Month, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", fmt.Errorf("parse month %q: %w", s, err)
	}
	return Month(s), nil
}

// Prev returns the month immediately preceding m. Invalid months map to the
// epoch; Month values originate from MonthOf or ParseMonth, so this is a
// safety net rather than an expected path.
func (m Month) Prev() Month {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return EpochMonth
	}
	return MonthOf(t.AddDate(0, -1, 0))
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	return string(m) < string(other)
}

func (m Month) String() string {
	return string(m)
}
