package rollover

import "time"

// Clock abstracts wall-clock reads so month-boundary decisions are testable
// without real delays.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
