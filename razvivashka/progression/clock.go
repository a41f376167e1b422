package progression

import "time"

const dayFormat = "2006-01-02"

// Clock abstracts time so day-boundary behavior is testable. There is no
// scheduler: day rollover is detected lazily by comparing stored days with
// the current one at request time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func NewSystemClock() Clock { return systemClock{} }

// DayOf returns the calendar day of t in the engine timezone, formatted
// YYYY-MM-DD. All per-day keys in the store use this format.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayFormat)
}
