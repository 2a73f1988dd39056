package temporal

import "time"

// Interval is an Expression that recurs at a fixed distance from the
// evaluation instant. Calendar-sized steps (months, years) take precedence
// over the duration so that "monthly" lands on the same day-of-month.
type Interval struct {
	Every  time.Duration
	Months int
	Years  int
}

// Next returns the instant one interval after the given time.
func (i Interval) Next(after time.Time) (time.Time, bool) {
	if i.Months > 0 || i.Years > 0 {
		return after.AddDate(i.Years, i.Months, 0), true
	}
	if i.Every <= 0 {
		return time.Time{}, false
	}
	return after.Add(i.Every), true
}
