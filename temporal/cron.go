package temporal

import (
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/fieldmark/joblane/errors"
)

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Cron is an Expression backed by a cron schedule.
type Cron struct {
	source   string
	schedule cronlib.Schedule
}

// ParseCron parses a cron expression into an evaluable schedule.
func ParseCron(expr string) (*Cron, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "temporal: invalid cron expression %q", expr)
	}
	return &Cron{source: expr, schedule: schedule}, nil
}

// Next returns the first cron occurrence strictly after the given instant.
func (c *Cron) Next(after time.Time) (time.Time, bool) {
	next := c.schedule.Next(after)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// String returns the original cron expression.
func (c *Cron) String() string {
	return c.source
}
