package challenges

import (
	"fmt"
	"time"
)

// period is the half-open window [Start, End) a challenge row counts over.
type period struct {
	Key   string
	Start time.Time
	End   time.Time
}

// periodFor computes the current period of c in loc. Daily periods start at
// local midnight, weekly periods on ISO Monday. Seasonal challenges use their
// configured window and are keyed by its start date, so moving the window to a
// new season opens a fresh row. One-time challenges count all history.
func periodFor(c *Challenge, now time.Time, loc *time.Location) period {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch c.Type {
	case TypeDaily:
		return period{
			Key:   midnight.Format("2006-01-02"),
			Start: midnight,
			End:   midnight.AddDate(0, 0, 1),
		}
	case TypeWeekly:
		offset := (int(midnight.Weekday()) + 6) % 7
		monday := midnight.AddDate(0, 0, -offset)
		year, week := local.ISOWeek()
		return period{
			Key:   fmt.Sprintf("%d-W%02d", year, week),
			Start: monday,
			End:   monday.AddDate(0, 0, 7),
		}
	case TypeSeasonal:
		p := period{Key: "season", Start: time.Time{}, End: farFuture}
		if c.StartsAt != nil {
			p.Start = *c.StartsAt
			p.Key = "season:" + c.StartsAt.UTC().Format("2006-01-02")
		}
		if c.EndsAt != nil {
			p.End = *c.EndsAt
		}
		return p
	}
	return period{Key: "all", Start: time.Time{}, End: farFuture}
}

var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// runningAt reports whether a seasonal challenge's window contains now.
// Other types always run.
func (c *Challenge) runningAt(now time.Time) bool {
	if c.Type != TypeSeasonal {
		return true
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && !now.Before(*c.EndsAt) {
		return false
	}
	return true
}
