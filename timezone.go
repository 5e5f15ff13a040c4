package circlepress

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format accepted by the digest endpoints.
const DateLayout = "2006-01-02"

// DisplayDateLayout is how publish dates appear in digests.
const DisplayDateLayout = "January 2, 2006"

// LoadZone resolves an IANA zone name. An empty name means UTC.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, invalidf("unknown timezone %q", name)
	}
	return loc, nil
}

// InZone converts t to the named zone. Unknown zones fall back to UTC.
func InZone(t time.Time, name string) time.Time {
	loc, err := LoadZone(name)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// DayBounds returns the first and last instant of the calendar day holding
// date, as observed in loc. Days that cross a DST change are 23 or 25 hours.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	next := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
	return start, next.Add(-time.Nanosecond)
}

// ParseDateRange parses two calendar dates in loc into an inclusive range
// covering the whole of both days.
func ParseDateRange(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, invalidf("startDate must be YYYY-MM-DD")
	}
	e, err := time.ParseInLocation(DateLayout, end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, invalidf("endDate must be YYYY-MM-DD")
	}
	from, _ := DayBounds(s, loc)
	_, to := DayBounds(e, loc)
	if to.Before(from) {
		return time.Time{}, time.Time{}, invalidf("endDate must not be before startDate")
	}
	return from, to, nil
}

// FormatDisplayDate renders t for readers in the named zone.
func FormatDisplayDate(t time.Time, zone string) string {
	return InZone(t, zone).Format(DisplayDateLayout)
}

func describeRange(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", start.Format(DateLayout), end.Format(DateLayout))
}
