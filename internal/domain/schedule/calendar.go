package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Calendar errors
var (
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTimeOfDay = errors.New("invalid time of day, expected HH:MM")
)

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into its canonical instant:
// midnight UTC of that calendar day. Storage and comparison always use
// this anchor so a date means the same day in every client timezone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// StartOfDayUTC returns midnight UTC for the given calendar day.
func StartOfDayUTC(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayStart anchors "today" for a reference instant observed in loc,
// returned as the canonical UTC midnight of that local calendar day.
func DayStart(ref time.Time, loc *time.Location) time.Time {
	y, m, d := ref.In(loc).Date()
	return StartOfDayUTC(y, m, d)
}

// DeadlineSpec is the dual representation of a deadline: a bare calendar
// date, or a date plus an HH:MM time of day.
type DeadlineSpec struct {
	Date      time.Time // canonical UTC midnight anchor
	TimeOfDay string    // "HH:MM", empty for date-only deadlines
}

// Compose resolves the spec into a single deadline instant in loc.
// The stored date's year/month/day are re-projected into the viewer's
// local calendar before the time is applied, so the date portion is
// never timezone-shifted twice. A date-only spec resolves to the last
// second of that local day.
func (ds DeadlineSpec) Compose(loc *time.Location) (time.Time, error) {
	y, m, d := ds.Date.Date()
	if ds.TimeOfDay == "" {
		return time.Date(y, m, d, 23, 59, 59, 0, loc), nil
	}
	hh, mm, err := parseTimeOfDay(ds.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, m, d, hh, mm, 0, 0, loc), nil
}

// ComposeDeadline is the convenience form used by callers holding a
// stored date and an optional time string.
func ComposeDeadline(storedDate time.Time, timeOfDay string, loc *time.Location) (time.Time, error) {
	return DeadlineSpec{Date: storedDate, TimeOfDay: timeOfDay}.Compose(loc)
}

// ValidateTimeOfDay rejects malformed HH:MM strings at the input
// boundary. An empty string is valid (date-only deadline).
func ValidateTimeOfDay(s string) error {
	if s == "" {
		return nil
	}
	_, _, err := parseTimeOfDay(s)
	return err
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	t, perr := time.Parse("15:04", s)
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return t.Hour(), t.Minute(), nil
}

// SameDay reports whether two instants fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
