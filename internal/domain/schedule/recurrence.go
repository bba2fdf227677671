package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Recurrence errors
var (
	ErrEmptyWeekdays     = errors.New("weekly and biweekly rules require at least one weekday")
	ErrInvalidDayOfMonth = errors.New("day of month must be 1-31 or the last-day sentinel")
	ErrInvalidFrequency  = errors.New("invalid frequency kind")
	ErrInvalidWindow     = errors.New("program length must be positive")
)

// FrequencyKind identifies the shape of a recurrence rule.
type FrequencyKind string

const (
	FrequencyDaily    FrequencyKind = "daily"
	FrequencyWeekly   FrequencyKind = "weekly"
	FrequencyBiweekly FrequencyKind = "biweekly"
	FrequencyMonthly  FrequencyKind = "monthly"
)

func (fk FrequencyKind) IsValid() bool {
	switch fk {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// LastDayOfMonth is the day-of-month sentinel meaning "the month's final
// calendar date" for monthly rules.
const LastDayOfMonth = -1

// Rule is a tagged recurrence variant. Daily ignores all parameters;
// weekly and biweekly require a non-empty weekday set; monthly carries a
// day of month or the LastDayOfMonth sentinel.
type Rule struct {
	Kind       FrequencyKind  `json:"kind"`
	Weekdays   []time.Weekday `json:"weekdays,omitempty"`
	DayOfMonth int            `json:"day_of_month,omitempty"`
}

// Validate rejects misconfigured rules at the boundary. An empty weekday
// set is a configuration error, never a silent no-op.
func (r Rule) Validate() error {
	switch r.Kind {
	case FrequencyDaily:
		return nil
	case FrequencyWeekly, FrequencyBiweekly:
		if len(r.Weekdays) == 0 {
			return ErrEmptyWeekdays
		}
		for _, wd := range r.Weekdays {
			if wd < time.Sunday || wd > time.Saturday {
				return fmt.Errorf("invalid weekday %d", wd)
			}
		}
		return nil
	case FrequencyMonthly:
		if r.DayOfMonth != LastDayOfMonth && (r.DayOfMonth < 1 || r.DayOfMonth > 31) {
			return fmt.Errorf("%w: got %d", ErrInvalidDayOfMonth, r.DayOfMonth)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, r.Kind)
	}
}

// Expand generates the ordered due dates for a rule over a program
// window of lengthDays starting at start (inclusive). Expansion is a
// pure function of its inputs; re-running it yields an identical set, so
// materialization can upsert safely.
func Expand(rule Rule, start time.Time, lengthDays int) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if lengthDays <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, lengthDays)
	}

	start = StartOfDayUTC(start.Year(), start.Month(), start.Day())

	switch rule.Kind {
	case FrequencyDaily:
		dates := make([]time.Time, 0, lengthDays)
		for i := 0; i < lengthDays; i++ {
			dates = append(dates, start.AddDate(0, 0, i))
		}
		return dates, nil

	case FrequencyWeekly:
		return expandWeekdays(rule.Weekdays, start, lengthDays, false), nil

	case FrequencyBiweekly:
		return expandWeekdays(rule.Weekdays, start, lengthDays, true), nil

	case FrequencyMonthly:
		return expandMonthly(rule.DayOfMonth, start, lengthDays), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, rule.Kind)
}

func expandWeekdays(weekdays []time.Weekday, start time.Time, lengthDays int, biweekly bool) []time.Time {
	wanted := make(map[time.Weekday]bool, len(weekdays))
	for _, wd := range weekdays {
		wanted[wd] = true
	}

	var dates []time.Time
	for i := 0; i < lengthDays; i++ {
		d := start.AddDate(0, 0, i)
		if !wanted[d.Weekday()] {
			continue
		}
		// Biweekly keeps even week indices relative to program start.
		if biweekly && (i/7)%2 != 0 {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

func expandMonthly(dayOfMonth int, start time.Time, lengthDays int) []time.Time {
	end := start.AddDate(0, 0, lengthDays-1)

	var dates []time.Time
	for first := StartOfDayUTC(start.Year(), start.Month(), 1); !first.After(end); first = first.AddDate(0, 1, 0) {
		last := daysInMonth(first.Year(), first.Month())
		day := dayOfMonth
		if day == LastDayOfMonth || day > last {
			day = last
		}
		d := StartOfDayUTC(first.Year(), first.Month(), day)
		if d.Before(start) || d.After(end) {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
