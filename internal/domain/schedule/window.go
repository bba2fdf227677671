package schedule

import (
	"time"
)

// Bucket is the visibility classification of a single obligation.
type Bucket int

const (
	BucketNone Bucket = iota
	BucketToday
	BucketOverdue
)

// ItemKind orders heterogeneous obligations inside a bucket: events
// rank above extraordinary tasks, which rank above recurring instances.
type ItemKind int

const (
	KindEvent ItemKind = iota
	KindExtraordinary
	KindRecurring
)

// Item is the common projection every task shape is reduced to before
// merging, so consumers never special-case three parallel code paths.
type Item struct {
	Kind ItemKind
	Due  time.Time
	ID   string
}

// Windows carries the visibility policy: how far ahead a deadline is
// surfaced as a reminder and how long past a deadline a task stays
// actionable before expiration takes over. Both are configuration, not
// constants baked into the classifier.
type Windows struct {
	Lookahead     time.Duration // reminder horizon before a deadline
	OverdueCutoff time.Duration // grace period after a deadline
}

// ClassifyRecurring buckets a pending recurring instance by its
// date-only due anchor: [dayStart, dayEnd) is Today, anything earlier is
// Overdue. Future dates are invisible.
func ClassifyRecurring(due, dayStart, dayEnd time.Time) Bucket {
	switch {
	case !due.Before(dayStart) && due.Before(dayEnd):
		return BucketToday
	case due.Before(dayStart):
		return BucketOverdue
	default:
		return BucketNone
	}
}

// ClassifyExtraordinary buckets an open extraordinary task by its
// composed deadline. Today covers a deadline later today or anywhere in
// the look-ahead horizon; Overdue covers a deadline missed by no more
// than the cutoff. A task past the cutoff has crossed into expiration
// territory and disappears from both lists.
func (w Windows) ClassifyExtraordinary(deadline, now time.Time, loc *time.Location) Bucket {
	if deadline.Before(now) {
		if now.Sub(deadline) <= w.OverdueCutoff {
			return BucketOverdue
		}
		return BucketNone
	}
	if SameDay(deadline, now, loc) || deadline.Sub(now) <= w.Lookahead {
		return BucketToday
	}
	return BucketNone
}

// ClassifyEvent buckets an event by its occurrence date and composed
// start instant. Events surface on their day and inside the look-ahead
// horizon; they are never Overdue because they are date-of-occurrence,
// not deadline-bound.
func (w Windows) ClassifyEvent(eventDate time.Time, startsAt, now time.Time, loc *time.Location) Bucket {
	if eventDate.Equal(DayStart(now, loc)) {
		return BucketToday
	}
	if startsAt.After(now) && startsAt.Sub(now) <= w.Lookahead {
		return BucketToday
	}
	return BucketNone
}

// Less is the merged-bucket ordering: fixed priority first (events,
// then extraordinary, then recurring), due instant within a kind.
func Less(a, b Item) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Due.Before(b.Due)
}
