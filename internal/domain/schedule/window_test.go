package schedule

import (
	"sort"
	"testing"
	"time"
)

var testWindows = Windows{
	Lookahead:     72 * time.Hour,
	OverdueCutoff: 48 * time.Hour,
}

func TestClassifyRecurring(t *testing.T) {
	dayStart := date(2025, time.June, 10)
	dayEnd := date(2025, time.June, 11)

	cases := []struct {
		name string
		due  time.Time
		want Bucket
	}{
		{"due today", date(2025, time.June, 10), BucketToday},
		{"due yesterday", date(2025, time.June, 9), BucketOverdue},
		{"due last month", date(2025, time.May, 1), BucketOverdue},
		{"due tomorrow", date(2025, time.June, 11), BucketNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyRecurring(tc.due, dayStart, dayEnd); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestClassifyExtraordinary_OverdueCutoffBoundary(t *testing.T) {
	deadline := time.Date(2025, time.March, 10, 18, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		now  time.Time
		want Bucket
	}{
		{"one minute inside cutoff", deadline.Add(48*time.Hour - time.Minute), BucketOverdue},
		{"exactly at cutoff", deadline.Add(48 * time.Hour), BucketOverdue},
		{"one minute past cutoff", deadline.Add(48*time.Hour + time.Minute), BucketNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := testWindows.ClassifyExtraordinary(deadline, tc.now, time.UTC); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestClassifyExtraordinary_LookaheadBoundary(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		deadline time.Time
		want     Bucket
	}{
		{"later today", now.Add(6 * time.Hour), BucketToday},
		{"one minute inside lookahead", now.Add(72*time.Hour - time.Minute), BucketToday},
		{"exactly at lookahead", now.Add(72 * time.Hour), BucketToday},
		{"one minute past lookahead", now.Add(72*time.Hour + time.Minute), BucketNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := testWindows.ClassifyExtraordinary(tc.deadline, now, time.UTC); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestClassifyEvent(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, loc)

	cases := []struct {
		name      string
		eventDate time.Time
		startsAt  time.Time
		want      Bucket
	}{
		{"happening today", date(2025, time.March, 10), now.Add(5 * time.Hour), BucketToday},
		{"inside lookahead", date(2025, time.March, 12), now.Add(48 * time.Hour), BucketToday},
		{"beyond lookahead", date(2025, time.March, 20), now.Add(10 * 24 * time.Hour), BucketNone},
		{"already past", date(2025, time.March, 1), now.Add(-9 * 24 * time.Hour), BucketNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := testWindows.ClassifyEvent(tc.eventDate, tc.startsAt, now, loc); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestLess_KindPriorityThenDue(t *testing.T) {
	items := []Item{
		{Kind: KindRecurring, Due: date(2025, time.March, 10), ID: "recurring-early"},
		{Kind: KindEvent, Due: date(2025, time.March, 11), ID: "event"},
		{Kind: KindExtraordinary, Due: date(2025, time.March, 9), ID: "extraordinary"},
		{Kind: KindRecurring, Due: date(2025, time.March, 8), ID: "recurring-earlier"},
	}

	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j])
	})

	wantOrder := []string{"event", "extraordinary", "recurring-earlier", "recurring-early"}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, items[i].ID)
		}
	}
}
