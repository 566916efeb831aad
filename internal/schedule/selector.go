// Package schedule selects which events are relevant to a message: the
// sliding upcoming window and the day-of-week narrowing used for
// disambiguation.
package schedule

import (
	"sort"
	"strings"
	"time"

	"askcoach/internal/model"
)

const (
	// TrailingWindow lets chatter about a game in progress or just
	// finished still resolve against it.
	TrailingWindow = 12 * time.Hour

	// LeadingWindow limits resolution to the near-term schedule.
	LeadingWindow = 7 * 24 * time.Hour
)

// Upcoming returns the events whose start falls within
// [now - TrailingWindow, now + LeadingWindow], bounds inclusive. Input
// order is preserved; callers rely on the store's ascending-start order.
func Upcoming(events []model.Event, now time.Time) []model.Event {
	windowStart := now.Add(-TrailingWindow)
	windowEnd := now.Add(LeadingWindow)

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Start.Before(windowStart) || ev.Start.After(windowEnd) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// ByDay returns the subset of events whose local start date falls on the
// named weekday (case-insensitive), sorted ascending by start time. The
// ascending sort is what makes "earliest wins" hold for doubleheaders.
func ByDay(events []model.Event, dayName string) []model.Event {
	want := strings.ToLower(strings.TrimSpace(dayName))

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if strings.ToLower(ev.Start.Weekday().String()) == want {
			out = append(out, ev)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
