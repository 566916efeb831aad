package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "askcoach/internal/log"
	"askcoach/internal/model"
)

// importHorizon is how far ahead the importer materializes games. Wider
// than the bot's 7-day resolution window so the admin list shows the
// whole stretch of the season that is already published.
const importHorizon = 90 * 24 * time.Hour

// maxInstancesPerGame caps recurrence expansion per VEVENT.
const maxInstancesPerGame = 500

// Game is a VEVENT reduced to what a game needs.
type Game struct {
	Source Source

	UID      string
	Summary  string
	Location string

	Start    time.Time
	RawRRule string
}

// EventSink is where imported games land. Implemented by the sqlite store.
type EventSink interface {
	UpsertImported(ctx context.Context, importKey string, ev model.Event) error
}

// Importer pulls configured ICS sources and upserts the contained games
// into the event store.
type Importer struct {
	fetcher *Fetcher
	sink    EventSink
	sources []Source
	loc     *time.Location

	// now is injected for tests; time.Now otherwise.
	now func() time.Time
}

// NewImporter constructs an Importer. loc is the schedule display timezone.
func NewImporter(fetcher *Fetcher, sink EventSink, sources []Source, loc *time.Location, now func() time.Time) *Importer {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Importer{
		fetcher: fetcher,
		sink:    sink,
		sources: sources,
		loc:     loc,
		now:     now,
	}
}

// Run performs one full import pass: fetch, parse, expand, upsert. Per-feed
// and per-event failures are logged and skipped; Run only fails when no
// source produced a usable body.
func (im *Importer) Run(ctx context.Context) error {
	if len(im.sources) == 0 {
		return nil
	}

	results, errs := im.fetcher.FetchAll(ctx, im.sources)
	if len(results) == 0 && len(errs) > 0 {
		return fmt.Errorf("ics import: all %d sources failed", len(errs))
	}

	now := im.now().In(im.loc)
	rangeStart := now.Add(-12 * time.Hour)
	rangeEnd := now.Add(importHorizon)

	imported := 0
	for _, res := range results {
		games, err := ParseGames(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics import: parse failed", err, "id", res.Source.ID)
			continue
		}

		for _, g := range games {
			for _, start := range expandStarts(g, rangeStart, rangeEnd) {
				key, ev := materialize(g, start.In(im.loc))
				if err := im.sink.UpsertImported(ctx, key, ev); err != nil {
					appLog.Error("ics import: upsert failed", err, "key", key)
					continue
				}
				imported++
			}
		}
	}

	appLog.Info("ics import completed", "sources", len(results), "games", imported)
	return nil
}

// ParseGames parses an ICS payload into the games it contains. Events
// without a UID or a usable DTSTART are logged and skipped.
func ParseGames(src Source, body []byte) ([]Game, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	games := make([]Game, 0)
	for _, ve := range cal.Events() {
		g, perr := parseVEvent(src, ve)
		if perr != nil {
			appLog.Error("ics import: skipping vevent", perr, "id", src.ID)
			continue
		}
		games = append(games, g)
	}
	return games, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (Game, error) {
	var g Game
	g.Source = src

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return g, errors.New("missing UID")
	}
	g.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		g.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		g.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return g, fmt.Errorf("unusable DTSTART: %w", err)
	}
	g.Start = start

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		g.RawRRule = p.Value
	}

	return g, nil
}

// expandStarts returns the concrete start times for a game within the
// range, expanding RRULE-based recurrences.
func expandStarts(g Game, rangeStart, rangeEnd time.Time) []time.Time {
	if g.RawRRule == "" {
		if g.Start.Before(rangeStart) || g.Start.After(rangeEnd) {
			return nil
		}
		return []time.Time{g.Start}
	}

	r, err := rrule.StrToRRule(g.RawRRule)
	if err != nil {
		appLog.Error("ics import: bad RRULE", err, "uid", g.UID, "rrule", g.RawRRule)
		return nil
	}
	r.DTStart(g.Start)

	starts := r.Between(rangeStart.In(g.Start.Location()), rangeEnd.In(g.Start.Location()), true)
	if len(starts) > maxInstancesPerGame {
		starts = starts[:maxInstancesPerGame]
		appLog.Error("ics import: truncated recurrence", errors.New("instance cap reached"),
			"uid", g.UID, "cap", maxInstancesPerGame)
	}
	return starts
}

// materialize converts one game instance into an event row plus its
// idempotency key.
func materialize(g Game, start time.Time) (string, model.Event) {
	key := fmt.Sprintf("%s/%s/%s", g.Source.ID, g.UID, start.Format(time.RFC3339))

	venue := g.Location
	if i := strings.Index(venue, ","); i > 0 {
		venue = strings.TrimSpace(venue[:i])
	}
	if venue == "" {
		venue = g.Summary
	}
	if venue == "" {
		venue = "TBD"
	}

	address := g.Location
	if address == "" {
		address = "TBD"
	}

	return key, model.Event{
		Start:                start,
		VenueName:            venue,
		Address:              address,
		Opponent:             opponentFromSummary(g.Summary),
		ArrivalMinutesBefore: 45,
		Active:               true,
	}
}

// opponentFromSummary extracts the opposing team from summaries like
// "Game vs Thunder" or "vs. Riverside 10U".
func opponentFromSummary(summary string) string {
	lower := strings.ToLower(summary)
	for _, marker := range []string{"vs. ", "vs "} {
		if i := strings.Index(lower, marker); i >= 0 {
			return strings.TrimSpace(summary[i+len(marker):])
		}
	}
	return ""
}
