package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askcoach/internal/model"
)

func icsBody(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

func TestParseGames(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:game-1",
		"SUMMARY:Game vs Thunder",
		"LOCATION:Riverside Park",
		"DTSTART:20250607T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:practice-1",
		"SUMMARY:Practice",
		"DTSTART:20250603T170000Z",
		"RRULE:FREQ=WEEKLY;COUNT=4",
		"END:VEVENT",
	)

	games, err := ParseGames(Source{ID: "team"}, body)
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, "game-1", games[0].UID)
	assert.Equal(t, "Game vs Thunder", games[0].Summary)
	assert.Equal(t, "Riverside Park", games[0].Location)
	assert.True(t, games[0].Start.Equal(time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)))
	assert.Empty(t, games[0].RawRRule)

	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", games[1].RawRRule)
}

func TestParseGamesSkipsEventsWithoutUID(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"SUMMARY:No UID here",
		"DTSTART:20250607T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:keeper",
		"SUMMARY:Kept",
		"DTSTART:20250608T090000Z",
		"END:VEVENT",
	)

	games, err := ParseGames(Source{ID: "team"}, body)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "keeper", games[0].UID)
}

func TestParseGamesEmptyBody(t *testing.T) {
	_, err := ParseGames(Source{ID: "team"}, nil)
	assert.Error(t, err)
}

func TestExpandStartsNonRecurring(t *testing.T) {
	rangeStart := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.Add(importHorizon)

	inRange := Game{UID: "a", Start: time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)}
	got := expandStarts(inRange, rangeStart, rangeEnd)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(inRange.Start))

	past := Game{UID: "b", Start: rangeStart.Add(-time.Hour)}
	assert.Empty(t, expandStarts(past, rangeStart, rangeEnd))

	far := Game{UID: "c", Start: rangeEnd.Add(time.Hour)}
	assert.Empty(t, expandStarts(far, rangeStart, rangeEnd))
}

func TestExpandStartsWeeklyRRule(t *testing.T) {
	g := Game{
		UID:      "weekly",
		Start:    time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=WEEKLY;COUNT=3",
	}
	rangeStart := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.Add(importHorizon)

	got := expandStarts(g, rangeStart, rangeEnd)
	require.Len(t, got, 3)
	for i, start := range got {
		want := g.Start.Add(time.Duration(i) * 7 * 24 * time.Hour)
		assert.True(t, start.Equal(want), "instance %d: got %v want %v", i, start, want)
	}
}

func TestExpandStartsBadRRule(t *testing.T) {
	g := Game{
		UID:      "broken",
		Start:    time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=NOPE",
	}
	assert.Empty(t, expandStarts(g, g.Start.Add(-time.Hour), g.Start.Add(time.Hour)))
}

func TestMaterialize(t *testing.T) {
	g := Game{
		Source:   Source{ID: "team"},
		UID:      "game-1",
		Summary:  "Game vs Thunder",
		Location: "Riverside Park, 100 River Rd, Springfield",
	}
	start := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

	key, ev := materialize(g, start)
	assert.Equal(t, "team/game-1/2025-06-07T10:00:00Z", key)
	assert.Equal(t, "Riverside Park", ev.VenueName, "venue is the first comma token")
	assert.Equal(t, "Riverside Park, 100 River Rd, Springfield", ev.Address)
	assert.Equal(t, "Thunder", ev.Opponent)
	assert.Equal(t, 45, ev.ArrivalMinutesBefore)
	assert.True(t, ev.Active)
}

func TestMaterializeFallbacks(t *testing.T) {
	start := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

	_, ev := materialize(Game{Source: Source{ID: "t"}, UID: "u", Summary: "Scrimmage"}, start)
	assert.Equal(t, "Scrimmage", ev.VenueName, "summary stands in for a missing location")
	assert.Equal(t, "TBD", ev.Address)

	_, ev = materialize(Game{Source: Source{ID: "t"}, UID: "u"}, start)
	assert.Equal(t, "TBD", ev.VenueName)
}

func TestOpponentFromSummary(t *testing.T) {
	cases := []struct {
		summary string
		want    string
	}{
		{"Game vs Thunder", "Thunder"},
		{"vs. Riverside 10U", "Riverside 10U"},
		{"VS Eastside", "Eastside"}, // marker match is case-insensitive
		{"Practice", ""},
		{"", ""},
	}
	for _, tc := range cases {
		t.Run(tc.summary, func(t *testing.T) {
			assert.Equal(t, tc.want, opponentFromSummary(tc.summary))
		})
	}
}

type recordingSink struct {
	mu      sync.Mutex
	upserts map[string]model.Event
}

func (r *recordingSink) UpsertImported(_ context.Context, key string, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upserts == nil {
		r.upserts = map[string]model.Event{}
	}
	r.upserts[key] = ev
	return nil
}

func TestImporterRun(t *testing.T) {
	body := icsBody(
		"BEGIN:VEVENT",
		"UID:game-1",
		"SUMMARY:Game vs Thunder",
		"LOCATION:Riverside Park",
		"DTSTART:20250607T100000Z",
		"END:VEVENT",
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.Write(body)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	fetcher := NewFetcher(t.TempDir())
	now := func() time.Time { return time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC) }

	im := NewImporter(fetcher, sink, []Source{{ID: "team", URL: srv.URL}}, time.UTC, now)
	require.NoError(t, im.Run(context.Background()))

	require.Len(t, sink.upserts, 1)
	ev, ok := sink.upserts["team/game-1/2025-06-07T10:00:00Z"]
	require.True(t, ok, "keys: %v", sink.upserts)
	assert.Equal(t, "Riverside Park", ev.VenueName)
	assert.Equal(t, "Thunder", ev.Opponent)
}

func TestImporterRunNoSources(t *testing.T) {
	im := NewImporter(NewFetcher(t.TempDir()), &recordingSink{}, nil, time.UTC, nil)
	assert.NoError(t, im.Run(context.Background()))
}

func TestFetcherConditionalRequests(t *testing.T) {
	body := icsBody("BEGIN:VEVENT", "UID:u", "DTSTART:20250607T100000Z", "END:VEVENT")

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "team", URL: srv.URL}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, body, first.Body)

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache, "304 should reuse the cached body")
	assert.Equal(t, body, second.Body)
	assert.Equal(t, 2, requests)
}

func TestFetcherFallsBackToCacheOnServerError(t *testing.T) {
	body := icsBody("BEGIN:VEVENT", "UID:u", "DTSTART:20250607T100000Z", "END:VEVENT")

	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "team", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	fail = true
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, body, res.Body)
}
