package groupme

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"askcoach/internal/model"
)

func testEvent() model.Event {
	return model.Event{
		ID:                   1,
		Start:                time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC), // Sat 10:00 AM
		VenueName:            "Riverside Park",
		Address:              "100 River Rd, Springfield",
		FieldNumber:          "Field 3",
		ParkingNotes:         "Lot B fills early",
		Opponent:             "Thunder",
		ArrivalMinutesBefore: 45,
		Active:               true,
	}
}

func TestLocationResponse(t *testing.T) {
	got := LocationResponse(testEvent())

	assert.Contains(t, got, "Riverside Park")
	assert.Contains(t, got, "100 River Rd, Springfield")
	assert.Contains(t, got, "Field: Field 3")
	assert.Contains(t, got, "https://www.google.com/maps/search/?api=1&query=")
	assert.Contains(t, got, "Parking: Lot B fills early")
}

func TestLocationResponseOmitsEmptyOptionals(t *testing.T) {
	ev := testEvent()
	ev.FieldNumber = ""
	ev.ParkingNotes = ""

	got := LocationResponse(ev)
	assert.NotContains(t, got, "Field:")
	assert.NotContains(t, got, "Parking:")
}

func TestTimeResponse(t *testing.T) {
	got := TimeResponse(testEvent())

	assert.Contains(t, got, "Sat, Jun 7, 10:00 AM")
	assert.Contains(t, got, "Arrive by: 9:15 AM")
	assert.Contains(t, got, "Opponent: Thunder")
}

func TestLateResponse(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"late minutes", "late 10", "~10 min late"},
		{"late in sentence", "gonna be LATE 25 sorry", "~25 min late"},
		{"eta with colon", "eta 6:10", "ETA ~6:10"},
		{"eta without colon minutes", "eta 7", "ETA ~7:00"},
		{"bare eta", "bad traffic, eta unknown", "is running late"},
		{"no detail", "we're behind", "reply 'late 10' or 'eta 6:10'"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, LateResponse(tc.text, "Jordan"), tc.want)
		})
	}
}

func TestLateResponseNamesSender(t *testing.T) {
	assert.Contains(t, LateResponse("late 5", "Casey"), "Casey")
}

func TestUnknownResponse(t *testing.T) {
	got := UnknownResponse(testEvent())

	assert.Contains(t, got, "Next game: Sat, Jun 7, 10:00 AM")
	assert.Contains(t, got, "vs Thunder")
	assert.Contains(t, got, "Riverside Park")
	assert.Contains(t, got, "Try: where / time / late 10")
}

func TestClarifyQuestionListsBothDays(t *testing.T) {
	sat := testEvent()
	sun := testEvent()
	sun.ID = 2
	sun.Start = time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)

	got := ClarifyQuestion([]model.Event{sat, sun})
	assert.Contains(t, got, "Saturday: Sat, Jun 7, 10:00 AM")
	assert.Contains(t, got, "Sunday: Sun, Jun 8, 9:00 AM")
	assert.Contains(t, got, "Reply Sat or Sun")
}

func TestClarifyQuestionSkipsMissingDay(t *testing.T) {
	got := ClarifyQuestion([]model.Event{testEvent()})
	assert.Contains(t, got, "Saturday:")
	assert.NotContains(t, got, "Sunday:")
}

func TestRespondDispatch(t *testing.T) {
	ev := testEvent()

	assert.Contains(t, Respond(model.IntentLocation, ev, "", "J"), "Location")
	assert.Contains(t, Respond(model.IntentTime, ev, "", "J"), "Game Time")
	assert.Contains(t, Respond(model.IntentLate, ev, "late 10", "J"), "min late")
	assert.Contains(t, Respond(model.IntentUnknown, ev, "", "J"), "Next game")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abcd", 2))
	assert.Len(t, []rune(Truncate(strings.Repeat("x", 2000), 1000)), 1000)

	// Rune-safe: multibyte characters are not split.
	assert.Equal(t, "⚾⚾", Truncate("⚾⚾⚾", 2))
}
