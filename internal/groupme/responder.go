package groupme

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"askcoach/internal/model"
	"askcoach/internal/schedule"
)

// Canned replies used by the engine for the terminal states.
const (
	NoGamesReply  = "No upcoming games are scheduled yet. Coach needs to add them."
	ApologyReply  = "Sorry, something went wrong. Please try again."
	LateUsageHint = "Got it—reply 'late 10' or 'eta 6:10' and I'll post an update here."
)

const (
	eventTimeLayout   = "Mon, Jan 2, 3:04 PM"
	arrivalTimeLayout = "3:04 PM"
)

// Respond renders the reply for a resolved (intent, event) pair. The
// switch is exhaustive over the non-choice intents; choice intents never
// reach here because the engine answers with the pending choice's original
// intent.
func Respond(intent model.Intent, event model.Event, text, senderName string) string {
	switch intent {
	case model.IntentLocation:
		return LocationResponse(event)
	case model.IntentTime:
		return TimeResponse(event)
	case model.IntentLate:
		return LateResponse(text, senderName)
	case model.IntentUnknown, model.IntentChoiceSat, model.IntentChoiceSun:
		return UnknownResponse(event)
	default:
		return UnknownResponse(event)
	}
}

// LocationResponse answers "where": venue, address, optional field, a maps
// link and optional parking notes.
func LocationResponse(event model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📍 Location:\n%s\n%s", event.VenueName, event.Address)

	if event.FieldNumber != "" {
		fmt.Fprintf(&b, "\nField: %s", event.FieldNumber)
	}

	fmt.Fprintf(&b, "\n\n🗺️ Map: %s", mapURL(event.Address))

	if event.ParkingNotes != "" {
		fmt.Fprintf(&b, "\n\n🅿️ Parking: %s", event.ParkingNotes)
	}
	return b.String()
}

// TimeResponse answers "when": formatted start, computed arrival time and
// the opponent if known.
func TimeResponse(event model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ Game Time:\n%s", event.Start.Format(eventTimeLayout))

	if event.ArrivalMinutesBefore > 0 {
		arrive := event.Start.Add(-time.Duration(event.ArrivalMinutesBefore) * time.Minute)
		fmt.Fprintf(&b, "\n\n🏃 Arrive by: %s", arrive.Format(arrivalTimeLayout))
	}

	if event.Opponent != "" {
		fmt.Fprintf(&b, "\n\n⚾ Opponent: %s", event.Opponent)
	}
	return b.String()
}

var (
	latePattern = regexp.MustCompile(`late\s+(\d+)`)
	etaPattern  = regexp.MustCompile(`eta\s+(\d{1,2}):?(\d{2})?`)
)

// LateResponse acknowledges a lateness update parsed from the current
// message text. It is a broadcast acknowledgment and deliberately does not
// reference any event.
func LateResponse(text, senderName string) string {
	lower := strings.ToLower(text)

	if m := latePattern.FindStringSubmatch(lower); m != nil {
		return fmt.Sprintf("⏱️ Late update: %s reports ~%s min late.", senderName, m[1])
	}

	if m := etaPattern.FindStringSubmatch(lower); m != nil {
		mins := m[2]
		if mins == "" {
			mins = "00"
		}
		return fmt.Sprintf("⏱️ Late update: %s reports ETA ~%s:%s.", senderName, m[1], mins)
	}

	if strings.Contains(lower, "eta") {
		return fmt.Sprintf("⏱️ Late update: %s is running late.", senderName)
	}

	return LateUsageHint
}

// UnknownResponse summarizes the next game and shows a usage hint.
func UnknownResponse(next model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓️ Next game: %s", next.Start.Format(eventTimeLayout))
	if next.Opponent != "" {
		fmt.Fprintf(&b, " vs %s", next.Opponent)
	}
	fmt.Fprintf(&b, "\n📍 %s", next.VenueName)
	b.WriteString("\n\nTry: where / time / late 10")
	return b.String()
}

// ClarifyQuestion enumerates the weekend options among the candidates and
// asks the user to pick a day.
func ClarifyQuestion(candidates []model.Event) string {
	var b strings.Builder
	b.WriteString("🗓️ We have games this weekend:\n")

	if sat := schedule.ByDay(candidates, "saturday"); len(sat) > 0 {
		fmt.Fprintf(&b, "\n📅 Saturday: %s", sat[0].Start.Format(eventTimeLayout))
	}
	if sun := schedule.ByDay(candidates, "sunday"); len(sun) > 0 {
		fmt.Fprintf(&b, "\n📅 Sunday: %s", sun[0].Start.Format(eventTimeLayout))
	}

	b.WriteString("\n\nWhich game—Sat or Sun? Reply Sat or Sun.")
	return b.String()
}

// NoDayGameReply is sent when a day choice resolves to no remaining game.
func NoDayGameReply(dayName string) string {
	return fmt.Sprintf("Sorry, no %s game found in the schedule.", dayName)
}

func mapURL(address string) string {
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(address)
}
