package model

import "time"

// Intent is the coarse category of information a message is asking for,
// or a structural day-choice reply. The set is closed; classification
// never fails (IntentUnknown is the fallback, not an error).
type Intent int

const (
	IntentUnknown Intent = iota
	IntentLocation
	IntentTime
	IntentLate
	IntentChoiceSat
	IntentChoiceSun
)

// String returns the stable tag used for persistence and logging. Pending
// choices store this tag, so values must not change between releases.
func (i Intent) String() string {
	switch i {
	case IntentLocation:
		return "LOCATION"
	case IntentTime:
		return "TIME"
	case IntentLate:
		return "LATE"
	case IntentChoiceSat:
		return "CHOICE_SAT"
	case IntentChoiceSun:
		return "CHOICE_SUN"
	default:
		return "UNKNOWN"
	}
}

// ParseIntent maps a stored tag back to its Intent. Unrecognized tags map
// to IntentUnknown.
func ParseIntent(tag string) Intent {
	switch tag {
	case "LOCATION":
		return IntentLocation
	case "TIME":
		return IntentTime
	case "LATE":
		return IntentLate
	case "CHOICE_SAT":
		return IntentChoiceSat
	case "CHOICE_SUN":
		return IntentChoiceSun
	default:
		return IntentUnknown
	}
}

// IsChoice reports whether the intent is a day-choice reply rather than a
// question in its own right.
func (i Intent) IsChoice() bool {
	return i == IntentChoiceSat || i == IntentChoiceSun
}

// ChoiceDay returns the weekday name a choice intent selects ("saturday"
// or "sunday"), or "" for non-choice intents.
func (i Intent) ChoiceDay() string {
	switch i {
	case IntentChoiceSat:
		return "saturday"
	case IntentChoiceSun:
		return "sunday"
	default:
		return ""
	}
}

// Event is one scheduled game. Rows are created/edited through the admin
// interface (or the ICS import) and read by the bot; soft-deleted rows
// (Active == false) never participate in resolution.
type Event struct {
	ID int64

	// Start is the game's local start time. It is stored as a naive
	// local timestamp and interpreted in the configured timezone.
	Start time.Time

	VenueName string
	Address   string

	FieldNumber  string // optional, e.g. "Field 3"
	ParkingNotes string // optional
	Opponent     string // optional

	// ArrivalMinutesBefore is how early the team should arrive. 45 when
	// not set explicitly.
	ArrivalMinutesBefore int

	Active bool
}

// PendingChoice is one unanswered "Sat or Sun?" question. At most one
// exists per (user, group); a new one overwrites the old. It is consumed
// on the user's day reply, or removed by expiry sweep / supersession.
type PendingChoice struct {
	UserID  string
	GroupID string

	// Intent is the original question being disambiguated (never a
	// choice intent itself).
	Intent Intent

	// CandidateIDs is the ordered id list of the events the question was
	// posed about. Ids may go stale if an event is deleted meanwhile.
	CandidateIDs []int64

	ExpiresAt time.Time
}

// Message is an inbound group-chat message as delivered by the platform
// callback.
type Message struct {
	UserID     string `json:"user_id"`
	GroupID    string `json:"group_id"`
	Name       string `json:"name"`
	Text       string `json:"text"`
	SenderType string `json:"sender_type"` // "user" or "bot"
}

// FromBot reports whether the message was produced by a bot (including
// this one); such messages are ignored to prevent reply loops.
func (m Message) FromBot() bool {
	return m.SenderType == "bot"
}
