// Package intent classifies inbound message text into the bot's closed
// intent set. Matching is fixed keyword/pattern containment; there is no
// NLU here on purpose.
package intent

import (
	"strings"

	"askcoach/internal/model"
)

// keywordGroup pairs an intent with its trigger keywords. Declaration
// order is the tie-break: the first group with any match wins.
type keywordGroup struct {
	intent   model.Intent
	keywords []string
}

var keywordTable = []keywordGroup{
	{model.IntentLocation, []string{"where", "address", "field", "directions", "map", "location"}},
	{model.IntentTime, []string{"time", "when", "start", "warmup", "arrive"}},
	{model.IntentLate, []string{"late", "traffic", "eta", "behind"}},
}

// Classify maps raw message text to an intent.
//
// The exact day-name check runs before keyword scanning so a bare
// "sat"/"sun" reply is never misclassified even though those strings
// overlap with other keywords as substrings.
func Classify(text string) model.Intent {
	lower := strings.ToLower(strings.TrimSpace(text))

	switch lower {
	case "sat", "saturday":
		return model.IntentChoiceSat
	case "sun", "sunday":
		return model.IntentChoiceSun
	}

	for _, group := range keywordTable {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.intent
			}
		}
	}

	return model.IntentUnknown
}

// DayMentions returns the weekday names mentioned anywhere in the text,
// Saturday before Sunday. This substring check is deliberately looser than
// the exact-match choice classification in Classify: it lets a message like
// "where on saturday" carry a real intent and self-disambiguate in one turn.
func DayMentions(text string) []string {
	lower := strings.ToLower(text)
	var days []string
	if strings.Contains(lower, "sat") {
		days = append(days, "saturday")
	}
	if strings.Contains(lower, "sun") {
		days = append(days, "sunday")
	}
	return days
}
