package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"askcoach/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		text string
		want model.Intent
	}{
		{"empty", "", model.IntentUnknown},
		{"whitespace only", "   ", model.IntentUnknown},
		{"location keyword", "where is the field", model.IntentLocation},
		{"address keyword", "what's the address?", model.IntentLocation},
		{"map keyword", "anyone got a map link", model.IntentLocation},
		{"time keyword", "what time do we play", model.IntentTime},
		{"warmup keyword", "warmup at 9?", model.IntentTime},
		{"late keyword", "running late, traffic is bad", model.IntentLate},
		{"eta keyword", "eta 6:10", model.IntentLate},
		{"unknown chatter", "go team!!", model.IntentUnknown},

		// Bare day replies are exact matches, checked before keywords.
		{"sat short", "sat", model.IntentChoiceSat},
		{"sat full", "Saturday", model.IntentChoiceSat},
		{"sat padded", "  SAT  ", model.IntentChoiceSat},
		{"sun short", "sun", model.IntentChoiceSun},
		{"sun full", "sunday", model.IntentChoiceSun},

		// A day name inside a sentence is not a choice reply.
		{"day in sentence", "where on saturday", model.IntentLocation},
		{"day with time word", "when is the sunday game", model.IntentTime},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.text))
		})
	}
}

func TestClassifyTableOrderBreaksTies(t *testing.T) {
	// "where" (LOCATION) and "when" (TIME) both match; the location
	// group is declared first and wins.
	assert.Equal(t, model.IntentLocation, Classify("where and when"))

	// "field" (LOCATION) vs "late" (LATE): declaration order again.
	assert.Equal(t, model.IntentLocation, Classify("late to the field"))
}

func TestDayMentions(t *testing.T) {
	assert.Equal(t, []string{"saturday"}, DayMentions("where on saturday"))
	assert.Equal(t, []string{"sunday"}, DayMentions("the SUNDAY game"))
	assert.Equal(t, []string{"saturday", "sunday"}, DayMentions("sat or sun?"))
	assert.Empty(t, DayMentions("where do we play"))

	// Loose containment is intentional: "sat" matches inside words too.
	assert.Equal(t, []string{"saturday"}, DayMentions("saturated schedule"))
}
