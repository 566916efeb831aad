// Package engine implements the per-message disambiguation state machine:
// classify the message, resolve which game it refers to, and manage the
// short-lived pending "Sat or Sun?" state when resolution is ambiguous.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"askcoach/internal/groupme"
	"askcoach/internal/intent"
	appLog "askcoach/internal/log"
	"askcoach/internal/model"
	"askcoach/internal/schedule"
	"askcoach/internal/store"
)

// PendingChoiceTTL is how long a clarifying question stays answerable.
const PendingChoiceTTL = 10 * time.Minute

// EventStore is the engine's read-only view of the schedule.
type EventStore interface {
	ListActive(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id int64) (model.Event, error)
}

// PendingStore holds at most one pending choice per (user, group) with
// atomic insert-or-replace semantics.
type PendingStore interface {
	GetPendingChoice(ctx context.Context, userID, groupID string, now time.Time) (*model.PendingChoice, error)
	SetPendingChoice(ctx context.Context, pc model.PendingChoice) error
	ClearPendingChoice(ctx context.Context, userID, groupID string) error
}

// Notifier delivers a reply to the group chat.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Engine orchestrates classifier output, event selection and pending-choice
// state for one inbound message at a time. Collaborators are injected so
// the engine is testable against fakes.
type Engine struct {
	events   EventStore
	pending  PendingStore
	notifier Notifier

	// now returns the current time in the schedule's timezone. Injected
	// for window and expiry tests.
	now func() time.Time
}

// New constructs an Engine. now may be nil, in which case time.Now is used.
func New(events EventStore, pending PendingStore, notifier Notifier, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		events:   events,
		pending:  pending,
		notifier: notifier,
		now:      now,
	}
}

// Handle processes one inbound message to completion. Store and resolution
// failures surface to the user as a generic apology and clear any pending
// choice so the conversation never gets stuck; the underlying error is
// still returned for logging by the caller.
func (e *Engine) Handle(ctx context.Context, msg model.Message) error {
	// Loop prevention: never react to bot-originated messages,
	// including our own replies.
	if msg.FromBot() {
		appLog.Debug("ignoring bot message", "group_id", msg.GroupID)
		return nil
	}

	senderName := msg.Name
	if senderName == "" {
		senderName = "Someone"
	}

	appLog.Info("message received", "sender", senderName, "text", msg.Text)

	if err := e.process(ctx, msg, senderName); err != nil {
		appLog.Error("message handling failed", err, "user_id", msg.UserID, "group_id", msg.GroupID)
		e.reply(ctx, groupme.ApologyReply)
		if clearErr := e.pending.ClearPendingChoice(ctx, msg.UserID, msg.GroupID); clearErr != nil {
			appLog.Error("failed to clear pending choice after error", clearErr,
				"user_id", msg.UserID, "group_id", msg.GroupID)
		}
		return err
	}
	return nil
}

func (e *Engine) process(ctx context.Context, msg model.Message, senderName string) error {
	tag := intent.Classify(msg.Text)

	pc, err := e.pending.GetPendingChoice(ctx, msg.UserID, msg.GroupID, e.now())
	if err != nil {
		return err
	}

	// A day reply with an outstanding question resolves that question;
	// the turn is consumed even when no game matches the chosen day.
	if tag.IsChoice() && pc != nil {
		return e.resolveChoice(ctx, tag, *pc, msg, senderName)
	}

	active, err := e.events.ListActive(ctx)
	if err != nil {
		return err
	}
	upcoming := schedule.Upcoming(active, e.now())

	if len(upcoming) == 0 {
		e.reply(ctx, groupme.NoGamesReply)
		return nil
	}

	if len(upcoming) == 1 {
		e.reply(ctx, groupme.Respond(tag, upcoming[0], msg.Text, senderName))
		return nil
	}

	// Multiple candidates: a day mentioned anywhere in the text narrows
	// the choice without a round trip.
	for _, day := range intent.DayMentions(msg.Text) {
		if matching := schedule.ByDay(upcoming, day); len(matching) > 0 {
			e.reply(ctx, groupme.Respond(tag, matching[0], msg.Text, senderName))
			return nil
		}
	}

	return e.askWhichGame(ctx, tag, upcoming, msg)
}

// askWhichGame records a pending choice (overwriting any previous one for
// this user and group) and poses the clarifying question.
func (e *Engine) askWhichGame(ctx context.Context, tag model.Intent, candidates []model.Event, msg model.Message) error {
	ids := make([]int64, 0, len(candidates))
	for _, ev := range candidates {
		ids = append(ids, ev.ID)
	}

	pc := model.PendingChoice{
		UserID:       msg.UserID,
		GroupID:      msg.GroupID,
		Intent:       tag,
		CandidateIDs: ids,
		ExpiresAt:    e.now().Add(PendingChoiceTTL),
	}
	if err := e.pending.SetPendingChoice(ctx, pc); err != nil {
		return err
	}

	e.reply(ctx, groupme.ClarifyQuestion(candidates))
	return nil
}

// resolveChoice completes a previously posed clarifying question using the
// user's day reply and the choice's original intent.
func (e *Engine) resolveChoice(ctx context.Context, choice model.Intent, pc model.PendingChoice, msg model.Message, senderName string) error {
	// Reload candidates by id; events deleted (hard or soft) since the
	// question was posed are skipped silently.
	candidates := make([]model.Event, 0, len(pc.CandidateIDs))
	for _, id := range pc.CandidateIDs {
		ev, err := e.events.GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load candidate %d: %w", id, err)
		}
		if !ev.Active {
			continue
		}
		candidates = append(candidates, ev)
	}

	dayName := choice.ChoiceDay()
	matching := schedule.ByDay(candidates, dayName)

	if len(matching) == 0 {
		e.reply(ctx, groupme.NoDayGameReply(dayName))
		if err := e.pending.ClearPendingChoice(ctx, msg.UserID, msg.GroupID); err != nil {
			return err
		}
		return nil
	}

	// Earliest start wins, which also settles doubleheaders.
	selected := matching[0]

	if err := e.pending.ClearPendingChoice(ctx, msg.UserID, msg.GroupID); err != nil {
		return err
	}

	// Answer with the original stored intent, not the day reply.
	e.reply(ctx, groupme.Respond(pc.Intent, selected, msg.Text, senderName))
	return nil
}

// reply sends text to the group. Delivery failures are reported and never
// retried; they do not fail the handling of the current message.
func (e *Engine) reply(ctx context.Context, text string) {
	if err := e.notifier.Send(ctx, text); err != nil {
		appLog.Error("reply delivery failed", err)
	}
}
