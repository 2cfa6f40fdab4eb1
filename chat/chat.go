package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"carechat/escalation"
	"carechat/log"
	"carechat/timeline"
)

// Apology replaces the assistant reply when the chat request fails.
const Apology = "I'm sorry, I'm having trouble connecting right now. Please try again in a moment."

var (
	ErrBlank = errors.New("message is blank")
	ErrBusy  = errors.New("still waiting for the previous reply")
)

type Assistant interface {
	Chat(ctx context.Context, message, userID string) (string, error)
}

// Turn is the outcome of one Send.
type Turn struct {
	User     timeline.Message
	Reply    timeline.Message
	Failed   bool
	Err      error
	Declined bool
	Offer    *escalation.Offer
}

// Dispatcher sends user messages to the assistant, one at a time, and
// records both sides of the exchange in the timeline.
type Dispatcher struct {
	store     *timeline.Store
	assistant Assistant
	tracker   *escalation.Tracker

	mu       sync.Mutex
	awaiting bool
	onAwait  func(bool)
}

func New(store *timeline.Store, assistant Assistant, tracker *escalation.Tracker) *Dispatcher {
	return &Dispatcher{store: store, assistant: assistant, tracker: tracker}
}

// OnAwaitingChange registers fn to run when a reply starts or stops being
// awaited.
func (d *Dispatcher) OnAwaitingChange(fn func(bool)) {
	d.mu.Lock()
	d.onAwait = fn
	d.mu.Unlock()
}

func (d *Dispatcher) Awaiting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.awaiting
}

func (d *Dispatcher) setAwaiting(v bool) {
	d.mu.Lock()
	d.awaiting = v
	fn := d.onAwait
	d.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// Send appends text as a user message, asks the assistant for a reply and
// appends it. Any failure appends Apology instead; the returned error is
// only non-nil when nothing was sent.
func (d *Dispatcher) Send(ctx context.Context, text, userID string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrBlank
	}
	d.mu.Lock()
	if d.awaiting {
		d.mu.Unlock()
		return nil, ErrBusy
	}
	d.awaiting = true
	fn := d.onAwait
	d.mu.Unlock()
	if fn != nil {
		fn(true)
	}
	defer d.setAwaiting(false)

	turn := &Turn{}
	if latest, ok := d.store.Last(); ok && !latest.FromUser && d.tracker != nil {
		turn.Declined = d.tracker.Decline(text, latest.ID)
	}

	turn.User = timeline.User(text)
	d.store.Append(turn.User)

	reply, err := d.assistant.Chat(ctx, text, userID)
	if err != nil {
		log.Errorf("chat: %v", err)
		turn.Failed = true
		turn.Err = err
		turn.Reply = timeline.Assistant(Apology)
		d.store.Append(turn.Reply)
		return turn, nil
	}

	turn.Reply = timeline.Assistant(reply)
	d.store.Append(turn.Reply)

	if symptom, fired := escalation.Detect(reply, text); fired && d.tracker != nil {
		offer := escalation.Offer{MessageID: turn.Reply.ID, Symptom: symptom}
		if d.tracker.Arm(offer) {
			turn.Offer = &offer
			log.Info("escalation offered for symptom " + quoteSymptom(symptom))
		}
	}
	return turn, nil
}

func quoteSymptom(s string) string {
	if s == "" {
		return "(none)"
	}
	return `"` + s + `"`
}
