package escalation

import (
	"strings"
	"sync"
)

var symptomWords = []string{
	"pain", "headache", "fever", "cough", "ache",
	"hurt", "sore", "dizzy", "nausea", "rash",
}

// Detect reports whether reply asks to escalate to a doctor, and the first
// known symptom mentioned in the user's utterance that prompted it.
func Detect(reply, utterance string) (symptom string, fired bool) {
	r := strings.ToLower(reply)
	if !strings.Contains(r, "severe") {
		return "", false
	}
	if !strings.Contains(r, "notify") && !strings.Contains(r, "doctor") {
		return "", false
	}
	u := strings.ToLower(utterance)
	for _, w := range symptomWords {
		if strings.Contains(u, w) {
			return w, true
		}
	}
	return "", true
}

// IsDecline matches a bare "no" answer.
func IsDecline(utterance string) bool {
	return strings.EqualFold(strings.TrimSpace(utterance), "no")
}

type Offer struct {
	MessageID string
	Symptom   string
}

// Tracker holds the single outstanding offer of a session.
type Tracker struct {
	mu       sync.Mutex
	offer    *Offer
	held     bool
	onChange func(*Offer)
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// OnChange registers fn to run whenever the current offer changes. It is
// called with nil when the offer is cleared.
func (t *Tracker) OnChange(fn func(*Offer)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tracker) Current() (Offer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.offer == nil {
		return Offer{}, false
	}
	return *t.offer, true
}

// Arm replaces any outstanding offer. It returns false while held.
func (t *Tracker) Arm(o Offer) bool {
	t.mu.Lock()
	if t.held {
		t.mu.Unlock()
		return false
	}
	t.offer = &o
	fn := t.onChange
	t.mu.Unlock()
	notify(fn, &o)
	return true
}

// Take consumes the outstanding offer.
func (t *Tracker) Take() (Offer, bool) {
	t.mu.Lock()
	if t.offer == nil {
		t.mu.Unlock()
		return Offer{}, false
	}
	o := *t.offer
	t.offer = nil
	fn := t.onChange
	t.mu.Unlock()
	notify(fn, nil)
	return o, true
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	had := t.offer != nil
	t.offer = nil
	fn := t.onChange
	t.mu.Unlock()
	if had {
		notify(fn, nil)
	}
}

// Decline clears the offer when utterance is a bare "no" and the offer is
// tied to latestID, the newest message in the timeline.
func (t *Tracker) Decline(utterance, latestID string) bool {
	if !IsDecline(utterance) {
		return false
	}
	t.mu.Lock()
	if t.offer == nil || t.offer.MessageID != latestID {
		t.mu.Unlock()
		return false
	}
	t.offer = nil
	fn := t.onChange
	t.mu.Unlock()
	notify(fn, nil)
	return true
}

// Hold suppresses arming until Release. A notification in progress holds
// the tracker so a second offer cannot be raised next to it.
func (t *Tracker) Hold() {
	t.mu.Lock()
	t.held = true
	t.mu.Unlock()
}

func (t *Tracker) Release() {
	t.mu.Lock()
	t.held = false
	t.mu.Unlock()
}

func (t *Tracker) Held() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.held
}

func notify(fn func(*Offer), o *Offer) {
	if fn != nil {
		fn(o)
	}
}
