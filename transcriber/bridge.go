package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"carechat/audio"
	"carechat/chat"
	"carechat/log"
)

const (
	UnavailableMessage = "Speech-to-text is temporarily unavailable. Please type your message instead."
	FailedMessage      = "Error transcribing audio. Please try again."
)

type Status int

const (
	Idle Status = iota
	Transcribing
	Ready
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Transcribing:
		return "transcribing"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type Draft struct {
	Text   string
	Status Status
}

// Capturer restarts voice capture for a re-record.
type Capturer interface {
	Start(ctx context.Context) error
}

type Dispatcher interface {
	Send(ctx context.Context, text, userID string) (*chat.Turn, error)
}

// Bridge turns finished recordings into an editable transcript draft and
// hands accepted drafts to the dispatcher.
type Bridge struct {
	t          Transcriber
	capturer   Capturer
	dispatcher Dispatcher

	mu       sync.Mutex
	draft    Draft
	seq      uint64
	onChange func(Draft)
}

func NewBridge(t Transcriber, capturer Capturer, dispatcher Dispatcher) *Bridge {
	return &Bridge{t: t, capturer: capturer, dispatcher: dispatcher}
}

func (b *Bridge) Name() string { return b.t.Name() }

func (b *Bridge) OnChange(fn func(Draft)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

func (b *Bridge) Draft() Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draft
}

// set replaces the draft unless a newer one has superseded seq.
func (b *Bridge) set(seq uint64, d Draft) bool {
	b.mu.Lock()
	if seq != b.seq {
		b.mu.Unlock()
		return false
	}
	b.draft = d
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(d)
	}
	return true
}

// reset drops the current draft and invalidates any transcription still
// in flight.
func (b *Bridge) reset() uint64 {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()
	b.set(seq, Draft{})
	return seq
}

// Submit transcribes clip into the draft. Empty clips are dropped without
// touching the draft.
func (b *Bridge) Submit(ctx context.Context, clip audio.Clip) Draft {
	if clip.Empty() {
		log.Info("empty recording discarded")
		return b.Draft()
	}
	seq := b.reset()
	b.set(seq, Draft{Status: Transcribing})

	res, err := b.t.Transcribe(ctx, clip)
	var d Draft
	switch {
	case errors.Is(err, ErrUnavailable):
		d = Draft{Text: UnavailableMessage, Status: Error}
	case err != nil:
		log.Warnf("transcription failed: %v", err)
		d = Draft{Text: FailedMessage, Status: Error}
	default:
		d = Draft{Text: res.Text, Status: Ready}
	}
	if !b.set(seq, d) {
		return b.Draft()
	}
	return d
}

// ReRecord discards the draft and starts capturing again.
func (b *Bridge) ReRecord(ctx context.Context) error {
	b.reset()
	return b.capturer.Start(ctx)
}

// Discard clears the draft without recording.
func (b *Bridge) Discard() {
	b.reset()
}

// SubmitTranscript sends a ready, non-blank draft as a user message. Any
// other draft is left alone and nil, nil is returned. A draft the
// dispatcher refuses outright comes back so it can be sent later.
func (b *Bridge) SubmitTranscript(ctx context.Context, userID string) (*chat.Turn, error) {
	b.mu.Lock()
	kept := b.draft
	text := strings.TrimSpace(kept.Text)
	if kept.Status != Ready || text == "" {
		b.mu.Unlock()
		return nil, nil
	}
	b.seq++
	seq := b.seq
	b.draft = Draft{}
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(Draft{})
	}

	turn, err := b.dispatcher.Send(ctx, text, userID)
	if errors.Is(err, chat.ErrBusy) || errors.Is(err, chat.ErrBlank) {
		b.set(seq, kept)
	}
	return turn, err
}
