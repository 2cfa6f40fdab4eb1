package hotkey

import (
	"sync"
	"time"
)

// DefaultLongPress separates a tap from a hold.
const DefaultLongPress = 350 * time.Millisecond

// Mode is how a recording was driven from the key.
type Mode string

const (
	// ModeHold records while the key is held down.
	ModeHold Mode = "hold"
	// ModeToggle records from one tap until the next press is released.
	ModeToggle Mode = "toggle"
)

type Action int

const (
	Start Action = iota
	Stop
)

func (a Action) String() string {
	if a == Start {
		return "start"
	}
	return "stop"
}

// Event asks for recording to start or stop. Mode is set on Stop.
type Event struct {
	Action Action
	Mode   Mode
}

// Hybrid reads one Hotkey and emits Start on every press from idle. A
// press held past the long-press threshold stops on release; a shorter
// tap keeps recording until the next press is released.
type Hybrid struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	h := &Hybrid{
		events: make(chan Event, 1),
		done:   make(chan struct{}),
	}
	go h.run(hk, longPress)
	return h
}

// Events is closed after Close.
func (h *Hybrid) Events() <-chan Event { return h.events }

func (h *Hybrid) Close() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hybrid) wait(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hybrid) emit(ev Event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	defer close(h.events)
	for {
		if !h.wait(hk.Keydown()) || !h.emit(Event{Action: Start}) {
			return
		}
		timer := time.NewTimer(longPress)
		select {
		case <-h.done:
			timer.Stop()
			return
		case <-timer.C:
			if !h.wait(hk.Keyup()) || !h.emit(Event{Action: Stop, Mode: ModeHold}) {
				return
			}
		case <-hk.Keyup():
			timer.Stop()
			if !h.wait(hk.Keydown()) || !h.wait(hk.Keyup()) {
				return
			}
			if !h.emit(Event{Action: Stop, Mode: ModeToggle}) {
				return
			}
		}
	}
}
