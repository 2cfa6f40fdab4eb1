// Package hotkey turns a global key combination into recording start and
// stop requests, so a patient can dictate without focusing the terminal.
package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

// Hotkey delivers presses and releases of one key combination.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is the combination New registers.
const Combo = "Ctrl+Shift+Space"

type systemHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
}

// New returns the system-wide Ctrl+Shift+Space hotkey. Nothing is grabbed
// until Register.
func New() Hotkey {
	return &systemHotkey{
		hk:      hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *systemHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("registering %s: %w", Combo, err)
	}
	h.stop = make(chan struct{})
	go forward(h.hk.Keydown(), h.keydown, h.stop)
	go forward(h.hk.Keyup(), h.keyup, h.stop)
	return nil
}

func forward[T any](from <-chan T, to chan<- struct{}, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-from:
		}
		select {
		case to <- struct{}{}:
		case <-stop:
			return
		}
	}
}

func (h *systemHotkey) Unregister() {
	if h.stop == nil {
		return
	}
	close(h.stop)
	h.stop = nil
	h.hk.Unregister()
}

func (h *systemHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *systemHotkey) Keyup() <-chan struct{}   { return h.keyup }
