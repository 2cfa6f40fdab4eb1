package hotkey

import "sync/atomic"

// Fake is a Hotkey driven by SimKeydown and SimKeyup.
type Fake struct {
	keydown    chan struct{}
	keyup      chan struct{}
	registered atomic.Bool
}

func NewFake() *Fake {
	return &Fake{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *Fake) Register() error          { f.registered.Store(true); return nil }
func (f *Fake) Unregister()              { f.registered.Store(false) }
func (f *Fake) Registered() bool         { return f.registered.Load() }
func (f *Fake) Keydown() <-chan struct{} { return f.keydown }
func (f *Fake) Keyup() <-chan struct{}   { return f.keyup }

func (f *Fake) SimKeydown() { f.keydown <- struct{}{} }
func (f *Fake) SimKeyup()   { f.keyup <- struct{}{} }

// SimTap presses and releases the key.
func (f *Fake) SimTap() {
	f.SimKeydown()
	f.SimKeyup()
}
