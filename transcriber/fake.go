package transcriber

import (
	"context"
	"fmt"
	"sync"

	"carechat/audio"
)

type FakeTranscriber struct {
	text string
	err  error

	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string { return "fake" }

// Hold makes Transcribe wait until the returned func is called.
func (f *FakeTranscriber) Hold() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gate = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, clip audio.Clip) (Result, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Result{}, fmt.Errorf("fake transcriber error: %w", f.err)
	}
	return Result{Text: f.text, Audio: clip.Duration}, nil
}
