package hotkey

import (
	"testing"
	"time"
)

func next(t *testing.T, hy *Hybrid) Event {
	t.Helper()
	select {
	case ev, ok := <-hy.Events():
		if !ok {
			t.Fatal("events closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func quiet(t *testing.T, hy *Hybrid, d time.Duration) {
	t.Helper()
	select {
	case ev := <-hy.Events():
		t.Fatalf("unexpected %v event", ev.Action)
	case <-time.After(d):
	}
}

func TestHybridHold(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	hy := NewHybrid(fk, threshold)
	defer hy.Close()

	fk.SimKeydown()
	if ev := next(t, hy); ev.Action != Start {
		t.Fatalf("got %v, want start", ev.Action)
	}
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	if ev := next(t, hy); ev != (Event{Action: Stop, Mode: ModeHold}) {
		t.Errorf("got %+v, want hold stop", ev)
	}
}

func TestHybridTap(t *testing.T) {
	fk := NewFake()
	hy := NewHybrid(fk, 200*time.Millisecond)
	defer hy.Close()

	fk.SimTap()
	if ev := next(t, hy); ev.Action != Start {
		t.Fatalf("got %v, want start", ev.Action)
	}
	quiet(t, hy, 250*time.Millisecond)

	fk.SimKeydown()
	quiet(t, hy, 20*time.Millisecond)
	fk.SimKeyup()
	if ev := next(t, hy); ev != (Event{Action: Stop, Mode: ModeToggle}) {
		t.Errorf("got %+v, want toggle stop", ev)
	}
}

func TestHybridRepeats(t *testing.T) {
	fk := NewFake()
	hy := NewHybrid(fk, time.Hour)
	defer hy.Close()

	for i := 0; i < 3; i++ {
		fk.SimTap()
		if ev := next(t, hy); ev.Action != Start {
			t.Fatalf("round %d: got %v, want start", i, ev.Action)
		}
		fk.SimTap()
		if ev := next(t, hy); ev.Action != Stop {
			t.Fatalf("round %d: got %v, want stop", i, ev.Action)
		}
	}
}

func TestHybridClose(t *testing.T) {
	hy := NewHybrid(NewFake(), 0)
	hy.Close()
	hy.Close()
	select {
	case _, ok := <-hy.Events():
		if ok {
			t.Error("event after close")
		}
	case <-time.After(time.Second):
		t.Fatal("events not closed")
	}
}
