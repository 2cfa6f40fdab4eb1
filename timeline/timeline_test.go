package timeline

import (
	"sync"
	"testing"
)

func TestAppendKeepsOrder(t *testing.T) {
	s := NewStore()
	texts := []string{"hello", "I have a headache", "that sounds painful"}
	for i, text := range texts {
		if i%2 == 0 {
			s.Append(Assistant(text))
		} else {
			s.Append(User(text))
		}
	}

	got := s.Messages()
	if len(got) != len(texts) {
		t.Fatalf("len = %d, want %d", len(got), len(texts))
	}
	for i, m := range got {
		if m.Text != texts[i] {
			t.Errorf("message %d = %q, want %q", i, m.Text, texts[i])
		}
	}
	if !got[1].FromUser || got[0].FromUser {
		t.Error("FromUser not preserved")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append(User("one"))

	got := s.Messages()
	got[0].Text = "mutated"

	if s.Messages()[0].Text != "one" {
		t.Error("store contents changed through returned slice")
	}
}

func TestLast(t *testing.T) {
	s := NewStore()
	if _, ok := s.Last(); ok {
		t.Fatal("Last on empty store should report false")
	}
	s.Append(User("a"))
	m := Assistant("b")
	s.Append(m)

	last, ok := s.Last()
	if !ok || last.ID != m.ID {
		t.Errorf("Last = %+v, want %+v", last, m)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestConcurrentAppend(t *testing.T) {
	s := NewStore()
	var hookCount int
	var hookMu sync.Mutex
	s.OnAppend(func(Message) {
		hookMu.Lock()
		hookCount++
		hookMu.Unlock()
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(User("x"))
		}()
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("Len = %d, want 50", s.Len())
	}
	if hookCount != 50 {
		t.Errorf("hook ran %d times, want 50", hookCount)
	}
}
