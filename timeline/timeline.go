package timeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID        string
	Text      string
	FromUser  bool
	Timestamp time.Time
}

// NewID returns a time-ordered identifier, unique within a process.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func User(text string) Message {
	return Message{ID: NewID(), Text: text, FromUser: true, Timestamp: time.Now()}
}

func Assistant(text string) Message {
	return Message{ID: NewID(), Text: text, Timestamp: time.Now()}
}

// Store is the append-only message log of one chat session.
type Store struct {
	mu       sync.Mutex
	messages []Message
	onAppend []func(Message)
}

func NewStore() *Store {
	return &Store{}
}

// OnAppend registers fn to run after every append, outside the store lock.
func (s *Store) OnAppend(fn func(Message)) {
	s.mu.Lock()
	s.onAppend = append(s.onAppend, fn)
	s.mu.Unlock()
}

func (s *Store) Append(m Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	hooks := s.onAppend
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(m)
	}
}

func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Last returns the most recent message, or false when the store is empty.
func (s *Store) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}
