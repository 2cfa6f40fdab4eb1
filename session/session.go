package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carechat/audio"
	"carechat/backend"
	"carechat/chat"
	"carechat/escalation"
	"carechat/log"
	"carechat/notify"
	"carechat/timeline"
	"carechat/transcriber"
)

type User struct {
	ID    string
	Name  string
	Email string
}

// UserStore is the authentication store the session reads the signed-in
// user from.
type UserStore interface {
	CurrentUser() (User, bool)
}

// StaticUser is a UserStore holding one fixed user. An empty ID means
// nobody is signed in.
type StaticUser User

func (u StaticUser) CurrentUser() (User, bool) {
	return User(u), u.ID != ""
}

// Observer receives every state change of a session. Callbacks may run on
// any goroutine.
type Observer interface {
	MessageAppended(m timeline.Message)
	AwaitingChanged(awaiting bool)
	RecordingChanged(state audio.State)
	VoiceChanged(ev audio.VoiceEvent)
	DraftChanged(d transcriber.Draft)
	OfferChanged(o *escalation.Offer)
	NotificationChanged(s notify.Snapshot)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) MessageAppended(timeline.Message)    {}
func (NopObserver) AwaitingChanged(bool)                {}
func (NopObserver) RecordingChanged(audio.State)        {}
func (NopObserver) VoiceChanged(audio.VoiceEvent)       {}
func (NopObserver) DraftChanged(transcriber.Draft)      {}
func (NopObserver) OfferChanged(*escalation.Offer)      {}
func (NopObserver) NotificationChanged(notify.Snapshot) {}

type Config struct {
	Users       UserStore
	Backend     *backend.Client
	Audio       audio.Context // nil when recording is unsupported
	Device      *audio.DeviceInfo
	Transcriber transcriber.Transcriber
	Doctor      string
	Observer    Observer
}

// Session is one patient's chat: the timeline plus the components that
// write to it.
type Session struct {
	users UserStore
	obs   Observer

	store      *timeline.Store
	tracker    *escalation.Tracker
	dispatcher *chat.Dispatcher
	recorder   *audio.Recorder
	bridge     *transcriber.Bridge
	workflow   *notify.Workflow
}

func Greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s! I'm your medical assistant. How can I help you today?", name)
}

// New wires a session and appends the greeting.
func New(cfg Config) *Session {
	obs := cfg.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	users := cfg.Users
	if users == nil {
		users = StaticUser{}
	}
	t := cfg.Transcriber
	if t == nil {
		t = transcriber.Unavailable{}
	}

	s := &Session{users: users, obs: obs}
	s.store = timeline.NewStore()
	s.tracker = escalation.NewTracker()
	s.dispatcher = chat.New(s.store, cfg.Backend, s.tracker)
	s.recorder = audio.NewRecorder(cfg.Audio, cfg.Device)
	s.bridge = transcriber.NewBridge(t, s.recorder, s.dispatcher)
	s.workflow = notify.New(s.store, s.tracker, cfg.Backend, cfg.Doctor)

	s.store.OnAppend(func(m timeline.Message) {
		log.TimelineEntry(m.FromUser, m.Text)
		obs.MessageAppended(m)
	})
	s.dispatcher.OnAwaitingChange(obs.AwaitingChanged)
	s.recorder.OnStateChange(obs.RecordingChanged)
	s.recorder.OnVoice(obs.VoiceChanged)
	s.bridge.OnChange(obs.DraftChanged)
	s.tracker.OnChange(obs.OfferChanged)
	s.workflow.OnChange(obs.NotificationChanged)

	u, _ := users.CurrentUser()
	s.store.Append(timeline.Assistant(Greeting(u.Name)))
	return s
}

func (s *Session) user() User {
	u, _ := s.users.CurrentUser()
	return u
}

func (s *Session) Messages() []timeline.Message { return s.store.Messages() }

func (s *Session) Awaiting() bool { return s.dispatcher.Awaiting() }

func (s *Session) RecordingState() audio.State { return s.recorder.State() }

func (s *Session) CanRecord() bool { return s.recorder.Supported() }

func (s *Session) Draft() transcriber.Draft { return s.bridge.Draft() }

func (s *Session) TranscriberName() string { return s.bridge.Name() }

func (s *Session) Notification() notify.Snapshot { return s.workflow.Snapshot() }

// Send dispatches typed text as the signed-in user.
func (s *Session) Send(ctx context.Context, text string) (*chat.Turn, error) {
	return s.dispatcher.Send(ctx, text, s.user().ID)
}

// StartRecording opens the microphone. A pending draft is discarded only
// once capture has actually started.
func (s *Session) StartRecording(ctx context.Context) error {
	if err := s.recorder.Start(ctx); err != nil {
		return err
	}
	s.bridge.Discard()
	return nil
}

// StopRecording ends capture and transcribes the clip. Empty clips are
// dropped without a transcription request.
func (s *Session) StopRecording(ctx context.Context) (transcriber.Draft, error) {
	clip, err := s.recorder.Stop()
	if err != nil {
		return s.bridge.Draft(), err
	}
	return s.bridge.Submit(ctx, clip), nil
}

// ToggleRecording starts capture when idle and stops it when recording.
func (s *Session) ToggleRecording(ctx context.Context) error {
	if s.recorder.State() == audio.Recording {
		_, err := s.StopRecording(ctx)
		return err
	}
	return s.StartRecording(ctx)
}

func (s *Session) ReRecord(ctx context.Context) error {
	err := s.bridge.ReRecord(ctx)
	if errors.Is(err, audio.ErrAlreadyRecording) {
		return nil
	}
	return err
}

// SubmitTranscript sends the ready transcript. It returns nil, nil when
// there is nothing to send.
func (s *Session) SubmitTranscript(ctx context.Context) (*chat.Turn, error) {
	return s.bridge.SubmitTranscript(ctx, s.user().ID)
}

// OfferVisible returns the outstanding offer while it is attached to the
// newest message and no notification dialog is open.
func (s *Session) OfferVisible() (escalation.Offer, bool) {
	o, ok := s.tracker.Current()
	if !ok || s.workflow.Snapshot().Open() {
		return escalation.Offer{}, false
	}
	last, ok := s.store.Last()
	if !ok || last.ID != o.MessageID {
		return escalation.Offer{}, false
	}
	return o, true
}

func (s *Session) AcceptOffer(ctx context.Context) error {
	if _, ok := s.OfferVisible(); !ok {
		return notify.ErrNoOffer
	}
	u := s.user()
	return s.workflow.Accept(ctx, notify.Patient{UserID: u.ID, Name: u.Name, Email: u.Email})
}

func (s *Session) EditDraft(subject, body string) error {
	return s.workflow.Edit(subject, body)
}

func (s *Session) SendEmail(ctx context.Context) error {
	return s.workflow.Send(ctx)
}

func (s *Session) CloseDialog() error {
	return s.workflow.Close()
}

// Close stops any recording in progress and logs the session end.
func (s *Session) Close() {
	if s.recorder.State() == audio.Recording {
		s.recorder.Stop()
	}
	log.SessionEnd(s.store.Len())
}
