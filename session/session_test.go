package session

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"carechat/audio"
	"carechat/backend"
	"carechat/chat"
	"carechat/escalation"
	"carechat/notify"
	"carechat/timeline"
	"carechat/transcriber"
)

type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	appended []timeline.Message
	offers   int
	voice    []audio.VoiceEvent
}

func (o *recordingObserver) VoiceChanged(ev audio.VoiceEvent) {
	o.mu.Lock()
	o.voice = append(o.voice, ev)
	o.mu.Unlock()
}

func (o *recordingObserver) MessageAppended(m timeline.Message) {
	o.mu.Lock()
	o.appended = append(o.appended, m)
	o.mu.Unlock()
}

func (o *recordingObserver) OfferChanged(*escalation.Offer) {
	o.mu.Lock()
	o.offers++
	o.mu.Unlock()
}

var ada = StaticUser{ID: "7", Name: "Ada", Email: "ada@example.com"}

func speechPCM() []byte {
	pcm := make([]byte, 16000*2)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16((i*37)%4000))
	}
	return pcm
}

func newSession(t *testing.T, cfg Config) (*Session, *backend.FakeServer) {
	t.Helper()
	srv := backend.NewFakeServer()
	t.Cleanup(srv.Close)
	cfg.Backend = backend.New(srv.URL, 2*time.Second)
	if cfg.Users == nil {
		cfg.Users = ada
	}
	return New(cfg), srv
}

func TestGreeting(t *testing.T) {
	for _, tt := range []struct {
		users UserStore
		want  string
	}{
		{ada, "Hello Ada! I'm your medical assistant. How can I help you today?"},
		{StaticUser{}, "Hello there! I'm your medical assistant. How can I help you today?"},
	} {
		s, _ := newSession(t, Config{Users: tt.users})
		msgs := s.Messages()
		if len(msgs) != 1 || msgs[0].Text != tt.want || msgs[0].FromUser {
			t.Errorf("timeline = %+v, want greeting %q", msgs, tt.want)
		}
	}
}

func TestSendsGrowTimeline(t *testing.T) {
	obs := &recordingObserver{}
	s, srv := newSession(t, Config{Observer: obs})
	for i := range 3 {
		if _, err := s.Send(context.Background(), "hello"); err != nil {
			t.Fatalf("Send #%d: %v", i, err)
		}
	}
	if got := len(s.Messages()); got != 1+2*3 {
		t.Errorf("timeline length = %d, want 7", got)
	}
	if len(obs.appended) != 7 {
		t.Errorf("observer saw %d appends, want 7", len(obs.appended))
	}
	if got := srv.LastRequest("/api/chat")["user_id"]; got != "7" {
		t.Errorf("user_id = %v", got)
	}
}

func TestFailedSendKeepsUserMessage(t *testing.T) {
	s, srv := newSession(t, Config{})
	srv.Fail("/api/chat", http.StatusInternalServerError)

	turn, err := s.Send(context.Background(), "are you there?")
	if err != nil {
		t.Fatal(err)
	}
	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("timeline length = %d, want 3", len(msgs))
	}
	if msgs[1].Text != "are you there?" || msgs[2].Text != chat.Apology || !turn.Failed {
		t.Errorf("timeline = %+v", msgs)
	}
}

func TestHeadacheEscalation(t *testing.T) {
	obs := &recordingObserver{}
	s, srv := newSession(t, Config{Observer: obs})
	srv.QueueReplies("That sounds severe, should I notify your doctor?")
	srv.Fail("/api/get-profile", http.StatusServiceUnavailable)

	if _, err := s.Send(context.Background(), "I have a bad headache"); err != nil {
		t.Fatal(err)
	}
	offer, ok := s.OfferVisible()
	if !ok || offer.Symptom != "headache" {
		t.Fatalf("offer = %+v, %v; want headache", offer, ok)
	}

	if err := s.AcceptOffer(context.Background()); err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	n := s.Notification()
	if !n.Open() || n.Subject != "Patient Alert: headache" {
		t.Fatalf("notification = %+v", n)
	}
	if _, ok := s.OfferVisible(); ok {
		t.Error("offer still visible with the dialog open")
	}

	before := len(s.Messages())
	if err := s.SendEmail(context.Background()); err != nil {
		t.Fatalf("SendEmail: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != before+1 {
		t.Fatalf("appended %d messages, want 1", len(msgs)-before)
	}
	if !strings.HasPrefix(msgs[len(msgs)-1].Text, "✅ Email sent to your doctor!") {
		t.Errorf("confirmation = %q", msgs[len(msgs)-1].Text)
	}
	if s.Notification().Open() {
		t.Error("dialog still open")
	}
	if _, ok := s.OfferVisible(); ok {
		t.Error("offer not cleared")
	}
}

func TestDeclineOffer(t *testing.T) {
	s, srv := newSession(t, Config{})
	srv.QueueReplies("Severe fever can be dangerous. Shall I notify your doctor?", "Okay, let me know if anything changes.")

	if _, err := s.Send(context.Background(), "I have a fever"); err != nil {
		t.Fatal(err)
	}
	turn, err := s.Send(context.Background(), "no")
	if err != nil {
		t.Fatal(err)
	}
	if !turn.Declined {
		t.Error("decline not detected")
	}
	if _, ok := s.OfferVisible(); ok {
		t.Error("offer still visible")
	}
	if got := len(s.Messages()); got != 5 {
		t.Errorf("timeline length = %d, want 5", got)
	}
	if err := s.AcceptOffer(context.Background()); !errors.Is(err, notify.ErrNoOffer) {
		t.Errorf("AcceptOffer = %v, want ErrNoOffer", err)
	}
}

func TestNewerOfferReplaces(t *testing.T) {
	obs := &recordingObserver{}
	s, srv := newSession(t, Config{Observer: obs})
	srv.QueueReplies("Severe, notify your doctor.", "Also severe. Should I contact your doctor?")

	s.Send(context.Background(), "bad cough")
	s.Send(context.Background(), "and a rash")

	offer, ok := s.OfferVisible()
	if !ok || offer.Symptom != "rash" {
		t.Errorf("offer = %+v, want rash", offer)
	}
	if obs.offers != 2 {
		t.Errorf("offer changes = %d, want 2", obs.offers)
	}
}

func TestOfferHiddenOnceNotLatest(t *testing.T) {
	s, srv := newSession(t, Config{})
	srv.QueueReplies("This is severe; notify your doctor.", "Sure.")
	s.Send(context.Background(), "sharp pain")
	s.Send(context.Background(), "what should I eat?")
	if _, ok := s.OfferVisible(); ok {
		t.Error("offer visible after a newer message")
	}
}

func TestVoiceRoundTrip(t *testing.T) {
	s, srv := newSession(t, Config{
		Audio:       audio.NewFakeContextPCM(speechPCM(), false),
		Transcriber: transcriber.NewFake("my throat is sore", nil),
	})

	if err := s.ToggleRecording(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.RecordingState() != audio.Recording {
		t.Fatalf("state = %v", s.RecordingState())
	}
	if err := s.ToggleRecording(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if d := s.Draft(); d.Status != transcriber.Ready || d.Text != "my throat is sore" {
		t.Fatalf("draft = %+v", d)
	}
	if len(s.Messages()) != 1 {
		t.Error("transcription touched the timeline")
	}

	if _, err := s.SubmitTranscript(context.Background()); err != nil {
		t.Fatal(err)
	}
	msgs := s.Messages()
	if len(msgs) != 3 || msgs[1].Text != "my throat is sore" || !msgs[1].FromUser {
		t.Errorf("timeline = %+v", msgs)
	}
	if srv.Calls("/api/chat") != 1 {
		t.Errorf("chat calls = %d, want 1", srv.Calls("/api/chat"))
	}
}

func TestReRecordReturnsToRecording(t *testing.T) {
	s, _ := newSession(t, Config{
		Audio:       audio.NewFakeContextPCM(speechPCM(), false),
		Transcriber: transcriber.NewFake("hello", nil),
	})
	s.StartRecording(context.Background())
	s.StopRecording(context.Background())

	if err := s.ReRecord(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.RecordingState() != audio.Recording {
		t.Errorf("state = %v, want recording", s.RecordingState())
	}
	if s.Draft().Status != transcriber.Idle {
		t.Errorf("draft = %+v, want discarded", s.Draft())
	}
	if len(s.Messages()) != 1 {
		t.Error("re-record appended a message")
	}
}

func TestBlankTranscriptIsNoop(t *testing.T) {
	s, srv := newSession(t, Config{
		Audio:       audio.NewFakeContextPCM(speechPCM(), false),
		Transcriber: transcriber.NewFake("   ", nil),
	})
	s.StartRecording(context.Background())
	s.StopRecording(context.Background())

	turn, err := s.SubmitTranscript(context.Background())
	if turn != nil || err != nil {
		t.Errorf("SubmitTranscript = %v, %v", turn, err)
	}
	if len(s.Messages()) != 1 || srv.Calls("/api/chat") != 0 {
		t.Error("blank transcript reached the dispatcher")
	}
}

func TestEmptyRecordingSkipsTranscription(t *testing.T) {
	fake := transcriber.NewFake("hello", nil)
	s, _ := newSession(t, Config{
		Audio:       audio.NewFakeContextPCM(nil, false),
		Transcriber: fake,
	})
	s.StartRecording(context.Background())
	d, err := s.StopRecording(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != transcriber.Idle || fake.Calls() != 0 {
		t.Errorf("draft = %+v, calls = %d", d, fake.Calls())
	}
}

func TestRecordingUnavailable(t *testing.T) {
	for _, tt := range []struct {
		name string
		ctx  audio.Context
		want error
	}{
		{"unsupported", nil, audio.ErrUnsupported},
		{"denied", audio.DeniedContext{}, audio.ErrPermissionDenied},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSession(t, Config{Audio: tt.ctx})
			if err := s.ToggleRecording(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("ToggleRecording = %v, want %v", err, tt.want)
			}
			if s.RecordingState() != audio.Idle {
				t.Errorf("state = %v, want idle", s.RecordingState())
			}
		})
	}
}

func TestDefaultTranscriberIsUnavailable(t *testing.T) {
	s, _ := newSession(t, Config{Audio: audio.NewFakeContextPCM(speechPCM(), false)})
	s.StartRecording(context.Background())
	d, _ := s.StopRecording(context.Background())
	if d.Status != transcriber.Error || d.Text != transcriber.UnavailableMessage {
		t.Errorf("draft = %+v", d)
	}
}

func TestSilentRecordingWarns(t *testing.T) {
	obs := &recordingObserver{}
	s, _ := newSession(t, Config{
		Audio:       audio.NewFakeContextPCM(make([]byte, 9*16000*2), false),
		Transcriber: transcriber.NewFake("", nil),
		Observer:    obs,
	})
	s.StartRecording(context.Background())
	s.StopRecording(context.Background())
	if len(obs.voice) != 1 || obs.voice[0] != audio.SilenceWarn {
		t.Errorf("voice events = %v, want [silence]", obs.voice)
	}
}

// revokedContext grants the microphone once and refuses it afterwards.
type revokedContext struct {
	*audio.FakeContext
	mu      sync.Mutex
	granted bool
}

func (c *revokedContext) NewCapture(d *audio.DeviceInfo, cfg audio.CaptureConfig) (audio.CaptureDevice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.granted {
		return nil, errors.New("access revoked")
	}
	c.granted = true
	return c.FakeContext.NewCapture(d, cfg)
}

func TestRefusedMicrophoneKeepsDraft(t *testing.T) {
	s, _ := newSession(t, Config{
		Audio:       &revokedContext{FakeContext: audio.NewFakeContextPCM(speechPCM(), false)},
		Transcriber: transcriber.NewFake("my ankle is swollen", nil),
	})
	ctx := context.Background()
	if err := s.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StopRecording(ctx); err != nil {
		t.Fatal(err)
	}

	err := s.StartRecording(ctx)
	if !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("StartRecording = %v, want ErrPermissionDenied", err)
	}
	if s.RecordingState() != audio.Idle {
		t.Errorf("state = %v, want idle", s.RecordingState())
	}
	if d := s.Draft(); d.Status != transcriber.Ready || d.Text != "my ankle is swollen" {
		t.Errorf("draft = %+v, want ready transcript kept", d)
	}
}
