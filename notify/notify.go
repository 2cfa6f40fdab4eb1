package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"carechat/backend"
	"carechat/escalation"
	"carechat/log"
	"carechat/timeline"
)

const DefaultDoctor = "Dr. Patel"

var (
	ErrNoOffer    = errors.New("no escalation offer to accept")
	ErrBusy       = errors.New("a doctor notification is already in progress")
	ErrBlankDraft = errors.New("please fill in both subject and body")
	ErrNotOpen    = errors.New("no email draft is open")
)

type State int

const (
	NotOffered State = iota
	Offered
	ProfileFetching
	DraftOpen
	Sending
	Sent
)

func (s State) String() string {
	switch s {
	case NotOffered:
		return "not_offered"
	case Offered:
		return "offered"
	case ProfileFetching:
		return "profile_fetching"
	case DraftOpen:
		return "draft_open"
	case Sending:
		return "sending"
	case Sent:
		return "sent"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Patient is the signed-in user the notification is sent for.
type Patient struct {
	UserID string
	Name   string
	Email  string
}

type Backend interface {
	GetProfile(ctx context.Context, patientID string) (backend.Profile, error)
	GenerateDraft(ctx context.Context, req backend.DraftRequest) (backend.Draft, error)
	SendEmail(ctx context.Context, subject, body, patientEmail string) error
}

// Snapshot is a copy of the workflow's visible state.
type Snapshot struct {
	State       State
	Offer       escalation.Offer
	Profile     backend.Profile
	PatientName string
	PatientAge  int
	Subject     string
	Body        string
	Generating  bool
	LastError   string
}

// Open reports whether the email dialog is showing.
func (s Snapshot) Open() bool {
	return s.State == ProfileFetching || s.State == DraftOpen || s.State == Sending
}

// Editable reports whether the draft fields accept edits.
func (s Snapshot) Editable() bool {
	return s.State == DraftOpen && !s.Generating
}

// Workflow walks one escalation offer through profile fetch, draft
// generation, editing and sending.
type Workflow struct {
	store   *timeline.Store
	tracker *escalation.Tracker
	be      Backend
	doctor  string

	mu       sync.Mutex
	snap     Snapshot
	patient  Patient
	onChange func(Snapshot)
}

func New(store *timeline.Store, tracker *escalation.Tracker, be Backend, doctor string) *Workflow {
	if doctor == "" {
		doctor = DefaultDoctor
	}
	return &Workflow{store: store, tracker: tracker, be: be, doctor: doctor}
}

func (w *Workflow) OnChange(fn func(Snapshot)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	s := w.snap
	w.mu.Unlock()
	if s.State == NotOffered || s.State == Sent {
		if o, ok := w.tracker.Current(); ok {
			s.State = Offered
			s.Offer = o
		}
	}
	return s
}

func (w *Workflow) update(fn func(*Snapshot)) Snapshot {
	w.mu.Lock()
	fn(&w.snap)
	s := w.snap
	cb := w.onChange
	w.mu.Unlock()
	if cb != nil {
		cb(s)
	}
	return s
}

// Accept consumes the current offer and opens a draft for it. Profile and
// draft failures fall back to defaults; Accept only fails when there is
// nothing to accept or another notification is underway.
func (w *Workflow) Accept(ctx context.Context, p Patient) error {
	w.mu.Lock()
	if w.snap.Open() {
		w.mu.Unlock()
		return ErrBusy
	}
	w.mu.Unlock()

	offer, ok := w.tracker.Take()
	if !ok {
		return ErrNoOffer
	}
	w.tracker.Hold()
	w.mu.Lock()
	w.patient = p
	w.mu.Unlock()
	w.update(func(s *Snapshot) {
		*s = Snapshot{State: ProfileFetching, Offer: offer}
	})

	profile, err := w.be.GetProfile(ctx, backend.PatientID(p.UserID))
	if err != nil {
		log.Warnf("profile fetch failed, continuing with defaults: %v", err)
		profile = backend.Profile{}
	}
	name := firstNonEmpty(profile.FullName, p.Name, "Patient")
	age := int(profile.Age)

	w.update(func(s *Snapshot) {
		s.State = DraftOpen
		s.Profile = profile
		s.PatientName = name
		s.PatientAge = age
		s.Generating = true
	})

	draft := w.generate(ctx, name, age, offer.Symptom, profile)
	w.update(func(s *Snapshot) {
		s.Subject = draft.Subject
		s.Body = draft.Body
		s.Generating = false
	})
	return nil
}

func (w *Workflow) generate(ctx context.Context, name string, age int, symptom string, profile backend.Profile) backend.Draft {
	if name == "" || age <= 0 || symptom == "" {
		log.Warnf("draft generation skipped: name=%q age=%d symptom=%q", name, age, symptom)
		return w.incompleteDraft(name, symptom)
	}
	d, err := w.be.GenerateDraft(ctx, backend.DraftRequest{
		PatientName:       name,
		PatientAge:        age,
		Symptom:           symptom,
		AdditionalContext: "Patient reported: " + symptom,
		PatientProfile:    profile.Raw,
	})
	if err != nil {
		log.Warnf("draft generation failed: %v", err)
		return w.fallbackDraft(name, symptom)
	}
	return d
}

func (w *Workflow) fallbackDraft(name, symptom string) backend.Draft {
	return backend.Draft{
		Subject: "Patient Alert: " + symptom,
		Body: fmt.Sprintf("Dear %s,\n\nPatient %s reported the following symptom: %s\n\nPlease advise.\n\nBest regards,\nMedical Assistant",
			w.doctor, name, symptom),
	}
}

func (w *Workflow) incompleteDraft(name, symptom string) backend.Draft {
	return backend.Draft{
		Subject: "Patient Alert: " + firstNonEmpty(symptom, "Symptom"),
		Body: fmt.Sprintf("Dear %s,\n\nPatient %s reported: %s\n\nPlease advise.\n\nBest regards,\nMedical Assistant",
			w.doctor, firstNonEmpty(name, "Unknown"), firstNonEmpty(symptom, "symptom")),
	}
}

// Edit replaces the draft fields. It is ignored while the draft is
// still being generated or sent.
func (w *Workflow) Edit(subject, body string) error {
	w.mu.Lock()
	editable := w.snap.Editable()
	w.mu.Unlock()
	if !editable {
		return ErrNotOpen
	}
	w.update(func(s *Snapshot) {
		s.Subject = subject
		s.Body = body
	})
	return nil
}

// Send emails the draft to the doctor. On failure the draft stays open
// with LastError set so the user can retry.
func (w *Workflow) Send(ctx context.Context) error {
	w.mu.Lock()
	if !w.snap.Editable() {
		w.mu.Unlock()
		return ErrNotOpen
	}
	subject, body := w.snap.Subject, w.snap.Body
	symptom := w.snap.Offer.Symptom
	email := w.patient.Email
	w.mu.Unlock()

	if strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		w.update(func(s *Snapshot) { s.LastError = ErrBlankDraft.Error() })
		return ErrBlankDraft
	}

	w.update(func(s *Snapshot) {
		s.State = Sending
		s.LastError = ""
	})

	if err := w.be.SendEmail(ctx, subject, body, email); err != nil {
		log.Errorf("send email: %v", err)
		w.update(func(s *Snapshot) {
			s.State = DraftOpen
			s.LastError = "Failed to send email: " + err.Error()
		})
		return err
	}

	w.store.Append(timeline.Assistant(Confirmation(symptom)))
	w.tracker.Clear()
	w.tracker.Release()
	w.update(func(s *Snapshot) {
		*s = Snapshot{State: Sent, Offer: s.Offer}
	})
	log.Info("doctor notified")
	return nil
}

// Close dismisses the dialog and discards the draft.
func (w *Workflow) Close() error {
	w.mu.Lock()
	s := w.snap
	w.mu.Unlock()
	if s.State == ProfileFetching || s.State == Sending || s.Generating {
		return ErrBusy
	}
	if !s.Open() {
		return nil
	}
	w.tracker.Release()
	w.update(func(s *Snapshot) { *s = Snapshot{} })
	return nil
}

func Confirmation(symptom string) string {
	return fmt.Sprintf("✅ Email sent to your doctor!\n\nI've notified your doctor about your symptom (%s). They should get back to you soon.\n\nMeanwhile, I'm here to help with any other questions you might have.", symptom)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
