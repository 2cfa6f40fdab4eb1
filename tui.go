package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"carechat/audio"
	"carechat/beep"
	"carechat/chat"
	"carechat/clipboard"
	"carechat/escalation"
	"carechat/log"
	"carechat/notify"
	"carechat/session"
	"carechat/timeline"
	"carechat/transcriber"
)

// Session events forwarded into the Bubble Tea loop.
type messageAppendedMsg struct{ m timeline.Message }
type awaitingMsg struct{ on bool }
type recordingMsg struct{ state audio.State }
type voiceMsg struct{ ev audio.VoiceEvent }
type draftMsg struct{ d transcriber.Draft }
type offerMsg struct{ offer *escalation.Offer }
type notifyMsg struct{ s notify.Snapshot }

type opErrMsg struct {
	op  string
	err error
	// text is typed input a refused send hands back to the input box.
	text string
}
type copiedMsg struct{ err error }
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiObserver relays session events to the running program.
type tuiObserver struct{}

func (tuiObserver) MessageAppended(m timeline.Message)    { tuiSend(messageAppendedMsg{m}) }
func (tuiObserver) AwaitingChanged(on bool)               { tuiSend(awaitingMsg{on}) }
func (tuiObserver) RecordingChanged(s audio.State)        { tuiSend(recordingMsg{s}) }
func (tuiObserver) VoiceChanged(ev audio.VoiceEvent)      { tuiSend(voiceMsg{ev}) }
func (tuiObserver) DraftChanged(d transcriber.Draft)      { tuiSend(draftMsg{d}) }
func (tuiObserver) OfferChanged(o *escalation.Offer)      { tuiSend(offerMsg{o}) }
func (tuiObserver) NotificationChanged(s notify.Snapshot) { tuiSend(notifyMsg{s}) }

type focusArea int

const (
	focusChat focusArea = iota
	focusSubject
	focusBody
)

type tuiModel struct {
	sess       *session.Session
	userLine   string
	deviceLine string

	width, height int
	vp            viewport.Model
	input         textinput.Model
	subject       textinput.Model
	body          textarea.Model
	spinner       spinner.Model
	focus         focusArea

	messages []timeline.Message
	awaiting bool
	recState audio.State
	recStart time.Time
	recFor   time.Duration
	silent   bool
	draft    transcriber.Draft
	notif    notify.Snapshot
	status   string
	alert    string
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	userLabel      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	userText       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	assistantText  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	offerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1)
	recStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	transcriptBox  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	dialogBox      = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("214")).Padding(0, 1)
	alertBox       = lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(lipgloss.Color("196")).Padding(0, 1)
)

func newTUIModel(sess *session.Session, user session.User, device *audio.DeviceInfo) tuiModel {
	in := textinput.New()
	in.Placeholder = "Type your message..."
	in.Prompt = "› "
	in.CharLimit = 4000
	in.Focus()

	subj := textinput.New()
	subj.Placeholder = "Email subject"
	subj.Prompt = ""
	subj.CharLimit = 300

	body := textarea.New()
	body.Placeholder = "Email body"
	body.ShowLineNumbers = false
	body.CharLimit = 0
	body.SetHeight(8)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	userLine := "not signed in"
	if user.ID != "" {
		userLine = fmt.Sprintf("signed in as %s", firstNonBlank(user.Name, user.Email, user.ID))
	}

	m := tuiModel{
		sess:       sess,
		userLine:   userLine,
		deviceLine: deviceLineText(sess.CanRecord(), device),
		vp:         viewport.New(80, 20),
		input:      in,
		subject:    subj,
		body:       body,
		spinner:    sp,
		messages:   sess.Messages(),
		recState:   sess.RecordingState(),
		draft:      sess.Draft(),
		notif:      sess.Notification(),
	}
	m.refreshTimeline()
	return m
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func deviceLineText(canRecord bool, dev *audio.DeviceInfo) string {
	if !canRecord {
		return "mic: unavailable"
	}
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func recordTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// do runs a session operation off the event loop. Failures come back as
// opErrMsg; state changes arrive through the observer.
func (m tuiModel) do(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(context.Background()); err != nil {
			return opErrMsg{op: op, err: err}
		}
		return nil
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.subject.Width = max(msg.Width-8, 10)
		m.body.SetWidth(max(msg.Width-6, 10))
		m.refreshTimeline()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.alert != "" {
			m.alert = ""
			return m, nil
		}
		if m.notif.Open() {
			return m.updateDialog(msg)
		}
		cmd, handled := m.handleChatKey(msg)
		if handled {
			return m.relayout(), cmd
		}
		var c tea.Cmd
		m.input, c = m.input.Update(msg)
		cmds = append(cmds, c)

	case spinner.TickMsg:
		var c tea.Cmd
		m.spinner, c = m.spinner.Update(msg)
		if m.awaiting || m.draft.Status == transcriber.Transcribing || m.notif.Generating || m.notif.State == notify.Sending {
			m.refreshTimeline()
		}
		cmds = append(cmds, c)

	case tickMsg:
		if m.recState == audio.Recording {
			m.recFor = time.Since(m.recStart)
			cmds = append(cmds, recordTick())
		}

	case messageAppendedMsg:
		m.messages = append(m.messages, msg.m)
		m.refreshTimeline()

	case awaitingMsg:
		m.awaiting = msg.on
		m.refreshTimeline()

	case recordingMsg:
		prev := m.recState
		m.recState = msg.state
		if msg.state == audio.Recording && prev != audio.Recording {
			m.recStart = time.Now()
			m.recFor = 0
			m.silent = false
			beep.Play(beep.Start)
			cmds = append(cmds, recordTick())
		}
		if msg.state == audio.Idle && (prev == audio.Recording || prev == audio.Stopping) {
			m.silent = false
			beep.Play(beep.End)
		}

	case voiceMsg:
		switch msg.ev {
		case audio.SilenceWarn:
			m.silent = true
		case audio.SilenceCleared:
			m.silent = false
		case audio.SilenceTimeout:
			log.Warn("no voice detected, stopping recording")
			sess := m.sess
			cmds = append(cmds, m.do("record", func(ctx context.Context) error {
				if sess.RecordingState() != audio.Recording {
					return nil
				}
				_, err := sess.StopRecording(ctx)
				return err
			}))
		}

	case draftMsg:
		m.draft = msg.d

	case offerMsg:
		if msg.offer != nil {
			beep.Play(beep.Alert)
		}
		m.refreshTimeline()

	case notifyMsg:
		m = m.applyNotification(msg.s)

	case opErrMsg:
		m = m.applyError(msg)

	case copiedMsg:
		if msg.err != nil {
			m.status = errStyle.Render("copy failed: " + msg.err.Error())
		} else {
			m.status = okStyle.Render("✓ copied last reply")
		}
	}

	return m.relayout(), tea.Batch(cmds...)
}

func (m *tuiModel) handleChatKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	sess := m.sess
	switch msg.String() {
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" || m.awaiting {
			return nil, true
		}
		m.input.Reset()
		m.status = ""
		return func() tea.Msg {
			if _, err := sess.Send(context.Background(), text); err != nil {
				return opErrMsg{op: "send", err: err, text: text}
			}
			return nil
		}, true

	case "ctrl+r":
		m.status = ""
		return m.do("record", sess.ToggleRecording), true

	case "ctrl+t":
		if m.draft.Status != transcriber.Ready || m.awaiting {
			return nil, true
		}
		return m.do("submit", func(ctx context.Context) error {
			_, err := sess.SubmitTranscript(ctx)
			return err
		}), true

	case "ctrl+e":
		if m.draft.Status != transcriber.Ready && m.draft.Status != transcriber.Error {
			return nil, true
		}
		return m.do("rerecord", sess.ReRecord), true

	case "ctrl+n":
		if _, ok := sess.OfferVisible(); !ok {
			return nil, true
		}
		return m.do("notify", sess.AcceptOffer), true

	case "ctrl+y":
		text := lastReply(m.messages)
		if text == "" {
			return nil, true
		}
		return func() tea.Msg { return copiedMsg{err: clipboard.Copy(text)} }, true

	case "pgup", "pgdown", "up", "down":
		var c tea.Cmd
		m.vp, c = m.vp.Update(msg)
		return c, true
	}
	return nil, false
}

func (m tuiModel) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.sess
	switch msg.String() {
	case "esc":
		return m, m.do("close", func(context.Context) error { return sess.CloseDialog() })
	case "tab", "shift+tab":
		m = m.setFocus(map[focusArea]focusArea{focusSubject: focusBody, focusBody: focusSubject}[m.focus])
		return m, nil
	case "ctrl+s":
		if !m.notif.Editable() {
			return m, nil
		}
		subject, body := m.subject.Value(), m.body.Value()
		return m, m.do("send_email", func(ctx context.Context) error {
			if err := sess.EditDraft(subject, body); err != nil {
				return err
			}
			return sess.SendEmail(ctx)
		})
	}
	if !m.notif.Editable() {
		return m, nil
	}
	var c tea.Cmd
	if m.focus == focusBody {
		m.body, c = m.body.Update(msg)
	} else {
		m.subject, c = m.subject.Update(msg)
	}
	return m, c
}

func (m tuiModel) setFocus(f focusArea) tuiModel {
	m.focus = f
	m.input.Blur()
	m.subject.Blur()
	m.body.Blur()
	switch f {
	case focusChat:
		m.input.Focus()
	case focusSubject:
		m.subject.Focus()
	case focusBody:
		m.body.Focus()
	}
	return m
}

func (m tuiModel) applyNotification(s notify.Snapshot) tuiModel {
	prev := m.notif
	m.notif = s
	switch {
	case s.Editable() && !prev.Editable() && prev.State != notify.Sending:
		m.subject.SetValue(s.Subject)
		m.body.SetValue(s.Body)
		m = m.setFocus(focusSubject)
	case !s.Open() && prev.Open():
		m = m.setFocus(focusChat)
		if s.State == notify.Sent {
			m.status = okStyle.Render("Email sent successfully to your doctor!")
		}
	}
	m.refreshTimeline()
	return m
}

func (m tuiModel) applyError(msg opErrMsg) tuiModel {
	err := msg.err
	log.Warnf("%s: %v", msg.op, err)
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		beep.Play(beep.Error)
		m.alert = "Could not access the microphone. Please check your audio permissions and try again."
	case errors.Is(err, audio.ErrUnsupported):
		m.alert = "Voice recording is not supported on this device. Please type your message instead."
	case errors.Is(err, chat.ErrBusy), errors.Is(err, chat.ErrBlank):
		if msg.text != "" && m.input.Value() == "" {
			m.input.SetValue(msg.text)
			m.input.CursorEnd()
		}
		m.status = errStyle.Render(err.Error())
	case errors.Is(err, notify.ErrBlankDraft):
		// shown inline in the dialog
	case msg.op == "send_email":
		// LastError carries the message
	default:
		m.status = errStyle.Render(err.Error())
	}
	return m
}

func lastReply(msgs []timeline.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].FromUser {
			return msgs[i].Text
		}
	}
	return ""
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (m *tuiModel) refreshTimeline() {
	atBottom := m.vp.AtBottom() || m.vp.TotalLineCount() == 0
	m.vp.SetContent(m.renderTimeline())
	if atBottom {
		m.vp.GotoBottom()
	}
}

// relayout sizes the timeline viewport to whatever the bottom panels leave.
func (m tuiModel) relayout() tuiModel {
	if m.width == 0 || m.height == 0 {
		return m
	}
	m.vp.Width = m.width
	h := m.height - 1 - lipgloss.Height(m.renderBottom())
	m.vp.Height = max(h, 3)
	return m
}

func (m tuiModel) renderTimeline() string {
	width := max(m.vp.Width-2, 20)
	var b strings.Builder
	for _, msg := range m.messages {
		label := assistantLabel.Render("Assistant")
		style := assistantText
		if msg.FromUser {
			label = userLabel.Render("You")
			style = userText
		}
		b.WriteString(label + " " + dimStyle.Render(msg.Timestamp.Format("15:04")) + "\n")
		for _, line := range wrapText(msg.Text, width) {
			b.WriteString(style.Render(line) + "\n")
		}
		b.WriteString("\n")
	}
	if _, ok := m.sess.OfferVisible(); ok {
		b.WriteString(offerStyle.Render("Yes, notify my doctor (ctrl+n)") + "\n\n")
	}
	if m.awaiting {
		b.WriteString(dimStyle.Render(m.spinner.View()+" Assistant is typing...") + "\n")
	}
	return b.String()
}

func (m tuiModel) renderBottom() string {
	var parts []string

	if panel := m.renderTranscript(); panel != "" {
		parts = append(parts, panel)
	}
	if m.alert != "" {
		parts = append(parts, alertBox.Render(m.alert+"\n"+dimStyle.Render("press any key")))
	}

	status := dimStyle.Render("○ "+m.deviceLine) + dimStyle.Render("  ·  "+m.userLine)
	switch m.recState {
	case audio.Requesting:
		status = warnStyle.Render("◌ requesting microphone...")
	case audio.Recording:
		status = recStyle.Render(fmt.Sprintf("● REC %.1fs", m.recFor.Seconds())) + dimStyle.Render("  ctrl+r to stop")
		if m.silent {
			status += "  " + warnStyle.Render("No voice detected. Check your microphone.")
		}
	case audio.Stopping:
		status = warnStyle.Render("◌ finishing recording...")
	}
	if m.status != "" {
		status += "  " + m.status
	}
	parts = append(parts, status)

	if m.notif.Open() {
		parts = append(parts, m.renderDialog())
	} else {
		parts = append(parts, m.input.View())
		parts = append(parts, m.renderHelp(
			"enter", "send",
			"ctrl+r", "record",
			"ctrl+y", "copy reply",
			"ctrl+c", "quit",
		))
	}
	return strings.Join(parts, "\n")
}

func (m tuiModel) renderTranscript() string {
	width := max(m.width-4, 20)
	switch m.draft.Status {
	case transcriber.Transcribing:
		return transcriptBox.Render(m.spinner.View() + " Transcribing...")
	case transcriber.Ready:
		text := strings.Join(wrapText(m.draft.Text, width-2), "\n")
		return transcriptBox.Render(dimStyle.Render("Transcription:") + "\n" + text + "\n" +
			m.renderHelp("ctrl+t", "send", "ctrl+e", "re-record"))
	case transcriber.Error:
		text := strings.Join(wrapText(m.draft.Text, width-2), "\n")
		return transcriptBox.Render(warnStyle.Render(text) + "\n" + m.renderHelp("ctrl+e", "re-record"))
	}
	return ""
}

func (m tuiModel) renderDialog() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Email Your Doctor"))
	if s := m.notif.Offer.Symptom; s != "" {
		b.WriteString(dimStyle.Render("  symptom: " + s))
	}
	b.WriteString("\n\n")

	switch {
	case m.notif.State == notify.ProfileFetching:
		b.WriteString(m.spinner.View() + " Loading your profile...")
	case m.notif.Generating:
		b.WriteString(m.spinner.View() + " Generating email draft...")
	default:
		b.WriteString(dimStyle.Render("Subject") + "\n" + m.subject.View() + "\n\n")
		b.WriteString(dimStyle.Render("Email Body") + "\n" + m.body.View() + "\n")
		if m.notif.State == notify.Sending {
			b.WriteString("\n" + m.spinner.View() + " Sending...")
		}
		if m.notif.LastError != "" {
			b.WriteString("\n" + errStyle.Render(m.notif.LastError))
		}
	}
	b.WriteString("\n" + m.renderHelp("tab", "switch field", "ctrl+s", "send", "esc", "cancel"))
	return dialogBox.Width(max(m.width-2, 20)).Render(b.String())
}

func (m tuiModel) renderHelp(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, helpKeyStyle.Render(pairs[i])+helpStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, helpStyle.Render("  ·  "))
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	header := titleStyle.Render("carechat") + dimStyle.Render(" "+version+"  medical assistant")
	return header + "\n" + m.vp.View() + "\n" + m.renderBottom()
}

// wrapText breaks text into lines of at most width runes, preferring
// spaces and keeping explicit newlines.
func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		r := []rune(para)
		if len(r) == 0 {
			lines = append(lines, "")
			continue
		}
		for len(r) > width {
			splitAt := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, string(r[:splitAt]))
			r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
		}
		if len(r) > 0 {
			lines = append(lines, string(r))
		}
	}
	return lines
}
