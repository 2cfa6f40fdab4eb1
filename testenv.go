package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"carechat/audio"
	"carechat/escalation"
	"carechat/log"
	"carechat/notify"
	"carechat/session"
	"carechat/timeline"
	"carechat/transcriber"
)

// lineObserver prints session events as one line each, for scripted runs.
type lineObserver struct {
	session.NopObserver
	mu sync.Mutex
	w  io.Writer
}

func (o *lineObserver) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format+"\n", args...)
}

func (o *lineObserver) MessageAppended(m timeline.Message) {
	who := "ASSISTANT"
	if m.FromUser {
		who = "USER"
	}
	o.printf("%s: %s", who, strings.ReplaceAll(m.Text, "\n", `\n`))
}

func (o *lineObserver) RecordingChanged(s audio.State) { o.printf("RECORDING: %s", s) }

func (o *lineObserver) VoiceChanged(ev audio.VoiceEvent) { o.printf("VOICE: %s", ev) }

func (o *lineObserver) DraftChanged(d transcriber.Draft) {
	if d.Status == transcriber.Ready || d.Status == transcriber.Error {
		o.printf("TRANSCRIPT: %s", d.Text)
	}
}

func (o *lineObserver) OfferChanged(offer *escalation.Offer) {
	if offer == nil {
		o.printf("OFFER: none")
		return
	}
	o.printf("OFFER: %s", offer.Symptom)
}

func (o *lineObserver) NotificationChanged(s notify.Snapshot) {
	if s.Editable() {
		o.printf("DRAFT: %s", s.Subject)
	}
	if s.State == notify.Sent {
		o.printf("NOTIFY: sent")
	}
}

// runTestMode drives a session from line commands on in. It returns when
// in is exhausted or QUIT is read.
func runTestMode(in io.Reader, out io.Writer, sess *session.Session) {
	ctx := context.Background()
	report := func(op string, err error) {
		if err != nil {
			log.Warnf("%s: %v", op, err)
			fmt.Fprintf(out, "ERROR %s: %v\n", op, err)
		}
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
		case "SEND":
			_, err := sess.Send(ctx, arg)
			report("send", err)
		case "RECORD":
			report("record", sess.StartRecording(ctx))
		case "STOP":
			_, err := sess.StopRecording(ctx)
			report("stop", err)
		case "SUBMIT":
			_, err := sess.SubmitTranscript(ctx)
			report("submit", err)
		case "RERECORD":
			report("rerecord", sess.ReRecord(ctx))
		case "ACCEPT":
			report("accept", sess.AcceptOffer(ctx))
		case "SUBJECT":
			report("edit", sess.EditDraft(arg, sess.Notification().Body))
		case "SEND_EMAIL":
			report("send_email", sess.SendEmail(ctx))
		case "CLOSE":
			report("close", sess.CloseDialog())
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			return
		default:
			fmt.Fprintf(out, "ERROR unknown command %q\n", cmd)
		}
	}
}
