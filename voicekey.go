package main

import (
	"context"

	"carechat/audio"
	"carechat/hotkey"
	"carechat/log"
	"carechat/session"
)

// driveVoiceKey starts and stops recording from hotkey events until events
// is closed. Failures go to report, the same way key-bound TUI actions do.
func driveVoiceKey(events <-chan hotkey.Event, sess *session.Session, report func(op string, err error)) {
	ctx := context.Background()
	for ev := range events {
		log.Info("hotkey_" + ev.Action.String())
		switch ev.Action {
		case hotkey.Start:
			if sess.RecordingState() != audio.Idle {
				continue
			}
			if err := sess.StartRecording(ctx); err != nil {
				report("record", err)
			}
		case hotkey.Stop:
			if sess.RecordingState() != audio.Recording {
				continue
			}
			if _, err := sess.StopRecording(ctx); err != nil {
				report("stop", err)
			}
		}
	}
}

// startVoiceKey registers hk and drives sess from it. The returned func
// releases the key.
func startVoiceKey(hk hotkey.Hotkey, cfg config, sess *session.Session, report func(op string, err error)) (func(), error) {
	if err := hk.Register(); err != nil {
		return nil, err
	}
	hy := hotkey.NewHybrid(hk, cfg.longPress)
	go driveVoiceKey(hy.Events(), sess, report)
	log.Info("hotkey registered: " + hotkey.Combo)
	return func() {
		hy.Close()
		hk.Unregister()
	}, nil
}
