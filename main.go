package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"carechat/audio"
	"carechat/backend"
	"carechat/beep"
	"carechat/doctor"
	"carechat/hotkey"
	"carechat/log"
	"carechat/session"
	"carechat/shutdown"
	"carechat/transcriber"
)

var version = "dev"

var shutdownOnce sync.Once

// gracefulShutdown asks the TUI to quit. The deferred cleanup in run
// finishes the session log.
func gracefulShutdown() {
	shutdownOnce.Do(func() {
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
			return
		}
		log.Close()
		os.Exit(0)
	})
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() int {
	loadDotEnv()
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if cfg.version {
		fmt.Printf("carechat %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(cfg.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	client := backend.New(cfg.backendURL, cfg.timeout)
	if cfg.quiet || cfg.test {
		beep.Disable()
	}

	if cfg.doctor {
		return doctor.Run(doctor.Options{Backend: client, Transcribe: cfg.transcribe})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	trans := transcriber.New(client, cfg.transcribe)
	users := session.StaticUser{ID: cfg.userID, Name: cfg.userName, Email: cfg.userEmail}
	log.SessionStart(client.BaseURL(), trans.Name())

	if cfg.test {
		actx, err := audio.NewFakeContext(cfg.args[0], false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			return 1
		}
		sess := session.New(session.Config{
			Users:       users,
			Backend:     client,
			Audio:       actx,
			Transcriber: trans,
			Doctor:      cfg.doctorName,
			Observer:    &lineObserver{w: os.Stdout},
		})
		defer sess.Close()
		runTestMode(os.Stdin, os.Stdout, sess)
		return 0
	}

	actx := audio.Detect()
	if actx != nil {
		defer actx.Close()
	}
	device, err := resolveDevice(actx, cfg)
	if errors.Is(err, audio.ErrSetupCancelled) {
		return 130
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: device selection failed: %v\n", err)
		fmt.Println("Falling back to default device")
	}

	sess := session.New(session.Config{
		Users:       users,
		Backend:     client,
		Audio:       actx,
		Device:      device,
		Transcriber: trans,
		Doctor:      cfg.doctorName,
		Observer:    tuiObserver{},
	})
	defer sess.Close()

	if cfg.hotkey {
		release, err := startVoiceKey(hotkey.New(), cfg, sess, func(op string, err error) {
			tuiSend(opErrMsg{op: op, err: err})
		})
		if err != nil {
			log.Warnf("hotkey: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: global hotkey unavailable: %v\n", err)
		} else {
			defer release()
		}
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	u, _ := users.CurrentUser()
	p := NewTUIProgram(newTUIModel(sess, u, device))
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()

	if _, err := p.Run(); err != nil {
		log.Errorf("tui error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// resolveDevice picks the capture device from -device or, with -setup,
// the interactive picker. A nil device means the system default.
func resolveDevice(actx audio.Context, cfg config) (*audio.DeviceInfo, error) {
	if actx == nil {
		return nil, nil
	}
	if cfg.device != "" {
		devices, err := actx.Devices()
		if err != nil {
			return nil, err
		}
		for i := range devices {
			if devices[i].Name == cfg.device {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("device %q not found", cfg.device)
	}
	if cfg.setup {
		return audio.SelectDevice(actx)
	}
	return nil, nil
}
