package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"carechat/audio"
	"carechat/backend"
	"carechat/clipboard"
	"carechat/shutdown"
	"carechat/transcriber"
)

type Options struct {
	Backend    *backend.Client
	Transcribe bool
	Device     *audio.DeviceInfo
	In         io.Reader
	Out        io.Writer
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	setupInterruptHandler()

	w := opts.Out
	fmt.Fprintln(w, "carechat doctor - system diagnostics")
	fmt.Fprintln(w, "====================================")

	allPass := checkBackend(w, opts.Backend)
	if !checkMicrophone(opts) {
		allPass = false
	}
	if !checkClipboard(w) {
		allPass = false
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}

func checkBackend(w io.Writer, c *backend.Client) bool {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[1/3] Assistant backend")
	fmt.Fprintf(w, "  %s\n", c.BaseURL())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Health(ctx); err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", err)
		return false
	}
	fmt.Fprintln(w, "  PASS: backend is healthy")
	return true
}

func checkMicrophone(opts Options) bool {
	w := opts.Out
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[2/3] Microphone and transcription")

	actx := audio.Detect()
	if actx == nil {
		fmt.Fprintln(w, "  FAIL: no audio backend available")
		return false
	}
	defer actx.Close()

	reader := bufio.NewReader(opts.In)
	fmt.Fprint(w, "Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	rec := audio.NewRecorder(actx, opts.Device)
	if err := rec.Start(context.Background()); err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", err)
		return false
	}
	fmt.Fprint(w, "  Recording")
	for range 6 {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, ".")
	}
	clip, err := rec.Stop()
	fmt.Fprintln(w, " done")
	if err != nil {
		fmt.Fprintf(w, "  FAIL: recording error: %v\n", err)
		return false
	}
	if clip.Empty() {
		fmt.Fprintln(w, "  FAIL: no audio captured")
		return false
	}
	fmt.Fprintf(w, "  Recorded %.1fs (%.1f KB FLAC)\n", clip.Duration.Seconds(), float64(len(clip.Data))/1024)

	if !opts.Transcribe {
		fmt.Fprintln(w, "  PASS: microphone works (transcription disabled)")
		return true
	}

	result, err := transcriber.NewRemote(opts.Backend).Transcribe(context.Background(), clip)
	if err != nil {
		fmt.Fprintf(w, "  FAIL: transcription error: %v\n", err)
		return false
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Fprintf(w, "\n  Transcribed text: %s\n\n", text)

	fmt.Fprint(w, "Is this correct? [y/n]: ")
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm == "y" || confirm == "yes" {
		fmt.Fprintln(w, "  PASS: transcription verified by user")
		return true
	}
	fmt.Fprintln(w, "  FAIL: transcription not confirmed")
	return false
}

func checkClipboard(w io.Writer) bool {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[3/3] Clipboard copy")

	if !clipboard.Available() {
		fmt.Fprintln(w, "  FAIL: no clipboard utility found (install xclip, xsel or wl-clipboard)")
		return false
	}

	testStr := fmt.Sprintf("carechat-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Fprintf(w, "  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Fprintf(w, "  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Fprintln(w, "  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Fprintln(w, "  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}
}
