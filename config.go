package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"carechat/backend"
	"carechat/hotkey"
	"carechat/notify"
)

type config struct {
	backendURL string
	timeout    time.Duration
	userID     string
	userName   string
	userEmail  string
	doctorName string
	transcribe bool
	quiet      bool
	hotkey     bool
	longPress  time.Duration

	setup   bool
	device  string
	logPath string
	test    bool
	doctor  bool
	version bool

	args []string
}

// loadDotEnv reads .env from the working directory if present. Variables
// already set in the environment win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseConfig(args []string, stderr io.Writer) (config, error) {
	var c config
	fs := flag.NewFlagSet("carechat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	timeoutDef := backend.DefaultTimeout
	if v := os.Getenv("CARECHAT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("CARECHAT_TIMEOUT: %w", err)
		}
		timeoutDef = d
	}

	fs.StringVar(&c.backendURL, "backend", envOr("CARECHAT_BACKEND_URL", backend.DefaultURL), "Assistant backend origin")
	fs.DurationVar(&c.timeout, "timeout", timeoutDef, "Per-request timeout for backend calls")
	fs.StringVar(&c.userID, "user-id", envOr("CARECHAT_USER_ID", ""), "Signed-in user id (profile key is patient_<id>)")
	fs.StringVar(&c.userName, "user-name", envOr("CARECHAT_USER_NAME", ""), "Signed-in user's display name")
	fs.StringVar(&c.userEmail, "user-email", envOr("CARECHAT_USER_EMAIL", ""), "Signed-in user's email, copied on doctor notifications")
	fs.StringVar(&c.doctorName, "doctor-name", envOr("CARECHAT_DOCTOR_NAME", notify.DefaultDoctor), "Doctor named in fallback email drafts")
	fs.BoolVar(&c.transcribe, "transcribe", os.Getenv("CARECHAT_TRANSCRIBE") == "1", "Send recordings to the backend transcription endpoint")
	fs.BoolVar(&c.quiet, "quiet", os.Getenv("CARECHAT_QUIET") == "1", "Disable audio cues")
	fs.BoolVar(&c.hotkey, "hotkey", os.Getenv("CARECHAT_HOTKEY") == "1", "Record with the global "+hotkey.Combo+" key: tap to toggle, hold to talk")
	fs.DurationVar(&c.longPress, "longpress", hotkey.DefaultLongPress, "Hold time that turns a hotkey press into push-to-talk")
	fs.BoolVar(&c.setup, "setup", false, "Select microphone device (otherwise uses system default)")
	fs.StringVar(&c.device, "device", "", "Use named microphone device")
	fs.StringVar(&c.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.BoolVar(&c.test, "test", false, "Test mode (headless, stdin-driven); takes a WAV file argument")
	fs.BoolVar(&c.doctor, "doctor", false, "Run system diagnostics and exit")
	fs.BoolVar(&c.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return c, err
	}
	c.args = fs.Args()

	if c.timeout <= 0 {
		return c, fmt.Errorf("timeout must be positive, got %v", c.timeout)
	}
	c.backendURL = strings.TrimRight(c.backendURL, "/")
	if !strings.HasPrefix(c.backendURL, "http://") && !strings.HasPrefix(c.backendURL, "https://") {
		return c, fmt.Errorf("backend must be an http(s) URL, got %q", c.backendURL)
	}
	if c.longPress <= 0 {
		return c, fmt.Errorf("longpress must be positive, got %v", c.longPress)
	}
	if c.test && len(c.args) == 0 {
		return c, fmt.Errorf("usage: carechat -test <wav-file>")
	}
	return c, nil
}
