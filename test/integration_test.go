//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"carechat/backend"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("CARECHAT_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "CARECHAT_TEST_BIN not set; build with: go build -o /tmp/carechat . && CARECHAT_TEST_BIN=/tmp/carechat go test -tags integration ./test")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	speechPath := filepath.Join("data", "tone.wav")
	if err := generateToneWAV(speechPath, 16000, 1.5); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(speechPath)

	os.Exit(m.Run())
}

func generateToneWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		s := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// runCarechat runs the binary in test mode against srv and returns its
// stdout and log directory.
func runCarechat(t *testing.T, srv *backend.FakeServer, stdin string, args ...string) (out, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-backend", srv.URL, "-user-id", "7", "-user-name", "Ada"}, args...)
	cmdArgs = append(cmdArgs, "-test", filepath.Join("data", "tone.wav"))

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("carechat exited with error: %v\noutput: %s", err, b)
	}
	return string(b), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireLines(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("missing %q in:\n%s", w, got)
		}
	}
}

func TestChatTurns(t *testing.T) {
	srv := backend.NewFakeServer()
	defer srv.Close()
	srv.QueueReplies("Drink some water.", "You're welcome.")

	out, logDir := runCarechat(t, srv, cmds("SEND I feel thirsty", "SEND thanks", "QUIT"))
	requireLines(t, out, "ASSISTANT: Hello Ada!", "USER: I feel thirsty", "ASSISTANT: Drink some water.")

	conv := readLog(t, logDir, "conversation_log.txt")
	if n := strings.Count(conv, "\n"); n != 5 {
		t.Errorf("conversation log has %d lines, want 5:\n%s", n, conv)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	requireLines(t, diag, "session_start", "session_end", "endpoint=/api/chat")
}

func TestBackendDown(t *testing.T) {
	srv := backend.NewFakeServer()
	defer srv.Close()
	srv.Fail("/api/chat", http.StatusBadGateway)

	out, _ := runCarechat(t, srv, cmds("SEND hello", "QUIT"))
	requireLines(t, out, "ASSISTANT: I'm sorry, I'm having trouble connecting right now.")
}

func TestDoctorNotification(t *testing.T) {
	srv := backend.NewFakeServer()
	defer srv.Close()
	srv.QueueReplies("A severe headache needs attention. Should I notify your doctor?")
	srv.SetProfile(`{"full_name":"Ada Lovelace","age":36}`)

	out, _ := runCarechat(t, srv, cmds("SEND I have a bad headache", "ACCEPT", "SEND_EMAIL", "QUIT"))
	requireLines(t, out, "OFFER: headache", "DRAFT: Patient Alert", "NOTIFY: sent", "ASSISTANT: ✅ Email sent to your doctor!")

	if srv.Calls("/api/generate-email-draft") != 1 || srv.Calls("/api/send-email") != 1 {
		t.Errorf("draft calls = %d, send calls = %d", srv.Calls("/api/generate-email-draft"), srv.Calls("/api/send-email"))
	}
	if got := srv.LastRequest("/api/get-profile")["patient_id"]; got != "patient_7" {
		t.Errorf("patient_id = %v", got)
	}
}

func TestVoiceMessage(t *testing.T) {
	srv := backend.NewFakeServer()
	defer srv.Close()
	srv.SetTranscript("my knee hurts")

	out, logDir := runCarechat(t, srv, cmds("RECORD", "STOP", "SUBMIT", "QUIT"), "-transcribe")
	requireLines(t, out, "TRANSCRIPT: my knee hurts", "USER: my knee hurts")

	diag := readLog(t, logDir, "diagnostics_log.txt")
	requireLines(t, diag, "recording", "endpoint=/api/transcribe")
}

func TestTranscriptionDisabled(t *testing.T) {
	srv := backend.NewFakeServer()
	defer srv.Close()

	out, _ := runCarechat(t, srv, cmds("RECORD", "STOP", "SUBMIT", "QUIT"))
	requireLines(t, out, "TRANSCRIPT: Speech-to-text is temporarily unavailable.")
	if srv.Calls("/api/transcribe") != 0 || srv.Calls("/api/chat") != 0 {
		t.Error("disabled transcription reached the backend")
	}
}
