package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(wd, "logs"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("CARECHAT_LOG_PATH", "/tmp/carechat-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/carechat-env-log" {
		t.Errorf("got %q, want /tmp/carechat-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("CARECHAT_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, appName) {
		t.Errorf("default dir %q does not mention %s", got, appName)
	}
}

func TestInitCreatesConversationLog(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "conversation_log.txt")); err != nil {
		t.Errorf("conversation_log.txt not created: %v", err)
	}
}

func TestDiagnosticsWritten(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	RequestMetrics(RequestMetricsData{Endpoint: "/api/chat", Status: 200, TotalMs: 12})
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "endpoint=/api/chat") {
		t.Errorf("diagnostics missing request line, got: %q", data)
	}
}

func TestTimelineEntry(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	TimelineEntry(true, "I have a bad headache")
	TimelineEntry(false, "line one\nline two")

	data, err := os.ReadFile(filepath.Join(tmp, "conversation_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "\tuser\tI have a bad headache") {
		t.Errorf("user line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], `assistant`+"\t"+`line one\nline two`) {
		t.Errorf("assistant line = %q", lines[1])
	}
}

func TestTimelineEntryEscapesTabs(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}

	TimelineEntry(true, "pain\tlevel 7\nsince monday")

	data, err := os.ReadFile(filepath.Join(tmp, "conversation_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	fields := strings.Split(strings.TrimSuffix(string(data), "\n"), "\t")
	if len(fields) != 4 {
		t.Fatalf("got %d fields, want 4: %q", len(fields), data)
	}
	if want := `pain\tlevel 7\nsince monday`; fields[3] != want {
		t.Errorf("text field = %q, want %q", fields[3], want)
	}
}

func TestNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	Info("ignored")
	TimelineEntry(true, "ignored")
	SessionEnd(3)
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
