package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	diagLog          zerolog.Logger
	diagFile         *lumberjack.Logger
	conversationFile *os.File
	logMu            sync.Mutex
	logReady         bool
	pid              int
	dir              string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absDir(flagPath)
	}

	// Priority 2: CARECHAT_LOG_PATH environment variable
	if envPath := os.Getenv("CARECHAT_LOG_PATH"); envPath != "" {
		return absDir(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absDir(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	conversationPath := filepath.Join(dir, "conversation_log.txt")
	conversationFile, err = os.OpenFile(conversationPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	diagFile = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "diagnostics_log.txt"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if conversationFile != nil {
		conversationFile.Close()
		conversationFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

type RequestMetricsData struct {
	Endpoint   string
	Status     int
	ConnReused bool
	DNSMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	BodyKB     float64
}

func RequestMetrics(m RequestMetricsData) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	diagLog.Info().
		Str("endpoint", m.Endpoint).
		Int("status", m.Status).
		Str("conn", connStatus).
		Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Float64("body_kb", m.BodyKB).
		Msg("request")
}

func Recording(audioS, sizeKB float64, segments int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("audio_s", audioS).
		Float64("flac_kb", sizeKB).
		Int("segments", segments).
		Msg("recording")
}

// TimelineEntry appends one chat message to conversation_log.txt.
// entryEscaper keeps one message per line and four fields per line.
var entryEscaper = strings.NewReplacer("\n", `\n`, "\t", `\t`)

func TimelineEntry(fromUser bool, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if conversationFile == nil {
		return
	}
	who := "assistant"
	if fromUser {
		who = "user"
	}
	text = entryEscaper.Replace(text)
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, who, text)
	conversationFile.WriteString(line)
}

func SessionStart(backendURL, transcriber string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("backend", backendURL).
		Str("transcriber", transcriber).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("messages", count).
		Msg("session_end")
}
