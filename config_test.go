package main

import (
	"io"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	for _, k := range []string{"CARECHAT_BACKEND_URL", "CARECHAT_TIMEOUT", "CARECHAT_USER_ID", "CARECHAT_USER_NAME", "CARECHAT_USER_EMAIL", "CARECHAT_DOCTOR_NAME", "CARECHAT_TRANSCRIBE", "CARECHAT_HOTKEY"} {
		t.Setenv(k, "")
	}
	c, err := parseConfig(nil, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if c.backendURL != "http://localhost:5001" {
		t.Errorf("backendURL = %q", c.backendURL)
	}
	if c.timeout != 30*time.Second {
		t.Errorf("timeout = %v", c.timeout)
	}
	if c.doctorName != "Dr. Patel" {
		t.Errorf("doctorName = %q", c.doctorName)
	}
	if c.transcribe {
		t.Error("transcription enabled by default")
	}
	if c.hotkey || c.longPress != 350*time.Millisecond {
		t.Errorf("hotkey = %v, longPress = %v", c.hotkey, c.longPress)
	}
}

func TestParseConfigHotkey(t *testing.T) {
	t.Setenv("CARECHAT_HOTKEY", "1")
	c, err := parseConfig([]string{"-longpress", "500ms"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if !c.hotkey || c.longPress != 500*time.Millisecond {
		t.Errorf("hotkey = %v, longPress = %v", c.hotkey, c.longPress)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("CARECHAT_BACKEND_URL", "https://care.example.com/")
	t.Setenv("CARECHAT_TIMEOUT", "10s")
	t.Setenv("CARECHAT_USER_ID", "42")
	t.Setenv("CARECHAT_USER_NAME", "Ada")
	t.Setenv("CARECHAT_TRANSCRIBE", "1")

	c, err := parseConfig([]string{"-user-name", "Grace", "-doctor-name", "Dr. Okafor"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if c.backendURL != "https://care.example.com" {
		t.Errorf("backendURL = %q", c.backendURL)
	}
	if c.timeout != 10*time.Second || c.userID != "42" || !c.transcribe {
		t.Errorf("config = %+v", c)
	}
	if c.userName != "Grace" || c.doctorName != "Dr. Okafor" {
		t.Errorf("flags did not override env: %+v", c)
	}
}

func TestParseConfigErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		env  string
		args []string
	}{
		{"bad env timeout", "soon", nil},
		{"zero timeout", "", []string{"-timeout", "0s"}},
		{"bad backend", "", []string{"-backend", "localhost:5001"}},
		{"test without wav", "", []string{"-test"}},
		{"unknown flag", "", []string{"-bogus"}},
		{"zero longpress", "", []string{"-longpress", "0s"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CARECHAT_TIMEOUT", tt.env)
			t.Setenv("CARECHAT_BACKEND_URL", "")
			if _, err := parseConfig(tt.args, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}
