package audio

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// keys replays one keypress per Read, like a raw-mode terminal.
type keys struct{ presses []string }

func (k *keys) Read(p []byte) (int, error) {
	if len(k.presses) == 0 {
		return 0, io.EOF
	}
	n := copy(p, k.presses[0])
	k.presses = k.presses[1:]
	return n, nil
}

var mics = []DeviceInfo{
	{ID: "builtin", Name: "Built-in Microphone"},
	{ID: "usb", Name: "USB Headset"},
	{ID: "bt", Name: "AirPods Pro"},
}

func TestPick(t *testing.T) {
	for _, tt := range []struct {
		name    string
		presses []string
		want    string
		err     error
	}{
		{"enter keeps first", []string{"\r"}, "builtin", nil},
		{"arrow down", []string{"\x1b[B", "\r"}, "usb", nil},
		{"vim keys clamp", []string{"j", "j", "j", "k", "\r"}, "usb", nil},
		{"up at top stays", []string{"\x1b[A", "\n"}, "builtin", nil},
		{"ctrl+c", []string{"j", "\x03"}, "", ErrSetupCancelled},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			d, err := pick(mics, &keys{presses: tt.presses}, &out)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if tt.err == nil && d.ID != tt.want {
				t.Errorf("picked %q, want %q", d.ID, tt.want)
			}
		})
	}
}

func TestPickInputClosed(t *testing.T) {
	var out strings.Builder
	if _, err := pick(mics, &keys{}, &out); err == nil {
		t.Fatal("want error when input ends")
	}
	if !strings.Contains(out.String(), "AirPods Pro \x1b[33m[⚠") {
		t.Errorf("bluetooth device not flagged:\n%q", out.String())
	}
}

func TestIsMonitorSource(t *testing.T) {
	for id, want := range map[string]bool{
		"alsa_output.pci-0000_00_1f.3.analog-stereo.monitor": true,
		"alsa_input.pci-0000_00_1f.3.analog-stereo":          false,
		"bluez_source.AA_BB.monitor.a2dp":                    false,
	} {
		if got := isMonitorSource(id); got != want {
			t.Errorf("isMonitorSource(%q) = %v, want %v", id, got, want)
		}
	}
}
