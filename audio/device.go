package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrSetupCancelled = errors.New("device selection cancelled")

// isMonitorSource reports whether a capture source only loops back an
// output device. Those never carry the patient's voice.
func isMonitorSource(id string) bool {
	return strings.HasSuffix(id, ".monitor")
}

// SelectDevice asks which microphone to use. With a single device it
// returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	return pick(devices, os.Stdin, os.Stdout)
}

// picker is the device list shown by SelectDevice.
type picker struct {
	devices []DeviceInfo
	cursor  int
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range p.devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[⚠ headset microphones may reduce transcription accuracy]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

func (p *picker) move(delta int) {
	p.cursor = max(0, min(len(p.devices)-1, p.cursor+delta))
}

// key applies one raw keypress. done is set once a device is chosen.
func (p *picker) key(b []byte) (done bool, err error) {
	switch {
	case len(b) == 1 && (b[0] == '\r' || b[0] == '\n'):
		return true, nil
	case len(b) == 1 && (b[0] == 3 || b[0] == 'q'): // ctrl+c
		return false, ErrSetupCancelled
	case len(b) == 1 && b[0] == 'j', len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'B':
		p.move(1)
	case len(b) == 1 && b[0] == 'k', len(b) == 3 && b[0] == 0x1b && b[1] == '[' && b[2] == 'A':
		p.move(-1)
	}
	return false, nil
}

func pick(devices []DeviceInfo, in io.Reader, out io.Writer) (*DeviceInfo, error) {
	p := &picker{devices: devices}
	p.render(out)

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		done, err := p.key(buf[:n])
		if err != nil {
			fmt.Fprint(out, "\r\n")
			return nil, err
		}
		if done {
			fmt.Fprint(out, "\r\n")
			return &p.devices[p.cursor], nil
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		p.render(out)
	}
}
