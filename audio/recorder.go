package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"carechat/encoder"
	"carechat/log"
)

// SegmentDuration is how much audio each buffered segment holds.
const SegmentDuration = time.Second

// DefaultGain compensates for the low capture level of PulseAudio sources.
const DefaultGain = 8

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrUnsupported      = errors.New("audio recording is not supported on this device")
)

type State int

const (
	Idle State = iota
	Requesting
	Recording
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Clip is one finished recording, encoded as a single container.
type Clip struct {
	Data     []byte
	MimeType string
	Duration time.Duration
	Segments int
}

func (c Clip) Empty() bool { return len(c.Data) == 0 || c.Duration == 0 }

// Recorder drives one microphone through start/stop cycles and assembles
// the captured PCM into clips.
type Recorder struct {
	actx   Context
	device *DeviceInfo

	mu       sync.Mutex
	state    State
	capture  CaptureDevice
	segments [][]byte
	current  []byte
	onState  func(State)

	monitor *silenceMonitor
	tickBuf []byte
	onVoice func(VoiceEvent)
}

// NewRecorder returns a Recorder on actx. A nil actx makes every Start fail
// with ErrUnsupported. A nil device selects the system default.
func NewRecorder(actx Context, device *DeviceInfo) *Recorder {
	return &Recorder{actx: actx, device: device}
}

func (r *Recorder) Supported() bool { return r.actx != nil }

// OnStateChange registers fn to run after every transition.
func (r *Recorder) OnStateChange(fn func(State)) {
	r.mu.Lock()
	r.onState = fn
	r.mu.Unlock()
}

// OnVoice registers fn to receive silence warnings while recording.
func (r *Recorder) OnVoice(fn func(VoiceEvent)) {
	r.mu.Lock()
	r.onVoice = fn
	r.mu.Unlock()
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	r.state = s
	fn := r.onState
	r.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func segmentBytes() int {
	return int(encoder.BytesPerSecond * SegmentDuration / time.Second)
}

// Start requests the microphone and begins buffering audio.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Idle {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	if r.actx == nil {
		r.mu.Unlock()
		return ErrUnsupported
	}
	r.state = Requesting
	r.segments = nil
	r.current = nil
	r.monitor = newSilenceMonitor()
	r.tickBuf = nil
	fn := r.onState
	r.mu.Unlock()
	if fn != nil {
		fn(Requesting)
	}

	capture, err := r.open(ctx)
	if err != nil {
		r.setState(Idle)
		log.Warnf("microphone: %v", err)
		return err
	}

	r.mu.Lock()
	r.capture = capture
	r.mu.Unlock()
	r.setState(Recording)
	log.Info("recording started on " + capture.DeviceName())
	return nil
}

func (r *Recorder) open(ctx context.Context) (CaptureDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	capture, err := r.actx.NewCapture(r.device, CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		Gain:       DefaultGain,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	capture.SetCallback(r.onData)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return nil, fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return capture, nil
}

func (r *Recorder) onData(data []byte, _ uint32) {
	r.mu.Lock()
	if r.state != Requesting && r.state != Recording {
		r.mu.Unlock()
		return
	}
	events := r.voiceTicks(data)
	size := segmentBytes()
	for len(data) > 0 {
		n := min(size-len(r.current), len(data))
		r.current = append(r.current, data[:n]...)
		data = data[n:]
		if len(r.current) == size {
			r.segments = append(r.segments, r.current)
			r.current = nil
		}
	}
	fn := r.onVoice
	r.mu.Unlock()

	if fn != nil {
		for _, ev := range events {
			fn(ev)
		}
	}
}

// voiceTicks feeds whole VoiceTick windows of data to the silence monitor.
// Caller holds r.mu.
func (r *Recorder) voiceTicks(data []byte) []VoiceEvent {
	var events []VoiceEvent
	size := tickBytes()
	r.tickBuf = append(r.tickBuf, data...)
	for len(r.tickBuf) >= size {
		if ev := r.monitor.Tick(level(r.tickBuf[:size]) >= SpeechLevel); ev != VoiceNone {
			events = append(events, ev)
		}
		r.tickBuf = r.tickBuf[size:]
	}
	return events
}

// Stop ends the recording, releases the microphone and returns every
// buffered segment encoded as one clip. The clip is empty when no audio
// arrived.
func (r *Recorder) Stop() (Clip, error) {
	r.mu.Lock()
	if r.state != Recording {
		r.mu.Unlock()
		return Clip{}, ErrNotRecording
	}
	r.state = Stopping
	capture := r.capture
	fn := r.onState
	r.mu.Unlock()
	if fn != nil {
		fn(Stopping)
	}

	capture.ClearCallback()
	capture.Stop()
	capture.Close()

	r.mu.Lock()
	if len(r.current) > 0 {
		r.segments = append(r.segments, r.current)
	}
	segments := r.segments
	r.segments, r.current, r.capture, r.tickBuf = nil, nil, nil, nil
	r.mu.Unlock()

	clip, err := encodeClip(segments)
	r.setState(Idle)
	if err != nil {
		log.Errorf("encoding recording: %v", err)
		return Clip{}, err
	}
	if !clip.Empty() {
		log.Recording(clip.Duration.Seconds(), float64(len(clip.Data))/1024, clip.Segments)
	}
	return clip, nil
}

func encodeClip(segments [][]byte) (Clip, error) {
	total := 0
	for _, s := range segments {
		total += len(s)
	}
	if total < 2 {
		return Clip{}, nil
	}
	enc, err := encoder.NewFlac()
	if err != nil {
		return Clip{}, err
	}
	if err := encoder.EncodeSegments(enc, segments); err != nil {
		return Clip{}, err
	}
	return Clip{
		Data:     enc.Bytes(),
		MimeType: enc.MimeType(),
		Duration: time.Duration(enc.TotalFrames()) * time.Second / encoder.SampleRate,
		Segments: len(segments),
	}, nil
}
