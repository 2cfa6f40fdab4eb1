package audio

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"carechat/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays fixed PCM as microphone input.
type FakeContext struct {
	pcm      []byte
	realtime bool
	open     atomic.Int32
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return NewFakeContextPCM(data, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

// Open reports how many captures have been created and not yet closed.
func (f *FakeContext) Open() int { return int(f.open.Load()) }

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.open.Add(1)
	return &FakeCapture{ctx: f, pcm: f.pcm, realtime: f.realtime}, nil
}

// FakeCapture feeds the context's PCM once, then silence until stopped.
// Without realtime the whole clip is delivered inside Start.
type FakeCapture struct {
	ctx      *FakeContext
	pcm      []byte
	realtime bool

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	closed   bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	pos := 0
	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(f.feedDone)
		return nil
	}

	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	go func() {
		defer close(f.feedDone)
		silence := make([]byte, chunkBytes)
		for {
			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					cb(silence, fakeFrameSize)
				}
			}
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.ctx.open.Add(-1)
	}
}

var errDenied = errors.New("microphone access denied")

// DeniedContext refuses every capture request, like a user declining the
// microphone permission prompt.
type DeniedContext struct{}

func (DeniedContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (DeniedContext) Close()                         {}

func (DeniedContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	return nil, errDenied
}
