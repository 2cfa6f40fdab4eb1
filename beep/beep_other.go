//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"carechat/log"
)

var (
	ctxOnce  sync.Once
	malgoCtx *malgo.AllocatedContext
	playMu   sync.Mutex
)

func playbackContext() *malgo.AllocatedContext {
	ctxOnce.Do(func() {
		c, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			log.Warnf("cue playback: %v", err)
			return
		}
		malgoCtx = c
	})
	return malgoCtx
}

func play(samples []int16) {
	ctx := playbackContext()
	if ctx == nil || len(samples) == 0 {
		return
	}
	playMu.Lock()
	defer playMu.Unlock()

	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	pos := 0
	done := make(chan struct{})
	var once sync.Once
	onSend := func(out, _ []byte, _ uint32) {
		n := copy(out, data[pos:])
		pos += n
		clear(out[n:])
		if pos >= len(data) {
			once.Do(func() { close(done) })
		}
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate
	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onSend})
	if err != nil {
		log.Warnf("cue playback: %v", err)
		return
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Warnf("cue playback: %v", err)
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	device.Stop()
}
