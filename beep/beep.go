// Package beep plays short audio cues for recording and escalation events.
package beep

import (
	"math"
	"sync/atomic"
)

const sampleRate = 44100

type Cue int

const (
	Start Cue = iota // recording started
	End              // recording stopped
	Error            // microphone unavailable
	Alert            // assistant offered to notify the doctor
)

type tone struct {
	freq     float64
	duration float64
	volume   float64
	decay    float64
	repeat   int
	gap      float64
}

var tones = map[Cue]tone{
	Start: {freq: 1200, duration: 0.2, volume: 0.5, decay: 60, repeat: 1},
	End:   {freq: 900, duration: 0.2, volume: 0.5, decay: 40, repeat: 1},
	Error: {freq: 350, duration: 0.08, volume: 0.6, decay: 30, repeat: 2, gap: 0.05},
	Alert: {freq: 660, duration: 0.12, volume: 0.4, decay: 20, repeat: 3, gap: 0.06},
}

var disabled atomic.Bool

// Disable silences every later Play call.
func Disable() { disabled.Store(true) }

// Play starts the cue in the background. Playback errors are logged and
// otherwise ignored.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	t, ok := tones[c]
	if !ok {
		return
	}
	go play(render(t))
}

// render returns mono PCM16 samples for t at sampleRate.
func render(t tone) []int16 {
	n := int(float64(sampleRate) * t.duration)
	gap := int(float64(sampleRate) * t.gap)
	out := make([]int16, 0, t.repeat*(n+gap))
	for r := 0; r < t.repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gap)...)
		}
		for i := 0; i < n; i++ {
			sec := float64(i) / sampleRate
			envelope := math.Exp(-sec * t.decay)
			out = append(out, int16(math.Sin(2*math.Pi*t.freq*sec)*32767*t.volume*envelope))
		}
	}
	return out
}
