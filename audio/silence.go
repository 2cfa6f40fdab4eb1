package audio

import (
	"encoding/binary"
	"math"
	"time"

	"carechat/encoder"
)

const (
	// VoiceTick is the span of captured audio judged as speech or silence.
	VoiceTick = 100 * time.Millisecond

	silenceWarnAfter = 8 * time.Second
	silenceTimeout   = 30 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher than speechMinRatio so the warning does not flap

	// SpeechLevel is the RMS amplitude above which a tick counts as speech.
	SpeechLevel = 500
)

type VoiceEvent int

const (
	VoiceNone      VoiceEvent = iota
	SilenceWarn               // no voice over the last few seconds
	SilenceCleared            // speech resumed after a warning
	SilenceTimeout            // nothing but silence for the whole window
)

func (e VoiceEvent) String() string {
	switch e {
	case SilenceWarn:
		return "silence"
	case SilenceCleared:
		return "voice"
	case SilenceTimeout:
		return "silence-timeout"
	}
	return "none"
}

func tickBytes() int {
	return int(encoder.BytesPerSecond * VoiceTick / time.Second)
}

// level returns the RMS amplitude of little-endian PCM16 samples.
func level(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// silenceMonitor keeps a sliding window of speech/silence ticks and reports
// when the user appears to have stopped talking into the microphone.
type silenceMonitor struct {
	warnAt   int
	windowSz int

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	timedOut    bool
}

func newSilenceMonitor() *silenceMonitor {
	windowSz := int(silenceTimeout / VoiceTick)
	return &silenceMonitor{
		warnAt:   int(silenceWarnAfter / VoiceTick),
		windowSz: windowSz,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) VoiceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)
	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceCleared
	}
	if !m.timedOut && m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		m.timedOut = true
		return SilenceTimeout
	}
	return VoiceNone
}
