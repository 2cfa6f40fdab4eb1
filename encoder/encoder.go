package encoder

import "encoding/binary"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096

	// BytesPerSecond of mono 16-bit PCM at SampleRate.
	BytesPerSecond = SampleRate * Channels * BitsPerSample / 8
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	MimeType() string
}

// Samples decodes little-endian 16-bit PCM. A trailing odd byte is dropped.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// EncodeSegments feeds every PCM segment, in order, through enc in
// BlockSize blocks and closes it.
func EncodeSegments(enc Encoder, segments [][]byte) error {
	var pending []int16
	for _, seg := range segments {
		pending = append(pending, Samples(seg)...)
		for len(pending) >= BlockSize {
			if err := enc.EncodeBlock(pending[:BlockSize]); err != nil {
				return err
			}
			pending = pending[BlockSize:]
		}
	}
	if len(pending) > 0 {
		if err := enc.EncodeBlock(pending); err != nil {
			return err
		}
	}
	return enc.Close()
}
