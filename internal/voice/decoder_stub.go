//go:build !opus
// +build !opus

package voice

import "encoding/binary"

// pcmDecoder passes frames through as little-endian PCM16 so builds without
// libopus (and the tests) can exercise the capture path.
type pcmDecoder struct {
	channels int
}

// NewOpusDecoder returns a passthrough decoder in non-opus builds.
func NewOpusDecoder(sampleRate, channels int) (Decoder, error) {
	if channels <= 0 {
		channels = 1
	}
	return &pcmDecoder{channels: channels}, nil
}

func (d *pcmDecoder) Decode(frame []byte, pcm []int16) (int, error) {
	n := len(frame) / 2
	if n > len(pcm) {
		n = len(pcm)
	}
	for i := 0; i < n; i++ {
		pcm[i] = int16(binary.LittleEndian.Uint16(frame[2*i:]))
	}
	return n / d.channels, nil
}
