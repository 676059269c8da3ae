//go:build opus
// +build opus

package voice

import (
	"github.com/hraban/opus"
)

// NewOpusDecoder returns a Decoder backed by libopus.
func NewOpusDecoder(sampleRate, channels int) (Decoder, error) {
	d, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return d, nil
}
