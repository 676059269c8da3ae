package stt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// BuildWAV wraps raw PCM16LE bytes in a canonical 44-byte RIFF/WAVE header.
// sampleRate in Hz, channels, bitsPerSample (commonly 16) populate the header.
func BuildWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataLen := uint32(len(pcm))
	riffSize := uint32(4 + (8 + 16) + (8 + dataLen))

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)
	return buf.Bytes()
}

// WriteTempWAV writes pcm wrapped as a 16-bit WAV to a transient file and
// returns its path. The caller removes the file once the recognition
// response has been consumed.
func WriteTempWAV(pcm []byte, sampleRate, channels int) (string, error) {
	f, err := os.CreateTemp("", "voicebridge-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}
	if _, err := f.Write(BuildWAV(pcm, sampleRate, channels, 16)); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write temp wav: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
