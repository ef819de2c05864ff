package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Format describes raw PCM audio.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Duration returns how long the given number of PCM bytes play for.
func (f Format) Duration(n int) time.Duration {
	bytesPerSec := f.SampleRate * f.Channels * f.BitDepth / 8
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(bytesPerSec) * float64(time.Second))
}

// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

const wavHeaderLen = 44

// IsWAV reports whether data carries a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// EncodeWAV wraps raw PCM samples in a minimal RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, channels, bitDepth int) []byte {
	blockAlign := channels * bitDepth / 8
	byteRate := sampleRate * blockAlign

	buf := make([]byte, wavHeaderLen+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

// DecodeWAV extracts the PCM samples and format from a RIFF/WAVE file.
// Chunks other than fmt and data (LIST, cue, etc.) are skipped.
func DecodeWAV(data []byte) ([]byte, Format, error) {
	if !IsWAV(data) {
		return nil, Format{}, ErrNotWAV
	}

	var f Format
	var pcm []byte
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return nil, Format{}, fmt.Errorf("audio: truncated %q chunk", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, errors.New("audio: short fmt chunk")
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			f.BitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}
	if pcm == nil {
		return nil, Format{}, errors.New("audio: missing data chunk")
	}
	return pcm, f, nil
}

// ConvertPCM16ToInt16 converts little-endian PCM16 bytes to samples.
func ConvertPCM16ToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// ConvertInt16ToPCM16 converts samples to little-endian PCM16 bytes.
func ConvertInt16ToPCM16(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
