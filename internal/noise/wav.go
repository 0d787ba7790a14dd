package noise

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WriteWAV encodes b as a 16-bit PCM RIFF/WAVE stream with one interleaved
// channel per buffer channel. Samples are clipped to [-1, 1].
func (b *Buffer) WriteWAV(w io.Writer) error {
	channels := b.Channels()
	if channels == 0 {
		return fmt.Errorf("write wav: empty buffer")
	}
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	dataSize := b.Frames() * blockAlign

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	// RIFF header: "RIFF" <size:4> "WAVE"
	bw.WriteString("RIFF")
	binary.Write(bw, le, uint32(36+dataSize))
	bw.WriteString("WAVE")

	bw.WriteString("fmt ")
	binary.Write(bw, le, uint32(16))
	binary.Write(bw, le, uint16(1)) // PCM
	binary.Write(bw, le, uint16(channels))
	binary.Write(bw, le, uint32(b.sampleRate))
	binary.Write(bw, le, uint32(b.sampleRate*blockAlign))
	binary.Write(bw, le, uint16(blockAlign))
	binary.Write(bw, le, uint16(bitsPerSample))

	bw.WriteString("data")
	binary.Write(bw, le, uint32(dataSize))

	var frame [2]byte
	for i := 0; i < b.Frames(); i++ {
		for ch := 0; ch < channels; ch++ {
			le.PutUint16(frame[:], uint16(toPCM16(b.data[ch][i])))
			if _, err := bw.Write(frame[:]); err != nil {
				return fmt.Errorf("write wav samples: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

func toPCM16(v float32) int16 {
	f := math.Max(-1, math.Min(1, float64(v)))
	return int16(math.Round(f * math.MaxInt16))
}
