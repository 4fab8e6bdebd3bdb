package notify

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	toneChannels = 1
	toneBitDepth = 16
	wavFormatPCM = 1
)

// Tone is a sine beep whose gain decays exponentially to a floor.
type Tone struct {
	FrequencyHz float64
	Duration    time.Duration
	Gain        float64
	FloorGain   float64
	SampleRate  int
}

// DefaultTone is the 800 Hz alert beep.
func DefaultTone() Tone {
	return Tone{
		FrequencyHz: 800,
		Duration:    500 * time.Millisecond,
		Gain:        0.3,
		FloorGain:   0.01,
		SampleRate:  22050,
	}
}

// Validate checks the tone parameters.
func (t Tone) Validate() error {
	if t.FrequencyHz <= 0 || t.SampleRate <= 0 || t.Duration <= 0 {
		return errors.New("tone: frequency, sample rate and duration must be positive")
	}
	if t.FrequencyHz*2 > float64(t.SampleRate) {
		return errors.New("tone: frequency above nyquist")
	}
	if t.Gain <= 0 || t.Gain > 1 || t.FloorGain <= 0 || t.FloorGain > t.Gain {
		return errors.New("tone: gain must be in (0,1] with 0 < floor <= gain")
	}
	return nil
}

// Samples renders the tone as signed 16-bit mono samples.
func (t Tone) Samples() []int16 {
	count := int(math.Round(t.Duration.Seconds() * float64(t.SampleRate)))
	samples := make([]int16, count)
	if count == 0 {
		return samples
	}
	ratio := t.FloorGain / t.Gain
	for i := range samples {
		progress := float64(i) / float64(count)
		gain := t.Gain * math.Pow(ratio, progress)
		value := gain * math.Sin(2*math.Pi*t.FrequencyHz*float64(i)/float64(t.SampleRate))
		samples[i] = int16(math.Round(value * math.MaxInt16))
	}
	return samples
}

// RenderWAV encodes the tone as a mono 16-bit PCM WAV file.
func (t Tone) RenderWAV() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	samples := t.Samples()
	data := make([]int, len(samples))
	for i, sample := range samples {
		data[i] = int(sample)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: toneChannels, SampleRate: t.SampleRate},
		Data:           data,
		SourceBitDepth: toneBitDepth,
	}

	out := &wavBuffer{}
	enc := wav.NewEncoder(out, t.SampleRate, toneBitDepth, toneChannels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// wavBuffer is an in-memory io.WriteSeeker; the encoder seeks back to patch
// chunk sizes on Close.
type wavBuffer struct {
	data []byte
	pos  int
}

func (b *wavBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *wavBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, errors.New("tone: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("tone: negative position")
	}
	b.pos = int(next)
	return next, nil
}

func (b *wavBuffer) Bytes() []byte {
	return b.data
}
