package audio

import "math"

// Generator renders the voice. Given the sounding frequency, the samples
// elapsed since the last trigger and the resolved decay parameter (0..1) it
// returns one sample in [-1, 1].
type Generator interface {
	Sample(freq float64, playhead uint64, decay float32) float32
}

// Tone is the placeholder voice: a quiet sine with an exponential decay.
type Tone struct {
	SampleRate float64
	Level      float64
}

const (
	minDecaySeconds = 0.01
	maxDecaySeconds = 2.0
)

// NewTone returns a tone at the level of the reference test tone.
func NewTone(sampleRate float64) *Tone {
	return &Tone{SampleRate: sampleRate, Level: 0.1}
}

func (t *Tone) Sample(freq float64, playhead uint64, decay float32) float32 {
	if freq <= 0 || t.SampleRate <= 0 {
		return 0
	}
	secs := float64(playhead) / t.SampleRate
	d := float64(clamp01(decay))
	tau := minDecaySeconds + d*d*(maxDecaySeconds-minDecaySeconds)
	v := t.Level * math.Sin(2*math.Pi*freq*secs) * math.Exp(-secs/tau)
	return float32(v)
}

// MidiToFreq converts a (possibly fractional) MIDI note number to Hz in
// twelve-tone equal temperament, A4 = 440 Hz.
func MidiToFreq(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
