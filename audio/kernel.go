// Package audio is the sample-rate half of the sequencer: a kernel that owns
// its own pattern copy, advances a sixteenth-note step clock one frame at a
// time and renders the voice of track 0.
package audio

import (
	"go-flux/lockfree"
	"go-flux/pattern"
)

// MaxTracks is the size of the per-track flag vector in a Snapshot.
const MaxTracks = 16

// Snapshot is the transport state published once per Process call.
type Snapshot struct {
	CurrentStep int
	Playing     bool
	NumTracks   int
	Triggered   [MaxTracks]bool // tracks that fired during the last block
}

// Kernel is driven by the audio device callback. Process must be called from
// a single goroutine; Send and Snapshot may be called from one control
// goroutine each.
type Kernel struct {
	sampleRate float64
	tempo      float64
	pat        pattern.Pattern
	gen        Generator

	playing  bool
	volume   float32
	step     int     // index of the current step on track 0
	phase    float64 // samples accumulated towards the next step
	playhead uint64  // samples since the last trigger
	freq     float64
	decay    float32

	triggered [MaxTracks]bool

	commands *lockfree.Queue[Command]
	applyFn  func(Command) // k.apply, bound once in NewKernel
	state    *lockfree.TripleBuffer[Snapshot]
}

// NewKernel returns a stopped kernel playing p at sampleRate, with a command
// queue of at least queueSize slots. A nil gen selects the Tone voice.
func NewKernel(sampleRate float64, p pattern.Pattern, queueSize int, gen Generator) *Kernel {
	if gen == nil {
		gen = NewTone(sampleRate)
	}
	k := &Kernel{
		sampleRate: sampleRate,
		tempo:      float64(p.BPM),
		pat:        p,
		gen:        gen,
		volume:     1,
		commands:   lockfree.NewQueue[Command](queueSize),
	}
	k.applyFn = k.apply
	k.rewind()
	k.state = lockfree.NewTripleBuffer(k.snapshot())
	return k
}

// Send enqueues cmd for the next Process call. It never blocks; a full queue
// returns lockfree.ErrFull.
func (k *Kernel) Send(cmd Command) error {
	return k.commands.Push(cmd)
}

// Snapshot returns the most recently published transport state.
func (k *Kernel) Snapshot() Snapshot {
	return k.state.Read()
}

// SamplesPerStep is the length of a sixteenth note in samples.
func (k *Kernel) SamplesPerStep() float64 {
	if k.tempo <= 0 {
		return k.sampleRate
	}
	return k.sampleRate * 60 / (k.tempo * 4)
}

// Process renders len(out)/channels interleaved frames. It applies queued
// commands first and publishes exactly one Snapshot at the end.
func (k *Kernel) Process(out []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	k.commands.Drain(k.applyFn)

	k.triggered = [MaxTracks]bool{}
	sps := k.SamplesPerStep()
	frames := len(out) / channels
	for f := 0; f < frames; f++ {
		var v float32
		if k.playing {
			k.phase++
			if k.phase >= sps {
				k.phase -= sps
				k.advance()
			}
			v = k.gen.Sample(k.freq, k.playhead, k.decay)
			k.playhead++
		}
		frame := out[f*channels : f*channels+channels]
		for c := range frame {
			frame[c] = v
		}
	}
	for i := frames * channels; i < len(out); i++ {
		out[i] = 0
	}

	k.state.Write(k.snapshot())
}

func (k *Kernel) apply(cmd Command) {
	switch c := cmd.(type) {
	case Play:
		k.playing = true
	case Stop:
		if k.playing {
			k.playing = false
			k.rewind()
		}
	case SetGlobalVolume:
		k.volume = c.Volume
	case ToggleStep:
		if s := k.pat.Step(c.Track, c.Step); s != nil {
			if s.Trig == pattern.TrigNone {
				s.Trig = pattern.TrigNote
			} else {
				s.Trig = pattern.TrigNone
			}
		}
	case SetParamLock:
		if c.Param < 0 || c.Param >= pattern.NumParams {
			return
		}
		if s := k.pat.Step(c.Track, c.Step); s != nil {
			s.Locks[c.Param] = c.Value
		}
	case SetTempo:
		if c.BPM > 0 {
			k.pat.BPM = c.BPM
			k.tempo = float64(c.BPM)
			if !k.playing {
				k.rewind()
			} else if sps := k.SamplesPerStep(); k.phase >= sps {
				k.phase = sps - 1
			}
		}
	case ReplacePattern:
		if len(c.Pattern.Tracks) == 0 {
			return
		}
		k.pat = c.Pattern
		if c.Pattern.BPM > 0 {
			k.tempo = float64(c.Pattern.BPM)
		}
		if !k.playing {
			k.rewind()
			return
		}
		if n := k.stepCount(); k.step >= n {
			k.step %= n
		}
		if sps := k.SamplesPerStep(); k.phase >= sps {
			k.phase = sps - 1
		}
	}
}

// rewind puts the step clock one sample before step 0.
func (k *Kernel) rewind() {
	k.step = k.stepCount() - 1
	k.phase = k.SamplesPerStep() - 1
	k.playhead = 0
}

func (k *Kernel) stepCount() int {
	if len(k.pat.Tracks) == 0 {
		return 1
	}
	if n := k.pat.Tracks[0].StepCount(); n > 0 {
		return n
	}
	return 1
}

func (k *Kernel) advance() {
	k.step = (k.step + 1) % k.stepCount()
	s := k.pat.Step(0, k.step)
	if s == nil || s.Trig == pattern.TrigNone {
		return
	}
	note := float64(s.Note)
	if v, ok := s.Locks[pattern.ParamPitch].Get(); ok {
		note = float64(v)
	}
	k.freq = MidiToFreq(note)
	k.decay = k.pat.Tracks[0].DefaultParams[pattern.ParamDecay]
	if v, ok := s.Locks[pattern.ParamDecay].Get(); ok {
		k.decay = v
	}
	k.playhead = 0
	k.triggered[0] = true
}

func (k *Kernel) snapshot() Snapshot {
	n := len(k.pat.Tracks)
	if n > MaxTracks {
		n = MaxTracks
	}
	return Snapshot{
		CurrentStep: k.step,
		Playing:     k.playing,
		NumTracks:   n,
		Triggered:   k.triggered,
	}
}

// The accessors below read kernel-owned state and are only safe on the
// goroutine that calls Process.

func (k *Kernel) CurrentStep() int          { return k.step }
func (k *Kernel) Playing() bool             { return k.playing }
func (k *Kernel) Frequency() float64        { return k.freq }
func (k *Kernel) StepPhase() float64        { return k.phase }
func (k *Kernel) Playhead() uint64          { return k.playhead }
func (k *Kernel) Volume() float32           { return k.volume }
func (k *Kernel) Pattern() *pattern.Pattern { return &k.pat }
