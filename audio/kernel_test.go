package audio_test

import (
	"errors"
	"math"
	"testing"

	"go-flux/audio"
	"go-flux/lockfree"
	"go-flux/pattern"
)

func newKernel(t *testing.T, sampleRate float64) *audio.Kernel {
	t.Helper()
	return audio.NewKernel(sampleRate, pattern.Default(), 64, nil)
}

func send(t *testing.T, k *audio.Kernel, cmds ...audio.Command) {
	t.Helper()
	for _, c := range cmds {
		if err := k.Send(c); err != nil {
			t.Fatalf("Send(%T): %v", c, err)
		}
	}
}

func run(k *audio.Kernel, frames, channels int) []float32 {
	out := make([]float32, frames*channels)
	k.Process(out, channels)
	return out
}

func TestSamplesPerStep(t *testing.T) {
	cases := []struct {
		rate float64
		want float64
	}{
		{44100, 5512.5},
		{48000, 6000},
		{96000, 12000},
		{22050, 2756.25},
	}
	for _, c := range cases {
		k := newKernel(t, c.rate)
		if got := k.SamplesPerStep(); math.Abs(got-c.rate*60/480) > 1e-9 || math.Abs(got-c.want) > 1e-9 {
			t.Errorf("SamplesPerStep at %v Hz = %v, want %v", c.rate, got, c.want)
		}
	}
}

func TestFirstSampleLandsOnStepZero(t *testing.T) {
	k := newKernel(t, 48000)
	if k.CurrentStep() != 15 {
		t.Fatalf("stopped kernel at step %d, want 15", k.CurrentStep())
	}
	send(t, k, audio.Play{})
	run(k, 1, 1)
	if k.CurrentStep() != 0 {
		t.Fatalf("after first sample step = %d, want 0", k.CurrentStep())
	}
}

func TestOneStepPerSamplesPerStep(t *testing.T) {
	for _, rate := range []float64{44100, 48000} {
		k := newKernel(t, rate)
		send(t, k, audio.Play{})
		frames := int(k.SamplesPerStep())
		run(k, frames, 2)
		if got := k.CurrentStep(); got != 0 {
			t.Errorf("%v Hz: after %d frames step = %d, want 0 (one step past 15)", rate, frames, got)
		}
		run(k, frames, 2)
		if got := k.CurrentStep(); got != 1 {
			t.Errorf("%v Hz: after another %d frames step = %d, want 1", rate, frames, got)
		}
	}
}

func TestStepWrapsAtStepCount(t *testing.T) {
	k := newKernel(t, 48000)
	send(t, k, audio.Play{})
	run(k, 6000*16+1, 1)
	if got := k.CurrentStep(); got != 0 {
		t.Fatalf("after a full bar step = %d, want 0", got)
	}
}

func TestPitchResolution(t *testing.T) {
	k := newKernel(t, 48000)
	send(t, k,
		audio.ToggleStep{Track: 0, Step: 0},
		audio.ToggleStep{Track: 0, Step: 1},
		audio.SetParamLock{Track: 0, Step: 1, Param: pattern.ParamPitch, Value: pattern.Some(72)},
		audio.Play{},
	)
	run(k, 1, 1)
	if f := k.Frequency(); math.Abs(f-261.6256) > 0.01 {
		t.Errorf("note 60 sounds at %v Hz, want 261.63", f)
	}
	if k.Playhead() != 1 {
		t.Errorf("playhead after trigger = %d, want 1", k.Playhead())
	}
	run(k, 6000, 1)
	if f := k.Frequency(); math.Abs(f-523.25) > 0.1 {
		t.Errorf("pitch lock 72 sounds at %v Hz, want 523.25", f)
	}
}

func TestMidiToFreq(t *testing.T) {
	cases := []struct{ note, want float64 }{
		{69, 440}, {81, 880}, {57, 220}, {72, 523.2511}, {60, 261.6256},
	}
	for _, c := range cases {
		if got := audio.MidiToFreq(c.note); math.Abs(got-c.want) > 1e-3 {
			t.Errorf("MidiToFreq(%v) = %v, want %v", c.note, got, c.want)
		}
	}
}

func TestStopWhileStoppedIsNoop(t *testing.T) {
	k := newKernel(t, 44100)
	step, phase, head := k.CurrentStep(), k.StepPhase(), k.Playhead()
	send(t, k, audio.Stop{})
	run(k, 128, 2)
	if k.CurrentStep() != step || k.StepPhase() != phase || k.Playhead() != head {
		t.Fatalf("Stop while stopped changed state: step %d phase %v playhead %d", k.CurrentStep(), k.StepPhase(), k.Playhead())
	}
}

func TestStopRewinds(t *testing.T) {
	k := newKernel(t, 44100)
	step, phase := k.CurrentStep(), k.StepPhase()
	send(t, k, audio.Play{})
	run(k, 20000, 2)
	send(t, k, audio.Stop{})
	out := run(k, 64, 2)
	if k.Playing() || k.CurrentStep() != step || k.StepPhase() != phase || k.Playhead() != 0 {
		t.Fatalf("Stop did not rewind: step %d phase %v playhead %d", k.CurrentStep(), k.StepPhase(), k.Playhead())
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("stopped output[%d] = %v, want silence", i, v)
		}
	}
}

func TestOutOfRangeCommandsAreIgnored(t *testing.T) {
	k := newKernel(t, 44100)
	before := k.Pattern().Clone()
	send(t, k,
		audio.SetParamLock{Track: 0, Step: 0, Param: pattern.NumParams, Value: pattern.Some(1)},
		audio.SetParamLock{Track: 0, Step: 0, Param: -1, Value: pattern.Some(1)},
		audio.SetParamLock{Track: 9, Step: 0, Param: 3, Value: pattern.Some(1)},
		audio.ToggleStep{Track: 0, Step: 16},
		audio.ToggleStep{Track: 0, Step: -1},
		audio.ToggleStep{Track: 4, Step: 0},
		audio.ReplacePattern{},
		audio.SetTempo{BPM: -5},
	)
	run(k, 16, 2)
	after := k.Pattern()
	for ti := range before.Tracks {
		for si := range before.Tracks[ti].Subtracks[0].Steps {
			if before.Tracks[ti].Subtracks[0].Steps[si] != after.Tracks[ti].Subtracks[0].Steps[si] {
				t.Fatalf("track %d step %d changed", ti, si)
			}
		}
	}
	if k.SamplesPerStep() != 5512.5 {
		t.Fatalf("negative tempo applied: %v", k.SamplesPerStep())
	}
}

func TestToggleStepCyclesNoneAndNote(t *testing.T) {
	k := newKernel(t, 44100)
	k.Pattern().Step(2, 3).Trig = pattern.TrigOneShot
	send(t, k, audio.ToggleStep{Track: 2, Step: 3}, audio.ToggleStep{Track: 1, Step: 0})
	run(k, 1, 1)
	if got := k.Pattern().Step(2, 3).Trig; got != pattern.TrigNone {
		t.Errorf("toggling a one-shot gave %v, want none", got)
	}
	if got := k.Pattern().Step(1, 0).Trig; got != pattern.TrigNote {
		t.Errorf("toggling an empty step gave %v, want note", got)
	}
}

func TestSnapshotPublishedEveryCall(t *testing.T) {
	k := newKernel(t, 48000)
	if s := k.Snapshot(); s.Playing || s.NumTracks != 4 {
		t.Fatalf("initial snapshot %+v", s)
	}
	send(t, k, audio.ToggleStep{Track: 0, Step: 0}, audio.Play{})
	run(k, 0, 2)
	s := k.Snapshot()
	if !s.Playing {
		t.Fatal("snapshot not published for an empty block")
	}
	run(k, 1, 2)
	if s = k.Snapshot(); s.CurrentStep != 0 || !s.Triggered[0] {
		t.Fatalf("snapshot after trigger %+v", s)
	}
	run(k, 100, 2)
	if s = k.Snapshot(); s.Triggered[0] {
		t.Fatal("triggered flag not cleared on the next block")
	}
}

func TestChannelsCarrySameSample(t *testing.T) {
	k := newKernel(t, 48000)
	send(t, k, audio.ToggleStep{Track: 0, Step: 0}, audio.Play{})
	out := run(k, 512, 2)
	var nonzero bool
	for i := 0; i < len(out); i += 2 {
		if out[i] != out[i+1] {
			t.Fatalf("frame %d: left %v right %v", i/2, out[i], out[i+1])
		}
		if out[i] < -1 || out[i] > 1 {
			t.Fatalf("frame %d out of range: %v", i/2, out[i])
		}
		nonzero = nonzero || out[i] != 0
	}
	if !nonzero {
		t.Fatal("triggered voice rendered silence")
	}
}

func TestQueueFullIsReported(t *testing.T) {
	k := audio.NewKernel(44100, pattern.Default(), 2, nil)
	send(t, k, audio.Play{}, audio.Play{})
	if err := k.Send(audio.Stop{}); !errors.Is(err, lockfree.ErrFull) {
		t.Fatalf("Send on a full queue: got %v, want ErrFull", err)
	}
	run(k, 1, 1)
	if err := k.Send(audio.Stop{}); err != nil {
		t.Fatalf("Send after drain: %v", err)
	}
}

func TestTempoAndReplacePattern(t *testing.T) {
	k := newKernel(t, 48000)
	p := pattern.Default()
	p.Tracks[0].Length = 8
	p.BPM = 60
	send(t, k, audio.ReplacePattern{Pattern: p}, audio.SetGlobalVolume{Volume: 0.5})
	run(k, 1, 1)
	if k.SamplesPerStep() != 12000 || k.CurrentStep() != 7 || k.Volume() != 0.5 {
		t.Fatalf("after replace: sps %v step %d volume %v", k.SamplesPerStep(), k.CurrentStep(), k.Volume())
	}
	send(t, k, audio.SetTempo{BPM: 240})
	run(k, 1, 1)
	if k.SamplesPerStep() != 3000 || k.StepPhase() != 2999 {
		t.Fatalf("after tempo: sps %v phase %v", k.SamplesPerStep(), k.StepPhase())
	}
}

func TestReplaceWithFasterTempoWhilePlaying(t *testing.T) {
	k := newKernel(t, 48000)
	slow := pattern.Default()
	slow.BPM = 20 // 36000 samples per step
	send(t, k, audio.ReplacePattern{Pattern: slow}, audio.Play{})
	run(k, 30000, 1)
	if k.CurrentStep() != 0 || k.StepPhase() != 29999 {
		t.Fatalf("before replace: step %d phase %v", k.CurrentStep(), k.StepPhase())
	}

	fast := pattern.Default()
	fast.BPM = 300 // 2400 samples per step
	send(t, k, audio.ReplacePattern{Pattern: fast})
	run(k, 1, 1)
	if k.CurrentStep() != 1 || k.StepPhase() != 0 {
		t.Fatalf("after replace: step %d phase %v, want the next boundary at once", k.CurrentStep(), k.StepPhase())
	}
	run(k, 20, 1)
	if k.CurrentStep() != 1 || k.StepPhase() != 20 {
		t.Fatalf("steps fired back to back: step %d phase %v", k.CurrentStep(), k.StepPhase())
	}
	run(k, 2380, 1)
	if k.CurrentStep() != 2 || k.StepPhase() != 0 {
		t.Fatalf("one step later: step %d phase %v", k.CurrentStep(), k.StepPhase())
	}
}

func TestToneDecays(t *testing.T) {
	tone := audio.NewTone(48000)
	peak := func(from uint64, decay float32) float32 {
		var m float32
		for i := from; i < from+200; i++ {
			if v := float32(math.Abs(float64(tone.Sample(440, i, decay)))); v > m {
				m = v
			}
		}
		return m
	}
	early, late := peak(0, 0.2), peak(24000, 0.2)
	if early <= late || early > 0.1 {
		t.Fatalf("tone envelope early %v late %v", early, late)
	}
	if tone.Sample(0, 100, 1) != 0 {
		t.Fatal("zero frequency is not silent")
	}
}
