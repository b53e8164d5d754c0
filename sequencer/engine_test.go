package sequencer

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go-flux/lockfree"
	"go-flux/midi"
	"go-flux/pattern"
)

func newTestEngine(t *testing.T, p pattern.Pattern) (*Engine, *midi.Recorder) {
	t.Helper()
	rec := &midi.Recorder{}
	return NewEngine(p, rec, EngineConfig{QueueSize: 16}), rec
}

func mustSend(t *testing.T, e *Engine, cmds ...Command) {
	t.Helper()
	for _, c := range cmds {
		if err := e.Send(c); err != nil {
			t.Fatalf("Send(%T): %v", c, err)
		}
	}
}

func TestUpdatePatternRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, pattern.Default())
	p := pattern.Default()
	p.BPM = 97.5
	p.Step(2, 5).Trig = pattern.TrigLock
	p.Step(2, 5).Locks[40] = pattern.Some(0.3)
	sound := uint16(4)
	p.Step(3, 15).SoundLock = &sound
	p.Tracks[1].LFOs[0].Shape = pattern.DesignerShape([16]float32{1, 2, 3})
	p.AddTrack()

	mustSend(t, e, UpdatePattern{Pattern: p.Clone()})
	e.Tick()
	if got := e.Pattern(); !reflect.DeepEqual(got, p) {
		t.Fatal("engine pattern differs from the pattern sent")
	}
	if e.BPM() != 97.5 {
		t.Fatalf("cached bpm %v, want 97.5", e.BPM())
	}
}

func TestStoppedEngineIsSilent(t *testing.T) {
	p := pattern.Default()
	p.Step(0, 0).Trig = pattern.TrigNote
	p.Tracks[0].LFOs[0].Amount = 1
	e, rec := newTestEngine(t, p)
	for i := 0; i < 24; i++ {
		e.Tick()
	}
	if n := len(rec.Messages()); n != 0 {
		t.Fatalf("stopped engine sent %d messages", n)
	}
	if e.Stats().Ticks != 24 {
		t.Fatalf("ticks = %d, want 24", e.Stats().Ticks)
	}
}

func TestNotesOnStepBoundaries(t *testing.T) {
	p := pattern.Default()
	p.Step(0, 0).Trig = pattern.TrigNote
	p.Step(0, 1).Trig = pattern.TrigOneShot
	p.Step(0, 1).Note = 62
	p.Step(2, 1).Trig = pattern.TrigNote
	p.Step(2, 1).Note = 64
	p.Step(2, 1).Velocity = 80
	p.Step(3, 2).Trig = pattern.TrigNote
	e, rec := newTestEngine(t, p)
	mustSend(t, e, SetTransport{Playing: true})

	for i := 0; i < StepTicks*2; i++ {
		e.Tick()
	}
	want := []midi.Event{
		midi.NoteOnEvent(0, 60, 100), midi.NoteOffEvent(0, 60),
		midi.NoteOnEvent(0, 62, 100), midi.NoteOffEvent(0, 62),
		midi.NoteOnEvent(2, 64, 80), midi.NoteOffEvent(2, 64),
	}
	got := rec.Events()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events\n got %+v\nwant %+v", got, want)
	}

	// the pattern wraps after 16 steps
	rec.Reset()
	for i := 0; i < StepTicks*14+1; i++ {
		e.Tick()
	}
	evs := rec.Events()
	if len(evs) < 2 || evs[len(evs)-2] != midi.NoteOnEvent(0, 60, 100) {
		t.Fatalf("step 0 did not repeat after a full bar: %+v", evs)
	}
}

func TestShortTrackLoopsOnItsOwnLength(t *testing.T) {
	p := pattern.Default()
	p.Tracks[1].Length = 3
	p.Step(1, 0).Trig = pattern.TrigNote
	e, rec := newTestEngine(t, p)
	mustSend(t, e, SetTransport{Playing: true})
	for i := 0; i < StepTicks*6; i++ {
		e.Tick()
	}
	var ons int
	for _, ev := range rec.Events() {
		if ev.Type == midi.NoteOn {
			ons++
		}
	}
	if ons != 2 {
		t.Fatalf("3-step track fired %d times in 6 steps, want 2", ons)
	}
}

func TestLFOSendsScaledCC(t *testing.T) {
	p := pattern.Default()
	p.Tracks[3].LFOs[0] = pattern.LFO{
		Shape:       pattern.Shape{Kind: pattern.ShapeSquare},
		Destination: 74,
		Amount:      1,
		Speed:       1,
	}
	e, rec := newTestEngine(t, p)
	mustSend(t, e, SetTransport{Playing: true})
	e.Tick() // tick 0, phase 0: +1
	for i := 1; i < BarTicks/2; i++ {
		e.Tick()
	}
	rec.Reset()
	e.Tick() // tick 48, phase 0.5: -1

	evs := rec.Events()
	if len(evs) != 1 || evs[0] != midi.CCEvent(3, 74, 0) {
		t.Fatalf("half-bar events %+v, want one CC 74=0 on channel 3", evs)
	}
	rec.Reset()
	mustSend(t, e, SetTransport{Playing: false}, SetTransport{Playing: true})
	e.Tick()
	evs = rec.Events()
	if len(evs) == 0 || evs[0] != midi.CCEvent(3, 74, 127) {
		t.Fatalf("restart events %+v, want CC 74=127 first", evs)
	}
}

func TestLFOCommands(t *testing.T) {
	e, _ := newTestEngine(t, pattern.Default())
	mustSend(t, e,
		SetLFODesignerValue{Track: 0, LFO: 0, Step: 3, Value: 0.9}, // triangle: ignored
		SetLFOShape{Track: 0, LFO: 0, Shape: pattern.Shape{Kind: pattern.ShapeDesigner}},
		SetLFODesignerValue{Track: 0, LFO: 0, Step: 3, Value: 0.9},
		SetLFODesignerValue{Track: 0, LFO: 0, Step: 16, Value: 1},
		SetLFODesignerValue{Track: 0, LFO: 0, Step: -1, Value: 1},
		SetLFODesignerValue{Track: 0, LFO: 4, Step: 0, Value: 1},
		SetLFOShape{Track: 9, LFO: 0, Shape: pattern.Shape{Kind: pattern.ShapeSine}},
	)
	e.Tick()
	got := e.Pattern().Tracks[0].LFOs[0].Shape
	want := pattern.Shape{Kind: pattern.ShapeDesigner}
	want.Points[3] = 0.9
	if got != want {
		t.Fatalf("shape %+v, want %+v", got, want)
	}
}

func TestEngineQueueFull(t *testing.T) {
	e := NewEngine(pattern.Default(), &midi.Recorder{}, EngineConfig{QueueSize: 2})
	mustSend(t, e, SetTransport{}, SetTransport{})
	if err := e.Send(SetTransport{}); !errors.Is(err, lockfree.ErrFull) {
		t.Fatalf("got %v, want ErrFull", err)
	}
}

type failingSink struct{}

func (failingSink) Send([]byte) error { return errors.New("port gone") }

func TestSinkErrorsAreCounted(t *testing.T) {
	p := pattern.Default()
	p.Step(0, 0).Trig = pattern.TrigNote
	e := NewEngine(p, failingSink{}, EngineConfig{})
	mustSend(t, e, SetTransport{Playing: true})
	e.Tick()
	if got := e.Stats().Errors; got != 2 {
		t.Fatalf("errors = %d, want 2", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the real clock")
	}
	p := pattern.Default()
	p.BPM = 300 // 8.3ms ticks
	p.Step(0, 0).Trig = pattern.TrigNote
	e, rec := newTestEngine(t, pattern.Default())
	mustSend(t, e, UpdatePattern{Pattern: p}, SetTransport{Playing: true})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if ticks := e.Stats().Ticks; ticks < 5 || ticks > 20 {
		t.Errorf("ran %d ticks in 100ms at 8.3ms per tick", ticks)
	}
	if len(rec.Events()) == 0 {
		t.Error("no MIDI sent while running")
	}
}
