package pattern_test

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"go-flux/pattern"

	"gitlab.com/gomidi/midi/v2/smf"
)

func TestDefaultPattern(t *testing.T) {
	p := pattern.Default()
	if len(p.Tracks) != 4 {
		t.Fatalf("default pattern has %d tracks, want 4", len(p.Tracks))
	}
	if p.BPM != 120 || p.MasterLength != 16 {
		t.Fatalf("default bpm/length = %v/%v, want 120/16", p.BPM, p.MasterLength)
	}
	for i, tr := range p.Tracks {
		if tr.ID != i {
			t.Errorf("track %d has id %d", i, tr.ID)
		}
		if tr.StepCount() != 16 {
			t.Errorf("track %d step count %d, want 16", i, tr.StepCount())
		}
	}
	s := p.Step(0, 0)
	if s.Trig != pattern.TrigNone || s.Note != 60 || s.Velocity != 100 {
		t.Fatalf("default step = %+v", *s)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("default pattern does not validate: %v", err)
	}
}

func TestRemoveTrackReindexes(t *testing.T) {
	p := pattern.Default()
	if err := p.RemoveTrack(1); err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	for i, tr := range p.Tracks {
		if tr.ID != i {
			t.Errorf("after removal track %d has id %d", i, tr.ID)
		}
	}
	for len(p.Tracks) > 1 {
		if err := p.RemoveTrack(0); err != nil {
			t.Fatalf("RemoveTrack: %v", err)
		}
	}
	if err := p.RemoveTrack(0); !errors.Is(err, pattern.ErrLastTrack) {
		t.Fatalf("removing the last track: got %v, want ErrLastTrack", err)
	}
	if err := p.RemoveTrack(5); !errors.Is(err, pattern.ErrNoTrack) {
		t.Fatalf("removing a missing track: got %v, want ErrNoTrack", err)
	}
	if id := p.AddTrack(); id != 1 || p.Tracks[1].ID != 1 {
		t.Fatalf("AddTrack returned %d", id)
	}
}

func TestCloneSharesNothing(t *testing.T) {
	p := pattern.Default()
	lock := uint16(3)
	p.Step(0, 2).SoundLock = &lock
	c := p.Clone()
	if !reflect.DeepEqual(p, c) {
		t.Fatal("clone differs from original")
	}
	c.Step(0, 0).Trig = pattern.TrigNote
	*c.Step(0, 2).SoundLock = 9
	c.Tracks[1].LFOs[0].Amount = 1
	if p.Step(0, 0).Trig != pattern.TrigNone {
		t.Error("step edit leaked into original")
	}
	if *p.Step(0, 2).SoundLock != 3 {
		t.Error("sound lock edit leaked into original")
	}
	if p.Tracks[1].LFOs[0].Amount != 0 {
		t.Error("lfo edit leaked into original")
	}
}

func TestAccessorsBounds(t *testing.T) {
	p := pattern.Default()
	if p.Track(-1) != nil || p.Track(4) != nil {
		t.Error("Track accepted an out of range index")
	}
	if p.Step(0, 16) != nil || p.Step(9, 0) != nil || p.SubtrackStep(0, 1, 0) != nil {
		t.Error("Step accepted an out of range index")
	}
	if p.LFO(0, 1) != nil || p.LFO(0, 0) == nil {
		t.Error("LFO bounds wrong")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(p *pattern.Pattern)
	}{
		{"no tracks", func(p *pattern.Pattern) { p.Tracks = nil }},
		{"zero bpm", func(p *pattern.Pattern) { p.BPM = 0 }},
		{"wrong id", func(p *pattern.Pattern) { p.Tracks[2].ID = 7 }},
		{"no subtracks", func(p *pattern.Pattern) { p.Tracks[0].Subtracks = nil }},
		{"length beyond steps", func(p *pattern.Pattern) { p.Tracks[0].Length = 32 }},
		{"zero length", func(p *pattern.Pattern) { p.Tracks[0].Length = 0 }},
		{"note", func(p *pattern.Pattern) { p.Step(0, 1).Note = 200 }},
		{"velocity", func(p *pattern.Pattern) { p.Step(0, 1).Velocity = 128 }},
		{"micro timing", func(p *pattern.Pattern) { p.Step(0, 1).MicroTiming = 24 }},
		{"negative step length", func(p *pattern.Pattern) { p.Step(0, 1).Length = -0.5 }},
		{"NaN step length", func(p *pattern.Pattern) { p.Step(2, 3).Length = float32(math.NaN()) }},
		{"probability", func(p *pattern.Pattern) { p.Step(0, 1).Condition.Prob = 101 }},
		{"default param", func(p *pattern.Pattern) { p.Tracks[1].DefaultParams[5] = 1.5 }},
		{"lfo amount", func(p *pattern.Pattern) { p.Tracks[1].LFOs[0].Amount = -2 }},
		{"lfo phase", func(p *pattern.Pattern) { p.Tracks[1].LFOs[0].Phase = 1.5 }},
	}
	for _, c := range cases {
		p := pattern.Default()
		c.modify(&p)
		if err := p.Validate(); !errors.Is(err, pattern.ErrInvalid) {
			t.Errorf("%s: got %v, want ErrInvalid", c.name, err)
		}
	}
}

func samplePattern() pattern.Pattern {
	p := pattern.Default()
	p.BPM = 133.5
	for i := 0; i < 16; i += 4 {
		p.Step(0, i).Trig = pattern.TrigNote
	}
	s := p.Step(1, 3)
	s.Trig = pattern.TrigOneShot
	s.Note = 72
	s.Velocity = 90
	s.MicroTiming = -12
	s.Condition = pattern.TrigCondition{Prob: 50, Logic: pattern.LogicFill}
	s.Locks[pattern.ParamPitch] = pattern.Some(64)
	s.Locks[127] = pattern.Some(0.25)
	sound := uint16(12)
	s.SoundLock = &sound
	s.Slide = true
	s.RetrigRate = 4
	p.Tracks[2].Machine = pattern.MachineFmTone
	p.Tracks[2].LFOs[0] = pattern.LFO{
		Shape:       pattern.DesignerShape([16]float32{0, 1, 0.5, -0.5}),
		Destination: 10,
		Amount:      -0.75,
		Speed:       2,
		Phase:       0.25,
	}
	p.Tracks[3].LFOs = append(p.Tracks[3].LFOs, pattern.LFO{
		Shape: pattern.Shape{Kind: pattern.ShapeRandom}, Destination: 1, Amount: 1, Speed: 4, Seed: 99,
	})
	return p
}

func TestYAMLRoundTrip(t *testing.T) {
	p := samplePattern()
	var buf bytes.Buffer
	if err := pattern.Encode(&buf, &p); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(buf.String(), "kind: designer") {
		t.Errorf("encoded shape kind not readable:\n%s", buf.String())
	}
	got, err := pattern.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(p, got) {
		t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", p.Tracks[1].Subtracks[0].Steps[3], got.Tracks[1].Subtracks[0].Steps[3])
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"unknown trig": "tracks:\n  - id: 0\n    subtracks:\n      - steps:\n          - trig: loud\n",
		"lock index":   "tracks:\n  - id: 0\n    subtracks:\n      - steps:\n          - locks: {200: 1}\n",
		"no tracks":    "bpm: 120\n",
	}
	for name, doc := range cases {
		if _, err := pattern.Decode(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: decoded without error", name)
		}
	}
}

func TestStoreSaveLoad(t *testing.T) {
	store := &pattern.Store{Root: t.TempDir()}
	p := samplePattern()
	filename, err := store.Save("demo", "first take", &p)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(filename, "_first-take.yaml") {
		t.Errorf("save filename %q not sanitized", filename)
	}
	projects, err := store.ListProjects()
	if err != nil || len(projects) != 1 || projects[0] != "demo" {
		t.Fatalf("ListProjects = %v, %v", projects, err)
	}
	saves, err := store.ListSaves("demo")
	if err != nil || len(saves) != 1 {
		t.Fatalf("ListSaves = %v, %v", saves, err)
	}
	if saves[0].Name != "first-take" {
		t.Errorf("save name %q", saves[0].Name)
	}
	got, err := store.Load("demo", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(p, got) {
		t.Fatal("loaded pattern differs from saved pattern")
	}
	if err := store.DeleteSave("demo", filename); err != nil {
		t.Fatalf("DeleteSave: %v", err)
	}
	if _, err := store.Load("demo", ""); err == nil {
		t.Fatal("Load after delete succeeded")
	}
}

func TestExportSMF(t *testing.T) {
	p := samplePattern()
	var buf bytes.Buffer
	if err := pattern.ExportSMF(&buf, &p); err != nil {
		t.Fatalf("ExportSMF: %v", err)
	}
	f, err := smf.ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(f.Tracks) != 1+len(p.Tracks) {
		t.Fatalf("got %d smf tracks, want %d", len(f.Tracks), 1+len(p.Tracks))
	}
	var ch, key, vel uint8
	var ons [4]int
	for i, tr := range f.Tracks[1:] {
		for _, ev := range tr {
			if ev.Message.GetNoteOn(&ch, &key, &vel) {
				ons[i]++
				if int(ch) != i {
					t.Errorf("track %d note on channel %d", i, ch)
				}
			}
		}
	}
	if ons != [4]int{4, 1, 0, 0} {
		t.Fatalf("note-on counts %v, want [4 1 0 0]", ons)
	}
}
