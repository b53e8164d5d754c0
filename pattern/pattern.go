package pattern

import (
	"errors"
	"fmt"
	"math"
)

const (
	NumParams      = 128 // parameter slots per step and per track
	MaxSteps       = 64  // steps per subtrack
	DefaultSteps   = 16
	DefaultTracks  = 4
	DefaultBPM     = 120
	DesignerPoints = 16
	MaxMicroTiming = 23 // in 1/384th of a step
)

// Parameter ids. Index into AtomicStep.Locks and Track.DefaultParams.
const (
	ParamPitch = 0 // MIDI note number (0.0 - 127.0)
	ParamDecay = 1 // 0.0 to 1.0
)

var (
	ErrInvalid   = errors.New("invalid pattern")
	ErrLastTrack = errors.New("cannot remove the last track")
	ErrNoTrack   = errors.New("no such track")
)

// Pattern is the top-level score shared (by copy) between the engines.
type Pattern struct {
	Tracks       []Track `yaml:"tracks"`
	BPM          float32 `yaml:"bpm"`
	MasterLength uint32  `yaml:"master_length"`
}

// Track is one voice of the pattern. ID always equals its index in Tracks.
type Track struct {
	ID            int                `yaml:"id"`
	Machine       MachineType        `yaml:"machine"`
	Subtracks     []Subtrack         `yaml:"subtracks"`
	Length        uint32             `yaml:"length"`
	Scale         float32            `yaml:"scale"`
	DefaultParams [NumParams]float32 `yaml:"default_params,flow"`
	LFOs          []LFO              `yaml:"lfos"`
}

// Subtrack is a layer of a track.
type Subtrack struct {
	VoiceID int          `yaml:"voice_id"`
	Steps   []AtomicStep `yaml:"steps"`
}

// TrigCondition gates a trigger by probability and a logic mode.
type TrigCondition struct {
	Prob  uint8   `yaml:"prob"`
	Logic LogicOp `yaml:"logic"`
}

// Lock is an optional per-step parameter override. An unset lock inherits
// the track default.
type Lock struct {
	Set   bool
	Value float32
}

// Some returns a set lock holding v.
func Some(v float32) Lock { return Lock{Set: true, Value: v} }

// None is the unset lock.
var None = Lock{}

// Get returns the value and whether the lock is set.
func (l Lock) Get() (float32, bool) { return l.Value, l.Set }

// Locks is the fixed parameter lock table of a step.
type Locks [NumParams]Lock

// AtomicStep is the smallest addressable unit of a subtrack.
type AtomicStep struct {
	Trig        TrigType      `yaml:"trig"`
	Note        uint8         `yaml:"note"`
	Velocity    uint8         `yaml:"velocity"`
	Length      float32       `yaml:"length"`
	MicroTiming int8          `yaml:"micro_timing"`
	Condition   TrigCondition `yaml:"condition"`
	SoundLock   *uint16       `yaml:"sound_lock,omitempty"`
	Locks       Locks         `yaml:"locks,omitempty"`
	Slide       bool          `yaml:"slide"`
	RetrigRate  uint8         `yaml:"retrig_rate"`
}

// Shape is an LFO waveform. Points is only meaningful for Designer.
type Shape struct {
	Kind   ShapeKind               `yaml:"kind"`
	Points [DesignerPoints]float32 `yaml:"points,flow,omitempty"`
}

// DesignerShape returns a designer shape with the given breakpoints.
func DesignerShape(points [DesignerPoints]float32) Shape {
	return Shape{Kind: ShapeDesigner, Points: points}
}

// LFO is a low-frequency modulator of one destination.
type LFO struct {
	Shape       Shape   `yaml:"shape"`
	Destination uint8   `yaml:"destination"` // MIDI CC number or internal param id
	Amount      float32 `yaml:"amount"`      // -1.0 to 1.0
	Speed       float32 `yaml:"speed"`       // cycles per bar
	Phase       float32 `yaml:"phase"`       // start offset 0.0-1.0
	Seed        uint32  `yaml:"seed,omitempty"`
}

// NewStep returns an empty step: no trigger, middle C, velocity 100.
func NewStep() AtomicStep {
	return AtomicStep{
		Trig:      TrigNone,
		Note:      60,
		Velocity:  100,
		Length:    1.0,
		Condition: TrigCondition{Prob: 100, Logic: LogicMatch},
	}
}

// NewLFO returns the default LFO: a silent triangle on the filter cutoff CC.
func NewLFO() LFO {
	return LFO{
		Shape:       Shape{Kind: ShapeTriangle},
		Destination: 74,
		Amount:      0,
		Speed:       1,
		Phase:       0,
	}
}

// NewTrack returns a one-subtrack, 16-step track with mid-range defaults.
func NewTrack(id int) Track {
	t := Track{
		ID:      id,
		Machine: MachineOneShot,
		Subtracks: []Subtrack{{
			VoiceID: 0,
			Steps:   make([]AtomicStep, DefaultSteps),
		}},
		Length: DefaultSteps,
		Scale:  1.0,
		LFOs:   []LFO{NewLFO()},
	}
	for i := range t.Subtracks[0].Steps {
		t.Subtracks[0].Steps[i] = NewStep()
	}
	for i := range t.DefaultParams {
		t.DefaultParams[i] = 0.5
	}
	return t
}

// Default returns the 4-track, 16-step pattern at 120 BPM.
func Default() Pattern {
	p := Pattern{
		Tracks:       make([]Track, 0, DefaultTracks),
		BPM:          DefaultBPM,
		MasterLength: DefaultSteps,
	}
	for i := 0; i < DefaultTracks; i++ {
		p.Tracks = append(p.Tracks, NewTrack(i))
	}
	return p
}

// Clone returns a deep copy that shares no memory with p.
func (p *Pattern) Clone() Pattern {
	c := *p
	c.Tracks = make([]Track, len(p.Tracks))
	for i := range p.Tracks {
		c.Tracks[i] = p.Tracks[i].Clone()
	}
	return c
}

// Clone returns a deep copy of the track.
func (t *Track) Clone() Track {
	c := *t
	c.Subtracks = make([]Subtrack, len(t.Subtracks))
	for i, st := range t.Subtracks {
		steps := make([]AtomicStep, len(st.Steps))
		copy(steps, st.Steps)
		for j := range steps {
			if steps[j].SoundLock != nil {
				v := *steps[j].SoundLock
				steps[j].SoundLock = &v
			}
		}
		c.Subtracks[i] = Subtrack{VoiceID: st.VoiceID, Steps: steps}
	}
	if t.LFOs != nil {
		c.LFOs = make([]LFO, len(t.LFOs))
		copy(c.LFOs, t.LFOs)
	}
	return c
}

// StepCount is the number of addressable steps of the track.
func (t *Track) StepCount() int {
	if t.Length > 0 {
		return int(t.Length)
	}
	if len(t.Subtracks) > 0 {
		return len(t.Subtracks[0].Steps)
	}
	return 0
}

// Track returns the track at i, or nil when out of range.
func (p *Pattern) Track(i int) *Track {
	if i < 0 || i >= len(p.Tracks) {
		return nil
	}
	return &p.Tracks[i]
}

// Step returns step s of subtrack 0 of track t, or nil when out of range.
func (p *Pattern) Step(t, s int) *AtomicStep {
	return p.SubtrackStep(t, 0, s)
}

// SubtrackStep returns a step of any subtrack, or nil when out of range.
func (p *Pattern) SubtrackStep(t, sub, s int) *AtomicStep {
	tr := p.Track(t)
	if tr == nil || sub < 0 || sub >= len(tr.Subtracks) {
		return nil
	}
	steps := tr.Subtracks[sub].Steps
	if s < 0 || s >= len(steps) {
		return nil
	}
	return &steps[s]
}

// LFO returns LFO l of track t, or nil when out of range.
func (p *Pattern) LFO(t, l int) *LFO {
	tr := p.Track(t)
	if tr == nil || l < 0 || l >= len(tr.LFOs) {
		return nil
	}
	return &tr.LFOs[l]
}

// AddTrack appends a default track and returns its index.
func (p *Pattern) AddTrack() int {
	id := len(p.Tracks)
	p.Tracks = append(p.Tracks, NewTrack(id))
	return id
}

// RemoveTrack deletes track i and re-indexes the remaining tracks.
func (p *Pattern) RemoveTrack(i int) error {
	if i < 0 || i >= len(p.Tracks) {
		return fmt.Errorf("remove track %d: %w", i, ErrNoTrack)
	}
	if len(p.Tracks) == 1 {
		return ErrLastTrack
	}
	p.Tracks = append(p.Tracks[:i], p.Tracks[i+1:]...)
	for j := range p.Tracks {
		p.Tracks[j].ID = j
	}
	return nil
}

// Validate checks every invariant an engine relies on.
func (p *Pattern) Validate() error {
	if len(p.Tracks) == 0 {
		return fmt.Errorf("%w: no tracks", ErrInvalid)
	}
	if !(p.BPM > 0) || math.IsInf(float64(p.BPM), 0) {
		return fmt.Errorf("%w: bpm %v", ErrInvalid, p.BPM)
	}
	for i := range p.Tracks {
		if err := p.Tracks[i].validate(i); err != nil {
			return err
		}
	}
	return nil
}

func (t *Track) validate(i int) error {
	if t.ID != i {
		return fmt.Errorf("%w: track %d has id %d", ErrInvalid, i, t.ID)
	}
	if t.Machine >= numMachines {
		return fmt.Errorf("%w: track %d: machine %d", ErrInvalid, i, t.Machine)
	}
	if len(t.Subtracks) == 0 {
		return fmt.Errorf("%w: track %d: no subtracks", ErrInvalid, i)
	}
	if t.Length == 0 || t.Length > MaxSteps {
		return fmt.Errorf("%w: track %d: length %d", ErrInvalid, i, t.Length)
	}
	for s, st := range t.Subtracks {
		if len(st.Steps) < int(t.Length) || len(st.Steps) > MaxSteps {
			return fmt.Errorf("%w: track %d subtrack %d: %d steps for length %d", ErrInvalid, i, s, len(st.Steps), t.Length)
		}
		for n := range st.Steps {
			if err := st.Steps[n].validate(); err != nil {
				return fmt.Errorf("%w: track %d subtrack %d step %d: %v", ErrInvalid, i, s, n, err)
			}
		}
	}
	for n, v := range t.DefaultParams {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: track %d: default param %d = %v", ErrInvalid, i, n, v)
		}
	}
	for n, l := range t.LFOs {
		if l.Shape.Kind >= numShapes {
			return fmt.Errorf("%w: track %d lfo %d: shape %d", ErrInvalid, i, n, l.Shape.Kind)
		}
		if l.Amount < -1 || l.Amount > 1 {
			return fmt.Errorf("%w: track %d lfo %d: amount %v", ErrInvalid, i, n, l.Amount)
		}
		if l.Phase < 0 || l.Phase > 1 {
			return fmt.Errorf("%w: track %d lfo %d: phase %v", ErrInvalid, i, n, l.Phase)
		}
	}
	return nil
}

func (s *AtomicStep) validate() error {
	switch {
	case s.Trig >= numTrigTypes:
		return fmt.Errorf("trig %d", s.Trig)
	case s.Note > 127:
		return fmt.Errorf("note %d", s.Note)
	case s.Velocity > 127:
		return fmt.Errorf("velocity %d", s.Velocity)
	case !(s.Length >= 0) || math.IsInf(float64(s.Length), 1):
		return fmt.Errorf("length %v", s.Length)
	case s.MicroTiming < -MaxMicroTiming || s.MicroTiming > MaxMicroTiming:
		return fmt.Errorf("micro timing %d", s.MicroTiming)
	case s.Condition.Prob > 100:
		return fmt.Errorf("probability %d", s.Condition.Prob)
	case s.Condition.Logic >= numLogicOps:
		return fmt.Errorf("logic %d", s.Condition.Logic)
	}
	return nil
}
