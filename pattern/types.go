package pattern

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TrigType is the trigger kind of a step.
type TrigType uint8

const (
	TrigNone         TrigType = iota
	TrigNote                  // standard note on
	TrigLock                  // parameter change only
	TrigSynthTrigger          // envelope/LFO retrigger without a note
	TrigOneShot               // plays once
	numTrigTypes
)

var trigNames = []string{"none", "note", "lock", "synth_trigger", "one_shot"}

func (t TrigType) String() string { return enumName(trigNames, int(t)) }

func (t TrigType) MarshalYAML() (any, error) { return t.String(), nil }

func (t *TrigType) UnmarshalYAML(n *yaml.Node) error {
	i, err := enumValue(trigNames, n)
	*t = TrigType(i)
	return err
}

// LogicOp is the conditional-logic mode of a trigger condition.
type LogicOp uint8

const (
	LogicMatch LogicOp = iota
	LogicNot
	LogicPre
	LogicNei
	LogicFill
	numLogicOps
)

var logicNames = []string{"match", "not", "pre", "nei", "fill"}

func (l LogicOp) String() string { return enumName(logicNames, int(l)) }

func (l LogicOp) MarshalYAML() (any, error) { return l.String(), nil }

func (l *LogicOp) UnmarshalYAML(n *yaml.Node) error {
	i, err := enumValue(logicNames, n)
	*l = LogicOp(i)
	return err
}

// MachineType tags which sound-generation algorithm a track is meant for.
// Informational only.
type MachineType uint8

const (
	MachineOneShot MachineType = iota
	MachineWerp
	MachineSlice
	MachineFmTone
	MachineSubtractive
	MachineTonverkBus
	MachineMidiCC
	numMachines
)

var machineNames = []string{"one_shot", "werp", "slice", "fm_tone", "subtractive", "tonverk_bus", "midi_cc"}

func (m MachineType) String() string { return enumName(machineNames, int(m)) }

func (m MachineType) MarshalYAML() (any, error) { return m.String(), nil }

func (m *MachineType) UnmarshalYAML(n *yaml.Node) error {
	i, err := enumValue(machineNames, n)
	*m = MachineType(i)
	return err
}

// ShapeKind is the waveform family of an LFO.
type ShapeKind uint8

const (
	ShapeSine ShapeKind = iota
	ShapeTriangle
	ShapeSquare
	ShapeRandom
	ShapeDesigner
	numShapes
)

var shapeNames = []string{"sine", "triangle", "square", "random", "designer"}

func (s ShapeKind) String() string { return enumName(shapeNames, int(s)) }

func (s ShapeKind) MarshalYAML() (any, error) { return s.String(), nil }

func (s *ShapeKind) UnmarshalYAML(n *yaml.Node) error {
	i, err := enumValue(shapeNames, n)
	*s = ShapeKind(i)
	return err
}

// ParseShapeKind looks a shape up by its YAML name.
func ParseShapeKind(name string) (ShapeKind, bool) {
	for i, s := range shapeNames {
		if s == name {
			return ShapeKind(i), true
		}
	}
	return 0, false
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func enumValue(names []string, n *yaml.Node) (int, error) {
	var s string
	if err := n.Decode(&s); err != nil {
		return 0, err
	}
	for i, name := range names {
		if name == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("line %d: unknown value %q", n.Line, s)
}

// shape files only carry points for designer shapes
type shapeYAML struct {
	Kind   ShapeKind `yaml:"kind"`
	Points []float32 `yaml:"points,flow,omitempty"`
}

func (s Shape) MarshalYAML() (any, error) {
	out := shapeYAML{Kind: s.Kind}
	if s.Kind == ShapeDesigner {
		out.Points = s.Points[:]
	}
	return out, nil
}

func (s *Shape) UnmarshalYAML(n *yaml.Node) error {
	var in shapeYAML
	if err := n.Decode(&in); err != nil {
		return err
	}
	if len(in.Points) > DesignerPoints {
		return fmt.Errorf("line %d: %d designer points, want at most %d", n.Line, len(in.Points), DesignerPoints)
	}
	*s = Shape{Kind: in.Kind}
	copy(s.Points[:], in.Points)
	return nil
}

// IsZero reports whether no lock is set.
func (l Locks) IsZero() bool {
	for _, lk := range l {
		if lk.Set {
			return false
		}
	}
	return true
}

// Locks are stored as a sparse map of parameter id to value.
func (l Locks) MarshalYAML() (any, error) {
	m := make(map[int]float32)
	for i, lk := range l {
		if lk.Set {
			m[i] = lk.Value
		}
	}
	return m, nil
}

func (l *Locks) UnmarshalYAML(n *yaml.Node) error {
	var m map[int]float32
	if err := n.Decode(&m); err != nil {
		return err
	}
	*l = Locks{}
	for i, v := range m {
		if i < 0 || i >= NumParams {
			return fmt.Errorf("line %d: parameter lock %d out of range", n.Line, i)
		}
		l[i] = Some(v)
	}
	return nil
}
