package sequencer

import "go-flux/pattern"

// Command is a mutation request for the clock engine, handled in
// Engine.apply.
type Command interface {
	engineCommand()
}

type (
	// UpdatePattern replaces the engine's pattern and tempo.
	UpdatePattern struct {
		Pattern pattern.Pattern
	}

	// SetLFOShape replaces the shape of one LFO.
	SetLFOShape struct {
		Track, LFO int
		Shape      pattern.Shape
	}

	// SetLFODesignerValue sets one breakpoint of a designer LFO. It is
	// ignored for other shapes.
	SetLFODesignerValue struct {
		Track, LFO, Step int
		Value            float32
	}

	// SetTransport starts or stops note and CC output. Starting rewinds the
	// song position to the top of the bar.
	SetTransport struct {
		Playing bool
	}
)

func (UpdatePattern) engineCommand()       {}
func (SetLFOShape) engineCommand()         {}
func (SetLFODesignerValue) engineCommand() {}
func (SetTransport) engineCommand()        {}
