package audio

import "go-flux/pattern"

// Command is a mutation request for the kernel. The set is closed: every
// implementation lives in this file and is handled in Kernel.apply.
type Command interface {
	audioCommand()
}

type (
	// Play starts the transport. It does nothing while already playing.
	Play struct{}

	// Stop halts the transport and rewinds the step clock.
	Stop struct{}

	// SetGlobalVolume is stored but not yet applied to the output.
	SetGlobalVolume struct {
		Volume float32
	}

	// ToggleStep flips a step of subtrack 0 between no trigger and a note.
	ToggleStep struct {
		Track, Step int
	}

	// SetParamLock sets or clears (Value unset) one parameter lock of a step
	// of subtrack 0.
	SetParamLock struct {
		Track, Step, Param int
		Value              pattern.Lock
	}

	// SetTempo changes the step grid tempo.
	SetTempo struct {
		BPM float32
	}

	// ReplacePattern swaps in a new pattern, already validated by the sender.
	ReplacePattern struct {
		Pattern pattern.Pattern
	}
)

func (Play) audioCommand()            {}
func (Stop) audioCommand()            {}
func (SetGlobalVolume) audioCommand() {}
func (ToggleStep) audioCommand()      {}
func (SetParamLock) audioCommand()    {}
func (SetTempo) audioCommand()        {}
func (ReplacePattern) audioCommand()  {}
