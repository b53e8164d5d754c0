package sequencer

import (
	"errors"
	"fmt"
	"sync"

	"go-flux/audio"
	"go-flux/debug"
	"go-flux/pattern"
)

// ErrOutOfRange is returned for edits addressing a track, step, parameter or
// LFO the control pattern does not have.
var ErrOutOfRange = errors.New("index out of range")

// Tempo limits accepted by SetTempo.
const (
	MinTempo = 20
	MaxTempo = 300
)

// AudioEngine is the control side of the audio kernel.
type AudioEngine interface {
	Send(audio.Command) error
	Snapshot() audio.Snapshot
}

// ClockEngine is the control side of the MIDI clock engine.
type ClockEngine interface {
	Send(Command) error
}

// Manager is the control surface of both engines. It keeps its own copy of
// the pattern, applies every edit to it and forwards the edit to the audio
// kernel and the clock engine. Neither engine is ever touched directly.
type Manager struct {
	mu      sync.Mutex
	pat     pattern.Pattern
	playing bool

	audio AudioEngine
	clock ClockEngine

	// the clock engine missed an update and needs the whole pattern again
	clockStale     bool
	transportStale bool
}

// NewManager returns a manager whose control copy starts as p. The engines
// must already hold an equal copy.
func NewManager(p pattern.Pattern, a AudioEngine, c ClockEngine) *Manager {
	return &Manager{pat: p.Clone(), audio: a, clock: c}
}

// Play starts the transport
func (m *Manager) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sendAudio(audio.Play{}); err != nil {
		return err
	}
	m.playing = true
	return m.sendTransport()
}

// Stop stops the transport
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sendAudio(audio.Stop{}); err != nil {
		return err
	}
	m.playing = false
	return m.sendTransport()
}

// TogglePlay flips the transport.
func (m *Manager) TogglePlay() error {
	m.mu.Lock()
	playing := m.playing
	m.mu.Unlock()
	if playing {
		return m.Stop()
	}
	return m.Play()
}

// SetTempo sets the BPM, clamped to MinTempo..MaxTempo.
func (m *Manager) SetTempo(bpm float32) error {
	if bpm < MinTempo {
		bpm = MinTempo
	}
	if bpm > MaxTempo {
		bpm = MaxTempo
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sendAudio(audio.SetTempo{BPM: bpm}); err != nil {
		return err
	}
	m.pat.BPM = bpm
	return m.syncClock()
}

// SetGlobalVolume is forwarded to the kernel, which stores it.
func (m *Manager) SetGlobalVolume(v float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendAudio(audio.SetGlobalVolume{Volume: v})
}

// ToggleStep flips a step of subtrack 0 between no trigger and a note.
func (m *Manager) ToggleStep(track, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.pat.Step(track, step)
	if s == nil {
		return fmt.Errorf("toggle step %d/%d: %w", track, step, ErrOutOfRange)
	}
	if err := m.sendAudio(audio.ToggleStep{Track: track, Step: step}); err != nil {
		return err
	}
	if s.Trig == pattern.TrigNone {
		s.Trig = pattern.TrigNote
	} else {
		s.Trig = pattern.TrigNone
	}
	return m.syncClock()
}

// SetParamLock sets (or, with an unset lock, clears) a parameter lock on a
// step of subtrack 0.
func (m *Manager) SetParamLock(track, step, param int, value pattern.Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.pat.Step(track, step)
	if s == nil || param < 0 || param >= pattern.NumParams {
		return fmt.Errorf("param lock %d/%d/%d: %w", track, step, param, ErrOutOfRange)
	}
	cmd := audio.SetParamLock{Track: track, Step: step, Param: param, Value: value}
	if err := m.sendAudio(cmd); err != nil {
		return err
	}
	s.Locks[param] = value
	return m.syncClock()
}

// SetLFOShape replaces an LFO shape. Only the clock engine evaluates LFOs.
func (m *Manager) SetLFOShape(track, lfo int, shape pattern.Shape) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.pat.LFO(track, lfo)
	if l == nil {
		return fmt.Errorf("lfo shape %d/%d: %w", track, lfo, ErrOutOfRange)
	}
	l.Shape = shape
	return m.sendClock(SetLFOShape{Track: track, LFO: lfo, Shape: shape})
}

// SetLFODesignerValue sets one breakpoint of a designer LFO.
func (m *Manager) SetLFODesignerValue(track, lfo, step int, value float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.pat.LFO(track, lfo)
	if l == nil || step < 0 || step >= pattern.DesignerPoints {
		return fmt.Errorf("lfo point %d/%d/%d: %w", track, lfo, step, ErrOutOfRange)
	}
	if l.Shape.Kind != pattern.ShapeDesigner {
		return fmt.Errorf("lfo point %d/%d: shape is %s, not designer", track, lfo, l.Shape.Kind)
	}
	l.Shape.Points[step] = value
	return m.sendClock(SetLFODesignerValue{Track: track, LFO: lfo, Step: step, Value: value})
}

// LoadPattern validates p and hands a copy to both engines.
func (m *Manager) LoadPattern(p pattern.Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replace(p.Clone())
}

// AddTrack appends a default track and returns its index.
func (m *Manager) AddTrack() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pat.Clone()
	id := p.AddTrack()
	return id, m.replace(p)
}

// RemoveTrack deletes a track. The last track cannot be removed.
func (m *Manager) RemoveTrack(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pat.Clone()
	if err := p.RemoveTrack(i); err != nil {
		return err
	}
	return m.replace(p)
}

// Sync retries a pattern update the clock engine missed. Call it from the
// control loop; it is a no-op when both engines are current.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transportStale {
		if err := m.sendTransport(); err != nil {
			return err
		}
	}
	if m.clockStale {
		return m.syncClock()
	}
	return nil
}

func (m *Manager) sendTransport() error {
	err := m.sendClock(SetTransport{Playing: m.playing})
	m.transportStale = err != nil
	return err
}

// Pattern returns a copy of the control pattern.
func (m *Manager) Pattern() pattern.Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pat.Clone()
}

// Tempo is the control-side BPM.
func (m *Manager) Tempo() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pat.BPM
}

// State is the latest snapshot published by the audio kernel.
func (m *Manager) State() audio.Snapshot {
	return m.audio.Snapshot()
}

// replace swaps the whole pattern in both engines. The control copy only
// changes once the kernel accepted it.
func (m *Manager) replace(p pattern.Pattern) error {
	if err := m.sendAudio(audio.ReplacePattern{Pattern: p.Clone()}); err != nil {
		return err
	}
	m.pat = p
	return m.syncClock()
}

func (m *Manager) syncClock() error {
	if err := m.sendClock(UpdatePattern{Pattern: m.pat.Clone()}); err != nil {
		return err
	}
	m.clockStale = false
	return nil
}

func (m *Manager) sendAudio(cmd audio.Command) error {
	if err := m.audio.Send(cmd); err != nil {
		debug.Log("manager", "audio queue rejected %T: %v", cmd, err)
		return fmt.Errorf("audio %T: %w", cmd, err)
	}
	return nil
}

// sendClock marks the clock engine stale on failure so the next Sync or edit
// resends the whole pattern.
func (m *Manager) sendClock(cmd Command) error {
	if err := m.clock.Send(cmd); err != nil {
		m.clockStale = true
		debug.Log("manager", "clock queue rejected %T: %v", cmd, err)
		return fmt.Errorf("clock %T: %w", cmd, err)
	}
	return nil
}
