package sequencer

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go-flux/debug"
	"go-flux/lockfree"
	"go-flux/midi"
	"go-flux/pattern"

	charmlog "github.com/charmbracelet/log"
)

// EngineConfig tunes the clock engine.
type EngineConfig struct {
	QueueSize int
	DriftWarn time.Duration // heartbeat drift above this is logged as a warning
}

// Stats are safe to read from any goroutine while the engine runs.
type Stats struct {
	Ticks   uint64        // clock ticks since Run started
	Drift   time.Duration // drift measured at the last heartbeat
	Resyncs uint64
	Errors  uint64 // failed sends to the MIDI sink
}

// Engine is the MIDI clock engine. It owns its own pattern copy, receives
// edits through a lock-free queue and writes notes and LFO CCs to a Sink from
// a dedicated OS thread.
type Engine struct {
	pat      pattern.Pattern
	bpm      float32
	playing  bool
	songTick uint64 // ticks since the transport started

	sink      midi.Sink
	commands  *lockfree.Queue[Command]
	applyFn   func(Command)
	driftWarn time.Duration
	log       *charmlog.Logger
	buf       [3]byte

	ticks   atomic.Uint64
	drift   atomic.Int64
	resyncs atomic.Uint64
	errors  atomic.Uint64
}

// NewEngine returns a stopped engine for p writing to sink.
func NewEngine(p pattern.Pattern, sink midi.Sink, cfg EngineConfig) *Engine {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	if cfg.DriftWarn <= 0 {
		cfg.DriftWarn = DefaultDriftWarn
	}
	e := &Engine{
		pat:       p,
		bpm:       p.BPM,
		sink:      sink,
		commands:  lockfree.NewQueue[Command](cfg.QueueSize),
		driftWarn: cfg.DriftWarn,
		log:       debug.Logger("clock"),
	}
	e.applyFn = e.apply
	return e
}

// Send enqueues cmd for the next tick. It never blocks; a full queue returns
// lockfree.ErrFull.
func (e *Engine) Send(cmd Command) error {
	return e.commands.Push(cmd)
}

// Run drives the clock until ctx is cancelled. It pins itself to an OS thread
// and asks for a higher scheduling priority on a best-effort basis.
func (e *Engine) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := raisePriority(); err != nil {
		e.log.Warn("could not raise clock thread priority", "err", err)
	} else {
		e.log.Info("clock thread priority raised")
	}

	clk := newTickClock()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("clock stopped", "ticks", e.ticks.Load())
			return
		default:
		}

		e.drain()
		if clk.next(TickPeriod(e.bpm)) {
			e.resyncs.Add(1)
			e.log.Warn("clock fell behind, resynchronized", "tick", e.ticks.Load())
		}
		e.process()

		n := e.ticks.Add(1)
		if n%heartbeatTicks == 0 {
			d := clk.lateness()
			e.drift.Store(int64(d))
			ms := float64(d.Microseconds()) / 1000
			if d > e.driftWarn {
				e.log.Warn("high jitter", "tick", n, "drift_ms", ms, "limit_ms", float64(e.driftWarn.Microseconds())/1000)
			} else {
				e.log.Debug("heartbeat", "tick", n, "drift_ms", ms)
			}
		}
	}
}

// Tick applies pending commands and processes one clock tick without
// waiting. Run must not be active.
func (e *Engine) Tick() {
	e.drain()
	e.process()
	e.ticks.Add(1)
}

// Pattern returns a copy of the engine's pattern. Run must not be active.
func (e *Engine) Pattern() pattern.Pattern {
	return e.pat.Clone()
}

// BPM is the engine's current tempo. Run must not be active.
func (e *Engine) BPM() float32 {
	return e.bpm
}

func (e *Engine) Stats() Stats {
	return Stats{
		Ticks:   e.ticks.Load(),
		Drift:   time.Duration(e.drift.Load()),
		Resyncs: e.resyncs.Load(),
		Errors:  e.errors.Load(),
	}
}

func (e *Engine) drain() {
	e.commands.Drain(e.applyFn)
}

func (e *Engine) apply(cmd Command) {
	switch c := cmd.(type) {
	case UpdatePattern:
		if len(c.Pattern.Tracks) == 0 {
			return
		}
		e.pat = c.Pattern
		if c.Pattern.BPM > 0 {
			e.bpm = c.Pattern.BPM
		}
	case SetLFOShape:
		if lfo := e.pat.LFO(c.Track, c.LFO); lfo != nil {
			lfo.Shape = c.Shape
		}
	case SetLFODesignerValue:
		lfo := e.pat.LFO(c.Track, c.LFO)
		if lfo == nil || lfo.Shape.Kind != pattern.ShapeDesigner {
			return
		}
		if c.Step >= 0 && c.Step < pattern.DesignerPoints {
			lfo.Shape.Points[c.Step] = c.Value
		}
	case SetTransport:
		if c.Playing && !e.playing {
			e.songTick = 0
		}
		e.playing = c.Playing
	}
}

// process emits the LFO CCs of the current tick and, on step boundaries, the
// notes of every track.
func (e *Engine) process() {
	if !e.playing {
		return
	}
	tick := e.songTick
	e.songTick++

	globalPhase := float32(tick%BarTicks) / BarTicks
	for ti := range e.pat.Tracks {
		tr := &e.pat.Tracks[ti]
		ch := midi.TrackChannel(tr.ID)
		for li := range tr.LFOs {
			lfo := &tr.LFOs[li]
			if lfo.Amount == 0 {
				continue
			}
			v := EvaluateLFO(lfo, globalPhase)
			e.send(midi.CCEvent(ch, lfo.Destination, midi.ScaleBipolar(v)))
		}
	}

	if tick%StepTicks != 0 {
		return
	}
	for ti := range e.pat.Tracks {
		tr := &e.pat.Tracks[ti]
		count := tr.StepCount()
		if count == 0 {
			continue
		}
		idx := int((tick / StepTicks) % uint64(count))
		ch := midi.TrackChannel(tr.ID)
		for si := range tr.Subtracks {
			steps := tr.Subtracks[si].Steps
			if idx >= len(steps) || steps[idx].Trig == pattern.TrigNone {
				continue
			}
			st := &steps[idx]
			// no sustain: the note is released right away
			e.send(midi.NoteOnEvent(ch, st.Note, st.Velocity))
			e.send(midi.NoteOffEvent(ch, st.Note))
		}
	}
}

func (e *Engine) send(ev midi.Event) {
	e.buf = ev.Bytes()
	if err := e.sink.Send(e.buf[:]); err != nil {
		e.errors.Add(1)
	}
}
