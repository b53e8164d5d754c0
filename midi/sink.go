package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Sink receives raw MIDI messages from the clock engine. Send is called from
// the clock goroutine only and must not retain msg.
type Sink interface {
	Send(msg []byte) error
}

// PortSink writes straight to a driver output port.
type PortSink struct {
	out drivers.Out
}

// NewPortSink opens out if needed.
func NewPortSink(out drivers.Out) (*PortSink, error) {
	if !out.IsOpen() {
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("open output %s: %w", out, err)
		}
	}
	return &PortSink{out: out}, nil
}

func (s *PortSink) Send(msg []byte) error {
	return s.out.Send(msg)
}

// Name is the port name.
func (s *PortSink) Name() string {
	return s.out.String()
}

func (s *PortSink) Close() error {
	return s.out.Close()
}

// Recorder keeps a copy of every message it is sent. It stands in for a port
// in tests and headless runs.
type Recorder struct {
	mu   sync.Mutex
	msgs []gomidi.Message
}

func (r *Recorder) Send(msg []byte) error {
	cp := make(gomidi.Message, len(msg))
	copy(cp, msg)
	r.mu.Lock()
	r.msgs = append(r.msgs, cp)
	r.mu.Unlock()
	return nil
}

// Messages returns the recorded messages in send order.
func (r *Recorder) Messages() []gomidi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]gomidi.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Events decodes the recorded channel messages, skipping anything else.
func (r *Recorder) Events() []Event {
	var events []Event
	for _, msg := range r.Messages() {
		var ch, a, b uint8
		switch {
		case msg.GetNoteOn(&ch, &a, &b):
			events = append(events, NoteOnEvent(ch, a, b))
		case msg.GetNoteOff(&ch, &a, &b):
			events = append(events, NoteOffEvent(ch, a))
		case msg.GetControlChange(&ch, &a, &b):
			events = append(events, CCEvent(ch, a, b))
		}
	}
	return events
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

type discard struct{}

func (discard) Send([]byte) error { return nil }

// Discard drops every message. Used when MIDI output is disabled.
var Discard Sink = discard{}
