package midi

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// Event is a 3-byte channel message. For CC, Note holds the controller
// number and Velocity the value.
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8 // 0-15
	Note     uint8
	Velocity uint8
}

// TrackChannel maps a track id to its MIDI channel.
func TrackChannel(id int) uint8 {
	return uint8(id) & 0x0F
}

func NoteOnEvent(ch, note, velocity uint8) Event {
	return Event{Type: NoteOn, Channel: ch & 0x0F, Note: note & 0x7F, Velocity: velocity & 0x7F}
}

func NoteOffEvent(ch, note uint8) Event {
	return Event{Type: NoteOff, Channel: ch & 0x0F, Note: note & 0x7F}
}

func CCEvent(ch, controller, value uint8) Event {
	return Event{Type: CC, Channel: ch & 0x0F, Note: controller & 0x7F, Velocity: value & 0x7F}
}

// Bytes returns the wire form: status|channel, data1, data2.
func (e Event) Bytes() [3]byte {
	return [3]byte{e.Type | e.Channel&0x0F, e.Note, e.Velocity}
}

// ScaleBipolar maps a modulation value in [-1, 1] to a CC value, clamping
// anything outside.
func ScaleBipolar(v float32) uint8 {
	x := (v + 1) / 2 * 127
	switch {
	case !(x > 0):
		return 0
	case x > 127:
		return 127
	}
	return uint8(x)
}
