package pattern

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// SMFResolution is the tick resolution of exported files.
const SMFResolution = smf.MetricTicks(960)

type smfEvent struct {
	tick uint32
	on   bool
	msg  midi.Message
}

// ExportSMF renders MasterLength steps of p as a Standard MIDI File. The
// first SMF track carries the tempo, then there is one SMF track per pattern
// track on channel id&0x0F. Tracks shorter than the master length loop the
// same way the clock engine plays them.
func ExportSMF(w io.Writer, p *Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	f := smf.New()
	f.TimeFormat = SMFResolution

	var tempo smf.Track
	tempo.Add(0, smf.MetaTempo(float64(p.BPM)))
	tempo.Close(0)
	if err := f.Add(tempo); err != nil {
		return fmt.Errorf("export tempo track: %w", err)
	}

	steps := int(p.MasterLength)
	if steps == 0 {
		steps = DefaultSteps
	}
	for i := range p.Tracks {
		if err := f.Add(smfTrack(&p.Tracks[i], steps)); err != nil {
			return fmt.Errorf("export track %d: %w", i, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

func smfTrack(t *Track, steps int) smf.Track {
	sixteenth := SMFResolution.Ticks16th()
	ch := uint8(t.ID) & 0x0F
	count := t.StepCount()

	var events []smfEvent
	for i := 0; i < steps && count > 0; i++ {
		idx := i % count
		at := uint32(i) * sixteenth
		for _, sub := range t.Subtracks {
			if idx >= len(sub.Steps) {
				continue
			}
			st := sub.Steps[idx]
			if st.Trig == TrigNone {
				continue
			}
			dur := uint32(float32(sixteenth) * st.Length)
			if dur == 0 {
				dur = 1
			}
			events = append(events,
				smfEvent{tick: at, on: true, msg: midi.NoteOn(ch, st.Note, st.Velocity)},
				smfEvent{tick: at + dur, on: false, msg: midi.NoteOff(ch, st.Note)},
			)
		}
	}

	// note-offs sort before note-ons on the same tick so repeated notes retrigger
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(fmt.Sprintf("track %d %s", t.ID, t.Machine)))
	var last uint32
	for _, ev := range events {
		tr.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	end := uint32(steps) * sixteenth
	if end < last {
		end = last
	}
	tr.Close(end - last)
	return tr
}
