package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-flux/audio"
	audiooto "go-flux/audio/oto"
	"go-flux/debug"
	"go-flux/midi"
	"go-flux/pattern"
	"go-flux/sequencer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "clock":
		err = clockCheck(floatArg(2, 5), floatArg(3, 120))
	case "send":
		err = sendBars(stringArg(2, ""), floatArg(3, 4))
	case "export":
		err = exportSMF(stringArg(2, ""), stringArg(3, "pattern.mid"))
	case "tone":
		err = playTone(floatArg(2, 4))
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("go-flux test tools")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                   - List MIDI output ports")
	fmt.Println("  clock [secs] [bpm]     - Run the clock headless and report drift")
	fmt.Println("  send [port] [bars]     - Play a test pattern to a MIDI port")
	fmt.Println("  export [project] [out] - Write the newest save as a MIDI file")
	fmt.Println("  tone [secs]            - Play the test pattern through the audio device")
}

func stringArg(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func floatArg(i int, def float64) float64 {
	if len(os.Args) > i {
		if v, err := strconv.ParseFloat(os.Args[i], 64); err == nil {
			return v
		}
	}
	return def
}

// testPattern has a note on every step of track 0 and a sine LFO on track 1.
func testPattern(bpm float32) pattern.Pattern {
	p := pattern.Default()
	p.BPM = bpm
	for s := 0; s < pattern.DefaultSteps; s++ {
		st := p.Step(0, s)
		st.Trig = pattern.TrigNote
		st.Note = uint8(48 + (s%4)*7)
	}
	p.Tracks[1].LFOs[0].Shape = pattern.Shape{Kind: pattern.ShapeSine}
	p.Tracks[1].LFOs[0].Amount = 1
	return p
}

func listPorts() error {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")
	names, err := midi.ListPorts()
	if err != nil {
		return err
	}
	for i, n := range names {
		fmt.Printf("  %d: %s\n", i, n)
	}
	if len(names) == 0 {
		fmt.Println("  (none)")
	}
	return nil
}

// runClock plays p into sink for d and returns the engine stats.
func runClock(p pattern.Pattern, sink midi.Sink, d time.Duration) (sequencer.Stats, error) {
	e := sequencer.NewEngine(p, sink, sequencer.EngineConfig{})
	if err := e.Send(sequencer.SetTransport{Playing: true}); err != nil {
		return sequencer.Stats{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	e.Run(ctx)
	return e.Stats(), nil
}

func clockCheck(secs, bpm float64) error {
	debug.EnableWriter(os.Stderr)
	defer debug.Disable()

	d := time.Duration(secs * float64(time.Second))
	fmt.Printf("Running the clock for %v at %.1f BPM...\n", d, bpm)
	rec := &midi.Recorder{}
	start := time.Now()
	stats, err := runClock(testPattern(float32(bpm)), rec, d)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	var ons int
	for _, ev := range rec.Events() {
		if ev.Type == midi.NoteOn {
			ons++
		}
	}
	wantTicks := elapsed.Seconds() * bpm * sequencer.PPQN / 60
	fmt.Printf("ticks:    %d (expected %.0f)\n", stats.Ticks, wantTicks)
	fmt.Printf("notes:    %d\n", ons)
	fmt.Printf("drift:    %v at last heartbeat\n", stats.Drift)
	fmt.Printf("resyncs:  %d\n", stats.Resyncs)
	if stats.Drift > sequencer.DefaultDriftWarn || stats.Drift < -sequencer.DefaultDriftWarn {
		fmt.Println("WARNING: drift above threshold")
	}
	return nil
}

func sendBars(port string, bars float64) error {
	out, err := midi.OpenOut(port, "go-flux test")
	if err != nil {
		return err
	}
	defer out.Close()
	fmt.Printf("Sending to %s\n", out.Name())

	p := testPattern(pattern.DefaultBPM)
	d := time.Duration(bars * 4 * 60 / float64(p.BPM) * float64(time.Second))
	stats, err := runClock(p, out, d)
	if err != nil {
		return err
	}
	fmt.Printf("Done: %d ticks, %d send errors\n", stats.Ticks, stats.Errors)
	return nil
}

func exportSMF(project, path string) error {
	p := testPattern(pattern.DefaultBPM)
	if project != "" {
		store, err := pattern.DefaultStore()
		if err != nil {
			return err
		}
		if p, err = store.Load(project, ""); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pattern.ExportSMF(f, &p); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %d tracks to %s\n", len(p.Tracks), path)
	return nil
}

func playTone(secs float64) error {
	const sampleRate = 44100
	k := audio.NewKernel(sampleRate, testPattern(pattern.DefaultBPM), 16, nil)
	stream, err := audiooto.Open(audiooto.Config{SampleRate: sampleRate, ChannelCount: 2}, k)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := k.Send(audio.Play{}); err != nil {
		return err
	}
	fmt.Printf("Playing for %.1fs...\n", secs)
	time.Sleep(time.Duration(secs * float64(time.Second)))
	if err := stream.Err(); err != nil {
		return err
	}
	s := k.Snapshot()
	fmt.Printf("Stopped on step %d\n", s.CurrentStep)
	return nil
}
