package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-flux/audio"
	audiooto "go-flux/audio/oto"
	"go-flux/config"
	"go-flux/debug"
	"go-flux/midi"
	"go-flux/pattern"
	"go-flux/sequencer"
	"go-flux/theme"
	"go-flux/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/go-flux/config.yaml)")
		port       = flag.String("port", "", "MIDI output port name (substring match)")
		project    = flag.String("project", "", "project to load and save into")
		debugLog   = flag.Bool("debug", false, "write the debug log")
		noAudio    = flag.Bool("no-audio", false, "run without the audio device")
		noMIDI     = flag.Bool("no-midi", false, "run without MIDI output")
	)
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.MIDI.PortName = *port
	}
	if *project != "" {
		cfg.UI.Project = *project
	}
	cfg.Log.Debug = cfg.Log.Debug || *debugLog
	cfg.Audio.Disabled = cfg.Audio.Disabled || *noAudio
	cfg.MIDI.Disabled = cfg.MIDI.Disabled || *noMIDI

	if cfg.Log.Debug {
		path := cfg.Log.Path
		if path == "" {
			path = debug.DefaultPath()
		}
		if err := debug.Enable(path); err != nil {
			return err
		}
		defer debug.Disable()
		if cfg.Log.Level != "" {
			if err := debug.SetLevel(cfg.Log.Level); err != nil {
				return err
			}
		}
	}

	store, err := pattern.DefaultStore()
	if err != nil {
		return err
	}
	pat := pattern.Default()
	if cfg.UI.LastTempo > 0 {
		pat.BPM = cfg.UI.LastTempo
	}
	if cfg.UI.Project != "" {
		if p, err := store.Load(cfg.UI.Project, ""); err == nil {
			pat = p
			debug.Log("main", "loaded project %s", cfg.UI.Project)
		} else {
			debug.Log("main", "starting %s from the default pattern: %v", cfg.UI.Project, err)
		}
	}

	kernel := audio.NewKernel(float64(cfg.Audio.SampleRate), pat.Clone(), cfg.Engine.AudioQueue, nil)
	if !cfg.Audio.Disabled {
		stream, err := audiooto.Open(audiooto.Config{
			SampleRate:   cfg.Audio.SampleRate,
			ChannelCount: cfg.Audio.Channels,
			BufferSize:   cfg.Audio.BufferSize,
		}, kernel)
		if err != nil {
			return err
		}
		defer stream.Close()
	}

	sink := midi.Discard
	if !cfg.MIDI.Disabled {
		out, err := midi.OpenOut(cfg.MIDI.PortName, cfg.MIDI.VirtualName)
		if err != nil {
			return err
		}
		defer out.Close()
		debug.Log("main", "MIDI out: %s", out.Name())
		sink = out
	}

	engine := sequencer.NewEngine(pat.Clone(), sink, sequencer.EngineConfig{
		QueueSize: cfg.Engine.MIDIQueue,
		DriftWarn: cfg.MIDI.DriftWarn,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()

	manager := sequencer.NewManager(pat, kernel, engine)
	if err := manager.SetGlobalVolume(cfg.Audio.GlobalVolume); err != nil {
		return err
	}

	var palette *theme.Palette
	if cfg.UI.Palette != "" {
		if palette, err = theme.LoadGPL(cfg.UI.Palette); err != nil {
			return err
		}
	}

	projectName := cfg.UI.Project
	if projectName == "" {
		projectName = "untitled"
	}
	m := tui.NewModel(manager, store, projectName, theme.New(palette), cfg.UI.PollRate)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	cancel()
	<-done
	stats := engine.Stats()
	debug.Log("main", "clock stopped after %d ticks, last drift %v, %d resyncs", stats.Ticks, stats.Drift, stats.Resyncs)

	cfg.UI.LastTempo = manager.Tempo()
	cfg.UI.Project = projectName
	if *configPath != "" {
		return cfg.SaveFile(*configPath)
	}
	return cfg.Save()
}
