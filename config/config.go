package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AudioConfig selects the output stream format.
type AudioConfig struct {
	SampleRate   int           `yaml:"sample_rate"`
	Channels     int           `yaml:"channels"`
	BufferSize   time.Duration `yaml:"buffer_size,omitempty"` // zero lets the driver pick
	Disabled     bool          `yaml:"disabled,omitempty"`    // run MIDI only
	GlobalVolume float32       `yaml:"global_volume"`
}

// MIDIConfig selects the clock engine output.
type MIDIConfig struct {
	PortName    string        `yaml:"port,omitempty"` // substring match; empty picks virtual or first
	VirtualName string        `yaml:"virtual_port,omitempty"`
	DriftWarn   time.Duration `yaml:"drift_warn"`
	Disabled    bool          `yaml:"disabled,omitempty"` // run audio only
}

// EngineConfig sizes the command queues.
type EngineConfig struct {
	AudioQueue int `yaml:"audio_queue"`
	MIDIQueue  int `yaml:"midi_queue"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	PollRate  int     `yaml:"poll_rate"` // snapshot polls per second
	LastTempo float32 `yaml:"last_tempo,omitempty"`
	Project   string  `yaml:"project,omitempty"`
	Palette   string  `yaml:"palette,omitempty"` // path to a GIMP .gpl file, empty for the built-in one
}

// LogConfig controls the debug log.
type LogConfig struct {
	Debug bool   `yaml:"debug"`
	Path  string `yaml:"path,omitempty"`
	Level string `yaml:"level,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Audio  AudioConfig  `yaml:"audio"`
	MIDI   MIDIConfig   `yaml:"midi"`
	Engine EngineConfig `yaml:"engine"`
	UI     UIConfig     `yaml:"ui"`
	Log    LogConfig    `yaml:"log"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:   44100,
			Channels:     2,
			GlobalVolume: 1,
		},
		MIDI: MIDIConfig{
			VirtualName: "go-flux",
			DriftWarn:   500 * time.Microsecond,
		},
		Engine: EngineConfig{
			AudioQueue: 256,
			MIDIQueue:  256,
		},
		UI: UIConfig{
			PollRate:  60,
			LastTempo: 120,
		},
		Log: LogConfig{
			Level: "debug",
		},
	}
}

// Validate rejects values the engines cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d out of range", c.Audio.SampleRate))
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 8 {
		errs = append(errs, fmt.Errorf("audio.channels %d out of range", c.Audio.Channels))
	}
	if c.MIDI.DriftWarn <= 0 {
		errs = append(errs, fmt.Errorf("midi.drift_warn must be positive"))
	}
	if c.Engine.AudioQueue < 1 || c.Engine.MIDIQueue < 1 {
		errs = append(errs, fmt.Errorf("engine queue sizes must be positive"))
	}
	if c.UI.PollRate < 1 {
		errs = append(errs, fmt.Errorf("ui.poll_rate must be positive"))
	}
	return errors.Join(errs...)
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-flux"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from the default path, or returns defaults if not
// found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. Fields missing from the file keep their
// defaults; a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
