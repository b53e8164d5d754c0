// Package oto connects an audio.Kernel to the sound card through
// github.com/ebitengine/oto/v3.
package oto

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Processor fills interleaved float frames. *audio.Kernel implements it.
type Processor interface {
	Process(out []float32, channels int)
}

// Config selects the device format.
type Config struct {
	SampleRate   int
	ChannelCount int
	BufferSize   time.Duration // zero lets oto pick
}

// Stream plays whatever the processor renders until Close.
type Stream struct {
	ctx    *oto.Context
	player *oto.Player
}

// Open creates the oto context, waits for the device and starts pulling
// frames from p.
func Open(cfg Config, p Processor) (*Stream, error) {
	if cfg.ChannelCount < 1 {
		return nil, fmt.Errorf("cannot open audio stream: %d channels", cfg.ChannelCount)
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.ChannelCount,
		Format:       oto.FormatFloat32LE,
		BufferSize:   cfg.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready

	player := ctx.NewPlayer(NewReader(p, cfg.ChannelCount))
	player.Play()
	return &Stream{ctx: ctx, player: player}, nil
}

// Err reports a playback error, if any.
func (s *Stream) Err() error {
	return s.player.Err()
}

// Close stops playback.
func (s *Stream) Close() error {
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	if err := s.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

// Reader adapts a Processor to the io.Reader oto pulls from. The float
// buffer is kept between calls.
type Reader struct {
	proc     Processor
	channels int
	frame    int // bytes per frame
	buf      []float32
}

// NewReader returns a reader producing float32 little-endian frames.
func NewReader(p Processor, channels int) *Reader {
	return &Reader{proc: p, channels: channels, frame: 4 * channels}
}

func (r *Reader) Read(b []byte) (int, error) {
	frames := len(b) / r.frame
	if frames == 0 {
		return 0, nil
	}
	n := frames * r.channels
	if cap(r.buf) < n {
		r.buf = make([]float32, n)
	}
	r.buf = r.buf[:n]
	r.proc.Process(r.buf, r.channels)
	for i, v := range r.buf {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return n * 4, nil
}
