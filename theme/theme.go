package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-flux/pattern"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Grid states (no cursor)
	StepEmpty    rune // · no trigger
	StepNote     rune // ● note trigger
	StepLock     rune // ◆ lock-only trigger
	StepPlayhead rune // ▶ current playing
	StepBeyond   rune // - past track length

	// Grid states (with cursor)
	CursorEmpty    rune // ○ cursor on empty
	CursorNote     rune // ◉ cursor on a trigger
	CursorPlayhead rune // ▷ cursor on playhead
	CursorBeyond   rune // □ cursor beyond length

	// LFO designer bars, low to high
	Bars []rune
}

// New returns a theme over palette, or the built-in one when nil.
func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			StepEmpty:    '·',
			StepNote:     '●',
			StepLock:     '◆',
			StepPlayhead: '▶',
			StepBeyond:   '-',

			CursorEmpty:    '○',
			CursorNote:     '◉',
			CursorPlayhead: '▷',
			CursorBeyond:   '□',

			Bars: []rune(" ▁▂▃▄▅▆▇█"),
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Cursor() lipgloss.Color  { return t.Color(RoleCursor) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return Hex(t.Palette.Lookup(norm))
}

// StepRune picks the grid glyph for a step. beyond marks cells past the track
// length.
func (t *Theme) StepRune(trig pattern.TrigType, playhead, cursor, beyond bool) rune {
	s := t.Symbols
	switch {
	case beyond && cursor:
		return s.CursorBeyond
	case beyond:
		return s.StepBeyond
	case playhead && cursor:
		return s.CursorPlayhead
	case playhead:
		return s.StepPlayhead
	case trig != pattern.TrigNone && cursor:
		return s.CursorNote
	case cursor:
		return s.CursorEmpty
	case trig == pattern.TrigLock:
		return s.StepLock
	case trig != pattern.TrigNone:
		return s.StepNote
	}
	return s.StepEmpty
}

// Bar maps a bipolar value (-1..1) onto a bar glyph.
func (t *Theme) Bar(v float32) rune {
	bars := t.Symbols.Bars
	i := int((v+1)/2*float32(len(bars)-1) + 0.5)
	if i < 0 {
		i = 0
	}
	if i >= len(bars) {
		i = len(bars) - 1
	}
	return bars[i]
}

// Hex formats c as a lipgloss color.
func Hex(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
