package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderPad renders a single colored pad
func RenderPad(color lipgloss.Color, lit bool) string {
	style := lipgloss.NewStyle().Foreground(color)
	if lit {
		return style.Render("■")
	}
	return style.Render("□")
}

// RenderTriggers renders one pad per track, lit when the track fired during
// the last audio block.
func RenderTriggers(triggered []bool, on, off lipgloss.Color) string {
	var out strings.Builder
	for i, lit := range triggered {
		if i > 0 {
			out.WriteString(" ")
		}
		c := off
		if lit {
			c = on
		}
		out.WriteString(RenderPad(c, lit))
	}
	return out.String()
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
