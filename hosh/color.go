// SPDX-License-Identifier: MIT

package hosh

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colored renders the id with ANSI colors derived from the element itself,
// five digits per color segment. Two ids that share a prefix share the
// leading colors, which makes related values easy to spot in a terminal.
// Output degrades to the plain id when the terminal has no color support.
func (h Hosh) Colored() string {
	id := h.ID()
	raw := h.bytes()
	var b strings.Builder
	for seg := 0; seg < 8; seg++ {
		part := id[seg*5 : seg*5+5]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(colorFor(raw, seg))))
		b.WriteString(style.Render(part))
	}
	return b.String()
}

// colorFor picks a 256-palette color for a segment, restricted to the
// 6x6x6 cube (16..231) and skipping the darkest shades.
func colorFor(raw []byte, seg int) int {
	v := int(raw[seg*3])<<8 | int(raw[seg*3+1])
	c := 16 + v%216
	// Avoid near-black cube entries that vanish on dark terminals.
	if c-16 < 36 {
		c += 36
	}
	return c
}

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Decolorize strips ANSI escape sequences, recovering the plain text that
// Colored (or Dict.Text) produced.
func Decolorize(s string) string {
	return ansiSeq.ReplaceAllString(s, "")
}
