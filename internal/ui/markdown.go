package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"
)

// RenderMarkdown renders release notes for the terminal. Without colors,
// or if glamour fails, it falls back to plain word wrapping.
func RenderMarkdown(input string, width int, colors bool) string {
	if width <= 0 {
		width = 80
	}
	fallback := strings.TrimSpace(wordwrap.String(input, width))
	if !colors {
		return fallback
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	out, err := renderer.Render(input)
	if err != nil {
		return fallback
	}
	return strings.TrimSpace(out)
}
