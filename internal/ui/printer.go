package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Printer centralizes output formatting for commands.
// - Respects --output (text|json|yaml)
// - Uses ColorConfig for styling when printing text
type Printer struct {
	format string
	out    io.Writer
	Colors *ColorConfig
}

func NewPrinter(format string) Printer {
	return Printer{format: format, out: os.Stdout, Colors: NewColorConfig()}
}

// WithWriter returns a copy of p writing to w.
func (p Printer) WithWriter(w io.Writer) Printer {
	p.out = w
	return p
}

// Writer returns the destination of p.
func (p Printer) Writer() io.Writer { return p.out }

// Structured reports whether output is json or yaml.
func (p Printer) Structured() bool { return p.format == "json" || p.format == "yaml" }

// Value renders v in the structured format. In text mode it falls back to json.
func (p Printer) Value(v any) error {
	if p.format == "yaml" {
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Textf prints formatted text (always text path).
func (p Printer) Textf(format string, a ...any) { fmt.Fprintf(p.out, format, a...) }

// Success prints a success line with themed prefix.
func (p Printer) Success(msg string) { fmt.Fprintln(p.out, p.Colors.Icon("success"), msg) }

// Info prints an informational line.
func (p Printer) Info(msg string) { fmt.Fprintln(p.out, p.Colors.Icon("info"), msg) }

// Warn prints a warning line.
func (p Printer) Warn(msg string) { fmt.Fprintln(p.out, p.Colors.Icon("warning"), msg) }

// Error prints an error line.
func (p Printer) Error(msg string) { fmt.Fprintln(p.out, p.Colors.Icon("error"), msg) }

// Section prints a section header with separator
func (p Printer) Section(title string) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.Colors.SubHeader(title))
	fmt.Fprintln(p.out, p.Colors.Separator(40))
}

// KeyValueLine prints a key-value pair with proper formatting
func (p Printer) KeyValueLine(key, value, colorType string) {
	var colored string
	switch colorType {
	case "blue":
		colored = p.Colors.Info(value)
	case "yellow":
		colored = p.Colors.Warning(value)
	case "green":
		colored = p.Colors.Success(value)
	case "red":
		colored = p.Colors.Error(value)
	case "dim":
		colored = p.Colors.Description(value)
	default:
		colored = p.Colors.Value(value)
	}
	fmt.Fprintf(p.out, "%s %s\n", p.Colors.Label(key+":"), colored)
}
