// Package output renders command results as YAML or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat resolves a --format value. An empty value picks JSON when
// stdout is piped and YAML on a terminal.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		if IsOutputPiped() {
			return FormatJSON, nil
		}
		return FormatYAML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use yaml or json)", value)
	}
}

// IsOutputPiped reports whether stdout is not a terminal.
func IsOutputPiped() bool {
	return !term.IsTerminal(int(os.Stdout.Fd()))
}

// Printer writes values in one format.
type Printer struct {
	Out    io.Writer
	Format Format
	Pretty bool
}

// NewPrinter creates a printer writing to out; a nil out means stdout.
func NewPrinter(out io.Writer, format Format) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{Out: out, Format: format}
}

// Print serializes v in the printer's format.
func (p *Printer) Print(v interface{}) error {
	switch p.Format {
	case FormatJSON:
		return writeJSON(p.Out, v, p.Pretty)
	case FormatYAML, "":
		return writeYAML(p.Out, v)
	default:
		return fmt.Errorf("unsupported output format: %s", p.Format)
	}
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}
