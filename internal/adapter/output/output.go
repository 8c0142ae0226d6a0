// Package output provides output formatters for notifications.
package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/nudge/internal/model"
)

// Formatter formats notifications for output.
type Formatter interface {
	// Format writes formatted notifications to the writer.
	Format(w io.Writer, notifications []model.Notification) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// Formats returns the supported format names.
func Formats() []FormatType {
	return []FormatType{FormatPlain, FormatJSON, FormatYAML}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template      string // Custom text/template for plain format
	ShowIndex     bool   // Show 1-based index prefix
	ShowTime      bool   // Show relative creation time
	MessageMaxLen int    // Maximum message length (0 = unlimited)
}

// DefaultFormatterOptions returns sensible defaults for plain output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:     true,
		ShowTime:      true,
		MessageMaxLen: 80,
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) (Formatter, error) {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(), nil
	case FormatYAML:
		return NewYAMLFormatter(), nil
	case FormatPlain, "":
		return NewPlainFormatter(opts)
	default:
		return nil, fmt.Errorf("unknown format %q, must be one of: %v", format, Formats())
	}
}
