package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

// Print writes data as one JSON line, or text as-is in text mode.
func (f *OutputFormatter) Print(data any, text string) error {
	if f.Format == "json" {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		_, err = fmt.Fprintln(f.Writer, string(encoded))
		return err
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}
