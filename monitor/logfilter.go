package monitor

import (
	"bytes"
	"io"

	"github.com/rs/zerolog"
)

// defaultAllowedErrors are the error-message substrings still emitted in
// production mode. Everything else is suppressed to cut incidental data
// leakage through log output. This is leak reduction, not access control.
var defaultAllowedErrors = []string{
	"network",
	"timeout",
	"unavailable",
}

// LogFilter is a zerolog LevelWriter that silences output in production
// mode. Levels below Error are dropped entirely; Error and above pass
// only when the event contains an allow-listed substring.
type LogFilter struct {
	out        io.Writer
	production bool
	allowed    []string
}

// NewLogFilter wraps out. Extra substrings extend the built-in allow list.
func NewLogFilter(out io.Writer, production bool, extra ...string) *LogFilter {
	return &LogFilter{
		out:        out,
		production: production,
		allowed:    append(append([]string{}, defaultAllowedErrors...), extra...),
	}
}

func (f *LogFilter) Write(p []byte) (int, error) {
	return f.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (f *LogFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if !f.production {
		return f.out.Write(p)
	}
	if level < zerolog.ErrorLevel {
		return len(p), nil
	}
	for _, sub := range f.allowed {
		if bytes.Contains(p, []byte(sub)) {
			return f.out.Write(p)
		}
	}
	return len(p), nil
}
