package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var jsonOutput atomic.Bool

// Configure sets the global level and output format. Production uses JSON
// lines on stderr; anything else gets the console writer.
func Configure(env, level string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)
	jsonOutput.Store(env == "production")
	return nil
}

func New(module string) zerolog.Logger {
	return NewWithWriter(module, os.Stderr)
}

func NewWithWriter(module string, w io.Writer) zerolog.Logger {
	if jsonOutput.Load() {
		return zerolog.New(w).
			With().
			Timestamp().
			Str("module", module).
			Logger()
	}

	out := zerolog.ConsoleWriter{
		Out:           w,
		TimeFormat:    "15:04:05",
		PartsOrder:    []string{"time", "level", "module", "message"},
		FieldsExclude: []string{"module"},
	}

	out.FormatPartValueByName = func(i any, s string) string {
		if s == "module" && i != nil {
			return strings.ToUpper(fmt.Sprintf("%s", i))
		}
		return ""
	}

	return zerolog.New(out).
		With().
		Timestamp().
		Str("module", module).
		Logger()
}
