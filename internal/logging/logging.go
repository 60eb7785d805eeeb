// Package logging configures the zerolog logger shared by the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by FromEnv.
const (
	EnvLevel   = "LIVECHAT_LOG_LEVEL"
	EnvNoColor = "LIVECHAT_LOG_NOCOLOR"
	EnvFile    = "LIVECHAT_LOG_FILE"
)

// Profile selects the defaults applied before environment overrides.
type Profile int

const (
	// Runtime logs at info with RFC3339 timestamps.
	Runtime Profile = iota
	// Test logs at debug without timestamps.
	Test
)

// Settings are the environment overrides.
type Settings struct {
	Level   string
	NoColor bool
	File    string
}

// FromEnv reads Settings using lookup, normally os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) Settings {
	var s Settings
	if v, ok := lookup(EnvLevel); ok {
		s.Level = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvNoColor); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		s.NoColor = err != nil || b
	}
	if v, ok := lookup(EnvFile); ok {
		s.File = strings.TrimSpace(v)
	}
	return s
}

// New builds a logger writing to out.
func New(app string, profile Profile, s Settings, out io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if profile == Test {
		level = zerolog.DebugLevel
	}
	if s.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid %s %q: %w", EnvLevel, s.Level, err)
		}
		level = parsed
	}

	writer := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    s.NoColor,
		TimeFormat: time.RFC3339,
	}
	if profile == Test {
		writer.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(writer).Level(level).With()
	if profile == Runtime {
		ctx = ctx.Timestamp()
	}
	return ctx.Str("app", app).Logger(), nil
}

var (
	configureOnce sync.Once
	configured    zerolog.Logger
	closer        io.Closer
)

// Configure installs the process-wide logger once and returns it. Output
// goes to the file named by LIVECHAT_LOG_FILE when set, otherwise to
// fallback. Later calls return the first logger.
func Configure(app string, profile Profile, fallback io.Writer) zerolog.Logger {
	configureOnce.Do(func() {
		s := FromEnv(os.LookupEnv)
		out := fallback
		if s.File != "" {
			f, err := os.OpenFile(s.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				fmt.Fprintf(os.Stderr, "log file: %v\n", err)
			} else {
				out, closer = f, f
				s.NoColor = true
			}
		}
		logger, err := New(app, profile, s, out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			s.Level = ""
			logger, _ = New(app, profile, s, out)
		}
		configured = logger
		log.Logger = logger
	})
	return configured
}

// Close releases the log file opened by Configure, if any.
func Close() error {
	if closer == nil {
		return nil
	}
	return closer.Close()
}
