package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// LevelEnv overrides the log level chosen from the command line.
const LevelEnv = "CPPENV_LOG_LEVEL"

var (
	mu     sync.Mutex
	logger *zerolog.Logger
)

// L returns the process-wide logger, creating a quiet one on first use.
func L() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		l := newLogger(os.Stderr, zerolog.InfoLevel)
		logger = &l
	}
	return logger
}

// Setup replaces the process-wide logger. verbose selects debug level unless
// CPPENV_LOG_LEVEL names another one.
func Setup(w io.Writer, verbose bool) *zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if env := os.Getenv(LevelEnv); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}

	l := newLogger(w, level)
	mu.Lock()
	logger = &l
	mu.Unlock()
	return &l
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
