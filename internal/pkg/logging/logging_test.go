package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetupLevel(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		env      string
		expected zerolog.Level
	}{
		{name: "Default is info", expected: zerolog.InfoLevel},
		{name: "Verbose is debug", verbose: true, expected: zerolog.DebugLevel},
		{name: "Env overrides verbose", verbose: true, env: "warn", expected: zerolog.WarnLevel},
		{name: "Invalid env is ignored", env: "loud", expected: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(LevelEnv, tt.env)
			var buf bytes.Buffer
			l := Setup(&buf, tt.verbose)
			assert.Equal(t, tt.expected, l.GetLevel())
			assert.Same(t, l, L())
		})
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	t.Setenv(LevelEnv, "")
	var buf bytes.Buffer
	l := Setup(&buf, false)

	l.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	l.Info().Str("file", "tasks.json").Msg("generated")
	assert.Contains(t, buf.String(), "generated")
	assert.Contains(t, buf.String(), "tasks.json")
}
