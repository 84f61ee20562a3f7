package vsenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/logging"
	"github.com/ozacod/cppenv/pkg/config"
)

// EnvSeparator splits the before and after blocks of a capture script.
const EnvSeparator = "---ENV_SEPARATOR---"

// BatchTimeout bounds every vcvarsall invocation.
const BatchTimeout = 60 * time.Second

// Var is one captured environment variable.
type Var struct {
	Key   string
	Value string
}

// Env is a set of variables sorted by key.
type Env []Var

// Get returns the value of key.
func (e Env) Get(key string) (string, bool) {
	for _, v := range e {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// runBatch executes a .bat file through cmd.exe. It is swapped out in tests.
var runBatch = func(ctx context.Context, script string) (stdout, stderr []byte, err error) {
	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, "cmd.exe", "/C", script)
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err = cmd.Run()
	return out.Bytes(), errOut.Bytes(), err
}

// ParseEnvBlock parses `set` output. Keys are upper-cased and lines without
// '=' or with an empty key are ignored.
func ParseEnvBlock(block string) map[string]string {
	env := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		env[strings.ToUpper(key)] = value
	}
	return env
}

// DiffEnv returns every variable of after that is new or changed compared to before.
func DiffEnv(before, after map[string]string) Env {
	var diff Env
	for k, v := range after {
		if old, ok := before[k]; ok && old == v {
			continue
		}
		diff = append(diff, Var{Key: k, Value: v})
	}
	sort.Slice(diff, func(i, j int) bool { return diff[i].Key < diff[j].Key })
	return diff
}

func vcvarsCall(entry *config.Entry) string {
	call := fmt.Sprintf("call \"%s\" %s", entry.VcvarsallPath, entry.Architecture)
	if entry.VcvarsVer != "" {
		call += " -vcvars_ver=" + entry.VcvarsVer
	}
	return call
}

func batchFile(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

// runScript writes lines to a temporary .bat named name, runs it under
// BatchTimeout and removes it.
func runScript(ctx context.Context, name string, lines ...string) (string, string, error) {
	script := filepath.Join(os.TempDir(), fmt.Sprintf("%s_%d.bat", name, os.Getpid()))
	if err := os.WriteFile(script, batchFile(lines...), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", script, err)
	}
	defer os.Remove(script)

	ctx, cancel := context.WithTimeout(ctx, BatchTimeout)
	defer cancel()

	logging.L().Debug().Str("script", script).Msg("running batch file")
	stdout, stderr, err := runBatch(ctx, script)
	out := strings.ToValidUTF8(string(stdout), "\uFFFD")
	errOut := strings.ToValidUTF8(string(stderr), "\uFFFD")
	if ctx.Err() != nil {
		return out, errOut, fmt.Errorf("%s timed out after %s: %w", script, BatchTimeout, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, errOut, fmt.Errorf("batch file exited with code %d: %w", exitErr.ExitCode(), err)
		}
		return out, errOut, fmt.Errorf("failed to run batch file: %w", err)
	}
	return out, errOut, nil
}

// CaptureEnv runs vcvarsall for entry and returns the variables it adds or changes.
func CaptureEnv(ctx context.Context, entry *config.Entry) (Env, error) {
	if !fsutil.IsFile(entry.VcvarsallPath) {
		return nil, fmt.Errorf("vcvarsall.bat not found: %s", entry.VcvarsallPath)
	}

	out, _, err := runScript(ctx, "vstemp_env",
		"@echo off",
		"chcp 65001 > nul",
		"set",
		"echo "+EnvSeparator,
		vcvarsCall(entry),
		"set",
	)
	if err != nil {
		return nil, fmt.Errorf("vcvarsall failed: %w", err)
	}

	before, after, ok := strings.Cut(out, EnvSeparator)
	if !ok {
		return nil, fmt.Errorf("vcvarsall output has no %s marker", EnvSeparator)
	}
	env := DiffEnv(ParseEnvBlock(before), ParseEnvBlock(after))
	if len(env) == 0 {
		logging.L().Warn().Str("entry", entry.ID).Msg("vcvarsall changed no environment variables")
	}
	return env, nil
}

// RunInEnv runs argv after vcvarsall for entry and returns its output.
func RunInEnv(ctx context.Context, entry *config.Entry, argv []string) (string, string, error) {
	if entry.VcvarsallPath == "" || entry.Architecture == "" {
		return "", "", fmt.Errorf("environment %q has no vcvarsall path or architecture", entry.ID)
	}

	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = `"` + a + `"`
	}
	return runScript(ctx, "vs_cmd_runner",
		"@echo off",
		"chcp 65001 > nul",
		vcvarsCall(entry),
		strings.Join(quoted, " "),
	)
}
