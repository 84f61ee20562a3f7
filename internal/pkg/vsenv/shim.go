package vsenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/ozacod/cppenv/pkg/config"
)

// ActiveInfoFile records which environment the shims were generated for.
const ActiveInfoFile = "_active_environment_info.json"

// ErrNoShimDirectory is returned when shim_directory is not configured.
var ErrNoShimDirectory = errors.New("shim directory is not set (run 'cppenv vsenv set-dir')")

// ShimScript returns a .bat that sets env and forwards its arguments to target.
// An empty env yields an empty script.
func ShimScript(env Env, target string) string {
	if len(env) == 0 {
		return ""
	}

	lines := []string{"@echo off"}
	for _, v := range env {
		lines = append(lines, fmt.Sprintf(`SET "%s=%s"`, v.Key, v.Value))
	}
	lines = append(lines, fmt.Sprintf(`"%s" %%*`, target), "exit /b %ERRORLEVEL%")
	return string(batchFile(lines...))
}

// ShimDir resolves the configured shim directory.
func ShimDir(cfg *config.GlobalConfig) (string, error) {
	if cfg.ShimDirectory == "" {
		return "", ErrNoShimDirectory
	}
	return filepath.Abs(cfg.ShimDirectory)
}

// ApplyShims regenerates the shim directory for entry and returns the number
// of shims written.
func ApplyShims(cfg *config.GlobalConfig, entry *config.Entry, env Env) (int, error) {
	dir, err := ShimDir(cfg)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	old, err := filepath.Glob(filepath.Join(dir, "*.bat"))
	if err != nil {
		return 0, err
	}
	keep := cfg.RemoveScriptName + ".bat"
	for _, f := range old {
		if cfg.RemoveScriptName != "" && strings.EqualFold(filepath.Base(f), keep) {
			continue
		}
		if err := os.Remove(f); err != nil {
			return 0, fmt.Errorf("failed to remove old shim %s: %w", f, err)
		}
	}

	count := 0
	write := func(name, target string) error {
		p := filepath.Join(dir, name+".bat")
		if err := fsutil.WriteFile(p, []byte(ShimScript(env, target)), 0644); err != nil {
			return fmt.Errorf("failed to write shim %s: %w", p, err)
		}
		count++
		return nil
	}
	for _, exe := range cfg.CommonExecutables {
		if err := write(exe, exe+".exe"); err != nil {
			return count, err
		}
	}
	for _, x := range cfg.ExtraExecutables {
		if err := write(x.Name, x.Path); err != nil {
			return count, err
		}
	}

	displayName := entry.DisplayName
	if displayName == "" {
		displayName = entry.ID
	}
	info := jsonx.NewObject()
	info.Set("active_id", entry.ID)
	info.Set("displayName", displayName)
	info.Set("shim_directory", dir)
	if err := jsonx.WriteFile(filepath.Join(dir, ActiveInfoFile), info, "  "); err != nil {
		return count, err
	}
	return count, nil
}

// CleanupShims deletes the .bat and .json files in dir and returns how many
// were removed. A missing dir removes nothing.
func CleanupShims(dir string) (int, error) {
	if !fsutil.Exists(dir) {
		return 0, nil
	}

	var errs []error
	count := 0
	for _, pattern := range []string{"*.bat", "*.json"} {
		files, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return count, err
		}
		for _, f := range files {
			if err := os.Remove(f); err != nil {
				errs = append(errs, err)
				continue
			}
			count++
		}
	}
	return count, errors.Join(errs...)
}
