// Package vsenv discovers Visual Studio toolsets, captures the environment
// vcvarsall.bat produces and replays it through .bat shims or compiled
// wrapper executables.
package vsenv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/ozacod/cppenv/internal/pkg/logging"
	"github.com/ozacod/cppenv/pkg/config"
)

// ErrVswhereNotFound is returned when vswhere.exe cannot be located.
var ErrVswhereNotFound = errors.New("vswhere.exe not found")

var toolsetRe = regexp.MustCompile(`^(\d{2}\.\d{2})`)

// runVswhere is swapped out in tests.
var runVswhere = func(ctx context.Context, vswhere string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, vswhere, args...).Output()
}

// Catalog is the catalog block of a vswhere installation.
type Catalog struct {
	ProductLineVersion string `json:"productLineVersion"`
}

// Installation is one element of vswhere's JSON output.
type Installation struct {
	InstallationPath         string  `json:"installationPath"`
	ResolvedInstallationPath string  `json:"resolvedInstallationPath"`
	DisplayName              string  `json:"displayName"`
	Catalog                  Catalog `json:"catalog"`
}

// Path prefers the resolved installation path.
func (i Installation) Path() string {
	if i.ResolvedInstallationPath != "" {
		return i.ResolvedInstallationPath
	}
	return i.InstallationPath
}

// Year returns the product line version as a number, or 0.
func (i Installation) Year() int {
	year, err := strconv.Atoi(i.Catalog.ProductLineVersion)
	if err != nil {
		return 0
	}
	return year
}

// FindVswhere returns the override when it is a file, then the installer
// location under Program Files (x86), then vswhere from PATH.
func FindVswhere(override string) (string, error) {
	if override != "" && fsutil.IsFile(override) {
		return override, nil
	}

	programFiles := os.Getenv("ProgramFiles(x86)")
	if programFiles == "" {
		programFiles = "C:/Program Files (x86)"
	}
	installed := filepath.Join(programFiles, "Microsoft Visual Studio", "Installer", "vswhere.exe")
	if fsutil.IsFile(installed) {
		return installed, nil
	}

	if p, err := exec.LookPath("vswhere"); err == nil {
		return p, nil
	}
	return "", ErrVswhereNotFound
}

// Installations lists every installation that carries the x86/x64 VC tools.
func Installations(ctx context.Context, vswhere string) ([]Installation, error) {
	args := []string{
		"-all",
		"-format", "json",
		"-utf8",
		"-products", "*",
		"-requires", "Microsoft.VisualStudio.Component.VC.Tools.x86.x64",
	}
	logging.L().Debug().Str("vswhere", vswhere).Strs("args", args).Msg("querying installations")

	out, err := runVswhere(ctx, vswhere, args...)
	if err != nil {
		return nil, fmt.Errorf("vswhere failed: %w", err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, nil
	}

	var installs []Installation
	if err := jsonx.Unmarshal(out, &installs); err != nil {
		return nil, fmt.Errorf("failed to parse vswhere output: %w", err)
	}
	return installs, nil
}

// ToolsetVersions returns the MM.mm versions found under VC/Tools/MSVC,
// newest first.
func ToolsetVersions(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := toolsetRe.FindStringSubmatch(e.Name())
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		versions = append(versions, m[1])
	}
	sort.Sort(sort.Reverse(sort.StringSlice(versions)))
	return versions
}

// GeneratorFor suggests the CMake generator for a Visual Studio year.
func GeneratorFor(year int) string {
	switch year {
	case 2022:
		return "Visual Studio 17 2022"
	case 2019:
		return "Visual Studio 16 2019"
	case 2017:
		return "Visual Studio 15 2017"
	default:
		return ""
	}
}

// Scan builds one entry per toolset and architecture of every installation
// and returns those whose id is not in existing.
func Scan(installs []Installation, archs []string, existing []config.Entry) []config.Entry {
	known := make(map[string]bool, len(existing))
	for _, e := range existing {
		known[e.ID] = true
	}

	var added []config.Entry
	for _, inst := range installs {
		root := inst.Path()
		vcvarsall := filepath.Join(root, "VC", "Auxiliary", "Build", "vcvarsall.bat")
		if !fsutil.Exists(vcvarsall) {
			logging.L().Debug().Str("path", root).Msg("no vcvarsall.bat, skipping installation")
			continue
		}

		year := inst.Year()
		name := inst.DisplayName
		if name == "" {
			name = fmt.Sprintf("Visual Studio %d", year)
		}

		for _, ver := range ToolsetVersions(filepath.Join(root, "VC", "Tools", "MSVC")) {
			for _, arch := range archs {
				id := config.MakeEntryID(year, arch, ver)
				if known[id] {
					continue
				}
				known[id] = true
				added = append(added, config.Entry{
					ID:             id,
					DisplayName:    fmt.Sprintf("%s (%s) - Tools v%s", name, arch, ver),
					VcvarsallPath:  vcvarsall,
					VSYear:         year,
					Architecture:   arch,
					VcvarsVer:      ver,
					CMakeGenerator: GeneratorFor(year),
				})
			}
		}
	}
	return added
}
