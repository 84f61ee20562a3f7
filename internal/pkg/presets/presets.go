// Package presets builds CMakePresets.json from a list of platform specs
// without going through a template file.
package presets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/jsonx"
)

const (
	Version          = 6
	DefaultBuildJobs = 8
	binaryDir        = "${sourceDir}/build"
	runtimeOutputDir = "${sourceDir}/build/bin"
	sccachePreset    = "sccache-launcher"
)

// BuildTypes are the concrete configurations generated per platform.
var BuildTypes = []string{"Debug", "Release", "RelWithDebInfo"}

// ValueStrategy is the architecture/toolset object of a configure preset.
type ValueStrategy struct {
	Value    string `json:"value,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// Flags holds per-configuration compiler flags.
type Flags struct {
	CXX string `json:"CMAKE_CXX_FLAGS,omitempty"`
	C   string `json:"CMAKE_C_FLAGS,omitempty"`
}

// PlatformSpec describes one host platform.
type PlatformSpec struct {
	OS                  string         `json:"os"`
	Description         string         `json:"description,omitempty"`
	Generator           string         `json:"generator,omitempty"`
	CXXStandard         string         `json:"CMAKE_CXX_STANDARD,omitempty"`
	CCompiler           string         `json:"C_COMPILER,omitempty"`
	CXXCompiler         string         `json:"CXX_COMPILER,omitempty"`
	Architecture        *ValueStrategy `json:"architecture,omitempty"`
	Toolset             *ValueStrategy `json:"toolset,omitempty"`
	DebugFlags          Flags          `json:"debug_flag"`
	ReleaseFlags        Flags          `json:"rel_flag"`
	RelWithDebInfoFlags Flags          `json:"relwithdebug_flag"`
}

// SpecFile is the JSON layout read by LoadSpecs.
type SpecFile struct {
	Platform []PlatformSpec `json:"platform"`
}

// DefaultSpecs returns the built-in Windows, Linux and macOS specs.
func DefaultSpecs() []PlatformSpec {
	unixDebug := Flags{CXX: "-g -O0 -Wall -Wextra -fPIC", C: "-g -O0 -Wall -fPIC"}
	unixRelease := Flags{CXX: "-O2 -DNDEBUG -fPIC", C: "-O2 -DNDEBUG -fPIC"}
	unixRelDbg := Flags{CXX: "-O2 -g -DNDEBUG", C: "-O2 -g -DNDEBUG"}

	return []PlatformSpec{
		{
			OS:                  "Windows",
			Description:         "CMake + Ninja build environment for MSVC (cl.exe)",
			Generator:           "Ninja",
			CXXStandard:         "20",
			CCompiler:           "cl",
			CXXCompiler:         "cl",
			DebugFlags:          Flags{CXX: "/EHsc /W3 /Z7 /FS /MDd /Od /D_ITERATOR_DEBUG_LEVEL=2", C: "/EHsc /W3 /Z7 /FS /MDd /Od /D_ITERATOR_DEBUG_LEVEL=2"},
			ReleaseFlags:        Flags{CXX: "/EHsc /W3 /O2 /FS /MD", C: "/EHsc /W3 /O2 /FS /MD"},
			RelWithDebInfoFlags: Flags{CXX: "/EHsc /W3 /Z7 /FS /MD /O2 /DNDEBUG", C: "/EHsc /W3 /Z7 /FS /MD /O2 /DNDEBUG"},
		},
		{
			OS:                  "Linux",
			Description:         "clang and Ninja on Linux with the vcpkg toolchain",
			Generator:           "Ninja",
			CXXStandard:         "20",
			CCompiler:           "/usr/bin/clang",
			CXXCompiler:         "/usr/bin/clang++",
			DebugFlags:          unixDebug,
			ReleaseFlags:        unixRelease,
			RelWithDebInfoFlags: unixRelDbg,
		},
		{
			OS:                  "Darwin",
			Description:         "clang and Ninja on macOS with the vcpkg toolchain",
			Generator:           "Ninja",
			CXXStandard:         "20",
			CCompiler:           "clang",
			CXXCompiler:         "clang++",
			DebugFlags:          unixDebug,
			ReleaseFlags:        unixRelease,
			RelWithDebInfoFlags: unixRelDbg,
		},
	}
}

// LoadSpecs reads platform specs from a JSON file shaped like {"platform": [...]}.
func LoadSpecs(path string) ([]PlatformSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset specs: %w", err)
	}
	var f SpecFile
	if err := jsonx.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return f.Platform, nil
}

// CMakeMinimumRequired is the cmakeMinimumRequired object.
type CMakeMinimumRequired struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// CacheVariables lists every cache variable a generated preset may carry.
// Each preset only fills its own subset.
type CacheVariables struct {
	CCompiler             string `json:"CMAKE_C_COMPILER,omitempty"`
	CXXCompiler           string `json:"CMAKE_CXX_COMPILER,omitempty"`
	CXXStandard           string `json:"CMAKE_CXX_STANDARD,omitempty"`
	MSVCDebugInfoFormat   string `json:"CMAKE_MSVC_DEBUG_INFORMATION_FORMAT,omitempty"`
	PolicyCMP0141         string `json:"CMAKE_POLICY_DEFAULT_CMP0141,omitempty"`
	ExportCompileCommands bool   `json:"CMAKE_EXPORT_COMPILE_COMMANDS,omitempty"`
	CLauncher             string `json:"CMAKE_C_COMPILER_LAUNCHER,omitempty"`
	CXXLauncher           string `json:"CMAKE_CXX_COMPILER_LAUNCHER,omitempty"`
	BuildType             string `json:"CMAKE_BUILD_TYPE,omitempty"`
	CXXFlags              string `json:"CMAKE_CXX_FLAGS,omitempty"`
	CFlags                string `json:"CMAKE_C_FLAGS,omitempty"`
	RuntimeOutputDir      string `json:"CMAKE_RUNTIME_OUTPUT_DIRECTORY,omitempty"`
}

// Condition is a configure preset condition.
type Condition struct {
	Type string `json:"type"`
	LHS  string `json:"lhs"`
	RHS  string `json:"rhs"`
}

// ConfigurePreset is one entry of configurePresets.
type ConfigurePreset struct {
	Name           string            `json:"name"`
	Hidden         bool              `json:"hidden,omitempty"`
	DisplayName    string            `json:"displayName,omitempty"`
	Description    string            `json:"description,omitempty"`
	Generator      string            `json:"generator,omitempty"`
	Inherits       []string          `json:"inherits,omitempty"`
	Condition      *Condition        `json:"condition,omitempty"`
	BinaryDir      string            `json:"binaryDir,omitempty"`
	Architecture   *ValueStrategy    `json:"architecture,omitempty"`
	Toolset        *ValueStrategy    `json:"toolset,omitempty"`
	CacheVariables *CacheVariables   `json:"cacheVariables,omitempty"`
	Environment    map[string]string `json:"environment,omitempty"`
}

// BuildPreset is one entry of buildPresets.
type BuildPreset struct {
	Name            string `json:"name"`
	ConfigurePreset string `json:"configurePreset"`
	Jobs            int    `json:"jobs"`
	DisplayName     string `json:"displayName"`
}

// Presets is the CMakePresets.json document.
type Presets struct {
	Version              int                  `json:"version"`
	CMakeMinimumRequired CMakeMinimumRequired `json:"cmakeMinimumRequired"`
	ConfigurePresets     []ConfigurePreset    `json:"configurePresets"`
	BuildPresets         []BuildPreset        `json:"buildPresets"`
}

// presetNames returns the preset name part and the display name for an OS.
func presetNames(osName string) (string, string) {
	if osName == "Darwin" {
		return "mac", "macOS"
	}
	return strings.ToLower(osName), osName
}

// Build turns specs into a presets document. Specs without an OS are ignored.
func Build(specs []PlatformSpec) *Presets {
	p := &Presets{
		Version:              Version,
		CMakeMinimumRequired: CMakeMinimumRequired{Major: 3, Minor: 25, Patch: 0},
		ConfigurePresets: []ConfigurePreset{{
			Name:   sccachePreset,
			Hidden: true,
			CacheVariables: &CacheVariables{
				CLauncher:   "sccache",
				CXXLauncher: "sccache",
			},
			Environment: map[string]string{"SCCACHE_IGNORE_SERVER_IO_ERROR": "1"},
		}},
		BuildPresets: []BuildPreset{},
	}

	for _, spec := range specs {
		if spec.OS == "" {
			continue
		}
		part, display := presetNames(spec.OS)
		base := part + "-base"
		p.ConfigurePresets = append(p.ConfigurePresets, basePreset(spec, base, display))

		for _, bt := range BuildTypes {
			name := part + "-" + strings.ToLower(bt)
			flags := spec.flagsFor(bt)
			p.ConfigurePresets = append(p.ConfigurePresets, ConfigurePreset{
				Name:        name,
				DisplayName: display + " " + bt,
				Inherits:    []string{base, sccachePreset},
				Condition:   &Condition{Type: "equals", LHS: "${hostSystemName}", RHS: spec.OS},
				BinaryDir:   binaryDir,
				CacheVariables: &CacheVariables{
					BuildType:        bt,
					CXXFlags:         flags.CXX,
					CFlags:           flags.C,
					RuntimeOutputDir: runtimeOutputDir,
				},
			})
			p.BuildPresets = append(p.BuildPresets, BuildPreset{
				Name:            "build-" + name,
				ConfigurePreset: name,
				Jobs:            DefaultBuildJobs,
				DisplayName:     fmt.Sprintf("Build project (%s %s)", display, bt),
			})
		}
	}
	return p
}

func (s PlatformSpec) flagsFor(buildType string) Flags {
	switch buildType {
	case "Debug":
		return s.DebugFlags
	case "Release":
		return s.ReleaseFlags
	default:
		return s.RelWithDebInfoFlags
	}
}

func basePreset(spec PlatformSpec, name, display string) ConfigurePreset {
	description := spec.Description
	if description == "" {
		description = display + " base configuration"
	}
	generator := spec.Generator
	if generator == "" {
		generator = "Ninja"
	}

	cache := &CacheVariables{
		CCompiler:             spec.CCompiler,
		CXXCompiler:           spec.CXXCompiler,
		CXXStandard:           spec.CXXStandard,
		ExportCompileCommands: true,
	}
	if spec.OS == "Windows" && spec.CCompiler == "cl" {
		cache.MSVCDebugInfoFormat = "Embedded"
		cache.PolicyCMP0141 = "NEW"
	}

	preset := ConfigurePreset{
		Name:           name,
		Hidden:         true,
		DisplayName:    display + " Base",
		Description:    description,
		Generator:      generator,
		BinaryDir:      binaryDir,
		CacheVariables: cache,
	}
	if spec.OS == "Windows" && generator != "Ninja" {
		if spec.Architecture != nil && spec.Architecture.Value != "" {
			preset.Architecture = spec.Architecture
		}
		if spec.Toolset != nil && spec.Toolset.Value != "" {
			preset.Toolset = spec.Toolset
		}
	}
	return preset
}

// Write renders specs into <root>/CMakePresets.json and returns the path.
func Write(root string, specs []PlatformSpec) (string, error) {
	data, err := jsonx.Marshal(Build(specs), "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode presets: %w", err)
	}
	path := filepath.Join(root, "CMakePresets.json")
	if err := fsutil.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
