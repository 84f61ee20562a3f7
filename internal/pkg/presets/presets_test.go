package presets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	p := Build(DefaultSpecs())

	assert.Equal(t, 6, p.Version)
	assert.Equal(t, CMakeMinimumRequired{Major: 3, Minor: 25}, p.CMakeMinimumRequired)

	// sccache + 3 platforms x (base + 3 configs)
	require.Len(t, p.ConfigurePresets, 13)
	assert.Len(t, p.BuildPresets, 9)

	var names []string
	for _, c := range p.ConfigurePresets {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"sccache-launcher",
		"windows-base", "windows-debug", "windows-release", "windows-relwithdebinfo",
		"linux-base", "linux-debug", "linux-release", "linux-relwithdebinfo",
		"mac-base", "mac-debug", "mac-release", "mac-relwithdebinfo",
	}, names)

	sccache := p.ConfigurePresets[0]
	assert.True(t, sccache.Hidden)
	assert.Equal(t, "sccache", sccache.CacheVariables.CXXLauncher)
	assert.Equal(t, "1", sccache.Environment["SCCACHE_IGNORE_SERVER_IO_ERROR"])

	winBase := p.ConfigurePresets[1]
	assert.Equal(t, "Embedded", winBase.CacheVariables.MSVCDebugInfoFormat)
	assert.Equal(t, "NEW", winBase.CacheVariables.PolicyCMP0141)
	assert.Nil(t, winBase.Architecture)

	linuxBase := p.ConfigurePresets[5]
	assert.Empty(t, linuxBase.CacheVariables.MSVCDebugInfoFormat)
	assert.True(t, linuxBase.CacheVariables.ExportCompileCommands)

	macDebug := p.ConfigurePresets[10]
	assert.Equal(t, "macOS Debug", macDebug.DisplayName)
	assert.Equal(t, []string{"mac-base", "sccache-launcher"}, macDebug.Inherits)
	assert.Equal(t, "Darwin", macDebug.Condition.RHS)
	assert.Equal(t, "${sourceDir}/build/bin", macDebug.CacheVariables.RuntimeOutputDir)

	assert.Equal(t, BuildPreset{
		Name:            "build-mac-relwithdebinfo",
		ConfigurePreset: "mac-relwithdebinfo",
		Jobs:            8,
		DisplayName:     "Build project (macOS RelWithDebInfo)",
	}, p.BuildPresets[8])
}

func TestBasePreset(t *testing.T) {
	tests := []struct {
		name        string
		spec        PlatformSpec
		description string
		generator   string
		hasArch     bool
		hasToolset  bool
	}{
		{
			name:        "Defaults filled",
			spec:        PlatformSpec{OS: "Linux"},
			description: "Linux base configuration",
			generator:   "Ninja",
		},
		{
			name: "Windows Visual Studio generator",
			spec: PlatformSpec{
				OS:           "Windows",
				Generator:    "Visual Studio 17 2022",
				Architecture: &ValueStrategy{Value: "x64", Strategy: "set"},
				Toolset:      &ValueStrategy{Value: "host=x64"},
			},
			description: "Windows base configuration",
			generator:   "Visual Studio 17 2022",
			hasArch:     true,
			hasToolset:  true,
		},
		{
			name: "Windows Ninja ignores architecture",
			spec: PlatformSpec{
				OS:           "Windows",
				Description:  "custom",
				Architecture: &ValueStrategy{Value: "x64", Strategy: "external"},
			},
			description: "custom",
			generator:   "Ninja",
		},
		{
			name: "Empty toolset value dropped",
			spec: PlatformSpec{
				OS:           "Windows",
				Generator:    "Visual Studio 16 2019",
				Architecture: &ValueStrategy{Value: "Win32"},
				Toolset:      &ValueStrategy{Strategy: "set"},
			},
			description: "Windows base configuration",
			generator:   "Visual Studio 16 2019",
			hasArch:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, display := presetNames(tt.spec.OS)
			got := basePreset(tt.spec, "x-base", display)
			assert.Equal(t, tt.description, got.Description)
			assert.Equal(t, tt.generator, got.Generator)
			assert.Equal(t, tt.hasArch, got.Architecture != nil)
			assert.Equal(t, tt.hasToolset, got.Toolset != nil)
		})
	}
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	path, err := Write(root, []PlatformSpec{{
		OS:          "Linux",
		CCompiler:   "gcc",
		CXXCompiler: "g++",
		CXXStandard: "17",
		DebugFlags:  Flags{CXX: "-g"},
	}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "CMakePresets.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"version\": 6,\n")

	doc, err := jsonx.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"version", "cmakeMinimumRequired", "configurePresets", "buildPresets"}, doc.Keys())

	configs, _ := doc.Array("configurePresets")
	base := configs[1].(*jsonx.Object)
	assert.Equal(t, []string{"name", "hidden", "displayName", "description", "generator", "binaryDir", "cacheVariables"}, base.Keys())
	cache, _ := base.Object("cacheVariables")
	assert.Equal(t, []string{"CMAKE_C_COMPILER", "CMAKE_CXX_COMPILER", "CMAKE_CXX_STANDARD", "CMAKE_EXPORT_COMPILE_COMMANDS"}, cache.Keys())

	debug := configs[2].(*jsonx.Object)
	debugCache, _ := debug.Object("cacheVariables")
	assert.Equal(t, []string{"CMAKE_BUILD_TYPE", "CMAKE_CXX_FLAGS", "CMAKE_RUNTIME_OUTPUT_DIRECTORY"}, debugCache.Keys())
}

func TestLoadSpecs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "specs.json")
	content := `{"platform": [{"os": "Windows", "generator": "Visual Studio 17 2022", "C_COMPILER": "cl",
"architecture": {"value": "x64", "strategy": "set"}, "debug_flag": {"CMAKE_CXX_FLAGS": "/Od"}}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	specs, err := LoadSpecs(path)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "cl", specs[0].CCompiler)
	assert.Equal(t, "x64", specs[0].Architecture.Value)
	assert.Equal(t, "/Od", specs[0].DebugFlags.CXX)
	assert.Nil(t, specs[0].Toolset)

	_, err = LoadSpecs(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}
