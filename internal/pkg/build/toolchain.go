// Package build drives cmake, ninja and ctest for a project described by
// template.json.
package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/ozacod/cppenv/internal/pkg/genconf"
)

// DefaultWindowsCMakeFlags are passed to configure on Windows when no flags are given.
const DefaultWindowsCMakeFlags = `-DCMAKE_CXX_FLAGS="/EHsc /W3 /MP6 /Zi /FS /MDd /D_ITERATOR_DEBUG_LEVEL=2" -DCMAKE_C_FLAGS="/EHsc /W3 /MP6 /Zi /FS /MDd /D_ITERATOR_DEBUG_LEVEL=2"`

// Toolchain is the build-relevant part of template.json's platform section.
type Toolchain struct {
	CompilerName      string
	CompilerPath      string
	Linker            string
	RC                string
	MT                string
	MC                string
	Triplet           string
	ToolchainFile     string
	Shell             string
	EnvPath           []string
	MSVCPath          string
	WindowsSDKPath    string
	WindowsSDKVersion string
}

// FromPlatform derives a Toolchain. Off Windows an empty shell_path means /bin/bash.
func FromPlatform(p genconf.Platform, goos string) *Toolchain {
	shell := p.ShellPath
	if shell == "" && goos != "windows" {
		shell = "/bin/bash"
	}
	c := p.Compiler
	return &Toolchain{
		CompilerName:      c.Name,
		CompilerPath:      c.CompilerPath.String(),
		Linker:            c.LinkPath.String(),
		RC:                c.RCCompiler.String(),
		MT:                c.MT.String(),
		MC:                c.MCCompiler.String(),
		Triplet:           p.Triplet,
		ToolchainFile:     p.Toolchain + "/scripts/buildsystems/vcpkg.cmake",
		Shell:             shell,
		EnvPath:           p.EnvPath,
		MSVCPath:          c.MSVCPath.String(),
		WindowsSDKPath:    c.WindowsSDKPath.String(),
		WindowsSDKVersion: c.WindowsSDKVersion.String(),
	}
}

// LoadToolchain reads template.json from templateDir.
func LoadToolchain(templateDir, goos string) (*Toolchain, error) {
	t, err := genconf.Load(templateDir)
	if err != nil {
		return nil, err
	}
	return FromPlatform(t.Platform, goos), nil
}

// CheckShell verifies that the configured shell exists.
func (tc *Toolchain) CheckShell(goos string) error {
	if tc.Shell != "" {
		if _, err := os.Stat(tc.Shell); err == nil {
			return nil
		}
	}
	if goos == "windows" {
		return fmt.Errorf("unix-like bash not found at %q, adjust shell_path in template.json", tc.Shell)
	}
	return fmt.Errorf("bash not found at %q, fill in the right shell_path in template.json", tc.Shell)
}

func (tc *Toolchain) usesMSVC() bool {
	return tc.CompilerName != "gcc" && tc.CompilerName != "g++"
}

// Env returns base with the build environment applied.
func Env(base []string, tc *Toolchain, goos string) ([]string, error) {
	env := newEnvList(base, goos == "windows")
	env.Set("LC_ALL", "en_US.UTF-8")
	env.Set("LANG", "en_US.UTF-8")

	if goos != "windows" {
		env.Set("PATH", joinNonEmpty(":", "/usr/local/bin:/opt/cmake/bin", env.Get("PATH")))
		return env.Slice(), nil
	}

	env.Set("MSYS_NO_PATHCONV", "1")
	extra := strings.Join(tc.EnvPath, ";")
	if !tc.usesMSVC() {
		env.Set("PATH", joinNonEmpty(";", extra, env.Get("PATH")))
		return env.Slice(), nil
	}

	msvc, sdk, ver := tc.MSVCPath, tc.WindowsSDKPath, tc.WindowsSDKVersion
	if _, err := os.Stat(msvc); err != nil {
		return nil, fmt.Errorf("MSVC path not found: %s", msvc)
	}
	if _, err := os.Stat(sdk); err != nil {
		return nil, fmt.Errorf("windows SDK path not found: %s", sdk)
	}
	env.Set("PATH", joinNonEmpty(";", extra, msvc+"/bin/Hostx64/x64", env.Get("PATH")))
	env.Set("INCLUDE", strings.Join([]string{
		msvc + "/include",
		sdk + "/Include/" + ver + "/ucrt",
		sdk + "/Include/" + ver + "/um",
		sdk + "/Include/" + ver + "/shared",
	}, ";")+";")
	env.Set("LIB", strings.Join([]string{
		msvc + "/lib/x64",
		sdk + "/Lib/" + ver + "/ucrt/x64",
		sdk + "/Lib/" + ver + "/um/x64",
	}, ";")+";")
	return env.Slice(), nil
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// envList is an environment in its original order. Windows keys compare
// case-insensitively.
type envList struct {
	entries  []string
	foldCase bool
}

func newEnvList(base []string, foldCase bool) *envList {
	return &envList{entries: append([]string(nil), base...), foldCase: foldCase}
}

func (e *envList) index(key string) int {
	for i, kv := range e.entries {
		k, _, _ := strings.Cut(kv, "=")
		if k == key || (e.foldCase && strings.EqualFold(k, key)) {
			return i
		}
	}
	return -1
}

func (e *envList) Get(key string) string {
	if i := e.index(key); i >= 0 {
		_, v, _ := strings.Cut(e.entries[i], "=")
		return v
	}
	return ""
}

func (e *envList) Set(key, value string) {
	if i := e.index(key); i >= 0 {
		k, _, _ := strings.Cut(e.entries[i], "=")
		e.entries[i] = k + "=" + value
		return
	}
	e.entries = append(e.entries, key+"="+value)
}

func (e *envList) Slice() []string {
	return e.entries
}

// PrependPath puts dir in front of env's PATH. An empty dir leaves env as is.
func PrependPath(env []string, dir, goos string) []string {
	if dir == "" {
		return env
	}
	sep := ":"
	if goos == "windows" {
		sep = ";"
	}
	list := newEnvList(env, goos == "windows")
	list.Set("PATH", joinNonEmpty(sep, dir, list.Get("PATH")))
	return list.Slice()
}

// DefaultCMakeFlags returns the configure flags used when none are given.
func DefaultCMakeFlags(goos string) string {
	if goos == "windows" {
		return DefaultWindowsCMakeFlags
	}
	return ""
}

// SplitFlags splits a shell-style flag string into arguments.
func SplitFlags(flags string) ([]string, error) {
	args, err := shellquote.Split(flags)
	if err != nil {
		return nil, fmt.Errorf("invalid cmake flags %q: %w", flags, err)
	}
	return args, nil
}

// ConfigureArgs returns the cmake arguments for configuring root. Compiler and
// tool definitions with an empty value are left out.
func ConfigureArgs(root, buildType string, cmakeFlags []string, tc *Toolchain) []string {
	slash := func(p string) string { return filepath.ToSlash(p) }
	define := func(args []string, name, value string) []string {
		if value == "" {
			return args
		}
		return append(args, "-D"+name+"="+value)
	}

	args := []string{
		"-S", ".",
		"-B", "build",
		"-G", "Ninja",
		"-DCMAKE_EXPORT_COMPILE_COMMANDS=ON",
		"-DCMAKE_POLICY_DEFAULT_CMP0091=NEW",
	}
	args = define(args, "CMAKE_CXX_COMPILER", tc.CompilerPath)
	args = define(args, "CMAKE_C_COMPILER", tc.CompilerPath)
	args = define(args, "CMAKE_LINKER", tc.Linker)
	args = define(args, "CMAKE_RC_COMPILER", tc.RC)
	args = define(args, "CMAKE_MT", tc.MT)
	args = define(args, "CMAKE_MC_COMPILER", tc.MC)
	args = define(args, "CMAKE_BUILD_TYPE", buildType)

	if _, err := os.Stat(tc.ToolchainFile); err == nil {
		args = define(args, "CMAKE_TOOLCHAIN_FILE", slash(tc.ToolchainFile))
		args = define(args, "VCPKG_TARGET_TRIPLET", tc.Triplet)
	}

	args = append(args, cmakeFlags...)
	args = append(args,
		"-DCMAKE_RUNTIME_OUTPUT_DIRECTORY="+slash(filepath.Join(root, "build", "bin")),
		"-DCMAKE_LIBRARY_OUTPUT_DIRECTORY="+slash(filepath.Join(root, "build", "lib")),
		"-DCMAKE_ARCHIVE_OUTPUT_DIRECTORY="+slash(filepath.Join(root, "build", "lib")),
		"-DCMAKE_INSTALL_PREFIX="+slash(filepath.Join(root, "install_dir")),
	)
	return args
}

// BuildArgs returns the ninja arguments for building root.
func BuildArgs(root string) []string {
	return []string{"-C", filepath.ToSlash(filepath.Join(root, "build"))}
}

// InstallArgs returns the ninja arguments for installing root.
func InstallArgs(root string) []string {
	return append(BuildArgs(root), "install")
}

// CleanArgs returns the ninja arguments for cleaning root.
func CleanArgs(root string) []string {
	return append(BuildArgs(root), "-t", "clean")
}

// TestArgs returns the ctest arguments for root.
func TestArgs(root string, verbose bool, filter string) []string {
	args := []string{"--test-dir", filepath.ToSlash(filepath.Join(root, "build")), "--output-on-failure"}
	if verbose {
		args = append(args, "-V")
	}
	if filter != "" {
		args = append(args, "-R", filter)
	}
	return args
}
