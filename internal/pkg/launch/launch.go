// Package launch scans build/bin for executables and merges one debug
// configuration per executable into .vscode/launch.json.
package launch

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/ozacod/cppenv/internal/pkg/logging"
	"github.com/ozacod/cppenv/internal/pkg/utils/colors"
)

const (
	DefaultVersion   = "0.2.0"
	PythonAttachName = "Python: Attach to C++ Process"
)

var nonExecutableSuffixes = map[string]bool{
	".so": true, ".dylib": true, ".dll": true, ".a": true, ".lib": true, ".o": true, ".bundle": true,
}

// Executable is a program found under the bin dir.
type Executable struct {
	Name string
	Path string
}

// ScanExecutables walks binDir. On Windows it collects *.exe files named by
// their stem; elsewhere regular files with an execute bit that are not
// libraries or objects. A missing binDir yields nothing and logs a warning.
func ScanExecutables(binDir, goos string) ([]Executable, error) {
	info, err := os.Stat(binDir)
	if err != nil || !info.IsDir() {
		logging.L().Warn().Str("dir", binDir).Msg("build directory does not exist, nothing to scan")
		return nil, nil
	}

	var exes []Executable
	err = filepath.WalkDir(binDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if goos == "windows" {
			if ext == ".exe" {
				exes = append(exes, Executable{Name: strings.TrimSuffix(d.Name(), filepath.Ext(path)), Path: filepath.ToSlash(path)})
			}
			return nil
		}
		if nonExecutableSuffixes[ext] {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Mode().Perm()&0111 == 0 {
			return nil
		}
		exes = append(exes, Executable{Name: d.Name(), Path: filepath.ToSlash(path)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(exes, func(i, j int) bool { return exes[i].Path < exes[j].Path })
	return exes, nil
}

// DefaultConfiguration returns the debug configuration generated for exe.
func DefaultConfiguration(exe Executable, cwd, goos, visualizerFile string) *jsonx.Object {
	debugType := "cppdbg"
	if goos == "windows" {
		debugType = "cppvsdbg"
	}

	logging := jsonx.NewObject()
	logging.Set("moduleLoad", true)
	logging.Set("exceptions", true)

	c := jsonx.NewObject()
	c.Set("name", "Debug "+exe.Name)
	c.Set("program", exe.Path)
	c.Set("type", debugType)
	c.Set("request", "launch")
	c.Set("stopAtEntry", true)
	c.Set("cwd", filepath.ToSlash(cwd))
	c.Set("environment", []any{})
	c.Set("console", "internalConsole")
	c.Set("logging", logging)
	c.Set("visualizerFile", visualizerFile)
	c.Set("sourceFileMap", jsonx.NewObject())

	if goos != "windows" {
		setup := jsonx.NewObject()
		setup.Set("description", "Enable pretty-printing for gdb")
		setup.Set("text", "-enable-pretty-printing")
		setup.Set("ignoreFailures", true)

		c.Set("MIMode", "gdb")
		c.Set("miDebuggerPath", "/usr/bin/gdb")
		c.Set("setupCommands", []any{setup})
	}
	return c
}

// PythonAttachConfig is the debugpy attach configuration kept at the end of
// every generated launch.json.
func PythonAttachConfig() *jsonx.Object {
	connect := jsonx.NewObject()
	connect.Set("host", "127.0.0.1")
	connect.Set("port", 5678)

	mapping := jsonx.NewObject()
	mapping.Set("localRoot", "${workspaceFolder}")
	mapping.Set("remoteRoot", "${workspaceFolder}")

	c := jsonx.NewObject()
	c.Set("name", PythonAttachName)
	c.Set("type", "debugpy")
	c.Set("request", "attach")
	c.Set("connect", connect)
	c.Set("justMyCode", false)
	c.Set("pathMappings", []any{mapping})
	return c
}

// LoadExisting reads launch.json. A missing or empty file yields an empty
// document; an unparsable one does too, with ok set to false.
func LoadExisting(path string) (doc *jsonx.Object, ok bool) {
	doc = jsonx.NewObject()
	doc.Set("version", DefaultVersion)
	doc.Set("configurations", []any{})

	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return doc, true
	}
	parsed, err := jsonx.Parse(data)
	if err != nil {
		return doc, false
	}
	if _, isArr := parsed.Array("configurations"); !isArr {
		parsed.Set("configurations", []any{})
	}
	if _, has := parsed.Get("version"); !has {
		parsed.Set("version", DefaultVersion)
	}
	return parsed, true
}

func isCppDebugType(t string) bool {
	return t == "cppvsdbg" || t == "cppdbg"
}

// Merge builds the launch document: the generated configurations, then the
// existing C++ configurations for programs that were not regenerated, then
// the Python attach configuration (the existing one if present).
func Merge(existing *jsonx.Object, generated []*jsonx.Object) *jsonx.Object {
	existingConfigs, _ := existing.Array("configurations")

	final := []any{}
	seen := make(map[string]bool)
	for _, c := range generated {
		program := c.String("program")
		if program == "" {
			continue
		}
		final = append(final, c.Clone())
		seen[program] = true
	}

	var attach *jsonx.Object
	for _, item := range existingConfigs {
		c, ok := item.(*jsonx.Object)
		if !ok {
			continue
		}
		if isCppDebugType(c.String("type")) && !seen[c.String("program")] {
			final = append(final, c.Clone())
		}
		if attach == nil && c.String("name") == PythonAttachName {
			attach = c.Clone()
		}
	}
	if attach == nil {
		attach = PythonAttachConfig()
	}
	final = append(final, attach)

	version, ok := existing.Get("version")
	if !ok || jsonx.Stringify(version) == "" {
		version = DefaultVersion
	}

	out := jsonx.NewObject()
	out.Set("version", version)
	out.Set("configurations", final)
	return out
}

// Generator scans a project's build/bin and updates its launch.json.
type Generator struct {
	Root           string
	GOOS           string
	VisualizerFile string
	Out            io.Writer
}

// Generate writes .vscode/launch.json and returns its path and the number of
// generated configurations.
func (g *Generator) Generate() (string, int, error) {
	out := g.Out
	if out == nil {
		out = io.Discard
	}

	binDir := filepath.Join(g.Root, "build", "bin")
	exes, err := ScanExecutables(binDir, g.GOOS)
	if err != nil {
		return "", 0, fmt.Errorf("failed to scan %s: %w", binDir, err)
	}
	if len(exes) == 0 {
		fmt.Fprintf(out, "%sWarning: no executables found in %s%s\n", colors.Yellow, binDir, colors.Reset)
	}

	generated := make([]*jsonx.Object, 0, len(exes))
	for _, exe := range exes {
		generated = append(generated, DefaultConfiguration(exe, binDir, g.GOOS, g.VisualizerFile))
	}

	path := filepath.Join(g.Root, ".vscode", "launch.json")
	existing, ok := LoadExisting(path)
	if !ok {
		fmt.Fprintf(out, "%sWarning: %s is not valid JSON, starting from an empty launch file%s\n", colors.Yellow, path, colors.Reset)
	}

	if err := jsonx.WriteFile(path, Merge(existing, generated), "    "); err != nil {
		return "", 0, err
	}
	return path, len(generated), nil
}
