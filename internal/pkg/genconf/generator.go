package genconf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/ozacod/cppenv/internal/pkg/logging"
	"github.com/ozacod/cppenv/internal/pkg/utils/colors"
)

// Template inputs.
const (
	SettingsIn       = "settings.json.in"
	TasksIn          = "tasks.json.in"
	CCppPropertiesIn = "c_cpp_properties.json.in"
	LaunchIn         = "launch.json.in"
	PresetsIn        = "CMakePresets.json.in"
)

const outputIndent = "    "

var conanPathRe = regexp.MustCompile(`(?:set "PATH=|export PATH=)(.+?)(?:;%PATH%"|:\$PATH)`)

// Generator renders template.json for one project.
type Generator struct {
	Root        string
	TemplateDir string
	GOOS        string
	Out         io.Writer

	tmpl *Template
}

// NewGenerator returns a generator for root. A relative templateDir is
// resolved against root.
func NewGenerator(root, templateDir, goos string, out io.Writer) *Generator {
	if !filepath.IsAbs(templateDir) {
		templateDir = filepath.Join(root, templateDir)
	}
	if out == nil {
		out = io.Discard
	}
	return &Generator{Root: root, TemplateDir: templateDir, GOOS: goos, Out: out}
}

// OS returns the template.json OS key for the generator's host.
func (g *Generator) OS() string {
	return HostOS(g.GOOS)
}

// OutputDir is <root>/.vscode.
func (g *Generator) OutputDir() string {
	return filepath.Join(g.Root, ".vscode")
}

// Template loads template.json on first use.
func (g *Generator) Template() (*Template, error) {
	if g.tmpl != nil {
		return g.tmpl, nil
	}
	t, err := Load(g.TemplateDir)
	if err != nil {
		return nil, err
	}
	g.tmpl = t
	return t, nil
}

func (g *Generator) readInput(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(g.TemplateDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

func (g *Generator) warnf(format string, args ...any) {
	fmt.Fprintf(g.Out, "%sWarning: %s%s\n", colors.Yellow, fmt.Sprintf(format, args...), colors.Reset)
}

// writeRendered parses rendered as JSON and writes it pretty-printed to path.
func (g *Generator) writeRendered(path, rendered, indent string) error {
	doc, err := jsonx.Parse([]byte(rendered))
	if err != nil {
		return fmt.Errorf("rendered %s is not valid JSON: %w\n%s", filepath.Base(path), err, rendered)
	}
	return g.writeDoc(path, doc, indent)
}

func (g *Generator) writeDoc(path string, doc *jsonx.Object, indent string) error {
	if err := jsonx.WriteFile(path, doc, indent); err != nil {
		return err
	}
	fmt.Fprintf(g.Out, "%sGenerated:%s %s\n", colors.Green, colors.Reset, path)
	return nil
}

// SettingsReplacements collects the settings.json placeholders: the platform
// keys, then settings.os.<OS> (which overrides them), then conan_path when
// settings.dynamic asks for it.
func (g *Generator) SettingsReplacements() (*jsonx.Object, error) {
	t, err := g.Template()
	if err != nil {
		return nil, err
	}
	settings := t.Section("settings")
	if settings == nil {
		return nil, fmt.Errorf("settings: %w", ErrTemplateSectionMissing)
	}

	p := t.Platform
	repl := jsonx.NewObject()
	repl.Set("bash", "bash")
	repl.Set("os", p.OS)
	repl.Set("qt_exe", "")
	repl.Set("toolchain", p.Toolchain)
	repl.Set("triplet", p.Triplet)
	repl.Set("MSVC_PATH", p.Compiler.MSVCPath.String())
	repl.Set("WINDOWS_SDK_PATH", p.Compiler.WindowsSDKPath.String())
	repl.Set("WINDOWS_SDK_VERSION", p.Compiler.WindowsSDKVersion.String())
	repl.Set("envPath", strings.Join(p.EnvPath, ";"))

	if osCfg, ok := t.OSSection("settings", g.OS()); ok {
		for _, k := range osCfg.Keys() {
			v, _ := osCfg.Get(k)
			repl.Set(k, v)
		}
	}

	dynamic, _ := settings.Array("dynamic")
	for _, d := range dynamic {
		if d == "conan_path" {
			repl.Set("conan_path", ConanPath(g.Root, g.GOOS, g.Out))
		}
	}
	return repl, nil
}

// GenerateSettings writes .vscode/settings.json.
func (g *Generator) GenerateSettings() error {
	repl, err := g.SettingsReplacements()
	if err != nil {
		return err
	}
	text, err := g.readInput(SettingsIn)
	if err != nil {
		return err
	}
	return g.writeRendered(filepath.Join(g.OutputDir(), "settings.json"), Render(text, repl, EscapeBackslash), outputIndent)
}

// GenerateTasks writes .vscode/tasks.json. A template without tasks for the
// host OS is skipped with a warning.
func (g *Generator) GenerateTasks() error {
	t, err := g.Template()
	if err != nil {
		return err
	}
	repl, ok := t.OSSection("tasks", g.OS())
	if !ok || repl.Len() == 0 {
		g.warnf("no tasks configuration for %s in %s", g.OS(), TemplateFile)
		return nil
	}
	text, err := g.readInput(TasksIn)
	if err != nil {
		return err
	}
	return g.writeRendered(filepath.Join(g.OutputDir(), "tasks.json"), Render(text, repl, EscapeJSON), outputIndent)
}

// GenerateCCppProperties writes .vscode/c_cpp_properties.json.
func (g *Generator) GenerateCCppProperties() error {
	t, err := g.Template()
	if err != nil {
		return err
	}
	repl, _ := t.OSSection("c_cpp_properties", g.OS())
	text, err := g.readInput(CCppPropertiesIn)
	if err != nil {
		return err
	}
	return g.writeRendered(filepath.Join(g.OutputDir(), "c_cpp_properties.json"), Render(text, repl, EscapeRaw), outputIndent)
}

// Executable is a file found under build/bin.
type Executable struct {
	Name string
	Path string
}

// FindExecutables walks <root>/build/bin. On Windows only .exe files count.
func FindExecutables(root, goos string) ([]Executable, error) {
	binDir := filepath.Join(root, "build", "bin")
	var exes []Executable
	err := filepath.WalkDir(binDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if goos == "windows" && !strings.EqualFold(filepath.Ext(path), ".exe") {
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

// GenerateLaunchFromTemplate writes .vscode/launch.json with one rendered
// launch.json.in configuration per executable.
func (g *Generator) GenerateLaunchFromTemplate() error {
	t, err := g.Template()
	if err != nil {
		return err
	}
	text, err := g.readInput(LaunchIn)
	if err != nil {
		return err
	}
	doc, err := jsonx.Parse([]byte(text))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", LaunchIn, err)
	}

	exes, err := FindExecutables(g.Root, g.GOOS)
	if err != nil {
		return err
	}
	if len(exes) == 0 {
		g.warnf("no executables found in %s", filepath.Join(g.Root, "build", "bin"))
	}

	base, _ := t.OSSection("launch", g.OS())
	conanPath, withConan := "", false
	if launch := t.Section("launch"); launch != nil {
		dynamic, _ := launch.Array("dynamic")
		for _, d := range dynamic {
			if d == "conan_path" && !withConan {
				conanPath, withConan = ConanPath(g.Root, g.GOOS, g.Out), true
			}
		}
	}

	perExe := strings.Replace(text, "[]", "[{}]", 1)
	configurations := []any{}
	for _, exe := range exes {
		repl := base.Clone()
		if repl == nil {
			repl = jsonx.NewObject()
		}
		if withConan {
			repl.Set("conan_path", conanPath)
		}
		repl.Set("exe_name", exe.Name)
		repl.Set("exe_path", exe.Path)

		rendered, err := jsonx.Parse([]byte(Render(perExe, repl, EscapeRaw)))
		if err != nil {
			return fmt.Errorf("launch configuration for %s is not valid JSON: %w", exe.Name, err)
		}
		confs, _ := rendered.Array("configurations")
		configurations = append(configurations, confs...)
	}

	doc.Set("configurations", configurations)
	return g.writeDoc(filepath.Join(g.OutputDir(), "launch.json"), doc, outputIndent)
}

// CopyFiles copies each files[] entry from the template dir into the project.
func (g *Generator) CopyFiles() error {
	t, err := g.Template()
	if err != nil {
		return err
	}
	if len(t.Files) == 0 {
		fmt.Fprintf(g.Out, "%sNo 'files' entries in %s, nothing to copy%s\n", colors.Cyan, TemplateFile, colors.Reset)
		return nil
	}

	var pairs []fsutil.CopyPair
	for _, f := range t.Files {
		if f.Name == "" || f.Dst == "" {
			g.warnf("'files' entry is missing 'name' or 'dst', skipping: %+v", f)
			continue
		}
		name := filepath.FromSlash(strings.ReplaceAll(f.Name, `\`, "/"))
		dst := filepath.FromSlash(strings.ReplaceAll(f.Dst, `\`, "/"))

		src := filepath.Join(g.TemplateDir, name)
		if !fsutil.IsFile(src) {
			g.warnf("source file %s does not exist, skipping", src)
			continue
		}
		pairs = append(pairs, fsutil.CopyPair{Src: src, Dst: filepath.Join(g.Root, dst, name)})
	}

	n, err := fsutil.CopyAll(g.Out, pairs, "Copying template files")
	if err != nil {
		return err
	}
	for _, p := range pairs[:n] {
		fmt.Fprintf(g.Out, "%sCopied:%s %s -> %s\n", colors.Green, colors.Reset, p.Src, p.Dst)
	}
	return nil
}

// PresetsReplacements collects the CMakePresets.json.in placeholders.
func (g *Generator) PresetsReplacements() (*jsonx.Object, error) {
	t, err := g.Template()
	if err != nil {
		return nil, err
	}
	p := t.Platform
	c := p.Compiler

	repl := jsonx.NewObject()
	repl.Set("generator", p.Generator)
	repl.Set("CMAKE_CXX_STANDARD", c.CXXStandard.String())
	repl.Set("toolchain", p.Toolchain)
	repl.Set("triplet", p.Triplet)

	repl.Set("CMAKE_CXX_COMPILER_WINDOWS", c.CXXCompiler.String())
	repl.Set("CMAKE_C_COMPILER_WINDOWS", c.CCompiler.String())
	repl.Set("LINK_PATH_WINDOWS", c.LinkPath.String())
	repl.Set("RC_COMPILER_WINDOWS", c.RCCompiler.String())
	repl.Set("MT_WINDOWS", c.MT.String())
	g.setFlagReplacements(t, repl, "Windows", "windows")

	linuxCC := compilerPath(t, "Linux")
	repl.Set("CMAKE_CXX_COMPILER_LINUX", strings.ReplaceAll(linuxCC, "gcc", "g++"))
	repl.Set("CMAKE_C_COMPILER_LINUX", linuxCC)
	g.setFlagReplacements(t, repl, "Linux", "linux")

	macCC := compilerPath(t, "Mac")
	repl.Set("CMAKE_CXX_COMPILER_MAC", strings.ReplaceAll(macCC, "clang", "clang++"))
	repl.Set("CMAKE_C_COMPILER_MAC", macCC)
	g.setFlagReplacements(t, repl, "Mac", "mac")
	return repl, nil
}

func compilerPath(t *Template, osKey string) string {
	props, _ := t.OSSection("c_cpp_properties", osKey)
	return props.String("compiler_path")
}

func (g *Generator) setFlagReplacements(t *Template, repl *jsonx.Object, osKey, suffix string) {
	tasks, _ := t.OSSection("tasks", osKey)
	debug := jsonx.Stringify(valueOf(tasks, "debug_flag"))
	rel := jsonx.Stringify(valueOf(tasks, "rel_flag"))

	repl.Set("debug_cxx_flags_"+suffix, ExtractFlags(debug, "CMAKE_CXX_FLAGS"))
	repl.Set("debug_c_flags_"+suffix, ExtractFlags(debug, "CMAKE_C_FLAGS"))
	repl.Set("rel_cxx_flags_"+suffix, ExtractFlags(rel, "CMAKE_CXX_FLAGS"))
	repl.Set("rel_c_flags_"+suffix, ExtractFlags(rel, "CMAKE_C_FLAGS"))
}

func valueOf(obj *jsonx.Object, key string) any {
	v, _ := obj.Get(key)
	return v
}

// GenerateTemplatePresets writes <root>/CMakePresets.json from CMakePresets.json.in.
func (g *Generator) GenerateTemplatePresets() error {
	repl, err := g.PresetsReplacements()
	if err != nil {
		return err
	}
	text, err := g.readInput(PresetsIn)
	if err != nil {
		return err
	}
	return g.writeRendered(filepath.Join(g.Root, "CMakePresets.json"), Render(text, repl, EscapeBackslash), outputIndent)
}

// ConanPath reads the PATH that conan's run environment script prepends. A
// missing script yields "".
func ConanPath(root, goos string, out io.Writer) string {
	name := "conanrunenv-debug-x86_64.sh"
	if goos == "windows" {
		name = "conanrunenv-debug-x86_64.bat"
	}
	path := filepath.Join(root, "conan_debug", "build", "Debug", "generators", name)

	f, err := os.Open(path)
	if err != nil {
		if out != nil {
			fmt.Fprintf(out, "%sWarning: %s not found, conan_path will be empty%s\n", colors.Yellow, path, colors.Reset)
		}
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, `set "PATH=`) && !strings.HasPrefix(line, "export PATH=") {
			continue
		}
		if m := conanPathRe.FindStringSubmatch(line); m != nil {
			return strings.ReplaceAll(m[1], `\`, "/")
		}
		logging.L().Debug().Str("line", line).Msg("PATH line without a recognised suffix")
		return ""
	}
	return ""
}

// GenerateAll runs every generator in order. Generators whose input is
// missing are skipped with a warning; a template that cannot be loaded stops
// the run.
func (g *Generator) GenerateAll() error {
	if _, err := g.Template(); err != nil {
		return err
	}

	steps := []struct {
		name  string
		input string
		run   func() error
	}{
		{"settings", SettingsIn, g.GenerateSettings},
		{"tasks", TasksIn, g.GenerateTasks},
		{"c_cpp_properties", CCppPropertiesIn, g.GenerateCCppProperties},
		{"launch", LaunchIn, g.GenerateLaunchFromTemplate},
		{"copy", "", g.CopyFiles},
		{"presets", PresetsIn, g.GenerateTemplatePresets},
	}

	for _, step := range steps {
		if step.input != "" && !fsutil.IsFile(filepath.Join(g.TemplateDir, step.input)) {
			g.warnf("%s not found, skipping %s", step.input, step.name)
			continue
		}
		logging.L().Debug().Str("generator", step.name).Msg("running")
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}
