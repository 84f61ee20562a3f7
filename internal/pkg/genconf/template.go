// Package genconf renders the project's template.json into the VS Code
// configuration files and the template-based CMakePresets.json.
package genconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/jsonx"
)

// TemplateFile is the template document inside the template dir.
const TemplateFile = "template.json"

// ErrTemplateSectionMissing is returned when template.json lacks a required section.
var ErrTemplateSectionMissing = errors.New("template section missing")

// HostOS maps a GOOS value to the OS key used inside template.json.
func HostOS(goos string) string {
	switch goos {
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	case "darwin":
		return "Mac"
	default:
		return "Windows"
	}
}

// Scalar accepts a JSON string, number or bool and keeps its text.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	switch {
	case text == "null":
		*s = ""
	case strings.HasPrefix(text, `"`):
		var str string
		if err := jsonx.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	default:
		*s = Scalar(text)
	}
	return nil
}

func (s Scalar) String() string {
	return string(s)
}

// Compiler is platform.compiler.
type Compiler struct {
	Name              string `json:"NAME"`
	CompilerPath      Scalar `json:"COMPILER_PATH"`
	CCompiler         Scalar `json:"CMAKE_C_COMPILER"`
	CXXCompiler       Scalar `json:"CMAKE_CXX_COMPILER"`
	CXXStandard       Scalar `json:"CMAKE_CXX_STANDARD"`
	LinkPath          Scalar `json:"LINK_PATH"`
	RCCompiler        Scalar `json:"RC_COMPILER"`
	MT                Scalar `json:"MT"`
	MCCompiler        Scalar `json:"MC_COMPILER"`
	MSVCPath          Scalar `json:"MSVC_PATH"`
	WindowsSDKPath    Scalar `json:"WINDOWS_SDK_PATH"`
	WindowsSDKVersion Scalar `json:"WINDOWS_SDK_VERSION"`
}

// Platform is the platform section of template.json.
type Platform struct {
	OS        string   `json:"os"`
	Toolchain string   `json:"toolchain"`
	Triplet   string   `json:"triplet"`
	Generator string   `json:"generator"`
	ShellPath string   `json:"shell_path"`
	EnvPath   []string `json:"envPath"`
	Compiler  Compiler `json:"compiler"`
}

// FileEntry is one files[] item: template/<Name> is copied to <root>/<Dst>/<Name>.
type FileEntry struct {
	Name string `json:"name"`
	Dst  string `json:"dst"`
}

// Template is a parsed template.json. Doc keeps the document in key order;
// Platform and Files are typed views of it.
type Template struct {
	Dir      string
	Doc      *jsonx.Object
	Platform Platform
	Files    []FileEntry
}

// Load parses template.json from dir.
func Load(dir string) (*Template, error) {
	path := filepath.Join(dir, TemplateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	doc, err := jsonx.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var typed struct {
		Platform Platform    `json:"platform"`
		Files    []FileEntry `json:"files"`
	}
	if err := jsonx.Unmarshal(data, &typed); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &Template{
		Dir:      dir,
		Doc:      doc,
		Platform: typed.Platform,
		Files:    typed.Files,
	}, nil
}

// Section returns a top-level section, or nil.
func (t *Template) Section(name string) *jsonx.Object {
	obj, _ := t.Doc.Object(name)
	return obj
}

// OSSection returns section.<osKey>.
func (t *Template) OSSection(name, osKey string) (*jsonx.Object, bool) {
	sec := t.Section(name)
	if sec == nil {
		return nil, false
	}
	return sec.Object(osKey)
}
