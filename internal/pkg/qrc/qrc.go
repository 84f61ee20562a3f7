// Package qrc generates Qt resources.qrc files and matching VS Code snippets
// for the resource directories listed in .vscode/util/qrc-snippets.json.
package qrc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/ozacod/cppenv/internal/pkg/utils/colors"
)

var (
	// ErrNotQtProject is returned when CMakeLists.txt does not use Qt.
	ErrNotQtProject = errors.New("not a Qt project: CMakeLists.txt has no find_package(Qt")
	// ErrConfigCreated is returned after a default qrc-snippets.json was written.
	ErrConfigCreated = errors.New("default qrc-snippets.json created, edit it and run again")
)

// Resource is one directory turned into a resources.qrc.
type Resource struct {
	Path   string `json:"path"`
	Prefix string `json:"prefix"`
}

// Config is qrc-snippets.json.
type Config struct {
	Run        bool       `json:"run"`
	Ignore     []string   `json:"ignore"`
	IgnoreName []string   `json:"ignoreName"`
	Resources  []Resource `json:"resources"`
}

// DefaultConfig is written when the project has no qrc-snippets.json yet.
func DefaultConfig() Config {
	return Config{
		Run:        true,
		Ignore:     []string{"h", "cpp", "c", "hpp", "mm", "qml", "js", "ui", "json", "sh", "webp", "txt", ".qrc"},
		IgnoreName: []string{"ignored-file-name-1", "ignored-file-name-2"},
		Resources: []Resource{
			{Path: "path/relative/to/root/1", Prefix: "/"},
			{Path: "path/relative/to/root/2", Prefix: "/"},
		},
	}
}

// ConfigPath returns <root>/.vscode/util/qrc-snippets.json.
func ConfigPath(root string) string {
	return filepath.Join(root, ".vscode", "util", "qrc-snippets.json")
}

// SnippetsPath returns <root>/.vscode/qrc.code-snippets.
func SnippetsPath(root string) string {
	return filepath.Join(root, ".vscode", "qrc.code-snippets")
}

// IsQtProject reports whether root's CMakeLists.txt calls find_package(Qt...).
func IsQtProject(root string) bool {
	data, err := os.ReadFile(filepath.Join(root, "CMakeLists.txt"))
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "find_package(Qt")
}

// LoadConfig reads qrc-snippets.json. When the file does not exist the
// default is written and ErrConfigCreated returned.
func LoadConfig(root string) (*Config, error) {
	p := ConfigPath(root)
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		if err := jsonx.WriteFile(p, DefaultConfig(), "  "); err != nil {
			return nil, err
		}
		return nil, ErrConfigCreated
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := jsonx.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p, err)
	}
	return &cfg, nil
}

// ListFiles returns the files under dir relative to dir with / separators,
// leaving out ignored extensions and names. Extensions match with or without
// a leading dot. The result is sorted.
func ListFiles(dir string, ignoreExts, ignoreNames []string) ([]string, error) {
	exts := make(map[string]bool, len(ignoreExts))
	for _, e := range ignoreExts {
		exts[strings.TrimPrefix(e, ".")] = true
	}
	names := toSet(ignoreNames)

	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(p), ".")
		if exts[ext] || names[d.Name()] {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

// RenderQRC returns the resources.qrc document for files.
func RenderQRC(prefix string, files []string) string {
	var b strings.Builder
	b.WriteString("<RCC>\n")
	fmt.Fprintf(&b, "    <qresource prefix=\"%s\">\n", escapeXML(prefix))
	for _, f := range files {
		fmt.Fprintf(&b, "        <file>%s</file>\n", escapeXML(f))
	}
	b.WriteString("    </qresource>\n")
	b.WriteString("</RCC>\n")
	return b.String()
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Snippet returns the snippet name and body for a resource file.
func Snippet(prefix, rel string) (string, *jsonx.Object) {
	resourcePath := `":` + strings.TrimSuffix(prefix, "/") + "/" + rel + `"`
	if prefix == "/" {
		resourcePath = `":/` + rel + `"`
	}

	s := jsonx.NewObject()
	s.Set("prefix", path.Base(rel))
	s.Set("body", []any{resourcePath})
	s.Set("description", "Qt resource path for "+rel)
	s.Set("scope", "cpp,qml")
	return "qrc_" + strings.ReplaceAll(rel, "/", "_"), s
}

// Generate writes resources.qrc for every configured resource and merges
// the snippets into .vscode/qrc.code-snippets.
func Generate(root string, cfg *Config, w io.Writer) error {
	if !cfg.Run {
		fmt.Fprintf(w, "%s'run' is false in qrc-snippets.json, nothing to do%s\n", colors.Cyan, colors.Reset)
		return nil
	}

	snippets := jsonx.NewObject()
	for _, res := range cfg.Resources {
		dir := filepath.Join(root, filepath.FromSlash(res.Path))
		files, err := ListFiles(dir, cfg.Ignore, cfg.IgnoreName)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", dir, err)
		}

		for _, rel := range files {
			name, s := Snippet(res.Prefix, rel)
			snippets.Set(name, s)
		}

		out := filepath.Join(dir, "resources.qrc")
		if err := fsutil.WriteFile(out, []byte(RenderQRC(res.Prefix, files)), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Fprintf(w, "%sGenerated:%s %s\n", colors.Green, colors.Reset, out)
	}

	snippetsPath := SnippetsPath(root)
	merged, err := jsonx.ReadFile(snippetsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		merged = jsonx.NewObject()
	}
	for _, k := range snippets.Keys() {
		v, _ := snippets.Get(k)
		merged.Set(k, v)
	}
	if err := jsonx.WriteFile(snippetsPath, merged, "  "); err != nil {
		return err
	}
	fmt.Fprintf(w, "%sUpdated snippets:%s %s\n", colors.Green, colors.Reset, snippetsPath)
	return nil
}
