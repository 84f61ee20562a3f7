// Package settings merges a project's .vscode/settings.json over the built-in
// C++ defaults.
package settings

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/ozacod/cppenv/internal/pkg/utils/colors"
)

// Defaults returns a fresh copy of the built-in settings.
func Defaults() *jsonx.Object {
	assoc := jsonx.NewObject()
	assoc.Set("*.qrc", "xml")
	assoc.Set("*.ui", "xml")
	assoc.Set("**/APP/ts/**/*.ts", "xml")
	assoc.Set("*.clang-tidy", "yaml")
	assoc.Set("*.clang-uml", "yaml")
	assoc.Set("*.in", "plaintext")

	d := jsonx.NewObject()
	d.Set("files.associations", assoc)
	d.Set("C_Cpp.intelliSenseEngine", "disabled")
	d.Set("clangd.fallbackFlags", []any{})
	d.Set("editor.snippetSuggestions", "inline")
	d.Set("editor.tabCompletion", "on")
	d.Set("editor.formatOnSave", true)
	d.Set("clangd.arguments", []any{
		"--compile-commands-dir=${workspaceFolder}/build",
		"--clang-tidy",
		"--all-scopes-completion",
		"--completion-style=detailed",
		"--header-insertion=never",
	})
	d.Set("qt-qml.qmlls.additionalImportPaths", []any{"C:/Qt/6.10.0/msvc2022_64/qml"})
	d.Set("editor.fontFamily", "Maple Mono NF, Jetbrains Mono, Menlo, Consolas, monospace")
	d.Set("editor.fontLigatures", "'calt', 'cv01', 'ss01', 'zero'")
	d.Set("editor.fontSize", 13)
	d.Set("syncfiles.view.scriptClickAction", "executeDefault")
	d.Set("terminal.integrated.defaultProfile.windows", "Git Bash")
	d.Set("C_Cpp.default.compileCommands", "${workspaceFolder}/build/compile_commands.json")
	return d
}

// Merge lays user over defaults. Objects present on both sides are merged
// one level deep, arrays are replaced, anything else is overwritten and new
// keys are appended. Neither input is modified.
func Merge(defaults, user *jsonx.Object) *jsonx.Object {
	merged := defaults.Clone()
	for _, key := range user.Keys() {
		uv, _ := user.Get(key)
		dv, inDefaults := merged.Get(key)

		if inDefaults {
			dObj, dIsObj := dv.(*jsonx.Object)
			uObj, uIsObj := uv.(*jsonx.Object)
			if dIsObj && uIsObj {
				for _, k := range uObj.Keys() {
					v, _ := uObj.Get(k)
					dObj.Set(k, jsonx.CloneValue(v))
				}
				continue
			}
		}
		merged.Set(key, jsonx.CloneValue(uv))
	}
	return merged
}

// Load reads the user's settings file and merges it over Defaults. A missing,
// empty or unparsable file yields the defaults; only the unparsable case
// produces a warning.
func Load(path string, out io.Writer) *jsonx.Object {
	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return Defaults()
	}
	user, err := jsonx.Parse(data)
	if err != nil {
		if out != nil {
			fmt.Fprintf(out, "%sWarning: %s is not valid JSON, using the built-in defaults%s\n", colors.Yellow, path, colors.Reset)
		}
		return Defaults()
	}
	return Merge(Defaults(), user)
}

// Write merges <root>/.vscode/settings.json with the defaults and saves it.
func Write(root string, out io.Writer) (string, error) {
	path := filepath.Join(root, ".vscode", "settings.json")
	if err := jsonx.WriteFile(path, Load(path, out), "    "); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
