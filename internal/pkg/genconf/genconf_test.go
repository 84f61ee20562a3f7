package genconf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = `{
    "platform": {
        "os": "windows",
        "toolchain": "C:\\vcpkg",
        "triplet": "x64-windows",
        "generator": "Ninja",
        "shell_path": "C:\\msys64\\usr\\bin\\bash.exe",
        "envPath": ["C:\\Qt\\bin", "C:\\tools"],
        "compiler": {
            "NAME": "cl",
            "COMPILER_PATH": "C:\\VS\\cl.exe",
            "CMAKE_C_COMPILER": "cl.exe",
            "CMAKE_CXX_COMPILER": "cl.exe",
            "CMAKE_CXX_STANDARD": 20,
            "LINK_PATH": "C:\\VS\\link.exe",
            "RC_COMPILER": "rc.exe",
            "MT": "mt.exe",
            "MSVC_PATH": "C:\\VS\\MSVC",
            "WINDOWS_SDK_PATH": "C:\\SDK",
            "WINDOWS_SDK_VERSION": "10.0.22621.0"
        }
    },
    "settings": {
        "os": {
            "Windows": {"bash": "C:\\msys64\\bash.exe", "qt_exe": "C:\\Qt\\designer.exe"},
            "Linux": {"qt_exe": "/usr/bin/designer", "format_on_save": true}
        },
        "dynamic": []
    },
    "tasks": {
        "Windows": {
            "debug_flag": "-DCMAKE_CXX_FLAGS=\"/EHsc /MDd\" -DCMAKE_C_FLAGS=\"/MDd\"",
            "rel_flag": "-DCMAKE_CXX_FLAGS=\"/O2\""
        },
        "Linux": {
            "debug_flag": "-DCMAKE_CXX_FLAGS=\"-g -O0\" -DCMAKE_C_FLAGS=\"-g\"",
            "rel_flag": "-DCMAKE_CXX_FLAGS=\"-O3\" -DCMAKE_C_FLAGS=\"-O3\""
        }
    },
    "c_cpp_properties": {
        "Windows": {"compiler_path": "C:/VS/cl.exe"},
        "Linux": {"compiler_path": "/usr/bin/gcc"},
        "Mac": {"compiler_path": "/usr/bin/clang"}
    },
    "launch": {
        "Linux": {"debugger": "/usr/bin/gdb"}
    },
    "files": [
        {"name": "clang-format.txt", "dst": "config"},
        {"name": "missing.txt", "dst": "config"},
        {"name": "", "dst": "x"}
    ]
}`

func setupProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	tmplDir := filepath.Join(root, ".vscode", "template")
	require.NoError(t, os.MkdirAll(tmplDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmplDir, TemplateFile), []byte(testTemplate), 0644))
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func readDoc(t *testing.T, path string) *jsonx.Object {
	t.Helper()
	doc, err := jsonx.ReadFile(path)
	require.NoError(t, err)
	return doc
}

func TestHostOS(t *testing.T) {
	tests := []struct {
		goos     string
		expected string
	}{
		{"windows", "Windows"},
		{"linux", "Linux"},
		{"darwin", "Mac"},
		{"freebsd", "Windows"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			assert.Equal(t, tt.expected, HostOS(tt.goos))
		})
	}
}

func TestRender(t *testing.T) {
	repl := jsonx.NewObject()
	repl.Set("path", `C:\Qt\bin`)
	repl.Set("quoted", `say "hi"`)
	repl.Set("std", jsonx.Stringify(nil))
	repl.Set("flag", true)

	tests := []struct {
		name     string
		text     string
		esc      Escaper
		expected string
	}{
		{name: "Backslash", text: `"${path}"`, esc: EscapeBackslash, expected: `"C:\\Qt\\bin"`},
		{name: "JSON", text: `"${quoted} ${path}"`, esc: EscapeJSON, expected: `"say \"hi\" C:\\Qt\\bin"`},
		{name: "Raw", text: `${path}`, esc: EscapeRaw, expected: `C:\Qt\bin`},
		{name: "Unknown placeholder kept", text: `${nope}/${path}`, esc: EscapeRaw, expected: `${nope}/C:\Qt\bin`},
		{name: "Bool", text: `${flag}`, esc: EscapeRaw, expected: `true`},
		{name: "Null", text: `[${std}]`, esc: EscapeRaw, expected: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Render(tt.text, repl, tt.esc))
		})
	}
}

func TestExtractFlags(t *testing.T) {
	flags := `-DCMAKE_CXX_FLAGS="/EHsc /W3" -DCMAKE_C_FLAGS="/W3"`
	tests := []struct {
		name     string
		input    string
		flag     string
		expected string
	}{
		{name: "CXX", input: flags, flag: "CMAKE_CXX_FLAGS", expected: "/EHsc /W3"},
		{name: "C", input: flags, flag: "CMAKE_C_FLAGS", expected: "/W3"},
		{name: "Absent", input: flags, flag: "CMAKE_LINKER_FLAGS", expected: ""},
		{name: "Unterminated", input: `-DCMAKE_C_FLAGS="-g`, flag: "CMAKE_C_FLAGS", expected: "-g"},
		{name: "Empty input", input: "", flag: "CMAKE_C_FLAGS", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractFlags(tt.input, tt.flag))
		})
	}
}

func TestLoadTemplate(t *testing.T) {
	root := setupProject(t, nil)
	tmpl, err := Load(filepath.Join(root, ".vscode", "template"))
	require.NoError(t, err)

	assert.Equal(t, "20", tmpl.Platform.Compiler.CXXStandard.String())
	assert.Equal(t, `C:\VS\MSVC`, tmpl.Platform.Compiler.MSVCPath.String())
	assert.Equal(t, []string{`C:\Qt\bin`, `C:\tools`}, tmpl.Platform.EnvPath)
	assert.Len(t, tmpl.Files, 3)
	assert.Equal(t, []string{"platform", "settings", "tasks", "c_cpp_properties", "launch", "files"}, tmpl.Doc.Keys())

	_, ok := tmpl.OSSection("tasks", "Mac")
	assert.False(t, ok)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestGenerateSettings(t *testing.T) {
	in := `{"terminal": "${bash}", "path": "${envPath}", "qt": "${qt_exe}", "fmt": ${format_on_save}, "sdk": "${WINDOWS_SDK_VERSION}"}`
	root := setupProject(t, map[string]string{".vscode/template/" + SettingsIn: in})

	t.Run("Windows overrides bash", func(t *testing.T) {
		g := NewGenerator(root, ".vscode/template", "windows", nil)
		repl, err := g.SettingsReplacements()
		require.NoError(t, err)
		assert.Equal(t, `C:\msys64\bash.exe`, repl.String("bash"))
		assert.Equal(t, `C:\Qt\bin;C:\tools`, repl.String("envPath"))

		// format_on_save has no Windows value, so the rendered text is not JSON.
		err = g.GenerateSettings()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "${format_on_save}")
	})

	t.Run("Linux", func(t *testing.T) {
		g := NewGenerator(root, ".vscode/template", "linux", nil)
		require.NoError(t, g.GenerateSettings())

		doc := readDoc(t, filepath.Join(root, ".vscode", "settings.json"))
		assert.Equal(t, []string{"terminal", "path", "qt", "fmt", "sdk"}, doc.Keys())
		assert.Equal(t, "bash", doc.String("terminal"))
		assert.Equal(t, `C:\Qt\bin;C:\tools`, doc.String("path"))
		assert.Equal(t, "/usr/bin/designer", doc.String("qt"))
		v, _ := doc.Get("fmt")
		assert.Equal(t, true, v)
		assert.Equal(t, "10.0.22621.0", doc.String("sdk"))
	})
}

func TestGenerateSettingsConanPath(t *testing.T) {
	root := setupProject(t, map[string]string{
		".vscode/template/" + SettingsIn: `{"conan": "${conan_path}"}`,
		"conan_debug/build/Debug/generators/conanrunenv-debug-x86_64.sh": "#!/bin/sh\nexport PATH=/home/u/.conan2/p/qt/bin:$PATH\n",
	})
	tmplPath := filepath.Join(root, ".vscode", "template", TemplateFile)
	data, err := os.ReadFile(tmplPath)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte(`"dynamic": []`), []byte(`"dynamic": ["conan_path"]`), 1)
	require.NoError(t, os.WriteFile(tmplPath, data, 0644))

	g := NewGenerator(root, ".vscode/template", "linux", nil)
	require.NoError(t, g.GenerateSettings())
	doc := readDoc(t, filepath.Join(root, ".vscode", "settings.json"))
	assert.Equal(t, "/home/u/.conan2/p/qt/bin", doc.String("conan"))
}

func TestConanPath(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		file     string
		content  string
		expected string
	}{
		{
			name:     "Windows bat",
			goos:     "windows",
			file:     "conanrunenv-debug-x86_64.bat",
			content:  "@echo off\r\nset \"PATH=C:\\conan\\qt\\bin;C:\\conan\\zlib\\bin;%PATH%\"\r\n",
			expected: "C:/conan/qt/bin;C:/conan/zlib/bin",
		},
		{
			name:     "Shell script",
			goos:     "linux",
			file:     "conanrunenv-debug-x86_64.sh",
			content:  "export PATH=/opt/a:/opt/b:$PATH\n",
			expected: "/opt/a:/opt/b",
		},
		{
			name:     "No PATH line",
			goos:     "linux",
			file:     "conanrunenv-debug-x86_64.sh",
			content:  "export FOO=bar\n",
			expected: "",
		},
		{
			name:     "Missing file",
			goos:     "linux",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.file != "" {
				dir := filepath.Join(root, "conan_debug", "build", "Debug", "generators")
				require.NoError(t, os.MkdirAll(dir, 0755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0644))
			}
			var out bytes.Buffer
			assert.Equal(t, tt.expected, ConanPath(root, tt.goos, &out))
			if tt.file == "" {
				assert.Contains(t, out.String(), "conan_path will be empty")
			}
		})
	}
}

func TestGenerateTasks(t *testing.T) {
	in := `{"version": "2.0.0", "tasks": [{"label": "configure", "args": "${debug_flag}"}]}`
	root := setupProject(t, map[string]string{".vscode/template/" + TasksIn: in})

	g := NewGenerator(root, ".vscode/template", "windows", nil)
	require.NoError(t, g.GenerateTasks())

	doc := readDoc(t, filepath.Join(root, ".vscode", "tasks.json"))
	tasks, ok := doc.Array("tasks")
	require.True(t, ok)
	task := tasks[0].(*jsonx.Object)
	assert.Equal(t, `-DCMAKE_CXX_FLAGS="/EHsc /MDd" -DCMAKE_C_FLAGS="/MDd"`, task.String("args"))

	t.Run("Missing OS section warns", func(t *testing.T) {
		var out bytes.Buffer
		mac := NewGenerator(root, ".vscode/template", "darwin", &out)
		require.NoError(t, mac.GenerateTasks())
		assert.Contains(t, out.String(), "no tasks configuration for Mac")
	})
}

func TestGenerateCCppProperties(t *testing.T) {
	in := `{"configurations": [{"name": "Linux", "compilerPath": "${compiler_path}"}], "version": 4}`
	root := setupProject(t, map[string]string{".vscode/template/" + CCppPropertiesIn: in})

	g := NewGenerator(root, ".vscode/template", "linux", nil)
	require.NoError(t, g.GenerateCCppProperties())

	data, err := os.ReadFile(filepath.Join(root, ".vscode", "c_cpp_properties.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n"+
		"    \"configurations\": [\n"+
		"        {\n"+
		"            \"name\": \"Linux\",\n"+
		"            \"compilerPath\": \"/usr/bin/gcc\"\n"+
		"        }\n"+
		"    ],\n"+
		"    \"version\": 4\n"+
		"}\n", string(data))
}

func TestGenerateLaunchFromTemplate(t *testing.T) {
	in := `{"version": "0.2.0", "configurations": [], "compounds": []}`
	perExe := `{"version": "0.2.0", "configurations": [{"name": "${exe_name}", "program": "${exe_path}", "miDebuggerPath": "${debugger}"}]}`

	t.Run("Template without placeholders", func(t *testing.T) {
		root := setupProject(t, map[string]string{
			".vscode/template/" + LaunchIn: in,
			"build/bin/app":                 "elf",
		})
		g := NewGenerator(root, ".vscode/template", "linux", nil)
		require.NoError(t, g.GenerateLaunchFromTemplate())

		doc := readDoc(t, filepath.Join(root, ".vscode", "launch.json"))
		configs, ok := doc.Array("configurations")
		require.True(t, ok)
		require.Len(t, configs, 1)
		assert.Equal(t, 0, configs[0].(*jsonx.Object).Len())
		compounds, _ := doc.Array("compounds")
		assert.Empty(t, compounds)
	})

	t.Run("One configuration per executable", func(t *testing.T) {
		root := setupProject(t, map[string]string{
			".vscode/template/" + LaunchIn: perExe,
			"build/bin/zeta":                "elf",
			"build/bin/tools/alpha":         "elf",
		})
		g := NewGenerator(root, ".vscode/template", "linux", nil)
		require.NoError(t, g.GenerateLaunchFromTemplate())

		doc := readDoc(t, filepath.Join(root, ".vscode", "launch.json"))
		configs, _ := doc.Array("configurations")
		require.Len(t, configs, 2)
		first := configs[0].(*jsonx.Object)
		assert.Equal(t, "alpha", first.String("name"))
		assert.Equal(t, filepath.ToSlash(filepath.Join(root, "build", "bin", "tools", "alpha")), first.String("program"))
		assert.Equal(t, "/usr/bin/gdb", first.String("miDebuggerPath"))
		assert.Equal(t, "zeta", configs[1].(*jsonx.Object).String("name"))
	})

	t.Run("Dynamic conan_path", func(t *testing.T) {
		root := setupProject(t, map[string]string{
			".vscode/template/" + LaunchIn: `{"configurations": [{"name": "${exe_name}", "conan": "${conan_path}"}]}`,
			"build/bin/app":                 "elf",
			"conan_debug/build/Debug/generators/conanrunenv-debug-x86_64.sh": "#!/bin/sh\nexport PATH=/home/u/.conan2/p/qt/bin:$PATH\n",
		})
		tmplPath := filepath.Join(root, ".vscode", "template", TemplateFile)
		data, err := os.ReadFile(tmplPath)
		require.NoError(t, err)
		data = bytes.Replace(data, []byte(`"Linux": {"debugger": "/usr/bin/gdb"}`), []byte(`"Linux": {"debugger": "/usr/bin/gdb"}, "dynamic": ["conan_path"]`), 1)
		require.NoError(t, os.WriteFile(tmplPath, data, 0644))

		g := NewGenerator(root, ".vscode/template", "linux", nil)
		require.NoError(t, g.GenerateLaunchFromTemplate())

		doc := readDoc(t, filepath.Join(root, ".vscode", "launch.json"))
		configs, _ := doc.Array("configurations")
		require.Len(t, configs, 1)
		assert.Equal(t, "/home/u/.conan2/p/qt/bin", configs[0].(*jsonx.Object).String("conan"))
	})

	t.Run("Windows only counts exe", func(t *testing.T) {
		root := setupProject(t, map[string]string{
			"build/bin/app.EXE":  "pe",
			"build/bin/core.dll": "pe",
		})
		exes, err := FindExecutables(root, "windows")
		require.NoError(t, err)
		require.Len(t, exes, 1)
		assert.Equal(t, "app.EXE", exes[0].Name)
	})

	t.Run("No bin dir", func(t *testing.T) {
		exes, err := FindExecutables(t.TempDir(), "linux")
		require.NoError(t, err)
		assert.Empty(t, exes)
	})
}

func TestCopyFiles(t *testing.T) {
	root := setupProject(t, map[string]string{".vscode/template/clang-format.txt": "BasedOnStyle: LLVM\n"})

	var out bytes.Buffer
	g := NewGenerator(root, ".vscode/template", "linux", &out)
	require.NoError(t, g.CopyFiles())

	data, err := os.ReadFile(filepath.Join(root, "config", "clang-format.txt"))
	require.NoError(t, err)
	assert.Equal(t, "BasedOnStyle: LLVM\n", string(data))
	assert.Contains(t, out.String(), "missing.txt does not exist")
	assert.Contains(t, out.String(), "missing 'name' or 'dst'")
}

func TestGenerateTemplatePresets(t *testing.T) {
	in := `{"std": "${CMAKE_CXX_STANDARD}", "cxx_win": "${CMAKE_CXX_COMPILER_WINDOWS}", "link": "${LINK_PATH_WINDOWS}",
"dbg_win": "${debug_cxx_flags_windows}", "rel_c_win": "${rel_c_flags_windows}",
"cc_linux": "${CMAKE_C_COMPILER_LINUX}", "cxx_linux": "${CMAKE_CXX_COMPILER_LINUX}", "dbg_linux": "${debug_c_flags_linux}",
"cxx_mac": "${CMAKE_CXX_COMPILER_MAC}", "dbg_mac": "${debug_cxx_flags_mac}", "toolchain": "${toolchain}"}`
	root := setupProject(t, map[string]string{".vscode/template/" + PresetsIn: in})

	g := NewGenerator(root, ".vscode/template", "linux", nil)
	require.NoError(t, g.GenerateTemplatePresets())

	doc := readDoc(t, filepath.Join(root, "CMakePresets.json"))
	expected := map[string]string{
		"std":       "20",
		"cxx_win":   "cl.exe",
		"link":      `C:\VS\link.exe`,
		"dbg_win":   "/EHsc /MDd",
		"rel_c_win": "",
		"cc_linux":  "/usr/bin/gcc",
		"cxx_linux": "/usr/bin/g++",
		"dbg_linux": "-g",
		"cxx_mac":   "/usr/bin/clang++",
		"dbg_mac":   "",
		"toolchain": `C:\vcpkg`,
	}
	for k, v := range expected {
		assert.Equal(t, v, doc.String(k), k)
	}
}

func TestGenerateAll(t *testing.T) {
	root := setupProject(t, map[string]string{
		".vscode/template/" + TasksIn:   `{"tasks": [{"args": "${rel_flag}"}]}`,
		".vscode/template/" + PresetsIn: `{"version": 6, "generator": "${generator}"}`,
	})

	var out bytes.Buffer
	g := NewGenerator(root, ".vscode/template", "linux", &out)
	require.NoError(t, g.GenerateAll())

	assert.FileExists(t, filepath.Join(root, ".vscode", "tasks.json"))
	assert.FileExists(t, filepath.Join(root, "CMakePresets.json"))
	assert.NoFileExists(t, filepath.Join(root, ".vscode", "settings.json"))
	assert.Contains(t, out.String(), SettingsIn+" not found, skipping settings")
	assert.Contains(t, out.String(), LaunchIn+" not found, skipping launch")

	t.Run("Missing template is fatal", func(t *testing.T) {
		g := NewGenerator(t.TempDir(), ".vscode/template", "linux", nil)
		assert.Error(t, g.GenerateAll())
	})
}
