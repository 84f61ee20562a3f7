package settings

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	defaults := Defaults()
	user, err := jsonx.Parse([]byte(`{
		"files.associations": {"*.ui": "xaml", "*.mm": "objective-cpp"},
		"clangd.arguments": ["--log=verbose"],
		"editor.fontSize": 15,
		"my.extension": {"on": true}
	}`))
	require.NoError(t, err)

	merged := Merge(defaults, user)

	assoc, ok := merged.Object("files.associations")
	require.True(t, ok)
	assert.Equal(t, "xaml", assoc.String("*.ui"))
	assert.Equal(t, "xml", assoc.String("*.qrc"))
	assert.Equal(t, "objective-cpp", assoc.String("*.mm"))
	assert.Equal(t, "*.mm", assoc.Keys()[assoc.Len()-1])

	args, ok := merged.Array("clangd.arguments")
	require.True(t, ok)
	assert.Equal(t, []any{"--log=verbose"}, args)

	size, _ := merged.Get("editor.fontSize")
	assert.Equal(t, "15", jsonx.Stringify(size))

	keys := merged.Keys()
	assert.Equal(t, "my.extension", keys[len(keys)-1])
	assert.Equal(t, "files.associations", keys[0])

	// defaults untouched
	dAssoc, _ := defaults.Object("files.associations")
	assert.Equal(t, "xml", dAssoc.String("*.ui"))
	assert.Equal(t, 6, dAssoc.Len())
	dArgs, _ := defaults.Array("clangd.arguments")
	assert.Len(t, dArgs, 5)
}

func TestMergeTypeMismatch(t *testing.T) {
	user, err := jsonx.Parse([]byte(`{"files.associations": "none", "clangd.fallbackFlags": {"a": 1}}`))
	require.NoError(t, err)

	merged := Merge(Defaults(), user)
	assert.Equal(t, "none", merged.String("files.associations"))
	_, isObj := merged.Object("clangd.fallbackFlags")
	assert.True(t, isObj)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	defaultsLen := Defaults().Len()

	tests := []struct {
		name     string
		content  *string
		warns    bool
		expected int
	}{
		{name: "Missing", expected: defaultsLen},
		{name: "Empty", content: strPtr(" \n"), expected: defaultsLen},
		{name: "Invalid", content: strPtr("{,}"), warns: true, expected: defaultsLen},
		{name: "User key added", content: strPtr(`{"x.y": 1}`), expected: defaultsLen + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0644))
			}
			var out bytes.Buffer
			got := Load(path, &out)
			assert.Equal(t, tt.expected, got.Len())
			assert.Equal(t, tt.warns, out.Len() > 0)
		})
	}
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	path, err := Write(root, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"C_Cpp.intelliSenseEngine\": \"disabled\",\n")
	assert.Contains(t, string(data), `"clangd.fallbackFlags": []`)
	assert.Contains(t, string(data), `"editor.formatOnSave": true`)

	// idempotent
	_, err = Write(root, nil)
	require.NoError(t, err)
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func strPtr(s string) *string {
	return &s
}
