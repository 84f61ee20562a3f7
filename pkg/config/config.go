package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"gopkg.in/yaml.v3"
)

// DirEnv points the config directory somewhere other than ~/.config/cppenv.
const DirEnv = "CPPENV_CONFIG_DIR"

// ErrNoActiveEnvironment is returned when an operation needs an active VS environment.
var ErrNoActiveEnvironment = errors.New("no active VS environment selected (run 'cppenv vsenv use')")

// DefaultCommonExecutables are the MSVC tools that get a shim by default.
var DefaultCommonExecutables = []string{"cl", "link", "nmake", "msbuild", "lib", "dumpbin", "editbin", "rc", "mt", "devenv"}

// DefaultScanArchitectures are the vcvarsall architectures scanned by default.
var DefaultScanArchitectures = []string{"x64", "x86"}

// DefaultRemoveScriptName is the shim-directory script preserved when shims are regenerated.
const DefaultRemoveScriptName = "cleanup_vs_shims"

// ExtraExecutable is a tool outside the MSVC bin dir that also gets a shim.
type ExtraExecutable struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Path        string `yaml:"path"`
}

// Entry is one Visual Studio toolset/architecture combination.
type Entry struct {
	ID             string `yaml:"id"`
	DisplayName    string `yaml:"display_name"`
	VcvarsallPath  string `yaml:"vcvarsall_path"`
	VSYear         int    `yaml:"vs_year,omitempty"`
	Architecture   string `yaml:"architecture"`
	VcvarsVer      string `yaml:"vcvars_ver,omitempty"`
	CMakeGenerator string `yaml:"cmake_generator,omitempty"`
}

// GlobalConfig is the user-level configuration.
type GlobalConfig struct {
	VswherePath         string            `yaml:"vswhere_path,omitempty"`
	ShimDirectory       string            `yaml:"shim_directory,omitempty"`
	RemoveScriptName    string            `yaml:"remove_script_name,omitempty"`
	CommonExecutables   []string          `yaml:"common_executables,omitempty"`
	ScanArchitectures   []string          `yaml:"scan_architectures,omitempty"`
	ExtraExecutables    []ExtraExecutable `yaml:"extra_executables,omitempty"`
	Entries             []Entry           `yaml:"entries,omitempty"`
	ActiveEnvironmentID string            `yaml:"active_environment_id,omitempty"`
	WrapperStateDir     string            `yaml:"wrapper_state_dir,omitempty"`
	VisualizerFile      string            `yaml:"visualizer_file,omitempty"`
}

// GetConfigDir returns the directory holding config.yaml.
func GetConfigDir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "cppenv"), nil
}

// GetConfigPath returns the path of config.yaml.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadGlobal reads config.yaml. A missing file yields the defaults.
func LoadGlobal() (*GlobalConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &GlobalConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// SaveGlobal writes config.yaml.
func SaveGlobal(cfg *GlobalConfig) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := fsutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *GlobalConfig) ApplyDefaults() {
	if c.RemoveScriptName == "" {
		c.RemoveScriptName = DefaultRemoveScriptName
	}
	if len(c.CommonExecutables) == 0 {
		c.CommonExecutables = append([]string(nil), DefaultCommonExecutables...)
	}
	if len(c.ScanArchitectures) == 0 {
		c.ScanArchitectures = append([]string(nil), DefaultScanArchitectures...)
	}
}

// WrapperDir returns where wrapper state lives.
func (c *GlobalConfig) WrapperDir() (string, error) {
	if c.WrapperStateDir != "" {
		return c.WrapperStateDir, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "wrappers"), nil
}

// FindEntry returns the entry with id.
func (c *GlobalConfig) FindEntry(id string) (*Entry, bool) {
	for i := range c.Entries {
		if c.Entries[i].ID == id {
			return &c.Entries[i], true
		}
	}
	return nil, false
}

// ActiveEntry returns the active entry.
func (c *GlobalConfig) ActiveEntry() (*Entry, error) {
	if c.ActiveEnvironmentID == "" {
		return nil, ErrNoActiveEnvironment
	}
	e, ok := c.FindEntry(c.ActiveEnvironmentID)
	if !ok {
		return nil, fmt.Errorf("active environment %q is not in the entry list: %w", c.ActiveEnvironmentID, ErrNoActiveEnvironment)
	}
	return e, nil
}

// AddEntries appends entries whose id is not known yet and returns the added ones.
func (c *GlobalConfig) AddEntries(entries ...Entry) []Entry {
	var added []Entry
	for _, e := range entries {
		if _, ok := c.FindEntry(e.ID); ok {
			continue
		}
		c.Entries = append(c.Entries, e)
		added = append(added, e)
	}
	return added
}

// RemoveEntries drops entries by id and returns the removed ids. Removing the
// active entry clears the selection.
func (c *GlobalConfig) RemoveEntries(ids ...string) []string {
	toRemove := make(map[string]bool)
	for _, id := range ids {
		toRemove[id] = true
	}

	var kept []Entry
	var removed []string
	for _, e := range c.Entries {
		if toRemove[e.ID] {
			removed = append(removed, e.ID)
		} else {
			kept = append(kept, e)
		}
	}
	c.Entries = kept
	if toRemove[c.ActiveEnvironmentID] {
		c.ActiveEnvironmentID = ""
	}
	return removed
}

// AddExtra adds or replaces an extra executable by name.
func (c *GlobalConfig) AddExtra(x ExtraExecutable) {
	for i := range c.ExtraExecutables {
		if strings.EqualFold(c.ExtraExecutables[i].Name, x.Name) {
			c.ExtraExecutables[i] = x
			return
		}
	}
	c.ExtraExecutables = append(c.ExtraExecutables, x)
}

// RemoveExtra drops an extra executable by name.
func (c *GlobalConfig) RemoveExtra(name string) bool {
	for i := range c.ExtraExecutables {
		if strings.EqualFold(c.ExtraExecutables[i].Name, name) {
			c.ExtraExecutables = append(c.ExtraExecutables[:i], c.ExtraExecutables[i+1:]...)
			return true
		}
	}
	return false
}

// MakeEntryID builds the id used for scanned and manual entries, e.g. vs2022_x64_1438.
func MakeEntryID(year int, arch, toolset string) string {
	id := "vs" + strconv.Itoa(year) + "_" + arch
	if ver := strings.ReplaceAll(toolset, ".", ""); ver != "" {
		id += "_" + ver
	}
	return id
}
