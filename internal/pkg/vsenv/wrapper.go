package vsenv

import (
	"context"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danjacques/gofslock/fslock"
	"github.com/minio/sha256-simd"
	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/jsonx"
	"github.com/ozacod/cppenv/internal/pkg/logging"
	"github.com/ozacod/cppenv/internal/pkg/utils/colors"
	"github.com/ozacod/cppenv/pkg/config"
)

//go:embed wrapper.cs.tmpl
var wrapperTemplate string

const (
	// RegistryFile maps wrapper ids to their install records.
	RegistryFile = "wrappers_config.json"

	envMarker      = "        // __ENVIRONMENT_VARIABLES__"
	generatedCS    = "Wrapper.generated.cs"
	compiledExe    = "Wrapper.temp.exe"
	argsFileSuffix = "_wrapper_args.txt"
)

var (
	// ErrBackupMissing is returned when a wrapper's backup is gone and the
	// original cannot be restored.
	ErrBackupMissing = errors.New("backup file is missing, cannot restore the original")
	// ErrCancelled is returned when the user declines to overwrite.
	ErrCancelled = errors.New("cancelled")
	// ErrRegistryLocked is returned when another process holds the wrapper registry.
	ErrRegistryLocked = errors.New("wrapper registry is locked by another cppenv process")
)

// WrapperSource fills the C# wrapper template. realPath is the executable the
// wrapper starts and argsFile the name of the extra-arguments file next to it.
func WrapperSource(realPath, argsFile string, env Env) string {
	verbatim := func(s string) string { return strings.ReplaceAll(s, `"`, `""`) }

	lines := make([]string, 0, len(env))
	for _, v := range env {
		key := strings.ReplaceAll(v.Key, `"`, `\"`)
		lines = append(lines, fmt.Sprintf(`        psi.EnvironmentVariables["%s"] = @"%s";`, key, verbatim(v.Value)))
	}

	src := strings.ReplaceAll(wrapperTemplate, "__REAL_EXECUTABLE_PATH__", verbatim(realPath))
	src = strings.ReplaceAll(src, "__ARGS_FILENAME__", verbatim(argsFile))
	return strings.Replace(src, envMarker, strings.Join(lines, "\n"), 1)
}

// WrapperID derives a stable id from the original executable path.
func WrapperID(path string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(path)))
	return hex.EncodeToString(sum[:])[:16]
}

// ArgsFileName returns the extra-arguments file name for an executable.
func ArgsFileName(exe string) string {
	base := filepath.Base(exe)
	return strings.TrimSuffix(base, filepath.Ext(base)) + argsFileSuffix
}

// Record is one installed wrapper.
type Record struct {
	OriginalPath string `json:"original_path"`
	BackupPath   string `json:"backup_path"`
	ArgsFile     string `json:"args_file"`
}

// Registry is wrappers_config.json, held under a file lock while open.
type Registry struct {
	path    string
	lock    fslock.Handle
	records map[string]Record
}

// OpenRegistry locks and loads the registry in dir.
func OpenRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, RegistryFile)
	lock, err := fslock.Lock(path + ".lock")
	if err != nil {
		if errors.Is(err, fslock.ErrLockHeld) {
			return nil, ErrRegistryLocked
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	r := &Registry{path: path, lock: lock, records: make(map[string]Record)}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return r, nil
	case err != nil:
		r.Close()
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := jsonx.Unmarshal(data, &r.records); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if r.records == nil {
		r.records = make(map[string]Record)
	}
	return r, nil
}

// Close releases the lock.
func (r *Registry) Close() error {
	if r.lock == nil {
		return nil
	}
	err := r.lock.Unlock()
	r.lock = nil
	return err
}

// Path returns the registry file.
func (r *Registry) Path() string { return r.path }

// Get returns the record for id.
func (r *Registry) Get(id string) (Record, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// Put records a wrapper.
func (r *Registry) Put(id string, rec Record) { r.records[id] = rec }

// Delete forgets a wrapper.
func (r *Registry) Delete(id string) { delete(r.records, id) }

// Len returns the number of wrappers.
func (r *Registry) Len() int { return len(r.records) }

// IDs returns the wrapper ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save writes the registry.
func (r *Registry) Save() error {
	return jsonx.WriteFile(r.path, r.records, "    ")
}

// InstallRequest describes a wrapper to install.
type InstallRequest struct {
	Entry     *config.Entry
	Original  string
	BackupDir string
	ExtraArgs []string
	Overwrite bool
}

// Wrappers installs and removes wrapper executables. StateDir holds the
// registry and the compiler work files.
type Wrappers struct {
	StateDir string
	Out      io.Writer
	// Confirm asks before an existing wrapper or backup is overwritten.
	Confirm func(prompt string) bool
}

func (w *Wrappers) out() io.Writer {
	if w.Out == nil {
		return io.Discard
	}
	return w.Out
}

func (w *Wrappers) confirm(overwrite bool, prompt string) bool {
	if overwrite {
		return true
	}
	return w.Confirm != nil && w.Confirm(prompt)
}

// Install replaces req.Original with a wrapper that runs the backed-up
// original inside the captured environment of req.Entry. It returns the
// wrapper id.
func (w *Wrappers) Install(ctx context.Context, req InstallRequest) (string, error) {
	if req.Entry == nil {
		return "", config.ErrNoActiveEnvironment
	}
	info, err := os.Stat(req.Original)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("original executable is not a file: %s", req.Original)
	}
	if err := os.MkdirAll(req.BackupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory %s: %w", req.BackupDir, err)
	}
	backup := filepath.Join(req.BackupDir, filepath.Base(req.Original))

	reg, err := OpenRegistry(w.StateDir)
	if err != nil {
		return "", err
	}
	defer reg.Close()

	id := WrapperID(req.Original)
	if _, ok := reg.Get(id); ok {
		if !w.confirm(req.Overwrite, fmt.Sprintf("A wrapper for %s already exists. Overwrite?", req.Original)) {
			return "", ErrCancelled
		}
		if err := w.uninstall(reg, id); err != nil {
			logging.L().Warn().Err(err).Str("id", id).Msg("failed to remove previous wrapper")
		}
	}
	if fsutil.Exists(backup) {
		if !w.confirm(req.Overwrite, fmt.Sprintf("Backup %s already exists. Overwrite?", backup)) {
			return "", ErrCancelled
		}
		if err := os.Remove(backup); err != nil {
			return "", fmt.Errorf("failed to remove old backup: %w", err)
		}
	}

	fmt.Fprintf(w.out(), "%sCapturing environment of %s...%s\n", colors.Cyan, req.Entry.DisplayName, colors.Reset)
	env, err := CaptureEnv(ctx, req.Entry)
	if err != nil {
		return "", err
	}
	if len(env) == 0 {
		return "", fmt.Errorf("no environment captured from %s", req.Entry.VcvarsallPath)
	}

	argsName := ArgsFileName(req.Original)
	csPath := filepath.Join(w.StateDir, generatedCS)
	exePath := filepath.Join(w.StateDir, compiledExe)
	if err := fsutil.WriteFile(csPath, []byte(WrapperSource(backup, argsName, env)), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", csPath, err)
	}
	defer os.Remove(csPath)
	defer os.Remove(exePath)

	fmt.Fprintf(w.out(), "%sCompiling wrapper with csc.exe...%s\n", colors.Cyan, colors.Reset)
	stdout, stderr, err := RunInEnv(ctx, req.Entry, []string{"csc.exe", "/nologo", "/out:" + exePath, csPath})
	if err != nil {
		return "", fmt.Errorf("csc failed: %w\n%s%s", err, stdout, stderr)
	}
	if !fsutil.IsFile(exePath) {
		return "", fmt.Errorf("csc produced no %s\n%s%s", exePath, stdout, stderr)
	}

	fmt.Fprintf(w.out(), "  backup: %s -> %s\n", req.Original, backup)
	if err := fsutil.MoveFile(req.Original, backup); err != nil {
		return "", rollback(req.Original, backup, err)
	}
	fmt.Fprintf(w.out(), "  deploy: wrapper -> %s\n", req.Original)
	if err := fsutil.CopyFile(exePath, req.Original); err != nil {
		return "", restoreOriginal(req.Original, backup, fmt.Errorf("failed to deploy wrapper: %w", err))
	}

	argsFile := filepath.Join(filepath.Dir(req.Original), argsName)
	if err := fsutil.WriteFile(argsFile, []byte(strings.Join(req.ExtraArgs, "\n")), 0644); err != nil {
		return "", restoreOriginal(req.Original, backup, fmt.Errorf("failed to write %s: %w", argsFile, err))
	}

	reg.Put(id, Record{OriginalPath: req.Original, BackupPath: backup, ArgsFile: argsFile})
	if err := reg.Save(); err != nil {
		reg.Delete(id)
		_ = fsutil.RemoveIfExists(argsFile)
		return "", restoreOriginal(req.Original, backup, err)
	}
	return id, nil
}

// rollback undoes a failed backup move. The original is only touched when the
// move already took it away.
func rollback(original, backup string, cause error) error {
	err := fmt.Errorf("failed to deploy wrapper: %w", cause)
	if !fsutil.Exists(original) && fsutil.Exists(backup) {
		if rerr := fsutil.MoveFile(backup, original); rerr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rerr))
		}
	}
	return err
}

// restoreOriginal puts the backup back over whatever now sits at original,
// including a partially copied wrapper.
func restoreOriginal(original, backup string, cause error) error {
	if !fsutil.Exists(backup) {
		return errors.Join(cause, fmt.Errorf("rollback failed: %w", ErrBackupMissing))
	}
	if err := fsutil.RemoveIfExists(original); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback failed: %w", err))
	}
	if err := fsutil.MoveFile(backup, original); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback failed: %w", err))
	}
	return cause
}

// Uninstall restores the original executable of wrapper id.
func (w *Wrappers) Uninstall(id string) error {
	reg, err := OpenRegistry(w.StateDir)
	if err != nil {
		return err
	}
	defer reg.Close()
	return w.uninstall(reg, id)
}

func (w *Wrappers) uninstall(reg *Registry, id string) error {
	rec, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("unknown wrapper id %q", id)
	}
	if !fsutil.Exists(rec.BackupPath) {
		return fmt.Errorf("%s: %w", rec.BackupPath, ErrBackupMissing)
	}

	if err := fsutil.RemoveIfExists(rec.OriginalPath); err != nil {
		return fmt.Errorf("failed to remove wrapper: %w", err)
	}
	if err := fsutil.RemoveIfExists(rec.ArgsFile); err != nil {
		return fmt.Errorf("failed to remove args file: %w", err)
	}
	if err := fsutil.MoveFile(rec.BackupPath, rec.OriginalPath); err != nil {
		return fmt.Errorf("failed to restore %s: %w", rec.OriginalPath, err)
	}

	reg.Delete(id)
	return reg.Save()
}
