package build

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/logging"
	"github.com/ozacod/cppenv/internal/pkg/utils/colors"
)

var (
	errorLineRe   = regexp.MustCompile(`(?i)\berror\b`)
	warningLineRe = regexp.MustCompile(`(?i)\bwarning\b`)
)

// ColorLine paints compiler error lines red and warning lines yellow.
func ColorLine(line string) string {
	switch {
	case errorLineRe.MatchString(line):
		return colors.Red + line + colors.Reset
	case warningLineRe.MatchString(line):
		return colors.Yellow + line + colors.Reset
	default:
		return line
	}
}

// CommandLine renders name and args the way a shell would accept them.
func CommandLine(name string, args []string) string {
	return shellquote.Join(append([]string{name}, args...)...)
}

// Run starts name with args and streams its stdout and stderr to w line by
// line, colouring errors and warnings. A non-zero exit is returned as an
// error carrying the exit code.
func Run(ctx context.Context, w io.Writer, name string, args, env []string, dir string) error {
	fmt.Fprintf(w, "%s$ %s%s\n", colors.Cyan, CommandLine(name, args), colors.Reset)
	logging.L().Debug().Str("cmd", name).Strs("args", args).Str("dir", dir).Msg("running")

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	stream := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := ColorLine(scanner.Text())
			mu.Lock()
			fmt.Fprintln(w, line)
			mu.Unlock()
		}
	}
	wg.Add(2)
	go stream(stdout)
	go stream(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %w", name, exitErr.ExitCode(), err)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// LibExtension returns the shared library extension for goos.
func LibExtension(goos string) string {
	switch goos {
	case "linux":
		return ".so"
	case "darwin":
		return ".dylib"
	default:
		return ".dll"
	}
}

// LibTargetDir is where CopyLibs puts the libraries.
func LibTargetDir(root string) string {
	return filepath.Join(root, "build", "bin", "Debug")
}

// CollectLibs finds every shared library below root, skipping the target dir.
func CollectLibs(root, goos string) ([]string, error) {
	ext := LibExtension(goos)
	target := LibTargetDir(root)

	var libs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.L().Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == target {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ext) {
			libs = append(libs, path)
		}
		return nil
	})
	return libs, err
}

// CopyLibs copies the project's shared libraries into build/bin/Debug and
// returns how many were copied.
func CopyLibs(root, goos string, w io.Writer) (int, error) {
	libs, err := CollectLibs(root, goos)
	if err != nil {
		return 0, err
	}
	ext := LibExtension(goos)
	if len(libs) == 0 {
		fmt.Fprintf(w, "%sNo %s files found%s\n", colors.Yellow, ext, colors.Reset)
		return 0, nil
	}

	target := LibTargetDir(root)
	if err := os.MkdirAll(target, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", target, err)
	}

	pairs := make([]fsutil.CopyPair, 0, len(libs))
	for _, lib := range libs {
		pairs = append(pairs, fsutil.CopyPair{Src: lib, Dst: filepath.Join(target, filepath.Base(lib))})
	}
	n, err := fsutil.CopyAll(w, pairs, "Copying "+ext)
	if err != nil {
		return n, err
	}
	fmt.Fprintf(w, "%sCopied %d %s files to %s%s\n", colors.Green, n, ext, target, colors.Reset)
	return n, nil
}
