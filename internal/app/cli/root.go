package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/logging"
	"github.com/spf13/cobra"
)

// ProjectDirEnv names the project root when --project is not given.
const ProjectDirEnv = "PROJECT_DIR"

// DefaultTemplateDir is where template.json and the *.json.in inputs live.
const DefaultTemplateDir = ".vscode/template"

var (
	hostOS = runtime.GOOS

	stdin io.Reader = os.Stdin

	// confirmFunc asks a yes/no question on the terminal. Tests replace it.
	confirmFunc = promptYesNo
)

// NewRootCmd builds the cppenv command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "cppenv",
		Short:         "C/C++ project environment manager for VS Code and Visual Studio toolchains",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logging.Setup(os.Stderr, verbose)
		},
	}
	root.PersistentFlags().StringP("project", "C", "", "Project directory (default: $PROJECT_DIR or the nearest parent with .vscode)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(GenCmd())
	root.AddCommand(TaskCmd())
	root.AddCommand(VsenvCmd())
	root.AddCommand(WrapperCmd())
	return root
}

// projectDir resolves the project root: --project, then $PROJECT_DIR, then
// the nearest directory above the cwd containing .vscode.
func projectDir(cmd *cobra.Command) (string, error) {
	if f := cmd.Flag("project"); f != nil && f.Value.String() != "" {
		return filepath.Abs(f.Value.String())
	}
	if env := os.Getenv(ProjectDirEnv); env != "" {
		return filepath.Abs(env)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	dir, err := fsutil.FindUp(cwd, ".vscode")
	if err != nil {
		return "", fmt.Errorf("project directory not found (use --project or %s): %w", ProjectDirEnv, err)
	}
	return dir, nil
}

func promptYesNo(prompt string) bool {
	fmt.Printf("%s%s [y/N]: %s", Yellow, prompt, Reset)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
