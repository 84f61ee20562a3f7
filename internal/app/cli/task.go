package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ozacod/cppenv/internal/pkg/build"
	"github.com/ozacod/cppenv/internal/pkg/genconf"
	"github.com/ozacod/cppenv/internal/pkg/qrc"
	"github.com/spf13/cobra"
)

var (
	// runCommandFunc runs a build tool and streams its output.
	runCommandFunc = build.Run
	// runTerminalFunc starts an interactive shell attached to this terminal.
	runTerminalFunc = runTerminal
)

// TaskCmd creates the task command
func TaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Run build tasks with the template toolchain",
		Long:  "Run cmake, ninja and ctest for the project with the environment described by template.json.",
	}
	cmd.PersistentFlags().String("template-dir", DefaultTemplateDir, "Template directory, relative to the project")

	cmd.AddCommand(&cobra.Command{
		Use:   "terminal <profile>",
		Short: "Open an interactive shell with the task environment",
		Long:  "Open an interactive shell with the task environment. The \"full\" profile also puts conan's run PATH first.",
		Args:  cobra.ExactArgs(1),
		RunE:  runTaskTerminal,
	})

	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure the project with cmake",
		RunE:  runTaskConfigure,
	}
	configureCmd.Flags().String("build-type", "Debug", "CMAKE_BUILD_TYPE")
	configureCmd.Flags().String("cmake-flags", "", "Extra cmake flags (default: platform defaults)")
	cmd.AddCommand(configureCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Build the project with ninja",
		RunE:  runTaskTool("ninja", build.BuildArgs),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the build outputs",
		RunE:  runTaskTool("ninja", build.InstallArgs),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Clean the build directory",
		RunE:  runTaskTool("ninja", build.CleanArgs),
	})

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Run tests with ctest",
		RunE:  runTaskTest,
	}
	testCmd.Flags().Bool("verbose", false, "Verbose ctest output")
	testCmd.Flags().String("filter", "", "Only run tests matching this regex")
	cmd.AddCommand(testCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "copy-dll",
		Short: "Copy shared libraries into build/bin",
		RunE:  runTaskCopyDLL,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "qrc",
		Short: "Generate Qt resource files and snippets",
		RunE:  runTaskQrc,
	})

	return cmd
}

type taskContext struct {
	root string
	tc   *build.Toolchain
	env  []string
}

func loadTaskContext(cmd *cobra.Command) (*taskContext, error) {
	root, err := projectDir(cmd)
	if err != nil {
		return nil, err
	}
	templateDir := DefaultTemplateDir
	if f := cmd.Flag("template-dir"); f != nil && f.Value.String() != "" {
		templateDir = f.Value.String()
	}
	if !filepath.IsAbs(templateDir) {
		templateDir = filepath.Join(root, templateDir)
	}

	tc, err := build.LoadToolchain(templateDir, hostOS)
	if err != nil {
		return nil, err
	}
	env, err := build.Env(os.Environ(), tc, hostOS)
	if err != nil {
		return nil, err
	}
	return &taskContext{root: root, tc: tc, env: env}, nil
}

func (t *taskContext) run(cmd *cobra.Command, label, name string, args []string) error {
	out := cmd.OutOrStdout()
	if err := runCommandFunc(cmd.Context(), out, name, args, t.env, t.root); err != nil {
		fmt.Fprintf(out, "%s✗ %s failed%s\n", Red, label, Reset)
		return err
	}
	fmt.Fprintf(out, "%s✓ %s succeeded%s\n", Green, label, Reset)
	return nil
}

func runTaskTool(name string, argsFor func(root string) []string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		t, err := loadTaskContext(cmd)
		if err != nil {
			return err
		}
		return t.run(cmd, cmd.Name(), name, argsFor(t.root))
	}
}

func runTaskConfigure(cmd *cobra.Command, _ []string) error {
	buildType, _ := cmd.Flags().GetString("build-type")
	flagStr, _ := cmd.Flags().GetString("cmake-flags")
	if flagStr == "" {
		flagStr = build.DefaultCMakeFlags(hostOS)
	}
	flags, err := build.SplitFlags(flagStr)
	if err != nil {
		return err
	}

	t, err := loadTaskContext(cmd)
	if err != nil {
		return err
	}
	return t.run(cmd, "configure", "cmake", build.ConfigureArgs(t.root, buildType, flags, t.tc))
}

func runTaskTest(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	filter, _ := cmd.Flags().GetString("filter")

	t, err := loadTaskContext(cmd)
	if err != nil {
		return err
	}
	return t.run(cmd, "test", "ctest", build.TestArgs(t.root, verbose, filter))
}

func runTaskTerminal(cmd *cobra.Command, args []string) error {
	profile := args[0]
	if profile == "" {
		return errors.New("terminal profile must not be empty")
	}

	t, err := loadTaskContext(cmd)
	if err != nil {
		return err
	}
	if err := t.tc.CheckShell(hostOS); err != nil {
		return err
	}

	env := t.env
	if profile == "full" {
		env = build.PrependPath(env, genconf.ConanPath(t.root, hostOS, cmd.OutOrStdout()), hostOS)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%sOpening %s (%s profile)...%s\n", Cyan, t.tc.Shell, profile, Reset)
	return runTerminalFunc(cmd.Context(), t.tc.Shell, []string{"-i"}, env, t.root)
}

func runTerminal(ctx context.Context, shell string, args, env []string, dir string) error {
	c := exec.CommandContext(ctx, shell, args...)
	c.Env = env
	c.Dir = dir
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("terminal exited: %w", err)
	}
	return nil
}

func runTaskCopyDLL(cmd *cobra.Command, _ []string) error {
	root, err := projectDir(cmd)
	if err != nil {
		return err
	}
	_, err = build.CopyLibs(root, hostOS, cmd.OutOrStdout())
	return err
}

func runTaskQrc(cmd *cobra.Command, _ []string) error {
	root, err := projectDir(cmd)
	if err != nil {
		return err
	}
	if !qrc.IsQtProject(root) {
		return qrc.ErrNotQtProject
	}

	cfg, err := qrc.LoadConfig(root)
	if errors.Is(err, qrc.ErrConfigCreated) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s%v: %s%s\n", Yellow, err, qrc.ConfigPath(root), Reset)
		return nil
	}
	if err != nil {
		return err
	}
	return qrc.Generate(root, cfg, cmd.OutOrStdout())
}
