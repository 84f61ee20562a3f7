package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ozacod/cppenv/internal/app/cli/tui"
	"github.com/ozacod/cppenv/internal/pkg/fsutil"
	"github.com/ozacod/cppenv/internal/pkg/vsenv"
	"github.com/ozacod/cppenv/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	findVswhereFunc     = vsenv.FindVswhere
	installationsFunc   = vsenv.Installations
	captureEnvFunc      = vsenv.CaptureEnv
	setPermanentEnvFunc = vsenv.SetPermanentEnv
	isElevatedFunc      = vsenv.IsElevated

	pickFunc        = tui.RunPicker
	multiSelectFunc = tui.RunMultiSelect
	entryWizardFunc = tui.RunEntryWizard
)

// VsenvCmd creates the vsenv command
func VsenvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vsenv",
		Short: "Manage Visual Studio build environments",
		Long:  "Discover Visual Studio toolsets, pick the active one and expose its environment through .bat shims.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Find Visual Studio installations with vswhere",
		RunE:  runVsenvScan,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known environments",
		RunE:  runVsenvList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "use [id]",
		Short: "Set the active environment and regenerate shims",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runVsenvUse,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Regenerate shims for the active environment",
		RunE:  runVsenvApply,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Add an environment manually",
		RunE:  runVsenvAdd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm [id...]",
		Short: "Remove environments",
		RunE:  runVsenvRemove,
	})

	extraCmd := &cobra.Command{
		Use:   "extra",
		Short: "Manage extra executables that get a shim",
	}
	extraAddCmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Add an extra executable",
		Args:  cobra.ExactArgs(1),
		RunE:  runVsenvExtraAdd,
	}
	extraAddCmd.Flags().String("name", "", "Shim name (default: the executable name)")
	extraAddCmd.Flags().String("description", "", "Free-form description")
	extraCmd.AddCommand(extraAddCmd)
	extraCmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an extra executable",
		Args:  cobra.ExactArgs(1),
		RunE:  runVsenvExtraRemove,
	})
	cmd.AddCommand(extraCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "set-dir <dir>",
		Short: "Set the shim directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runVsenvSetDir,
	})

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every shim in the shim directory",
		RunE:  runVsenvCleanup,
	}
	cleanupCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(cleanupCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration",
		RunE:  runVsenvShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "persist",
		Short: "Write the active environment to the registry (Windows)",
		RunE:  runVsenvPersist,
	})

	return cmd
}

func entryItems(cfg *config.GlobalConfig) []tui.Item {
	items := make([]tui.Item, 0, len(cfg.Entries))
	for _, e := range cfg.Entries {
		items = append(items, tui.Item{ID: e.ID, Label: e.DisplayName, Detail: e.ID})
	}
	return items
}

func runVsenvScan(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	vswhere, err := findVswhereFunc(cfg.VswherePath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%sScanning with %s...%s\n", Cyan, vswhere, Reset)

	installs, err := installationsFunc(cmd.Context(), vswhere)
	if err != nil {
		return err
	}
	added := cfg.AddEntries(vsenv.Scan(installs, cfg.ScanArchitectures, cfg.Entries)...)
	if len(added) == 0 {
		fmt.Fprintf(out, "%sNo new environments found (%d installation(s)).%s\n", Yellow, len(installs), Reset)
		return nil
	}

	if cfg.VswherePath == "" {
		cfg.VswherePath = vswhere
	}
	if err := config.SaveGlobal(cfg); err != nil {
		return err
	}
	for _, e := range added {
		fmt.Fprintf(out, "%s+ Added%s %s %s(%s)%s\n", Green, Reset, e.DisplayName, Cyan, e.ID, Reset)
	}
	return nil
}

func runVsenvList(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	if len(cfg.Entries) == 0 {
		fmt.Fprintf(out, "%sNo environments. Run 'cppenv vsenv scan' or 'cppenv vsenv add'.%s\n", Yellow, Reset)
	}
	for _, e := range cfg.Entries {
		marker := " "
		if e.ID == cfg.ActiveEnvironmentID {
			marker = Green + "*" + Reset
		}
		fmt.Fprintf(out, "%s %s%-24s%s %s\n", marker, Cyan, e.ID, Reset, e.DisplayName)
	}

	if len(cfg.ExtraExecutables) > 0 {
		fmt.Fprintf(out, "\n%sExtra executables:%s\n", Bold, Reset)
		for _, x := range cfg.ExtraExecutables {
			fmt.Fprintf(out, "  %-16s %s\n", x.Name, x.Path)
		}
	}
	if cfg.ShimDirectory != "" {
		fmt.Fprintf(out, "\nShim directory: %s\n", cfg.ShimDirectory)
	}
	return nil
}

// applyActive regenerates the shims of the active environment. A missing
// shim directory is reported, not treated as an error.
func applyActive(cmd *cobra.Command, cfg *config.GlobalConfig) error {
	out := cmd.OutOrStdout()
	entry, err := cfg.ActiveEntry()
	if err != nil {
		return err
	}
	if cfg.ShimDirectory == "" {
		fmt.Fprintf(out, "%sShim directory not set, run 'cppenv vsenv set-dir <dir>' to generate shims.%s\n", Yellow, Reset)
		return nil
	}

	fmt.Fprintf(out, "%sCapturing environment of %s...%s\n", Cyan, entry.DisplayName, Reset)
	env, err := captureEnvFunc(cmd.Context(), entry)
	if err != nil {
		return err
	}
	if len(env) == 0 {
		return fmt.Errorf("vcvarsall produced no environment for %s", entry.ID)
	}

	n, err := vsenv.ApplyShims(cfg, entry, env)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s✓ Generated %d shim(s) in %s%s\n", Green, n, cfg.ShimDirectory, Reset)
	return nil
}

func runVsenvUse(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		if len(cfg.Entries) == 0 {
			return errors.New("no environments, run 'cppenv vsenv scan' first")
		}
		id, err = pickFunc(entryItems(cfg), cfg.ActiveEnvironmentID, "Select VS environment")
		if err != nil {
			return err
		}
		if id == "" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	entry, ok := cfg.FindEntry(id)
	if !ok {
		return fmt.Errorf("unknown environment %q", id)
	}
	cfg.ActiveEnvironmentID = entry.ID
	if err := config.SaveGlobal(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s✓ Active environment: %s%s\n", Green, entry.DisplayName, Reset)
	return applyActive(cmd, cfg)
}

func runVsenvApply(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	return applyActive(cmd, cfg)
}

func runVsenvAdd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(cfg.Entries))
	for _, e := range cfg.Entries {
		ids = append(ids, e.ID)
	}
	entry, err := entryWizardFunc(ids)
	if err != nil {
		return err
	}
	if entry == nil {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	if !fsutil.IsFile(entry.VcvarsallPath) {
		fmt.Fprintf(out, "%sWarning: %s does not exist yet%s\n", Yellow, entry.VcvarsallPath, Reset)
	}

	if len(cfg.AddEntries(*entry)) == 0 {
		return fmt.Errorf("environment %q already exists", entry.ID)
	}
	if err := config.SaveGlobal(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s+ Added%s %s %s(%s)%s\n", Green, Reset, entry.DisplayName, Cyan, entry.ID, Reset)
	return nil
}

func runVsenvRemove(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	if len(cfg.Entries) == 0 {
		fmt.Fprintf(out, "%sNo environments to remove.%s\n", Yellow, Reset)
		return nil
	}

	ids := args
	if len(ids) == 0 {
		ids, err = multiSelectFunc(entryItems(cfg), nil, "Select environments to remove")
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	removed := cfg.RemoveEntries(ids...)
	gone := make(map[string]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
		fmt.Fprintf(out, "%s- Removed%s %s\n", Red, Reset, id)
	}
	for _, id := range ids {
		if !gone[id] {
			fmt.Fprintf(out, "%sWarning: unknown environment %s%s\n", Yellow, id, Reset)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	return config.SaveGlobal(cfg)
}

func runVsenvExtraAdd(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if !fsutil.IsFile(path) {
		return fmt.Errorf("executable not found: %s", path)
	}

	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	cfg.AddExtra(config.ExtraExecutable{Name: name, Description: description, Path: path})
	if err := config.SaveGlobal(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s+ Added%s %s -> %s\n", Green, Reset, name, path)
	fmt.Fprintf(out, "%sRun 'cppenv vsenv apply' to regenerate shims.%s\n", Yellow, Reset)
	return nil
}

func runVsenvExtraRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	if !cfg.RemoveExtra(args[0]) {
		return fmt.Errorf("extra executable %q not found", args[0])
	}
	if err := config.SaveGlobal(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s- Removed%s %s\n", Red, Reset, args[0])
	return nil
}

func runVsenvSetDir(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	cfg.ShimDirectory = dir
	if err := config.SaveGlobal(cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Shim directory: %s%s\n", Green, dir, Reset)
	fmt.Fprintf(cmd.OutOrStdout(), "%sAdd it to PATH to use the shims.%s\n", Yellow, Reset)
	return nil
}

func runVsenvCleanup(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	yes, _ := cmd.Flags().GetBool("yes")

	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	dir, err := vsenv.ShimDir(cfg)
	if err != nil {
		return err
	}
	if !fsutil.Exists(dir) {
		fmt.Fprintf(out, "%sShim directory %s does not exist, nothing to clean.%s\n", Yellow, dir, Reset)
		return nil
	}
	if !yes && !confirmFunc(fmt.Sprintf("Delete all .bat and .json files in %s?", dir)) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	n, err := vsenv.CleanupShims(dir)
	fmt.Fprintf(out, "%s- Removed%s %d file(s) from %s\n", Red, Reset, n, dir)
	return err
}

func runVsenvShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s# %s%s\n%s", Cyan, path, Reset, data)
	return nil
}

func runVsenvPersist(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	entry, err := cfg.ActiveEntry()
	if err != nil {
		return err
	}
	if !isElevatedFunc() {
		return errors.New("writing the machine PATH needs administrator rights, rerun from an elevated terminal")
	}

	env, err := captureEnvFunc(cmd.Context(), entry)
	if err != nil {
		return err
	}
	if err := setPermanentEnvFunc(env); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s✓ Persisted %d variable(s) of %s%s\n", Green, len(env), entry.DisplayName, Reset)
	fmt.Fprintf(out, "%sOpen a new terminal to pick them up.%s\n", Yellow, Reset)
	return nil
}
