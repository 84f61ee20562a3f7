package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kballard/go-shellquote"
	"github.com/ozacod/cppenv/internal/app/cli/tui"
	"github.com/ozacod/cppenv/internal/pkg/vsenv"
	"github.com/ozacod/cppenv/pkg/config"
	"github.com/spf13/cobra"
)

var (
	installWrapperFunc = func(ctx context.Context, w *vsenv.Wrappers, req vsenv.InstallRequest) (string, error) {
		return w.Install(ctx, req)
	}
	uninstallWrapperFunc = func(w *vsenv.Wrappers, id string) error {
		return w.Uninstall(id)
	}
)

// WrapperCmd creates the wrapper command
func WrapperCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wrapper",
		Short: "Wrap executables so they always run in the active VS environment",
		Long:  "Replace an executable with a compiled wrapper that starts the original with the captured vcvarsall environment.",
	}

	installCmd := &cobra.Command{
		Use:   "install <exe>",
		Short: "Install a wrapper in place of an executable",
		Args:  cobra.ExactArgs(1),
		RunE:  runWrapperInstall,
	}
	installCmd.Flags().String("backup-dir", "", "Directory that receives the original executable")
	installCmd.Flags().String("args", "", "Extra arguments passed before the caller's arguments")
	installCmd.Flags().BoolP("yes", "y", false, "Overwrite existing wrappers and backups without asking")
	_ = installCmd.MarkFlagRequired("backup-dir")
	cmd.AddCommand(installCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall [id...]",
		Short: "Restore wrapped executables",
		RunE:  runWrapperUninstall,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List installed wrappers",
		RunE:  runWrapperList,
	})

	return cmd
}

func newWrappers(cmd *cobra.Command, cfg *config.GlobalConfig) (*vsenv.Wrappers, error) {
	dir, err := cfg.WrapperDir()
	if err != nil {
		return nil, err
	}
	return &vsenv.Wrappers{StateDir: dir, Out: cmd.OutOrStdout(), Confirm: confirmFunc}, nil
}

func requireElevation() error {
	if !isElevatedFunc() {
		return errors.New("replacing executables needs administrator rights, rerun from an elevated terminal")
	}
	return nil
}

func runWrapperInstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	backupDir, _ := cmd.Flags().GetString("backup-dir")
	argStr, _ := cmd.Flags().GetString("args")
	yes, _ := cmd.Flags().GetBool("yes")

	extra, err := shellquote.Split(argStr)
	if err != nil {
		return fmt.Errorf("invalid --args %q: %w", argStr, err)
	}
	original, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if backupDir, err = filepath.Abs(backupDir); err != nil {
		return err
	}
	if err := requireElevation(); err != nil {
		return err
	}

	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	entry, err := cfg.ActiveEntry()
	if err != nil {
		return err
	}
	w, err := newWrappers(cmd, cfg)
	if err != nil {
		return err
	}

	id, err := installWrapperFunc(cmd.Context(), w, vsenv.InstallRequest{
		Entry:     entry,
		Original:  original,
		BackupDir: backupDir,
		ExtraArgs: extra,
		Overwrite: yes,
	})
	if errors.Is(err, vsenv.ErrCancelled) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	if err != nil {
		fmt.Fprintf(out, "%s✗ Failed to wrap %s%s\n", Red, original, Reset)
		return err
	}
	fmt.Fprintf(out, "%s✓ Wrapped %s (id %s)%s\n", Green, original, id, Reset)
	return nil
}

func runWrapperUninstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if err := requireElevation(); err != nil {
		return err
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	w, err := newWrappers(cmd, cfg)
	if err != nil {
		return err
	}

	ids := args
	if len(ids) == 0 {
		items, err := wrapperItems(w.StateDir)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintf(out, "%sNo wrappers installed.%s\n", Yellow, Reset)
			return nil
		}
		ids, err = multiSelectFunc(items, nil, "Select wrappers to uninstall")
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	var errs []error
	for _, id := range ids {
		if err := uninstallWrapperFunc(w, id); err != nil {
			fmt.Fprintf(out, "%s✗ %s: %v%s\n", Red, id, err, Reset)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s- Removed%s wrapper %s\n", Red, Reset, id)
	}
	return errors.Join(errs...)
}

// wrapperItems reads the registry and releases its lock before returning.
func wrapperItems(stateDir string) ([]tui.Item, error) {
	reg, err := vsenv.OpenRegistry(stateDir)
	if err != nil {
		return nil, err
	}
	defer reg.Close()

	var items []tui.Item
	for _, id := range reg.IDs() {
		rec, _ := reg.Get(id)
		items = append(items, tui.Item{ID: id, Label: rec.OriginalPath, Detail: id})
	}
	return items, nil
}

func runWrapperList(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadGlobal()
	if err != nil {
		return err
	}
	dir, err := cfg.WrapperDir()
	if err != nil {
		return err
	}

	reg, err := vsenv.OpenRegistry(dir)
	if err != nil {
		return err
	}
	defer reg.Close()

	if reg.Len() == 0 {
		fmt.Fprintf(out, "%sNo wrappers installed.%s\n", Yellow, Reset)
		return nil
	}
	for _, id := range reg.IDs() {
		rec, _ := reg.Get(id)
		fmt.Fprintf(out, "%s%s%s %s\n", Cyan, id, Reset, rec.OriginalPath)
		fmt.Fprintf(out, "    backup: %s\n", rec.BackupPath)
	}
	return nil
}
