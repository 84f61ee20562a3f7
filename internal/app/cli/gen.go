package cli

import (
	"fmt"

	"github.com/ozacod/cppenv/internal/pkg/genconf"
	"github.com/ozacod/cppenv/internal/pkg/launch"
	"github.com/ozacod/cppenv/internal/pkg/logging"
	"github.com/ozacod/cppenv/internal/pkg/presets"
	"github.com/ozacod/cppenv/internal/pkg/settings"
	"github.com/ozacod/cppenv/pkg/config"
	"github.com/spf13/cobra"
)

// GenCmd creates the gen command
func GenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate .vscode files from template.json",
		Long:  "Render the *.json.in inputs of the template directory into the project's .vscode directory.",
	}
	cmd.PersistentFlags().String("template-dir", DefaultTemplateDir, "Template directory, relative to the project")

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Generate .vscode/settings.json",
		RunE:  runGenSettings,
	}
	settingsCmd.Flags().Bool("defaults", false, "Merge the built-in defaults into the existing settings.json")
	cmd.AddCommand(settingsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "tasks",
		Short: "Generate .vscode/tasks.json",
		RunE:  runGenStep(func(g *genconf.Generator) error { return g.GenerateTasks() }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cpp-properties",
		Short: "Generate .vscode/c_cpp_properties.json",
		RunE:  runGenStep(func(g *genconf.Generator) error { return g.GenerateCCppProperties() }),
	})

	launchCmd := &cobra.Command{
		Use:   "launch",
		Short: "Generate .vscode/launch.json",
		RunE:  runGenLaunch,
	}
	launchCmd.Flags().Bool("merge", false, "Scan build/bin and merge debug configurations into the existing launch.json")
	cmd.AddCommand(launchCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "copy",
		Short: "Copy the files listed in template.json",
		RunE:  runGenStep(func(g *genconf.Generator) error { return g.CopyFiles() }),
	})

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "Generate CMakePresets.json",
		RunE:  runGenPresets,
	}
	presetsCmd.Flags().Bool("builtin", false, "Build presets from platform specs instead of CMakePresets.json.in")
	presetsCmd.Flags().String("specs", "", "JSON file with platform specs (implies --builtin)")
	cmd.AddCommand(presetsCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Run every generator",
		RunE:  runGenStep(func(g *genconf.Generator) error { return g.GenerateAll() }),
	})

	return cmd
}

func newGenerator(cmd *cobra.Command) (*genconf.Generator, error) {
	root, err := projectDir(cmd)
	if err != nil {
		return nil, err
	}
	templateDir := DefaultTemplateDir
	if f := cmd.Flag("template-dir"); f != nil && f.Value.String() != "" {
		templateDir = f.Value.String()
	}
	logging.L().Debug().Str("root", root).Str("template", templateDir).Msg("generator")
	return genconf.NewGenerator(root, templateDir, hostOS, cmd.OutOrStdout()), nil
}

func runGenStep(step func(g *genconf.Generator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		g, err := newGenerator(cmd)
		if err != nil {
			return err
		}
		if err := step(g); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Done (%s)%s\n", Green, g.OutputDir(), Reset)
		return nil
	}
}

func runGenSettings(cmd *cobra.Command, _ []string) error {
	useDefaults, _ := cmd.Flags().GetBool("defaults")
	if !useDefaults {
		return runGenStep(func(g *genconf.Generator) error { return g.GenerateSettings() })(cmd, nil)
	}

	root, err := projectDir(cmd)
	if err != nil {
		return err
	}
	path, err := settings.Write(root, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Updated %s%s\n", Green, path, Reset)
	return nil
}

func runGenLaunch(cmd *cobra.Command, _ []string) error {
	merge, _ := cmd.Flags().GetBool("merge")
	if !merge {
		return runGenStep(func(g *genconf.Generator) error { return g.GenerateLaunchFromTemplate() })(cmd, nil)
	}

	root, err := projectDir(cmd)
	if err != nil {
		return err
	}
	visualizer := ""
	if cfg, err := config.LoadGlobal(); err != nil {
		logging.L().Warn().Err(err).Msg("failed to load config, using no visualizer file")
	} else {
		visualizer = cfg.VisualizerFile
	}

	g := &launch.Generator{Root: root, GOOS: hostOS, VisualizerFile: visualizer, Out: cmd.OutOrStdout()}
	path, n, err := g.Generate()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Wrote %d configuration(s) to %s%s\n", Green, n, path, Reset)
	return nil
}

func runGenPresets(cmd *cobra.Command, _ []string) error {
	builtin, _ := cmd.Flags().GetBool("builtin")
	specsFile, _ := cmd.Flags().GetString("specs")
	if !builtin && specsFile == "" {
		return runGenStep(func(g *genconf.Generator) error { return g.GenerateTemplatePresets() })(cmd, nil)
	}

	root, err := projectDir(cmd)
	if err != nil {
		return err
	}
	specs := presets.DefaultSpecs()
	if specsFile != "" {
		if specs, err = presets.LoadSpecs(specsFile); err != nil {
			return err
		}
	}

	path, err := presets.Write(root, specs)
	if err != nil {
		return fmt.Errorf("failed to write presets: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ Wrote %s%s\n", Green, path, Reset)
	return nil
}
