package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/petal-labs/pollen/descriptor"
	"github.com/petal-labs/pollen/pack"
)

// NewBuildCmd creates the "build" subcommand.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Validate and package a tool app",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBuild,
	}

	cmd.Flags().StringP("output", "o", "", "Package file path (default: <name>.pollen next to the project)")
	cmd.Flags().Bool("check", true, "Validate the project layout before packaging")
	cmd.Flags().String("bundle", "", "Reuse a compiled bundle file instead of running the app")

	return cmd
}

// runBuild implements the packaging pipeline:
//
//	locate project → load config → validate layout → compile schema
//	bundle → assemble .pollen package → report sizes
func runBuild(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	stdout := cmd.OutOrStdout()

	output, _ := cmd.Flags().GetString("output")
	check, _ := cmd.Flags().GetBool("check")
	bundleFlag, _ := cmd.Flags().GetString("bundle")

	// Step 1: Load project config
	cfgPath := filepath.Join(dir, pack.ProjectConfigName)
	cfg, err := pack.LoadConfig(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "no %s found in %s", pack.ProjectConfigName, dir)
		}
		return exitError(exitInputParse, "%s", err)
	}

	manifest := cfg.Manifest()
	if err := manifest.Validate(); err != nil {
		return exitError(exitValidation, "%s", err)
	}

	// Step 2: Check project layout
	if check {
		if err := pack.ValidateProject(dir); err != nil {
			return exitError(exitValidation, "%s", err)
		}
		if cfg.Build.Icon != "" {
			if _, err := os.Stat(filepath.Join(dir, cfg.Build.Icon)); err != nil {
				return exitError(exitValidation, "icon %s: %v", cfg.Build.Icon, err)
			}
		}
		fmt.Fprintln(stdout, "Project checks passed")
	}

	// Step 3: Compile the schema bundle, or reuse one
	bundle, err := compileBundle(cmd, dir, bundleFlag)
	if err != nil {
		return err
	}

	// Step 4: Assemble the package
	info, err := pack.BuildPackage(dir, bundle, manifest, &pack.BuildOptions{
		Output:  output,
		Exclude: cfg.Build.Exclude,
	})
	if err != nil {
		return exitError(exitRuntime, "%s", err)
	}

	// Step 5: Report what was produced
	fmt.Fprintf(stdout, "Packaged %d files (%s raw)\n", info.Files, formatSize(info.RawBytes))
	fmt.Fprintf(stdout, "Wrote %s (%s)\n", info.Path, formatSize(info.PackedBytes))
	return nil
}

// compileBundle obtains the app's schema bundle. When bundleFlag names
// an existing bundle file it is loaded directly; otherwise the app is
// run through the Go toolchain to emit a fresh one.
func compileBundle(cmd *cobra.Command, dir, bundleFlag string) (*descriptor.Bundle, error) {
	path := bundleFlag
	if path == "" {
		tmp, err := os.CreateTemp("", "pollen-bundle-*.json")
		if err != nil {
			return nil, exitError(exitRuntime, "creating bundle scratch file: %v", err)
		}
		path = tmp.Name()
		_ = tmp.Close()
		defer os.Remove(path)

		run := exec.CommandContext(cmd.Context(), "go", "run", ".", "schema", "--out", path)
		run.Dir = dir
		if out, err := run.CombinedOutput(); err != nil {
			return nil, exitError(exitRuntime, "compiling schema bundle: %v\n%s", err, out)
		}
	}

	bundle, err := descriptor.ReadFile(path)
	switch {
	case err == nil:
		return bundle, nil
	case errors.Is(err, descriptor.ErrBundleVersion):
		return nil, exitError(exitWrongSchema, "%s", err)
	case errors.Is(err, os.ErrNotExist):
		return nil, exitError(exitFileNotFound, "bundle file not found: %s", path)
	default:
		return nil, exitError(exitInputParse, "%s", err)
	}
}

// formatSize renders a byte count with a binary-step unit, one decimal.
func formatSize(n int64) string {
	const step = 1024
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(n)
	for _, unit := range units {
		if size < step || unit == units[len(units)-1] {
			if unit == "B" {
				return fmt.Sprintf("%d %s", n, unit)
			}
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= step
	}
	return fmt.Sprintf("%d B", n)
}
