package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/petal-labs/pollen/pack"
	"github.com/petal-labs/pollen/schema"
)

// NewInitCmd creates the "init" subcommand.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Scaffold a new tool app project",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}

	cmd.Flags().StringP("description", "d", "", "One-line app description")
	cmd.Flags().String("fullname", "", "Display name (default: capitalized app name)")
	cmd.Flags().String("goal", "", "What the app is for, shown to the orchestrator")
	cmd.Flags().String("dir", "", "Target directory (default: ./<name>)")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	rawName := strings.TrimSpace(args[0])
	description, _ := cmd.Flags().GetString("description")
	fullname, _ := cmd.Flags().GetString("fullname")
	goal, _ := cmd.Flags().GetString("goal")
	dir, _ := cmd.Flags().GetString("dir")

	if !strings.ContainsFunc(rawName, isIdentRune) {
		return exitError(exitValidation, "app name %q has no usable identifier characters", rawName)
	}
	appName := schema.SanitizeIdent(rawName)
	if fullname == "" {
		fullname = capitalize(appName)
	}
	if description == "" {
		description = fmt.Sprintf("%s tool app", fullname)
	}
	if dir == "" {
		dir = appName
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return exitError(exitValidation, "target directory %q already exists and is not empty", dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return exitError(exitRuntime, "creating project directory: %v", err)
	}

	manifest := pack.NewManifest(appName)
	files := []struct {
		name    string
		content string
	}{
		{pack.ProjectConfigName, fmt.Sprintf(configTemplate, appName, quoteYAML(fullname), quoteYAML(description), quoteYAML(goal), manifest.BundleID)},
		{"main.go", fmt.Sprintf(mainTemplate, appName, fullname, description)},
		{"go.mod", fmt.Sprintf(goModTemplate, appName)},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.content), 0o644); err != nil {
			return exitError(exitRuntime, "writing %s: %v", f.name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", filepath.Join(dir, f.name))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nProject %s initialized in %s\n", appName, dir)
	fmt.Fprintln(cmd.OutOrStdout(), "Run 'pollen build' in the project directory to package the app.")
	return nil
}

func isIdentRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// quoteYAML renders a string as a double-quoted YAML scalar so user
// text cannot break the generated config.
func quoteYAML(s string) string {
	return fmt.Sprintf("%q", s)
}

const configTemplate = `app:
  name: %s
  fullname: %s
  description: %s
  goal: %s
  version: 0.1.0
  bundle_id: %s
build:
  exclude:
    - "*.pollen"
`

const mainTemplate = `package main

import (
	"context"

	"github.com/petal-labs/pollen"
)

func main() {
	app := pollen.New(pollen.AppInfo{
		Name:        %q,
		FullName:    %q,
		Description: %q,
	})

	app.MustRegister(&pollen.Tool{
		Name:        "greet",
		Description: "Greets the given name.",
		Params: []pollen.Param{
			{Name: "name", Type: pollen.String(), Doc: "Who to greet"},
		},
		Returns: pollen.Returns(pollen.String()),
		Handler: func(ctx context.Context, args pollen.Args) (any, error) {
			return "Hello, " + args.String("name") + "!", nil
		},
	})

	pollen.Main(app)
}
`

const goModTemplate = `module %s

go 1.24

require github.com/petal-labs/pollen v0.1.0
`
