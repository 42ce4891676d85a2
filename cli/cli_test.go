package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/petal-labs/pollen/descriptor"
	"github.com/petal-labs/pollen/schema"
)

// newTestRoot creates a fresh cobra root command wired to all subcommands.
// Each test gets an isolated command tree to avoid shared state.
func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "pollen",
		SilenceUsage: true,
	}
	root.AddCommand(NewInitCmd())
	root.AddCommand(NewBuildCmd())
	root.AddCommand(NewRunCmd())
	root.AddCommand(NewInspectCmd())
	return root
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// writeTestProject lays down a minimal buildable app project and
// returns its directory.
func writeTestProject(t *testing.T, parent string) string {
	t.Helper()
	dir := filepath.Join(parent, "calculator")
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o750); err != nil {
		t.Fatalf("mkdir project: %v", err)
	}

	files := map[string]string{
		"pollen.yaml": "app:\n  name: calculator\n  description: Does arithmetic.\n  version: 0.2.0\n",
		"main.go": `package main

import "github.com/petal-labs/pollen"

func main() {
	app := pollen.New(pollen.AppInfo{Name: "calculator"})
	pollen.Main(app)
}
`,
		"go.mod":         "module example.com/calculator\n\ngo 1.24\n\nrequire github.com/petal-labs/pollen v0.1.0\n",
		"data/notes.txt": "scratch notes\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// writeTestBundle compiles a small schema bundle to disk and returns
// its path.
func writeTestBundle(t *testing.T, dir string) string {
	t.Helper()
	decls := []schema.Declaration{{
		Name: "add",
		Doc:  "Adds two numbers.",
		Params: []schema.Param{
			{Name: "a", Type: schema.Int()},
			{Name: "b", Type: schema.Int()},
		},
		Return: schema.Returns(schema.Int()),
	}}
	bundle, err := descriptor.Assemble("calculator", decls, nil)
	if err != nil {
		t.Fatalf("Assemble error = %v", err)
	}
	path := filepath.Join(dir, "bundle.json")
	if err := bundle.WriteFile(path); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	return path
}

func wantExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v", err, err)
	}
	if exitErr.Code != code {
		t.Fatalf("exit code = %d (%s), want %d", exitErr.Code, exitErr.Message, code)
	}
}

// --- Init command tests ---

func TestInit_ScaffoldsProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "greeter")
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "init", "greeter", "--dir", dir, "--description", "Says hello.")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "Project greeter initialized") {
		t.Errorf("expected init summary in output, got: %q", stdout)
	}

	cfg, err := os.ReadFile(filepath.Join(dir, "pollen.yaml"))
	if err != nil {
		t.Fatalf("reading scaffolded config: %v", err)
	}
	for _, want := range []string{"name: greeter", `description: "Says hello."`, "bundle_id: "} {
		if !strings.Contains(string(cfg), want) {
			t.Errorf("pollen.yaml missing %q:\n%s", want, cfg)
		}
	}

	mainSrc, err := os.ReadFile(filepath.Join(dir, "main.go"))
	if err != nil {
		t.Fatalf("reading scaffolded main.go: %v", err)
	}
	for _, want := range []string{"github.com/petal-labs/pollen", "pollen.Main(app)", `"greet"`} {
		if !strings.Contains(string(mainSrc), want) {
			t.Errorf("main.go missing %q", want)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err != nil {
		t.Errorf("go.mod not created: %v", err)
	}
}

func TestInit_SanitizesName(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "scaffold")
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "init", "My Cool App", "--dir", dir)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !strings.Contains(stdout, "Project my_cool_app initialized") {
		t.Errorf("expected sanitized name in output, got: %q", stdout)
	}
}

func TestInit_RefusesNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	root := newTestRoot()
	_, _, err := executeCommand(root, "init", "greeter", "--dir", dir)
	wantExitCode(t, err, exitValidation)
}

func TestInit_RejectsGarbageName(t *testing.T) {
	root := newTestRoot()
	_, _, err := executeCommand(root, "init", "###", "--dir", filepath.Join(t.TempDir(), "x"))
	wantExitCode(t, err, exitValidation)
}

// --- Build command tests ---

func TestBuild_PackagesProject(t *testing.T) {
	parent := t.TempDir()
	dir := writeTestProject(t, parent)
	bundlePath := writeTestBundle(t, t.TempDir())

	root := newTestRoot()
	stdout, _, err := executeCommand(root, "build", dir, "--bundle", bundlePath)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	for _, want := range []string{"Project checks passed", "Packaged 7 files", "Wrote "} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output, got: %q", want, stdout)
		}
	}

	pkgPath := filepath.Join(parent, "calculator.pollen")
	if _, err := os.Stat(pkgPath); err != nil {
		t.Fatalf("package not written: %v", err)
	}
}

func TestBuild_OutputFlag(t *testing.T) {
	parent := t.TempDir()
	dir := writeTestProject(t, parent)
	bundlePath := writeTestBundle(t, t.TempDir())
	out := filepath.Join(t.TempDir(), "custom.pollen")

	root := newTestRoot()
	_, _, err := executeCommand(root, "build", dir, "--bundle", bundlePath, "--output", out)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("package not written to --output path: %v", err)
	}
}

func TestBuild_MissingConfig(t *testing.T) {
	root := newTestRoot()
	_, _, err := executeCommand(root, "build", t.TempDir())
	wantExitCode(t, err, exitFileNotFound)
}

func TestBuild_CheckCatchesMissingEntrypoint(t *testing.T) {
	parent := t.TempDir()
	dir := writeTestProject(t, parent)
	mainPath := filepath.Join(dir, "main.go")
	if err := os.WriteFile(mainPath, []byte("package main\n\nfunc main() {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	bundlePath := writeTestBundle(t, t.TempDir())

	root := newTestRoot()
	_, _, err := executeCommand(root, "build", dir, "--bundle", bundlePath)
	wantExitCode(t, err, exitValidation)
}

func TestBuild_WrongBundleVersion(t *testing.T) {
	parent := t.TempDir()
	dir := writeTestProject(t, parent)
	bundlePath := filepath.Join(t.TempDir(), "bundle.json")
	if err := os.WriteFile(bundlePath, []byte(`{"schema_version": "99"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	root := newTestRoot()
	_, _, err := executeCommand(root, "build", dir, "--bundle", bundlePath)
	wantExitCode(t, err, exitWrongSchema)
}

func TestBuild_MissingBundleFile(t *testing.T) {
	parent := t.TempDir()
	dir := writeTestProject(t, parent)

	root := newTestRoot()
	_, _, err := executeCommand(root, "build", dir, "--bundle", filepath.Join(t.TempDir(), "absent.json"))
	wantExitCode(t, err, exitFileNotFound)
}

// --- Inspect command tests ---

func TestInspect_BundleSummary(t *testing.T) {
	bundlePath := writeTestBundle(t, t.TempDir())
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "inspect", bundlePath)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	for _, want := range []string{
		"App:      calculator",
		"Service:  CalculatorService",
		"TOOL",
		"add",
		"a int32, b int32",
		"Adds two numbers.",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output, got:\n%s", want, stdout)
		}
	}
}

func TestInspect_Proto(t *testing.T) {
	bundlePath := writeTestBundle(t, t.TempDir())
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "inspect", bundlePath, "--proto")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	for _, want := range []string{
		`syntax = "proto3";`,
		"service CalculatorService {",
		"rpc add(AddRequest) returns (AddResponse);",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in proto output, got:\n%s", want, stdout)
		}
	}
}

func TestInspect_Package(t *testing.T) {
	parent := t.TempDir()
	dir := writeTestProject(t, parent)
	bundlePath := writeTestBundle(t, t.TempDir())

	root := newTestRoot()
	if _, _, err := executeCommand(root, "build", dir, "--bundle", bundlePath); err != nil {
		t.Fatalf("build error = %v", err)
	}

	pkgPath := filepath.Join(parent, "calculator.pollen")
	stdout, _, err := executeCommand(newTestRoot(), "inspect", pkgPath)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	for _, want := range []string{"App:      calculator", "Version:  0.2.0", "add"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output, got:\n%s", want, stdout)
		}
	}
}

func TestInspect_FileNotFound(t *testing.T) {
	root := newTestRoot()
	_, _, err := executeCommand(root, "inspect", filepath.Join(t.TempDir(), "absent.json"))
	wantExitCode(t, err, exitFileNotFound)
}

func TestInspect_GarbageInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.json")
	if err := os.WriteFile(path, []byte("not a bundle"), 0o600); err != nil {
		t.Fatal(err)
	}
	root := newTestRoot()
	_, _, err := executeCommand(root, "inspect", path)
	wantExitCode(t, err, exitInputParse)
}

// --- Run command tests ---

func TestRun_MissingDir(t *testing.T) {
	root := newTestRoot()
	_, _, err := executeCommand(root, "run", filepath.Join(t.TempDir(), "absent"))
	wantExitCode(t, err, exitFileNotFound)
}

func TestRun_ArgWithoutTool(t *testing.T) {
	root := newTestRoot()
	_, _, err := executeCommand(root, "run", t.TempDir(), "--arg", "a=1")
	wantExitCode(t, err, exitInputParse)
}

func TestRun_BadArgPair(t *testing.T) {
	root := newTestRoot()
	_, _, err := executeCommand(root, "run", t.TempDir(), "--tool", "add", "--arg", "noequals")
	wantExitCode(t, err, exitInputParse)
}

// --- Root command tests ---

func TestRoot_Help(t *testing.T) {
	root := newTestRoot()
	stdout, _, err := executeCommand(root, "--help")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	for _, sub := range []string{"init", "build", "run", "inspect"} {
		if !strings.Contains(stdout, sub) {
			t.Errorf("expected %q in help output", sub)
		}
	}
}
