package pack

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ProjectConfigName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
app:
  name: calculator
  fullname: Calculator
  description: Does arithmetic.
  goal: Crunch numbers on demand.
  icon_url: https://example.com/icon.png
  version: 0.2.0
  bundle_id: bundle-123
  example_prompts:
    - add 2 and 3
build:
  icon: icon.png
  exclude:
    - dist
    - "*.log"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error = %v", err)
	}
	if cfg.App.Name != "calculator" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "calculator")
	}
	if cfg.App.FullName != "Calculator" {
		t.Errorf("App.FullName = %q, want %q", cfg.App.FullName, "Calculator")
	}
	if cfg.App.Version != "0.2.0" {
		t.Errorf("App.Version = %q, want %q", cfg.App.Version, "0.2.0")
	}
	if cfg.App.BundleID != "bundle-123" {
		t.Errorf("App.BundleID = %q, want %q", cfg.App.BundleID, "bundle-123")
	}
	if len(cfg.App.ExamplePrompts) != 1 || cfg.App.ExamplePrompts[0] != "add 2 and 3" {
		t.Errorf("App.ExamplePrompts = %v, want one prompt", cfg.App.ExamplePrompts)
	}
	if cfg.Build.Icon != "icon.png" {
		t.Errorf("Build.Icon = %q, want %q", cfg.Build.Icon, "icon.png")
	}
	if len(cfg.Build.Exclude) != 2 || cfg.Build.Exclude[0] != "dist" {
		t.Errorf("Build.Exclude = %v, want [dist *.log]", cfg.Build.Exclude)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("POLLEN_TEST_OWNER", "petal")

	path := writeConfig(t, t.TempDir(), `
app:
  name: calculator
  description: Built by ${POLLEN_TEST_OWNER}.
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error = %v", err)
	}
	if cfg.App.Description != "Built by petal." {
		t.Errorf("App.Description = %q, want expanded value", cfg.App.Description)
	}
}

func TestLoadConfigParseError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "app: [broken")

	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "parsing project config") {
		t.Fatalf("LoadConfig error = %v, want parse failure", err)
	}
}

func TestDiscoverConfigPathFrom(t *testing.T) {
	t.Run("explicit found", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "app:\n  name: calculator\n")

		got, found, err := DiscoverConfigPathFrom(path, dir, dir)
		if err != nil {
			t.Fatalf("DiscoverConfigPathFrom error = %v", err)
		}
		if !found || got != path {
			t.Fatalf("DiscoverConfigPathFrom = (%q, %v), want (%q, true)", got, found, path)
		}
	})

	t.Run("explicit missing", func(t *testing.T) {
		dir := t.TempDir()
		_, _, err := DiscoverConfigPathFrom(filepath.Join(dir, "nope.yaml"), dir, dir)
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Fatalf("DiscoverConfigPathFrom error = %v, want not found", err)
		}
	})

	t.Run("project config in cwd", func(t *testing.T) {
		cwd := t.TempDir()
		home := t.TempDir()
		path := writeConfig(t, cwd, "app:\n  name: calculator\n")

		got, found, err := DiscoverConfigPathFrom("", cwd, home)
		if err != nil {
			t.Fatalf("DiscoverConfigPathFrom error = %v", err)
		}
		if !found || got != path {
			t.Fatalf("DiscoverConfigPathFrom = (%q, %v), want (%q, true)", got, found, path)
		}
	})

	t.Run("home fallback", func(t *testing.T) {
		cwd := t.TempDir()
		home := t.TempDir()
		homePath := filepath.Join(home, homeConfigDir, homeConfigName)
		if err := os.MkdirAll(filepath.Dir(homePath), 0o750); err != nil {
			t.Fatalf("mkdir home config: %v", err)
		}
		if err := os.WriteFile(homePath, []byte("app:\n  name: calculator\n"), 0o600); err != nil {
			t.Fatalf("write home config: %v", err)
		}

		got, found, err := DiscoverConfigPathFrom("", cwd, home)
		if err != nil {
			t.Fatalf("DiscoverConfigPathFrom error = %v", err)
		}
		if !found || got != homePath {
			t.Fatalf("DiscoverConfigPathFrom = (%q, %v), want (%q, true)", got, found, homePath)
		}
	})

	t.Run("none found", func(t *testing.T) {
		got, found, err := DiscoverConfigPathFrom("", t.TempDir(), t.TempDir())
		if err != nil {
			t.Fatalf("DiscoverConfigPathFrom error = %v", err)
		}
		if found || got != "" {
			t.Fatalf("DiscoverConfigPathFrom = (%q, %v), want not found", got, found)
		}
	})
}

func TestConfigManifest(t *testing.T) {
	cfg := ConfigFile{
		App: AppConfig{
			Name:           "calculator",
			FullName:       "Calculator",
			Description:    "Does arithmetic.",
			Goal:           "Crunch numbers on demand.",
			IconURL:        "https://example.com/icon.png",
			Version:        "0.2.0",
			BundleID:       "bundle-123",
			ExamplePrompts: []string{"add 2 and 3"},
		},
	}

	man := cfg.Manifest()
	if man.Name != "calculator" {
		t.Errorf("Name = %q, want %q", man.Name, "calculator")
	}
	if man.BundleID != "bundle-123" {
		t.Errorf("BundleID = %q, want config value preserved", man.BundleID)
	}
	if man.AppVersion != "0.2.0" {
		t.Errorf("AppVersion = %q, want %q", man.AppVersion, "0.2.0")
	}
	if man.Goal != cfg.App.Goal {
		t.Errorf("Goal = %q, want %q", man.Goal, cfg.App.Goal)
	}
	if len(man.ExamplePrompts) != 1 {
		t.Errorf("ExamplePrompts = %v, want one prompt", man.ExamplePrompts)
	}
	if err := man.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestConfigManifestGeneratesBundleID(t *testing.T) {
	cfg := ConfigFile{App: AppConfig{Name: "calculator"}}

	man := cfg.Manifest()
	if man.BundleID == "" {
		t.Fatal("BundleID should be generated when the config omits it")
	}
}
