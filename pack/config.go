package pack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-project config file looked up in the
// project directory.
const ProjectConfigName = "pollen.yaml"

const (
	homeConfigDir  = ".pollen"
	homeConfigName = "config.yaml"
)

// ConfigFile is the declarative project config shape read from
// pollen.yaml.
type ConfigFile struct {
	App   AppConfig   `yaml:"app"`
	Build BuildConfig `yaml:"build,omitempty"`
}

// AppConfig carries the app metadata that ends up in the package
// manifest.
type AppConfig struct {
	Name           string   `yaml:"name"`
	FullName       string   `yaml:"fullname,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	Goal           string   `yaml:"goal,omitempty"`
	IconURL        string   `yaml:"icon_url,omitempty"`
	Version        string   `yaml:"version,omitempty"`
	BundleID       string   `yaml:"bundle_id,omitempty"`
	ExamplePrompts []string `yaml:"example_prompts,omitempty"`
}

// BuildConfig adjusts package assembly for one project.
type BuildConfig struct {
	// Icon is a project-relative path to the app icon file.
	Icon string `yaml:"icon,omitempty"`
	// Exclude lists path patterns skipped while archiving.
	Exclude []string `yaml:"exclude,omitempty"`
}

// DiscoverConfigPath resolves the project config location with
// first-match semantics.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("pack: resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("pack: resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, ProjectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// If explicit path is set, not found is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("pack: config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("pack: checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadConfig reads a pollen.yaml file. String values are expanded
// against the process environment so configs can reference secrets
// without embedding them.
func LoadConfig(path string) (ConfigFile, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return ConfigFile{}, fmt.Errorf("pack: reading project config %q: %w", path, err)
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ConfigFile{}, fmt.Errorf("pack: parsing project config %q: %w", path, err)
	}
	return cfg.expanded(), nil
}

// Manifest derives the package manifest from the project config. A
// bundle ID recorded in the config is preserved so rebuilt packages
// keep their identity; otherwise a fresh one is generated.
func (c ConfigFile) Manifest() Manifest {
	m := NewManifest(c.App.Name)
	m.FullName = c.App.FullName
	m.Description = c.App.Description
	m.Goal = c.App.Goal
	m.IconURL = c.App.IconURL
	m.AppVersion = c.App.Version
	if len(c.App.ExamplePrompts) > 0 {
		m.ExamplePrompts = append([]string(nil), c.App.ExamplePrompts...)
	}
	if id := strings.TrimSpace(c.App.BundleID); id != "" {
		m.BundleID = id
	}
	return m
}

func (c ConfigFile) expanded() ConfigFile {
	out := c
	out.App.Name = expandEnvValue(c.App.Name)
	out.App.FullName = expandEnvValue(c.App.FullName)
	out.App.Description = expandEnvValue(c.App.Description)
	out.App.Goal = expandEnvValue(c.App.Goal)
	out.App.IconURL = expandEnvValue(c.App.IconURL)
	out.App.Version = expandEnvValue(c.App.Version)
	out.App.BundleID = expandEnvValue(c.App.BundleID)
	out.App.ExamplePrompts = expandEnvValues(c.App.ExamplePrompts)
	out.Build.Icon = expandEnvValue(c.Build.Icon)
	out.Build.Exclude = expandEnvValues(c.Build.Exclude)
	return out
}

func expandEnvValue(value string) string {
	return os.ExpandEnv(value)
}

func expandEnvValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, expandEnvValue(value))
	}
	return out
}
