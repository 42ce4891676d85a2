package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Manifest schema constants for the initial app package version.
const (
	ManifestVersionV1 = 1
	SchemaAppV1       = "https://pollen.dev/schemas/app-manifest/v1.json"
)

// Manifest describes a packaged app to the platform. It is embedded in
// the package archive as manifest.json and read back by installers.
type Manifest struct {
	Schema          string   `json:"$schema,omitempty"`
	ManifestVersion int      `json:"manifest_version"`
	Name            string   `json:"name"`
	FullName        string   `json:"fullname,omitempty"`
	Description     string   `json:"description,omitempty"`
	Goal            string   `json:"goal,omitempty"`
	IconURL         string   `json:"icon_url,omitempty"`
	AppVersion      string   `json:"app_version,omitempty"`
	BundleID        string   `json:"app_bundle_id,omitempty"`
	ExamplePrompts  []string `json:"example_prompts,omitempty"`
}

// NewManifest returns a manifest pre-populated with v1 schema metadata
// and a fresh bundle ID.
func NewManifest(name string) Manifest {
	return Manifest{
		Schema:          SchemaAppV1,
		ManifestVersion: ManifestVersionV1,
		Name:            strings.TrimSpace(name),
		BundleID:        uuid.NewString(),
	}
}

// Validate reports whether the manifest can identify a package.
func (m Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("pack: manifest name is required")
	}
	if m.ManifestVersion != ManifestVersionV1 {
		return fmt.Errorf("pack: unsupported manifest version %d", m.ManifestVersion)
	}
	if strings.TrimSpace(m.BundleID) == "" {
		return fmt.Errorf("pack: manifest bundle ID is required")
	}
	return nil
}

func (m Manifest) encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("pack: encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile atomically persists the manifest as JSON at path.
func (m Manifest) WriteFile(path string) error {
	data, err := m.encode()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pack: create manifest dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("pack: create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("pack: write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("pack: close manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("pack: replace manifest: %w", err)
	}
	return nil
}

// LoadManifest reads and validates a manifest.json file.
func LoadManifest(path string) (Manifest, error) {
	// #nosec G304 -- path is configured by caller and constrained to local filesystem usage.
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("pack: reading manifest %q: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("pack: parsing manifest %q: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("manifest %q: %w", path, err)
	}
	return m, nil
}
