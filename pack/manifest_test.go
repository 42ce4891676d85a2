package pack

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManifestDefaults(t *testing.T) {
	man := NewManifest(" calculator ")

	if man.Schema != SchemaAppV1 {
		t.Errorf("Schema = %q, want %q", man.Schema, SchemaAppV1)
	}
	if man.ManifestVersion != ManifestVersionV1 {
		t.Errorf("ManifestVersion = %d, want %d", man.ManifestVersion, ManifestVersionV1)
	}
	if man.Name != "calculator" {
		t.Errorf("Name = %q, want %q", man.Name, "calculator")
	}
	if man.BundleID == "" {
		t.Error("BundleID should be generated")
	}
}

func TestManifestValidate(t *testing.T) {
	valid := NewManifest("calculator")

	tests := []struct {
		name    string
		mutate  func(*Manifest)
		wantErr string
	}{
		{name: "valid", mutate: func(*Manifest) {}},
		{
			name:    "missing name",
			mutate:  func(m *Manifest) { m.Name = "  " },
			wantErr: "name is required",
		},
		{
			name:    "unsupported version",
			mutate:  func(m *Manifest) { m.ManifestVersion = 99 },
			wantErr: "unsupported manifest version",
		},
		{
			name:    "missing bundle id",
			mutate:  func(m *Manifest) { m.BundleID = "" },
			wantErr: "bundle ID is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			man := valid
			tt.mutate(&man)
			err := man.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestManifestFileRoundTrip(t *testing.T) {
	man := NewManifest("calculator")
	man.FullName = "Calculator"
	man.Description = "Does arithmetic."
	man.Goal = "Crunch numbers on demand."
	man.AppVersion = "0.2.0"
	man.ExamplePrompts = []string{"add 2 and 3"}

	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := man.WriteFile(path); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}

	got, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest error = %v", err)
	}
	if got.Name != man.Name {
		t.Errorf("Name = %q, want %q", got.Name, man.Name)
	}
	if got.FullName != man.FullName {
		t.Errorf("FullName = %q, want %q", got.FullName, man.FullName)
	}
	if got.BundleID != man.BundleID {
		t.Errorf("BundleID = %q, want %q", got.BundleID, man.BundleID)
	}
	if got.AppVersion != man.AppVersion {
		t.Errorf("AppVersion = %q, want %q", got.AppVersion, man.AppVersion)
	}
	if len(got.ExamplePrompts) != 1 || got.ExamplePrompts[0] != "add 2 and 3" {
		t.Errorf("ExamplePrompts = %v, want %v", got.ExamplePrompts, man.ExamplePrompts)
	}
}

func TestLoadManifestRejectsInvalid(t *testing.T) {
	man := NewManifest("calculator")
	man.BundleID = ""

	path := filepath.Join(t.TempDir(), "manifest.json")
	data, err := man.encode()
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadManifest(path); err == nil || !strings.Contains(err.Error(), "bundle ID is required") {
		t.Fatalf("LoadManifest error = %v, want bundle ID validation failure", err)
	}
}
