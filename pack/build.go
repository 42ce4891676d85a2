// Package pack validates and assembles distributable app packages. A
// package is a zip archive named <app>.pollen holding the project
// sources plus generated manifest.json, bundle.json, and schema.proto
// entries, so installers can inspect an app without executing it.
package pack

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/petal-labs/pollen/descriptor"
)

// Archive entry names generated during a build. Files with the same
// name at the project root are replaced, not duplicated.
const (
	PackageExt   = ".pollen"
	ManifestFile = "manifest.json"
	BundleFile   = "bundle.json"
	ProtoFile    = "schema.proto"
)

const sdkModulePath = "github.com/petal-labs/pollen"

// BuildOptions adjust package assembly.
type BuildOptions struct {
	// Output overrides the package path. The default is
	// <name>.pollen next to the project directory.
	Output string

	// Exclude lists path patterns skipped while archiving, matched
	// against both the project-relative path and the base name.
	Exclude []string
}

// PackageInfo reports what a build produced.
type PackageInfo struct {
	Path        string
	Files       int
	RawBytes    int64
	PackedBytes int64
}

// BuildPackage archives projectDir into a .pollen package carrying the
// compiled bundle and manifest. The archive is written atomically; an
// existing package at the output path is replaced.
func BuildPackage(projectDir string, bundle *descriptor.Bundle, manifest Manifest, opts *BuildOptions) (PackageInfo, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}
	info, err := os.Stat(projectDir)
	if err != nil {
		return PackageInfo{}, fmt.Errorf("pack: project directory: %w", err)
	}
	if !info.IsDir() {
		return PackageInfo{}, fmt.Errorf("pack: project %q is not a directory", projectDir)
	}
	if bundle == nil {
		return PackageInfo{}, fmt.Errorf("pack: bundle is required")
	}
	if err := manifest.Validate(); err != nil {
		return PackageInfo{}, err
	}

	manifestData, err := manifest.encode()
	if err != nil {
		return PackageInfo{}, err
	}
	bundleData, err := bundle.Marshal()
	if err != nil {
		return PackageInfo{}, fmt.Errorf("pack: marshal bundle: %w", err)
	}
	protoData := []byte(bundle.RenderProto())

	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return PackageInfo{}, fmt.Errorf("pack: resolve project directory: %w", err)
	}
	output := strings.TrimSpace(opts.Output)
	if output == "" {
		output = filepath.Join(filepath.Dir(absDir), manifest.Name+PackageExt)
	}
	absOutput, err := filepath.Abs(output)
	if err != nil {
		return PackageInfo{}, fmt.Errorf("pack: resolve output path: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(absOutput), ".pollen-*.zip")
	if err != nil {
		return PackageInfo{}, fmt.Errorf("pack: create temp package: %w", err)
	}
	tmpName := tmp.Name()

	root := manifest.Name
	skipAbs := map[string]bool{absOutput: true, tmpName: true}
	stats, err := writeArchive(tmp, absDir, root, skipAbs, opts.Exclude, []generatedEntry{
		{name: ManifestFile, data: manifestData},
		{name: BundleFile, data: bundleData},
		{name: ProtoFile, data: protoData},
	})
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return PackageInfo{}, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return PackageInfo{}, fmt.Errorf("pack: close package: %w", err)
	}
	if err := os.Rename(tmpName, absOutput); err != nil {
		_ = os.Remove(tmpName)
		return PackageInfo{}, fmt.Errorf("pack: replace package: %w", err)
	}

	packed, err := os.Stat(absOutput)
	if err != nil {
		return PackageInfo{}, fmt.Errorf("pack: stat package: %w", err)
	}
	return PackageInfo{
		Path:        absOutput,
		Files:       stats.files,
		RawBytes:    stats.raw,
		PackedBytes: packed.Size(),
	}, nil
}

type generatedEntry struct {
	name string
	data []byte
}

type archiveStats struct {
	files int
	raw   int64
}

func writeArchive(w io.Writer, absDir, root string, skipAbs map[string]bool, exclude []string, generated []generatedEntry) (archiveStats, error) {
	var stats archiveStats
	zw := zip.NewWriter(w)

	generatedNames := make(map[string]bool, len(generated))
	for _, entry := range generated {
		generatedNames[entry.name] = true
	}

	err := filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == absDir {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			rel, err := filepath.Rel(absDir, p)
			if err != nil {
				return err
			}
			skip, err := matchesExclude(exclude, filepath.ToSlash(rel), d.Name())
			if err != nil {
				return err
			}
			if skip {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || skipAbs[p] {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(absDir, p)
		if err != nil {
			return err
		}
		slashRel := filepath.ToSlash(rel)
		if generatedNames[slashRel] {
			return nil
		}
		skip, err := matchesExclude(exclude, slashRel, d.Name())
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		// #nosec G304 -- path comes from walking the caller's project directory.
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		entry, err := zw.Create(path.Join(root, slashRel))
		if err != nil {
			return err
		}
		n, err := io.Copy(entry, f)
		if err != nil {
			return err
		}
		stats.files++
		stats.raw += n
		return nil
	})
	if err != nil {
		return archiveStats{}, fmt.Errorf("pack: archive project: %w", err)
	}

	for _, entry := range generated {
		ew, err := zw.Create(path.Join(root, entry.name))
		if err != nil {
			return archiveStats{}, fmt.Errorf("pack: add %s: %w", entry.name, err)
		}
		if _, err := ew.Write(entry.data); err != nil {
			return archiveStats{}, fmt.Errorf("pack: write %s: %w", entry.name, err)
		}
		stats.files++
		stats.raw += int64(len(entry.data))
	}

	if err := zw.Close(); err != nil {
		return archiveStats{}, fmt.Errorf("pack: finalize package: %w", err)
	}
	return stats, nil
}

func matchesExclude(patterns []string, slashRel, base string) (bool, error) {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		ok, err := path.Match(pattern, slashRel)
		if err != nil {
			return false, fmt.Errorf("pack: bad exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
		ok, err = path.Match(pattern, base)
		if err != nil {
			return false, fmt.Errorf("pack: bad exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ValidateProject checks that projectDir looks like a buildable app:
// a pollen.yaml, a main.go wired to the SDK entrypoint, and a go.mod
// requiring the SDK.
func ValidateProject(projectDir string) error {
	if _, err := os.Stat(filepath.Join(projectDir, ProjectConfigName)); err != nil {
		return fmt.Errorf("pack: %s: %w", ProjectConfigName, err)
	}

	// #nosec G304 -- project layout paths are derived from the caller's directory.
	src, err := os.ReadFile(filepath.Join(projectDir, "main.go"))
	if err != nil {
		return fmt.Errorf("pack: main.go: %w", err)
	}
	if !strings.Contains(string(src), sdkModulePath) {
		return fmt.Errorf("pack: main.go does not import %s", sdkModulePath)
	}
	if !strings.Contains(string(src), "pollen.Main(") {
		return fmt.Errorf("pack: main.go does not call pollen.Main")
	}

	// #nosec G304 -- project layout paths are derived from the caller's directory.
	mod, err := os.ReadFile(filepath.Join(projectDir, "go.mod"))
	if err != nil {
		return fmt.Errorf("pack: go.mod: %w", err)
	}
	if !strings.Contains(string(mod), sdkModulePath) {
		return fmt.Errorf("pack: go.mod does not require %s", sdkModulePath)
	}
	return nil
}
