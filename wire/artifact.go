package wire

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Image is the reserved return wrapper for tools that produce an
// image. Exactly one carrier is required: a URL, base64 text, or raw
// bytes.
type Image struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

// Validate checks that the image carries its payload one way.
func (im *Image) Validate() error {
	if im.Name == "" {
		return fmt.Errorf("wire: image name cannot be empty")
	}
	if im.URL == "" && im.Base64 == "" && len(im.Data) == 0 {
		return fmt.Errorf("wire: image %q must provide either url, base64, or data", im.Name)
	}
	return nil
}

// Ref returns the string reference that travels in the result field:
// the URL when one is set, otherwise the base64 payload.
func (im *Image) Ref() string {
	switch {
	case im.URL != "":
		return im.URL
	case im.Base64 != "":
		return im.Base64
	default:
		return base64.StdEncoding.EncodeToString(im.Data)
	}
}

// Bytes returns the raw image payload. URL-only images have no local
// payload and return an error.
func (im *Image) Bytes() ([]byte, error) {
	switch {
	case len(im.Data) > 0:
		return im.Data, nil
	case im.Base64 != "":
		data, err := base64.StdEncoding.DecodeString(im.Base64)
		if err != nil {
			return nil, fmt.Errorf("wire: image %q: %w", im.Name, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("wire: image %q has only a url, no local payload", im.Name)
	}
}

// Save writes the image payload to path, creating parent directories.
func (im *Image) Save(path string) error {
	data, err := im.Bytes()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("wire: save image %q: %w", im.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("wire: save image %q: %w", im.Name, err)
	}
	return nil
}

// File is the reserved return wrapper for tools that produce a file on
// disk. Name defaults to the path's base name.
type File struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// NewFile wraps an existing file, resolving the path and defaulting
// the display name.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("wire: file path %q: %w", path, err)
	}
	f := &File{Path: abs, Name: filepath.Base(abs)}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks that the path names a readable regular file.
func (f *File) Validate() error {
	if f.Path == "" {
		return fmt.Errorf("wire: file path cannot be empty")
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return fmt.Errorf("wire: file not found: %s", f.Path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("wire: not a file: %s", f.Path)
	}
	return nil
}

// Ref returns the string reference that travels in the result field.
func (f *File) Ref() string { return f.Path }

// Size returns the file size in bytes.
func (f *File) Size() (int64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0, fmt.Errorf("wire: file %q: %w", f.Name, err)
	}
	return info.Size(), nil
}

// Save copies the file to destination, creating parent directories.
func (f *File) Save(destination string) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("wire: save file %q: %w", f.Name, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return fmt.Errorf("wire: save file %q: %w", f.Name, err)
	}
	dst, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("wire: save file %q: %w", f.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("wire: save file %q: %w", f.Name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("wire: save file %q: %w", f.Name, err)
	}
	return nil
}
