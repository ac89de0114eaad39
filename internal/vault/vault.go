// Package vault persists finished notes, transcripts, and recordings into a
// notes vault laid out on the local filesystem.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FS is the capability surface the writer needs from a vault. Paths are
// forward-slash separated and relative to the vault root.
type FS interface {
	// Exists reports whether a file or folder is present.
	Exists(rel string) bool

	// Read returns the contents of a file.
	Read(rel string) ([]byte, error)

	// Write creates or replaces a text file, creating parent folders as needed.
	Write(rel string, data []byte) error

	// CreateBinary creates a binary file, failing if it already exists.
	CreateBinary(rel string, data []byte) error

	// CreateFolder creates a folder and its parents.
	CreateFolder(rel string) error
}

// DirFS implements [FS] over a directory on the local filesystem.
type DirFS struct {
	root string
}

var _ FS = (*DirFS)(nil)

// NewDirFS opens (creating if necessary) the vault root directory.
func NewDirFS(root string) (*DirFS, error) {
	if root == "" {
		return nil, fmt.Errorf("vault: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("vault: create root %s: %w", root, err)
	}
	return &DirFS{root: root}, nil
}

// Root returns the absolute vault root directory.
func (d *DirFS) Root() string { return d.root }

// resolve maps a vault-relative path onto the filesystem, rejecting escapes
// above the root.
func (d *DirFS) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("vault: path %q escapes the vault root", rel)
	}
	return filepath.Join(d.root, clean), nil
}

func (d *DirFS) Exists(rel string) bool {
	abs, err := d.resolve(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

func (d *DirFS) Read(rel string) ([]byte, error) {
	abs, err := d.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", rel, err)
	}
	return data, nil
}

func (d *DirFS) Write(rel string, data []byte) error {
	abs, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("vault: create folder for %s: %w", rel, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("vault: write %s: %w", rel, err)
	}
	return nil
}

func (d *DirFS) CreateBinary(rel string, data []byte) error {
	abs, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("vault: create folder for %s: %w", rel, err)
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("vault: create %s: %w", rel, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("vault: write %s: %w", rel, err)
	}
	return nil
}

func (d *DirFS) CreateFolder(rel string) error {
	abs, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("vault: create folder %s: %w", rel, err)
	}
	return nil
}
