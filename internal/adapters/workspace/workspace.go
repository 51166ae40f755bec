// Package workspace manages the per-request directories that hold uploaded
// source and the build recipe.
package workspace

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Manager creates workspaces below a root directory.
type Manager struct {
	root       string
	recipeName string
}

func NewManager(root, recipeName string) *Manager {
	if recipeName == "" {
		recipeName = "Dockerfile"
	}
	return &Manager{root: root, recipeName: recipeName}
}

// Create makes a fresh, uniquely named workspace and returns its path.
func (m *Manager) Create() (string, error) {
	dir := filepath.Join(m.root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}

// ExtractZip unpacks every file of the archive directly into dir. Folder
// structure inside the archive is dropped, so a later entry overwrites an
// earlier one with the same base name.
func (m *Manager) ExtractZip(dir string, r io.ReaderAt, size int64) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("failed to read zip archive: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(filepath.FromSlash(f.Name))
		if name == "." || name == ".." || name == string(filepath.Separator) {
			continue
		}
		if err := extractFile(f, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// WriteRecipe stores the build recipe in dir under the configured name.
func (m *Manager) WriteRecipe(dir string, r io.Reader) error {
	out, err := os.Create(filepath.Join(dir, m.recipeName))
	if err != nil {
		return fmt.Errorf("failed to save build recipe: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to save build recipe: %w", err)
	}
	return out.Close()
}

// HasRecipe reports whether dir contains a build recipe.
func (m *Manager) HasRecipe(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, m.recipeName))
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes a workspace. Removing a missing workspace is not an error.
func (m *Manager) Remove(dir string) error {
	return os.RemoveAll(dir)
}
