// Package storage owns every filesystem mutation under the output root:
// replacing destination directories, moving extracted trees into place,
// temporary archive files and atomic small-file writes.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"setupsync/pkg/logger"
)

// Manager handles file storage operations rooted at the output directory
type Manager struct {
	fs     afero.Fs
	root   string
	logger logger.Logger
}

// NewManager creates a storage manager on the OS filesystem
func NewManager(root string, log logger.Logger) (*Manager, error) {
	return NewManagerWithFS(afero.NewOsFs(), root, log)
}

// NewManagerWithFS creates a storage manager on fs, creating root if absent.
func NewManagerWithFS(fs afero.Fs, root string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if root == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{fs: fs, root: root, logger: log}, nil
}

// Fs returns the underlying filesystem.
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// Root returns the output directory path
func (m *Manager) Root() string {
	return m.root
}

// Destination builds {root}/{category1}/[{subfolder}/]{category2}/{pkg}.
// Segments are used as given; callers sanitize them first.
func (m *Manager) Destination(category1, subfolder, category2, pkg string) string {
	parts := []string{m.root, category1}
	if subfolder != "" {
		parts = append(parts, subfolder)
	}
	parts = append(parts, category2, pkg)
	return filepath.Join(parts...)
}

// Rel returns path relative to the root, or path itself if it is outside.
func (m *Manager) Rel(path string) string {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// Replace makes dest an empty directory, removing whatever was there. It
// reports whether something was removed.
func (m *Manager) Replace(dest string) (bool, error) {
	existed, err := afero.Exists(m.fs, dest)
	if err != nil {
		return false, fmt.Errorf("failed to check destination: %w", err)
	}
	if existed {
		m.logger.InfoWithFields("Destination already exists, replacing", map[string]interface{}{
			"destination": m.Rel(dest),
		})
		if err := m.fs.RemoveAll(dest); err != nil {
			return true, fmt.Errorf("failed to remove existing destination: %w", err)
		}
	}
	if err := m.fs.MkdirAll(dest, 0755); err != nil {
		return existed, fmt.Errorf("failed to create destination: %w", err)
	}
	return existed, nil
}

// MoveContents moves every entry of srcDir into destDir.
func (m *Manager) MoveContents(srcDir, destDir string) error {
	entries, err := afero.ReadDir(m.fs, srcDir)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}
	for _, entry := range entries {
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(destDir, entry.Name())
		if err := m.Move(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// Move renames src to dst, copying and deleting when a rename is not possible
// (for example across devices).
func (m *Manager) Move(src, dst string) error {
	if err := m.fs.Rename(src, dst); err == nil {
		return nil
	}
	if err := m.copyTree(src, dst); err != nil {
		return fmt.Errorf("failed to move %s: %w", filepath.Base(src), err)
	}
	if err := m.fs.RemoveAll(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", filepath.Base(src), err)
	}
	return nil
}

func (m *Manager) copyTree(src, dst string) error {
	return afero.Walk(m.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return m.fs.MkdirAll(target, info.Mode().Perm()|0700)
		}
		return m.copyFile(path, target, info.Mode().Perm())
	})
}

func (m *Manager) copyFile(src, dst string, perm os.FileMode) error {
	in, err := m.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := m.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CreateTemp creates a new temporary file in dir (the root when empty).
func (m *Manager) CreateTemp(dir, pattern string) (afero.File, error) {
	if dir == "" {
		dir = m.root
	}
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return afero.TempFile(m.fs, dir, pattern)
}

// TempDir creates a scratch directory under dir, or the system temp
// directory when dir is empty.
func (m *Manager) TempDir(dir, prefix string) (string, error) {
	return afero.TempDir(m.fs, dir, prefix)
}

// Remove deletes a single file, ignoring a missing one.
func (m *Manager) Remove(path string) error {
	if err := m.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Snapshot lists the names of files directly in dir with the given extension.
func (m *Manager) Snapshot(dir, ext string) (map[string]struct{}, error) {
	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			names[e.Name()] = struct{}{}
		}
	}
	return names, nil
}

// NewestSince returns the most recently modified file in dir with ext that is
// not in before, or "" when there is none.
func (m *Manager) NewestSince(dir, ext string, before map[string]struct{}) (string, error) {
	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var newest os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		if _, seen := before[e.Name()]; seen {
			continue
		}
		if newest == nil || e.ModTime().After(newest.ModTime()) {
			newest = e
		}
	}
	if newest == nil {
		return "", nil
	}
	return filepath.Join(dir, newest.Name()), nil
}

// WriteFileAtomic writes data to path through a temporary file, fsync and
// rename, so readers never see a partial file.
func (m *Manager) WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(m.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		m.fs.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		m.fs.Remove(tmpPath)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		m.fs.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := m.fs.Rename(tmpPath, path); err != nil {
		m.fs.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ScanSubfolders lists the distinct names of directories found one level
// below each category directory ({root}/{category1}/{name}) whose name
// contains marker, case-insensitively. An empty marker matches nothing.
func (m *Manager) ScanSubfolders(marker string) ([]string, error) {
	if marker == "" {
		return nil, nil
	}
	cats, err := afero.ReadDir(m.fs, m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	want := strings.ToLower(marker)
	seen := map[string]bool{}
	for _, cat := range cats {
		if !cat.IsDir() {
			continue
		}
		subs, err := afero.ReadDir(m.fs, filepath.Join(m.root, cat.Name()))
		if err != nil {
			continue
		}
		for _, sub := range subs {
			if sub.IsDir() && strings.Contains(strings.ToLower(sub.Name()), want) {
				seen[sub.Name()] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
