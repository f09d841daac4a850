package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/skillvault/internal/apperr"
)

const (
	filePerm   fs.FileMode = 0o644
	scriptPerm fs.FileMode = 0o755
)

// Folder is a Provider over one local directory.
type Folder struct {
	root string
}

// OpenFolder opens root as a skill tree. With create set a missing directory
// is made; otherwise it must already exist.
func OpenFolder(root string, create bool) (*Folder, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist) && create:
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create root: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: %s is not a directory: %w", abs, apperr.ErrInvalidInput)
	}
	return &Folder{root: abs}, nil
}

func (d *Folder) Root() string { return d.root }

// Resolve maps a slash-separated relative path to an absolute one. Absolute
// paths and paths leaving the root fail with apperr.ErrInvalidInput.
func (d *Folder) Resolve(rel string) (string, error) {
	if rel == "" {
		return d.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: %q outside %s: %w", rel, d.root, apperr.ErrInvalidInput)
	}
	return filepath.Join(d.root, cleaned), nil
}

// Empty reports whether the tree has no visible files.
func (d *Folder) Empty() (bool, error) {
	files, err := d.List("")
	if err != nil {
		return false, err
	}
	return len(files) == 0, nil
}

// List skips dot files and dot directories, so template trees can carry
// editor or VCS state.
func (d *Folder) List(dir string) ([]File, error) {
	base, err := d.Resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []File
	err = filepath.WalkDir(base, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != base && strings.HasPrefix(e.Name(), ".") {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.Type().IsRegular() {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		out = append(out, File{
			Path:       filepath.ToSlash(rel),
			Size:       info.Size(),
			Executable: info.Mode().Perm()&0o111 != 0,
			UpdatedAt:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (d *Folder) SkillRoots() ([]string, error) {
	files, err := d.List("")
	if err != nil {
		return nil, err
	}
	var roots []string
	for _, f := range files {
		if path.Base(f.Path) == SkillFile && f.Path != SkillFile {
			roots = append(roots, path.Dir(f.Path))
		}
	}
	sort.Strings(roots)
	return roots, nil
}

func (d *Folder) Read(rel string) ([]byte, error) {
	abs, err := d.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: %s: %w", rel, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// Write goes through a temp file in the target directory, then fsync and
// rename.
func (d *Folder) Write(rel string, content []byte) error {
	abs, err := d.Resolve(rel)
	if err != nil {
		return err
	}
	if abs == d.root {
		return fmt.Errorf("storage: empty path: %w", apperr.ErrInvalidInput)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".skillvault-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	if err := tmp.Chmod(permFor(rel)); err != nil {
		return fmt.Errorf("storage: chmod %s: %w", rel, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		return fmt.Errorf("storage: rename %s: %w", rel, err)
	}
	done = true
	return nil
}

// permFor marks files under a scripts/ directory and shell scripts executable.
func permFor(rel string) fs.FileMode {
	if strings.HasSuffix(rel, ".sh") {
		return scriptPerm
	}
	for _, part := range strings.Split(path.Dir(rel), "/") {
		if part == "scripts" {
			return scriptPerm
		}
	}
	return filePerm
}
