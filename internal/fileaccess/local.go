// Package fileaccess is the filesystem side of tinyme: sizes, bytes, image
// discovery and probing.
package fileaccess

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtensions are the image types the backend can read.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Local reads from the local filesystem.
type Local struct {
	extensions map[string]struct{}
}

// NewLocal creates a Local accepting the given extensions (DefaultExtensions if empty).
func NewLocal(extensions []string) *Local {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &Local{extensions: set}
}

// StatSize returns the size of a regular file.
func (l *Local) StatSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// ReadBytes returns the whole file.
func (l *Local) ReadBytes(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Supported reports whether path has an accepted image extension.
func (l *Local) Supported(path string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// CollectImages expands files and directories into absolute image paths.
// Directories are walked recursively; unsupported files are skipped and
// duplicates dropped. The result is sorted.
func (l *Local) CollectImages(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, in := range paths {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", in, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", in, err)
		}
		if !info.IsDir() {
			if l.Supported(abs) {
				add(abs)
			}
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if path != abs && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if l.Supported(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", in, err)
		}
	}
	slices.Sort(files)
	return files, nil
}

// EnsureDir creates dir if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("empty directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
