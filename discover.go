package wdtag

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrDirectoryNotFound is the one fatal run condition: the scan root is
// missing or is not a directory.
var ErrDirectoryNotFound = errors.New("wdtag: directory not found")

// candidateExts are the extensions considered at all. Other files are
// ignored silently rather than reported as skipped.
var candidateExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".gif": true, ".webp": true,
}

// Walk is a lazy, single-use sequence of validated image paths under a root.
type Walk struct {
	root      string
	recursive bool
	validator Validator
	onSkip    func(Outcome)
	used      bool
}

// Discover prepares a walk over root. The only error it returns wraps
// ErrDirectoryNotFound. onSkip receives every rejected candidate and may be nil.
func Discover(root string, recursive bool, v Validator, onSkip func(Outcome)) (*Walk, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
	}
	return &Walk{root: root, recursive: recursive, validator: v, onSkip: onSkip}, nil
}

// Root returns the scan root.
func (w *Walk) Root() string { return w.root }

// Name returns path relative to the scan root in slash form.
func (w *Walk) Name(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// Paths yields accepted paths in directory-listing order. A directory's own
// files come before its subdirectories. Ranging a second time yields nothing.
func (w *Walk) Paths() iter.Seq[string] {
	return func(yield func(string) bool) {
		if w.used {
			return
		}
		w.used = true
		w.walkDir(w.root, yield)
	}
}

func (w *Walk) walkDir(dir string, yield func(string) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("wdtag: cannot read directory", "dir", dir, "error", err)
		return true
	}

	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			if w.recursive {
				subdirs = append(subdirs, filepath.Join(dir, e.Name()))
			}
			continue
		}
		if !candidateExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !isRegularFile(path) {
			continue
		}
		res := w.validator.Validate(path)
		if !res.Accepted {
			if w.onSkip != nil {
				w.onSkip(Outcome{Name: w.Name(path), Path: path, Reason: res.Reason, Err: res.Err})
			}
			continue
		}
		if !yield(res.Path) {
			return false
		}
	}

	for _, sub := range subdirs {
		if !w.walkDir(sub, yield) {
			return false
		}
	}
	return true
}

// isRegularFile follows symlinks so linked images are still tagged.
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
