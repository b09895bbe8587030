package finder

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

var ErrRootNotFound = errors.Base("template root not found")

// DefaultGlobs match every T4 template under the root.
var DefaultGlobs = []string{"**/*.tt"}

// TemplateFinder is responsible for finding template files in a directory
type TemplateFinder interface {
	// FindTemplates finds all template files under root that match one of the globs
	FindTemplates(ctx context.Context, root string, globs []string) ([]FileInfo, error)
}

// FileInfo represents information about a found template file
type FileInfo struct {
	// Path is root joined with Rel.
	Path    string
	Rel     string
	Content []byte
}

// DefaultFinder is the default implementation of TemplateFinder
type DefaultFinder struct {
	fs afero.Fs
}

// NewDefaultFinder creates a new DefaultFinder
func NewDefaultFinder(fs afero.Fs) *DefaultFinder {
	return &DefaultFinder{fs: fs}
}

// FindTemplates implements TemplateFinder. Globs use doublestar syntax and
// are relative to root; results are sorted by path and read into memory.
func (f *DefaultFinder) FindTemplates(ctx context.Context, root string, globs []string) ([]FileInfo, error) {
	if ok, err := afero.DirExists(f.fs, root); err != nil || !ok {
		return nil, errors.WithDetails(ErrRootNotFound, "root", root)
	}
	if len(globs) == 0 {
		globs = DefaultGlobs
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(f.fs, root))

	seen := map[string]bool{}
	var rels []string
	for _, glob := range globs {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		if !doublestar.ValidatePattern(glob) {
			return nil, errors.Errorf("invalid template glob '%s'", glob)
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(glob), doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Errorf("matching '%s': %w", glob, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				rels = append(rels, m)
			}
		}
	}
	sort.Strings(rels)

	files := make([]FileInfo, 0, len(rels))
	for _, rel := range rels {
		path := filepath.Join(root, filepath.FromSlash(rel))
		content, err := afero.ReadFile(f.fs, path)
		if err != nil {
			return nil, errors.Errorf("reading template '%s': %w", path, err)
		}
		files = append(files, FileInfo{Path: path, Rel: rel, Content: content})
	}
	return files, nil
}
