// Package security confines the documents a caller may read and write to
// configured directories.
package security

import (
	"os"
	"path/filepath"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-formfill/internal/pdf/errors"
)

// PathValidator resolves caller-supplied paths for templates and filled
// documents. Relative paths are taken relative to the matching directory;
// every resolved path, after symlink evaluation, must stay inside it.
type PathValidator struct {
	templateDir string
	outputDir   string
}

// NewPathValidator creates a validator. An empty outputDir shares templateDir.
func NewPathValidator(templateDir, outputDir string) (*PathValidator, error) {
	if templateDir == "" {
		return nil, pdferrors.New(pdferrors.KindConfiguration, "template directory cannot be empty")
	}
	if outputDir == "" {
		outputDir = templateDir
	}

	td, err := filepath.Abs(templateDir)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindConfiguration, "failed to resolve template directory", err)
	}
	od, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindConfiguration, "failed to resolve output directory", err)
	}
	return &PathValidator{templateDir: td, outputDir: od}, nil
}

// TemplateDir returns the absolute template directory
func (v *PathValidator) TemplateDir() string {
	return v.templateDir
}

// OutputDir returns the absolute output directory
func (v *PathValidator) OutputDir() string {
	return v.outputDir
}

// Template resolves path to an existing regular file inside the template directory
func (v *PathValidator) Template(path string) (string, error) {
	resolved, err := resolve(path, v.templateDir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", pdferrors.Wrap(pdferrors.KindResource, "cannot access template", err).
			WithDetail("path", path)
	}
	if !info.Mode().IsRegular() {
		return "", pdferrors.New(pdferrors.KindResource, "template is not a regular file").
			WithDetail("path", path)
	}
	return resolved, nil
}

// Output resolves path to a writable location inside the output directory.
// The parent directory must already exist.
func (v *PathValidator) Output(path string) (string, error) {
	resolved, err := resolve(path, v.outputDir)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return "", pdferrors.New(pdferrors.KindConfiguration, "output path is a directory").
			WithDetail("path", path)
	}
	parent, err := os.Stat(filepath.Dir(resolved))
	if err != nil || !parent.IsDir() {
		return "", pdferrors.New(pdferrors.KindResource, "output directory does not exist").
			WithDetail("path", path)
	}
	return resolved, nil
}

// Within reports whether path, after symlink evaluation, lies inside dir
func Within(path, dir string) bool {
	rel, err := filepath.Rel(realPath(dir), realPath(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func resolve(path, base string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", pdferrors.New(pdferrors.KindConfiguration, "path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", pdferrors.Wrap(pdferrors.KindConfiguration, "failed to resolve path", err).
			WithDetail("path", path)
	}

	if !Within(abs, base) {
		return "", pdferrors.New(pdferrors.KindConfiguration, "path is outside the configured directory").
			WithDetail("path", path).
			WithDetail("directory", base)
	}
	return abs, nil
}

// realPath evaluates symlinks in the longest existing prefix of p
func realPath(p string) string {
	p = filepath.Clean(p)
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p
	}
	return filepath.Join(realPath(parent), filepath.Base(p))
}
