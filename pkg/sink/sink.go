// Package sink describes where workflow outputs are persisted. The copying
// itself is done by the execution engine; this package only fixes the
// directory layout and filename rewriting.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	log "github.com/sirupsen/logrus"

	"mrireg/internal/models"
	"mrireg/pkg/pipeline"
)

// Substitution is a regular-expression rewrite applied to destination paths.
type Substitution struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// NewSubstitution compiles pattern into a Substitution.
func NewSubstitution(pattern, replacement string) (Substitution, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Substitution{}, fmt.Errorf("invalid substitution pattern %q: %w", pattern, err)
	}
	return Substitution{Pattern: re, Replacement: replacement}, nil
}

// CompressedVolumeRule replaces the final path component, separator
// included, with the compressed NIfTI extension, so ".../field/file" is
// stored as ".../field.nii.gz".
var CompressedVolumeRule = Substitution{
	Pattern:     regexp.MustCompile(`(/)[^/]*$`),
	Replacement: models.NiftiGzExt,
}

// DataSink stores named fields under BaseDirectory.
type DataSink struct {
	BaseDirectory string
	Fields        []string
	Substitutions []Substitution
}

// New returns a sink over fields rooted at base with the given rewrites.
func New(base string, subs []Substitution, fields ...string) *DataSink {
	return &DataSink{
		BaseDirectory: base,
		Fields:        fields,
		Substitutions: subs,
	}
}

// Kind implements pipeline.Interface.
func (d *DataSink) Kind() pipeline.Kind { return pipeline.KindSink }

// InputPorts implements pipeline.Interface.
func (d *DataSink) InputPorts() []string { return d.Fields }

// OutputPorts implements pipeline.Interface. A sink has none.
func (d *DataSink) OutputPorts() []string { return nil }

// Destination implements pipeline.Persister. MapNode outputs land in a
// per-iteration subdirectory named after the producer; substitutions are
// then applied in order to the whole path.
func (d *DataSink) Destination(field, producer string, index int, src string) string {
	dst := filepath.Join(d.BaseDirectory, field)
	if index >= 0 {
		dst = filepath.Join(dst, fmt.Sprintf("_%s%d", producer, index))
	}
	dst = filepath.ToSlash(filepath.Join(dst, filepath.Base(src)))
	for _, s := range d.Substitutions {
		dst = s.Pattern.ReplaceAllString(dst, s.Replacement)
	}
	return filepath.FromSlash(dst)
}

// EnsureDir creates root/tag if needed and returns its absolute path. An
// existing directory is not an error. Check and creation are not atomic.
func EnsureDir(root, tag string) (string, error) {
	dir, err := filepath.Abs(filepath.Join(root, tag))
	if err != nil {
		return "", fmt.Errorf("failed to resolve sink directory: %w", err)
	}
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return dir, nil
	case err == nil:
		return "", fmt.Errorf("sink path %s is not a directory", dir)
	case !os.IsNotExist(err):
		return "", fmt.Errorf("failed to inspect sink directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create sink directory: %w", err)
	}
	log.WithField("dir", dir).Debug("created sink directory")
	return dir, nil
}
