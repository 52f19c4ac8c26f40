package models

import (
	"path/filepath"
	"strings"
)

// Extensions recognised as a single unit when splitting image and transform
// filenames. Longer entries come first so ".nii.gz" wins over ".gz".
var knownExtensions = []string{
	".nii.gz",
	".tar.gz",
	".nii",
	".mat",
	".gz",
}

// NiftiGzExt is the canonical compressed-volume extension written by FSL
// with FSLOUTPUTTYPE=NIFTI_GZ.
const NiftiGzExt = ".nii.gz"

// SplitFilename splits a path into directory, base name and extension,
// treating double extensions such as ".nii.gz" as one.
func SplitFilename(path string) (dir, base, ext string) {
	dir = filepath.Dir(path)
	name := filepath.Base(path)

	lower := strings.ToLower(name)
	for _, e := range knownExtensions {
		if strings.HasSuffix(lower, e) && len(name) > len(e) {
			return dir, name[:len(name)-len(e)], name[len(name)-len(e):]
		}
	}

	ext = filepath.Ext(name)
	return dir, strings.TrimSuffix(name, ext), ext
}

// DerivedName builds the output filename a tool writes for an input file:
// the input base name plus suffix and ext, placed in dir.
func DerivedName(input, suffix, ext, dir string) string {
	_, base, _ := SplitFilename(input)
	return filepath.Join(dir, base+suffix+ext)
}
