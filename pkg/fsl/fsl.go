// Package fsl declares the FSL command-line tools used by the registration
// workflows. Each tool carries its static parameters as typed fields,
// declares its ports, and derives its argument list and output filenames
// from resolved inputs. FSLOUTPUTTYPE is assumed to be NIFTI_GZ.
package fsl

import (
	"strconv"

	"mrireg/internal/models"
	"mrireg/pkg/pipeline"
)

// Tool kinds. Together with the structural identity and sink kinds these
// form the closed set of node payloads a workflow can contain.
const (
	KindLinearReg    pipeline.Kind = "linear_reg"
	KindNonlinearReg pipeline.Kind = "nonlinear_reg"
	KindApplyWarp    pipeline.Kind = "apply_warp"
	KindInvertAffine pipeline.Kind = "invert_affine"
	KindInvertField  pipeline.Kind = "invert_field"
	KindThreshold    pipeline.Kind = "threshold"
)

// Port names shared by several tools.
const (
	InFile  = "in_file"
	OutFile = "out_file"
)

// volume returns the output volume path a tool writes for input.
func volume(input, suffix, dir string) string {
	return models.DerivedName(input, suffix, models.NiftiGzExt, dir)
}

// matrix returns the output affine path a tool writes for input.
func matrix(input, suffix, dir string) string {
	return models.DerivedName(input, suffix, ".mat", dir)
}

// formatFloat renders a parameter the way FSL accepts it on the command line.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
