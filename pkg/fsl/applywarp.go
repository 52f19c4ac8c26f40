package fsl

import (
	"fmt"

	"mrireg/pkg/pipeline"
)

// ApplyWarp ports.
const (
	ApplyWarpRefFile   = "ref_file"
	ApplyWarpFieldFile = "field_file"
	ApplyWarpPremat    = "premat"
	ApplyWarpPostmat   = "postmat"
)

var interpolations = map[string]bool{
	"nn":        true,
	"trilinear": true,
	"sinc":      true,
	"spline":    true,
}

// ApplyWarp resamples in_file onto ref_file through an optional premat,
// warp field and postmat, applied in that order.
type ApplyWarp struct {
	// Interp selects the interpolation; empty leaves applywarp's default
	Interp string
}

// Kind implements pipeline.Interface.
func (a *ApplyWarp) Kind() pipeline.Kind { return KindApplyWarp }

// InputPorts implements pipeline.Interface.
func (a *ApplyWarp) InputPorts() []string {
	return []string{InFile, ApplyWarpRefFile, ApplyWarpFieldFile, ApplyWarpPremat, ApplyWarpPostmat}
}

// OutputPorts implements pipeline.Interface.
func (a *ApplyWarp) OutputPorts() []string { return []string{OutFile} }

// Invoke implements pipeline.Tool.
func (a *ApplyWarp) Invoke(inputs map[string]string, dir string) (pipeline.Invocation, error) {
	if err := pipeline.Require(inputs, InFile, ApplyWarpRefFile); err != nil {
		return pipeline.Invocation{}, err
	}
	if a.Interp != "" && !interpolations[a.Interp] {
		return pipeline.Invocation{}, fmt.Errorf("unsupported applywarp interpolation %q", a.Interp)
	}

	in := inputs[InFile]
	out := volume(in, "_warp", dir)
	args := []string{"applywarp", "--in=" + in, "--ref=" + inputs[ApplyWarpRefFile], "--out=" + out}
	if field := inputs[ApplyWarpFieldFile]; field != "" {
		args = append(args, "--warp="+field)
	}
	if pre := inputs[ApplyWarpPremat]; pre != "" {
		args = append(args, "--premat="+pre)
	}
	if post := inputs[ApplyWarpPostmat]; post != "" {
		args = append(args, "--postmat="+post)
	}
	if a.Interp != "" {
		args = append(args, "--interp="+a.Interp)
	}
	return pipeline.Invocation{Args: args, Outputs: map[string]string{OutFile: out}}, nil
}
