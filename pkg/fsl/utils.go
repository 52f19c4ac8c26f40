package fsl

import (
	"errors"

	"mrireg/pkg/pipeline"
)

// InvWarp ports.
const (
	InvWarpWarp        = "warp"
	InvWarpReference   = "reference"
	InvWarpInverseWarp = "inverse_warp"
)

// ConvertXFM inverts an affine matrix written by FLIRT.
type ConvertXFM struct {
	// Invert must be set; convert_xfm is only used for inversion here
	Invert bool
}

// Kind implements pipeline.Interface.
func (c *ConvertXFM) Kind() pipeline.Kind { return KindInvertAffine }

// InputPorts implements pipeline.Interface.
func (c *ConvertXFM) InputPorts() []string { return []string{InFile} }

// OutputPorts implements pipeline.Interface.
func (c *ConvertXFM) OutputPorts() []string { return []string{OutFile} }

// Invoke implements pipeline.Tool.
func (c *ConvertXFM) Invoke(inputs map[string]string, dir string) (pipeline.Invocation, error) {
	if err := pipeline.Require(inputs, InFile); err != nil {
		return pipeline.Invocation{}, err
	}
	if !c.Invert {
		return pipeline.Invocation{}, errors.New("convert_xfm: no operation requested")
	}

	in := inputs[InFile]
	out := matrix(in, "_inv", dir)
	return pipeline.Invocation{
		Args:    []string{"convert_xfm", "-omat", out, "-inverse", in},
		Outputs: map[string]string{OutFile: out},
	}, nil
}

// InvWarp numerically inverts a nonlinear warp. The reference image sets
// the sampling grid of the inverse field.
type InvWarp struct{}

// Kind implements pipeline.Interface.
func (i *InvWarp) Kind() pipeline.Kind { return KindInvertField }

// InputPorts implements pipeline.Interface.
func (i *InvWarp) InputPorts() []string { return []string{InvWarpWarp, InvWarpReference} }

// OutputPorts implements pipeline.Interface.
func (i *InvWarp) OutputPorts() []string { return []string{InvWarpInverseWarp} }

// Invoke implements pipeline.Tool.
func (i *InvWarp) Invoke(inputs map[string]string, dir string) (pipeline.Invocation, error) {
	if err := pipeline.Require(inputs, InvWarpWarp, InvWarpReference); err != nil {
		return pipeline.Invocation{}, err
	}

	warp := inputs[InvWarpWarp]
	out := volume(warp, "_inverse", dir)
	return pipeline.Invocation{
		Args:    []string{"invwarp", "--warp=" + warp, "--ref=" + inputs[InvWarpReference], "--out=" + out},
		Outputs: map[string]string{InvWarpInverseWarp: out},
	}, nil
}
