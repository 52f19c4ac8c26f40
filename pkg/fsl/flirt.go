package fsl

import (
	"fmt"

	"mrireg/pkg/pipeline"
)

// FLIRT ports.
const (
	FLIRTReference     = "reference"
	FLIRTOutMatrixFile = "out_matrix_file"
)

// CostCorrelationRatio is FLIRT's correlation ratio cost function.
const CostCorrelationRatio = "corratio"

var flirtCosts = map[string]bool{
	"mutualinfo":         true,
	CostCorrelationRatio: true,
	"normcorr":           true,
	"normmi":             true,
	"leastsq":            true,
	"labeldiff":          true,
	"bbr":                true,
}

// FLIRT is affine linear registration of in_file to reference.
type FLIRT struct {
	// Cost is the cost function; empty leaves FLIRT's default
	Cost string
}

// Kind implements pipeline.Interface.
func (f *FLIRT) Kind() pipeline.Kind { return KindLinearReg }

// InputPorts implements pipeline.Interface.
func (f *FLIRT) InputPorts() []string { return []string{InFile, FLIRTReference} }

// OutputPorts implements pipeline.Interface.
func (f *FLIRT) OutputPorts() []string { return []string{OutFile, FLIRTOutMatrixFile} }

// Invoke implements pipeline.Tool.
func (f *FLIRT) Invoke(inputs map[string]string, dir string) (pipeline.Invocation, error) {
	if err := pipeline.Require(inputs, InFile, FLIRTReference); err != nil {
		return pipeline.Invocation{}, err
	}
	if f.Cost != "" && !flirtCosts[f.Cost] {
		return pipeline.Invocation{}, fmt.Errorf("unsupported flirt cost function %q", f.Cost)
	}

	in := inputs[InFile]
	out := volume(in, "_flirt", dir)
	mat := matrix(in, "_flirt", dir)

	args := []string{"flirt", "-in", in, "-ref", inputs[FLIRTReference], "-out", out, "-omat", mat}
	if f.Cost != "" {
		args = append(args, "-cost", f.Cost)
	}
	return pipeline.Invocation{
		Args: args,
		Outputs: map[string]string{
			OutFile:            out,
			FLIRTOutMatrixFile: mat,
		},
	}, nil
}
