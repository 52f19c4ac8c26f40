package fsl

import "mrireg/pkg/pipeline"

// FNIRT ports.
const (
	FNIRTRefFile        = "ref_file"
	FNIRTRefMaskFile    = "refmask_file"
	FNIRTConfigFile     = "config_file"
	FNIRTAffineFile     = "affine_file"
	FNIRTWarpedFile     = "warped_file"
	FNIRTFieldFile      = "field_file"
	FNIRTFieldCoeffFile = "fieldcoeff_file"
	FNIRTJacobianFile   = "jacobian_file"
)

// FNIRT is nonlinear registration of in_file to ref_file, optionally
// initialised by an affine and constrained by a reference mask. The config
// file may be a path or the name of a file under $FSLDIR/etc/flirtsch.
type FNIRT struct {
	// FieldCoeff requests the spline coefficient field (--cout)
	FieldCoeff bool

	// Jacobian requests the jacobian of the field (--jout)
	Jacobian bool

	// Field requests the dense displacement field (--fout)
	Field bool
}

// Kind implements pipeline.Interface.
func (f *FNIRT) Kind() pipeline.Kind { return KindNonlinearReg }

// InputPorts implements pipeline.Interface.
func (f *FNIRT) InputPorts() []string {
	return []string{InFile, FNIRTRefFile, FNIRTRefMaskFile, FNIRTConfigFile, FNIRTAffineFile}
}

// OutputPorts implements pipeline.Interface.
func (f *FNIRT) OutputPorts() []string {
	return []string{FNIRTWarpedFile, FNIRTFieldFile, FNIRTFieldCoeffFile, FNIRTJacobianFile}
}

// Invoke implements pipeline.Tool.
func (f *FNIRT) Invoke(inputs map[string]string, dir string) (pipeline.Invocation, error) {
	if err := pipeline.Require(inputs, InFile, FNIRTRefFile); err != nil {
		return pipeline.Invocation{}, err
	}

	in := inputs[InFile]
	args := []string{"fnirt", "--in=" + in, "--ref=" + inputs[FNIRTRefFile]}
	if aff := inputs[FNIRTAffineFile]; aff != "" {
		args = append(args, "--aff="+aff)
	}
	if mask := inputs[FNIRTRefMaskFile]; mask != "" {
		args = append(args, "--refmask="+mask)
	}
	if cfg := inputs[FNIRTConfigFile]; cfg != "" {
		args = append(args, "--config="+cfg)
	}

	outputs := map[string]string{FNIRTWarpedFile: volume(in, "_warped", dir)}
	args = append(args, "--iout="+outputs[FNIRTWarpedFile])
	if f.FieldCoeff {
		outputs[FNIRTFieldCoeffFile] = volume(in, "_fieldwarp", dir)
		args = append(args, "--cout="+outputs[FNIRTFieldCoeffFile])
	}
	if f.Jacobian {
		outputs[FNIRTJacobianFile] = volume(in, "_field_jacobian", dir)
		args = append(args, "--jout="+outputs[FNIRTJacobianFile])
	}
	if f.Field {
		outputs[FNIRTFieldFile] = volume(in, "_field", dir)
		args = append(args, "--fout="+outputs[FNIRTFieldFile])
	}
	return pipeline.Invocation{Args: args, Outputs: outputs}, nil
}
