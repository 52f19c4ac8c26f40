package registration

import (
	"mrireg/pkg/config"
	"mrireg/pkg/fsl"
	"mrireg/pkg/pipeline"
	"mrireg/pkg/sink"
)

// Defaults for StdVentr2Diff.
const (
	DefaultVentr2DiffSinkTag = "std2diff"
	DefaultVentr2DiffName    = "HOXventr2diff"
)

// StdVentr2Diff inputs.
const (
	HighresBrain       = "highres_brain"
	Highres            = "highres"
	ReferenceVentricle = "reference_ventricle"
	Highres2Diff       = "highres2diff"
)

// OutputVentricle is the only output of StdVentr2Diff.
const OutputVentricle = "output_ventricle"

// VentricleThreshold is the cut-off applied to the resampled ventricle mask
// to undo interpolation blur.
const VentricleThreshold = 0.5

const nodeThresholdBin = "thresholdbin"

// StdVentr2Diff builds the workflow mapping a standard-space lateral
// ventricle mask into a subject's diffusion space:
//
//  1. FLIRT highres_brain -> reference_brain with the correlation ratio cost
//  2. FNIRT highres_brain -> reference_brain, initialised by step 1
//  3. inversion of the FNIRT warp on the reference brain grid
//  4. applywarp of reference_ventricle through the inverse warp, followed by
//     the highres2diff affine as post-transform
//  5. threshold at 0.5 and binarize
//
// The sink directory is created, but the ventricle mask is only exposed on
// outputspec; no sink node is attached.
func StdVentr2Diff(cfg *config.Config, opts Options) (*pipeline.Workflow, error) {
	opts = opts.withDefaults(DefaultVentr2DiffSinkTag, DefaultVentr2DiffName)

	sinkDir, err := sink.EnsureDir(cfg.Paths.SinkDir, opts.SinkTag)
	if err != nil {
		return nil, err
	}

	inputspec := pipeline.NewNode(pipeline.InputSpec, pipeline.NewIdentity(
		HighresBrain, Highres, ReferenceBrain, ReferenceVentricle, FNIRTConfig, Highres2Diff,
	))
	err = bindDefaults(inputspec, map[string]string{
		ReferenceBrain: cfg.ReferenceBrain(),
		FNIRTConfig:    cfg.Paths.FNIRTConfig,
	})
	if err != nil {
		return nil, err
	}

	linearReg := pipeline.NewMapNode(nodeLinearReg,
		&fsl.FLIRT{Cost: fsl.CostCorrelationRatio},
		fsl.InFile)
	nonlinearReg := pipeline.NewMapNode(nodeNonlinearReg,
		&fsl.FNIRT{FieldCoeff: true, Jacobian: true, Field: true},
		fsl.InFile, fsl.FNIRTAffineFile)
	invNonlinear := pipeline.NewMapNode(nodeInvNonlinear,
		&fsl.InvWarp{},
		fsl.InvWarpWarp)
	brainWarp := pipeline.NewMapNode(nodeBrainWarp,
		&fsl.ApplyWarp{},
		fsl.ApplyWarpFieldFile, fsl.ApplyWarpPostmat)
	thresholdBin := pipeline.NewMapNode(nodeThresholdBin,
		&fsl.Threshold{Thresh: VentricleThreshold, Binarize: true},
		fsl.InFile)

	outputspec := pipeline.NewNode(pipeline.OutputSpec, pipeline.NewIdentity(OutputVentricle))

	wf := pipeline.New(opts.Name)
	err = connect(wf, []edge{
		{inputspec, HighresBrain, linearReg, fsl.InFile},
		{inputspec, ReferenceBrain, linearReg, fsl.FLIRTReference},

		{inputspec, HighresBrain, nonlinearReg, fsl.InFile},
		{inputspec, ReferenceBrain, nonlinearReg, fsl.FNIRTRefFile},
		{inputspec, FNIRTConfig, nonlinearReg, fsl.FNIRTConfigFile},
		{linearReg, fsl.FLIRTOutMatrixFile, nonlinearReg, fsl.FNIRTAffineFile},

		// unlike Anat2MNIFSL, the inverse is sampled on the reference grid
		{nonlinearReg, fsl.FNIRTFieldCoeffFile, invNonlinear, fsl.InvWarpWarp},
		{inputspec, ReferenceBrain, invNonlinear, fsl.InvWarpReference},

		{inputspec, ReferenceVentricle, brainWarp, fsl.InFile},
		{inputspec, ReferenceBrain, brainWarp, fsl.ApplyWarpRefFile},
		{invNonlinear, fsl.InvWarpInverseWarp, brainWarp, fsl.ApplyWarpFieldFile},
		{inputspec, Highres2Diff, brainWarp, fsl.ApplyWarpPostmat},

		{brainWarp, fsl.OutFile, thresholdBin, fsl.InFile},
		{thresholdBin, fsl.OutFile, outputspec, OutputVentricle},
	})
	if err != nil {
		return nil, err
	}

	logBuilt(wf, sinkDir)
	return wf, nil
}
