package registration

import (
	"mrireg/pkg/config"
	"mrireg/pkg/fsl"
	"mrireg/pkg/pipeline"
	"mrireg/pkg/sink"
)

// Defaults for Anat2MNIFSL.
const (
	DefaultAnat2MNISinkTag = "anat_preproc"
	DefaultAnat2MNIName    = "anat2mni_fsl"
)

// Anat2MNIFSL inputs.
const (
	Brain          = "brain"
	Skull          = "skull"
	ReferenceSkull = "reference_skull"
	RefMask        = "ref_mask"
)

// Anat2MNIFSL outputs.
const (
	OutputBrain     = "output_brain"
	LinearXFM       = "linear_xfm"
	InvLinearXFM    = "invlinear_xfm"
	NonlinearXFM    = "nonlinear_xfm"
	InvNonlinearXFM = "invnonlinear_xfm"
	StdTemplate     = "std_template"
)

// Fields persisted by the Anat2MNIFSL sink.
const (
	SinkStdBrain  = "anat2mni_std"
	SinkWarpField = "anat2mni_warpfield"
)

const nodeInvLinear = "inv_linear_reg0_xfm"

// Anat2MNIFSL builds the workflow registering a skull-stripped anatomical
// image and its whole-head counterpart to the MNI template:
//
//  1. FLIRT brain -> reference_brain with the correlation ratio cost
//  2. FNIRT skull -> reference_skull, masked by ref_mask, initialised by step 1,
//     writing the dense field, its coefficients and the jacobian
//  3. applywarp of the brain through the FNIRT coefficients
//  4. inversion of the FLIRT affine
//  5. inversion of the FNIRT warp on the subject brain grid
//  6. sink of the standardized brain and the warp coefficients
//
// The sink directory <SinkDir>/<SinkTag> is created if missing.
func Anat2MNIFSL(cfg *config.Config, opts Options) (*pipeline.Workflow, error) {
	opts = opts.withDefaults(DefaultAnat2MNISinkTag, DefaultAnat2MNIName)

	sinkDir, err := sink.EnsureDir(cfg.Paths.SinkDir, opts.SinkTag)
	if err != nil {
		return nil, err
	}

	inputspec := pipeline.NewNode(pipeline.InputSpec, pipeline.NewIdentity(
		Brain, Skull, ReferenceBrain, ReferenceSkull, RefMask, FNIRTConfig,
	))
	err = bindDefaults(inputspec, map[string]string{
		ReferenceBrain: cfg.ReferenceBrain(),
		ReferenceSkull: cfg.ReferenceSkull(),
		RefMask:        cfg.ReferenceMask(),
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
	brainWarp := pipeline.NewMapNode(nodeBrainWarp,
		&fsl.ApplyWarp{},
		fsl.InFile, fsl.ApplyWarpFieldFile)
	invLinear := pipeline.NewMapNode(nodeInvLinear,
		&fsl.ConvertXFM{Invert: true},
		fsl.InFile)
	invNonlinear := pipeline.NewMapNode(nodeInvNonlinear,
		&fsl.InvWarp{},
		fsl.InvWarpWarp, fsl.InvWarpReference)

	ds := pipeline.NewNode(nodeSink, sink.New(sinkDir,
		[]sink.Substitution{sink.CompressedVolumeRule},
		SinkStdBrain, SinkWarpField))

	outputspec := pipeline.NewNode(pipeline.OutputSpec, pipeline.NewIdentity(
		OutputBrain, LinearXFM, InvLinearXFM, NonlinearXFM, InvNonlinearXFM, StdTemplate,
	))

	wf := pipeline.New(opts.Name)
	err = connect(wf, []edge{
		{inputspec, Brain, linearReg, fsl.InFile},
		{inputspec, ReferenceBrain, linearReg, fsl.FLIRTReference},

		// FNIRT parameters come from the config file, a name under
		// ${FSLDIR}/etc/flirtsch or a user path
		{inputspec, Skull, nonlinearReg, fsl.InFile},
		{inputspec, ReferenceSkull, nonlinearReg, fsl.FNIRTRefFile},
		{inputspec, RefMask, nonlinearReg, fsl.FNIRTRefMaskFile},
		{inputspec, FNIRTConfig, nonlinearReg, fsl.FNIRTConfigFile},
		{linearReg, fsl.FLIRTOutMatrixFile, nonlinearReg, fsl.FNIRTAffineFile},

		{inputspec, Brain, brainWarp, fsl.InFile},
		{nonlinearReg, fsl.FNIRTFieldCoeffFile, brainWarp, fsl.ApplyWarpFieldFile},
		{inputspec, ReferenceBrain, brainWarp, fsl.ApplyWarpRefFile},

		{linearReg, fsl.FLIRTOutMatrixFile, invLinear, fsl.InFile},

		// the inverse field is sampled on the subject brain grid
		{nonlinearReg, fsl.FNIRTFieldCoeffFile, invNonlinear, fsl.InvWarpWarp},
		{inputspec, Brain, invNonlinear, fsl.InvWarpReference},

		{brainWarp, fsl.OutFile, outputspec, OutputBrain},
		{linearReg, fsl.FLIRTOutMatrixFile, outputspec, LinearXFM},
		{invLinear, fsl.OutFile, outputspec, InvLinearXFM},
		{nonlinearReg, fsl.FNIRTFieldCoeffFile, outputspec, NonlinearXFM},
		{invNonlinear, fsl.InvWarpInverseWarp, outputspec, InvNonlinearXFM},
		{inputspec, ReferenceBrain, outputspec, StdTemplate},

		{brainWarp, fsl.OutFile, ds, SinkStdBrain},
		{nonlinearReg, fsl.FNIRTFieldCoeffFile, ds, SinkWarpField},
	})
	if err != nil {
		return nil, err
	}

	logBuilt(wf, sinkDir)
	return wf, nil
}
