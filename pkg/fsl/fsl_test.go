package fsl

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mrireg/pkg/pipeline"
)

var work = filepath.FromSlash("/work/n")

func TestFLIRTInvoke(t *testing.T) {
	tool := &FLIRT{Cost: CostCorrelationRatio}
	inv, err := tool.Invoke(map[string]string{
		InFile:         "/data/s01/highres_brain.nii.gz",
		FLIRTReference: "/fsl/MNI152_T1_2mm_brain.nii.gz",
	}, work)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	out := filepath.Join(work, "highres_brain_flirt.nii.gz")
	mat := filepath.Join(work, "highres_brain_flirt.mat")
	want := []string{
		"flirt", "-in", "/data/s01/highres_brain.nii.gz",
		"-ref", "/fsl/MNI152_T1_2mm_brain.nii.gz",
		"-out", out, "-omat", mat, "-cost", "corratio",
	}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("flirt args mismatch (-want +got):\n%s", diff)
	}
	if inv.Outputs[FLIRTOutMatrixFile] != mat || inv.Outputs[OutFile] != out {
		t.Errorf("Unexpected outputs %v", inv.Outputs)
	}
}

func TestFLIRTRejectsUnknownCost(t *testing.T) {
	tool := &FLIRT{Cost: "bogus"}
	_, err := tool.Invoke(map[string]string{InFile: "a.nii.gz", FLIRTReference: "b.nii.gz"}, work)
	if err == nil {
		t.Fatal("Expected error for unknown cost function")
	}
}

func TestMissingInputs(t *testing.T) {
	tools := []pipeline.Tool{
		&FLIRT{},
		&FNIRT{},
		&ApplyWarp{},
		&ConvertXFM{Invert: true},
		&InvWarp{},
		&Threshold{Thresh: 0.5},
	}
	for _, tool := range tools {
		_, err := tool.Invoke(map[string]string{}, work)
		if !errors.Is(err, pipeline.ErrMissingInput) {
			t.Errorf("%s: expected ErrMissingInput, got %v", tool.Kind(), err)
		}
	}
}

func TestFNIRTInvoke(t *testing.T) {
	tool := &FNIRT{FieldCoeff: true, Jacobian: true}
	inv, err := tool.Invoke(map[string]string{
		InFile:           "/data/s01/highres.nii.gz",
		FNIRTRefFile:     "/fsl/MNI152_T1_2mm.nii.gz",
		FNIRTRefMaskFile: "/fsl/mask.nii.gz",
		FNIRTConfigFile:  "T1_2_MNI152_2mm",
		FNIRTAffineFile:  "/w/highres_brain_flirt.mat",
	}, work)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	want := []string{
		"fnirt",
		"--in=/data/s01/highres.nii.gz",
		"--ref=/fsl/MNI152_T1_2mm.nii.gz",
		"--aff=/w/highres_brain_flirt.mat",
		"--refmask=/fsl/mask.nii.gz",
		"--config=T1_2_MNI152_2mm",
		"--iout=" + filepath.Join(work, "highres_warped.nii.gz"),
		"--cout=" + filepath.Join(work, "highres_fieldwarp.nii.gz"),
		"--jout=" + filepath.Join(work, "highres_field_jacobian.nii.gz"),
	}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("fnirt args mismatch (-want +got):\n%s", diff)
	}
	if _, ok := inv.Outputs[FNIRTFieldFile]; ok {
		t.Error("Dense field was not requested but is listed as an output")
	}
	if inv.Outputs[FNIRTFieldCoeffFile] != filepath.Join(work, "highres_fieldwarp.nii.gz") {
		t.Errorf("Unexpected fieldcoeff output %q", inv.Outputs[FNIRTFieldCoeffFile])
	}
}

func TestApplyWarpWithPostmat(t *testing.T) {
	inv, err := (&ApplyWarp{}).Invoke(map[string]string{
		InFile:             "/std/ventricle.nii.gz",
		ApplyWarpRefFile:   "/fsl/brain.nii.gz",
		ApplyWarpFieldFile: "/w/fieldwarp_inverse.nii.gz",
		ApplyWarpPostmat:   "/d/highres2diff.mat",
	}, work)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	want := []string{
		"applywarp",
		"--in=/std/ventricle.nii.gz",
		"--ref=/fsl/brain.nii.gz",
		"--out=" + filepath.Join(work, "ventricle_warp.nii.gz"),
		"--warp=/w/fieldwarp_inverse.nii.gz",
		"--postmat=/d/highres2diff.mat",
	}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("applywarp args mismatch (-want +got):\n%s", diff)
	}

	if _, err := (&ApplyWarp{Interp: "cubic"}).Invoke(map[string]string{
		InFile: "a.nii.gz", ApplyWarpRefFile: "b.nii.gz",
	}, work); err == nil {
		t.Error("Expected error for unsupported interpolation")
	}
}

func TestConvertXFMInvert(t *testing.T) {
	inv, err := (&ConvertXFM{Invert: true}).Invoke(map[string]string{InFile: "/w/brain_flirt.mat"}, work)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	out := filepath.Join(work, "brain_flirt_inv.mat")
	if diff := cmp.Diff([]string{"convert_xfm", "-omat", out, "-inverse", "/w/brain_flirt.mat"}, inv.Args); diff != "" {
		t.Errorf("convert_xfm args mismatch (-want +got):\n%s", diff)
	}

	if _, err := (&ConvertXFM{}).Invoke(map[string]string{InFile: "/w/brain_flirt.mat"}, work); err == nil {
		t.Error("Expected error when no operation is requested")
	}
}

func TestInvWarpInvoke(t *testing.T) {
	inv, err := (&InvWarp{}).Invoke(map[string]string{
		InvWarpWarp:      "/w/highres_fieldwarp.nii.gz",
		InvWarpReference: "/data/s01/highres_brain.nii.gz",
	}, work)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	out := filepath.Join(work, "highres_fieldwarp_inverse.nii.gz")
	want := []string{"invwarp", "--warp=/w/highres_fieldwarp.nii.gz", "--ref=/data/s01/highres_brain.nii.gz", "--out=" + out}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("invwarp args mismatch (-want +got):\n%s", diff)
	}
	if inv.Outputs[InvWarpInverseWarp] != out {
		t.Errorf("Expected inverse warp %s, got %s", out, inv.Outputs[InvWarpInverseWarp])
	}
}

func TestThresholdInvoke(t *testing.T) {
	inv, err := (&Threshold{Thresh: 0.5, Binarize: true}).Invoke(map[string]string{InFile: "/w/ventricle_warp.nii.gz"}, work)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	want := []string{"fslmaths", "/w/ventricle_warp.nii.gz", "-thr", "0.5", "-bin", filepath.Join(work, "ventricle_warp_thresh.nii.gz")}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("fslmaths args mismatch (-want +got):\n%s", diff)
	}
}

// TestThresholdApplyIdempotent verifies that re-thresholding a binary mask
// leaves it unchanged
func TestThresholdApplyIdempotent(t *testing.T) {
	th := &Threshold{Thresh: 0.5, Binarize: true}
	blurred := []float64{0, 0.1, 0.49, 0.5, 0.51, 0.9, 1, 1.7}

	once := th.Apply(blurred)
	want := []float64{0, 0, 0, 1, 1, 1, 1, 1}
	if diff := cmp.Diff(want, once); diff != "" {
		t.Errorf("first pass mismatch (-want +got):\n%s", diff)
	}

	twice := th.Apply(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("threshold is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestThresholdApplyWithoutBinarize(t *testing.T) {
	th := &Threshold{Thresh: 0.5}
	got := th.Apply([]float64{0.2, 0.7})
	if diff := cmp.Diff([]float64{0, 0.7}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestDeclaredPorts verifies that every output a tool reports is declared
func TestDeclaredPorts(t *testing.T) {
	cases := []struct {
		tool   pipeline.Tool
		inputs map[string]string
	}{
		{&FLIRT{}, map[string]string{InFile: "a.nii.gz", FLIRTReference: "r.nii.gz"}},
		{&FNIRT{FieldCoeff: true, Jacobian: true, Field: true}, map[string]string{InFile: "a.nii.gz", FNIRTRefFile: "r.nii.gz"}},
		{&ApplyWarp{}, map[string]string{InFile: "a.nii.gz", ApplyWarpRefFile: "r.nii.gz"}},
		{&ConvertXFM{Invert: true}, map[string]string{InFile: "a.mat"}},
		{&InvWarp{}, map[string]string{InvWarpWarp: "w.nii.gz", InvWarpReference: "r.nii.gz"}},
		{&Threshold{Thresh: 0.5}, map[string]string{InFile: "a.nii.gz"}},
	}
	for _, c := range cases {
		inv, err := c.tool.Invoke(c.inputs, work)
		if err != nil {
			t.Fatalf("%s: %v", c.tool.Kind(), err)
		}
		for port := range inv.Outputs {
			found := false
			for _, p := range c.tool.OutputPorts() {
				if p == port {
					found = true
				}
			}
			if !found {
				t.Errorf("%s reports undeclared output %q", c.tool.Kind(), port)
			}
		}
	}
}
