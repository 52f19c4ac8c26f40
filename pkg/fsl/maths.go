package fsl

import "mrireg/pkg/pipeline"

// Threshold zeroes voxels below Thresh with fslmaths and, when Binarize is
// set, maps every remaining non-zero voxel to one.
type Threshold struct {
	Thresh   float64
	Binarize bool
}

// Kind implements pipeline.Interface.
func (t *Threshold) Kind() pipeline.Kind { return KindThreshold }

// InputPorts implements pipeline.Interface.
func (t *Threshold) InputPorts() []string { return []string{InFile} }

// OutputPorts implements pipeline.Interface.
func (t *Threshold) OutputPorts() []string { return []string{OutFile} }

// Invoke implements pipeline.Tool.
func (t *Threshold) Invoke(inputs map[string]string, dir string) (pipeline.Invocation, error) {
	if err := pipeline.Require(inputs, InFile); err != nil {
		return pipeline.Invocation{}, err
	}

	in := inputs[InFile]
	out := volume(in, "_thresh", dir)
	args := []string{"fslmaths", in, "-thr", formatFloat(t.Thresh)}
	if t.Binarize {
		args = append(args, "-bin")
	}
	args = append(args, out)
	return pipeline.Invocation{Args: args, Outputs: map[string]string{OutFile: out}}, nil
}

// Apply evaluates the operation on voxel intensities the way fslmaths does:
// values below Thresh become zero, the rest are kept, or set to one when
// binarizing. Binarized output is a fixed point of Apply for Thresh in (0, 1].
func (t *Threshold) Apply(voxels []float64) []float64 {
	out := make([]float64, len(voxels))
	for i, v := range voxels {
		switch {
		case v < t.Thresh:
			out[i] = 0
		case t.Binarize && v != 0:
			out[i] = 1
		default:
			out[i] = v
		}
	}
	return out
}
