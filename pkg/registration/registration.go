// Package registration builds the MNI registration workflows. Builders are
// pure apart from creating the sink directory: they return a finished graph
// and never run it.
package registration

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"mrireg/internal/models"
	"mrireg/pkg/pipeline"
)

// Options names a workflow and its sink directory. Zero fields take the
// builder's defaults.
type Options struct {
	// SinkTag is the directory under the configured sink root
	SinkTag string

	// Name is the workflow name
	Name string
}

func (o Options) withDefaults(tag, name string) Options {
	if o.SinkTag == "" {
		o.SinkTag = tag
	}
	if o.Name == "" {
		o.Name = name
	}
	return o
}

// Node names shared by both workflows.
const (
	nodeLinearReg    = "linear_reg_0"
	nodeNonlinearReg = "nonlinear_reg_1"
	nodeBrainWarp    = "brain_warp"
	nodeInvNonlinear = "inv_nonlinear_xfm"
	nodeSink         = "ds"
)

// Ports shared by both inputspecs.
const (
	ReferenceBrain = "reference_brain"
	FNIRTConfig    = "fnirt_config"
)

type edge struct {
	src     *pipeline.Node
	srcPort string
	dst     *pipeline.Node
	dstPort string
}

func connect(wf *pipeline.Workflow, edges []edge) error {
	for _, e := range edges {
		if err := wf.Connect(e.src, e.srcPort, e.dst, e.dstPort); err != nil {
			return fmt.Errorf("%s: %w", wf.Name, err)
		}
	}
	return nil
}

func bindDefaults(n *pipeline.Node, defaults map[string]string) error {
	for port, v := range defaults {
		if err := n.Set(port, models.Scalar(v)); err != nil {
			return err
		}
	}
	return nil
}

func logBuilt(wf *pipeline.Workflow, sinkDir string) {
	log.WithFields(log.Fields{
		"workflow":    wf.Name,
		"nodes":       len(wf.Nodes()),
		"connections": len(wf.Connections()),
		"sink":        sinkDir,
	}).Debug("built workflow")
}
