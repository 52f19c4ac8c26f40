package pipeline

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"mrireg/internal/models"
)

// Bindings assigns caller values to inputspec ports. A binding replaces the
// default bound by the workflow builder for that port only.
type Bindings map[string]models.Value

// Copy is one file a sink persists.
type Copy struct {
	Field       string `yaml:"field"`
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// Step is a single resolved invocation. MapNodes contribute one step per
// iteration; sinks contribute one step listing their copies.
type Step struct {
	Name      string            `yaml:"name"`
	Node      string            `yaml:"node"`
	Kind      Kind              `yaml:"kind"`
	Iteration *int              `yaml:"iteration,omitempty"`
	Dir       string            `yaml:"dir,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Inputs    map[string]string `yaml:"inputs,omitempty"`
	Outputs   map[string]string `yaml:"outputs,omitempty"`
	Copies    []Copy            `yaml:"copies,omitempty"`
}

// Plan is the fully resolved workflow handed to an execution engine.
type Plan struct {
	Workflow string                  `yaml:"workflow"`
	WorkDir  string                  `yaml:"work_dir"`
	Inputs   map[string]models.Value `yaml:"inputs"`
	Steps    []Step                  `yaml:"steps"`
	Outputs  map[string]models.Value `yaml:"outputs"`
}

// StepsFor returns the steps produced by the named node.
func (p *Plan) StepsFor(node string) []Step {
	var steps []Step
	for _, s := range p.Steps {
		if s.Node == node {
			steps = append(steps, s)
		}
	}
	return steps
}

// YAML encodes the plan.
func (p *Plan) YAML() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("error marshaling plan: %w", err)
	}
	return data, nil
}

// Resolve validates w, propagates values along its connections in
// topological order, expands MapNodes and asks every tool for its
// invocation. workDir is the root of per-node working directories.
func Resolve(w *Workflow, workDir string, bindings Bindings) (*Plan, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	order, err := w.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	plan := &Plan{Workflow: w.Name, WorkDir: workDir}
	values := make(map[string]map[string]models.Value, len(order))

	for _, n := range order {
		inputs, err := w.gatherInputs(n, values, bindings)
		if err != nil {
			return nil, err
		}

		var outputs map[string]models.Value
		switch iface := n.Interface.(type) {
		case Tool:
			var steps []Step
			outputs, steps, err = w.resolveTool(n, iface, inputs, workDir)
			if err != nil {
				return nil, err
			}
			plan.Steps = append(plan.Steps, steps...)
		case Persister:
			plan.Steps = append(plan.Steps, w.resolveSink(n, iface, inputs))
		default:
			outputs = make(map[string]models.Value)
			for _, p := range iface.OutputPorts() {
				if v, ok := inputs[p]; ok {
					outputs[p] = v
				}
			}
		}
		values[n.Name] = outputs
	}

	plan.Inputs = values[InputSpec]
	plan.Outputs = values[OutputSpec]
	log.WithFields(log.Fields{
		"workflow": w.Name,
		"steps":    len(plan.Steps),
	}).Debug("resolved workflow plan")
	return plan, nil
}

func (w *Workflow) gatherInputs(n *Node, values map[string]map[string]models.Value, bindings Bindings) (map[string]models.Value, error) {
	inputs := n.Inputs()
	if n.Name == InputSpec {
		for _, port := range sortedKeys(bindings) {
			if !n.HasInput(port) {
				return nil, fmt.Errorf("%w: %s has no input %q", ErrUnknownPort, InputSpec, port)
			}
			inputs[port] = bindings[port]
		}
	}
	for _, c := range w.Incoming(n.Name) {
		if v, ok := values[c.Source][c.SourcePort]; ok {
			inputs[c.DestPort] = v
		}
	}
	return inputs, nil
}

// iterations returns how many invocations n expands to, checking that all
// iterated inputs agree in length.
func iterations(n *Node, inputs map[string]models.Value) (int, error) {
	count := 1
	if n.IsMapNode() {
		count = -1
		for _, f := range n.IterFields {
			v, ok := inputs[f]
			if !ok || v.Len() == 0 {
				return 0, fmt.Errorf("%w: %s.%s", ErrMissingInput, n.Name, f)
			}
			if count == -1 {
				count = v.Len()
			} else if v.Len() != count {
				return 0, fmt.Errorf("%w: %s.%s has %d elements, expected %d", ErrIterLength, n.Name, f, v.Len(), count)
			}
		}
	}
	for _, port := range sortedKeys(inputs) {
		v := inputs[port]
		if v.IsSeq() && v.Len() == 0 {
			return 0, fmt.Errorf("%w: %s.%s", ErrMissingInput, n.Name, port)
		}
		if v.IsSeq() && v.Len() > 1 && !n.Iterates(port) {
			return 0, fmt.Errorf("%w: %s.%s receives a sequence but is not iterated", ErrIterLength, n.Name, port)
		}
	}
	return count, nil
}

func (w *Workflow) resolveTool(n *Node, tool Tool, inputs map[string]models.Value, workDir string) (map[string]models.Value, []Step, error) {
	count, err := iterations(n, inputs)
	if err != nil {
		return nil, nil, err
	}

	results := make(map[string][]string)
	steps := make([]Step, 0, count)
	for i := 0; i < count; i++ {
		args := make(map[string]string, len(inputs))
		for port, v := range inputs {
			if n.Iterates(port) {
				args[port] = v.At(i)
			} else {
				args[port] = v.At(0)
			}
		}

		step := Step{Name: n.Name, Node: n.Name, Kind: tool.Kind(), Inputs: args}
		step.Dir = filepath.Join(workDir, w.Name, n.Name)
		if n.IsMapNode() {
			iter := i
			step.Iteration = &iter
			step.Name = fmt.Sprintf("_%s%d", n.Name, i)
			step.Dir = filepath.Join(step.Dir, "mapflow", step.Name)
		}

		inv, err := tool.Invoke(args, step.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name, err)
		}
		step.Args = inv.Args
		step.Outputs = inv.Outputs
		for port, path := range inv.Outputs {
			results[port] = append(results[port], path)
		}
		steps = append(steps, step)
	}

	outputs := make(map[string]models.Value, len(results))
	for port, paths := range results {
		v, err := models.Collect(paths, n.IsMapNode())
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", n.Name, port, err)
		}
		outputs[port] = v
	}
	return outputs, steps, nil
}

func (w *Workflow) resolveSink(n *Node, p Persister, inputs map[string]models.Value) Step {
	step := Step{Name: n.Name, Node: n.Name, Kind: p.Kind()}
	for _, c := range w.Incoming(n.Name) {
		v, ok := inputs[c.DestPort]
		if !ok {
			continue
		}
		for i := 0; i < v.Len(); i++ {
			index := -1
			if v.IsSeq() {
				index = i
			}
			step.Copies = append(step.Copies, Copy{
				Field:       c.DestPort,
				Source:      v.At(i),
				Destination: p.Destination(c.DestPort, c.Source, index, v.At(i)),
			})
		}
	}
	return step
}
