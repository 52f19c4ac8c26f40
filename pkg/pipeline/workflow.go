package pipeline

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"mrireg/internal/models"
)

// Names of the structural nodes every workflow exposes.
const (
	InputSpec  = "inputspec"
	OutputSpec = "outputspec"
)

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	Source     string `yaml:"source"`
	SourcePort string `yaml:"source_port"`
	Dest       string `yaml:"dest"`
	DestPort   string `yaml:"dest_port"`
}

// String renders the connection as "src.port -> dst.port".
func (c Connection) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", c.Source, c.SourcePort, c.Dest, c.DestPort)
}

// Workflow is a named directed acyclic graph of nodes.
type Workflow struct {
	// Name identifies the workflow to the execution engine
	Name string

	nodes  []*Node
	byName map[string]*Node
	conns  []Connection
}

// New returns an empty workflow.
func New(name string) *Workflow {
	return &Workflow{
		Name:   name,
		byName: make(map[string]*Node),
	}
}

// Add inserts nodes. Adding the same node twice is a no-op; a different node
// under an existing name is an error.
func (w *Workflow) Add(nodes ...*Node) error {
	for _, n := range nodes {
		if existing, ok := w.byName[n.Name]; ok {
			if existing == n {
				continue
			}
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.Name)
		}
		if err := n.validate(); err != nil {
			return err
		}
		w.byName[n.Name] = n
		w.nodes = append(w.nodes, n)
	}
	return nil
}

// Connect wires src.srcPort to dst.dstPort, adding either node if it is not
// yet part of the workflow. Fan-out is allowed; a destination port accepts
// at most one connection.
func (w *Workflow) Connect(src *Node, srcPort string, dst *Node, dstPort string) error {
	if err := w.Add(src, dst); err != nil {
		return err
	}
	if !src.HasOutput(srcPort) {
		return fmt.Errorf("%w: %s has no output %q", ErrUnknownPort, src.Name, srcPort)
	}
	if !dst.HasInput(dstPort) {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownPort, dst.Name, dstPort)
	}
	for _, c := range w.conns {
		if c.Dest == dst.Name && c.DestPort == dstPort {
			return fmt.Errorf("%w: %s.%s is fed by %s.%s", ErrFanIn, dst.Name, dstPort, c.Source, c.SourcePort)
		}
	}
	w.conns = append(w.conns, Connection{
		Source:     src.Name,
		SourcePort: srcPort,
		Dest:       dst.Name,
		DestPort:   dstPort,
	})
	return nil
}

// Node returns the node with the given name.
func (w *Workflow) Node(name string) (*Node, bool) {
	n, ok := w.byName[name]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (w *Workflow) Nodes() []*Node {
	return append([]*Node(nil), w.nodes...)
}

// Connections returns the edges in insertion order.
func (w *Workflow) Connections() []Connection {
	return append([]Connection(nil), w.conns...)
}

// Incoming returns the edges ending at the named node.
func (w *Workflow) Incoming(name string) []Connection {
	var in []Connection
	for _, c := range w.conns {
		if c.Dest == name {
			in = append(in, c)
		}
	}
	return in
}

// InputPorts returns the fields of the inputspec node.
func (w *Workflow) InputPorts() []string {
	if n, ok := w.byName[InputSpec]; ok {
		return n.Interface.InputPorts()
	}
	return nil
}

// OutputPorts returns the fields of the outputspec node.
func (w *Workflow) OutputPorts() []string {
	if n, ok := w.byName[OutputSpec]; ok {
		return n.Interface.OutputPorts()
	}
	return nil
}

// Defaults returns the literal values bound on the inputspec node.
func (w *Workflow) Defaults() map[string]models.Value {
	if n, ok := w.byName[InputSpec]; ok {
		return n.Inputs()
	}
	return map[string]models.Value{}
}

// Validate checks that every connection resolves on both endpoints and that
// the graph is acyclic.
func (w *Workflow) Validate() error {
	for _, c := range w.conns {
		src, ok := w.byName[c.Source]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, c.Source)
		}
		dst, ok := w.byName[c.Dest]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, c.Dest)
		}
		if !src.HasOutput(c.SourcePort) || !dst.HasInput(c.DestPort) {
			return fmt.Errorf("%w: %s", ErrUnknownPort, c)
		}
	}
	_, err := w.TopologicalOrder()
	return err
}

// TopologicalOrder returns the nodes ordered so every node follows its
// sources. Ties are broken by insertion order.
func (w *Workflow) TopologicalOrder() ([]*Node, error) {
	g, err := w.graph()
	if err != nil {
		return nil, err
	}
	sorted, err := topo.SortStabilized(g, nil)
	if err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) {
			return nil, fmt.Errorf("%w: %d strongly connected component(s)", ErrCycle, len(unorderable))
		}
		return nil, err
	}
	order := make([]*Node, len(sorted))
	for i, gn := range sorted {
		order[i] = w.nodes[gn.ID()]
	}
	return order, nil
}

// graph projects the workflow onto a gonum directed graph whose node IDs
// are insertion indices.
func (w *Workflow) graph() (*simple.DirectedGraph, error) {
	g := simple.NewDirectedGraph()
	index := make(map[string]int64, len(w.nodes))
	for i, n := range w.nodes {
		index[n.Name] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for _, c := range w.conns {
		from, ok := index[c.Source]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, c.Source)
		}
		to, ok := index[c.Dest]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, c.Dest)
		}
		if from == to {
			return nil, fmt.Errorf("%w: %s feeds itself", ErrCycle, c.Source)
		}
		g.SetEdge(g.NewEdge(g.Node(from), g.Node(to)))
	}
	return g, nil
}
