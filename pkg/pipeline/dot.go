package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// dotNode labels a workflow node with its name and interface kind.
type dotNode struct {
	id   int64
	node *Node
}

func (n dotNode) ID() int64 { return n.id }

func (n dotNode) DOTID() string { return n.node.Name }

func (n dotNode) Attributes() []encoding.Attribute {
	label := fmt.Sprintf("%s\n(%s)", n.node.Name, n.node.Interface.Kind())
	shape := "box"
	switch {
	case n.node.Interface.Kind() == KindIdentity:
		shape = "ellipse"
	case n.node.Interface.Kind() == KindSink:
		shape = "folder"
	case n.node.IsMapNode():
		shape = "box3d"
	}
	return []encoding.Attribute{
		{Key: "label", Value: strconv.Quote(label)},
		{Key: "shape", Value: shape},
	}
}

// dotEdge carries every port pair wired between two nodes.
type dotEdge struct {
	from, to graph.Node
	ports    []string
}

func (e *dotEdge) From() graph.Node { return e.from }

func (e *dotEdge) To() graph.Node { return e.to }

func (e *dotEdge) ReversedEdge() graph.Edge {
	return &dotEdge{from: e.to, to: e.from, ports: e.ports}
}

func (e *dotEdge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "label", Value: strconv.Quote(strings.Join(e.ports, "\n"))},
	}
}

// DOT renders the workflow as a Graphviz digraph. Parallel connections
// between the same pair of nodes are folded into one labelled edge.
func DOT(w *Workflow) ([]byte, error) {
	g := simple.NewDirectedGraph()
	nodes := make(map[string]dotNode, len(w.nodes))
	for i, n := range w.nodes {
		dn := dotNode{id: int64(i), node: n}
		nodes[n.Name] = dn
		g.AddNode(dn)
	}

	edges := make(map[[2]int64]*dotEdge)
	var order [][2]int64
	for _, c := range w.conns {
		if c.Source == c.Dest {
			return nil, fmt.Errorf("%w: %s feeds itself", ErrCycle, c.Source)
		}
		from, to := nodes[c.Source], nodes[c.Dest]
		key := [2]int64{from.id, to.id}
		e, ok := edges[key]
		if !ok {
			e = &dotEdge{from: from, to: to}
			edges[key] = e
			order = append(order, key)
		}
		e.ports = append(e.ports, c.SourcePort+" -> "+c.DestPort)
	}
	for _, key := range order {
		g.SetEdge(edges[key])
	}

	data, err := dot.Marshal(g, w.Name, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("error rendering %s as DOT: %w", w.Name, err)
	}
	return data, nil
}
