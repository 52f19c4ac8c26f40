package pipeline

import (
	"fmt"

	"mrireg/internal/models"
)

// Node wraps exactly one Interface. A node with iterfields is a MapNode: the
// engine runs one invocation per element of the iterated inputs.
type Node struct {
	// Name is unique within a workflow
	Name string

	// Interface is the tool or structural interface this node runs
	Interface Interface

	// IterFields lists the input ports iterated element-wise
	IterFields []string

	inputs map[string]models.Value
}

// NewNode returns a plain node.
func NewNode(name string, iface Interface) *Node {
	return &Node{
		Name:      name,
		Interface: iface,
		inputs:    make(map[string]models.Value),
	}
}

// NewMapNode returns a node that iterates over iterfields.
func NewMapNode(name string, iface Interface, iterfields ...string) *Node {
	n := NewNode(name, iface)
	n.IterFields = iterfields
	return n
}

// IsMapNode reports whether the node iterates.
func (n *Node) IsMapNode() bool {
	return len(n.IterFields) > 0
}

// Iterates reports whether port is one of the node's iterfields.
func (n *Node) Iterates(port string) bool {
	return hasPort(n.IterFields, port)
}

// HasInput reports whether port is a declared input port.
func (n *Node) HasInput(port string) bool {
	return hasPort(n.Interface.InputPorts(), port)
}

// HasOutput reports whether port is a declared output port.
func (n *Node) HasOutput(port string) bool {
	return hasPort(n.Interface.OutputPorts(), port)
}

// Set binds a literal value to an input port.
func (n *Node) Set(port string, v models.Value) error {
	if !n.HasInput(port) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownPort, n.Name, port)
	}
	n.inputs[port] = v
	return nil
}

// Input returns the literal bound to port, if any.
func (n *Node) Input(port string) (models.Value, bool) {
	v, ok := n.inputs[port]
	return v, ok
}

// Inputs returns a copy of the literal bindings.
func (n *Node) Inputs() map[string]models.Value {
	cp := make(map[string]models.Value, len(n.inputs))
	for k, v := range n.inputs {
		cp[k] = v
	}
	return cp
}

func (n *Node) validate() error {
	for _, f := range n.IterFields {
		if !n.HasInput(f) {
			return fmt.Errorf("%w: iterfield %s.%s", ErrUnknownPort, n.Name, f)
		}
	}
	return nil
}
