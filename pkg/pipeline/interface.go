// Package pipeline models a workflow as a static graph of external tool
// invocations connected by named ports, and resolves it into a concrete
// plan for an external execution engine. Nothing here runs a tool.
package pipeline

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors returned while building, validating or resolving a graph.
var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrUnknownPort   = errors.New("unknown port")
	ErrDuplicateNode = errors.New("duplicate node name")
	ErrFanIn         = errors.New("port already connected")
	ErrCycle         = errors.New("cycle detected in workflow graph")
	ErrIterLength    = errors.New("iterated inputs have mismatched lengths")
	ErrMissingInput  = errors.New("missing required input")
)

// Kind names the variant of an interface. Tool kinds are declared by the
// packages that implement them.
type Kind string

const (
	// KindIdentity is a pass-through interface used for inputspec and outputspec.
	KindIdentity Kind = "identity"

	// KindSink persists selected outputs to a directory layout.
	KindSink Kind = "datasink"
)

// Interface is the port contract shared by every node payload.
type Interface interface {
	Kind() Kind
	InputPorts() []string
	OutputPorts() []string
}

// Invocation is the resolved call of one external tool: its argument vector
// and the files it is expected to produce, keyed by output port.
type Invocation struct {
	Args    []string
	Outputs map[string]string
}

// Tool is an Interface backed by an external binary. Invoke derives the
// argument list and output paths from resolved inputs; dir is the working
// directory assigned to this invocation.
type Tool interface {
	Interface
	Invoke(inputs map[string]string, dir string) (Invocation, error)
}

// Persister is an Interface that stores its inputs rather than transforming
// them. Destination returns where src, arriving on field from producer, is
// stored; index is the iteration of a MapNode producer, or -1.
type Persister interface {
	Interface
	Destination(field, producer string, index int, src string) string
}

// Identity passes every field through unchanged.
type Identity struct {
	Fields []string
}

// NewIdentity returns an Identity over the given fields.
func NewIdentity(fields ...string) *Identity {
	return &Identity{Fields: fields}
}

// Kind implements Interface.
func (i *Identity) Kind() Kind { return KindIdentity }

// InputPorts implements Interface.
func (i *Identity) InputPorts() []string { return i.Fields }

// OutputPorts implements Interface.
func (i *Identity) OutputPorts() []string { return i.Fields }

// Require returns an error wrapping ErrMissingInput for the first port that
// has no value in inputs.
func Require(inputs map[string]string, ports ...string) error {
	for _, p := range ports {
		if inputs[p] == "" {
			return fmt.Errorf("%w: %s", ErrMissingInput, p)
		}
	}
	return nil
}

func hasPort(ports []string, name string) bool {
	for _, p := range ports {
		if p == name {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
