package models

import (
	"fmt"
	"strings"
)

// Value is the content carried by a workflow port: either a single path or
// literal, or a sequence of them with one element per subject.
type Value struct {
	// items holds the scalar as its only element when seq is false
	items []string

	// seq marks a subject-level sequence, even of length one
	seq bool
}

// Scalar returns a single-element Value.
func Scalar(s string) Value {
	return Value{items: []string{s}}
}

// Seq returns a sequence Value. MapNodes iterate over sequences.
func Seq(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{items: cp, seq: true}
}

// IsZero reports whether the value was never set.
func (v Value) IsZero() bool {
	return !v.seq && len(v.items) == 0
}

// IsSeq reports whether the value is a sequence.
func (v Value) IsSeq() bool {
	return v.seq
}

// Len returns the number of elements; a scalar has length 1.
func (v Value) Len() int {
	return len(v.items)
}

// At returns element i of a sequence. A scalar returns itself for every i,
// so non-iterated ports of a MapNode see the same value on each iteration.
func (v Value) At(i int) string {
	if !v.seq {
		if len(v.items) == 0 {
			return ""
		}
		return v.items[0]
	}
	return v.items[i]
}

// Items returns a copy of the underlying elements.
func (v Value) Items() []string {
	cp := make([]string, len(v.items))
	copy(cp, v.items)
	return cp
}

// String renders the value for logs and error messages.
func (v Value) String() string {
	if v.seq {
		return "[" + strings.Join(v.items, ", ") + "]"
	}
	return v.At(0)
}

// MarshalYAML encodes a scalar as a plain string and a sequence as a list.
func (v Value) MarshalYAML() (interface{}, error) {
	if v.seq {
		return v.Items(), nil
	}
	return v.At(0), nil
}

// Collect gathers per-iteration results back into a Value. A single
// non-iterated result stays a scalar.
func Collect(results []string, iterated bool) (Value, error) {
	if !iterated {
		if len(results) != 1 {
			return Value{}, fmt.Errorf("expected one result for a plain node, got %d", len(results))
		}
		return Scalar(results[0]), nil
	}
	return Seq(results...), nil
}
