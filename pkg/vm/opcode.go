package vm

import (
	"fmt"
	"strings"

	"github.com/runedb/runedb/pkg/graph"
)

// Opcode is one instruction of a compiled query program. A program is a
// flat, branch-free sequence; the VM executes it front to back and the
// first failing opcode aborts the rest.
//
// Opcode is a closed sum: the variants below are the whole instruction
// set and nothing outside this package can add to it.
type Opcode interface {
	isOpcode()
	fmt.Stringer
}

// SetCurrentFromAllNodes loads every node ID, in store order, into the
// current set.
type SetCurrentFromAllNodes struct{}

// SetCurrentFromIds loads the given IDs verbatim into the current set.
// The IDs are not checked for existence; a later traversal simply skips
// IDs that resolve to nothing.
type SetCurrentFromIds struct {
	IDs []graph.ID
}

// TraverseOut replaces the current set with the result of a filtered
// breadth-first traversal from it. With no edge predicates in the
// filter it degenerates to a pure label filter over the current set.
type TraverseOut struct {
	Filter graph.TraverseFilter
}

// SetLimit sets the shared limit register consulted by every subsequent
// TraverseOut until overwritten.
type SetLimit struct {
	N int
}

// SaveResults appends the current set to the result accumulator. No
// deduplication is applied.
type SaveResults struct{}

// CreateNode appends a node with a freshly allocated ID and makes that
// ID the current set.
type CreateNode struct {
	Label      string
	Attributes []graph.Attribute
}

// CreateEdge appends an edge between two existing nodes and makes the
// target node the current set.
type CreateEdge struct {
	From  graph.ID
	To    graph.ID
	Label string
}

func (SetCurrentFromAllNodes) isOpcode() {}
func (SetCurrentFromIds) isOpcode()      {}
func (TraverseOut) isOpcode()            {}
func (SetLimit) isOpcode()               {}
func (SaveResults) isOpcode()            {}
func (CreateNode) isOpcode()             {}
func (CreateEdge) isOpcode()             {}

func (SetCurrentFromAllNodes) String() string { return "SetCurrentFromAllNodes" }

func (op SetCurrentFromIds) String() string {
	parts := make([]string, len(op.IDs))
	for i, id := range op.IDs {
		parts[i] = id.String()
	}
	return fmt.Sprintf("SetCurrentFromIds(%s)", strings.Join(parts, ","))
}

func (op TraverseOut) String() string {
	var parts []string
	if len(op.Filter.NodeLabels) > 0 {
		parts = append(parts, "nodes="+strings.Join(op.Filter.NodeLabels, "|"))
	}
	if len(op.Filter.EdgeLabels) > 0 {
		parts = append(parts, "edges="+strings.Join(op.Filter.EdgeLabels, "|"))
	}
	if len(op.Filter.NotNodeLabels) > 0 {
		parts = append(parts, "!nodes="+strings.Join(op.Filter.NotNodeLabels, "|"))
	}
	if len(op.Filter.NotEdgeLabels) > 0 {
		parts = append(parts, "!edges="+strings.Join(op.Filter.NotEdgeLabels, "|"))
	}
	return fmt.Sprintf("TraverseOut(%s)", strings.Join(parts, " "))
}

func (op SetLimit) String() string { return fmt.Sprintf("SetLimit(%d)", op.N) }

func (SaveResults) String() string { return "SaveResults" }

func (op CreateNode) String() string {
	return fmt.Sprintf("CreateNode(label=%q)", op.Label)
}

func (op CreateEdge) String() string {
	return fmt.Sprintf("CreateEdge(%s-[%s]->%s)", op.From, op.Label, op.To)
}
