// Package vm implements the bytecode interpreter at the back of the
// RuneDB query pipeline. The compiler in pkg/cypher lowers a parsed
// query into a flat Opcode sequence; Execute runs that sequence against
// a graph.Store and produces a Result or a typed error.
//
// Execution is synchronous and single-threaded. A VM assumes exclusive
// mutable access to its store for the duration of Execute; serializing
// callers is the host's job. There is no rollback: mutations applied by
// opcodes that ran before a failure stay applied.
package vm

import (
	"errors"
	"math"

	"github.com/runedb/runedb/pkg/graph"
)

// Execution errors. Every error is terminal for the current program.
var (
	// ErrNoReturnValue is returned when a program finishes with both
	// the current set and the result set empty.
	ErrNoReturnValue = errors.New("vm: query produced no return value")

	// ErrInvalidNodeSet is returned when TraverseOut runs with an
	// empty current set.
	ErrInvalidNodeSet = errors.New("vm: traversal requires a non-empty current set")

	// ErrNodeNotFound is returned when CreateEdge references a node ID
	// absent from the store.
	ErrNodeNotFound = errors.New("vm: node not found")

	// ErrOverflow is returned when ID allocation or a counter update
	// would overflow.
	ErrOverflow = errors.New("vm: arithmetic overflow")
)

// ResultKind discriminates the variants of Result.
type ResultKind int

const (
	// ResultNodes means the result carries a list of node IDs.
	ResultNodes ResultKind = iota
	// ResultScalar means the result carries a single integer.
	ResultScalar
	// ResultNone means the program completed without output. No current
	// execution path produces it (an empty outcome is ErrNoReturnValue
	// instead), but it is part of the result contract for hosts.
	ResultNone
)

// Result is the typed outcome of a successful program.
type Result struct {
	Kind   ResultKind
	Nodes  []graph.ID
	Scalar int64
}

// VM holds the interpreter state for one program: the working node-ID
// list, the accumulated results, and the shared limit register.
type VM struct {
	store   *graph.Store
	current []graph.ID
	results []graph.ID
	limit   int // -1 = unbounded
}

// New returns a VM bound to the given store. The caller grants the VM
// exclusive mutable access to the store until Execute returns.
func New(store *graph.Store) *VM {
	return &VM{store: store, limit: -1}
}

// Execute runs the program in a single straight-line pass. The first
// failing opcode aborts the remainder; earlier mutations are kept.
//
// After the last opcode: a non-empty current set is the result, else a
// non-empty result accumulator is, else the program failed to produce
// anything and ErrNoReturnValue is returned.
func (m *VM) Execute(program []Opcode) (*Result, error) {
	for _, op := range program {
		if err := m.step(op); err != nil {
			return nil, err
		}
	}

	if len(m.current) > 0 {
		return &Result{Kind: ResultNodes, Nodes: append([]graph.ID(nil), m.current...)}, nil
	}
	if len(m.results) > 0 {
		return &Result{Kind: ResultNodes, Nodes: append([]graph.ID(nil), m.results...)}, nil
	}
	return nil, ErrNoReturnValue
}

func (m *VM) step(op Opcode) error {
	switch op := op.(type) {
	case SetCurrentFromAllNodes:
		m.current = make([]graph.ID, len(m.store.Nodes))
		for i := range m.store.Nodes {
			m.current[i] = m.store.Nodes[i].ID
		}

	case SetCurrentFromIds:
		m.current = append([]graph.ID(nil), op.IDs...)

	case TraverseOut:
		if len(m.current) == 0 {
			return ErrInvalidNodeSet
		}
		m.current = m.store.TraverseOut(m.current, op.Filter, m.limit)

	case SetLimit:
		m.limit = op.N

	case SaveResults:
		m.results = append(m.results, m.current...)

	case CreateNode:
		return m.createNode(op)

	case CreateEdge:
		return m.createEdge(op)
	}
	return nil
}

// createNode allocates the next ID from the nonce and appends the node.
// The nonce advances before anything is appended, so an allocation
// overflow leaves the store untouched.
func (m *VM) createNode(op CreateNode) error {
	id := m.store.Nonce
	next, ok := m.store.Nonce.Inc()
	if !ok {
		return ErrOverflow
	}
	m.store.Nonce = next

	m.store.Nodes = append(m.store.Nodes, graph.Node{
		ID:         id,
		Label:      op.Label,
		Attributes: append([]graph.Attribute(nil), op.Attributes...),
	})
	if m.store.NodeCount == math.MaxUint64 {
		return ErrOverflow
	}
	m.store.NodeCount++

	m.current = []graph.ID{id}
	return nil
}

// createEdge appends an edge between two existing nodes and records its
// index on the source node's outgoing list.
func (m *VM) createEdge(op CreateEdge) error {
	if !m.store.HasNode(op.From) || !m.store.HasNode(op.To) {
		return ErrNodeNotFound
	}

	edgeIndex := uint32(len(m.store.Edges))
	m.store.Edges = append(m.store.Edges, graph.Edge{
		From:  op.From,
		To:    op.To,
		Label: op.Label,
	})
	if m.store.EdgeCount == math.MaxUint64 {
		return ErrOverflow
	}
	m.store.EdgeCount++

	from := m.store.NodeByID(op.From)
	if from == nil {
		return ErrNodeNotFound
	}
	from.Outgoing = append(from.Outgoing, edgeIndex)

	m.current = []graph.ID{op.To}
	return nil
}
