// Package graph implements the in-memory directed labeled graph RuneDB
// queries run against: append-only node and edge collections, 128-bit
// node identifiers allocated from a monotonic nonce, and the filtered
// breadth-first traversal primitive the bytecode VM is built on.
//
// The package is pure data structure code. It does no I/O, holds no
// locks, and never logs; one caller at a time is assumed to own a Store
// (the host facade serializes access).
package graph

// Attribute is a single key/value pair on a node. Attributes are kept
// as an ordered list rather than a map: insertion order is part of the
// snapshot format, and keys are not required to be unique.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Node is a vertex of the graph. Outgoing holds indices into the owning
// Store's edge list; every referenced edge has From equal to this
// node's ID.
type Node struct {
	ID         ID          `json:"id"`
	Label      string      `json:"label"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Outgoing   []uint32    `json:"outgoing,omitempty"`
}

// Edge is a directed labeled arc between two nodes.
type Edge struct {
	From  ID     `json:"from"`
	To    ID     `json:"to"`
	Label string `json:"label"`
}

// Store owns the node and edge collections of one graph.
//
// Invariants:
//   - node IDs are unique,
//   - Nonce is strictly greater than every assigned node ID,
//   - NodeCount == len(Nodes) and EdgeCount == len(Edges),
//   - every index in a node's Outgoing list is a valid edge index whose
//     From equals that node's ID.
//
// A store starts empty and only ever grows: nodes and edges are
// appended by the VM's mutating opcodes, never deleted or reordered.
// Slice order is observable (scans and traversals report nodes in store
// order), which is why Nodes and Edges are slices rather than maps.
type Store struct {
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
	Nonce     ID     `json:"nonce"`
	NodeCount uint64 `json:"node_count"`
	EdgeCount uint64 `json:"edge_count"`
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// NodeByID returns the node with the given ID, or nil if absent. The
// returned pointer aliases the store's backing array and is invalidated
// by the next append.
func (s *Store) NodeByID(id ID) *Node {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i]
		}
	}
	return nil
}

// HasNode reports whether a node with the given ID exists.
func (s *Store) HasNode(id ID) bool {
	return s.NodeByID(id) != nil
}
