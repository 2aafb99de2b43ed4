package cypher

import (
	"fmt"

	"github.com/runedb/runedb/pkg/graph"
	"github.com/runedb/runedb/pkg/vm"
)

// Compile lowers a parsed query into a bytecode program.
//
// A MATCH query becomes a seed instruction (a point lookup when the
// WHERE clause pins the start variable's id, a full scan otherwise),
// zero or more TraverseOut hops for the label filters, then SetLimit
// and SaveResults. SetLimit is emitted after the traversals it
// nominally bounds, so it only constrains instructions that follow it.
// That ordering is long-standing observable behavior and is kept as
// is; see the pinned tests before changing it.
//
// A CREATE query becomes a single CreateNode or CreateEdge. A node's
// hex payload is validated at parse time but not materialized here;
// edge creation requires literal ids on both endpoints, otherwise
// ErrUnboundEndpoint is returned.
func Compile(q Query) ([]vm.Opcode, error) {
	switch q := q.(type) {
	case MatchQuery:
		return compileMatch(q), nil
	case CreateQuery:
		return compileCreate(q)
	default:
		return nil, fmt.Errorf("cypher: unknown query type %T", q)
	}
}

func compileMatch(q MatchQuery) []vm.Opcode {
	var program []vm.Opcode

	switch pattern := q.Pattern.(type) {
	case SingleNode:
		program = append(program, vm.SetCurrentFromAllNodes{})
		if pattern.Label != "" {
			program = append(program, vm.TraverseOut{
				Filter: graph.TraverseFilter{NodeLabels: []string{pattern.Label}},
			})
		}

	case Relationship:
		if id, ok := startNodeID(q.Where, pattern.From.Variable); ok {
			program = append(program, vm.SetCurrentFromIds{IDs: []graph.ID{id}})
		} else {
			program = append(program, vm.SetCurrentFromAllNodes{})
			if pattern.From.Label != "" {
				program = append(program, vm.TraverseOut{
					Filter: graph.TraverseFilter{NodeLabels: []string{pattern.From.Label}},
				})
			}
		}
		if pattern.Edge.Label != "" {
			filter := graph.TraverseFilter{EdgeLabels: []string{pattern.Edge.Label}}
			if pattern.To.Label != "" {
				filter.NodeLabels = []string{pattern.To.Label}
			}
			program = append(program, vm.TraverseOut{Filter: filter})
		}
	}

	if q.HasLimit {
		program = append(program, vm.SetLimit{N: q.Limit})
	}
	return append(program, vm.SaveResults{})
}

// startNodeID reports whether the WHERE clause pins the start variable
// to a literal id, enabling a point lookup instead of a full scan.
func startNodeID(where WhereClause, startVariable string) (graph.ID, bool) {
	eq, ok := where.(WhereIDEquals)
	if !ok || eq.Variable != startVariable {
		return graph.ID{}, false
	}
	return eq.Value, true
}

func compileCreate(q CreateQuery) ([]vm.Opcode, error) {
	switch pattern := q.Pattern.(type) {
	case CreateNodePattern:
		return []vm.Opcode{vm.CreateNode{Label: pattern.Label}}, nil

	case CreateEdgePattern:
		if pattern.FromID == nil || pattern.ToID == nil {
			return nil, ErrUnboundEndpoint
		}
		return []vm.Opcode{vm.CreateEdge{
			From:  *pattern.FromID,
			To:    *pattern.ToID,
			Label: pattern.Edge.Label,
		}}, nil

	default:
		return nil, fmt.Errorf("cypher: unknown create pattern %T", pattern)
	}
}
