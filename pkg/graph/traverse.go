package graph

// TraverseFilter bundles the four label predicates applied during a
// traversal step. An empty set leaves that axis unconstrained.
//
// When both edge-label sets are empty the traversal walks no edges at
// all and degenerates to a pure label filter over the start set; this
// dual behavior is relied on by the compiler, which reuses one opcode
// for both "filter the current set" and "expand along edges".
type TraverseFilter struct {
	NodeLabels    []string
	EdgeLabels    []string
	NotNodeLabels []string
	NotEdgeLabels []string
}

// matchNode applies the positive and negative node-label predicates.
func (f *TraverseFilter) matchNode(label string) bool {
	if len(f.NodeLabels) > 0 && !contains(f.NodeLabels, label) {
		return false
	}
	if len(f.NotNodeLabels) > 0 && contains(f.NotNodeLabels, label) {
		return false
	}
	return true
}

// matchEdge applies the positive and negative edge-label predicates.
func (f *TraverseFilter) matchEdge(label string) bool {
	if len(f.EdgeLabels) > 0 && !contains(f.EdgeLabels, label) {
		return false
	}
	if len(f.NotEdgeLabels) > 0 && contains(f.NotEdgeLabels, label) {
		return false
	}
	return true
}

// edgeless reports whether no edge predicate is set, i.e. the filter
// runs in pure node-filter mode.
func (f *TraverseFilter) edgeless() bool {
	return len(f.EdgeLabels) == 0 && len(f.NotEdgeLabels) == 0
}

func contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// TraverseOut runs a breadth-first traversal from the given start IDs
// along outgoing edges, returning the IDs of nodes that pass the
// filter. limit bounds the result length; negative means unbounded.
//
// Start IDs that do not resolve to a node are skipped. A node is
// emitted at most once regardless of how many paths reach it (the
// visited set is the sole cycle guard). Result order is discovery
// order: start nodes in input order, then BFS expansion with each
// node's outgoing edges in storage order. Callers depend on that order
// for reproducibility, so no sorting is applied.
//
// When the filter carries no edge predicates, no edge is walked: the
// result is simply the start nodes that pass the node predicates.
func (s *Store) TraverseOut(start []ID, filter TraverseFilter, limit int) []ID {
	if limit == 0 {
		return nil
	}
	visited := make(map[ID]struct{}, len(start))
	queue := make([]ID, 0, len(start))
	var result []ID

	for _, id := range start {
		node := s.NodeByID(id)
		if node == nil {
			continue
		}
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		queue = append(queue, id)
		if filter.matchNode(node.Label) {
			result = append(result, id)
			if limit >= 0 && len(result) >= limit {
				return result
			}
		}
	}

	if filter.edgeless() {
		return result
	}

	for len(queue) > 0 {
		if limit >= 0 && len(result) >= limit {
			break
		}
		id := queue[0]
		queue = queue[1:]
		node := s.NodeByID(id)
		if node == nil {
			continue
		}
		for _, edgeIndex := range node.Outgoing {
			if int(edgeIndex) >= len(s.Edges) {
				continue
			}
			edge := &s.Edges[edgeIndex]
			if !filter.matchEdge(edge.Label) {
				continue
			}
			if _, seen := visited[edge.To]; seen {
				continue
			}
			target := s.NodeByID(edge.To)
			if target == nil {
				continue
			}
			visited[edge.To] = struct{}{}
			queue = append(queue, target.ID)
			if filter.matchNode(target.Label) {
				result = append(result, target.ID)
				if limit >= 0 && len(result) >= limit {
					return result
				}
			}
		}
	}

	return result
}
