package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runedb/runedb/pkg/graph"
)

// cityGraph builds the fixture used throughout:
//
//	1(City) --Railway--> 2(City) --Railway--> 3(City) --Railway--> 1
//	1(City) --Railway--> 3(City)
//	2(City) --Highway--> 4(Town)
//	5(Town) isolated
func cityGraph() *graph.Store {
	return &graph.Store{
		Nodes: []graph.Node{
			{ID: graph.IDFromUint64(1), Label: "City", Outgoing: []uint32{0, 1}},
			{ID: graph.IDFromUint64(2), Label: "City", Outgoing: []uint32{2, 3}},
			{ID: graph.IDFromUint64(3), Label: "City", Outgoing: []uint32{4}},
			{ID: graph.IDFromUint64(4), Label: "Town"},
			{ID: graph.IDFromUint64(5), Label: "Town"},
		},
		Edges: []graph.Edge{
			{From: graph.IDFromUint64(1), To: graph.IDFromUint64(2), Label: "Railway"},
			{From: graph.IDFromUint64(1), To: graph.IDFromUint64(3), Label: "Railway"},
			{From: graph.IDFromUint64(2), To: graph.IDFromUint64(3), Label: "Railway"},
			{From: graph.IDFromUint64(2), To: graph.IDFromUint64(4), Label: "Highway"},
			{From: graph.IDFromUint64(3), To: graph.IDFromUint64(1), Label: "Railway"},
		},
		Nonce:     graph.IDFromUint64(6),
		NodeCount: 5,
		EdgeCount: 5,
	}
}

func ids(values ...uint64) []graph.ID {
	out := make([]graph.ID, len(values))
	for i, v := range values {
		out[i] = graph.IDFromUint64(v)
	}
	return out
}

func requireNodes(t *testing.T, result *Result) []graph.ID {
	t.Helper()
	require.NotNil(t, result)
	require.Equal(t, ResultNodes, result.Kind)
	return result.Nodes
}

func TestSetCurrentFromAllNodes(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{SetCurrentFromAllNodes{}})
	require.NoError(t, err)

	// Store order is the observable scan order.
	assert.Equal(t, ids(1, 2, 3, 4, 5), requireNodes(t, result))
}

func TestSetCurrentFromIdsIsUnchecked(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{
		SetCurrentFromIds{IDs: ids(1, 3, 999)},
	})
	require.NoError(t, err)

	// IDs pass through verbatim, existing or not.
	assert.Equal(t, ids(1, 3, 999), requireNodes(t, result))
}

func TestTraverseOutAsPureFilter(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{
		SetCurrentFromAllNodes{},
		TraverseOut{Filter: graph.TraverseFilter{NodeLabels: []string{"City"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, ids(1, 2, 3), requireNodes(t, result))
}

func TestTraverseOutBFSHop(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{
		SetCurrentFromIds{IDs: ids(1)},
		TraverseOut{Filter: graph.TraverseFilter{
			NodeLabels: []string{"City"},
			EdgeLabels: []string{"Railway"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, ids(1, 2, 3), requireNodes(t, result))
}

func TestTraverseOutRespectsLimitRegister(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{
		SetCurrentFromIds{IDs: ids(1)},
		SetLimit{N: 2},
		TraverseOut{Filter: graph.TraverseFilter{
			NodeLabels: []string{"City"},
			EdgeLabels: []string{"Railway"},
		}},
	})
	require.NoError(t, err)
	assert.Len(t, requireNodes(t, result), 2)
}

func TestTraverseOutEmptyCurrentSet(t *testing.T) {
	g := cityGraph()
	_, err := New(g).Execute([]Opcode{
		TraverseOut{Filter: graph.TraverseFilter{NodeLabels: []string{"City"}}},
	})
	assert.ErrorIs(t, err, ErrInvalidNodeSet)
}

func TestSaveResultsAccumulates(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{
		SetCurrentFromIds{IDs: ids(1, 2)},
		SaveResults{},
		SetCurrentFromIds{IDs: nil},
	})
	require.NoError(t, err)

	// Current set ends empty, so the accumulator is the result.
	assert.Equal(t, ids(1, 2), requireNodes(t, result))
}

func TestSaveResultsDoesNotDeduplicate(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{
		SetCurrentFromIds{IDs: ids(1)},
		SaveResults{},
		SaveResults{},
		SetCurrentFromIds{IDs: nil},
	})
	require.NoError(t, err)
	assert.Equal(t, ids(1, 1), requireNodes(t, result))
}

func TestNoReturnValue(t *testing.T) {
	g := cityGraph()
	_, err := New(g).Execute([]Opcode{
		SetCurrentFromIds{IDs: ids(1, 2, 3)},
		TraverseOut{Filter: graph.TraverseFilter{NodeLabels: []string{"NonExistent"}}},
	})
	assert.ErrorIs(t, err, ErrNoReturnValue)
}

func TestCreateNode(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{
		CreateNode{
			Label:      "Village",
			Attributes: []graph.Attribute{{Key: "population", Value: "1000"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(6), g.NodeCount)
	assert.Equal(t, graph.IDFromUint64(7), g.Nonce)

	nodes := requireNodes(t, result)
	require.Len(t, nodes, 1)
	assert.Equal(t, graph.IDFromUint64(6), nodes[0])

	created := g.NodeByID(nodes[0])
	require.NotNil(t, created)
	assert.Equal(t, "Village", created.Label)
	assert.Equal(t, []graph.Attribute{{Key: "population", Value: "1000"}}, created.Attributes)
}

func TestCreateNodeNonceOverflow(t *testing.T) {
	g := cityGraph()
	g.Nonce = graph.MaxID

	_, err := New(g).Execute([]Opcode{CreateNode{Label: "Village"}})
	assert.ErrorIs(t, err, ErrOverflow)

	// Nothing was appended.
	assert.Equal(t, uint64(5), g.NodeCount)
	assert.Len(t, g.Nodes, 5)
}

func TestCreateEdge(t *testing.T) {
	g := cityGraph()
	result, err := New(g).Execute([]Opcode{
		CreateEdge{From: graph.IDFromUint64(1), To: graph.IDFromUint64(5), Label: "Road"},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(6), g.EdgeCount)

	// The new edge index lands on node 1's outgoing list.
	node1 := g.NodeByID(graph.IDFromUint64(1))
	require.NotNil(t, node1)
	require.NotEmpty(t, node1.Outgoing)
	lastIndex := node1.Outgoing[len(node1.Outgoing)-1]
	edge := g.Edges[lastIndex]
	assert.Equal(t, graph.IDFromUint64(1), edge.From)
	assert.Equal(t, graph.IDFromUint64(5), edge.To)
	assert.Equal(t, "Road", edge.Label)

	// The target node becomes the current set.
	assert.Equal(t, ids(5), requireNodes(t, result))
}

func TestCreateEdgeMissingEndpoint(t *testing.T) {
	g := cityGraph()

	for name, op := range map[string]Opcode{
		"missing from": CreateEdge{From: graph.IDFromUint64(999), To: graph.IDFromUint64(1), Label: "Road"},
		"missing to":   CreateEdge{From: graph.IDFromUint64(1), To: graph.IDFromUint64(999), Label: "Road"},
	} {
		_, err := New(g).Execute([]Opcode{op})
		assert.ErrorIs(t, err, ErrNodeNotFound, name)
		assert.Equal(t, uint64(5), g.EdgeCount, name)
		assert.Len(t, g.Edges, 5, name)
	}
}

func TestCreateNodeThenEdgeSequence(t *testing.T) {
	g := cityGraph()
	m := New(g)

	result, err := m.Execute([]Opcode{CreateNode{Label: "Village"}})
	require.NoError(t, err)
	newID := requireNodes(t, result)[0]

	_, err = New(g).Execute([]Opcode{
		CreateEdge{From: graph.IDFromUint64(1), To: newID, Label: "Path"},
	})
	require.NoError(t, err)

	node1 := g.NodeByID(graph.IDFromUint64(1))
	lastIndex := node1.Outgoing[len(node1.Outgoing)-1]
	assert.Equal(t, newID, g.Edges[lastIndex].To)
	assert.Equal(t, "Path", g.Edges[lastIndex].Label)
}

func TestFailureKeepsEarlierMutations(t *testing.T) {
	g := cityGraph()
	_, err := New(g).Execute([]Opcode{
		CreateNode{Label: "Village"},
		CreateEdge{From: graph.IDFromUint64(999), To: graph.IDFromUint64(1), Label: "Road"},
	})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	// No rollback: the node created before the failure stays.
	assert.Equal(t, uint64(6), g.NodeCount)
	assert.NotNil(t, g.NodeByID(graph.IDFromUint64(6)))
}
