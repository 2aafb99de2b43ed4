package storage

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runedb/runedb/pkg/graph"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleGraph() *graph.Store {
	g := graph.NewStore()
	g.Nodes = []graph.Node{
		{ID: graph.IDFromUint64(0), Label: "City",
			Attributes: []graph.Attribute{{Key: "name", Value: "Oslo"}},
			Outgoing:   []uint32{0}},
		{ID: graph.IDFromUint64(1), Label: "City"},
		{ID: graph.ID{Hi: 1, Lo: 0}, Label: "Town"},
	}
	g.Edges = []graph.Edge{
		{From: graph.IDFromUint64(0), To: graph.IDFromUint64(1), Label: "Railway"},
	}
	g.Nonce = graph.ID{Hi: 1, Lo: 1}
	g.NodeCount = 3
	g.EdgeCount = 1
	return g
}

func TestLoadEmptyDatabase(t *testing.T) {
	s := openTestStore(t)

	g, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.True(t, g.Nonce.IsZero())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := sampleGraph()
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want.Nodes, got.Nodes)
	assert.Equal(t, want.Edges, got.Edges)
	assert.Equal(t, want.Nonce, got.Nonce)
	assert.Equal(t, want.NodeCount, got.NodeCount)
	assert.Equal(t, want.EdgeCount, got.EdgeCount)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Save(sampleGraph()))

	smaller := graph.NewStore()
	smaller.Nodes = []graph.Node{{ID: graph.IDFromUint64(7), Label: "User"}}
	smaller.Nonce = graph.IDFromUint64(8)
	smaller.NodeCount = 1
	require.NoError(t, s.Save(smaller))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, graph.IDFromUint64(7), got.Nodes[0].ID)
	assert.Empty(t, got.Edges)
}

func TestLoadPreservesInsertionOrder(t *testing.T) {
	s := openTestStore(t)

	g := graph.NewStore()
	// Ids are allocated monotonically, so key order matches insertion
	// order, including across the 64-bit boundary.
	for _, id := range []graph.ID{
		graph.IDFromUint64(1),
		graph.IDFromUint64(2),
		{Hi: 1, Lo: 0},
		{Hi: 1, Lo: 5},
	} {
		g.Nodes = append(g.Nodes, graph.Node{ID: id, Label: "User"})
		g.NodeCount++
	}
	g.Nonce = graph.ID{Hi: 1, Lo: 6}
	require.NoError(t, s.Save(g))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got.Nodes, 4)
	for i := range g.Nodes {
		assert.Equal(t, g.Nodes[i].ID, got.Nodes[i].ID)
	}
}

func TestSaveLoadOnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleGraph()))
	require.NoError(t, s.Close())

	s, err = Open(Options{DataDir: dir})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 3)
	assert.Len(t, got.Edges, 1)
}

func TestSaveLargeGraphExceedsSingleTransaction(t *testing.T) {
	s := openTestStore(t)

	// Well past what one Badger transaction can hold; the snapshot has
	// to go through the batch path.
	const n = 200_000
	g := graph.NewStore()
	g.Nodes = make([]graph.Node, n)
	for i := range g.Nodes {
		g.Nodes[i] = graph.Node{
			ID:         graph.IDFromUint64(uint64(i)),
			Label:      "User",
			Attributes: []graph.Attribute{{Key: "name", Value: "user"}},
		}
	}
	g.Nonce = graph.IDFromUint64(n)
	g.NodeCount = n

	require.NoError(t, s.Save(g))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got.Nodes, n)
	assert.Equal(t, graph.IDFromUint64(0), got.Nodes[0].ID)
	assert.Equal(t, graph.IDFromUint64(n-1), got.Nodes[n-1].ID)
	assert.Equal(t, uint64(n), got.NodeCount)
}

func TestInterruptedSaveKeepsLiveSnapshot(t *testing.T) {
	s := openTestStore(t)

	live := sampleGraph()
	require.NoError(t, s.Save(live))

	meta, found, err := s.readMeta()
	require.NoError(t, err)
	require.True(t, found)

	// Simulate a save that died after writing rows but before the meta
	// flip: standby-generation rows exist, meta still names the old
	// generation.
	standby := 1 - meta.Generation
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(standby, graph.IDFromUint64(999)), []byte("partial"))
	})
	require.NoError(t, err)

	// The live snapshot is untouched.
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, live.Nodes, got.Nodes)
	assert.Equal(t, live.Edges, got.Edges)
	assert.Equal(t, live.NodeCount, got.NodeCount)

	// The next save clears the leftovers instead of loading them.
	next := graph.NewStore()
	next.Nodes = []graph.Node{{ID: graph.IDFromUint64(7), Label: "User"}}
	next.Nonce = graph.IDFromUint64(8)
	next.NodeCount = 1
	require.NoError(t, s.Save(next))

	got, err = s.Load()
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, graph.IDFromUint64(7), got.Nodes[0].ID)
}

func TestSaveAlternatesGenerations(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(sampleGraph()))
	first, _, err := s.readMeta()
	require.NoError(t, err)

	require.NoError(t, s.Save(sampleGraph()))
	second, _, err := s.readMeta()
	require.NoError(t, err)

	assert.NotEqual(t, first.Generation, second.Generation)

	// Retired-generation rows are gone after the flip.
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixNode, first.Generation}
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Rewind()
		assert.False(t, it.Valid(), "retired generation still has rows")
		return nil
	})
	require.NoError(t, err)
}
