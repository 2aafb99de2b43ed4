// Package storage persists graph snapshots in BadgerDB.
//
// The store is snapshot-oriented: after every successful mutation the
// whole graph is written back, and on startup the snapshot is loaded
// into memory. Rows live under single-byte key prefixes with JSON
// values; node ids are allocated monotonically, so their big-endian
// keys iterate back in insertion order.
//
// Snapshots are double-buffered across two generations. A save writes
// the new rows under the standby generation with a WriteBatch (a single
// transaction cannot hold a large graph), then flips the meta record to
// the new generation in one small transaction. The previous snapshot
// stays intact and loadable until that flip commits; a save that dies
// partway leaves only standby-generation garbage, which the next save
// clears first.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/runedb/runedb/pkg/graph"
)

// Key layout. gen is 0 or 1; the meta record names the live one.
const (
	prefixMeta = byte(0x00) // meta -> JSON(snapshotMeta)
	prefixNode = byte(0x01) // node: gen + 16-byte big-endian id -> JSON(Node)
	prefixEdge = byte(0x02) // edge: gen + 4-byte big-endian index -> JSON(Edge)
)

var metaKey = []byte{prefixMeta}

// snapshotMeta names the live generation and carries the store
// counters alongside the rows.
type snapshotMeta struct {
	Generation byte     `json:"generation"`
	Nonce      graph.ID `json:"nonce"`
	NodeCount  uint64   `json:"nodeCount"`
	EdgeCount  uint64   `json:"edgeCount"`
}

// BadgerStore persists graph snapshots under a data directory.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// Options configures Open.
type Options struct {
	// DataDir is the on-disk location. Ignored when InMemory is set.
	DataDir string
	// InMemory runs Badger without a disk, for tests.
	InMemory bool
	// Logger receives store-level log lines. Defaults to the standard
	// logrus logger.
	Logger *logrus.Logger
}

// Open opens or creates the snapshot store.
func Open(opts Options) (*BadgerStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	badgerOpts := badger.DefaultOptions(opts.DataDir).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", opts.DataDir, err)
	}

	return &BadgerStore{
		db:  db,
		log: logger.WithField("component", "storage"),
	}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	return nil
}

func nodeKey(gen byte, id graph.ID) []byte {
	key := make([]byte, 2+16)
	key[0] = prefixNode
	key[1] = gen
	binary.BigEndian.PutUint64(key[2:10], id.Hi)
	binary.BigEndian.PutUint64(key[10:18], id.Lo)
	return key
}

func edgeKey(gen byte, index uint32) []byte {
	key := make([]byte, 2+4)
	key[0] = prefixEdge
	key[1] = gen
	binary.BigEndian.PutUint32(key[2:], index)
	return key
}

// rowPrefixes returns the node and edge key prefixes of one generation.
func rowPrefixes(gen byte) [][]byte {
	return [][]byte{{prefixNode, gen}, {prefixEdge, gen}}
}

// readMeta returns the meta record, or found == false on a fresh
// database.
func (s *BadgerStore) readMeta() (snapshotMeta, bool, error) {
	var meta snapshotMeta
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		return snapshotMeta{}, false, fmt.Errorf("read meta: %w", err)
	}
	return meta, found, nil
}

// Save writes g as the current snapshot. The snapshot that was live
// when Save was called survives any failure; it is dropped only after
// the new one is fully committed.
func (s *BadgerStore) Save(g *graph.Store) error {
	meta, found, err := s.readMeta()
	if err != nil {
		return fmt.Errorf("storage: save snapshot: %w", err)
	}
	gen := byte(0)
	if found {
		gen = 1 - meta.Generation
	}

	// Clear rows left behind by an interrupted save into this
	// generation.
	if err := s.db.DropPrefix(rowPrefixes(gen)...); err != nil {
		return fmt.Errorf("storage: clear standby generation: %w", err)
	}

	// WriteBatch, not one Update: a single transaction is capped at a
	// fraction of the memtable and cannot hold a full-size graph.
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range g.Nodes {
		data, err := json.Marshal(&g.Nodes[i])
		if err != nil {
			return fmt.Errorf("storage: marshal node %s: %w", g.Nodes[i].ID, err)
		}
		if err := wb.Set(nodeKey(gen, g.Nodes[i].ID), data); err != nil {
			return fmt.Errorf("storage: write node %s: %w", g.Nodes[i].ID, err)
		}
	}
	for i := range g.Edges {
		data, err := json.Marshal(&g.Edges[i])
		if err != nil {
			return fmt.Errorf("storage: marshal edge %d: %w", i, err)
		}
		if err := wb.Set(edgeKey(gen, uint32(i)), data); err != nil {
			return fmt.Errorf("storage: write edge %d: %w", i, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("storage: flush snapshot rows: %w", err)
	}

	// The flip: one small transaction makes the new generation live.
	newMeta, err := json.Marshal(snapshotMeta{
		Generation: gen,
		Nonce:      g.Nonce,
		NodeCount:  g.NodeCount,
		EdgeCount:  g.EdgeCount,
	})
	if err != nil {
		return fmt.Errorf("storage: marshal meta: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey, newMeta)
	})
	if err != nil {
		return fmt.Errorf("storage: commit snapshot meta: %w", err)
	}

	// Retired rows are garbage now; a failure here only leaves them
	// for the next save targeting that generation to clear.
	if found {
		if err := s.db.DropPrefix(rowPrefixes(meta.Generation)...); err != nil {
			s.log.WithError(err).Warn("retired snapshot cleanup failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"nodes":      len(g.Nodes),
		"edges":      len(g.Edges),
		"generation": gen,
	}).Debug("snapshot saved")
	return nil
}

// Load reads the live snapshot. A database with no meta row yields a
// fresh empty store.
func (s *BadgerStore) Load() (*graph.Store, error) {
	g := graph.NewStore()

	meta, found, err := s.readMeta()
	if err != nil {
		return nil, fmt.Errorf("storage: load snapshot: %w", err)
	}
	if !found {
		s.log.Info("no snapshot found, starting empty")
		return g, nil
	}

	g.Nonce = meta.Nonce
	g.NodeCount = meta.NodeCount
	g.EdgeCount = meta.EdgeCount

	err = s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = []byte{prefixNode, meta.Generation}
		it := txn.NewIterator(itOpts)
		for it.Rewind(); it.Valid(); it.Next() {
			var node graph.Node
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &node)
			}); err != nil {
				it.Close()
				return fmt.Errorf("unmarshal node: %w", err)
			}
			g.Nodes = append(g.Nodes, node)
		}
		it.Close()

		itOpts = badger.DefaultIteratorOptions
		itOpts.Prefix = []byte{prefixEdge, meta.Generation}
		it = txn.NewIterator(itOpts)
		for it.Rewind(); it.Valid(); it.Next() {
			var edge graph.Edge
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			}); err != nil {
				it.Close()
				return fmt.Errorf("unmarshal edge: %w", err)
			}
			g.Edges = append(g.Edges, edge)
		}
		it.Close()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: load snapshot: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"nodes":      len(g.Nodes),
		"edges":      len(g.Edges),
		"generation": meta.Generation,
	}).Info("snapshot loaded")
	return g, nil
}
