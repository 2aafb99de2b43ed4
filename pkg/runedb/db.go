// Package runedb provides the main API for embedded RuneDB usage.
//
// A DB owns an in-memory graph, an optional Badger-backed snapshot, and
// the write authorizer. Queries go through the full pipeline: tokenize,
// parse, compile, execute. Mutating queries are authorized first and
// persisted after they succeed.
//
// Example Usage:
//
//	cfg := config.Default()
//	db, err := runedb.Open("./data", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	result, err := db.Execute(ctx, runedb.Request{
//		Text: "MATCH (n:User) RETURN n LIMIT 10",
//	})
package runedb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/runedb/runedb/pkg/auth"
	"github.com/runedb/runedb/pkg/config"
	"github.com/runedb/runedb/pkg/cypher"
	"github.com/runedb/runedb/pkg/graph"
	"github.com/runedb/runedb/pkg/storage"
	"github.com/runedb/runedb/pkg/vm"
)

// Errors surfaced by the facade. Parse and execution errors from the
// inner packages pass through unwrapped.
var (
	ErrClosed         = errors.New("runedb: database is closed")
	ErrQueryTooLong   = errors.New("runedb: query text exceeds the configured limit")
	ErrProgramTooLong = errors.New("runedb: compiled program exceeds the opcode limit")
	ErrLabelTooLong   = errors.New("runedb: label exceeds the configured limit")
	ErrDataTooLarge   = errors.New("runedb: node payload exceeds the configured limit")
	ErrGraphFull      = errors.New("runedb: graph capacity reached")
	ErrNodeNotFound   = errors.New("runedb: node not found")

	// ErrUnauthorized is auth.ErrUnauthorized, re-exported so callers
	// only need this package.
	ErrUnauthorized = auth.ErrUnauthorized
)

// Request is one query submission.
type Request struct {
	// Text is the query source.
	Text string
	// Token authorizes mutations in token auth mode. Ignored for
	// reads.
	Token string
}

// DB is an embedded RuneDB instance. All methods are safe for
// concurrent use; execution is serialized on an internal mutex.
type DB struct {
	mu         sync.Mutex
	graph      *graph.Store
	snapshots  *storage.BadgerStore
	authorizer auth.Authorizer
	limits     config.LimitsConfig
	log        *logrus.Entry
	closed     bool
}

// Open loads (or creates) a database under dataDir. An empty dataDir
// runs fully in memory with no persistence.
func Open(dataDir string, cfg config.Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	authorizer, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		return nil, err
	}

	log := logrus.WithField("component", "runedb")

	var snapshots *storage.BadgerStore
	g := graph.NewStore()
	if dataDir != "" {
		snapshots, err = storage.Open(storage.Options{DataDir: dataDir})
		if err != nil {
			return nil, err
		}
		g, err = snapshots.Load()
		if err != nil {
			snapshots.Close()
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"nodes":   g.NodeCount,
		"edges":   g.EdgeCount,
		"dataDir": dataDir,
	}).Info("database opened")

	return &DB{
		graph:      g,
		snapshots:  snapshots,
		authorizer: authorizer,
		limits:     cfg.Limits,
		log:        log,
	}, nil
}

// Close persists the current graph and releases the snapshot store.
// Closing an in-memory database just marks it closed.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	if db.snapshots == nil {
		return nil
	}
	if err := db.snapshots.Save(db.graph); err != nil {
		db.snapshots.Close()
		return err
	}
	return db.snapshots.Close()
}

// Execute runs one query through the pipeline and returns its result.
func (db *DB) Execute(ctx context.Context, req Request) (*vm.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Text) > db.limits.MaxQueryLen {
		return nil, fmt.Errorf("%w: %d bytes (max %d)",
			ErrQueryTooLong, len(req.Text), db.limits.MaxQueryLen)
	}

	queryID := uuid.NewString()
	log := db.log.WithField("query_id", queryID)
	start := time.Now()

	q, err := cypher.Parse(req.Text)
	if err != nil {
		log.WithError(err).Debug("parse failed")
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}

	mutation := false
	if create, ok := q.(cypher.CreateQuery); ok {
		mutation = true
		if err := db.authorizer.AuthorizeWrite(req.Token); err != nil {
			log.Warn("write rejected")
			return nil, err
		}
		if err := db.checkCreateLimits(create); err != nil {
			return nil, err
		}
	}

	program, err := cypher.Compile(q)
	if err != nil {
		return nil, err
	}
	if len(program) > db.limits.MaxOpcodes {
		return nil, fmt.Errorf("%w: %d opcodes (max %d)",
			ErrProgramTooLong, len(program), db.limits.MaxOpcodes)
	}

	result, err := vm.New(db.graph).Execute(program)
	if err != nil {
		log.WithError(err).Debug("execution failed")
		return nil, err
	}

	if mutation && db.snapshots != nil {
		if err := db.snapshots.Save(db.graph); err != nil {
			// The in-memory graph already holds the mutation; surface
			// the persistence failure rather than hiding it.
			log.WithError(err).Error("snapshot save failed")
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"mutation": mutation,
		"opcodes":  len(program),
		"duration": time.Since(start),
	}).Debug("query executed")
	return result, nil
}

// checkCreateLimits enforces label, payload, and capacity ceilings on a
// mutation before it compiles.
func (db *DB) checkCreateLimits(q cypher.CreateQuery) error {
	switch pattern := q.Pattern.(type) {
	case cypher.CreateNodePattern:
		if len(pattern.Label) > db.limits.MaxLabelLen {
			return fmt.Errorf("%w: %d bytes (max %d)",
				ErrLabelTooLong, len(pattern.Label), db.limits.MaxLabelLen)
		}
		if pattern.HasData && len(pattern.Data) > db.limits.MaxDataLen {
			return fmt.Errorf("%w: %d bytes (max %d)",
				ErrDataTooLarge, len(pattern.Data), db.limits.MaxDataLen)
		}
		if db.graph.NodeCount >= db.limits.MaxNodes {
			return fmt.Errorf("%w: %d nodes", ErrGraphFull, db.graph.NodeCount)
		}

	case cypher.CreateEdgePattern:
		if len(pattern.Edge.Label) > db.limits.MaxLabelLen {
			return fmt.Errorf("%w: %d bytes (max %d)",
				ErrLabelTooLong, len(pattern.Edge.Label), db.limits.MaxLabelLen)
		}
		if db.graph.EdgeCount >= db.limits.MaxEdges {
			return fmt.Errorf("%w: %d edges", ErrGraphFull, db.graph.EdgeCount)
		}
	}
	return nil
}

// NodeInfo returns the node with the given id.
func (db *DB) NodeInfo(id graph.ID) (graph.Node, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return graph.Node{}, ErrClosed
	}
	node := db.graph.NodeByID(id)
	if node == nil {
		return graph.Node{}, fmt.Errorf("%w: id %s", ErrNodeNotFound, id)
	}
	db.log.WithFields(logrus.Fields{
		"node_id":  node.ID,
		"label":    node.Label,
		"outgoing": len(node.Outgoing),
	}).Info("node info")
	return *node, nil
}

// Stats reports graph counters.
type Stats struct {
	NodeCount uint64
	EdgeCount uint64
	NextID    graph.ID
}

// Stats returns the current graph counters.
func (db *DB) Stats() Stats {
	db.mu.Lock()
	defer db.mu.Unlock()
	return Stats{
		NodeCount: db.graph.NodeCount,
		EdgeCount: db.graph.EdgeCount,
		NextID:    db.graph.Nonce,
	}
}
