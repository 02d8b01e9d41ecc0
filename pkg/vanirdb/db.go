// Package vanirdb provides the embedded API for VanirDB: open a database,
// run Cypher, traverse, close.
//
// VanirDB is a labeled property graph over an ordered key-value store. The
// facade here wires the layers together — kv store, storage engine, Cypher
// executor — so applications embed one handle.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data/social"
//
//	db, err := vanirdb.Open(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	_, err = db.Execute(ctx,
//		"CREATE (a:Person {name: 'Alice'})-[:KNOWS]->(b:Person {name: 'Bob'})", nil)
//
//	result, err := db.Execute(ctx,
//		"MATCH (p:Person) RETURN p.name ORDER BY p.name", nil)
package vanirdb

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/orneryd/vanirdb/pkg/algo"
	"github.com/orneryd/vanirdb/pkg/config"
	"github.com/orneryd/vanirdb/pkg/cypher"
	"github.com/orneryd/vanirdb/pkg/kv"
	"github.com/orneryd/vanirdb/pkg/storage"
)

// DB is an open VanirDB database.
type DB struct {
	store    kv.Store
	engine   *storage.Engine
	executor *cypher.Executor
	log      zerolog.Logger
}

// Open opens (creating if needed) a database described by cfg.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	var store kv.Store
	if cfg.InMemory {
		store = kv.NewMemoryStore()
	} else {
		store, err = kv.OpenBadger(kv.BadgerOptions{
			DataDir:    cfg.DataDir,
			SyncWrites: cfg.SyncWrites,
		})
		if err != nil {
			return nil, err
		}
	}

	engine, err := storage.NewEngine(store, cfg.Graph)
	if err != nil {
		store.Close()
		return nil, err
	}
	engine.SetLogger(log)

	executor := cypher.NewExecutor(engine)
	executor.SetLogger(log)

	log.Info().
		Str("graph", cfg.Graph).
		Bool("in_memory", cfg.InMemory).
		Msg("database opened")

	return &DB{store: store, engine: engine, executor: executor, log: log}, nil
}

// Execute parses and runs one Cypher statement.
func (db *DB) Execute(ctx context.Context, query string, params map[string]any) (*cypher.Result, error) {
	return db.executor.Execute(ctx, query, params)
}

// Engine exposes the storage engine for direct reads and transactions.
func (db *DB) Engine() *storage.Engine {
	return db.engine
}

// ShortestPath finds a minimum-hop directed path between two vertices.
func (db *DB) ShortestPath(start, end storage.Graphid) (*storage.Path, int, error) {
	return algo.ShortestPath(db.engine, start, end)
}

// Expand enumerates directed paths from start under the given options.
func (db *DB) Expand(start storage.Graphid, opts algo.ExpandOptions) ([]*storage.Path, error) {
	return algo.VariableLengthExpand(db.engine, start, opts)
}

// DumpJSON writes the whole graph to w.
func (db *DB) DumpJSON(w io.Writer) error {
	return storage.DumpJSON(db.engine, w)
}

// LoadJSON replays a dump into the graph.
func (db *DB) LoadJSON(r io.Reader) error {
	return storage.LoadJSON(db.engine, r)
}

// Stats summarizes the graph.
func (db *DB) Stats() (storage.Stats, error) {
	return storage.CollectStats(db.engine)
}

// Close releases the database.
func (db *DB) Close() error {
	db.log.Info().Msg("database closing")
	return db.engine.Close()
}
