// Package api fournit le point d'entrée de NovusGraph.
// C'est lui qui ouvre le datastore choisi par la configuration, crée les
// sessions et exécute scripts et listes d'instructions.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Felmond13/novusgraph/concurrency"
	"github.com/Felmond13/novusgraph/config"
	"github.com/Felmond13/novusgraph/engine"
	"github.com/Felmond13/novusgraph/logger"
	"github.com/Felmond13/novusgraph/script"
	"github.com/Felmond13/novusgraph/sql"
	"github.com/Felmond13/novusgraph/storage"
)

// DB représente une instance ouverte de NovusGraph.
type DB struct {
	ds  storage.Datastore
	cfg config.Config
	log *slog.Logger
}

// Open ouvre le datastore désigné par cfg.Store : "memory",
// "file:<chemin>" ou "sqlite:<dsn>".
func Open(ctx context.Context, cfg config.Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get()

	lockMgr := concurrency.NewLockManager(concurrency.ParsePolicy(cfg.LockPolicy))
	if cfg.LockTimeout > 0 {
		lockMgr.SetTimeout(cfg.LockTimeout)
	}
	opts := []storage.MemoryOption{storage.WithLockManager(lockMgr), storage.WithLogger(log)}

	var (
		ds  storage.Datastore
		err error
	)
	kind, target, _ := strings.Cut(cfg.Store, ":")
	switch strings.ToLower(kind) {
	case "", "memory", "mem":
		ds = storage.NewMemory(opts...)
	case "file":
		if target == "" {
			return nil, fmt.Errorf("NovusGraph: file store needs a path")
		}
		ds, err = storage.OpenFile(target, opts...)
	case "sqlite":
		if target == "" {
			return nil, fmt.Errorf("NovusGraph: sqlite store needs a dsn")
		}
		ds, err = storage.OpenSQLite(ctx, target)
	default:
		return nil, fmt.Errorf("NovusGraph: unknown store %q", cfg.Store)
	}
	if err != nil {
		return nil, fmt.Errorf("NovusGraph: %w", err)
	}
	log.Info("datastore opened", "store", cfg.Store)
	return &DB{ds: ds, cfg: cfg, log: log}, nil
}

// OpenMemory crée une base entièrement en mémoire avec la configuration
// par défaut.
func OpenMemory() *DB {
	cfg := config.Default()
	return &DB{
		ds:  storage.NewMemory(storage.WithLogger(logger.Get())),
		cfg: cfg,
		log: logger.Get(),
	}
}

// Close ferme le datastore.
func (db *DB) Close() error {
	return db.ds.Close()
}

// NewSession crée une session racine (niveau KV) positionnée sur ns et db.
func (db *DB) NewSession(ns, dbName string) *engine.Session {
	return &engine.Session{
		Auth: engine.AuthKv(),
		ID:   uuid.NewString(),
		NS:   ns,
		DB:   dbName,
	}
}

// Execute exécute une liste d'instructions dans la session. Les USE du
// lot sont reportés dans la session.
func (db *DB) Execute(ctx context.Context, s *engine.Session, stms []sql.Statement) ([]engine.Response, error) {
	opt := s.Options().
		WithMaxTasks(db.cfg.MaxConcurrentTasks).
		WithMaxDepth(db.cfg.MaxRecursiveQueries)
	ex := engine.NewExecutor(db.ds, engine.WithLogger(db.log.With("session", s.ID)))
	out, err := ex.Execute(s.Context(ctx), opt, stms)
	final := ex.Options()
	s.NS, s.DB = final.NS, final.DB
	if err != nil {
		return out, fmt.Errorf("NovusGraph: %w", err)
	}
	return out, nil
}

// Run décode un script YAML puis l'exécute.
func (db *DB) Run(ctx context.Context, s *engine.Session, text string) ([]engine.Response, error) {
	stms, err := script.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("NovusGraph: parse error: %w", err)
	}
	return db.Execute(ctx, s, stms)
}

// RunFile exécute le script contenu dans un fichier.
func (db *DB) RunFile(ctx context.Context, s *engine.Session, path string) ([]engine.Response, error) {
	stms, err := script.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("NovusGraph: parse error: %w", err)
	}
	return db.Execute(ctx, s, stms)
}
