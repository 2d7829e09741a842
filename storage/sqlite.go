package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/Felmond13/novusgraph/logger"
)

const kvTable = "kv"

// SQLite est un datastore adossé à une table kv(k BLOB PRIMARY KEY, v BLOB).
// Les requêtes sont construites avec squirrel.
type SQLite struct {
	db  *sql.DB
	sq  squirrel.StatementBuilderType
	log *slog.Logger
}

// OpenSQLite ouvre (ou crée) une base SQLite. dsn peut être un chemin de
// fichier ou ":memory:".
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// Une base :memory: n'existe que dans sa connexion : une seule
	// transaction à la fois.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kv (k BLOB PRIMARY KEY, v BLOB NOT NULL) WITHOUT ROWID`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create kv table: %w", err)
	}
	return &SQLite{
		db:  db,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		log: logger.Get(),
	}, nil
}

// Transaction ouvre une transaction SQL.
func (s *SQLite) Transaction(ctx context.Context, write, lock bool) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: begin: %w", err)
	}
	return &sqliteTx{tx: tx, sq: s.sq, write: write}, nil
}

// Close ferme la base.
func (s *SQLite) Close() error { return s.db.Close() }

type sqliteTx struct {
	mu    sync.Mutex
	tx    *sql.Tx
	sq    squirrel.StatementBuilderType
	write bool
	done  bool
}

func (t *sqliteTx) check(write bool) error {
	if t.done {
		return ErrTxFinished
	}
	if write && !t.write {
		return ErrTxReadonly
	}
	return nil
}

func (t *sqliteTx) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *sqliteTx) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxFinished
	}
	t.done = true
	return t.tx.Rollback()
}

func (t *sqliteTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(true); err != nil {
		return err
	}
	t.done = true
	return t.tx.Commit()
}

func (t *sqliteTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(false); err != nil {
		return nil, err
	}
	q, args, err := t.sq.Select("v").From(kvTable).Where(squirrel.Eq{"k": key}).ToSql()
	if err != nil {
		return nil, err
	}
	var v []byte
	err = t.tx.QueryRowContext(ctx, q, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get: %w", err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (t *sqliteTx) Set(ctx context.Context, key, val []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(true); err != nil {
		return err
	}
	q, args, err := t.sq.Insert(kvTable).Columns("k", "v").Values(key, nonNil(val)).
		Suffix("ON CONFLICT(k) DO UPDATE SET v = excluded.v").ToSql()
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("storage: set: %w", err)
	}
	return nil
}

func (t *sqliteTx) Put(ctx context.Context, key, val []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(true); err != nil {
		return err
	}
	q, args, err := t.sq.Insert(kvTable).Columns("k", "v").Values(key, nonNil(val)).
		Suffix("ON CONFLICT(k) DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("storage: put: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrKeyExists, key)
	}
	return nil
}

func (t *sqliteTx) Del(ctx context.Context, key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(true); err != nil {
		return err
	}
	q, args, err := t.sq.Delete(kvTable).Where(squirrel.Eq{"k": key}).ToSql()
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("storage: del: %w", err)
	}
	return nil
}

func (t *sqliteTx) Exi(ctx context.Context, key []byte) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(false); err != nil {
		return false, err
	}
	q, args, err := t.sq.Select("1").From(kvTable).Where(squirrel.Eq{"k": key}).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = t.tx.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: exi: %w", err)
	}
	return true, nil
}

func (t *sqliteTx) Scan(ctx context.Context, beg, end []byte, limit uint32) ([]KV, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(false); err != nil {
		return nil, err
	}
	sel := t.sq.Select("k", "v").From(kvTable).
		Where(squirrel.And{squirrel.GtOrEq{"k": beg}, squirrel.Lt{"k": end}}).
		OrderBy("k")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	q, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: scan: %w", err)
	}
	defer rows.Close()
	var out []KV
	for rows.Next() {
		var kv KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("storage: scan: %w", err)
		}
		out = append(out, kv)
	}
	return out, rows.Err()
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
