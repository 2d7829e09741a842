package engine

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/Felmond13/novusgraph/key"
	"github.com/Felmond13/novusgraph/sql"
	"github.com/Felmond13/novusgraph/storage"
)

// Transaction partage une transaction du magasin entre l'exécuteur,
// l'itérateur et ses producteurs parallèles. Chaque opération prend le
// verrou le temps d'une étape logique.
type Transaction struct {
	mu sync.Mutex
	tx storage.Transaction
}

// NewTransaction enveloppe une transaction du magasin.
func NewTransaction(tx storage.Transaction) *Transaction {
	return &Transaction{tx: tx}
}

// Closed indique si la transaction a été validée ou annulée.
func (t *Transaction) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Closed()
}

// Commit valide la transaction.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Commit()
}

// Cancel annule la transaction.
func (t *Transaction) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Cancel()
}

func (t *Transaction) Get(ctx context.Context, k []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Get(ctx, k)
}

func (t *Transaction) Set(ctx context.Context, k, v []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Set(ctx, k, v)
}

func (t *Transaction) Put(ctx context.Context, k, v []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Put(ctx, k, v)
}

func (t *Transaction) Del(ctx context.Context, k []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Del(ctx, k)
}

func (t *Transaction) Exi(ctx context.Context, k []byte) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Exi(ctx, k)
}

func (t *Transaction) Scan(ctx context.Context, r key.Range, limit uint32) ([]storage.KV, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx.Scan(ctx, r.Beg, r.End, limit)
}

// ---------- Records ----------

// GetRecord lit un record ; None s'il n'existe pas.
func (t *Transaction) GetRecord(ctx context.Context, ns, db string, id sql.Thing) (sql.Value, error) {
	raw, err := t.Get(ctx, key.Thing(ns, db, id.TB, id.ID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return sql.None, nil
	}
	return sql.Decode(raw)
}

// PutRecord écrit un record.
func (t *Transaction) PutRecord(ctx context.Context, ns, db string, id sql.Thing, v sql.Value) error {
	raw, err := sql.Encode(v)
	if err != nil {
		return err
	}
	return t.Set(ctx, key.Thing(ns, db, id.TB, id.ID), raw)
}

// DelRecord supprime un record.
func (t *Transaction) DelRecord(ctx context.Context, ns, db string, id sql.Thing) error {
	return t.Del(ctx, key.Thing(ns, db, id.TB, id.ID))
}

// ---------- Catalogue ----------

func encodeDef(def sql.Statement) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&def); err != nil {
		return nil, fmt.Errorf("engine: encode definition: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeDef(raw []byte) (sql.Statement, error) {
	var def sql.Statement
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&def); err != nil {
		return nil, fmt.Errorf("engine: decode definition: %w", err)
	}
	return def, nil
}

func getDef[T sql.Statement](ctx context.Context, t *Transaction, k []byte, missing error, name string) (T, error) {
	var zero T
	raw, err := t.Get(ctx, k)
	if err != nil {
		return zero, err
	}
	if raw == nil {
		return zero, fmt.Errorf("%w: %s", missing, name)
	}
	def, err := decodeDef(raw)
	if err != nil {
		return zero, err
	}
	out, ok := def.(T)
	if !ok {
		return zero, fmt.Errorf("engine: unexpected definition %T under %q", def, k)
	}
	return out, nil
}

func allDefs[T sql.Statement](ctx context.Context, t *Transaction, r key.Range) ([]T, error) {
	kvs, err := t.Scan(ctx, r, 0)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(kvs))
	for _, kv := range kvs {
		def, err := decodeDef(kv.Value)
		if err != nil {
			return nil, err
		}
		if d, ok := def.(T); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// PutDefinition enregistre une définition sous sa clé de catalogue.
func (t *Transaction) PutDefinition(ctx context.Context, ns, db string, def sql.Statement) error {
	var k []byte
	switch d := def.(type) {
	case *sql.DefineNamespaceStatement:
		k = key.NS(d.Name)
	case *sql.DefineDatabaseStatement:
		k = key.DB(ns, d.Name)
	case *sql.DefineTableStatement:
		k = key.TB(ns, db, d.Name)
	case *sql.DefineFieldStatement:
		k = key.FD(ns, db, d.Table, d.Name.String())
	case *sql.DefineEventStatement:
		k = key.EV(ns, db, d.Table, d.Name)
	case *sql.DefineIndexStatement:
		k = key.IX(ns, db, d.Table, d.Name)
	default:
		return fmt.Errorf("engine: %T is not a definition", def)
	}
	raw, err := encodeDef(def)
	if err != nil {
		return err
	}
	return t.Set(ctx, k, raw)
}

func (t *Transaction) GetNS(ctx context.Context, ns string) (*sql.DefineNamespaceStatement, error) {
	return getDef[*sql.DefineNamespaceStatement](ctx, t, key.NS(ns), ErrNsNotFound, ns)
}

func (t *Transaction) GetDB(ctx context.Context, ns, db string) (*sql.DefineDatabaseStatement, error) {
	return getDef[*sql.DefineDatabaseStatement](ctx, t, key.DB(ns, db), ErrDbNotFound, db)
}

func (t *Transaction) GetTB(ctx context.Context, ns, db, tb string) (*sql.DefineTableStatement, error) {
	return getDef[*sql.DefineTableStatement](ctx, t, key.TB(ns, db, tb), ErrTbNotFound, tb)
}

// AddNS retourne la définition du namespace en la créant au besoin.
func (t *Transaction) AddNS(ctx context.Context, ns string) (*sql.DefineNamespaceStatement, error) {
	def, err := t.GetNS(ctx, ns)
	if err == nil {
		return def, nil
	}
	def = &sql.DefineNamespaceStatement{Name: ns}
	return def, t.PutDefinition(ctx, ns, "", def)
}

// AddDB retourne la définition de la base, créée avec son namespace au besoin.
func (t *Transaction) AddDB(ctx context.Context, ns, db string) (*sql.DefineDatabaseStatement, error) {
	def, err := t.GetDB(ctx, ns, db)
	if err == nil {
		return def, nil
	}
	if _, err := t.AddNS(ctx, ns); err != nil {
		return nil, err
	}
	def = &sql.DefineDatabaseStatement{Name: db}
	return def, t.PutDefinition(ctx, ns, db, def)
}

// AddTB retourne la définition de la table, créée avec son namespace et
// sa base au besoin.
func (t *Transaction) AddTB(ctx context.Context, ns, db, tb string) (*sql.DefineTableStatement, error) {
	def, err := t.GetTB(ctx, ns, db, tb)
	if err == nil {
		return def, nil
	}
	if _, err := t.AddDB(ctx, ns, db); err != nil {
		return nil, err
	}
	def = &sql.DefineTableStatement{Name: tb}
	return def, t.PutDefinition(ctx, ns, db, def)
}

func (t *Transaction) AllNS(ctx context.Context) ([]*sql.DefineNamespaceStatement, error) {
	return allDefs[*sql.DefineNamespaceStatement](ctx, t, key.NSRange())
}

func (t *Transaction) AllDB(ctx context.Context, ns string) ([]*sql.DefineDatabaseStatement, error) {
	return allDefs[*sql.DefineDatabaseStatement](ctx, t, key.DBRange(ns))
}

func (t *Transaction) AllTB(ctx context.Context, ns, db string) ([]*sql.DefineTableStatement, error) {
	return allDefs[*sql.DefineTableStatement](ctx, t, key.TBRange(ns, db))
}

func (t *Transaction) AllFD(ctx context.Context, ns, db, tb string) ([]*sql.DefineFieldStatement, error) {
	return allDefs[*sql.DefineFieldStatement](ctx, t, key.FDRange(ns, db, tb))
}

func (t *Transaction) AllEV(ctx context.Context, ns, db, tb string) ([]*sql.DefineEventStatement, error) {
	return allDefs[*sql.DefineEventStatement](ctx, t, key.EVRange(ns, db, tb))
}

func (t *Transaction) AllIX(ctx context.Context, ns, db, tb string) ([]*sql.DefineIndexStatement, error) {
	return allDefs[*sql.DefineIndexStatement](ctx, t, key.IXRange(ns, db, tb))
}

// DelTB supprime une table : sa définition, ses définitions internes et
// tous ses records.
func (t *Transaction) DelTB(ctx context.Context, ns, db, tb string) error {
	if err := t.Del(ctx, key.TB(ns, db, tb)); err != nil {
		return err
	}
	kvs, err := t.Scan(ctx, key.TableRange(ns, db, tb), 0)
	if err != nil {
		return err
	}
	for _, kv := range kvs {
		if err := t.Del(ctx, kv.Key); err != nil {
			return err
		}
	}
	return nil
}
