package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Felmond13/novusgraph/key"
	"github.com/Felmond13/novusgraph/sql"
)

// ---------- Index des tables ----------

// index met à jour les entrées des DEFINE INDEX de la table : retire celles
// de l'état initial, ajoute celles de l'état courant. Un index UNIQUE
// refuse une valeur déjà indexée pour un autre record.
func (d *Document) index(ctx context.Context, opt Options, txn *Transaction) error {
	if !opt.Force && !d.Changed() {
		return nil
	}
	ixs, err := txn.AllIX(ctx, opt.NS, opt.DB, d.id.TB)
	if err != nil {
		return err
	}
	for _, ix := range ixs {
		old, err := indexValues(ctx, opt, txn, d.initial, ix)
		if err != nil {
			return err
		}
		cur, err := indexValues(ctx, opt, txn, d.current, ix)
		if err != nil {
			return err
		}
		if old != nil {
			if err := txn.Del(ctx, indexKey(opt, ix, old, *d.id)); err != nil {
				return err
			}
		}
		if cur == nil {
			continue
		}
		if ix.Uniq {
			if err := checkUnique(ctx, opt, txn, ix, cur, *d.id); err != nil {
				return err
			}
		}
		rid, err := sql.Encode(*d.id)
		if err != nil {
			return err
		}
		if err := txn.Set(ctx, indexKey(opt, ix, cur, *d.id), rid); err != nil {
			return err
		}
	}
	return nil
}

// indexValues retourne l'encodage des colonnes indexées, ou nil si elles
// sont toutes absentes ou nulles : un record sans valeur n'est pas indexé.
func indexValues(ctx context.Context, opt Options, txn *Transaction, v sql.Value, ix *sql.DefineIndexStatement) ([]byte, error) {
	if sql.IsNone(v) {
		return nil, nil
	}
	vals := make(sql.Array, len(ix.Cols))
	empty := true
	for i, col := range ix.Cols {
		x, err := Get(ctx, opt, nil, v, col)
		if err != nil {
			return nil, err
		}
		if !sql.IsNull(x) {
			empty = false
		}
		vals[i] = x
	}
	if empty {
		return nil, nil
	}
	return sql.Encode(vals)
}

// indexKey construit la clé d'une entrée. Un index non unique suffixe la
// clé par l'identifiant pour garder une entrée par record.
func indexKey(opt Options, ix *sql.DefineIndexStatement, vals []byte, id sql.Thing) []byte {
	k := key.Index(opt.NS, opt.DB, ix.Table, ix.Name, vals)
	if ix.Uniq {
		return k
	}
	return append(append(k, 0), id.ID...)
}

func checkUnique(ctx context.Context, opt Options, txn *Transaction, ix *sql.DefineIndexStatement, vals []byte, id sql.Thing) error {
	raw, err := txn.Get(ctx, key.Index(opt.NS, opt.DB, ix.Table, ix.Name, vals))
	if err != nil || raw == nil {
		return err
	}
	rid, err := sql.Encode(id)
	if err != nil {
		return err
	}
	if bytes.Equal(raw, rid) {
		return nil
	}
	owner, err := sql.Decode(raw)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: index %s on %s, record %s", ErrIndexExists, ix.Name, ix.Table, sql.Render(owner))
}
