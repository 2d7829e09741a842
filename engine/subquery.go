package engine

import (
	"context"
	"fmt"

	"github.com/Felmond13/novusgraph/sql"
)

// computeStatement calcule une instruction de données ou de catalogue,
// dans une sous-requête comme au niveau du lot.
func computeStatement(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, stm sql.Statement) (sql.Value, error) {
	switch s := stm.(type) {
	case *sql.SelectStatement:
		return computeSelect(ctx, opt, txn, doc, s)
	case *sql.CreateStatement:
		return computeCreate(ctx, opt, txn, doc, s)
	case *sql.UpdateStatement:
		return computeUpdate(ctx, opt, txn, doc, s)
	case *sql.RelateStatement:
		return computeRelate(ctx, opt, txn, doc, s)
	case *sql.DeleteStatement:
		return computeDelete(ctx, opt, txn, doc, s)
	case *sql.InsertStatement:
		return computeInsert(ctx, opt, txn, doc, s)
	case *sql.OutputStatement:
		return Compute(ctx, opt, txn, doc, s.What)
	case *sql.SetStatement:
		return Compute(ctx, opt, txn, doc, s.What)
	case *sql.IfelseStatement:
		return computeIfelse(ctx, opt, txn, doc, s)
	case *sql.InfoStatement:
		return computeInfo(ctx, opt, txn, s)
	case *sql.DefineNamespaceStatement, *sql.DefineDatabaseStatement,
		*sql.DefineTableStatement, *sql.DefineFieldStatement,
		*sql.DefineEventStatement, *sql.DefineIndexStatement:
		return computeDefine(ctx, opt, txn, s)
	case *sql.RemoveTableStatement:
		if err := opt.Check(LevelDb); err != nil {
			return nil, err
		}
		if err := txn.DelTB(ctx, opt.NS, opt.DB, s.Name); err != nil {
			return nil, err
		}
		return sql.None, nil
	}
	return nil, fmt.Errorf("engine: unsupported statement %T", stm)
}

// ---------- Données ----------

func computeSelect(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, s *sql.SelectStatement) (sql.Value, error) {
	if err := opt.Check(LevelNo); err != nil {
		return nil, err
	}
	it := NewIterator(s)
	for _, w := range s.What {
		v, err := Compute(ctx, opt, txn, doc, w)
		if err != nil {
			return nil, err
		}
		it.Prepare(v)
	}
	return it.Output(ctx, opt, txn)
}

func computeCreate(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, s *sql.CreateStatement) (sql.Value, error) {
	if err := opt.Check(LevelNo); err != nil {
		return nil, err
	}
	opt = opt.WithFutures(false)
	it := NewIterator(s)
	var stage func(v sql.Value) error
	stage = func(v sql.Value) error {
		switch x := v.(type) {
		case sql.Table:
			return it.Produce(string(x))
		case sql.Thing, sql.Model:
			it.Prepare(x)
			return nil
		case sql.Array:
			for _, e := range x {
				if err := stage(e); err != nil {
					return err
				}
			}
			return nil
		}
		return fmt.Errorf("%w: can not create %s", ErrCreateStatement, sql.Render(v))
	}
	for _, w := range s.What {
		v, err := Compute(ctx, opt, txn, doc, w)
		if err != nil {
			return nil, err
		}
		if err := stage(v); err != nil {
			return nil, err
		}
	}
	return it.Output(ctx, opt, txn)
}

func computeUpdate(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, s *sql.UpdateStatement) (sql.Value, error) {
	if err := opt.Check(LevelNo); err != nil {
		return nil, err
	}
	opt = opt.WithFutures(false)
	it := NewIterator(s)
	for _, w := range s.What {
		v, err := Compute(ctx, opt, txn, doc, w)
		if err != nil {
			return nil, err
		}
		switch v.(type) {
		case sql.Table, sql.Thing, sql.Model, sql.Array:
			it.Prepare(v)
		default:
			return nil, fmt.Errorf("%w: can not update %s", ErrUpdateStatement, sql.Render(v))
		}
	}
	return it.Output(ctx, opt, txn)
}

func computeDelete(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, s *sql.DeleteStatement) (sql.Value, error) {
	if err := opt.Check(LevelNo); err != nil {
		return nil, err
	}
	opt = opt.WithFutures(false)
	it := NewIterator(s)
	for _, w := range s.What {
		v, err := Compute(ctx, opt, txn, doc, w)
		if err != nil {
			return nil, err
		}
		switch v.(type) {
		case sql.Table, sql.Thing, sql.Model, sql.Array:
			it.Prepare(v)
		default:
			return nil, fmt.Errorf("%w: can not delete %s", ErrDeleteStatement, sql.Render(v))
		}
	}
	return it.Output(ctx, opt, txn)
}

// computeRelate crée une arête de la table Kind pour chaque couple
// (from, with).
func computeRelate(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, s *sql.RelateStatement) (sql.Value, error) {
	if err := opt.Check(LevelNo); err != nil {
		return nil, err
	}
	opt = opt.WithFutures(false)
	from, err := relateEnds(ctx, opt, txn, doc, s.From)
	if err != nil {
		return nil, err
	}
	with, err := relateEnds(ctx, opt, txn, doc, s.With)
	if err != nil {
		return nil, err
	}
	it := NewIterator(s)
	for _, f := range from {
		for _, w := range with {
			id, err := newID()
			if err != nil {
				return nil, err
			}
			it.prepareRelate(sql.Thing{TB: s.Kind, ID: id}, f, w)
		}
	}
	return it.Output(ctx, opt, txn)
}

// relateEnds résout une extrémité de RELATE : un record, un objet portant
// un id, ou un tableau de ceux-ci.
func relateEnds(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, what []sql.Value) ([]sql.Thing, error) {
	var out []sql.Thing
	for _, w := range what {
		v, err := Compute(ctx, opt, txn, doc, w)
		if err != nil {
			return nil, err
		}
		switch x := v.(type) {
		case sql.Thing:
			out = append(out, x)
		case sql.Object:
			id, ok := x.Rid()
			if !ok {
				return nil, fmt.Errorf("%w: %s has no id", ErrRelateStatement, sql.Render(v))
			}
			out = append(out, id)
		case sql.Array:
			for _, e := range x {
				switch y := e.(type) {
				case sql.Thing:
					out = append(out, y)
				case sql.Object:
					id, ok := y.Rid()
					if !ok {
						return nil, fmt.Errorf("%w: %s has no id", ErrRelateStatement, sql.Render(e))
					}
					out = append(out, id)
				default:
					return nil, fmt.Errorf("%w: can not relate %s", ErrRelateStatement, sql.Render(e))
				}
			}
		default:
			return nil, fmt.Errorf("%w: can not relate %s", ErrRelateStatement, sql.Render(v))
		}
	}
	return out, nil
}

// computeInsert transforme la clause de données en objets puis en records
// de la table Into. Un objet sans id reçoit un identifiant généré.
func computeInsert(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, s *sql.InsertStatement) (sql.Value, error) {
	if err := opt.Check(LevelNo); err != nil {
		return nil, err
	}
	opt = opt.WithFutures(false)
	if s.Data == nil {
		return nil, fmt.Errorf("%w: no data", ErrInsertStatement)
	}
	var rows []sql.Object
	switch s.Data.Kind {
	case sql.DataSingle:
		v, err := Compute(ctx, opt, txn, doc, s.Data.Value)
		if err != nil {
			return nil, err
		}
		switch x := v.(type) {
		case sql.Object:
			rows = append(rows, x)
		case sql.Array:
			for _, e := range x {
				o, ok := e.(sql.Object)
				if !ok {
					return nil, fmt.Errorf("%w: can not insert %s", ErrInsertStatement, sql.Render(e))
				}
				rows = append(rows, o)
			}
		default:
			return nil, fmt.Errorf("%w: can not insert %s", ErrInsertStatement, sql.Render(v))
		}
	case sql.DataValues:
		for _, row := range s.Data.Rows {
			if len(row) != len(s.Data.Columns) {
				return nil, fmt.Errorf("%w: %d values for %d columns", ErrInsertStatement, len(row), len(s.Data.Columns))
			}
			var obj sql.Value = sql.Object{}
			for i, col := range s.Data.Columns {
				v, err := Compute(ctx, opt, txn, doc, row[i])
				if err != nil {
					return nil, err
				}
				if obj, err = Set(ctx, opt, txn, obj, col, v); err != nil {
					return nil, err
				}
			}
			rows = append(rows, obj.(sql.Object))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported data clause", ErrInsertStatement)
	}

	it := NewIterator(s)
	for _, obj := range rows {
		id, err := insertID(s.Into, obj)
		if err != nil {
			return nil, err
		}
		it.prepareInsert(id, obj)
	}
	return it.Output(ctx, opt, txn)
}

func insertID(tb string, obj sql.Object) (sql.Thing, error) {
	switch x := obj["id"].(type) {
	case sql.Thing:
		return x, nil
	case sql.Strand, sql.Number:
		return sql.Thing{TB: tb, ID: sql.AsString(x)}, nil
	case nil:
		id, err := newID()
		return sql.Thing{TB: tb, ID: id}, err
	}
	if sql.IsNull(obj["id"]) {
		id, err := newID()
		return sql.Thing{TB: tb, ID: id}, err
	}
	return sql.Thing{}, fmt.Errorf("%w: invalid id %s", ErrInsertStatement, sql.Render(obj["id"]))
}

// ---------- Contrôle ----------

func computeIfelse(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, s *sql.IfelseStatement) (sql.Value, error) {
	for _, e := range s.Exprs {
		cond, err := Compute(ctx, opt, txn, doc, e[0])
		if err != nil {
			return nil, err
		}
		if sql.Truthy(cond) {
			return Compute(ctx, opt, txn, doc, e[1])
		}
	}
	if s.Close != nil {
		return Compute(ctx, opt, txn, doc, s.Close)
	}
	return sql.None, nil
}

// ---------- Catalogue ----------

func computeInfo(ctx context.Context, opt Options, txn *Transaction, s *sql.InfoStatement) (sql.Value, error) {
	switch s.Level {
	case sql.InfoKV:
		if !opt.Auth.Check(LevelKv) {
			return nil, ErrQueryPermissions
		}
		nss, err := txn.AllNS(ctx)
		if err != nil {
			return nil, err
		}
		out := sql.Object{}
		for _, ns := range nss {
			out[ns.Name] = sql.Strand(ns.String())
		}
		return sql.Object{"ns": out}, nil

	case sql.InfoNS:
		if !opt.Auth.Check(LevelNs) {
			return nil, ErrQueryPermissions
		}
		if opt.NS == "" {
			return nil, ErrNsEmpty
		}
		dbs, err := txn.AllDB(ctx, opt.NS)
		if err != nil {
			return nil, err
		}
		out := sql.Object{}
		for _, db := range dbs {
			out[db.Name] = sql.Strand(db.String())
		}
		return sql.Object{"db": out}, nil

	case sql.InfoDB:
		if err := opt.Check(LevelDb); err != nil {
			return nil, err
		}
		tbs, err := txn.AllTB(ctx, opt.NS, opt.DB)
		if err != nil {
			return nil, err
		}
		out := sql.Object{}
		for _, tb := range tbs {
			out[tb.Name] = sql.Strand(tb.String())
		}
		return sql.Object{"tb": out}, nil
	}

	if err := opt.Check(LevelDb); err != nil {
		return nil, err
	}
	fds, err := txn.AllFD(ctx, opt.NS, opt.DB, s.Table)
	if err != nil {
		return nil, err
	}
	evs, err := txn.AllEV(ctx, opt.NS, opt.DB, s.Table)
	if err != nil {
		return nil, err
	}
	ixs, err := txn.AllIX(ctx, opt.NS, opt.DB, s.Table)
	if err != nil {
		return nil, err
	}
	fo, eo, io := sql.Object{}, sql.Object{}, sql.Object{}
	for _, fd := range fds {
		fo[fd.Name.String()] = sql.Strand(fd.String())
	}
	for _, ev := range evs {
		eo[ev.Name] = sql.Strand(ev.String())
	}
	for _, ix := range ixs {
		io[ix.Name] = sql.Strand(ix.String())
	}
	return sql.Object{"fd": fo, "ev": eo, "ix": io}, nil
}

// computeDefine enregistre une définition. Le niveau requis dépend de la
// portée : KV pour un namespace, NS pour une base, DB pour le reste.
func computeDefine(ctx context.Context, opt Options, txn *Transaction, def sql.Statement) (sql.Value, error) {
	switch d := def.(type) {
	case *sql.DefineNamespaceStatement:
		if !opt.Auth.Check(LevelKv) {
			return nil, ErrQueryPermissions
		}
	case *sql.DefineDatabaseStatement:
		if !opt.Auth.Check(LevelNs) {
			return nil, ErrQueryPermissions
		}
		if opt.NS == "" {
			return nil, ErrNsEmpty
		}
		if _, err := txn.AddNS(ctx, opt.NS); err != nil {
			return nil, err
		}
	case *sql.DefineTableStatement:
		if err := opt.Check(LevelDb); err != nil {
			return nil, err
		}
		if _, err := txn.AddDB(ctx, opt.NS, opt.DB); err != nil {
			return nil, err
		}
	case *sql.DefineFieldStatement:
		if err := defineOnTable(ctx, opt, txn, d.Table); err != nil {
			return nil, err
		}
	case *sql.DefineEventStatement:
		if err := defineOnTable(ctx, opt, txn, d.Table); err != nil {
			return nil, err
		}
	case *sql.DefineIndexStatement:
		if err := defineOnTable(ctx, opt, txn, d.Table); err != nil {
			return nil, err
		}
	}
	if err := txn.PutDefinition(ctx, opt.NS, opt.DB, def); err != nil {
		return nil, err
	}
	return sql.None, nil
}

func defineOnTable(ctx context.Context, opt Options, txn *Transaction, tb string) error {
	if err := opt.Check(LevelDb); err != nil {
		return err
	}
	_, err := txn.AddTB(ctx, opt.NS, opt.DB, tb)
	return err
}
