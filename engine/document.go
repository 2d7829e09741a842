package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Felmond13/novusgraph/sql"
)

// extras porte les données propres à RELATE et INSERT, en plus du record
// chargé.
type extras struct {
	relate bool
	from   sql.Thing
	with   sql.Thing
	insert sql.Value // contenu inséré (nil hors INSERT)
}

// Document est l'état de travail d'un record pendant une instruction.
// initial n'est jamais modifié ; current est copié à la première mutation.
type Document struct {
	id      *sql.Thing
	ext     extras
	initial sql.Value
	current sql.Value
	owned   bool
}

// NewDocument crée un document dont initial et current partagent val.
func NewDocument(id *sql.Thing, val sql.Value) *Document {
	if val == nil {
		val = sql.None
	}
	return &Document{id: id, initial: val, current: val}
}

// ID retourne l'identifiant du record, nil pour une valeur hors table.
func (d *Document) ID() *sql.Thing { return d.id }

// Initial retourne la valeur du record avant l'instruction.
func (d *Document) Initial() sql.Value { return d.initial }

// Current retourne la valeur en cours de construction.
func (d *Document) Current() sql.Value { return d.current }

// Changed indique si current diffère de initial.
func (d *Document) Changed() bool { return !sql.Same(d.initial, d.current) }

// IsNew indique si le record n'existait pas.
func (d *Document) IsNew() bool { return sql.IsNone(d.initial) }

// mutate retourne la copie privée de current, créée au premier appel.
func (d *Document) mutate() sql.Value {
	if !d.owned {
		d.current = sql.Clone(d.current)
		d.owned = true
	}
	return d.current
}

// process exécute l'opération correspondant à l'instruction.
func (d *Document) process(ctx context.Context, opt Options, txn *Transaction, stm sql.Statement) (sql.Value, error) {
	switch s := stm.(type) {
	case *sql.SelectStatement:
		return d.selectOp(ctx, opt, txn, s)
	case *sql.CreateStatement:
		return d.createOp(ctx, opt, txn, s)
	case *sql.UpdateStatement:
		return d.updateOp(ctx, opt, txn, s)
	case *sql.RelateStatement:
		return d.relateOp(ctx, opt, txn, s)
	case *sql.DeleteStatement:
		return d.deleteOp(ctx, opt, txn, s)
	case *sql.InsertStatement:
		return d.insertOp(ctx, opt, txn, s)
	}
	return nil, fmt.Errorf("engine: %T can not be processed per record", stm)
}

// ---------- Opérations ----------

func (d *Document) selectOp(ctx context.Context, opt Options, txn *Transaction, s *sql.SelectStatement) (sql.Value, error) {
	if d.id != nil && sql.IsNone(d.current) {
		return nil, ErrIgnore
	}
	if err := d.check(ctx, opt, txn, s.Cond); err != nil {
		return nil, err
	}
	return d.pluck(ctx, opt, txn, s)
}

func (d *Document) createOp(ctx context.Context, opt Options, txn *Transaction, s *sql.CreateStatement) (sql.Value, error) {
	if d.id == nil {
		return nil, fmt.Errorf("%w: %s", ErrCreateStatement, sql.Render(d.current))
	}
	if !d.IsNew() {
		return nil, fmt.Errorf("%w: %s", ErrRecordExists, d.id)
	}
	tb, err := d.tb(ctx, opt, txn)
	if err != nil {
		return nil, err
	}
	if err := d.merge(ctx, opt, txn, s.Data); err != nil {
		return nil, err
	}
	return d.finish(ctx, opt, txn, tb, s)
}

func (d *Document) updateOp(ctx context.Context, opt Options, txn *Transaction, s *sql.UpdateStatement) (sql.Value, error) {
	if d.id == nil {
		return nil, fmt.Errorf("%w: %s", ErrUpdateStatement, sql.Render(d.current))
	}
	if err := d.check(ctx, opt, txn, s.Cond); err != nil {
		return nil, err
	}
	tb, err := d.tb(ctx, opt, txn)
	if err != nil {
		return nil, err
	}
	if err := d.merge(ctx, opt, txn, s.Data); err != nil {
		return nil, err
	}
	return d.finish(ctx, opt, txn, tb, s)
}

func (d *Document) relateOp(ctx context.Context, opt Options, txn *Transaction, s *sql.RelateStatement) (sql.Value, error) {
	if d.id == nil || !d.ext.relate {
		return nil, fmt.Errorf("%w: %s", ErrRelateStatement, sql.Render(d.current))
	}
	tb, err := d.tb(ctx, opt, txn)
	if err != nil {
		return nil, err
	}
	cur := d.mutate()
	if cur, err = Set(ctx, opt, txn, cur, sql.Idiom{sql.Field("in")}, d.ext.from); err != nil {
		return nil, err
	}
	if cur, err = Set(ctx, opt, txn, cur, sql.Idiom{sql.Field("out")}, d.ext.with); err != nil {
		return nil, err
	}
	d.current = cur
	if err := d.merge(ctx, opt, txn, s.Data); err != nil {
		return nil, err
	}
	return d.finish(ctx, opt, txn, tb, s)
}

func (d *Document) deleteOp(ctx context.Context, opt Options, txn *Transaction, s *sql.DeleteStatement) (sql.Value, error) {
	if d.id == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeleteStatement, sql.Render(d.current))
	}
	if sql.IsNone(d.current) {
		return nil, ErrIgnore
	}
	if err := d.check(ctx, opt, txn, s.Cond); err != nil {
		return nil, err
	}
	tb, err := d.tb(ctx, opt, txn)
	if err != nil {
		return nil, err
	}
	// Effacement puis suppression de la clé
	d.current, d.owned = sql.None, true
	if !tb.Drop {
		if err := txn.DelRecord(ctx, opt.NS, opt.DB, *d.id); err != nil {
			return nil, err
		}
	}
	if err := d.index(ctx, opt, txn); err != nil {
		return nil, err
	}
	if err := d.event(ctx, opt, txn); err != nil {
		return nil, err
	}
	return d.pluck(ctx, opt, txn, s)
}

func (d *Document) insertOp(ctx context.Context, opt Options, txn *Transaction, s *sql.InsertStatement) (sql.Value, error) {
	if d.id == nil || d.ext.insert == nil {
		return nil, fmt.Errorf("%w: %s", ErrInsertStatement, sql.Render(d.current))
	}
	tb, err := d.tb(ctx, opt, txn)
	if err != nil {
		return nil, err
	}
	switch {
	case d.IsNew():
		d.mutate()
		if d.current, err = Replace(d.current, d.ext.insert); err != nil {
			return nil, err
		}
	case len(s.Update) > 0:
		if err := d.assign(ctx, opt, txn, s.Update); err != nil {
			return nil, err
		}
	case s.Ignore:
		return nil, ErrIgnore
	default:
		return nil, fmt.Errorf("%w: %s", ErrRecordExists, d.id)
	}
	if d.current, err = Def(ctx, opt, txn, d.mutate(), *d.id); err != nil {
		return nil, err
	}
	return d.finish(ctx, opt, txn, tb, s)
}

// finish applique les champs et les index, enregistre, déclenche les
// événements puis met en forme la sortie.
func (d *Document) finish(ctx context.Context, opt Options, txn *Transaction, tb *sql.DefineTableStatement, stm sql.Statement) (sql.Value, error) {
	if err := d.field(ctx, opt, txn); err != nil {
		return nil, err
	}
	if err := d.index(ctx, opt, txn); err != nil {
		return nil, err
	}
	if err := d.store(ctx, opt, txn, tb); err != nil {
		return nil, err
	}
	if err := d.event(ctx, opt, txn); err != nil {
		return nil, err
	}
	return d.pluck(ctx, opt, txn, stm)
}

// ---------- Étapes ----------

// check retourne ErrIgnore si la condition WHERE n'est pas vérifiée.
func (d *Document) check(ctx context.Context, opt Options, txn *Transaction, cond sql.Value) error {
	if cond == nil {
		return nil
	}
	ok, err := matches(ctx, opt, txn, d.current, cond)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIgnore
	}
	return nil
}

// tb charge la définition de la table, et la crée implicitement si la
// session a les droits sur la base.
func (d *Document) tb(ctx context.Context, opt Options, txn *Transaction) (*sql.DefineTableStatement, error) {
	def, err := txn.GetTB(ctx, opt.NS, opt.DB, d.id.TB)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, ErrTbNotFound) || !opt.Auth.Check(LevelDb) {
		return nil, err
	}
	return txn.AddTB(ctx, opt.NS, opt.DB, d.id.TB)
}

// merge applique la clause de données, encadrée par les valeurs par défaut
// du record.
func (d *Document) merge(ctx context.Context, opt Options, txn *Transaction, data *sql.Data) error {
	var err error
	if d.current, err = Def(ctx, opt, txn, d.mutate(), *d.id); err != nil {
		return err
	}
	if data != nil {
		switch data.Kind {
		case sql.DataSet:
			if err := d.assign(ctx, opt, txn, data.Sets); err != nil {
				return err
			}
		case sql.DataPatch, sql.DataMerge, sql.DataReplace, sql.DataContent:
			v, err := Compute(ctx, opt, txn, d.current, data.Value)
			if err != nil {
				return err
			}
			v = sql.Clone(v)
			switch data.Kind {
			case sql.DataPatch:
				d.current, err = Patch(ctx, opt, txn, d.current, v)
			case sql.DataMerge:
				d.current, err = MergeObject(d.current, v)
			default:
				d.current, err = Replace(d.current, v)
			}
			if err != nil {
				return err
			}
		}
	}
	d.current, err = Def(ctx, opt, txn, d.current, *d.id)
	return err
}

// assign applique une liste d'affectations SET.
func (d *Document) assign(ctx context.Context, opt Options, txn *Transaction, sets []sql.Assignment) error {
	cur := d.mutate()
	for _, a := range sets {
		v, err := Compute(ctx, opt, txn, cur, a.Value)
		if err != nil {
			return err
		}
		// Une valeur calculée peut être partagée avec un paramètre ou
		// l'instruction : elle est copiée avant d'entrer dans le record.
		v = sql.Clone(v)
		switch a.Op {
		case sql.OpInc:
			cur, err = Increment(ctx, opt, txn, cur, a.Path, v)
		case sql.OpDec:
			cur, err = Decrement(ctx, opt, txn, cur, a.Path, v)
		default:
			if v == sql.Void {
				cur, err = Del(ctx, opt, txn, cur, a.Path)
			} else {
				cur, err = Set(ctx, opt, txn, cur, a.Path, v)
			}
		}
		if err != nil {
			return err
		}
	}
	d.current = cur
	return nil
}

// field applique les clauses VALUE et ASSERT des champs définis.
func (d *Document) field(ctx context.Context, opt Options, txn *Transaction) error {
	if !opt.Fields {
		return nil
	}
	fds, err := txn.AllFD(ctx, opt.NS, opt.DB, d.id.TB)
	if err != nil {
		return err
	}
	for _, fd := range fds {
		val, err := Get(ctx, opt, txn, d.current, fd.Name)
		if err != nil {
			return err
		}
		if fd.Value != nil {
			nv, err := Compute(WithParam(ctx, "value", val), opt, txn, d.current, fd.Value)
			if err != nil {
				return err
			}
			if !sql.Same(nv, val) {
				cur := d.mutate()
				if sql.IsNone(nv) {
					cur, err = Del(ctx, opt, txn, cur, fd.Name)
				} else {
					cur, err = Set(ctx, opt, txn, cur, fd.Name, sql.Clone(nv))
				}
				if err != nil {
					return err
				}
				d.current = cur
			}
			val = nv
		}
		if fd.Assert != nil {
			ok, err := Compute(WithParam(ctx, "value", val), opt, txn, d.current, fd.Assert)
			if err != nil {
				return err
			}
			if !sql.Truthy(ok) {
				return fmt.Errorf("%w: %s = %s on %s", ErrFieldValue, fd.Name, sql.Render(val), d.id)
			}
		}
	}
	return nil
}

// store enregistre le record s'il a changé (ou si force est actif) et si
// la table n'est pas une vue.
func (d *Document) store(ctx context.Context, opt Options, txn *Transaction, tb *sql.DefineTableStatement) error {
	if !opt.Force && !d.Changed() {
		return nil
	}
	if tb.Drop {
		return nil
	}
	return txn.PutRecord(ctx, opt.NS, opt.DB, *d.id, d.current)
}

// event déclenche les DEFINE EVENT de la table quand le record a changé.
func (d *Document) event(ctx context.Context, opt Options, txn *Transaction) error {
	if !opt.Events || !d.Changed() {
		return nil
	}
	evs, err := txn.AllEV(ctx, opt.NS, opt.DB, d.id.TB)
	if err != nil || len(evs) == 0 {
		return err
	}
	kind := "UPDATE"
	switch {
	case d.IsNew():
		kind = "CREATE"
	case sql.IsNone(d.current):
		kind = "DELETE"
	}
	ectx := WithParam(ctx, "event", sql.Strand(kind))
	ectx = WithParam(ectx, "before", d.initial)
	ectx = WithParam(ectx, "after", d.current)
	ectx = WithParam(ectx, "this", d.current)
	for _, ev := range evs {
		ok, err := Compute(ectx, opt, txn, d.current, ev.When)
		if err != nil {
			return err
		}
		if !sql.Truthy(ok) {
			continue
		}
		for _, then := range ev.Then {
			if _, err := Compute(ectx, opt, txn, d.current, then); err != nil {
				return fmt.Errorf("event %s on %s: %w", ev.Name, ev.Table, err)
			}
		}
	}
	return nil
}

// pluck met en forme la sortie du record selon la clause RETURN, ou à
// défaut selon l'instruction.
func (d *Document) pluck(ctx context.Context, opt Options, txn *Transaction, stm sql.Statement) (sql.Value, error) {
	opt = opt.WithFutures(true)
	if out := outputOf(stm); out != nil {
		switch out.Kind {
		case sql.OutputNone:
			return nil, ErrIgnore
		case sql.OutputNull:
			return sql.Null, nil
		case sql.OutputDiff:
			return sql.Diff(d.initial, d.current), nil
		case sql.OutputAfter:
			return Compute(ctx, opt, txn, d.current, d.current)
		case sql.OutputBefore:
			return Compute(ctx, opt, txn, d.initial, d.initial)
		}
		return d.project(ctx, opt, txn, out.Fields, false)
	}
	switch s := stm.(type) {
	case *sql.SelectStatement:
		return d.project(ctx, opt, txn, s.Expr, len(s.Group) > 0)
	case *sql.DeleteStatement:
		return nil, ErrIgnore
	}
	return Compute(ctx, opt, txn, d.current, d.current)
}

// project calcule une liste de champs. Avec GROUP, une fonction
// d'agrégation est remplacée par son premier argument.
func (d *Document) project(ctx context.Context, opt Options, txn *Transaction, fields sql.Fields, grouped bool) (sql.Value, error) {
	var out sql.Value = sql.Object{}
	if fields.HasAll() {
		v, err := Compute(ctx, opt, txn, d.current, d.current)
		if err != nil {
			return nil, err
		}
		out = sql.Clone(v)
	}
	for _, f := range fields {
		if f.All {
			continue
		}
		expr := f.Expr
		if fc, ok := expr.(sql.Function); ok && grouped && fc.IsAggregate() && len(fc.Args) > 0 {
			expr = fc.Args[0]
		}
		x, err := Compute(ctx, opt, txn, d.current, expr)
		if err != nil {
			return nil, err
		}
		path := f.Alias
		if path == nil {
			path = sql.ToIdiom(f.Expr)
		}
		if out, err = Set(ctx, opt, txn, out, path, sql.Clone(x)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func outputOf(stm sql.Statement) *sql.Output {
	switch s := stm.(type) {
	case *sql.CreateStatement:
		return s.Output
	case *sql.UpdateStatement:
		return s.Output
	case *sql.RelateStatement:
		return s.Output
	case *sql.DeleteStatement:
		return s.Output
	case *sql.InsertStatement:
		return s.Output
	}
	return nil
}
