package engine

import (
	"context"

	"github.com/Felmond13/novusgraph/sql"
)

// ---------- Lecture ----------

// Get retourne la valeur située au chemin path dans v. Un segment absent
// donne None. Un identifiant de record suivi d'autres segments est résolu
// en lisant le record dans la transaction.
func Get(ctx context.Context, opt Options, txn *Transaction, v sql.Value, path sql.Idiom) (sql.Value, error) {
	if len(path) == 0 {
		if v == nil {
			return sql.None, nil
		}
		return v, nil
	}
	p, next := path[0], path.Next()
	switch x := v.(type) {
	case sql.Object:
		switch p.Kind {
		case sql.PartField:
			child, ok := x[p.Field]
			if !ok {
				return sql.None, nil
			}
			return Get(ctx, opt, txn, child, next)
		case sql.PartAll:
			return Get(ctx, opt, txn, x, next)
		}
		return sql.None, nil

	case sql.Array:
		switch p.Kind {
		case sql.PartAll:
			return mapArray(ctx, opt, txn, x, next)
		case sql.PartFirst:
			if len(x) == 0 {
				return sql.None, nil
			}
			return Get(ctx, opt, txn, x[0], next)
		case sql.PartLast:
			if len(x) == 0 {
				return sql.None, nil
			}
			return Get(ctx, opt, txn, x[len(x)-1], next)
		case sql.PartIndex:
			if p.Index < 0 || p.Index >= int64(len(x)) {
				return sql.None, nil
			}
			return Get(ctx, opt, txn, x[p.Index], next)
		case sql.PartWhere:
			var out sql.Array
			for _, e := range x {
				ok, err := matches(ctx, opt, txn, e, p.Cond)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, e)
				}
			}
			if out == nil {
				out = sql.Array{}
			}
			return Get(ctx, opt, txn, out, next)
		case sql.PartField:
			// Un champ sur un tableau s'applique à chaque élément
			return mapArray(ctx, opt, txn, x, path)
		}
		return sql.None, nil

	case sql.Thing:
		if p.Kind != sql.PartField || txn == nil || opt.NS == "" || opt.DB == "" {
			return sql.None, nil
		}
		rec, err := txn.GetRecord(ctx, opt.NS, opt.DB, x)
		if err != nil {
			return nil, err
		}
		return Get(ctx, opt, txn, rec, path)
	}
	return sql.None, nil
}

func mapArray(ctx context.Context, opt Options, txn *Transaction, a sql.Array, path sql.Idiom) (sql.Value, error) {
	out := make(sql.Array, len(a))
	for i, e := range a {
		v, err := Get(ctx, opt, txn, e, path)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// matches calcule une condition WHERE avec l'élément comme document.
func matches(ctx context.Context, opt Options, txn *Transaction, doc, cond sql.Value) (bool, error) {
	v, err := Compute(ctx, opt, txn, doc, cond)
	if err != nil {
		return false, err
	}
	return sql.Truthy(v), nil
}

// ---------- Écriture ----------

// Set place val au chemin path dans v et retourne la valeur résultante.
// Les objets et tableaux traversés sont modifiés en place ; les segments
// de champ manquants créent des objets.
func Set(ctx context.Context, opt Options, txn *Transaction, v sql.Value, path sql.Idiom, val sql.Value) (sql.Value, error) {
	if len(path) == 0 {
		return val, nil
	}
	p, next := path[0], path.Next()
	switch x := v.(type) {
	case sql.Object:
		switch p.Kind {
		case sql.PartField:
			child, ok := x[p.Field]
			if !ok {
				child = sql.None
			}
			nv, err := Set(ctx, opt, txn, child, next, val)
			if err != nil {
				return nil, err
			}
			x[p.Field] = nv
		case sql.PartAll:
			return Set(ctx, opt, txn, x, next, val)
		}
		return x, nil

	case sql.Array:
		apply := func(i int) error {
			nv, err := Set(ctx, opt, txn, x[i], next, val)
			if err != nil {
				return err
			}
			x[i] = nv
			return nil
		}
		switch p.Kind {
		case sql.PartAll:
			for i := range x {
				if err := apply(i); err != nil {
					return nil, err
				}
			}
		case sql.PartFirst:
			if len(x) > 0 {
				if err := apply(0); err != nil {
					return nil, err
				}
			}
		case sql.PartLast:
			if len(x) > 0 {
				if err := apply(len(x) - 1); err != nil {
					return nil, err
				}
			}
		case sql.PartIndex:
			if p.Index >= 0 && p.Index < int64(len(x)) {
				if err := apply(int(p.Index)); err != nil {
					return nil, err
				}
			}
		case sql.PartWhere:
			for i, e := range x {
				ok, err := matches(ctx, opt, txn, e, p.Cond)
				if err != nil {
					return nil, err
				}
				if ok {
					if err := apply(i); err != nil {
						return nil, err
					}
				}
			}
		case sql.PartField:
			for i := range x {
				nv, err := Set(ctx, opt, txn, x[i], path, val)
				if err != nil {
					return nil, err
				}
				x[i] = nv
			}
		}
		return x, nil
	}

	// Valeur scalaire ou absente : un champ crée un objet
	if p.Kind == sql.PartField {
		return Set(ctx, opt, txn, sql.Object{}, path, val)
	}
	return v, nil
}

// ---------- Suppression ----------

// Del supprime la valeur située au chemin path et retourne la valeur
// résultante.
func Del(ctx context.Context, opt Options, txn *Transaction, v sql.Value, path sql.Idiom) (sql.Value, error) {
	if len(path) == 0 {
		return v, nil
	}
	p, next := path[0], path.Next()
	last := len(next) == 0
	switch x := v.(type) {
	case sql.Object:
		if p.Kind != sql.PartField {
			return x, nil
		}
		if last {
			delete(x, p.Field)
			return x, nil
		}
		if child, ok := x[p.Field]; ok && !sql.IsNone(child) {
			nv, err := Del(ctx, opt, txn, child, next)
			if err != nil {
				return nil, err
			}
			x[p.Field] = nv
		}
		return x, nil

	case sql.Array:
		switch p.Kind {
		case sql.PartAll:
			if last {
				return sql.Array{}, nil
			}
			for i := range x {
				nv, err := Del(ctx, opt, txn, x[i], next)
				if err != nil {
					return nil, err
				}
				x[i] = nv
			}
		case sql.PartFirst:
			if len(x) == 0 {
				return x, nil
			}
			if last {
				return x[1:], nil
			}
			nv, err := Del(ctx, opt, txn, x[0], next)
			if err != nil {
				return nil, err
			}
			x[0] = nv
		case sql.PartLast:
			if len(x) == 0 {
				return x, nil
			}
			if last {
				return x[:len(x)-1], nil
			}
			nv, err := Del(ctx, opt, txn, x[len(x)-1], next)
			if err != nil {
				return nil, err
			}
			x[len(x)-1] = nv
		case sql.PartIndex:
			if p.Index < 0 || p.Index >= int64(len(x)) {
				return x, nil
			}
			if last {
				out := make(sql.Array, 0, len(x)-1)
				out = append(out, x[:p.Index]...)
				return append(out, x[p.Index+1:]...), nil
			}
			nv, err := Del(ctx, opt, txn, x[p.Index], next)
			if err != nil {
				return nil, err
			}
			x[p.Index] = nv
		case sql.PartWhere:
			out := make(sql.Array, 0, len(x))
			for _, e := range x {
				ok, err := matches(ctx, opt, txn, e, p.Cond)
				if err != nil {
					return nil, err
				}
				switch {
				case ok && last:
					continue
				case ok:
					if e, err = Del(ctx, opt, txn, e, next); err != nil {
						return nil, err
					}
				}
				out = append(out, e)
			}
			return out, nil
		case sql.PartField:
			for i := range x {
				nv, err := Del(ctx, opt, txn, x[i], path)
				if err != nil {
					return nil, err
				}
				x[i] = nv
			}
		}
		return x, nil
	}
	return v, nil
}
