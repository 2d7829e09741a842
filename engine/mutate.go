package engine

import (
	"context"
	"fmt"

	"github.com/Felmond13/novusgraph/sql"
)

var (
	ridPath = sql.Idiom{sql.Field("id")}
	mtbPath = sql.Idiom{sql.Field("meta"), sql.Field("tb")}
	midPath = sql.Idiom{sql.Field("meta"), sql.Field("id")}
)

// Increment applique += au chemin path.
//
//	nombre  += nombre  → somme
//	tableau += tableau → union
//	tableau += valeur  → ajout si absente
//	absent  += nombre  → 0 + nombre
//	absent  += tableau → tableau
//	absent  += valeur  → [valeur]
func Increment(ctx context.Context, opt Options, txn *Transaction, v sql.Value, path sql.Idiom, val sql.Value) (sql.Value, error) {
	cur, err := Get(ctx, opt, txn, v, path)
	if err != nil {
		return nil, err
	}
	switch c := cur.(type) {
	case sql.Number:
		if n, ok := val.(sql.Number); ok {
			return Set(ctx, opt, txn, v, path, c.Add(n))
		}
		return v, nil
	case sql.Array:
		out := append(sql.Array{}, c...)
		if add, ok := val.(sql.Array); ok {
			for _, x := range add {
				out = appendUnique(out, x)
			}
		} else {
			out = appendUnique(out, val)
		}
		return Set(ctx, opt, txn, v, path, out)
	case sql.Constant:
		if c != sql.None {
			return v, nil
		}
		switch n := val.(type) {
		case sql.Number:
			return Set(ctx, opt, txn, v, path, sql.NewInt(0).Add(n))
		case sql.Array:
			return Set(ctx, opt, txn, v, path, append(sql.Array{}, n...))
		}
		return Set(ctx, opt, txn, v, path, sql.Array{val})
	}
	return v, nil
}

func appendUnique(a sql.Array, x sql.Value) sql.Array {
	for _, e := range a {
		if sql.Same(e, x) {
			return a
		}
	}
	return append(a, x)
}

// Decrement applique -= au chemin path.
//
//	nombre  -= nombre  → différence
//	tableau -= tableau → retire tous les éléments présents dans le second
//	tableau -= valeur  → retire la première occurrence
//	absent  -= nombre  → 0 - nombre
func Decrement(ctx context.Context, opt Options, txn *Transaction, v sql.Value, path sql.Idiom, val sql.Value) (sql.Value, error) {
	cur, err := Get(ctx, opt, txn, v, path)
	if err != nil {
		return nil, err
	}
	switch c := cur.(type) {
	case sql.Number:
		if n, ok := val.(sql.Number); ok {
			return Set(ctx, opt, txn, v, path, c.Sub(n))
		}
		return v, nil
	case sql.Array:
		var out sql.Array
		if rm, ok := val.(sql.Array); ok {
			out = make(sql.Array, 0, len(c))
			for _, e := range c {
				if !containsSame(rm, e) {
					out = append(out, e)
				}
			}
		} else {
			out = append(sql.Array{}, c...)
			for i, e := range out {
				if sql.Same(e, val) {
					out = append(out[:i], out[i+1:]...)
					break
				}
			}
		}
		return Set(ctx, opt, txn, v, path, out)
	case sql.Constant:
		if n, ok := val.(sql.Number); ok && c == sql.None {
			return Set(ctx, opt, txn, v, path, sql.NewInt(0).Sub(n))
		}
	}
	return v, nil
}

func containsSame(a sql.Array, x sql.Value) bool {
	for _, e := range a {
		if sql.Same(e, x) {
			return true
		}
	}
	return false
}

// Def replace l'identifiant et les métadonnées du record, qu'aucune
// donnée utilisateur ne peut écraser.
func Def(ctx context.Context, opt Options, txn *Transaction, v sql.Value, id sql.Thing) (sql.Value, error) {
	v, err := Set(ctx, opt, txn, v, ridPath, id)
	if err != nil {
		return nil, err
	}
	if v, err = Set(ctx, opt, txn, v, mtbPath, sql.Strand(id.TB)); err != nil {
		return nil, err
	}
	return Set(ctx, opt, txn, v, midPath, sql.Strand(id.ID))
}

// MergeObject fusionne superficiellement obj dans v. Une valeur Void
// supprime le champ.
func MergeObject(v sql.Value, obj sql.Value) (sql.Value, error) {
	o, ok := obj.(sql.Object)
	if !ok {
		return v, nil
	}
	base, ok := v.(sql.Object)
	if !ok {
		base = sql.Object{}
	}
	for k, x := range o {
		if x == sql.Void {
			delete(base, k)
			continue
		}
		base[k] = sql.Clone(x)
	}
	return base, nil
}

// Replace remplace entièrement v par un objet. Une valeur non objet est
// ignorée.
func Replace(v sql.Value, with sql.Value) (sql.Value, error) {
	if o, ok := with.(sql.Object); ok {
		return sql.Clone(o), nil
	}
	return v, nil
}

// Patch applique une liste d'opérations JSON Patch (add, remove, replace,
// change) produite par sql.Diff.
func Patch(ctx context.Context, opt Options, txn *Transaction, v sql.Value, ops sql.Value) (sql.Value, error) {
	list, ok := ops.(sql.Array)
	if !ok {
		return nil, fmt.Errorf("%w: expected an array of operations, got %s", ErrInvalidPatch, sql.Render(ops))
	}
	var err error
	for _, raw := range list {
		op, ok := raw.(sql.Object)
		if !ok {
			return nil, fmt.Errorf("%w: operation %s is not an object", ErrInvalidPatch, sql.Render(raw))
		}
		ptr, ok := op["path"].(sql.Strand)
		if !ok {
			return nil, fmt.Errorf("%w: operation %s has no path", ErrInvalidPatch, sql.Render(raw))
		}
		path := sql.PointerToIdiom(string(ptr))
		switch sql.AsString(op["op"]) {
		case "add":
			v, err = patchAdd(ctx, opt, txn, v, path, op["value"])
		case "remove":
			v, err = Del(ctx, opt, txn, v, path)
		case "replace", "change":
			v, err = Set(ctx, opt, txn, v, path, op["value"])
		default:
			return nil, fmt.Errorf("%w: unknown operation %s", ErrInvalidPatch, sql.Render(op["op"]))
		}
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// patchAdd insère dans un tableau quand le dernier segment est un index
// ("-" désigne la fin), et affecte sinon.
func patchAdd(ctx context.Context, opt Options, txn *Transaction, v sql.Value, path sql.Idiom, val sql.Value) (sql.Value, error) {
	if len(path) == 0 {
		return val, nil
	}
	tail := path[len(path)-1]
	if tail.Kind != sql.PartLast && tail.Kind != sql.PartIndex && tail.Kind != sql.PartFirst {
		return Set(ctx, opt, txn, v, path, val)
	}
	parent := path[:len(path)-1]
	cur, err := Get(ctx, opt, txn, v, parent)
	if err != nil {
		return nil, err
	}
	arr, ok := cur.(sql.Array)
	if !ok {
		return Set(ctx, opt, txn, v, path, val)
	}
	pos := len(arr)
	switch tail.Kind {
	case sql.PartFirst:
		pos = 0
	case sql.PartIndex:
		if tail.Index >= 0 && tail.Index < int64(len(arr)) {
			pos = int(tail.Index)
		}
	}
	out := make(sql.Array, 0, len(arr)+1)
	out = append(out, arr[:pos]...)
	out = append(out, val)
	out = append(out, arr[pos:]...)
	return Set(ctx, opt, txn, v, parent, out)
}
