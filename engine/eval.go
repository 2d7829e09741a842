package engine

import (
	"context"
	"fmt"

	"github.com/Felmond13/novusgraph/sql"
)

// Compute évalue récursivement une valeur contre un document (qui peut
// être nil), une transaction et un contexte. Une valeur littérale est
// retournée telle quelle, sans accès au contexte ni à la transaction.
func Compute(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, v sql.Value) (sql.Value, error) {
	if v == nil {
		return sql.None, nil
	}
	if sql.IsLiteral(v) {
		return v, nil
	}
	switch x := v.(type) {
	case sql.Param:
		val, ok := Param(ctx, string(x))
		if !ok {
			return nil, fmt.Errorf("%w: $%s", ErrParamNotFound, string(x))
		}
		return Compute(ctx, opt, txn, doc, val)

	case sql.Idiom:
		if doc == nil {
			return sql.None, nil
		}
		return Get(ctx, opt, txn, doc, x)

	case sql.Array:
		out := make(sql.Array, len(x))
		for i, e := range x {
			r, err := Compute(ctx, opt, txn, doc, e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil

	case sql.Object:
		out := make(sql.Object, len(x))
		for k, e := range x {
			r, err := Compute(ctx, opt, txn, doc, e)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil

	case sql.Function:
		return computeFunction(ctx, opt, txn, doc, x)

	case sql.Subquery:
		sub, err := opt.Dive()
		if err != nil {
			return nil, err
		}
		if doc != nil {
			ctx = WithParam(ctx, "parent", doc)
		}
		return computeStatement(ctx, sub, txn, doc, x.Stmt)

	case sql.Expression:
		return computeExpression(ctx, opt, txn, doc, x)
	}
	return v, nil
}

// computeExpression court-circuite OR et AND ; les autres opérateurs
// évaluent les deux opérandes avant de s'appliquer.
func computeExpression(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, e sql.Expression) (sql.Value, error) {
	l, err := Compute(ctx, opt, txn, doc, e.L)
	if err != nil {
		return nil, err
	}
	switch e.O {
	case sql.OpOr:
		if sql.Truthy(l) {
			return l, nil
		}
		return Compute(ctx, opt, txn, doc, e.R)
	case sql.OpAnd:
		if !sql.Truthy(l) {
			return l, nil
		}
		return Compute(ctx, opt, txn, doc, e.R)
	}
	r, err := Compute(ctx, opt, txn, doc, e.R)
	if err != nil {
		return nil, err
	}
	return sql.Operate(l, e.O, r), nil
}
