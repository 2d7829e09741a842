package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/Felmond13/novusgraph/sql"
)

const randChars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// computeFunction évalue les arguments de gauche à droite puis appelle la
// fonction. Un future n'est évalué que si opt.Futures est actif.
func computeFunction(ctx context.Context, opt Options, txn *Transaction, doc sql.Value, fc sql.Function) (sql.Value, error) {
	switch fc.Kind {
	case sql.FunctionFuture:
		if !opt.Futures {
			return fc, nil
		}
		if len(fc.Args) == 0 {
			return sql.None, nil
		}
		return Compute(ctx, opt, txn, doc, fc.Args[0])
	case sql.FunctionCast:
		if len(fc.Args) != 1 {
			return nil, fmt.Errorf("%w: <%s> expects one value", ErrInvalidArguments, fc.Name)
		}
		v, err := Compute(ctx, opt, txn, doc, fc.Args[0])
		if err != nil {
			return nil, err
		}
		return sql.Convert(v, fc.Name), nil
	}

	args := make([]sql.Value, len(fc.Args))
	for i, a := range fc.Args {
		v, err := Compute(ctx, opt, txn, doc, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return callFunction(fc.Name, args)
}

func callFunction(name string, args []sql.Value) (sql.Value, error) {
	switch name {
	case "count":
		switch len(args) {
		case 0:
			return sql.NewInt(1), nil
		case 1:
			if a, ok := args[0].(sql.Array); ok {
				var n int64
				for _, v := range a {
					if sql.Truthy(v) {
						n++
					}
				}
				return sql.NewInt(n), nil
			}
			if sql.Truthy(args[0]) {
				return sql.NewInt(1), nil
			}
			return sql.NewInt(0), nil
		}
		return nil, argCount(name, args, 1)

	// ---------- array ----------

	case "array::len":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		if a, ok := args[0].(sql.Array); ok {
			return sql.NewInt(int64(len(a))), nil
		}
		return sql.None, nil

	case "array::distinct":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		a, ok := args[0].(sql.Array)
		if !ok {
			return sql.None, nil
		}
		out := sql.Array{}
		for _, v := range a {
			out = appendUnique(out, v)
		}
		return out, nil

	case "array::concat":
		out := sql.Array{}
		for _, v := range args {
			if a, ok := v.(sql.Array); ok {
				out = append(out, a...)
			}
		}
		return out, nil

	// ---------- math ----------

	case "math::sum":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		return mathSum(args[0]), nil

	case "math::mean":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		a, ok := args[0].(sql.Array)
		if !ok || len(a) == 0 {
			return sql.None, nil
		}
		return sql.Div(mathSum(a), sql.NewInt(int64(len(a)))), nil

	case "math::max", "math::min":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		a, ok := args[0].(sql.Array)
		if !ok {
			return args[0], nil
		}
		var best sql.Value = sql.None
		for _, v := range a {
			if _, num := v.(sql.Number); !num {
				continue
			}
			c := sql.Compare(v, best)
			if best == sql.None || (name == "math::max" && c > 0) || (name == "math::min" && c < 0) {
				best = v
			}
		}
		return best, nil

	// ---------- string ----------

	case "string::lowercase":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		return sql.Strand(strings.ToLower(sql.AsString(args[0]))), nil

	case "string::uppercase":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		return sql.Strand(strings.ToUpper(sql.AsString(args[0]))), nil

	case "string::concat":
		var b strings.Builder
		for _, v := range args {
			if !sql.IsNull(v) {
				b.WriteString(sql.AsString(v))
			}
		}
		return sql.Strand(b.String()), nil

	case "string::length":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		return sql.NewInt(int64(utf8.RuneCountInString(sql.AsString(args[0])))), nil

	// ---------- time, rand ----------

	case "time::now":
		if err := checkArgs(name, args, 0); err != nil {
			return nil, err
		}
		return sql.NewDatetime(time.Now()), nil

	case "rand::uuid":
		if err := checkArgs(name, args, 0); err != nil {
			return nil, err
		}
		return sql.NewUuid(), nil

	case "rand::string":
		n := 32
		switch len(args) {
		case 0:
		case 1:
			n = int(sql.AsInt(args[0]))
		default:
			return nil, argCount(name, args, 1)
		}
		if n <= 0 {
			return sql.Strand(""), nil
		}
		s, err := gonanoid.Generate(randChars, n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return sql.Strand(s), nil

	// ---------- type ----------

	case "type::thing":
		if err := checkArgs(name, args, 2); err != nil {
			return nil, err
		}
		return sql.Thing{TB: sql.AsString(args[0]), ID: sql.AsString(args[1])}, nil

	case "type::table":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		return sql.Table(sql.AsString(args[0])), nil

	// ---------- search ----------

	// Sans exécuteur d'index plein texte, les fonctions de recherche ne
	// retournent rien.
	case "search::score", "search::offsets":
		if err := checkArgs(name, args, 1); err != nil {
			return nil, err
		}
		return sql.None, nil

	case "search::highlight":
		if err := checkArgs(name, args, 3); err != nil {
			return nil, err
		}
		return sql.None, nil
	}
	return nil, fmt.Errorf("%w: %s()", ErrInvalidFunction, name)
}

func mathSum(v sql.Value) sql.Value {
	a, ok := v.(sql.Array)
	if !ok {
		return sql.AsNumber(v)
	}
	var sum sql.Value = sql.NewInt(0)
	for _, x := range a {
		if n, ok := x.(sql.Number); ok {
			sum = sql.Add(sum, n)
		}
	}
	return sum
}

func checkArgs(name string, args []sql.Value, expected int) error {
	if len(args) != expected {
		return argCount(name, args, expected)
	}
	return nil
}

func argCount(name string, args []sql.Value, expected int) error {
	return fmt.Errorf("%w: %s() expects %d argument(s), got %d", ErrInvalidArguments, name, expected, len(args))
}
