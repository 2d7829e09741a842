package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Felmond13/novusgraph/sql"
)

// helper : un document de test
func testDoc() sql.Object {
	return sql.Object{
		"name":    sql.Strand("oracle"),
		"retry":   sql.NewInt(5),
		"enabled": sql.Bool(true),
		"tags":    sql.Array{sql.Strand("a"), sql.Strand("b")},
		"params":  sql.Object{"timeout": sql.NewInt(30)},
		"items": sql.Array{
			sql.Object{"n": sql.NewInt(1)},
			sql.Object{"n": sql.NewInt(2)},
			sql.Object{"n": sql.NewInt(3)},
		},
	}
}

func testOptions() Options {
	return NewOptions(AuthKv()).WithNS("test").WithDB("test")
}

// same compare deux valeurs avec sql.Same et affiche un diff lisible.
func same(t *testing.T, got, want sql.Value) {
	t.Helper()
	if !sql.Same(got, want) {
		t.Errorf("unexpected value (-want +got):\n%s", cmp.Diff(sql.Render(want), sql.Render(got)))
	}
}

func compute(t *testing.T, ctx context.Context, doc, v sql.Value) sql.Value {
	t.Helper()
	out, err := Compute(ctx, testOptions(), nil, doc, v)
	if err != nil {
		t.Fatalf("compute %s: %v", sql.Render(v), err)
	}
	return out
}

// ---------- Évaluation ----------

func TestComputeLiteralIdentity(t *testing.T) {
	for _, v := range []sql.Value{
		sql.None, sql.Null, sql.Bool(false), sql.NewInt(42), sql.Strand("x"),
		sql.Thing{TB: "person", ID: "tobie"}, testDoc(),
	} {
		// Ni transaction ni document : un littéral n'en a pas besoin
		same(t, compute(t, context.Background(), nil, v), v)
	}
}

func TestComputeParam(t *testing.T) {
	ctx := WithParam(context.Background(), "x", sql.NewInt(2))
	got := compute(t, ctx, nil, sql.NewExpression(sql.Param("x"), sql.OpMul, sql.NewInt(21)))
	same(t, got, sql.NewInt(42))

	_, err := Compute(context.Background(), testOptions(), nil, nil, sql.Param("missing"))
	if !errors.Is(err, ErrParamNotFound) {
		t.Fatalf("expected ErrParamNotFound, got %v", err)
	}
}

func TestComputeIdiom(t *testing.T) {
	doc := testDoc()
	ctx := context.Background()
	same(t, compute(t, ctx, doc, sql.ParseIdiom("params.timeout")), sql.NewInt(30))
	same(t, compute(t, ctx, doc, sql.ParseIdiom("tags[$]")), sql.Strand("b"))
	same(t, compute(t, ctx, doc, sql.ParseIdiom("items.n")), sql.Array{sql.NewInt(1), sql.NewInt(2), sql.NewInt(3)})
	same(t, compute(t, ctx, doc, sql.ParseIdiom("missing.field")), sql.None)
	// Sans document, un chemin vaut None
	same(t, compute(t, ctx, nil, sql.ParseIdiom("name")), sql.None)
}

func TestComputeWhere(t *testing.T) {
	path := sql.Idiom{sql.Field("items"), sql.Where(sql.NewExpression(sql.ParseIdiom("n"), sql.OpMoreThan, sql.NewInt(1))), sql.Field("n")}
	same(t, compute(t, context.Background(), testDoc(), path), sql.Array{sql.NewInt(2), sql.NewInt(3)})
}

func TestComputeShortCircuit(t *testing.T) {
	ctx := context.Background()
	// Le membre droit n'est pas évalué : le paramètre absent ne lève rien
	or := sql.NewExpression(sql.Bool(true), sql.OpOr, sql.Param("missing"))
	same(t, compute(t, ctx, nil, or), sql.Bool(true))
	and := sql.NewExpression(sql.Bool(false), sql.OpAnd, sql.Param("missing"))
	same(t, compute(t, ctx, nil, and), sql.Bool(false))
}

func TestComputeFunctions(t *testing.T) {
	ctx := context.Background()
	nums := sql.Array{sql.NewInt(1), sql.NewInt(2), sql.NewInt(3)}
	tests := []struct {
		fn   sql.Function
		want sql.Value
	}{
		{sql.NewFunction("math::sum", nums), sql.NewInt(6)},
		{sql.NewFunction("math::max", nums), sql.NewInt(3)},
		{sql.NewFunction("math::min", nums), sql.NewInt(1)},
		{sql.NewFunction("array::len", nums), sql.NewInt(3)},
		{sql.NewFunction("array::distinct", sql.Array{sql.NewInt(1), sql.NewInt(1)}), sql.Array{sql.NewInt(1)}},
		{sql.NewFunction("string::uppercase", sql.Strand("abc")), sql.Strand("ABC")},
		{sql.NewFunction("string::length", sql.Strand("été")), sql.NewInt(3)},
		{sql.NewFunction("count"), sql.NewInt(1)},
		{sql.NewFunction("type::thing", sql.Strand("person"), sql.Strand("tobie")), sql.Thing{TB: "person", ID: "tobie"}},
	}
	for _, tt := range tests {
		same(t, compute(t, ctx, nil, tt.fn), tt.want)
	}

	if _, err := Compute(ctx, testOptions(), nil, nil, sql.NewFunction("nope::nope")); !errors.Is(err, ErrInvalidFunction) {
		t.Errorf("expected ErrInvalidFunction, got %v", err)
	}
	if _, err := Compute(ctx, testOptions(), nil, nil, sql.NewFunction("array::len")); !errors.Is(err, ErrInvalidArguments) {
		t.Errorf("expected ErrInvalidArguments, got %v", err)
	}
	s := compute(t, ctx, nil, sql.NewFunction("rand::string", sql.NewInt(12)))
	if n := len(sql.AsString(s)); n != 12 {
		t.Errorf("rand::string(12) length = %d", n)
	}
}

func TestComputeFuture(t *testing.T) {
	fut := sql.NewFuture(sql.NewExpression(sql.NewInt(1), sql.OpAdd, sql.NewInt(1)))
	out, err := Compute(context.Background(), testOptions().WithFutures(false), nil, nil, fut)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.(sql.Function); !ok {
		t.Fatalf("future should stay unevaluated, got %s", sql.Render(out))
	}
	out, err = Compute(context.Background(), testOptions().WithFutures(true), nil, nil, fut)
	if err != nil {
		t.Fatal(err)
	}
	same(t, out, sql.NewInt(2))
}

func TestComputeDiveLimit(t *testing.T) {
	var v sql.Value = sql.NewInt(1)
	for i := 0; i < 3; i++ {
		v = sql.Subquery{Stmt: &sql.OutputStatement{What: v}}
	}
	opt := testOptions().WithMaxDepth(2)
	if _, err := Compute(context.Background(), opt, nil, nil, v); !errors.Is(err, ErrTooManySubqueries) {
		t.Fatalf("expected ErrTooManySubqueries, got %v", err)
	}
	opt = testOptions().WithMaxDepth(3)
	out, err := Compute(context.Background(), opt, nil, nil, v)
	if err != nil {
		t.Fatalf("depth 3 should pass: %v", err)
	}
	same(t, out, sql.NewInt(1))
}

func TestComputeSubqueryParent(t *testing.T) {
	sub := sql.Subquery{Stmt: &sql.OutputStatement{What: sql.Param("parent")}}
	doc := testDoc()
	same(t, compute(t, context.Background(), doc, sub), doc)
}

// ---------- Chemins ----------

func TestPathSetAndDel(t *testing.T) {
	ctx, opt := context.Background(), testOptions()
	v, err := Set(ctx, opt, nil, sql.Object{}, sql.ParseIdiom("a.b.c"), sql.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	same(t, v, sql.Object{"a": sql.Object{"b": sql.Object{"c": sql.NewInt(1)}}})

	v, err = Set(ctx, opt, nil, testDoc(), sql.ParseIdiom("items[*].n"), sql.NewInt(0))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := Get(ctx, opt, nil, v, sql.ParseIdiom("items.n"))
	same(t, got, sql.Array{sql.NewInt(0), sql.NewInt(0), sql.NewInt(0)})

	v, err = Del(ctx, opt, nil, testDoc(), sql.ParseIdiom("tags[0]"))
	if err != nil {
		t.Fatal(err)
	}
	got, _ = Get(ctx, opt, nil, v, sql.ParseIdiom("tags"))
	same(t, got, sql.Array{sql.Strand("b")})

	cond := sql.Where(sql.NewExpression(sql.ParseIdiom("n"), sql.OpEqual, sql.NewInt(2)))
	v, err = Del(ctx, opt, nil, testDoc(), sql.Idiom{sql.Field("items"), cond})
	if err != nil {
		t.Fatal(err)
	}
	got, _ = Get(ctx, opt, nil, v, sql.ParseIdiom("items.n"))
	same(t, got, sql.Array{sql.NewInt(1), sql.NewInt(3)})
}

// ---------- Mutations ----------

func TestIncrementDecrementIdempotence(t *testing.T) {
	ctx, opt := context.Background(), testOptions()
	retry := sql.ParseIdiom("retry")
	v, _ := Increment(ctx, opt, nil, testDoc(), retry, sql.NewInt(3))
	v, _ = Decrement(ctx, opt, nil, v, retry, sql.NewInt(3))
	got, _ := Get(ctx, opt, nil, v, retry)
	same(t, got, sql.NewInt(5))

	// Ajouter un élément déjà présent ne change rien
	tags := sql.ParseIdiom("tags")
	v, _ = Increment(ctx, opt, nil, testDoc(), tags, sql.Strand("a"))
	got, _ = Get(ctx, opt, nil, v, tags)
	same(t, got, sql.Array{sql.Strand("a"), sql.Strand("b")})

	v, _ = Increment(ctx, opt, nil, v, tags, sql.Array{sql.Strand("b"), sql.Strand("c")})
	got, _ = Get(ctx, opt, nil, v, tags)
	same(t, got, sql.Array{sql.Strand("a"), sql.Strand("b"), sql.Strand("c")})

	v, _ = Decrement(ctx, opt, nil, v, tags, sql.Array{sql.Strand("a"), sql.Strand("c")})
	got, _ = Get(ctx, opt, nil, v, tags)
	same(t, got, sql.Array{sql.Strand("b")})

	// Sur un champ absent
	v, _ = Increment(ctx, opt, nil, sql.Object{}, sql.ParseIdiom("n"), sql.NewInt(2))
	same(t, v, sql.Object{"n": sql.NewInt(2)})
	v, _ = Decrement(ctx, opt, nil, sql.Object{}, sql.ParseIdiom("n"), sql.NewInt(2))
	same(t, v, sql.Object{"n": sql.NewInt(-2)})
}

func TestPatch(t *testing.T) {
	ctx, opt := context.Background(), testOptions()
	before := testDoc()
	after := sql.Clone(before).(sql.Object)
	after["name"] = sql.Strand("mysql")
	delete(after, "enabled")
	after["tags"] = sql.Array{sql.Strand("a"), sql.Strand("b"), sql.Strand("c")}

	got, err := Patch(ctx, opt, nil, sql.Clone(before), sql.Diff(before, after))
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	same(t, got, after)

	if _, err := Patch(ctx, opt, nil, before, sql.Strand("nope")); !errors.Is(err, ErrInvalidPatch) {
		t.Errorf("expected ErrInvalidPatch, got %v", err)
	}
}

func TestMergeAndDef(t *testing.T) {
	ctx, opt := context.Background(), testOptions()
	v, _ := MergeObject(testDoc(), sql.Object{"name": sql.Void, "x": sql.NewInt(1)})
	o := v.(sql.Object)
	if _, ok := o["name"]; ok {
		t.Error("void should delete the field")
	}
	same(t, o["x"], sql.NewInt(1))

	id := sql.Thing{TB: "person", ID: "tobie"}
	v, err := Def(ctx, opt, nil, sql.Object{"id": sql.Strand("fake")}, id)
	if err != nil {
		t.Fatal(err)
	}
	same(t, v, sql.Object{
		"id":   id,
		"meta": sql.Object{"tb": sql.Strand("person"), "id": sql.Strand("tobie")},
	})
}
