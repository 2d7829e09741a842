package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Felmond13/novusgraph/config"
	"github.com/Felmond13/novusgraph/sql"
	"github.com/Felmond13/novusgraph/storage"
)

func intp(n int) *int { return &n }

func ints(ns ...int64) sql.Array {
	out := make(sql.Array, len(ns))
	for i, n := range ns {
		out[i] = sql.NewInt(n)
	}
	return out
}

// boom est une condition vraie pour les valeurs < 4, qui échoue sur un
// paramètre absent au-delà.
func boom() sql.Value {
	return sql.NewExpression(
		sql.NewExpression(sql.Idiom{}, sql.OpLessThan, sql.NewInt(4)),
		sql.OpOr,
		sql.Param("boom"),
	)
}

func TestLimitStartStopsEarly(t *testing.T) {
	ex := newTestExecutor(t)
	stm := selectAll(ints(1, 2, 3, 4, 5))
	stm.Cond = boom()
	stm.Limit, stm.Start = intp(2), intp(1)

	out := execute(t, ex, stm)
	// La 4e valeur n'est jamais évaluée : le parcours s'arrête à START+LIMIT
	same(t, result(t, out[0]), ints(2, 3))

	stm.Limit = nil
	out = execute(t, ex, stm)
	if !errors.Is(out[0].Err, ErrParamNotFound) {
		t.Errorf("without limit the 4th value should be evaluated, got %v", out[0].Err)
	}
}

func TestLimitStartOnTable(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.CreateStatement{What: []sql.Value{sql.Model{TB: "person", Count: 10}}},
		&sql.SelectStatement{Expr: sql.Fields{sql.AllFields()}, What: []sql.Value{sql.Table("person")}, Limit: intp(3), Start: intp(8)},
		&sql.SelectStatement{Expr: sql.Fields{sql.AllFields()}, What: []sql.Value{sql.Table("person")}, Start: intp(20)},
	)
	if n := len(rows(t, out[0])); n != 10 {
		t.Fatalf("expected 10 created records, got %d", n)
	}
	if n := len(rows(t, out[1])); n != 2 {
		t.Errorf("LIMIT 3 START 8 over 10 records: got %d", n)
	}
	if n := len(rows(t, out[2])); n != 0 {
		t.Errorf("START past the end: got %d", n)
	}
}

func TestSplit(t *testing.T) {
	ex := newTestExecutor(t)
	stm := selectAll(sql.Array{
		sql.Object{"a": ints(1, 2), "b": sql.Strand("x")},
		sql.Object{"a": sql.NewInt(3)},
	})
	stm.Split = []sql.Idiom{idiom("a")}
	got := rows(t, execute(t, ex, stm)[0])
	want := sql.Array{
		sql.Object{"a": sql.NewInt(1), "b": sql.Strand("x")},
		sql.Object{"a": sql.NewInt(2), "b": sql.Strand("x")},
		sql.Object{"a": sql.NewInt(3)},
	}
	same(t, got, want)
}

func TestOrderIsStable(t *testing.T) {
	ex := newTestExecutor(t)
	stm := selectAll(sql.Array{
		sql.Object{"n": sql.NewInt(2), "k": sql.Strand("a")},
		sql.Object{"n": sql.NewInt(1), "k": sql.Strand("c")},
		sql.Object{"n": sql.NewInt(2), "k": sql.Strand("b")},
	})
	stm.Order = []sql.Order{{Path: idiom("n"), Desc: true}}
	got := rows(t, execute(t, ex, stm)[0])
	var keys []string
	for _, r := range got {
		keys = append(keys, sql.AsString(r.(sql.Object)["k"]))
	}
	if s := strings.Join(keys, ","); s != "a,b,c" {
		t.Errorf("order = %s, want a,b,c", s)
	}
}

func TestParallelIteration(t *testing.T) {
	ex := newTestExecutor(t)
	execute(t, ex, &sql.CreateStatement{What: []sql.Value{sql.Model{TB: "person", Count: 5}}})

	stm := selectAll(sql.Table("person"), ints(1, 2, 3))
	stm.Parallel = true
	if n := len(rows(t, execute(t, ex, stm)[0])); n != 8 {
		t.Errorf("parallel select: expected 8 results, got %d", n)
	}

	// Une erreur d'un record interrompt l'instruction
	stm = selectAll(ints(1, 2), ints(5))
	stm.Parallel = true
	stm.Cond = boom()
	if err := execute(t, ex, stm)[0].Err; !errors.Is(err, ErrParamNotFound) {
		t.Errorf("expected ErrParamNotFound, got %v", err)
	}
}

// panicScan est un datastore dont les parcours de plage paniquent.
type panicScan struct{ storage.Datastore }

func (p panicScan) Transaction(ctx context.Context, write, lock bool) (storage.Transaction, error) {
	tx, err := p.Datastore.Transaction(ctx, write, lock)
	if err != nil {
		return nil, err
	}
	return panicScanTx{tx}, nil
}

type panicScanTx struct{ storage.Transaction }

func (panicScanTx) Scan(context.Context, []byte, []byte, uint32) ([]storage.KV, error) {
	panic("scan exploded")
}

func TestParallelTaskPanicFailsStatement(t *testing.T) {
	ds := storage.NewMemory()
	t.Cleanup(func() { ds.Close() })
	ex := NewExecutor(panicScan{ds})

	stm := selectAll(sql.Table("person"), ints(1, 2))
	stm.Parallel = true
	out := execute(t, ex, stm)
	if out[0].Err == nil || !strings.Contains(out[0].Err.Error(), "panicked") {
		t.Errorf("a panicking task should fail the statement, got %v / %s", out[0].Err, sql.Render(out[0].Result))
	}
}

func TestProducedIDs(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex, &sql.CreateStatement{What: []sql.Value{sql.Table("person")}})
	rec := rows(t, out[0])[0].(sql.Object)
	id, ok := rec["id"].(sql.Thing)
	if !ok || id.TB != "person" {
		t.Fatalf("unexpected id %s", sql.Render(rec["id"]))
	}
	if len(id.ID) != config.IDLength {
		t.Errorf("id length = %d, want %d", len(id.ID), config.IDLength)
	}
	if strings.Trim(id.ID, config.IDChars) != "" {
		t.Errorf("id %q uses characters outside the id alphabet", id.ID)
	}
}
