package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Felmond13/novusgraph/sql"
	"github.com/Felmond13/novusgraph/storage"
)

// ---------- Helpers ----------

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	ds := storage.NewMemory()
	t.Cleanup(func() { ds.Close() })
	return NewExecutor(ds)
}

// execute exécute un lot avec les options de test et échoue sur une erreur
// de lot.
func execute(t *testing.T, ex *Executor, stms ...sql.Statement) []Response {
	t.Helper()
	out, err := ex.Execute(context.Background(), testOptions(), stms)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return out
}

// result retourne le résultat d'une réponse réussie.
func result(t *testing.T, r Response) sql.Value {
	t.Helper()
	v, err := r.Output()
	if err != nil {
		t.Fatalf("unexpected error response: %v", err)
	}
	return v
}

// rows retourne le résultat d'une réponse sous forme de tableau.
func rows(t *testing.T, r Response) sql.Array {
	t.Helper()
	a, ok := result(t, r).(sql.Array)
	if !ok {
		t.Fatalf("expected an array, got %s", sql.Render(r.Result))
	}
	return a
}

func thing(tb, id string) sql.Thing { return sql.Thing{TB: tb, ID: id} }

func idiom(s string) sql.Idiom { return sql.ParseIdiom(s) }

func set(path string, v sql.Value) sql.Assignment {
	return sql.Assignment{Path: idiom(path), Op: sql.OpEqual, Value: v}
}

func createWith(id sql.Thing, sets ...sql.Assignment) *sql.CreateStatement {
	return &sql.CreateStatement{What: []sql.Value{id}, Data: sql.Set(sets...)}
}

func selectAll(what ...sql.Value) *sql.SelectStatement {
	return &sql.SelectStatement{Expr: sql.Fields{sql.AllFields()}, What: what}
}

// ---------- Transactions implicites ----------

func TestExecuteImplicit(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		createWith(thing("person", "tobie"), set("name", sql.Strand("Tobie"))),
		selectAll(sql.Table("person")),
	)
	if len(out) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(out))
	}
	created := rows(t, out[0])
	if len(created) != 1 {
		t.Fatalf("expected 1 created record, got %d", len(created))
	}
	rec := created[0].(sql.Object)
	same(t, rec["id"], thing("person", "tobie"))
	same(t, rec["name"], sql.Strand("Tobie"))

	found := rows(t, out[1])
	if len(found) != 1 {
		t.Fatalf("expected 1 selected record, got %d", len(found))
	}
	same(t, found[0], rec)
}

func TestFailureDoesNotPoisonLaterImplicitStatements(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		createWith(thing("person", "a")),
		createWith(thing("person", "a")),
		&sql.OutputStatement{What: sql.NewInt(1)},
	)
	if len(out) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(out))
	}
	if !errors.Is(out[1].Err, ErrRecordExists) {
		t.Errorf("second create: expected ErrRecordExists, got %v", out[1].Err)
	}
	same(t, result(t, out[2]), sql.NewInt(1))
}

// ---------- Transactions explicites ----------

func TestExplicitCommitWithFailure(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.BeginStatement{},
		createWith(thing("person", "a")),
		createWith(thing("person", "a")),
		&sql.CommitStatement{},
		selectAll(sql.Table("person")),
	)
	if len(out) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(out))
	}
	if !errors.Is(out[0].Err, ErrQueryNotExecuted) {
		t.Errorf("first response should be rewritten to not executed, got %v", out[0].Err)
	}
	if !errors.Is(out[1].Err, ErrRecordExists) {
		t.Errorf("second response should keep its error, got %v", out[1].Err)
	}
	if got := rows(t, out[2]); len(got) != 0 {
		t.Errorf("failed block should not persist anything, got %s", sql.Render(got))
	}
}

func TestExplicitCommit(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.BeginStatement{},
		createWith(thing("person", "a")),
		createWith(thing("person", "b")),
		&sql.CommitStatement{},
		selectAll(sql.Table("person")),
	)
	if len(out) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(out))
	}
	for i := 0; i < 2; i++ {
		if out[i].Err != nil {
			t.Errorf("response %d: %v", i, out[i].Err)
		}
	}
	if got := rows(t, out[2]); len(got) != 2 {
		t.Errorf("expected 2 committed records, got %d", len(got))
	}
}

func TestExplicitCancel(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.BeginStatement{},
		createWith(thing("person", "a")),
		&sql.CancelStatement{},
		selectAll(sql.Table("person")),
	)
	if len(out) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(out))
	}
	if !errors.Is(out[0].Err, ErrQueryCancelled) {
		t.Errorf("expected ErrQueryCancelled, got %v", out[0].Err)
	}
	if got := rows(t, out[1]); len(got) != 0 {
		t.Errorf("cancelled block should not persist anything, got %s", sql.Render(got))
	}
}

func TestExplicitOutputClearsBuffer(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.BeginStatement{},
		createWith(thing("person", "a")),
		&sql.OutputStatement{What: sql.NewInt(2)},
		&sql.CommitStatement{},
	)
	if len(out) != 1 {
		t.Fatalf("expected only the RETURN response, got %d", len(out))
	}
	same(t, result(t, out[0]), sql.NewInt(2))
}

func TestUnterminatedTransactionIsCancelled(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.BeginStatement{},
		createWith(thing("person", "a")),
	)
	if len(out) != 1 || !errors.Is(out[0].Err, ErrQueryCancelled) {
		t.Fatalf("expected one cancelled response, got %+v", out)
	}
	out = execute(t, ex, selectAll(sql.Table("person")))
	if got := rows(t, out[0]); len(got) != 0 {
		t.Errorf("nothing should be persisted, got %s", sql.Render(got))
	}
}

// ---------- USE, LET, OPTION ----------

func TestUsePermission(t *testing.T) {
	ex := newTestExecutor(t)
	opt := NewOptions(AuthNs("bar"))
	_, err := ex.Execute(context.Background(), opt, []sql.Statement{&sql.UseStatement{NS: "foo"}})
	if !errors.Is(err, ErrNsNotAllowed) {
		t.Fatalf("expected ErrNsNotAllowed, got %v", err)
	}
	if ns := ex.Options().NS; ns != "" {
		t.Errorf("namespace should be cleared, got %q", ns)
	}

	out, err := ex.Execute(context.Background(), opt, []sql.Statement{&sql.UseStatement{NS: "bar", DB: "app"}})
	if err != nil {
		t.Fatalf("use bar: %v", err)
	}
	if len(out) != 1 || out[0].Err != nil {
		t.Fatalf("expected one successful response, got %+v", out)
	}
	if o := ex.Options(); o.NS != "bar" || o.DB != "app" {
		t.Errorf("options = %q/%q, want bar/app", o.NS, o.DB)
	}

	_, err = ex.Execute(context.Background(), NewOptions(AuthDb("bar", "app")), []sql.Statement{&sql.UseStatement{DB: "other"}})
	if !errors.Is(err, ErrDbNotAllowed) {
		t.Errorf("expected ErrDbNotAllowed, got %v", err)
	}
}

func TestLetThenReturn(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.SetStatement{Name: "x", What: sql.NewInt(41)},
		&sql.OutputStatement{What: sql.NewExpression(sql.Param("x"), sql.OpAdd, sql.NewInt(1))},
	)
	if len(out) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(out))
	}
	same(t, result(t, out[0]), sql.None)
	same(t, result(t, out[1]), sql.NewInt(42))
}

func TestLetBindingIsNeverModified(t *testing.T) {
	ex := newTestExecutor(t)
	obj := sql.Object{"n": sql.NewInt(1)}
	out := execute(t, ex,
		&sql.SetStatement{Name: "o", What: obj},
		&sql.SelectStatement{
			Expr: sql.Fields{sql.AllFields(), sql.Alias(sql.NewInt(2), idiom("extra"))},
			What: []sql.Value{sql.Param("o")},
		},
		createWith(thing("person", "a"), set("a", sql.Param("o")), set("a.b", sql.NewInt(9))),
		&sql.OutputStatement{What: sql.Param("o")},
	)
	if len(out) != 4 {
		t.Fatalf("expected 4 responses, got %d", len(out))
	}
	same(t, rows(t, out[1])[0], sql.Object{"n": sql.NewInt(1), "extra": sql.NewInt(2)})
	rec := rows(t, out[2])[0].(sql.Object)
	same(t, rec["a"], sql.Object{"n": sql.NewInt(1), "b": sql.NewInt(9)})

	// Ni la liaison ni le littéral de l'instruction ne sont modifiés
	same(t, result(t, out[3]), sql.Object{"n": sql.NewInt(1)})
	same(t, obj, sql.Object{"n": sql.NewInt(1)})
}

func TestLetFailureStopsBatch(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.OutputStatement{What: sql.NewInt(1)},
		&sql.SetStatement{Name: "x", What: sql.Param("missing")},
		&sql.OutputStatement{What: sql.NewInt(2)},
	)
	if len(out) != 1 {
		t.Fatalf("expected the batch to stop after the failed LET, got %d responses", len(out))
	}
}

func TestOptionDebugAndUnknown(t *testing.T) {
	ex := newTestExecutor(t)
	out := execute(t, ex,
		&sql.OptionStatement{Name: "debug", What: true},
		&sql.OutputStatement{What: sql.NewInt(1)},
	)
	if len(out) != 1 || out[0].SQL != "RETURN 1" {
		t.Fatalf("debug mode should echo the statement, got %+v", out)
	}

	// Une option inconnue arrête le lot sans erreur
	out = execute(t, ex,
		&sql.OptionStatement{Name: "whatever", What: true},
		&sql.OutputStatement{What: sql.NewInt(1)},
	)
	if len(out) != 0 {
		t.Errorf("unknown option should stop the batch, got %d responses", len(out))
	}

	_, err := ex.Execute(context.Background(), NewOptions(AuthKv()), []sql.Statement{
		&sql.OptionStatement{Name: "FIELDS", What: false},
	})
	if !errors.Is(err, ErrNsEmpty) {
		t.Errorf("option without namespace: expected ErrNsEmpty, got %v", err)
	}
}

func TestOptionImportTogglesFieldRules(t *testing.T) {
	ex := newTestExecutor(t)
	assert := sql.NewExpression(sql.Param("value"), sql.OpMoreThan, sql.NewInt(0))
	out := execute(t, ex,
		&sql.DefineFieldStatement{Name: idiom("age"), Table: "person", Assert: assert},
		&sql.OptionStatement{Name: "IMPORT", What: false},
		createWith(thing("person", "a"), set("age", sql.NewInt(-1))),
		&sql.OptionStatement{Name: "IMPORT", What: true},
		createWith(thing("person", "b"), set("age", sql.NewInt(-1))),
	)
	if len(out) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(out))
	}
	// IMPORT = FALSE coupe champs, événements et tables
	for i, r := range out[:2] {
		if r.Err != nil {
			t.Errorf("response %d: %v", i, r.Err)
		}
	}
	if !errors.Is(out[2].Err, ErrFieldValue) {
		t.Errorf("IMPORT = TRUE should apply field rules, got %v", out[2].Err)
	}
}

func TestWithImport(t *testing.T) {
	for _, v := range []bool{true, false} {
		o := NewOptions(AuthKv()).WithImport(v)
		if o.Fields != v || o.Events != v || o.Tables != v {
			t.Errorf("WithImport(%v) = fields %v events %v tables %v", v, o.Fields, o.Events, o.Tables)
		}
	}
}

func TestStatementNeedsNamespace(t *testing.T) {
	ex := newTestExecutor(t)
	out, err := ex.Execute(context.Background(), NewOptions(AuthKv()), []sql.Statement{selectAll(sql.Table("person"))})
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(out[0].Err, ErrNsEmpty) {
		t.Errorf("expected ErrNsEmpty, got %v", out[0].Err)
	}
}

func TestStatementTimeout(t *testing.T) {
	ex := newTestExecutor(t)
	execute(t, ex, createWith(thing("person", "a")))
	stm := selectAll(sql.Table("person"))
	stm.Timeout = time.Nanosecond
	out := execute(t, ex, stm)
	if !errors.Is(out[0].Err, ErrQueryTimeout) {
		t.Fatalf("expected ErrQueryTimeout, got %v", out[0].Err)
	}
	// Sans délai la même requête aboutit
	stm.Timeout = 0
	if got := rows(t, execute(t, ex, stm)[0]); len(got) != 1 {
		t.Errorf("expected 1 record, got %d", len(got))
	}
}

// ---------- Réponses ----------

func TestResponseJSON(t *testing.T) {
	ok, err := json.Marshal(Response{Result: sql.Object{"a": sql.NewInt(1)}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(ok), `"status":"OK"`) || !strings.Contains(string(ok), `"result":{"a":1}`) {
		t.Errorf("unexpected success JSON: %s", ok)
	}
	ko, err := json.Marshal(Response{Err: ErrQueryCancelled})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(ko), `"status":"ERR"`) || !strings.Contains(string(ko), "cancelled") {
		t.Errorf("unexpected error JSON: %s", ko)
	}
}
