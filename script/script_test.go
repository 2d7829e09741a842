package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Felmond13/novusgraph/sql"
)

func mustParse(t *testing.T, text string) []sql.Statement {
	t.Helper()
	stms, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return stms
}

// render compare les instructions par leur forme textuelle.
func render(stms []sql.Statement) []string {
	out := make([]string, len(stms))
	for i, s := range stms {
		out[i] = s.String()
	}
	return out
}

func TestParseTransactionScript(t *testing.T) {
	stms := mustParse(t, `
- use: {ns: test, db: app}
- begin
- create: person:tobie
  set: {name: Tobie, "visits +=": 1}
- option: import
- let: x
  value: 41
- return: !expr [!param x, "+", 1]
- commit
`)
	want := []string{
		"USE NS test DB app",
		"BEGIN TRANSACTION",
		`CREATE person:tobie SET name = "Tobie", visits += 1`,
		"OPTION IMPORT",
		"LET $x = 41",
		"RETURN $x + 1",
		"COMMIT TRANSACTION",
	}
	if diff := cmp.Diff(want, render(stms)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSelect(t *testing.T) {
	stms := mustParse(t, `
select: ["*", {expr: !fn [count], as: total}, name]
from: [person, "person:tobie", "|person:3|"]
where: !expr [!idiom age, ">=", 18]
split: tags
group: [country]
order: ["name desc", age]
limit: 10
start: 2
timeout: 1s
parallel: true
`)
	s, ok := stms[0].(*sql.SelectStatement)
	if !ok {
		t.Fatalf("expected a SELECT, got %T", stms[0])
	}
	if len(s.Expr) != 3 || !s.Expr[0].All {
		t.Errorf("fields = %s", s.Expr)
	}
	wantWhat := []sql.Value{sql.Table("person"), sql.Thing{TB: "person", ID: "tobie"}, sql.Model{TB: "person", Count: 3}}
	if diff := cmp.Diff(wantWhat, s.What); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
	if s.Cond == nil || sql.Render(s.Cond) != "age >= 18" {
		t.Errorf("where = %s", sql.Render(s.Cond))
	}
	if len(s.Order) != 2 || !s.Order[0].Desc || s.Order[1].Desc {
		t.Errorf("order = %+v", s.Order)
	}
	if *s.Limit != 10 || *s.Start != 2 || s.Timeout != time.Second || !s.Parallel {
		t.Errorf("tail = limit %d start %d timeout %s parallel %v", *s.Limit, *s.Start, s.Timeout, s.Parallel)
	}
}

func TestParseWrites(t *testing.T) {
	stms := mustParse(t, `
- update: person
  merge: {name: !void "", age: 30}
  where: !expr [!idiom age, "<", 30]
  return: diff
- delete: person:a
  return: before
- relate: knows
  from: person:a
  with: ["person:b", "person:c"]
  unique: true
  content: {since: 2020}
- insert: person
  values: [{id: a, n: 1}, {n: 2}]
  ignore: true
- insert: person
  columns: [id, n]
  rows: [[a, 9]]
  on_duplicate: {"n +=": 10}
  return: [n]
`)
	if len(stms) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(stms))
	}
	up := stms[0].(*sql.UpdateStatement)
	if up.Data.Kind != sql.DataMerge || up.Data.Value.(sql.Object)["name"] != sql.Void {
		t.Errorf("merge data = %s", up.Data)
	}
	if up.Output.Kind != sql.OutputDiff {
		t.Errorf("output = %s", up.Output)
	}
	if del := stms[1].(*sql.DeleteStatement); del.Output.Kind != sql.OutputBefore {
		t.Errorf("delete output = %s", del.Output)
	}
	rel := stms[2].(*sql.RelateStatement)
	if rel.Kind != "knows" || len(rel.With) != 2 || !rel.Uniq || rel.Data.Kind != sql.DataContent {
		t.Errorf("relate = %s", rel)
	}
	ins := stms[3].(*sql.InsertStatement)
	if !ins.Ignore || ins.Data.Kind != sql.DataSingle {
		t.Errorf("insert = %s", ins)
	}
	vals := stms[4].(*sql.InsertStatement)
	if vals.Data.Kind != sql.DataValues || len(vals.Data.Rows) != 1 || len(vals.Update) != 1 || vals.Update[0].Op != sql.OpInc {
		t.Errorf("insert values = %s", vals)
	}
	if vals.Output.Kind != sql.OutputFields || len(vals.Output.Fields) != 1 {
		t.Errorf("insert output = %s", vals.Output)
	}
}

func TestParseDefinitions(t *testing.T) {
	stms := mustParse(t, `
- define: table
  name: view
  drop: true
- define: field
  name: email
  on: user
  value: !fn [string::lowercase, !param value]
  assert: !expr [!param value, "!=", !none ""]
- define: event
  name: audit
  on: person
  when: !expr [!param event, "=", CREATE]
  then:
    - !query {create: log, set: {kind: !param event}}
- define: index
  name: email
  on: user
  columns: email
  unique: true
- info: table
  name: user
- info: kv
- remove: table
  name: view
`)
	want := []string{
		"DEFINE TABLE view DROP",
		"DEFINE FIELD email ON user VALUE string::lowercase($value) ASSERT $value != NONE",
		`DEFINE EVENT audit ON person WHEN $event = "CREATE" THEN ((CREATE log SET kind = $event))`,
		"DEFINE INDEX email ON user COLUMNS email UNIQUE",
		"INFO FOR TABLE user",
		"INFO FOR KV",
		"REMOVE TABLE view",
	}
	if diff := cmp.Diff(want, render(stms)); diff != "" {
		t.Errorf("statements mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValues(t *testing.T) {
	stms := mustParse(t, `
return:
  n: 1
  f: 1.5
  d: !decimal "0.10"
  b: true
  z: null
  s: "12"
  at: !datetime 2020-01-01T00:00:00Z
  for: !duration 1h
  id: !thing person:tobie
  ids: !uuid 6ba7b810-9dad-11d1-80b4-00c04fd430c8
  later: !future [!idiom n]
  as: !cast [int, "3"]
`)
	obj, ok := stms[0].(*sql.OutputStatement).What.(sql.Object)
	if !ok {
		t.Fatalf("expected an object, got %s", stms[0])
	}
	checks := map[string]sql.Value{
		"n":  sql.NewInt(1),
		"f":  sql.NewFloat(1.5),
		"b":  sql.Bool(true),
		"z":  sql.Null,
		"s":  sql.Strand("12"),
		"id": sql.Thing{TB: "person", ID: "tobie"},
	}
	for k, want := range checks {
		if !sql.Same(obj[k], want) {
			t.Errorf("%s = %s, want %s", k, sql.Render(obj[k]), sql.Render(want))
		}
	}
	if n, ok := obj["d"].(sql.Number); !ok || n.Kind != sql.NumberDecimal {
		t.Errorf("d = %#v, want a decimal", obj["d"])
	}
	if d, ok := obj["for"].(sql.Duration); !ok || time.Duration(d) != time.Hour {
		t.Errorf("for = %s", sql.Render(obj["for"]))
	}
	if _, ok := obj["at"].(sql.Datetime); !ok {
		t.Errorf("at = %s", sql.Render(obj["at"]))
	}
	if _, ok := obj["ids"].(sql.Uuid); !ok {
		t.Errorf("ids = %s", sql.Render(obj["ids"]))
	}
	if f, ok := obj["later"].(sql.Function); !ok || f.Kind != sql.FunctionFuture {
		t.Errorf("later = %s", sql.Render(obj["later"]))
	}
	if f, ok := obj["as"].(sql.Function); !ok || f.Kind != sql.FunctionCast || f.Name != "int" {
		t.Errorf("as = %s", sql.Render(obj["as"]))
	}
}

func TestParseMultipleDocuments(t *testing.T) {
	stms := mustParse(t, "begin\n---\n- return: 1\n- return: 2\n---\ncommit\n")
	if len(stms) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(stms))
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unknown statement": "- explode: everything",
		"unknown tag":       "- return: !nope 1",
		"bad operator":      `- return: !expr [1, "<>", 2]`,
		"bad thing":         "- return: !thing person",
		"missing from":      `- select: "*"`,
		"bad limit":         "- select: a\n  from: t\n  limit: -1",
		"duplicate key":     "- create: a\n  set: {x: 1}\n  set: {y: 2}",
		"unknown level":     "- info: cluster",
		"yaml":              "- [unclosed",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(text); !errors.Is(err, ErrSyntax) {
				t.Errorf("expected ErrSyntax, got %v", err)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte("- return: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stms, err := ParseFile(path)
	if err != nil || len(stms) != 1 {
		t.Fatalf("ParseFile = %v, %v", stms, err)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
