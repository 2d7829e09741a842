package sql

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestEqualLoose(t *testing.T) {
	cases := []struct {
		a, b Value
		want bool
	}{
		{NewInt(1), NewFloat(1.0), true},
		{NewInt(1), NewDecimal(decimal.NewFromInt(1)), true},
		{NewInt(10), Strand("10"), true},
		{Strand("10"), NewInt(10), true},
		{Strand("abc"), Regex{Source: "^a"}, true},
		{Thing{TB: "person", ID: "tobie"}, Regex{Source: "person:.*"}, true},
		{NewInt(42), Regex{Source: "^4"}, true},
		{Duration(90 * time.Second), Strand("1m30s"), true},
		{None, Null, true},
		{Null, None, true},
		{True, Strand("true"), true},
		{Array{NewInt(1)}, Array{NewInt(1)}, true},
		{Object{"a": NewInt(1)}, Object{"a": NewInt(1)}, true},
		{Thing{TB: "a", ID: "1"}, Strand("a:1"), false},
		{NewInt(1), Bool(true), false},
		{Array{NewInt(1)}, Array{NewInt(2)}, false},
	}
	for _, c := range cases {
		if got := Equal(c.a, c.b); got != c.want {
			t.Errorf("Equal(%s, %s) = %v, want %v", Render(c.a), Render(c.b), got, c.want)
		}
	}
}

func TestSameIsStrict(t *testing.T) {
	if Same(NewInt(1), NewFloat(1)) {
		t.Error("int and float should not be structurally identical")
	}
	if !Same(Object{"a": Array{NewInt(1), Null}}, Object{"a": Array{NewInt(1), Null}}) {
		t.Error("identical nested objects should be same")
	}
	if !Same(nil, None) {
		t.Error("nil and None should be same")
	}
}

func TestCompareTotalOrder(t *testing.T) {
	ordered := []Value{
		None, Null, False, True, NewInt(-3), NewFloat(2.5), NewInt(3),
		Strand("a"), Strand("b"), Array{NewInt(1)}, Object{"a": NewInt(1)},
		Thing{TB: "a", ID: "1"}, Thing{TB: "a", ID: "2"},
	}
	for i := 0; i+1 < len(ordered); i++ {
		if Compare(ordered[i], ordered[i+1]) >= 0 {
			t.Errorf("expected %s < %s", Render(ordered[i]), Render(ordered[i+1]))
		}
		if Compare(ordered[i+1], ordered[i]) <= 0 {
			t.Errorf("expected %s > %s", Render(ordered[i+1]), Render(ordered[i]))
		}
	}
	// Paires incomparables : égales
	if Compare(NewFunction("a"), NewFunction("b")) != 0 {
		t.Error("functions should compare equal")
	}
}

func TestCompareUuid(t *testing.T) {
	lo := Uuid{uuid.MustParse("00000000-0000-4000-8000-000000000001")}
	hi := Uuid{uuid.MustParse("ffffffff-0000-4000-8000-000000000000")}
	if Compare(lo, hi) >= 0 || Compare(hi, lo) <= 0 {
		t.Errorf("uuids should order by bytes: %s vs %s", Render(lo), Render(hi))
	}
	if Compare(lo, Uuid{lo.UUID}) != 0 {
		t.Error("identical uuids should compare equal")
	}
}

func TestArithmeticPromotion(t *testing.T) {
	r := Add(NewInt(2), NewInt(3)).(Number)
	if r.Kind != NumberInt || r.Int != 5 {
		t.Errorf("int+int = %s, want int 5", r)
	}
	r = Add(NewInt(2), NewFloat(0.5)).(Number)
	if r.Kind != NumberFloat || r.Float != 2.5 {
		t.Errorf("int+float = %s, want float 2.5", r)
	}
	r = Add(NewFloat(0.5), NewDecimal(decimal.RequireFromString("1.25"))).(Number)
	if r.Kind != NumberDecimal || !r.Dec.Equal(decimal.RequireFromString("1.75")) {
		t.Errorf("float+decimal = %s, want decimal 1.75", r)
	}
	if got := Add(Strand("ab"), Strand("cd")); got != Strand("abcd") {
		t.Errorf("strand+strand = %s", Render(got))
	}

	// Dépassement entier : bascule en flottant
	r = Add(NewInt(math.MaxInt64), NewInt(1)).(Number)
	if r.Kind != NumberFloat {
		t.Errorf("overflow should promote to float, got %s", r)
	}
}

func TestTemporalArithmetic(t *testing.T) {
	base := NewDatetime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d := Duration(36 * time.Hour)

	got := Add(base, d)
	want := NewDatetime(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))
	if !Same(got, want) {
		t.Errorf("datetime+duration = %s, want %s", Render(got), Render(want))
	}
	if got := Add(d, d); got != Duration(72*time.Hour) {
		t.Errorf("duration+duration = %s", Render(got))
	}
	if got := Sub(want, base); got != d {
		t.Errorf("datetime-datetime = %s, want %s", Render(got), Render(d))
	}
}

func TestDivisionByZero(t *testing.T) {
	if got := Div(NewInt(1), NewInt(0)); got != None {
		t.Errorf("int/0 = %s, want NONE", Render(got))
	}
	got := Div(NewFloat(1), NewFloat(0)).(Number)
	if !math.IsInf(got.Float, 1) {
		t.Errorf("float/0 = %s, want +Inf", got)
	}
	if got := Div(NewInt(6), NewInt(3)).(Number); got.Kind != NumberInt || got.Int != 2 {
		t.Errorf("6/3 = %s, want int 2", got)
	}
	if got := Div(NewInt(7), NewInt(2)).(Number); got.Kind != NumberFloat || got.Float != 3.5 {
		t.Errorf("7/2 = %s, want float 3.5", got)
	}
}

func TestTruthy(t *testing.T) {
	truthy := []Value{True, NewInt(1), Strand("x"), Array{Null}, Object{"a": Null}, Thing{TB: "a", ID: "b"}}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("%s should be truthy", Render(v))
		}
	}
	falsy := []Value{None, Null, Void, False, NewInt(0), Strand(""), Strand("false"), Array{}, Object{}}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("%s should be falsy", Render(v))
		}
	}
}

func TestOperateContainment(t *testing.T) {
	arr := Array{NewInt(1), NewInt(2), NewInt(3)}
	checks := []struct {
		l    Value
		op   Operator
		r    Value
		want bool
	}{
		{arr, OpContain, NewInt(2), true},
		{arr, OpNotContain, NewInt(5), true},
		{arr, OpContainAll, Array{NewInt(1), NewInt(3)}, true},
		{arr, OpContainAny, Array{NewInt(9), NewInt(3)}, true},
		{arr, OpContainNone, Array{NewInt(9)}, true},
		{NewInt(2), OpInside, arr, true},
		{NewInt(7), OpNotInside, arr, true},
		{Array{NewInt(1), NewInt(2)}, OpAllInside, arr, true},
		{Strand("Tobie"), OpLike, Strand("tbi"), true},
		{Strand("hello"), OpContain, Strand("ell"), true},
		{NewPolygon([2]float64{0, 0}, [2]float64{4, 0}, [2]float64{4, 4}, [2]float64{0, 4}), OpContain, NewPoint(1, 1), true},
	}
	for _, c := range checks {
		if got := Operate(c.l, c.op, c.r); got != Bool(c.want) {
			t.Errorf("%s %s %s = %s, want %v", Render(c.l), c.op, Render(c.r), Render(got), c.want)
		}
	}
}

func TestConvert(t *testing.T) {
	if got := Convert(Strand("12"), "int"); !Same(got, NewInt(12)) {
		t.Errorf("<int> \"12\" = %s", Render(got))
	}
	if got := Convert(NewInt(3), "float"); !Same(got, NewFloat(3)) {
		t.Errorf("<float> 3 = %s", Render(got))
	}
	if got := Convert(NewInt(1), "string"); got != Strand("1") {
		t.Errorf("<string> 1 = %s", Render(got))
	}
	if got := Convert(Thing{TB: "person", ID: "a"}, "record(user)"); got != None {
		t.Errorf("<record(user)> person:a = %s, want NONE", Render(got))
	}
	if got := Convert(Strand("1h"), "duration"); got != Duration(time.Hour) {
		t.Errorf("<duration> \"1h\" = %s", Render(got))
	}
}

func TestDurationText(t *testing.T) {
	d, err := ParseDuration("1d12h30m")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := Duration(36*time.Hour + 30*time.Minute); d != want {
		t.Fatalf("got %v, want %v", time.Duration(d), time.Duration(want))
	}
	if s := d.String(); s != "1d12h30m" {
		t.Errorf("String() = %q", s)
	}
	if _, err := ParseDuration("12parsecs"); err == nil {
		t.Error("unknown unit should fail")
	}
}

func TestRender(t *testing.T) {
	v := Object{"name": Strand("Tobie"), "tags": Array{NewInt(1), Null}, "id": Thing{TB: "person", ID: "a-b"}}
	want := `{ id: person:⟨a-b⟩, name: "Tobie", tags: [1, NULL] }`
	if got := Render(v); got != want {
		t.Errorf("Render = %s, want %s", got, want)
	}
	if got := ParseIdiom("a.b[0].c[*]").String(); got != "a.b[0].c[*]" {
		t.Errorf("idiom = %s", got)
	}
}
