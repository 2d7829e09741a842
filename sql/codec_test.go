package sql

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	b, err := Encode(v)
	if err != nil {
		t.Fatalf("encode %s: %v", Render(v), err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode %s: %v", Render(v), err)
	}
	return out
}

func TestCodecRoundTripNested(t *testing.T) {
	v := Object{
		"id":     Thing{TB: "person", ID: "tobie"},
		"name":   Strand("Tobie"),
		"age":    NewInt(42),
		"ratio":  NewFloat(0.75),
		"amount": NewDecimal(decimal.RequireFromString("12.3456789")),
		"null":   Null,
		"tags":   Array{Strand("a"), Array{NewInt(1), None}, Object{"deep": True}},
		"since":  NewDatetime(time.Date(2020, 5, 4, 3, 2, 1, 500, time.UTC)),
		"ttl":    Duration(90 * time.Minute),
		"uid":    NewUuid(),
		"where":  NewPoint(1.5, -2),
	}
	got := roundTrip(t, v)
	if !Same(v, got) {
		t.Fatalf("round trip mismatch:\n got %s\nwant %s", Render(got), Render(v))
	}
}

func TestCodecRoundTripLazy(t *testing.T) {
	future := NewFuture(NewExpression(Idiom{Field("a"), Where(NewExpression(Idiom{Field("b")}, OpMoreThan, NewInt(1)))}, OpAdd, Param("x")))
	got := roundTrip(t, future)
	if !Same(future, got) {
		t.Fatalf("got %s, want %s", Render(got), Render(future))
	}

	sub := Subquery{Stmt: &SelectStatement{
		Expr: Fields{AllFields()},
		What: []Value{Table("person")},
		Cond: NewExpression(Idiom{Field("age")}, OpMoreThan, NewInt(18)),
	}}
	got = roundTrip(t, sub)
	gs, ok := got.(Subquery)
	if !ok {
		t.Fatalf("got %T, want Subquery", got)
	}
	if diff := cmp.Diff(Render(sub), Render(gs)); diff != "" {
		t.Errorf("subquery mismatch (-want +got):\n%s", diff)
	}
}

func TestCodecScalars(t *testing.T) {
	for _, v := range []Value{None, Void, Null, True, False, NewInt(-7), Strand(""), Table("t"), Model{TB: "t", Count: 3}, Regex{Source: "a+"}, Param("p")} {
		if got := roundTrip(t, v); !Same(v, got) {
			t.Errorf("round trip %s gave %s", Render(v), Render(got))
		}
	}
}

func TestDecodeCorrupted(t *testing.T) {
	if _, err := Decode([]byte{0xcc, 0xff}); !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
	b, _ := Encode(Strand("hello"))
	if _, err := Decode(b[:len(b)-2]); !errors.Is(err, ErrCorrupted) {
		t.Errorf("truncated buffer: expected ErrCorrupted, got %v", err)
	}
	if _, err := Decode(append(b, 0x00)); !errors.Is(err, ErrCorrupted) {
		t.Errorf("trailing bytes: expected ErrCorrupted, got %v", err)
	}
}
