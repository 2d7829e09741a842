package sql

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiffObjects(t *testing.T) {
	a := Object{"name": Strand("Tobie"), "age": NewInt(30), "old": True}
	b := Object{"name": Strand("Jaime"), "age": NewInt(30), "tags": Array{Strand("x")}}

	got := Diff(a, b)
	want := Array{
		Object{"op": Strand("remove"), "path": Strand("/old")},
		Object{"op": Strand("replace"), "path": Strand("/name"), "value": Strand("Jaime")},
		Object{"op": Strand("add"), "path": Strand("/tags"), "value": Array{Strand("x")}},
	}
	if !Same(got, want) {
		t.Errorf("Diff =\n%s\nwant\n%s", Render(got), Render(want))
	}
}

func TestDiffArrays(t *testing.T) {
	got := Diff(Array{NewInt(1), NewInt(2), NewInt(3)}, Array{NewInt(1), NewInt(5)})
	want := Array{
		Object{"op": Strand("replace"), "path": Strand("/1"), "value": NewInt(5)},
		Object{"op": Strand("remove"), "path": Strand("/2")},
	}
	if !Same(got, want) {
		t.Errorf("Diff =\n%s\nwant\n%s", Render(got), Render(want))
	}
	if d := Diff(Object{"a": NewInt(1)}, Object{"a": NewInt(1)}); len(d) != 0 {
		t.Errorf("identical values should produce no operations, got %s", Render(d))
	}
}

func TestPointerToIdiom(t *testing.T) {
	got := PointerToIdiom("/a~1b/0/c~0d/-")
	want := Idiom{Field("a/b"), Index(0), Field("c~d"), Last()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PointerToIdiom mismatch (-want +got):\n%s", diff)
	}
}
