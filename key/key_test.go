package key

import (
	"bytes"
	"testing"
)

func inRange(r Range, k []byte) bool {
	return bytes.Compare(k, r.Beg) >= 0 && bytes.Compare(k, r.End) < 0
}

func TestThingRoundTrip(t *testing.T) {
	k := Thing("test", "app", "person", "tobie")
	id, err := DecodeThing("test", "app", "person", k)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != "tobie" {
		t.Errorf("id = %q, want tobie", id)
	}
	if _, err := DecodeThing("test", "app", "other", k); err == nil {
		t.Error("decoding with the wrong table should fail")
	}
}

func TestThingRangeIsolation(t *testing.T) {
	r := ThingRange("test", "app", "person")
	if !inRange(r, Thing("test", "app", "person", "a")) {
		t.Error("record should be in its table range")
	}
	// Une table dont le nom prolonge celui d'une autre ne doit pas déborder
	if inRange(r, Thing("test", "app", "personnel", "a")) {
		t.Error("record of table personnel leaked into person range")
	}
	if inRange(r, FD("test", "app", "person", "name")) {
		t.Error("field definition should not be in the record range")
	}
	if !inRange(TableRange("test", "app", "person"), FD("test", "app", "person", "name")) {
		t.Error("field definition should be in the table range")
	}
}

func TestDefinitionRanges(t *testing.T) {
	if !inRange(NSRange(), NS("test")) {
		t.Error("ns key not in ns range")
	}
	if inRange(NSRange(), DB("test", "app")) {
		t.Error("db key in ns range")
	}
	r := TBRange("test", "app")
	if !inRange(r, TB("test", "app", "person")) {
		t.Error("tb key not in tb range")
	}
	name, err := DecodeName(r, TB("test", "app", "person"))
	if err != nil || name != "person" {
		t.Errorf("DecodeName = %q, %v", name, err)
	}
	if inRange(EVRange("test", "app", "person"), IX("test", "app", "person", "x")) {
		t.Error("index key in event range")
	}
}

func TestThingOrdering(t *testing.T) {
	a := Thing("ns", "db", "tb", "a")
	b := Thing("ns", "db", "tb", "ab")
	c := Thing("ns", "db", "tb", "b")
	if !(bytes.Compare(a, b) < 0 && bytes.Compare(b, c) < 0) {
		t.Error("record keys should sort by id")
	}
}
