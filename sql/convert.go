package sql

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AsInt convertit une valeur en entier. Les valeurs non numériques donnent 0.
func AsInt(v Value) int64 {
	switch v := v.(type) {
	case Bool:
		if v {
			return 1
		}
	case Strand:
		i, _ := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return i
	case Number:
		return v.AsInt()
	case Duration:
		return int64(time.Duration(v) / time.Second)
	case Datetime:
		return v.Unix()
	}
	return 0
}

// AsFloat convertit une valeur en flottant.
func AsFloat(v Value) float64 {
	switch v := v.(type) {
	case Bool:
		if v {
			return 1
		}
	case Strand:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		return f
	case Number:
		return v.AsFloat()
	case Duration:
		return float64(time.Duration(v) / time.Second)
	case Datetime:
		return float64(v.Unix())
	}
	return 0
}

// AsDecimal convertit une valeur en décimal.
func AsDecimal(v Value) decimal.Decimal {
	switch v := v.(type) {
	case Bool:
		if v {
			return decimal.NewFromInt(1)
		}
	case Strand:
		d, _ := decimal.NewFromString(strings.TrimSpace(string(v)))
		return d
	case Number:
		return v.AsDecimal()
	case Duration:
		return decimal.NewFromInt(int64(time.Duration(v) / time.Second))
	case Datetime:
		return decimal.NewFromInt(v.Unix())
	}
	return decimal.Zero
}

// AsNumber convertit une valeur en nombre.
func AsNumber(v Value) Number {
	switch v := v.(type) {
	case Bool:
		if v {
			return NewInt(1)
		}
	case Number:
		return v
	case Strand:
		return ParseNumber(string(v))
	case Duration:
		return NewInt(int64(time.Duration(v) / time.Second))
	case Datetime:
		return NewInt(v.Unix())
	}
	return NewInt(0)
}

// AsString retourne la forme textuelle brute : le contenu d'une chaîne,
// sinon l'affichage de la valeur.
func AsString(v Value) string {
	if s, ok := v.(Strand); ok {
		return string(s)
	}
	return Render(v)
}

// AsStrand convertit une valeur en chaîne.
func AsStrand(v Value) Strand {
	return Strand(AsString(v))
}

// AsDatetime convertit une chaîne ou un instant en Datetime.
func AsDatetime(v Value) Datetime {
	switch v := v.(type) {
	case Datetime:
		return v
	case Strand:
		d, _ := ParseDatetime(string(v))
		return d
	}
	return Datetime{}
}

// AsDuration convertit une chaîne ou une durée en Duration.
func AsDuration(v Value) Duration {
	switch v := v.(type) {
	case Duration:
		return v
	case Strand:
		d, _ := ParseDuration(string(v))
		return d
	}
	return 0
}

// Convert applique un cast <kind>. Un cast impossible vers un type
// composite (array, object, record) donne None.
func Convert(v Value, kind string) Value {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch {
	case kind == "any":
		return v
	case kind == "bool":
		if b, ok := v.(Bool); ok {
			return b
		}
		return Bool(Truthy(v))
	case kind == "int":
		if n, ok := v.(Number); ok && n.Kind == NumberInt {
			return n
		}
		return NewInt(AsInt(v))
	case kind == "float":
		if n, ok := v.(Number); ok && n.Kind == NumberFloat {
			return n
		}
		return NewFloat(AsFloat(v))
	case kind == "decimal":
		if n, ok := v.(Number); ok && n.Kind == NumberDecimal {
			return n
		}
		return NewDecimal(AsDecimal(v))
	case kind == "number":
		return AsNumber(v)
	case kind == "string":
		return AsStrand(v)
	case kind == "datetime":
		return AsDatetime(v)
	case kind == "duration":
		return AsDuration(v)
	case kind == "uuid":
		switch x := v.(type) {
		case Uuid:
			return x
		case Strand:
			if u, err := uuid.Parse(string(x)); err == nil {
				return Uuid{UUID: u}
			}
		}
		return None
	case kind == "array":
		if a, ok := v.(Array); ok {
			return a
		}
		return None
	case kind == "object":
		if o, ok := v.(Object); ok {
			return o
		}
		return None
	case strings.HasPrefix(kind, "record"):
		t, ok := v.(Thing)
		if !ok {
			return None
		}
		tables := strings.TrimSuffix(strings.TrimPrefix(kind, "record("), ")")
		if tables == "record" || tables == "" {
			return t
		}
		for _, tb := range strings.Split(tables, ",") {
			if strings.TrimSpace(tb) == t.TB {
				return t
			}
		}
		return None
	case strings.HasPrefix(kind, "geometry"):
		g, ok := v.(Geometry)
		if !ok {
			return None
		}
		types := strings.TrimSuffix(strings.TrimPrefix(kind, "geometry("), ")")
		if types == "geometry" || types == "" {
			return g
		}
		for _, ty := range strings.Split(types, ",") {
			ty = strings.TrimSpace(ty)
			if ty == "feature" || ty == g.TypeName() {
				return g
			}
		}
		return None
	}
	return v
}
