package sql

import (
	"strconv"
	"strings"
)

// Render retourne la forme textuelle d'une valeur, telle qu'elle serait
// écrite dans une requête.
func Render(v Value) string {
	switch v := v.(type) {
	case nil:
		return "NONE"
	case Constant:
		return v.String()
	case Bool:
		if v {
			return "true"
		}
		return "false"
	case Number:
		return v.String()
	case Strand:
		return strconv.Quote(string(v))
	case Duration:
		return v.String()
	case Datetime:
		return strconv.Quote(v.String())
	case Uuid:
		return strconv.Quote(v.UUID.String())
	case Array:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = Render(x)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Object:
		if len(v) == 0 {
			return "{}"
		}
		keys := sortedKeys(v)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = renderKey(k) + ": " + Render(v[k])
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case Geometry:
		return v.String()
	case Param:
		return "$" + string(v)
	case Idiom:
		return v.String()
	case Table:
		return string(v)
	case Thing:
		return v.String()
	case Model:
		return v.TB + ":|" + strconv.FormatInt(v.Count, 10) + "|"
	case Regex:
		return "/" + v.Source + "/"
	case Function:
		return v.String()
	case Subquery:
		if v.Stmt == nil {
			return "()"
		}
		return "(" + v.Stmt.String() + ")"
	case Expression:
		return Render(v.L) + " " + v.O.String() + " " + Render(v.R)
	}
	return "?"
}

func (c Constant) String() string {
	switch c {
	case Void:
		return "VOID"
	case Null:
		return "NULL"
	}
	return "NONE"
}

func renderKey(k string) string {
	for _, r := range k {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return strconv.Quote(k)
		}
	}
	if k == "" {
		return `""`
	}
	return k
}

func (t Thing) String() string {
	return t.TB + ":" + renderID(t.ID)
}

func renderID(id string) string {
	for _, r := range id {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "⟨" + id + "⟩"
		}
	}
	return id
}

func (f Function) String() string {
	switch f.Kind {
	case FunctionCast:
		return "<" + f.Name + "> " + Render(f.arg(0))
	case FunctionFuture:
		return "<future> { " + Render(f.arg(0)) + " }"
	}
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = Render(a)
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (f Function) arg(i int) Value {
	if i < len(f.Args) {
		return f.Args[i]
	}
	return None
}

func renderList(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Render(v)
	}
	return strings.Join(parts, ", ")
}
