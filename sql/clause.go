package sql

import (
	"strconv"
	"strings"
	"time"
)

// ---------- Champs projetés ----------

// Projection est un champ projeté : * (All), une valeur seule, ou une
// valeur renommée (AS alias).
type Projection struct {
	All   bool
	Expr  Value
	Alias Idiom
}

// Fields est la liste des champs d'un SELECT ou d'une clause RETURN.
type Fields []Projection

// AllFields construit le champ *.
func AllFields() Projection { return Projection{All: true} }

// Alone construit un champ sans alias.
func Alone(v Value) Projection { return Projection{Expr: v} }

// Alias construit un champ renommé.
func Alias(v Value, alias Idiom) Projection { return Projection{Expr: v, Alias: alias} }

// HasAll indique si la liste contient le joker *.
func (f Fields) HasAll() bool {
	for _, x := range f {
		if x.All {
			return true
		}
	}
	return false
}

func (f Fields) String() string {
	parts := make([]string, len(f))
	for i, x := range f {
		switch {
		case x.All:
			parts[i] = "*"
		case x.Alias != nil:
			parts[i] = Render(x.Expr) + " AS " + x.Alias.String()
		default:
			parts[i] = Render(x.Expr)
		}
	}
	return strings.Join(parts, ", ")
}

// ---------- Clause RETURN ----------

// OutputKind identifie la forme de la clause RETURN.
type OutputKind uint8

const (
	OutputNone OutputKind = iota
	OutputNull
	OutputDiff
	OutputAfter
	OutputBefore
	OutputFields
)

// Output est la clause RETURN d'une instruction d'écriture.
type Output struct {
	Kind   OutputKind
	Fields Fields
}

func (o *Output) String() string {
	switch o.Kind {
	case OutputNull:
		return "RETURN NULL"
	case OutputDiff:
		return "RETURN DIFF"
	case OutputAfter:
		return "RETURN AFTER"
	case OutputBefore:
		return "RETURN BEFORE"
	case OutputFields:
		return "RETURN " + o.Fields.String()
	}
	return "RETURN NONE"
}

// ---------- Clause de données ----------

// DataKind identifie la forme de la clause de données.
type DataKind uint8

const (
	DataSet     DataKind = iota // SET a = 1, b += 2
	DataPatch                   // PATCH [...]
	DataMerge                   // MERGE {...}
	DataReplace                 // REPLACE {...}
	DataContent                 // CONTENT {...}
	DataSingle                  // INSERT valeur
	DataValues                  // INSERT (cols) VALUES (...)
)

// Assignment est une affectation SET : chemin, opérateur (=, +=, -=), valeur.
type Assignment struct {
	Path  Idiom
	Op    Operator
	Value Value
}

func (a Assignment) String() string {
	return a.Path.String() + " " + a.Op.String() + " " + Render(a.Value)
}

// Data est la clause de données d'une instruction d'écriture.
type Data struct {
	Kind    DataKind
	Sets    []Assignment
	Value   Value
	Columns []Idiom
	Rows    [][]Value
}

// Set construit une clause SET.
func Set(sets ...Assignment) *Data { return &Data{Kind: DataSet, Sets: sets} }

// Content construit une clause CONTENT.
func Content(v Value) *Data { return &Data{Kind: DataContent, Value: v} }

// Merge construit une clause MERGE.
func Merge(v Value) *Data { return &Data{Kind: DataMerge, Value: v} }

// Replace construit une clause REPLACE.
func Replace(v Value) *Data { return &Data{Kind: DataReplace, Value: v} }

// Patch construit une clause PATCH.
func Patch(v Value) *Data { return &Data{Kind: DataPatch, Value: v} }

func (d *Data) String() string {
	switch d.Kind {
	case DataSet:
		parts := make([]string, len(d.Sets))
		for i, s := range d.Sets {
			parts[i] = s.String()
		}
		return "SET " + strings.Join(parts, ", ")
	case DataPatch:
		return "PATCH " + Render(d.Value)
	case DataMerge:
		return "MERGE " + Render(d.Value)
	case DataReplace:
		return "REPLACE " + Render(d.Value)
	case DataContent:
		return "CONTENT " + Render(d.Value)
	case DataValues:
		cols := make([]string, len(d.Columns))
		for i, c := range d.Columns {
			cols[i] = c.String()
		}
		rows := make([]string, len(d.Rows))
		for i, r := range d.Rows {
			rows[i] = "(" + renderList(r) + ")"
		}
		return "(" + strings.Join(cols, ", ") + ") VALUES " + strings.Join(rows, ", ")
	}
	return Render(d.Value)
}

// ---------- Tri ----------

// Order est une clé de tri ORDER BY.
type Order struct {
	Path Idiom
	Desc bool
}

func (o Order) String() string {
	if o.Desc {
		return o.Path.String() + " DESC"
	}
	return o.Path.String() + " ASC"
}

// ---------- Clauses communes ----------

func idiomList(is []Idiom) string {
	parts := make([]string, len(is))
	for i, x := range is {
		parts[i] = x.String()
	}
	return strings.Join(parts, ", ")
}

func writeTail(b *strings.Builder, timeout time.Duration, parallel bool) {
	if timeout > 0 {
		b.WriteString(" TIMEOUT " + Duration(timeout).String())
	}
	if parallel {
		b.WriteString(" PARALLEL")
	}
}

func writeInt(b *strings.Builder, kw string, v *int) {
	if v != nil {
		b.WriteString(" " + kw + " " + strconv.Itoa(*v))
	}
}
