package sql

import (
	"strconv"
	"strings"
)

// PartKind identifie un segment de chemin.
type PartKind uint8

const (
	PartField PartKind = iota // .name
	PartIndex                 // [n]
	PartAll                   // [*]
	PartFirst                 // [0] explicite sur le premier élément
	PartLast                  // [$]
	PartWhere                 // [WHERE cond]
)

// Part est un segment d'Idiom.
type Part struct {
	Kind  PartKind
	Field string
	Index int64
	Cond  Value
}

// Idiom est un chemin d'accès dans une valeur (ex: tags[*].name).
type Idiom []Part

func (Idiom) valueNode() {}

// Field construit un segment d'accès à un champ.
func Field(name string) Part { return Part{Kind: PartField, Field: name} }

// Index construit un segment d'accès par position.
func Index(i int64) Part { return Part{Kind: PartIndex, Index: i} }

// All construit le segment [*].
func All() Part { return Part{Kind: PartAll} }

// First construit le segment du premier élément.
func First() Part { return Part{Kind: PartFirst} }

// Last construit le segment [$].
func Last() Part { return Part{Kind: PartLast} }

// Where construit un segment de filtrage [WHERE cond].
func Where(cond Value) Part { return Part{Kind: PartWhere, Cond: cond} }

// ParseIdiom découpe un chemin simple de la forme "a.b[0].c[*]" ou "a[$]".
// Ce n'est pas le parseur du langage : seuls les champs et les crochets
// [n], [*] et [$] sont reconnus.
func ParseIdiom(s string) Idiom {
	var out Idiom
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			continue
		}
		name := seg
		var rest string
		if i := strings.IndexByte(seg, '['); i >= 0 {
			name, rest = seg[:i], seg[i:]
		}
		if name != "" {
			out = append(out, Field(name))
		}
		for len(rest) > 0 && rest[0] == '[' {
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				break
			}
			switch inner := rest[1:end]; inner {
			case "*":
				out = append(out, All())
			case "$":
				out = append(out, Last())
			default:
				if n, err := strconv.ParseInt(inner, 10, 64); err == nil {
					if n == 0 {
						out = append(out, First())
					} else {
						out = append(out, Index(n))
					}
				}
			}
			rest = rest[end+1:]
		}
	}
	return out
}

// Next retourne le chemin privé de son premier segment.
func (i Idiom) Next() Idiom {
	if len(i) == 0 {
		return nil
	}
	return i[1:]
}

// String retourne la forme textuelle du chemin.
func (i Idiom) String() string {
	var b strings.Builder
	for n, p := range i {
		switch p.Kind {
		case PartField:
			if n > 0 {
				b.WriteByte('.')
			}
			b.WriteString(p.Field)
		case PartIndex:
			b.WriteString("[" + strconv.FormatInt(p.Index, 10) + "]")
		case PartAll:
			b.WriteString("[*]")
		case PartFirst:
			b.WriteString("[0]")
		case PartLast:
			b.WriteString("[$]")
		case PartWhere:
			b.WriteString("[WHERE " + Render(p.Cond) + "]")
		}
	}
	return b.String()
}

// ToIdiom retourne le chemin sous lequel une valeur de champ est placée
// dans la sortie (SELECT a.b → a.b, SELECT count() → "count()").
func ToIdiom(v Value) Idiom {
	if i, ok := v.(Idiom); ok {
		return i
	}
	return Idiom{Field(Render(v))}
}
