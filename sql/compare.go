package sql

import (
	"bytes"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// rank retourne la position d'une variante dans l'ordre total des valeurs.
func rank(v Value) int {
	switch v := v.(type) {
	case nil:
		return 0
	case Constant:
		return int(v)
	case Bool:
		if v {
			return 4
		}
		return 3
	case Number:
		return 5
	case Strand:
		return 6
	case Duration:
		return 7
	case Datetime:
		return 8
	case Uuid:
		return 9
	case Array:
		return 10
	case Object:
		return 11
	case Geometry:
		return 12
	case Param:
		return 13
	case Idiom:
		return 14
	case Table:
		return 15
	case Thing:
		return 16
	case Model:
		return 17
	case Regex:
		return 18
	case Function:
		return 19
	case Subquery:
		return 20
	case Expression:
		return 21
	}
	return 22
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Compare définit un ordre total sur les valeurs : la variante d'abord,
// puis le contenu. Les paires incomparables sont considérées égales.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch a := a.(type) {
	case Number:
		return a.Cmp(b.(Number))
	case Strand:
		return strings.Compare(string(a), string(b.(Strand)))
	case Duration:
		return cmpInt64(int64(a), int64(b.(Duration)))
	case Datetime:
		return a.Time.Compare(b.(Datetime).Time)
	case Uuid:
		bu := b.(Uuid).UUID
		return bytes.Compare(a.UUID[:], bu[:])
	case Array:
		w := b.(Array)
		for i := 0; i < len(a) && i < len(w); i++ {
			if c := Compare(a[i], w[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(a), len(w))
	case Object:
		return compareObjects(a, b.(Object))
	case Param:
		return strings.Compare(string(a), string(b.(Param)))
	case Table:
		return strings.Compare(string(a), string(b.(Table)))
	case Thing:
		w := b.(Thing)
		if c := strings.Compare(a.TB, w.TB); c != 0 {
			return c
		}
		return strings.Compare(a.ID, w.ID)
	case Idiom:
		return strings.Compare(a.String(), b.(Idiom).String())
	case Regex:
		return strings.Compare(a.Source, b.(Regex).Source)
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortedKeys(o Object) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func compareObjects(a, b Object) int {
	ka, kb := sortedKeys(a), sortedKeys(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := strings.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
		if c := Compare(a[ka[i]], b[kb[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(ka), len(kb))
}

// Same est l'égalité structurelle (même variante, même contenu).
func Same(a, b Value) bool {
	if a == nil {
		a = None
	}
	if b == nil {
		b = None
	}
	switch x := a.(type) {
	case Number:
		y, ok := b.(Number)
		return ok && x.Kind == y.Kind && x.Cmp(y) == 0
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Same(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y, ok := b.(Object)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Same(v, w) {
				return false
			}
		}
		return true
	case Datetime:
		y, ok := b.(Datetime)
		return ok && x.Time.Equal(y.Time)
	case Geometry:
		y, ok := b.(Geometry)
		return ok && x.equal(y)
	case Idiom:
		y, ok := b.(Idiom)
		return ok && x.String() == y.String()
	case Function:
		y, ok := b.(Function)
		return ok && x.Kind == y.Kind && x.Name == y.Name && Same(Array(x.Args), Array(y.Args))
	case Expression:
		y, ok := b.(Expression)
		return ok && x.O == y.O && Same(x.L, y.L) && Same(x.R, y.R)
	case Subquery:
		y, ok := b.(Subquery)
		return ok && x.Stmt == y.Stmt
	}
	return a == b
}

func isTrueText(v Value) bool {
	switch v := v.(type) {
	case Bool:
		return bool(v)
	case Strand:
		return strings.EqualFold(string(v), "true")
	}
	return false
}

func isFalseText(v Value) bool {
	switch v := v.(type) {
	case Bool:
		return !bool(v)
	case Strand:
		return strings.EqualFold(string(v), "false")
	}
	return false
}

func isAbsent(v Value) bool {
	return v == nil || v == None || v == Void || v == Null
}

// Equal implémente l'opérateur = : égalité tolérante aux conversions.
// Une regex est appliquée à la forme textuelle d'une chaîne, d'un nombre ou
// d'un identifiant de record ; une chaîne comparée à un nombre est convertie.
func Equal(a, b Value) bool {
	if a == nil {
		a = None
	}
	if b == nil {
		b = None
	}
	switch x := a.(type) {
	case Constant:
		switch x {
		case None:
			return isAbsent(b)
		case Null:
			return b == None || b == Null
		default:
			return b == None || b == Void
		}
	case Bool:
		if x {
			return isTrueText(b)
		}
		return isFalseText(b)
	case Thing:
		switch y := b.(type) {
		case Thing:
			return x == y
		case Regex:
			return y.Match(x.String())
		}
		return false
	case Regex:
		switch y := b.(type) {
		case Regex:
			return x == y
		case Number:
			return x.Match(y.String())
		case Strand:
			return x.Match(string(y))
		}
		return false
	case Array:
		return Same(x, b)
	case Object:
		return Same(x, b)
	case Strand:
		switch y := b.(type) {
		case Strand:
			return x == y
		case Regex:
			return y.Match(string(x))
		}
		return string(x) == AsString(b)
	case Number:
		switch y := b.(type) {
		case Number:
			return x.Cmp(y) == 0
		case Strand:
			return x.Cmp(ParseNumber(string(y))) == 0
		case Regex:
			return y.Match(x.String())
		}
		return false
	case Geometry:
		y, ok := b.(Geometry)
		return ok && x.equal(y)
	case Duration:
		switch y := b.(type) {
		case Duration:
			return x == y
		case Strand:
			return x == AsDuration(y)
		}
		return false
	case Datetime:
		switch y := b.(type) {
		case Datetime:
			return x.Time.Equal(y.Time)
		case Strand:
			return x.Time.Equal(AsDatetime(y).Time)
		}
		return false
	case Uuid:
		switch y := b.(type) {
		case Uuid:
			return x == y
		case Strand:
			return x.String() == string(y)
		}
		return false
	}
	return Same(a, b)
}

// Exact implémente l'opérateur == : égalité structurelle stricte.
func Exact(a, b Value) bool {
	return Same(a, b)
}

// AllEqual : tous les éléments du tableau a sont égaux à b.
func AllEqual(a, b Value) bool {
	if arr, ok := a.(Array); ok {
		for _, v := range arr {
			if !Equal(v, b) {
				return false
			}
		}
		return true
	}
	return Equal(a, b)
}

// AnyEqual : au moins un élément du tableau a est égal à b.
func AnyEqual(a, b Value) bool {
	if arr, ok := a.(Array); ok {
		for _, v := range arr {
			if Equal(v, b) {
				return true
			}
		}
		return false
	}
	return Equal(a, b)
}

// Fuzzy implémente l'opérateur ~ : correspondance approximative insensible
// à la casse (les caractères de b apparaissent dans l'ordre dans a).
func Fuzzy(a, b Value) bool {
	if s, ok := a.(Strand); ok {
		return fuzzy.MatchFold(AsString(b), string(s))
	}
	return Equal(a, b)
}

// AllFuzzy : tous les éléments du tableau a correspondent à b.
func AllFuzzy(a, b Value) bool {
	if arr, ok := a.(Array); ok {
		for _, v := range arr {
			if !Fuzzy(v, b) {
				return false
			}
		}
		return true
	}
	return Fuzzy(a, b)
}

// AnyFuzzy : au moins un élément du tableau a correspond à b.
func AnyFuzzy(a, b Value) bool {
	if arr, ok := a.(Array); ok {
		for _, v := range arr {
			if Fuzzy(v, b) {
				return true
			}
		}
		return false
	}
	return Fuzzy(a, b)
}

// Contains : a (tableau, chaîne ou géométrie) contient b.
func Contains(a, b Value) bool {
	switch x := a.(type) {
	case Array:
		for _, v := range x {
			if Equal(v, b) {
				return true
			}
		}
	case Strand:
		return strings.Contains(string(x), AsString(b))
	case Geometry:
		if y, ok := b.(Geometry); ok {
			return x.Contains(y)
		}
	}
	return false
}

// ContainsAll : a contient tous les éléments du tableau b.
func ContainsAll(a, b Value) bool {
	arr, ok := b.(Array)
	if !ok {
		return false
	}
	for _, v := range arr {
		if !containsOne(a, v) {
			return false
		}
	}
	return true
}

// ContainsAny : a contient au moins un élément du tableau b.
func ContainsAny(a, b Value) bool {
	arr, ok := b.(Array)
	if !ok {
		return false
	}
	for _, v := range arr {
		if containsOne(a, v) {
			return true
		}
	}
	return false
}

func containsOne(a, v Value) bool {
	switch a.(type) {
	case Array, Geometry:
		return Contains(a, v)
	}
	return false
}

// Intersects : deux géométries se chevauchent.
func Intersects(a, b Value) bool {
	x, ok := a.(Geometry)
	if !ok {
		return false
	}
	y, ok := b.(Geometry)
	return ok && x.Intersects(y)
}

// Less, LessOrEqual, More et MoreOrEqual suivent l'ordre total.
func Less(a, b Value) bool        { return Compare(a, b) < 0 }
func LessOrEqual(a, b Value) bool { return Compare(a, b) <= 0 }
func More(a, b Value) bool        { return Compare(a, b) > 0 }
func MoreOrEqual(a, b Value) bool { return Compare(a, b) >= 0 }

// Truthy indique si une valeur est considérée vraie dans une condition.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case Bool:
		return bool(v)
	case Thing, Geometry, Uuid:
		return true
	case Array:
		return len(v) > 0
	case Object:
		return len(v) > 0
	case Strand:
		return v != "" && !strings.EqualFold(string(v), "false")
	case Number:
		return !v.IsZero()
	case Duration:
		return v > 0
	case Datetime:
		return v.Unix() > 0
	}
	return false
}
