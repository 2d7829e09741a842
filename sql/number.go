package sql

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NumberKind indique la représentation interne d'un Number.
type NumberKind uint8

const (
	NumberInt NumberKind = iota
	NumberFloat
	NumberDecimal
)

// Number est un nombre entier, flottant ou décimal à précision arbitraire.
type Number struct {
	Kind  NumberKind
	Int   int64
	Float float64
	Dec   decimal.Decimal
}

func (Number) valueNode() {}

// NewInt crée un nombre entier.
func NewInt(i int64) Number { return Number{Kind: NumberInt, Int: i} }

// NewFloat crée un nombre flottant.
func NewFloat(f float64) Number { return Number{Kind: NumberFloat, Float: f} }

// NewDecimal crée un nombre décimal.
func NewDecimal(d decimal.Decimal) Number { return Number{Kind: NumberDecimal, Dec: d} }

// ParseNumber interprète une chaîne comme un nombre. Les chaînes non
// numériques donnent 0.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewInt(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return NewFloat(f)
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return NewDecimal(d)
	}
	return NewInt(0)
}

// AsInt retourne la valeur entière (tronquée).
func (n Number) AsInt() int64 {
	switch n.Kind {
	case NumberFloat:
		return int64(n.Float)
	case NumberDecimal:
		return n.Dec.IntPart()
	}
	return n.Int
}

// AsFloat retourne la valeur flottante.
func (n Number) AsFloat() float64 {
	switch n.Kind {
	case NumberFloat:
		return n.Float
	case NumberDecimal:
		f, _ := n.Dec.Float64()
		return f
	}
	return float64(n.Int)
}

// AsDecimal retourne la valeur décimale.
func (n Number) AsDecimal() decimal.Decimal {
	switch n.Kind {
	case NumberFloat:
		return decimal.NewFromFloat(n.Float)
	case NumberDecimal:
		return n.Dec
	}
	return decimal.NewFromInt(n.Int)
}

// IsZero indique si le nombre vaut zéro.
func (n Number) IsZero() bool {
	switch n.Kind {
	case NumberFloat:
		return n.Float == 0
	case NumberDecimal:
		return n.Dec.IsZero()
	}
	return n.Int == 0
}

// promote retourne le type commun de deux nombres :
// entier+entier reste entier, un décimal impose le décimal, sinon flottant.
func promote(a, b Number) NumberKind {
	switch {
	case a.Kind == NumberDecimal || b.Kind == NumberDecimal:
		return NumberDecimal
	case a.Kind == NumberFloat || b.Kind == NumberFloat:
		return NumberFloat
	}
	return NumberInt
}

// Cmp compare deux nombres numériquement.
func (n Number) Cmp(o Number) int {
	switch promote(n, o) {
	case NumberInt:
		switch {
		case n.Int < o.Int:
			return -1
		case n.Int > o.Int:
			return 1
		}
		return 0
	case NumberFloat:
		a, b := n.AsFloat(), o.AsFloat()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	return n.AsDecimal().Cmp(o.AsDecimal())
}

// Add additionne deux nombres. Un dépassement entier bascule en flottant.
func (n Number) Add(o Number) Number {
	switch promote(n, o) {
	case NumberInt:
		r := n.Int + o.Int
		if (r > n.Int) == (o.Int > 0) {
			return NewInt(r)
		}
		return NewFloat(float64(n.Int) + float64(o.Int))
	case NumberFloat:
		return NewFloat(n.AsFloat() + o.AsFloat())
	}
	return NewDecimal(n.AsDecimal().Add(o.AsDecimal()))
}

// Sub soustrait deux nombres.
func (n Number) Sub(o Number) Number {
	switch promote(n, o) {
	case NumberInt:
		r := n.Int - o.Int
		if (r < n.Int) == (o.Int > 0) {
			return NewInt(r)
		}
		return NewFloat(float64(n.Int) - float64(o.Int))
	case NumberFloat:
		return NewFloat(n.AsFloat() - o.AsFloat())
	}
	return NewDecimal(n.AsDecimal().Sub(o.AsDecimal()))
}

// Mul multiplie deux nombres.
func (n Number) Mul(o Number) Number {
	switch promote(n, o) {
	case NumberInt:
		if n.Int == 0 || o.Int == 0 {
			return NewInt(0)
		}
		r := n.Int * o.Int
		if r/o.Int == n.Int && !(n.Int == -1 && o.Int == math.MinInt64) && !(o.Int == -1 && n.Int == math.MinInt64) {
			return NewInt(r)
		}
		return NewFloat(float64(n.Int) * float64(o.Int))
	case NumberFloat:
		return NewFloat(n.AsFloat() * o.AsFloat())
	}
	return NewDecimal(n.AsDecimal().Mul(o.AsDecimal()))
}

// Div divise deux nombres. La division entière exacte reste entière, sinon
// le résultat est flottant. La division par zéro retourne false.
func (n Number) Div(o Number) (Number, bool) {
	switch promote(n, o) {
	case NumberInt:
		if o.Int == 0 {
			return Number{}, false
		}
		if n.Int%o.Int == 0 {
			return NewInt(n.Int / o.Int), true
		}
		return NewFloat(float64(n.Int) / float64(o.Int)), true
	case NumberFloat:
		return NewFloat(n.AsFloat() / o.AsFloat()), true
	}
	if o.AsDecimal().IsZero() {
		return Number{}, false
	}
	return NewDecimal(n.AsDecimal().Div(o.AsDecimal())), true
}

func (n Number) String() string {
	switch n.Kind {
	case NumberFloat:
		return strconv.FormatFloat(n.Float, 'f', -1, 64)
	case NumberDecimal:
		return n.Dec.String() + "dec"
	}
	return strconv.FormatInt(n.Int, 10)
}
