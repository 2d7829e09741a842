package sql

import "time"

// Add implémente l'opérateur + :
//   - nombre + nombre garde le type promu ;
//   - chaîne + chaîne concatène ;
//   - instant ± durée donne un instant, durée ± durée une durée ;
//   - sinon les deux opérandes sont convertis en nombres.
func Add(a, b Value) Value {
	switch x := a.(type) {
	case Number:
		if y, ok := b.(Number); ok {
			return x.Add(y)
		}
	case Strand:
		if y, ok := b.(Strand); ok {
			return x + y
		}
	case Datetime:
		if y, ok := b.(Duration); ok {
			return NewDatetime(x.Add(time.Duration(y)))
		}
	case Duration:
		switch y := b.(type) {
		case Duration:
			return x + y
		case Datetime:
			return NewDatetime(y.Add(time.Duration(x)))
		}
	}
	return AsNumber(a).Add(AsNumber(b))
}

// Sub implémente l'opérateur -.
func Sub(a, b Value) Value {
	switch x := a.(type) {
	case Number:
		if y, ok := b.(Number); ok {
			return x.Sub(y)
		}
	case Datetime:
		switch y := b.(type) {
		case Duration:
			return NewDatetime(x.Add(-time.Duration(y)))
		case Datetime:
			return Duration(x.Sub(y.Time))
		}
	case Duration:
		switch y := b.(type) {
		case Duration:
			return x - y
		case Datetime:
			return NewDatetime(y.Add(-time.Duration(x)))
		}
	}
	return AsNumber(a).Sub(AsNumber(b))
}

// Mul implémente l'opérateur *.
func Mul(a, b Value) Value {
	return AsNumber(a).Mul(AsNumber(b))
}

// Div implémente l'opérateur /. La division entière ou décimale par zéro
// donne None.
func Div(a, b Value) Value {
	if r, ok := AsNumber(a).Div(AsNumber(b)); ok {
		return r
	}
	return None
}
