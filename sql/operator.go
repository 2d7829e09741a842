package sql

// Operator identifie un opérateur binaire.
type Operator int

const (
	OpOr  Operator = iota // ||
	OpAnd                 // &&

	OpAdd // +
	OpSub // -
	OpMul // *
	OpDiv // /
	OpInc // +=
	OpDec // -=

	OpExact    // ==
	OpEqual    // =
	OpNotEqual // !=
	OpAllEqual // *=
	OpAnyEqual // ?=

	OpLike    // ~
	OpNotLike // !~
	OpAllLike // *~
	OpAnyLike // ?~

	OpLessThan        // <
	OpLessThanOrEqual // <=
	OpMoreThan        // >
	OpMoreThanOrEqual // >=

	OpContain     // CONTAINS
	OpNotContain  // CONTAINSNOT
	OpContainAll  // CONTAINSALL
	OpContainAny  // CONTAINSANY
	OpContainNone // CONTAINSNONE
	OpInside      // INSIDE
	OpNotInside   // NOTINSIDE
	OpAllInside   // ALLINSIDE
	OpAnyInside   // ANYINSIDE
	OpNoneInside  // NONEINSIDE
	OpIntersects  // INTERSECTS
)

var operatorNames = map[Operator]string{
	OpOr: "OR", OpAnd: "AND",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpInc: "+=", OpDec: "-=",
	OpExact: "==", OpEqual: "=", OpNotEqual: "!=", OpAllEqual: "*=", OpAnyEqual: "?=",
	OpLike: "~", OpNotLike: "!~", OpAllLike: "*~", OpAnyLike: "?~",
	OpLessThan: "<", OpLessThanOrEqual: "<=", OpMoreThan: ">", OpMoreThanOrEqual: ">=",
	OpContain: "CONTAINS", OpNotContain: "CONTAINSNOT", OpContainAll: "CONTAINSALL",
	OpContainAny: "CONTAINSANY", OpContainNone: "CONTAINSNONE",
	OpInside: "INSIDE", OpNotInside: "NOTINSIDE", OpAllInside: "ALLINSIDE",
	OpAnyInside: "ANYINSIDE", OpNoneInside: "NONEINSIDE", OpIntersects: "INTERSECTS",
}

func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return "?"
}

// ParseOperator retourne l'opérateur correspondant à sa forme textuelle.
func ParseOperator(s string) (Operator, bool) {
	for op, name := range operatorNames {
		if name == s {
			return op, true
		}
	}
	switch s {
	case "||":
		return OpOr, true
	case "&&":
		return OpAnd, true
	case "IS":
		return OpEqual, true
	case "IS NOT":
		return OpNotEqual, true
	}
	return 0, false
}

// Operate applique un opérateur non court-circuité à deux valeurs déjà
// calculées. Les opérateurs logiques OR/AND retournent l'opérande choisie.
func Operate(l Value, o Operator, r Value) Value {
	switch o {
	case OpOr:
		if Truthy(l) {
			return l
		}
		return r
	case OpAnd:
		if !Truthy(l) {
			return l
		}
		return r
	case OpAdd:
		return Add(l, r)
	case OpSub:
		return Sub(l, r)
	case OpMul:
		return Mul(l, r)
	case OpDiv:
		return Div(l, r)
	case OpExact:
		return Bool(Exact(l, r))
	case OpEqual:
		return Bool(Equal(l, r))
	case OpNotEqual:
		return Bool(!Equal(l, r))
	case OpAllEqual:
		return Bool(AllEqual(l, r))
	case OpAnyEqual:
		return Bool(AnyEqual(l, r))
	case OpLike:
		return Bool(Fuzzy(l, r))
	case OpNotLike:
		return Bool(!Fuzzy(l, r))
	case OpAllLike:
		return Bool(AllFuzzy(l, r))
	case OpAnyLike:
		return Bool(AnyFuzzy(l, r))
	case OpLessThan:
		return Bool(Less(l, r))
	case OpLessThanOrEqual:
		return Bool(LessOrEqual(l, r))
	case OpMoreThan:
		return Bool(More(l, r))
	case OpMoreThanOrEqual:
		return Bool(MoreOrEqual(l, r))
	case OpContain:
		return Bool(Contains(l, r))
	case OpNotContain:
		return Bool(!Contains(l, r))
	case OpContainAll:
		return Bool(ContainsAll(l, r))
	case OpContainAny:
		return Bool(ContainsAny(l, r))
	case OpContainNone:
		return Bool(!ContainsAny(l, r))
	case OpInside:
		return Bool(Contains(r, l))
	case OpNotInside:
		return Bool(!Contains(r, l))
	case OpAllInside:
		return Bool(ContainsAll(r, l))
	case OpAnyInside:
		return Bool(ContainsAny(r, l))
	case OpNoneInside:
		return Bool(!ContainsAny(r, l))
	case OpIntersects:
		return Bool(Intersects(l, r))
	}
	return None
}
