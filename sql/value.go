// Package sql définit l'arbre de valeurs et l'arbre d'instructions manipulés
// par le moteur : valeurs littérales, chemins (idioms), expressions binaires,
// appels de fonction et sous-requêtes, ainsi que l'algèbre pure sur ces valeurs
// (égalité, ordre total, arithmétique, conversions, affichage, encodage).
package sql

import (
	"time"

	"github.com/google/uuid"
)

// Value est l'union étiquetée de toutes les données manipulées par le moteur.
// Une valeur est soit entièrement littérale, soit un nœud de calcul paresseux
// (Param, Idiom, Function, Subquery, Expression) qui ne devient concrète
// qu'après évaluation.
type Value interface {
	valueNode()
}

// Constant regroupe les marqueurs d'absence.
type Constant uint8

const (
	// None : valeur absente (champ inexistant).
	None Constant = iota
	// Void : valeur explicitement vide, supprime le champ lors d'un SET.
	Void
	// Null : valeur nulle explicite.
	Null
)

func (Constant) valueNode() {}

// Bool est une valeur booléenne.
type Bool bool

const (
	False Bool = false
	True  Bool = true
)

func (Bool) valueNode() {}

// Strand est une chaîne de caractères.
type Strand string

func (Strand) valueNode() {}

// Duration est une durée.
type Duration time.Duration

func (Duration) valueNode() {}

// Datetime est un instant (toujours normalisé en UTC).
type Datetime struct {
	time.Time
}

func (Datetime) valueNode() {}

// NewDatetime crée un Datetime normalisé en UTC.
func NewDatetime(t time.Time) Datetime {
	return Datetime{Time: t.UTC()}
}

// Uuid est un identifiant universel.
type Uuid struct {
	uuid.UUID
}

func (Uuid) valueNode() {}

// NewUuid génère un UUID v4 aléatoire.
func NewUuid() Uuid {
	return Uuid{UUID: uuid.New()}
}

// Array est une liste ordonnée de valeurs.
type Array []Value

func (Array) valueNode() {}

// Object est une map de valeurs indexées par nom. L'ordre d'insertion n'a
// aucune importance : deux objets sont comparés comme des maps.
type Object map[string]Value

func (Object) valueNode() {}

// Rid retourne l'identifiant de record porté par le champ "id" de l'objet.
func (o Object) Rid() (Thing, bool) {
	t, ok := o["id"].(Thing)
	return t, ok
}

// Param référence un paramètre nommé ($name) résolu via le contexte.
type Param string

func (Param) valueNode() {}

// Table référence une table par son nom.
type Table string

func (Table) valueNode() {}

// Thing est un identifiant de record : nom de table + identifiant.
type Thing struct {
	TB string
	ID string
}

func (Thing) valueNode() {}

// Model génère Count nouveaux identifiants dans la table TB lors de l'itération.
type Model struct {
	TB    string
	Count int64
}

func (Model) valueNode() {}

// Regex est une expression régulière (syntaxe RE2).
type Regex struct {
	Source string
}

func (Regex) valueNode() {}

// FunctionKind distingue les différentes formes d'appel.
type FunctionKind uint8

const (
	FunctionNormal FunctionKind = iota // name(args...)
	FunctionCast                       // <kind> value
	FunctionFuture                     // <future> { value }
)

// Function est un appel de fonction non évalué.
// Pour un cast, Name contient le nom du type cible et Args[0] la valeur.
// Pour un future, Args[0] contient l'expression différée.
type Function struct {
	Kind FunctionKind
	Name string
	Args []Value
}

func (Function) valueNode() {}

// Subquery est une sous-requête entre parenthèses.
type Subquery struct {
	Stmt Statement
}

func (Subquery) valueNode() {}

// Expression est une expression binaire non évaluée.
type Expression struct {
	L Value
	O Operator
	R Value
}

func (Expression) valueNode() {}

// ---------- Constructeurs ----------

// Base retourne un objet vide, base de tout nouveau document.
func Base() Object {
	return Object{}
}

// NewFunction construit un appel de fonction normal.
func NewFunction(name string, args ...Value) Function {
	return Function{Kind: FunctionNormal, Name: name, Args: args}
}

// NewCast construit un cast <kind> value.
func NewCast(kind string, v Value) Function {
	return Function{Kind: FunctionCast, Name: kind, Args: []Value{v}}
}

// NewFuture construit un future <future> { value }.
func NewFuture(v Value) Function {
	return Function{Kind: FunctionFuture, Name: "future", Args: []Value{v}}
}

// NewExpression construit une expression binaire.
func NewExpression(l Value, o Operator, r Value) Expression {
	return Expression{L: l, O: o, R: r}
}

// ---------- Prédicats ----------

// IsNone indique si la valeur est absente (nil ou None).
func IsNone(v Value) bool {
	return v == nil || v == None
}

// IsNull indique si la valeur est None ou Null.
func IsNull(v Value) bool {
	return v == nil || v == None || v == Null
}

// IsLiteral indique si la valeur ne nécessite aucun calcul.
func IsLiteral(v Value) bool {
	switch v := v.(type) {
	case Param, Idiom, Function, Subquery, Expression:
		return false
	case Array:
		for _, x := range v {
			if !IsLiteral(x) {
				return false
			}
		}
	case Object:
		for _, x := range v {
			if !IsLiteral(x) {
				return false
			}
		}
	}
	return true
}

// IsAggregate indique si la fonction est une fonction d'agrégation.
func (f Function) IsAggregate() bool {
	if f.Kind != FunctionNormal {
		return false
	}
	switch f.Name {
	case "count", "math::sum", "math::max", "math::min", "math::mean":
		return true
	}
	return false
}

// Clone retourne une copie profonde des tableaux et objets. Les autres
// variantes sont immuables et retournées telles quelles.
func Clone(v Value) Value {
	switch v := v.(type) {
	case Array:
		out := make(Array, len(v))
		for i, x := range v {
			out[i] = Clone(x)
		}
		return out
	case Object:
		out := make(Object, len(v))
		for k, x := range v {
			out[k] = Clone(x)
		}
		return out
	case nil:
		return None
	}
	return v
}
