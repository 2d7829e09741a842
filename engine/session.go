package engine

import (
	"context"

	"github.com/Felmond13/novusgraph/sql"
)

// paramKey indexe un paramètre nommé dans le contexte.
type paramKey string

// WithParam retourne un contexte enfant où $name vaut v. Le parent n'est
// pas modifié ; la liaison masque une éventuelle liaison du même nom.
func WithParam(ctx context.Context, name string, v sql.Value) context.Context {
	return context.WithValue(ctx, paramKey(name), v)
}

// Param retourne la valeur liée à $name dans la chaîne de contextes.
func Param(ctx context.Context, name string) (sql.Value, bool) {
	v, ok := ctx.Value(paramKey(name)).(sql.Value)
	return v, ok
}

// Session décrit la connexion qui exécute les requêtes.
type Session struct {
	Auth *Auth
	IP   string // adresse de la connexion
	Or   string // origine de la connexion
	ID   string // identifiant de la connexion
	NS   string
	DB   string
	SC   string    // scope d'authentification
	SD   sql.Value // données d'authentification du scope
}

// Options retourne les options initiales de la session.
func (s *Session) Options() Options {
	return NewOptions(s.Auth).WithNS(s.NS).WithDB(s.DB)
}

// Context lie $session, $scope et $auth au contexte.
func (s *Session) Context(ctx context.Context) context.Context {
	ctx = WithParam(ctx, "session", s.Value())
	ctx = WithParam(ctx, "scope", optStrand(s.SC))
	sd := s.SD
	if sd == nil {
		sd = sql.None
	}
	return WithParam(ctx, "auth", sd)
}

// Value retourne la session sous forme d'objet.
func (s *Session) Value() sql.Object {
	return sql.Object{
		"ip": optStrand(s.IP),
		"or": optStrand(s.Or),
		"id": optStrand(s.ID),
		"ns": optStrand(s.NS),
		"db": optStrand(s.DB),
		"sc": optStrand(s.SC),
	}
}

func optStrand(s string) sql.Value {
	if s == "" {
		return sql.None
	}
	return sql.Strand(s)
}
