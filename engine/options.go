package engine

import (
	"fmt"

	"github.com/Felmond13/novusgraph/config"
)

// Level est un niveau de permission requis par une opération.
type Level uint8

const (
	LevelNo Level = iota
	LevelKv
	LevelNs
	LevelDb
	LevelSc
)

func (l Level) String() string {
	switch l {
	case LevelKv:
		return "KV"
	case LevelNs:
		return "NS"
	case LevelDb:
		return "DB"
	case LevelSc:
		return "SC"
	}
	return "NO"
}

// Auth décrit le niveau d'authentification d'une session et la portée
// qui lui a été accordée.
type Auth struct {
	Level Level
	NS    string
	DB    string
	SC    string
}

// Constructeurs de niveaux d'authentification.
func AuthNo() *Auth                  { return &Auth{Level: LevelNo} }
func AuthKv() *Auth                  { return &Auth{Level: LevelKv} }
func AuthNs(ns string) *Auth         { return &Auth{Level: LevelNs, NS: ns} }
func AuthDb(ns, db string) *Auth     { return &Auth{Level: LevelDb, NS: ns, DB: db} }
func AuthSc(ns, db, sc string) *Auth { return &Auth{Level: LevelSc, NS: ns, DB: db, SC: sc} }

// Check indique si l'authentification autorise le niveau demandé.
// KV autorise tout ; NS tout sauf KV ; DB les niveaux DB et SC ; SC
// uniquement SC. Une session non authentifiée n'a accès qu'au niveau NO.
func (a *Auth) Check(level Level) bool {
	if a == nil {
		return level == LevelNo
	}
	switch a.Level {
	case LevelKv:
		return true
	case LevelNs:
		return level != LevelKv
	case LevelDb:
		return level == LevelNo || level == LevelDb || level == LevelSc
	case LevelSc:
		return level == LevelNo || level == LevelSc
	}
	return level == LevelNo
}

// Options est l'instantané de configuration transmis à chaque calcul.
// C'est une valeur : chaque With* retourne une copie modifiée et ne
// touche jamais l'original.
type Options struct {
	NS   string // vide si non sélectionné
	DB   string // vide si non sélectionné
	Auth *Auth

	dive     int
	maxDive  int
	maxTasks int

	Debug   bool // renvoyer le texte des instructions
	Force   bool // réécrire même sans modification
	Fields  bool // appliquer les DEFINE FIELD
	Events  bool // déclencher les DEFINE EVENT
	Tables  bool // traiter les tables étrangères
	Futures bool // évaluer les futures
}

// NewOptions retourne les options par défaut pour une authentification.
func NewOptions(auth *Auth) Options {
	return Options{
		Auth:     auth,
		maxDive:  config.MaxRecursiveQueries,
		maxTasks: config.MaxConcurrentTasks,
		Fields:   true,
		Events:   true,
		Tables:   true,
	}
}

func (o Options) WithNS(ns string) Options   { o.NS = ns; return o }
func (o Options) WithDB(db string) Options   { o.DB = db; return o }
func (o Options) WithDebug(v bool) Options   { o.Debug = v; return o }
func (o Options) WithForce(v bool) Options   { o.Force = v; return o }
func (o Options) WithFields(v bool) Options  { o.Fields = v; return o }
func (o Options) WithEvents(v bool) Options  { o.Events = v; return o }
func (o Options) WithTables(v bool) Options  { o.Tables = v; return o }
func (o Options) WithFutures(v bool) Options { o.Futures = v; return o }
func (o Options) WithMaxDepth(n int) Options { o.maxDive = n; return o }
func (o Options) WithMaxTasks(n int) Options { o.maxTasks = n; return o }

// WithImport règle ensemble champs, événements et tables.
func (o Options) WithImport(v bool) Options {
	o.Fields, o.Events, o.Tables = v, v, v
	return o
}

// Tasks retourne la taille maximale du pool du parcours parallèle.
func (o Options) Tasks() int {
	if o.maxTasks <= 0 {
		return config.MaxConcurrentTasks
	}
	return o.maxTasks
}

// Depth retourne la profondeur de sous-requête courante.
func (o Options) Depth() int { return o.dive }

// Dive retourne les options d'une sous-requête, ou ErrTooManySubqueries
// si la profondeur maximale est atteinte.
func (o Options) Dive() (Options, error) {
	limit := o.maxDive
	if limit <= 0 {
		limit = config.MaxRecursiveQueries
	}
	if o.dive >= limit {
		return o, fmt.Errorf("%w: limit %d", ErrTooManySubqueries, o.dive)
	}
	o.dive++
	return o, nil
}

// Check vérifie, dans cet ordre, la permission, le namespace puis la base.
func (o Options) Check(level Level) error {
	if !o.Auth.Check(level) {
		return ErrQueryPermissions
	}
	if o.NS == "" {
		return ErrNsEmpty
	}
	if o.DB == "" {
		return ErrDbEmpty
	}
	return nil
}
