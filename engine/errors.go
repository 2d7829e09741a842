package engine

import "errors"

// Contrôle d'exécution.
var (
	// ErrIgnore : le record ne contribue pas au résultat. Ce n'est pas une
	// erreur réelle : l'itérateur l'absorbe.
	ErrIgnore = errors.New("engine: record ignored")
	// ErrQueryCancelled : la requête appartenait à une transaction annulée.
	ErrQueryCancelled = errors.New("engine: the query was not executed due to a cancelled transaction")
	// ErrQueryNotExecuted : la requête appartenait à une transaction en échec.
	ErrQueryNotExecuted = errors.New("engine: the query was not executed due to a failed transaction")
	// ErrQueryTimeout : la requête a dépassé son TIMEOUT.
	ErrQueryTimeout = errors.New("engine: the query was not executed because it exceeded the timeout")
)

// Permissions et portée.
var (
	ErrQueryPermissions = errors.New("engine: you don't have permission to perform this query type")
	ErrNsEmpty          = errors.New("engine: specify a namespace to use")
	ErrDbEmpty          = errors.New("engine: specify a database to use")
	ErrNsNotAllowed     = errors.New("engine: you don't have permission to change to this namespace")
	ErrDbNotAllowed     = errors.New("engine: you don't have permission to change to this database")
)

// Évaluation.
var (
	ErrTooManySubqueries = errors.New("engine: too many recursive subqueries")
	ErrParamNotFound     = errors.New("engine: parameter not found")
	ErrInvalidPatch      = errors.New("engine: invalid patch")
	ErrInvalidFunction   = errors.New("engine: invalid function")
	ErrInvalidArguments  = errors.New("engine: invalid function arguments")
)

// Catalogue et records.
var (
	ErrNsNotFound   = errors.New("engine: namespace does not exist")
	ErrDbNotFound   = errors.New("engine: database does not exist")
	ErrTbNotFound   = errors.New("engine: table does not exist")
	ErrRecordExists = errors.New("engine: database record already exists")
	ErrFieldValue   = errors.New("engine: field value does not satisfy its assertion")
	ErrIndexExists  = errors.New("engine: unique index already contains this value")
)

// Cibles d'instruction invalides.
var (
	ErrSelectStatement = errors.New("engine: can not execute SELECT query using the specified value")
	ErrCreateStatement = errors.New("engine: can not execute CREATE query using the specified value")
	ErrUpdateStatement = errors.New("engine: can not execute UPDATE query using the specified value")
	ErrRelateStatement = errors.New("engine: can not execute RELATE query using the specified value")
	ErrDeleteStatement = errors.New("engine: can not execute DELETE query using the specified value")
	ErrInsertStatement = errors.New("engine: can not execute INSERT query using the specified value")
)
