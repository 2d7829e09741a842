// Package storage définit le contrat du magasin clé-valeur transactionnel
// consommé par le moteur, et en fournit trois implémentations : mémoire,
// fichier (mémoire + journal + instantané compressé) et SQLite.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrTxFinished : la transaction est déjà validée ou annulée.
	ErrTxFinished = errors.New("storage: transaction already finished")
	// ErrTxReadonly : écriture ou validation sur une transaction en lecture seule.
	ErrTxReadonly = errors.New("storage: transaction is read-only")
	// ErrKeyExists : Put sur une clé déjà présente.
	ErrKeyExists = errors.New("storage: key already exists")
	// ErrLocked : la base est verrouillée par un autre processus.
	ErrLocked = errors.New("storage: datastore is locked")
)

// KV est une paire clé/valeur retournée par Scan.
type KV struct {
	Key   []byte
	Value []byte
}

// Datastore ouvre des transactions sur un magasin clé-valeur.
type Datastore interface {
	// Transaction ouvre une transaction. write autorise les écritures ;
	// lock demande un verrouillage pessimiste des clés lues.
	Transaction(ctx context.Context, write, lock bool) (Transaction, error)
	Close() error
}

// Transaction est une transaction du magasin. Elle est consommée une seule
// fois par Commit ou Cancel ; toute utilisation ultérieure retourne
// ErrTxFinished.
type Transaction interface {
	Closed() bool
	Cancel() error
	Commit() error

	// Get retourne nil si la clé est absente.
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, val []byte) error
	// Put écrit une clé qui ne doit pas exister.
	Put(ctx context.Context, key, val []byte) error
	Del(ctx context.Context, key []byte) error
	Exi(ctx context.Context, key []byte) (bool, error)
	// Scan retourne au plus limit paires de la plage [beg, end) dans l'ordre
	// des clés. limit == 0 signifie sans limite.
	Scan(ctx context.Context, beg, end []byte, limit uint32) ([]KV, error)
}
