// Package key encode les clés du magasin clé-valeur.
//
// Chaque segment est terminé par un octet nul pour que l'ordre des octets
// suive l'ordre hiérarchique (un préfixe de nom ne déborde jamais sur un
// nom plus long). Les définitions sont marquées par '!', les conteneurs
// par '*' :
//
//	/!ns<ns>                              namespace
//	/*<ns>\x00!db<db>                     database
//	/*<ns>\x00*<db>\x00!tb<tb>            table
//	/*<ns>\x00*<db>\x00*<tb>\x00!fd<fd>   champ (idem !ev, !ix)
//	/*<ns>\x00*<db>\x00*<tb>\x00*<id>\x00 record
//	/*<ns>\x00*<db>\x00*<tb>\x00+<ix>\x00<valeurs> entrée d'index
package key

import (
	"bytes"
	"errors"
)

// ErrInvalidKey indique une clé qui n'a pas la forme attendue.
var ErrInvalidKey = errors.New("key: invalid key")

const sep = 0x00

func seg(b []byte, mark byte, name string) []byte {
	b = append(b, mark)
	b = append(b, name...)
	return append(b, sep)
}

func root() []byte { return []byte{'/'} }

func nsBase(ns string) []byte { return seg(root(), '*', ns) }

func dbBase(ns, db string) []byte { return seg(nsBase(ns), '*', db) }

func tbBase(ns, db, tb string) []byte { return seg(dbBase(ns, db), '*', tb) }

func def(base []byte, kind, name string) []byte {
	b := append(base, '!')
	b = append(b, kind...)
	return append(b, name...)
}

// NS retourne la clé de définition d'un namespace.
func NS(ns string) []byte { return def(root(), "ns", ns) }

// DB retourne la clé de définition d'une database.
func DB(ns, db string) []byte { return def(nsBase(ns), "db", db) }

// TB retourne la clé de définition d'une table.
func TB(ns, db, tb string) []byte { return def(dbBase(ns, db), "tb", tb) }

// FD retourne la clé de définition d'un champ.
func FD(ns, db, tb, fd string) []byte { return def(tbBase(ns, db, tb), "fd", fd) }

// EV retourne la clé de définition d'un événement.
func EV(ns, db, tb, ev string) []byte { return def(tbBase(ns, db, tb), "ev", ev) }

// IX retourne la clé de définition d'un index.
func IX(ns, db, tb, ix string) []byte { return def(tbBase(ns, db, tb), "ix", ix) }

// Thing retourne la clé d'un record.
func Thing(ns, db, tb, id string) []byte { return seg(tbBase(ns, db, tb), '*', id) }

// Index retourne la clé d'une entrée de l'index ix ; val est l'encodage
// des valeurs indexées.
func Index(ns, db, tb, ix string, val []byte) []byte {
	return append(seg(tbBase(ns, db, tb), '+', ix), val...)
}

// ---------- Plages de parcours ----------

// Range est une plage [Beg, End) de clés.
type Range struct {
	Beg []byte
	End []byte
}

func span(prefix []byte) Range {
	return Range{Beg: bytes.Clone(prefix), End: append(bytes.Clone(prefix), 0xff)}
}

// NSRange couvre toutes les définitions de namespace.
func NSRange() Range { return span(def(root(), "ns", "")) }

// DBRange couvre toutes les définitions de database d'un namespace.
func DBRange(ns string) Range { return span(def(nsBase(ns), "db", "")) }

// TBRange couvre toutes les définitions de table d'une database.
func TBRange(ns, db string) Range { return span(def(dbBase(ns, db), "tb", "")) }

// FDRange couvre les définitions de champ d'une table.
func FDRange(ns, db, tb string) Range { return span(def(tbBase(ns, db, tb), "fd", "")) }

// EVRange couvre les définitions d'événement d'une table.
func EVRange(ns, db, tb string) Range { return span(def(tbBase(ns, db, tb), "ev", "")) }

// IXRange couvre les définitions d'index d'une table.
func IXRange(ns, db, tb string) Range { return span(def(tbBase(ns, db, tb), "ix", "")) }

// ThingRange couvre tous les records d'une table.
func ThingRange(ns, db, tb string) Range { return span(append(tbBase(ns, db, tb), '*')) }

// IndexRange couvre toutes les entrées d'un index.
func IndexRange(ns, db, tb, ix string) Range { return span(seg(tbBase(ns, db, tb), '+', ix)) }

// TableRange couvre tout ce qui appartient à une table (définitions
// internes et records), mais pas la définition de la table elle-même.
func TableRange(ns, db, tb string) Range { return span(tbBase(ns, db, tb)) }

// DecodeThing extrait l'identifiant d'une clé de record produite par Thing.
func DecodeThing(ns, db, tb string, k []byte) (string, error) {
	p := append(tbBase(ns, db, tb), '*')
	if !bytes.HasPrefix(k, p) || len(k) <= len(p) || k[len(k)-1] != sep {
		return "", ErrInvalidKey
	}
	return string(k[len(p) : len(k)-1]), nil
}

// DecodeName extrait le nom porté par une clé de définition, c'est-à-dire
// la fin de la clé après le marqueur de type.
func DecodeName(r Range, k []byte) (string, error) {
	if !bytes.HasPrefix(k, r.Beg) {
		return "", ErrInvalidKey
	}
	return string(k[len(r.Beg):]), nil
}
