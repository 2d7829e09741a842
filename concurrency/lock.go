// Package concurrency fournit un gestionnaire de verrous exclusifs par clé,
// utilisé par le datastore mémoire pour sérialiser les écritures concurrentes.
package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLocked est retourné quand une clé est déjà verrouillée par un autre
// détenteur (politique Fail) ou que l'attente a expiré (politique Wait).
var ErrLocked = errors.New("lock: key already locked")

// LockPolicy définit le comportement quand un lock est déjà pris.
type LockPolicy int

const (
	LockPolicyWait LockPolicy = iota // attendre que le lock soit libéré
	LockPolicyFail                   // échouer immédiatement
)

// ParsePolicy convertit "wait" ou "fail" en LockPolicy (wait par défaut).
func ParsePolicy(s string) LockPolicy {
	if s == "fail" {
		return LockPolicyFail
	}
	return LockPolicyWait
}

// DefaultLockTimeout est le timeout par défaut pour l'acquisition d'un lock.
const DefaultLockTimeout = 5 * time.Second

// LockManager gère les verrous exclusifs par clé.
type LockManager struct {
	mu      sync.Mutex
	locks   map[string]*keyLock
	policy  LockPolicy
	timeout time.Duration
}

// keyLock est un sémaphore binaire : un jeton dans le canal = libre.
type keyLock struct {
	sem  chan struct{}
	refs int // acquisitions en cours ou en attente
}

// NewLockManager crée un nouveau gestionnaire de verrous.
func NewLockManager(policy LockPolicy) *LockManager {
	return &LockManager{
		locks:   make(map[string]*keyLock),
		policy:  policy,
		timeout: DefaultLockTimeout,
	}
}

// SetTimeout définit le timeout pour l'acquisition de locks.
func (lm *LockManager) SetTimeout(d time.Duration) {
	lm.mu.Lock()
	lm.timeout = d
	lm.mu.Unlock()
}

// ref retourne le verrou de la clé, en le créant si nécessaire.
func (lm *LockManager) ref(key string) (*keyLock, time.Duration) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	kl, ok := lm.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		kl.sem <- struct{}{}
		lm.locks[key] = kl
	}
	kl.refs++
	return kl, lm.timeout
}

// unref abandonne une référence et supprime le verrou inutilisé.
func (lm *LockManager) unref(key string, kl *keyLock) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(lm.locks, key)
	}
}

// Acquire acquiert un verrou exclusif sur une clé. Avec LockPolicyWait,
// l'appel attend au plus le timeout configuré, ou l'annulation du contexte.
func (lm *LockManager) Acquire(ctx context.Context, key string) error {
	kl, timeout := lm.ref(key)

	select {
	case <-kl.sem:
		return nil
	default:
	}
	if lm.policy == LockPolicyFail {
		lm.unref(key, kl)
		return fmt.Errorf("%w: %q", ErrLocked, key)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-kl.sem:
		return nil
	case <-timer.C:
		lm.unref(key, kl)
		return fmt.Errorf("%w: timeout acquiring %q", ErrLocked, key)
	case <-ctx.Done():
		lm.unref(key, kl)
		return ctx.Err()
	}
}

// Release libère le verrou exclusif sur une clé acquise par Acquire.
func (lm *LockManager) Release(key string) {
	lm.mu.Lock()
	kl, ok := lm.locks[key]
	lm.mu.Unlock()
	if !ok {
		return
	}
	select {
	case kl.sem <- struct{}{}:
	default:
		// déjà libre
		return
	}
	lm.unref(key, kl)
}

// Held retourne le nombre de clés actuellement suivies (verrouillées ou
// attendues).
func (lm *LockManager) Held() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
