package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Felmond13/novusgraph/concurrency"
	"github.com/Felmond13/novusgraph/logger"
)

// Memory est un datastore en mémoire. Les écritures d'une transaction sont
// tamponnées puis appliquées atomiquement à la validation ; les clés écrites
// sont verrouillées jusqu'à la fin de la transaction.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	keys   []string // triées
	locks  *concurrency.LockManager
	log    *slog.Logger
	closed bool

	// persist est appelé sous verrou après chaque validation (backend
	// fichier), avec le contenu validé et les écritures de la transaction.
	persist func(data map[string][]byte, writes map[string]pending) error
}

// MemoryOption configure un datastore mémoire.
type MemoryOption func(*Memory)

// WithLockManager remplace le gestionnaire de verrous par défaut.
func WithLockManager(lm *concurrency.LockManager) MemoryOption {
	return func(m *Memory) { m.locks = lm }
}

// WithLogger définit le logger du datastore.
func WithLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) { m.log = l }
}

// NewMemory crée un datastore mémoire vide.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		data:  make(map[string][]byte),
		locks: concurrency.NewLockManager(concurrency.LockPolicyWait),
		log:   logger.Get(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Transaction ouvre une transaction mémoire.
func (m *Memory) Transaction(ctx context.Context, write, lock bool) (Transaction, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("storage: datastore closed")
	}
	return &memTx{ds: m, write: write, lock: lock, writes: make(map[string]pending)}, nil
}

// Close ferme le datastore.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len retourne le nombre de clés validées.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// load remplace le contenu (ouverture d'un instantané).
func (m *Memory) load(data map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.keys = m.keys[:0]
	for k := range data {
		m.keys = append(m.keys, k)
	}
	sort.Strings(m.keys)
}

func (m *Memory) insertKey(k string) {
	i := sort.SearchStrings(m.keys, k)
	if i < len(m.keys) && m.keys[i] == k {
		return
	}
	m.keys = append(m.keys, "")
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = k
}

func (m *Memory) removeKey(k string) {
	i := sort.SearchStrings(m.keys, k)
	if i < len(m.keys) && m.keys[i] == k {
		m.keys = append(m.keys[:i], m.keys[i+1:]...)
	}
}

// pending est une écriture tamponnée ; del marque une suppression.
type pending struct {
	val []byte
	del bool
}

type memTx struct {
	mu     sync.Mutex
	ds     *Memory
	write  bool
	lock   bool
	done   bool
	writes map[string]pending
	held   []string
}

func (tx *memTx) Closed() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.done
}

func (tx *memTx) release() {
	for _, k := range tx.held {
		tx.ds.locks.Release(k)
	}
	tx.held = nil
}

func (tx *memTx) Cancel() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTxFinished
	}
	tx.done = true
	tx.writes = nil
	tx.release()
	return nil
}

func (tx *memTx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTxFinished
	}
	if !tx.write {
		return ErrTxReadonly
	}
	tx.done = true
	defer tx.release()
	if len(tx.writes) == 0 {
		return nil
	}

	m := tx.ds
	m.mu.Lock()
	defer m.mu.Unlock()
	undo := make(map[string]pending, len(tx.writes))
	for k, w := range tx.writes {
		if old, ok := m.data[k]; ok {
			undo[k] = pending{val: old}
		} else {
			undo[k] = pending{del: true}
		}
		m.apply(k, w)
	}
	if m.persist != nil {
		if err := m.persist(m.data, tx.writes); err != nil {
			for k, w := range undo {
				m.apply(k, w)
			}
			m.log.Error("journal write failed, commit rolled back", "error", err)
			return fmt.Errorf("storage: commit: %w", err)
		}
	}
	return nil
}

func (m *Memory) apply(k string, w pending) {
	if w.del {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			m.removeKey(k)
		}
		return
	}
	if _, ok := m.data[k]; !ok {
		m.insertKey(k)
	}
	m.data[k] = w.val
}

func (tx *memTx) check(write bool) error {
	if tx.done {
		return ErrTxFinished
	}
	if write && !tx.write {
		return ErrTxReadonly
	}
	return nil
}

// acquire verrouille la clé pour la durée de la transaction.
func (tx *memTx) acquire(ctx context.Context, k string) error {
	if _, ok := tx.writes[k]; ok {
		return nil
	}
	for _, h := range tx.held {
		if h == k {
			return nil
		}
	}
	if err := tx.ds.locks.Acquire(ctx, k); err != nil {
		return err
	}
	tx.held = append(tx.held, k)
	return nil
}

func (tx *memTx) get(k string) ([]byte, bool) {
	if w, ok := tx.writes[k]; ok {
		if w.del {
			return nil, false
		}
		return w.val, true
	}
	tx.ds.mu.RLock()
	defer tx.ds.mu.RUnlock()
	v, ok := tx.ds.data[k]
	return v, ok
}

func (tx *memTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(false); err != nil {
		return nil, err
	}
	k := string(key)
	if tx.lock && tx.write {
		if err := tx.acquire(ctx, k); err != nil {
			return nil, err
		}
	}
	v, ok := tx.get(k)
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (tx *memTx) Set(ctx context.Context, key, val []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}
	k := string(key)
	if err := tx.acquire(ctx, k); err != nil {
		return err
	}
	tx.writes[k] = pending{val: bytes.Clone(val)}
	return nil
}

func (tx *memTx) Put(ctx context.Context, key, val []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}
	k := string(key)
	if err := tx.acquire(ctx, k); err != nil {
		return err
	}
	if _, ok := tx.get(k); ok {
		return fmt.Errorf("%w: %q", ErrKeyExists, key)
	}
	tx.writes[k] = pending{val: bytes.Clone(val)}
	return nil
}

func (tx *memTx) Del(ctx context.Context, key []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(true); err != nil {
		return err
	}
	k := string(key)
	if err := tx.acquire(ctx, k); err != nil {
		return err
	}
	tx.writes[k] = pending{del: true}
	return nil
}

func (tx *memTx) Exi(ctx context.Context, key []byte) (bool, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(false); err != nil {
		return false, err
	}
	_, ok := tx.get(string(key))
	return ok, nil
}

func (tx *memTx) Scan(ctx context.Context, beg, end []byte, limit uint32) ([]KV, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(false); err != nil {
		return nil, err
	}
	lo, hi := string(beg), string(end)

	// Clés validées de la plage, fusionnées avec les écritures tamponnées
	seen := make(map[string]struct{})
	var keys []string
	tx.ds.mu.RLock()
	for i := sort.SearchStrings(tx.ds.keys, lo); i < len(tx.ds.keys) && tx.ds.keys[i] < hi; i++ {
		keys = append(keys, tx.ds.keys[i])
		seen[tx.ds.keys[i]] = struct{}{}
	}
	tx.ds.mu.RUnlock()
	for k, w := range tx.writes {
		if _, ok := seen[k]; !ok && !w.del && k >= lo && k < hi {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, ok := tx.get(k)
		if !ok {
			continue
		}
		out = append(out, KV{Key: []byte(k), Value: bytes.Clone(v)})
		if limit > 0 && uint32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}
