package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/Felmond13/novusgraph/config"
	"github.com/Felmond13/novusgraph/key"
	"github.com/Felmond13/novusgraph/logger"
	"github.com/Felmond13/novusgraph/sql"
)

// scanBatch est le nombre de records lus par appel à Scan.
const scanBatch = 1000

// staged est une valeur préparée, avant expansion en records.
type staged struct {
	val sql.Value
	ext extras
}

// pair est un record (ou une valeur) prêt à traverser le pipeline.
type pair struct {
	id  *sql.Thing
	val sql.Value
	ext extras
}

// Iterator collecte les cibles d'une instruction, les fait traverser le
// pipeline document puis met en forme les résultats.
type Iterator struct {
	stm      sql.Statement
	parallel bool
	split    []sql.Idiom
	group    []sql.Idiom
	order    []sql.Order
	limit    *int
	start    *int

	readies []staged
	results []sql.Value

	mu     sync.Mutex
	err    error
	cancel context.CancelFunc
}

// NewIterator crée un itérateur pour une instruction.
func NewIterator(stm sql.Statement) *Iterator {
	it := &Iterator{stm: stm}
	switch s := stm.(type) {
	case *sql.SelectStatement:
		it.parallel = s.Parallel
		it.split, it.group, it.order = s.Split, s.Group, s.Order
		it.limit, it.start = s.Limit, s.Start
	case *sql.CreateStatement:
		it.parallel = s.Parallel
	case *sql.UpdateStatement:
		it.parallel = s.Parallel
	case *sql.RelateStatement:
		it.parallel = s.Parallel
	case *sql.DeleteStatement:
		it.parallel = s.Parallel
	case *sql.InsertStatement:
		it.parallel = s.Parallel
	}
	return it
}

// ---------- Préparation ----------

// Prepare ajoute une cible : table, record, modèle, tableau ou valeur.
func (it *Iterator) Prepare(v sql.Value) {
	it.readies = append(it.readies, staged{val: v})
}

// Produce ajoute un nouveau record d'identifiant généré dans la table tb.
func (it *Iterator) Produce(tb string) error {
	id, err := newID()
	if err != nil {
		return err
	}
	it.Prepare(sql.Thing{TB: tb, ID: id})
	return nil
}

func (it *Iterator) prepareRelate(edge, from, with sql.Thing) {
	it.readies = append(it.readies, staged{val: edge, ext: extras{relate: true, from: from, with: with}})
}

func (it *Iterator) prepareInsert(id sql.Thing, content sql.Value) {
	it.readies = append(it.readies, staged{val: id, ext: extras{insert: content}})
}

func newID() (string, error) {
	id, err := gonanoid.Generate(config.IDChars, config.IDLength)
	if err != nil {
		return "", fmt.Errorf("engine: generate id: %w", err)
	}
	return id, nil
}

// ---------- Sortie ----------

// Output fait traverser le pipeline à toutes les cibles puis applique, dans
// cet ordre, SPLIT, GROUP, ORDER, START et LIMIT.
func (it *Iterator) Output(ctx context.Context, opt Options, txn *Transaction) (sql.Value, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	it.cancel = cancel

	var err error
	if it.parallel && len(it.readies) > 1 {
		err = it.iterateParallel(ctx, opt, txn)
	} else {
		err = it.iterate(ctx, opt, txn)
	}
	if err != nil {
		return nil, err
	}
	if it.err != nil {
		return nil, it.err
	}

	if err := it.outputSplit(ctx, opt, txn); err != nil {
		return nil, err
	}
	if err := it.outputOrder(ctx, opt, txn); err != nil {
		return nil, err
	}
	it.outputStart()
	it.outputLimit()
	return append(sql.Array{}, it.results...), nil
}

func (it *Iterator) iterate(ctx context.Context, opt Options, txn *Transaction) error {
	for _, r := range it.readies {
		err := it.expand(ctx, opt, txn, r.val, r.ext, func(p pair) bool {
			it.process(ctx, opt, txn, p)
			return ctx.Err() == nil
		})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil
}

// iterateParallel expanse chaque cible dans une tâche du pool ; un seul
// consommateur fait traverser le pipeline aux records reçus.
func (it *Iterator) iterateParallel(ctx context.Context, opt Options, txn *Transaction) error {
	var (
		wg      sync.WaitGroup
		produce error
		once    sync.Once
	)
	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		once.Do(func() { produce = err })
		it.cancel()
	}

	size := min(len(it.readies), opt.Tasks())
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		logger.FromContext(ctx).Error("iterator task panicked", "panic", p)
	}))
	if err != nil {
		return fmt.Errorf("engine: iterator pool: %w", err)
	}
	defer pool.Release()

	pairs := make(chan pair)

	go func() {
		for _, r := range it.readies {
			r := r
			wg.Add(1)
			task := func() {
				defer wg.Done()
				// l'erreur doit être posée avant wg.Done
				defer func() {
					if p := recover(); p != nil {
						logger.FromContext(ctx).Error("iterator task panicked", "panic", p)
						fail(fmt.Errorf("engine: iterator task panicked: %v", p))
					}
				}()
				err := it.expand(ctx, opt, txn, r.val, r.ext, func(p pair) bool {
					select {
					case pairs <- p:
						return true
					case <-ctx.Done():
						return false
					}
				})
				if err != nil {
					fail(err)
				}
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				fail(fmt.Errorf("engine: iterator submit: %w", err))
				break
			}
		}
		wg.Wait()
		close(pairs)
	}()

	for p := range pairs {
		it.process(ctx, opt, txn, p)
	}
	return produce
}

// expand convertit une cible en records et les transmet à emit, qui
// retourne false pour interrompre le parcours.
func (it *Iterator) expand(ctx context.Context, opt Options, txn *Transaction, v sql.Value, ext extras, emit func(pair) bool) error {
	if ctx.Err() != nil {
		return nil
	}
	switch x := v.(type) {
	case sql.Table:
		return it.scanTable(ctx, opt, txn, string(x), emit)

	case sql.Thing:
		rec, err := txn.GetRecord(ctx, opt.NS, opt.DB, x)
		if err != nil {
			return err
		}
		emit(pair{id: &x, val: rec, ext: ext})
		return nil

	case sql.Model:
		for i := int64(0); i < x.Count; i++ {
			id, err := newID()
			if err != nil {
				return err
			}
			if !emit(pair{id: &sql.Thing{TB: x.TB, ID: id}, val: sql.None}) {
				return nil
			}
		}
		return nil

	case sql.Array:
		for _, e := range x {
			switch e.(type) {
			case sql.Table, sql.Thing, sql.Model, sql.Array:
				if err := it.expand(ctx, opt, txn, e, ext, emit); err != nil {
					return err
				}
			default:
				if !emit(pair{val: e}) {
					return nil
				}
			}
			if ctx.Err() != nil {
				return nil
			}
		}
		return nil
	}
	emit(pair{val: v})
	return nil
}

// scanTable parcourt les records d'une table par lots.
func (it *Iterator) scanTable(ctx context.Context, opt Options, txn *Transaction, tb string, emit func(pair) bool) error {
	rng := key.ThingRange(opt.NS, opt.DB, tb)
	for {
		kvs, err := txn.Scan(ctx, rng, scanBatch)
		if err != nil {
			return err
		}
		for _, kv := range kvs {
			id, err := key.DecodeThing(opt.NS, opt.DB, tb, kv.Key)
			if err != nil {
				return err
			}
			val, err := sql.Decode(kv.Value)
			if err != nil {
				return err
			}
			if !emit(pair{id: &sql.Thing{TB: tb, ID: id}, val: val}) {
				return nil
			}
		}
		if len(kvs) < scanBatch || ctx.Err() != nil {
			return nil
		}
		rng.Beg = append(bytes.Clone(kvs[len(kvs)-1].Key), 0)
	}
}

// process fait traverser le pipeline à un record puis collecte le résultat.
func (it *Iterator) process(ctx context.Context, opt Options, txn *Transaction, p pair) {
	if ctx.Err() != nil {
		return
	}
	doc := NewDocument(p.id, p.val)
	doc.ext = p.ext
	res, err := doc.process(ctx, opt, txn, it.stm)
	it.result(res, err)
}

// result ignore ErrIgnore, mémorise la première erreur et annule le
// parcours dès que START + LIMIT résultats sont collectés sans tri ni
// regroupement.
func (it *Iterator) result(v sql.Value, err error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	switch {
	case errors.Is(err, ErrIgnore):
		return
	case err != nil:
		if it.err == nil {
			it.err = err
		}
		it.cancel()
		return
	}
	it.results = append(it.results, v)
	if it.limit != nil && len(it.split) == 0 && len(it.group) == 0 && len(it.order) == 0 {
		if len(it.results) >= *it.limit+it.skip() {
			it.cancel()
		}
	}
}

func (it *Iterator) skip() int {
	if it.start == nil || *it.start < 0 {
		return 0
	}
	return *it.start
}

// ---------- Mise en forme ----------

// outputSplit déplie chaque résultat sur les éléments des champs SPLIT.
func (it *Iterator) outputSplit(ctx context.Context, opt Options, txn *Transaction) error {
	for _, path := range it.split {
		out := make([]sql.Value, 0, len(it.results))
		for _, r := range it.results {
			v, err := Get(ctx, opt, txn, r, path)
			if err != nil {
				return err
			}
			arr, ok := v.(sql.Array)
			if !ok {
				out = append(out, r)
				continue
			}
			for _, e := range arr {
				nr, err := Set(ctx, opt, txn, sql.Clone(r), path, e)
				if err != nil {
					return err
				}
				out = append(out, nr)
			}
		}
		it.results = out
	}
	return nil
}

// outputOrder trie les résultats de façon stable sur les clés ORDER BY.
func (it *Iterator) outputOrder(ctx context.Context, opt Options, txn *Transaction) error {
	if len(it.order) == 0 {
		return nil
	}
	type keyed struct {
		keys []sql.Value
		val  sql.Value
	}
	rows := make([]keyed, len(it.results))
	for i, r := range it.results {
		keys := make([]sql.Value, len(it.order))
		for j, o := range it.order {
			k, err := Get(ctx, opt, txn, r, o.Path)
			if err != nil {
				return err
			}
			keys[j] = k
		}
		rows[i] = keyed{keys: keys, val: r}
	}
	slices.SortStableFunc(rows, func(a, b keyed) int {
		for j, o := range it.order {
			c := sql.Compare(a.keys[j], b.keys[j])
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	for i, r := range rows {
		it.results[i] = r.val
	}
	return nil
}

func (it *Iterator) outputStart() {
	n := it.skip()
	if n >= len(it.results) {
		it.results = it.results[:0]
		return
	}
	it.results = it.results[n:]
}

func (it *Iterator) outputLimit() {
	if it.limit == nil {
		return
	}
	n := max(*it.limit, 0)
	if n < len(it.results) {
		it.results = it.results[:n]
	}
}
