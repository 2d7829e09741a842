package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Felmond13/novusgraph/logger"
	"github.com/Felmond13/novusgraph/sql"
	"github.com/Felmond13/novusgraph/storage"
)

// Executor exécute un lot d'instructions et gère le cycle de vie des
// transactions : implicites (une par instruction) ou explicites (entre
// BEGIN et COMMIT/CANCEL).
type Executor struct {
	ds  storage.Datastore
	log *slog.Logger

	opt Options
	txn *Transaction
	err bool // une instruction de la transaction courante a échoué
}

// ExecutorOption configure un Executor.
type ExecutorOption func(*Executor)

// WithLogger remplace le logger global.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// NewExecutor crée un exécuteur sur un magasin.
func NewExecutor(ds storage.Datastore, opts ...ExecutorOption) *Executor {
	e := &Executor{ds: ds}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logger.Get()
	}
	return e
}

// Options retourne les options en vigueur à la fin du dernier lot (après
// USE et OPTION).
func (e *Executor) Options() Options { return e.opt }

// ---------- Transactions ----------

// begin ouvre une transaction si aucune n'est ouverte et indique si elle
// vient d'être créée. Un échec d'ouverture marque la transaction en échec.
func (e *Executor) begin(ctx context.Context) (bool, error) {
	if e.txn != nil {
		return false, nil
	}
	tx, err := e.ds.Transaction(ctx, true, false)
	if err != nil {
		e.err = true
		return false, fmt.Errorf("engine: begin transaction: %w", err)
	}
	e.txn = NewTransaction(tx)
	return true, nil
}

// commit valide la transaction, ou l'annule si une instruction a échoué.
func (e *Executor) commit(local bool) {
	if !local || e.txn == nil {
		return
	}
	if e.err {
		e.finish("cancel", e.txn.Cancel())
	} else {
		e.finish("commit", e.txn.Commit())
	}
}

// cancel annule la transaction.
func (e *Executor) cancel(local bool) {
	if !local || e.txn == nil {
		return
	}
	e.finish("cancel", e.txn.Cancel())
}

func (e *Executor) finish(outcome string, err error) {
	if err != nil {
		e.err = true
		e.log.Warn("transaction finish failed", "outcome", outcome, "error", err)
		outcome = "failed"
	}
	TransactionsTotal.WithLabelValues(outcome).Inc()
	e.txn = nil
}

// ---------- Lot ----------

// Execute exécute les instructions dans l'ordre et retourne une réponse par
// instruction. Une erreur de lot (OPTION sans droits, USE refusé,
// ouverture de transaction impossible pour LET) interrompt le lot et est
// retournée avec les réponses déjà produites.
func (e *Executor) Execute(ctx context.Context, opt Options, stms []sql.Statement) ([]Response, error) {
	e.opt, e.txn, e.err = opt, nil, false
	out, buf, err := e.run(ctx, opt, stms)
	// Une transaction restée ouverte en fin de lot est annulée
	if e.txn != nil {
		e.cancel(true)
		out = append(out, cancelled(buf)...)
	}
	return out, err
}

func (e *Executor) run(ctx context.Context, opt Options, stms []sql.Statement) (out, buf []Response, _ error) {
	defer func() { e.opt = opt }()

loop:
	for _, stm := range stms {
		if e.txn == nil {
			e.err = false
		}
		now := time.Now()
		var (
			res sql.Value
			err error
		)
		switch s := stm.(type) {
		case *sql.OptionStatement:
			if err := opt.Check(LevelDb); err != nil {
				return out, buf, err
			}
			switch strings.ToUpper(s.Name) {
			case "FIELDS":
				opt = opt.WithFields(s.What)
			case "EVENTS":
				opt = opt.WithEvents(s.What)
			case "TABLES":
				opt = opt.WithTables(s.What)
			case "IMPORT":
				opt = opt.WithImport(s.What)
			case "FORCE":
				opt = opt.WithForce(s.What)
			case "DEBUG":
				opt = opt.WithDebug(s.What)
			default:
				e.log.Warn("unknown option, remaining statements skipped", "option", s.Name)
				break loop
			}
			continue

		case *sql.BeginStatement:
			if _, err := e.begin(ctx); err != nil {
				e.log.Warn("begin failed", "error", err)
			}
			continue

		case *sql.CancelStatement:
			e.cancel(true)
			out = append(out, cancelled(buf)...)
			buf = nil
			continue

		case *sql.CommitStatement:
			e.commit(true)
			out = append(out, e.committed(buf)...)
			buf = nil
			continue

		case *sql.UseStatement:
			if opt, err = use(opt, s); err != nil {
				return out, buf, err
			}
			res = sql.None

		case *sql.SetStatement:
			loc, berr := e.begin(ctx)
			if berr != nil {
				return out, buf, berr
			}
			val, cerr := computeStatement(ctx, opt, e.txn, nil, s)
			if cerr != nil {
				e.cancel(loc)
				e.log.Warn("let failed, remaining statements skipped", "param", s.Name, "error", cerr)
				break loop
			}
			ctx = WithParam(ctx, s.Name, val)
			e.cancel(loc)
			res = sql.None

		default:
			if e.err {
				err = ErrQueryNotExecuted
				break
			}
			res, err = e.compute(ctx, opt, stm)
		}

		dur := time.Since(now)
		rsp := Response{Time: dur, Result: res, Err: err}
		if opt.Debug {
			rsp.SQL = stm.String()
		}
		e.observe(stm, rsp)
		if err != nil {
			rsp.Result = nil
			e.err = true
		}

		if e.txn != nil {
			if _, ok := stm.(*sql.OutputStatement); ok {
				buf = buf[:0]
			}
			buf = append(buf, rsp)
		} else {
			out = append(out, rsp)
		}
	}
	return out, buf, nil
}

// compute exécute une instruction ordinaire dans la transaction courante,
// ou dans une transaction implicite validée ou annulée aussitôt.
func (e *Executor) compute(ctx context.Context, opt Options, stm sql.Statement) (sql.Value, error) {
	loc, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithStatement(ctx, stm.String())

	var res sql.Value
	if timeout := sql.TimeoutOf(stm); timeout > 0 {
		deadline := time.Now().Add(timeout)
		tctx, cancel := context.WithDeadline(ctx, deadline)
		res, err = computeStatement(tctx, opt, e.txn, nil, stm)
		if errors.Is(tctx.Err(), context.DeadlineExceeded) || !time.Now().Before(deadline) {
			res, err = nil, fmt.Errorf("%w: %s", ErrQueryTimeout, timeout)
		}
		cancel()
	} else {
		res, err = computeStatement(ctx, opt, e.txn, nil, stm)
	}

	if err != nil {
		e.cancel(loc)
	} else {
		e.commit(loc)
	}
	return res, err
}

// use applique USE NS/DB selon les droits de la session. Un namespace ou
// une base refusée est effacé des options.
func use(opt Options, s *sql.UseStatement) (Options, error) {
	auth := opt.Auth
	if auth == nil {
		auth = AuthNo()
	}
	if s.NS != "" {
		switch {
		case auth.Level == LevelNo, auth.Level == LevelKv,
			auth.Level == LevelNs && auth.NS == s.NS:
			opt = opt.WithNS(s.NS)
		default:
			return opt.WithNS(""), fmt.Errorf("%w: %s", ErrNsNotAllowed, s.NS)
		}
	}
	if s.DB != "" {
		switch {
		case auth.Level == LevelNo, auth.Level == LevelKv, auth.Level == LevelNs,
			auth.Level == LevelDb && auth.DB == s.DB:
			opt = opt.WithDB(s.DB)
		default:
			return opt.WithDB(""), fmt.Errorf("%w: %s", ErrDbNotAllowed, s.DB)
		}
	}
	return opt, nil
}

// ---------- Réécriture du tampon ----------

func cancelled(buf []Response) []Response {
	out := make([]Response, len(buf))
	for i, r := range buf {
		out[i] = Response{SQL: r.SQL, Time: r.Time, Err: ErrQueryCancelled}
	}
	return out
}

func (e *Executor) committed(buf []Response) []Response {
	if !e.err {
		return buf
	}
	out := make([]Response, len(buf))
	for i, r := range buf {
		if r.Err == nil {
			r = Response{SQL: r.SQL, Time: r.Time, Err: ErrQueryNotExecuted}
		}
		out[i] = r
	}
	return out
}

func (e *Executor) observe(stm sql.Statement, rsp Response) {
	kind := statementKind(stm)
	StatementsTotal.WithLabelValues(kind, rsp.Status()).Inc()
	StatementDuration.WithLabelValues(kind).Observe(rsp.Time.Seconds())
	if rsp.Err != nil {
		e.log.Warn("statement failed", "statement", stm.String(), "duration", rsp.Time, "error", rsp.Err)
		return
	}
	e.log.Debug("statement executed", "statement", stm.String(), "duration", rsp.Time)
}
