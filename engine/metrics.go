package engine

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Felmond13/novusgraph/sql"
)

var (
	// StatementsTotal compte les instructions exécutées par type et statut.
	StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novusgraph_statements_total",
			Help: "Total number of executed statements",
		},
		[]string{"kind", "status"},
	)
	// StatementDuration est la durée de calcul des instructions.
	StatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novusgraph_statement_duration_seconds",
			Help:    "Statement execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	// TransactionsTotal compte les transactions terminées (commit ou cancel).
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novusgraph_transactions_total",
			Help: "Total number of finished transactions",
		},
		[]string{"outcome"},
	)
)

// statementKind retourne le libellé de métrique d'une instruction :
// *sql.SelectStatement → "select".
func statementKind(stm sql.Statement) string {
	name := fmt.Sprintf("%T", stm)
	name = strings.TrimPrefix(name, "*sql.")
	name = strings.TrimSuffix(name, "Statement")
	return strings.ToLower(name)
}
