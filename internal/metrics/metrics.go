// Package metrics holds the prometheus collectors of the rewrite engine
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ksym"

type Metrics struct {
	// RewriteSteps counts applied rewrite rules
	RewriteSteps   prometheus.Counter
	// CandidateRules observes how many rules the index returned per query
	CandidateRules prometheus.Histogram
	// Unifications counts unification attempts by outcome (solved, failed)
	Unifications   *prometheus.CounterVec
	// SolverResults counts decision procedure answers by result (sat, unsat, unknown, error)
	SolverResults  *prometheus.CounterVec
	IndexBuilds    prometheus.Counter
	// SearchStates counts distinct states visited by Search
	SearchStates   prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RewriteSteps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewrite",
			Name:      "steps_total",
			Help:      "Rewrite rules applied",
		}),
		CandidateRules: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "candidate_rules",
			Help:      "Rules returned by an index query",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		}),
		Unifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "symbolic",
			Name:      "unifications_total",
			Help:      "Unification attempts of a rule against a term, by outcome",
		}, []string{"outcome"}),
		SolverResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "smt",
			Name:      "results_total",
			Help:      "Answers of the decision procedure",
		}, []string{"result"}),
		IndexBuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Index table (re)builds",
		}),
		SearchStates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewrite",
			Name:      "search_states_total",
			Help:      "Distinct states visited by search",
		}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the collectors registered with prometheus.DefaultRegisterer
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Discard returns unregistered collectors
func Discard() *Metrics {
	return New(nil)
}
