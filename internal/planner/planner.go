// Package planner is the compilation facade: it takes a validated report
// and a frozen graph through logical planning, physical candidate
// generation, cost-based selection and SQL emission in one synchronous
// call. Planning is a pure function of (report, graph, dialect, config);
// concurrent calls may share one graph with no locking.
package planner

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/druarnfield/mantis-core-sub001/internal/cost"
	"github.com/druarnfield/mantis-core-sub001/internal/emit"
	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/logical"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
	"github.com/druarnfield/mantis-core-sub001/internal/physical"
	"github.com/druarnfield/mantis-core-sub001/internal/sqlir"
)

// Planner compiles reports against one frozen graph. The zero value is not
// usable; construct with New.
type Planner struct {
	graph   *graph.Graph
	dialect sqlir.Dialect
	config  cost.Config

	// selfJoinFallback generates self-join candidates for time measures,
	// which is the only strategy on dialects without window functions.
	selfJoinFallback bool
}

// Option tunes a Planner.
type Option func(*Planner)

// WithConfig overrides the default cost model.
func WithConfig(cfg cost.Config) Option {
	return func(p *Planner) { p.config = cfg }
}

// WithoutSelfJoinFallback disables the self-join strategy for time
// measures. Reports with time suffixes then fail on dialects without
// window functions instead of emitting quadratic SQL.
func WithoutSelfJoinFallback() Option {
	return func(p *Planner) { p.selfJoinFallback = false }
}

// New builds a planner for a frozen graph and target dialect.
func New(g *graph.Graph, d sqlir.Dialect, opts ...Option) *Planner {
	p := &Planner{
		graph:            g,
		dialect:          d,
		config:           cost.DefaultConfig(),
		selfJoinFallback: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is one compilation outcome.
type Result struct {
	// SessionID correlates explain artifacts and logs for one call.
	SessionID uuid.UUID

	// SQL is the emitted statement.
	SQL string

	// Logical is the operator tree before strategy selection; Plan is the
	// chosen physical candidate.
	Logical logical.Node
	Plan    physical.Node

	// Cost is the chosen candidate's estimate; CandidateCosts holds every
	// candidate's, in generation order, for explain output.
	Cost           cost.CostEstimate
	CandidateCosts []cost.CostEstimate
	ChosenIndex    int
}

// Compile runs the full pipeline for one report.
func (p *Planner) Compile(r model.Report) (*Result, error) {
	session := uuid.New()

	lplan, err := logical.BuildPlan(p.graph, r)
	if err != nil {
		return nil, err
	}
	slog.Debug("logical plan built",
		"session", session,
		"report", r.Name,
		"tables", logical.Tables(lplan))

	candidates, err := physical.Generate(p.graph, lplan, physical.Options{
		Dialect:                p.dialect,
		EnableSelfJoinFallback: p.selfJoinFallback,
		DefaultScanRows:        int64(p.config.DefaultScanRows),
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("physical candidates generated",
		"session", session,
		"report", r.Name,
		"candidates", len(candidates))

	chosen, estimates, err := cost.SelectBest(p.graph, candidates, p.config)
	if err != nil {
		return nil, err
	}
	best, bestCost := candidates[chosen], estimates[chosen]
	slog.Debug("plan selected",
		"session", session,
		"report", r.Name,
		"chosen", chosen,
		"total_cost", bestCost.Total,
		"rows", bestCost.Rows)

	sql, err := emit.SQL(p.graph, best, p.dialect)
	if err != nil {
		return nil, err
	}

	return &Result{
		SessionID:      session,
		SQL:            sql,
		Logical:        lplan,
		Plan:           best,
		Cost:           bestCost,
		CandidateCosts: estimates,
		ChosenIndex:    chosen,
	}, nil
}
