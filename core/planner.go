package core

import (
	"context"
	"runtime"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/beam-planner/model"
	"github.com/signalsfoundry/beam-planner/timectrl"
)

const tracerName = "github.com/signalsfoundry/beam-planner/core"

// PlannerMetrics receives solve telemetry. The observability package
// provides the Prometheus-backed implementation; the planner calls it
// from the planning goroutine only.
type PlannerMetrics interface {
	ObserveSolve(d time.Duration, outcome string)
	SetCoverage(ratio float64)
	SetServed(served int)
	AddSwaps(n int)
	SetPruneRatio(ratio float64)
}

// Progress is delivered to the progress listener at phase boundaries and
// after each improvement sweep.
type Progress struct {
	Phase   string
	Served  int
	Total   int
	Elapsed time.Duration
}

// PlanResult is the outcome of one Plan call. The assignment is always
// internally valid; Violations is the validator's independent verdict and
// stays empty unless the engine itself has a bug.
type PlanResult struct {
	Assignment   model.Assignment
	TotalUsers   int
	Served       int
	Phase1Served int
	Coverage     float64
	Sweeps       int
	Swaps        int
	Candidates   CandidateStats
	Elapsed      time.Duration
	DeadlineHit  bool
	Violations   []Violation
}

// Planner wires the candidate index, the two-phase solver and the
// validator into one run. Tunables are plain fields adjusted before the
// first Plan call; collaborators arrive through options. The zero value
// is not usable; construct with NewPlanner.
type Planner struct {
	// Profile is the constraint set to plan against.
	Profile BeamProfile
	// Budget caps wall-clock solve time. 0 disables the cap.
	Budget time.Duration
	// Workers bounds parallel candidate generation.
	Workers int
	// CellDeg and ExhaustiveThreshold tune the candidate index.
	CellDeg             float64
	ExhaustiveThreshold int

	clock    timectrl.Clock
	metrics  PlannerMetrics
	progress func(Progress)
}

// PlannerOption configures optional collaborators on a Planner.
type PlannerOption func(*Planner)

// WithClock substitutes the time source, letting tests drive the budget
// with a manual clock.
func WithClock(c timectrl.Clock) PlannerOption {
	return func(p *Planner) { p.clock = c }
}

// WithMetrics attaches a solve-telemetry recorder.
func WithMetrics(m PlannerMetrics) PlannerOption {
	return func(p *Planner) { p.metrics = m }
}

// WithProgress attaches a listener for phase and sweep updates.
func WithProgress(fn func(Progress)) PlannerOption {
	return func(p *Planner) { p.progress = fn }
}

// NewPlanner returns a planner with the canonical profile and defaults.
func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{
		Profile:             DefaultBeamProfile(),
		Workers:             runtime.NumCPU(),
		CellDeg:             DefaultCellDeg,
		ExhaustiveThreshold: DefaultExhaustiveThreshold,
		clock:               timectrl.SystemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan computes a beam assignment for the fleet. The input slices are
// copied and sorted by id; they are never mutated. Identical input and a
// non-binding budget produce an identical assignment.
//
// Running out of budget, or a context cancellation, is not an error: the
// best valid assignment found so far comes back with DeadlineHit set.
// The only errors are structural, e.g. an invalid profile.
func (p *Planner) Plan(ctx context.Context, users []model.User, sats []model.Satellite) (*PlanResult, error) {
	if err := p.Profile.Validate(); err != nil {
		return nil, err
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "planner.Plan", trace.WithAttributes(
		attribute.Int("planner.users", len(users)),
		attribute.Int("planner.satellites", len(sats)),
	))
	defer span.End()

	budget := timectrl.NewBudget(p.clock, p.Budget)
	sortedUsers := sortUsersByID(users)
	sortedSats := sortSatsByID(sats)

	res := &PlanResult{TotalUsers: len(users)}

	candCtx, candSpan := tracer.Start(ctx, "planner.candidates")
	cand, err := BuildCandidates(candCtx, sortedUsers, sortedSats, p.Profile, IndexOptions{
		CellDeg:             p.CellDeg,
		ExhaustiveThreshold: p.ExhaustiveThreshold,
		Workers:             p.Workers,
		Budget:              budget,
	})
	candSpan.End()
	if err != nil {
		// Budget or context died before any candidate list was complete;
		// the empty assignment is the best valid answer available.
		res.DeadlineHit = true
		return p.finish(ctx, tracer, span, res, sortedUsers, sortedSats, budget), nil
	}
	res.Candidates = cand.Stats
	p.report(Progress{Phase: "candidates", Total: len(users), Elapsed: budget.Elapsed()})

	s := newSolver(ctx, sortedUsers, sortedSats, cand, p.Profile, budget)
	if p.progress != nil {
		total := len(users)
		s.onSweep = func(served int) {
			p.report(Progress{Phase: "improve", Served: served, Total: total, Elapsed: budget.Elapsed()})
		}
	}

	_, greedySpan := tracer.Start(ctx, "planner.greedy")
	s.greedy()
	greedySpan.End()
	res.Phase1Served = s.served
	p.report(Progress{Phase: "greedy", Served: s.served, Total: len(users), Elapsed: budget.Elapsed()})

	_, improveSpan := tracer.Start(ctx, "planner.improve")
	s.improve()
	improveSpan.End()

	res.Assignment = s.assignment(sortedUsers, sortedSats)
	res.Served = s.served
	res.Sweeps = s.sweeps
	res.Swaps = s.swaps
	res.DeadlineHit = s.deadlineHit
	return p.finish(ctx, tracer, span, res, sortedUsers, sortedSats, budget), nil
}

// finish runs the independent validation, stamps derived fields, and
// publishes telemetry. Every Plan exit passes through here so metrics and
// spans agree with the returned result.
func (p *Planner) finish(ctx context.Context, tracer trace.Tracer, span trace.Span, res *PlanResult, users []model.User, sats []model.Satellite, budget *timectrl.Budget) *PlanResult {
	_, vspan := tracer.Start(ctx, "planner.validate")
	res.Violations = Validate(users, sats, res.Assignment, p.Profile)
	vspan.End()

	res.Coverage = res.Assignment.Coverage(res.TotalUsers)
	res.Elapsed = budget.Elapsed()

	outcome := "ok"
	switch {
	case len(res.Violations) > 0:
		outcome = "violations"
	case res.DeadlineHit:
		outcome = "deadline"
	}
	span.SetAttributes(
		attribute.Int("planner.served", res.Served),
		attribute.Float64("planner.coverage", res.Coverage),
		attribute.String("planner.outcome", outcome),
	)

	if p.metrics != nil {
		p.metrics.ObserveSolve(res.Elapsed, outcome)
		p.metrics.SetCoverage(res.Coverage)
		p.metrics.SetServed(res.Served)
		p.metrics.AddSwaps(res.Swaps)
		p.metrics.SetPruneRatio(res.Candidates.PruneRatio())
	}
	p.report(Progress{Phase: "validated", Served: res.Served, Total: res.TotalUsers, Elapsed: res.Elapsed})
	return res
}

func (p *Planner) report(pr Progress) {
	if p.progress != nil {
		p.progress(pr)
	}
}

func sortUsersByID(in []model.User) []model.User {
	out := append([]model.User(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortSatsByID(in []model.Satellite) []model.Satellite {
	out := append([]model.Satellite(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
