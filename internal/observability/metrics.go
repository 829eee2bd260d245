package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PlannerCollector bundles Prometheus metrics for the beam planner and the
// fleet knowledge base. It satisfies core.PlannerMetrics and
// kb.FleetMetricsRecorder so both layers can drive it directly.
type PlannerCollector struct {
	gatherer prometheus.Gatherer

	SolveDuration prometheus.Histogram
	RunsTotal     *prometheus.CounterVec
	CoverageRatio prometheus.Gauge
	UsersServed   prometheus.Gauge
	SwapsTotal    prometheus.Counter
	PruneRatio    prometheus.Gauge

	FleetUsers      prometheus.Gauge
	FleetSatellites prometheus.Gauge
}

// NewPlannerCollector registers planner Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewPlannerCollector(reg prometheus.Registerer) (*PlannerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	solveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_solve_duration_seconds",
		Help:    "Wall-clock duration of complete planning runs in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
	solveDuration, err := registerHistogram(reg, solveDuration, "planner_solve_duration_seconds")
	if err != nil {
		return nil, err
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_runs_total",
		Help: "Total number of planning runs, labeled by outcome (ok, violations, deadline).",
	}, []string{"outcome"})
	runs, err = registerCounterVec(reg, runs, "planner_runs_total")
	if err != nil {
		return nil, err
	}

	coverage, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_coverage_ratio",
		Help: "Fraction of users served by the most recent plan.",
	}), "planner_coverage_ratio")
	if err != nil {
		return nil, err
	}
	served, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_users_served",
		Help: "Number of users served by the most recent plan.",
	}), "planner_users_served")
	if err != nil {
		return nil, err
	}
	swaps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_swaps_total",
		Help: "Cumulative number of relocation swaps committed during refinement.",
	}), "planner_swaps_total")
	if err != nil {
		return nil, err
	}
	pruneRatio, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_candidate_prune_ratio",
		Help: "Fraction of user/satellite pairs skipped by the candidate index.",
	}), "planner_candidate_prune_ratio")
	if err != nil {
		return nil, err
	}

	fleetUsers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_users",
		Help: "Current number of users in the fleet knowledge base.",
	}), "fleet_users")
	if err != nil {
		return nil, err
	}
	fleetSatellites, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_satellites",
		Help: "Current number of satellites in the fleet knowledge base.",
	}), "fleet_satellites")
	if err != nil {
		return nil, err
	}

	return &PlannerCollector{
		gatherer:        gatherer,
		SolveDuration:   solveDuration,
		RunsTotal:       runs,
		CoverageRatio:   coverage,
		UsersServed:     served,
		SwapsTotal:      swaps,
		PruneRatio:      pruneRatio,
		FleetUsers:      fleetUsers,
		FleetSatellites: fleetSatellites,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PlannerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PlannerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveSolve records one completed planning run.
func (c *PlannerCollector) ObserveSolve(d time.Duration, outcome string) {
	if c == nil {
		return
	}
	if c.SolveDuration != nil {
		c.SolveDuration.Observe(d.Seconds())
	}
	if c.RunsTotal != nil {
		c.RunsTotal.WithLabelValues(outcome).Inc()
	}
}

// SetCoverage updates the coverage gauge, clamping to [0, 1].
func (c *PlannerCollector) SetCoverage(ratio float64) {
	if c == nil || c.CoverageRatio == nil {
		return
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	c.CoverageRatio.Set(ratio)
}

// SetServed updates the served-users gauge.
func (c *PlannerCollector) SetServed(count int) {
	if c == nil || c.UsersServed == nil {
		return
	}
	c.UsersServed.Set(float64(count))
}

// AddSwaps adds committed swaps from a refinement pass.
func (c *PlannerCollector) AddSwaps(n int) {
	if c == nil || c.SwapsTotal == nil || n <= 0 {
		return
	}
	c.SwapsTotal.Add(float64(n))
}

// SetPruneRatio updates the candidate prune ratio gauge, clamping to [0, 1].
func (c *PlannerCollector) SetPruneRatio(ratio float64) {
	if c == nil || c.PruneRatio == nil {
		return
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	c.PruneRatio.Set(ratio)
}

// SetFleetCounts satisfies the FleetMetricsRecorder interface so the fleet
// knowledge base can drive gauge values directly from its mutators.
func (c *PlannerCollector) SetFleetCounts(users, satellites int) {
	if c == nil {
		return
	}
	if c.FleetUsers != nil {
		c.FleetUsers.Set(float64(users))
	}
	if c.FleetSatellites != nil {
		c.FleetSatellites.Set(float64(satellites))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
