package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveSolveRecordsDurationAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector: %v", err)
	}

	collector.ObserveSolve(120*time.Millisecond, "ok")
	collector.ObserveSolve(80*time.Millisecond, "deadline")

	if got := testutil.ToFloat64(collector.RunsTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("planner_runs_total{outcome=ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.RunsTotal.WithLabelValues("deadline")); got != 1 {
		t.Fatalf("planner_runs_total{outcome=deadline} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "planner_solve_duration_seconds", nil); count != 2 {
		t.Fatalf("planner_solve_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestGaugesClampToUnitInterval(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector: %v", err)
	}

	collector.SetCoverage(1.5)
	if got := testutil.ToFloat64(collector.CoverageRatio); got != 1 {
		t.Fatalf("coverage after over-range set = %v, want 1", got)
	}
	collector.SetCoverage(-0.25)
	if got := testutil.ToFloat64(collector.CoverageRatio); got != 0 {
		t.Fatalf("coverage after under-range set = %v, want 0", got)
	}
	collector.SetPruneRatio(0.75)
	if got := testutil.ToFloat64(collector.PruneRatio); got != 0.75 {
		t.Fatalf("prune ratio = %v, want 0.75", got)
	}
}

func TestFleetCountsDriveGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector: %v", err)
	}

	collector.SetFleetCounts(2500, 128)

	if got := testutil.ToFloat64(collector.FleetUsers); got != 2500 {
		t.Fatalf("fleet_users = %v, want 2500", got)
	}
	if got := testutil.ToFloat64(collector.FleetSatellites); got != 128 {
		t.Fatalf("fleet_satellites = %v, want 128", got)
	}
}

func TestMetricsHandlerExposesPlannerSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector: %v", err)
	}
	collector.ObserveSolve(50*time.Millisecond, "ok")
	collector.SetCoverage(0.95)
	collector.SetServed(95)
	collector.AddSwaps(7)
	collector.SetPruneRatio(0.8)
	collector.SetFleetCounts(100, 24)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"planner_solve_duration_seconds",
		"planner_runs_total",
		"planner_coverage_ratio",
		"planner_users_served",
		"planner_swaps_total",
		"planner_candidate_prune_ratio",
		"fleet_users",
		"fleet_satellites",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestDuplicateRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector: %v", err)
	}
	second, err := NewPlannerCollector(reg)
	if err != nil {
		t.Fatalf("NewPlannerCollector (second): %v", err)
	}

	first.AddSwaps(3)
	second.AddSwaps(2)

	if got := testutil.ToFloat64(first.SwapsTotal); got != 5 {
		t.Fatalf("planner_swaps_total = %v, want 5 (shared counter)", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *PlannerCollector
	collector.ObserveSolve(time.Second, "ok")
	collector.SetCoverage(0.5)
	collector.SetServed(10)
	collector.AddSwaps(1)
	collector.SetPruneRatio(0.5)
	collector.SetFleetCounts(1, 1)
	if g := collector.Gatherer(); g != nil {
		t.Fatalf("nil collector gatherer = %v, want nil", g)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
