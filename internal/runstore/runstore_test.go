package runstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordRunRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	in := Run{
		CreatedAt:   created,
		Scenario:    "scenarios/dense.txt",
		Fingerprint: Fingerprint([]byte("scenario-bytes")),
		Users:       2500,
		Satellites:  64,
		Served:      2433,
		Coverage:    0.9732,
		Duration:    741 * time.Millisecond,
		Sweeps:      3,
		Swaps:       41,
		DeadlineHit: false,
		Violations:  0,
	}

	id, err := store.RecordRun(ctx, in)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if id == "" {
		t.Fatal("RecordRun returned an empty id")
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("RecentRuns returned %d runs, want 1", len(runs))
	}

	got := runs[0]
	if got.ID != id {
		t.Fatalf("run id = %q, want %q", got.ID, id)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %s, want %s", got.CreatedAt, created)
	}
	if got.Scenario != in.Scenario || got.Fingerprint != in.Fingerprint {
		t.Fatalf("scenario fields = %q/%q, want %q/%q", got.Scenario, got.Fingerprint, in.Scenario, in.Fingerprint)
	}
	if got.Users != in.Users || got.Satellites != in.Satellites || got.Served != in.Served {
		t.Fatalf("counts = %d/%d/%d, want %d/%d/%d", got.Users, got.Satellites, got.Served, in.Users, in.Satellites, in.Served)
	}
	if got.Coverage != in.Coverage {
		t.Fatalf("coverage = %v, want %v", got.Coverage, in.Coverage)
	}
	if got.Duration != in.Duration {
		t.Fatalf("duration = %s, want %s", got.Duration, in.Duration)
	}
	if got.Sweeps != in.Sweeps || got.Swaps != in.Swaps || got.Violations != in.Violations {
		t.Fatalf("counters = %d/%d/%d, want %d/%d/%d", got.Sweeps, got.Swaps, got.Violations, in.Sweeps, in.Swaps, in.Violations)
	}
	if got.DeadlineHit {
		t.Fatal("deadline_hit round-tripped as true, want false")
	}
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := store.RecordRun(ctx, Run{
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			Scenario:    "s.txt",
			Fingerprint: "abc",
			Coverage:    float64(i) / 10,
		})
		if err != nil {
			t.Fatalf("RecordRun %d: %v", i, err)
		}
	}

	runs, err := store.RecentRuns(ctx, 3)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("RecentRuns returned %d runs, want 3", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].CreatedAt.After(runs[i-1].CreatedAt) {
			t.Fatalf("runs not newest-first: %s before %s", runs[i-1].CreatedAt, runs[i].CreatedAt)
		}
	}
	if runs[0].Coverage != 0.4 {
		t.Fatalf("newest run coverage = %v, want 0.4", runs[0].Coverage)
	}
}

func TestBestForScenario(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fp := Fingerprint([]byte("the scenario"))
	base := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)
	coverages := []float64{0.91, 0.97, 0.95, 0.97}
	for i, cov := range coverages {
		_, err := store.RecordRun(ctx, Run{
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			Scenario:    "s.txt",
			Fingerprint: fp,
			Coverage:    cov,
		})
		if err != nil {
			t.Fatalf("RecordRun %d: %v", i, err)
		}
	}
	if _, err := store.RecordRun(ctx, Run{Scenario: "other", Fingerprint: "zzzz", Coverage: 0.999}); err != nil {
		t.Fatalf("RecordRun other: %v", err)
	}

	best, err := store.BestForScenario(ctx, fp)
	if err != nil {
		t.Fatalf("BestForScenario: %v", err)
	}
	if best.Coverage != 0.97 {
		t.Fatalf("best coverage = %v, want 0.97", best.Coverage)
	}
	if !best.CreatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("tie not broken toward the earlier run: got %s", best.CreatedAt)
	}

	if _, err := store.BestForScenario(ctx, "no-such-fingerprint"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("BestForScenario unknown fingerprint error = %v, want ErrNotFound", err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.RecordRun(ctx, Run{Scenario: "s.txt", Fingerprint: "fp", Coverage: 0.5}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRuns after reopen: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("RecentRuns after reopen returned %d runs, want 1", len(runs))
	}
}

func TestClosedStoreReturnsErrClosed(t *testing.T) {
	store := openTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := store.RecordRun(context.Background(), Run{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("RecordRun after close error = %v, want ErrClosed", err)
	}
	if _, err := store.RecentRuns(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("RecentRuns after close error = %v, want ErrClosed", err)
	}
	if _, err := store.BestForScenario(context.Background(), "fp"); !errors.Is(err, ErrClosed) {
		t.Fatalf("BestForScenario after close error = %v, want ErrClosed", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestFingerprintIsStableAndDiscriminating(t *testing.T) {
	a := Fingerprint([]byte("user 1 1000 2000 3000\n"))
	b := Fingerprint([]byte("user 1 1000 2000 3000\n"))
	c := Fingerprint([]byte("user 1 1000 2000 3001\n"))

	if a != b {
		t.Fatalf("identical input produced different fingerprints: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different inputs produced the same fingerprint: %s", a)
	}
	if len(a) != 16 {
		t.Fatalf("fingerprint length = %d, want 16 hex chars", len(a))
	}
}
