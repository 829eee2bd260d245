package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/signalsfoundry/beam-planner/core"
	"github.com/signalsfoundry/beam-planner/internal/config"
	"github.com/signalsfoundry/beam-planner/internal/logging"
	"github.com/signalsfoundry/beam-planner/internal/observability"
	"github.com/signalsfoundry/beam-planner/internal/runstore"
	"github.com/signalsfoundry/beam-planner/kb"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a scenario file (.json switches to the JSON decoder)")
	outPath := flag.String("out", "", "path to write the solution file (empty skips the write)")
	budget := flag.Duration("budget", 0, "wall-clock solve budget, 0 means unlimited (overrides config)")
	minCoverage := flag.Float64("min-coverage", -1, "required coverage fraction (overrides the scenario's floor)")
	workers := flag.Int("workers", 0, "parallel candidate workers, 0 means NumCPU (overrides config)")
	configPath := flag.String("config", "", "path to a YAML config file")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables the endpoint)")
	historyPath := flag.String("history-path", "", "SQLite file for run history (overrides config)")
	noHistory := flag.Bool("no-history", false, "disable run history recording")
	verbose := flag.Bool("v", false, "log per-sweep refinement progress")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "beamplan: %v\n", err)
			os.Exit(2)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	// Flags take final precedence, but only the ones actually set.
	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if setFlags["budget"] {
		cfg.Solver.Budget = *budget
	}
	if setFlags["workers"] {
		cfg.Solver.Workers = *workers
	}
	if setFlags["metrics-addr"] {
		cfg.Metrics.Enabled = *metricsAddr != ""
		cfg.Metrics.Listen = *metricsAddr
	}
	if setFlags["history-path"] {
		cfg.History.Enabled = *historyPath != ""
		cfg.History.Path = *historyPath
	}
	if *noHistory {
		cfg.History.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "beamplan: %v\n", err)
		os.Exit(2)
	}
	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "beamplan: -scenario is required")
		flag.Usage()
		os.Exit(2)
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx, log := logging.WithRunLogger(context.Background(), log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	var collector *observability.PlannerCollector
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		collector, err = observability.NewPlannerCollector(nil)
		if err != nil {
			log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
			os.Exit(1)
		}
		metricsSrv = serveMetrics(cfg.Metrics.Listen, collector, log)
	}

	data, err := os.ReadFile(*scenarioPath)
	if err != nil {
		log.Error(ctx, "failed to read scenario", logging.String("path", *scenarioPath), logging.String("error", err.Error()))
		os.Exit(1)
	}

	var fleetOpts []kb.Option
	if collector != nil {
		fleetOpts = append(fleetOpts, kb.WithMetricsRecorder(collector))
	}
	fleet := kb.NewFleetKB(fleetOpts...)

	var info *kb.ScenarioInfo
	if strings.HasSuffix(*scenarioPath, ".json") {
		info, err = kb.LoadScenarioJSON(fleet, bytes.NewReader(data))
	} else {
		info, err = kb.LoadScenario(fleet, bytes.NewReader(data))
	}
	if err != nil {
		log.Error(ctx, "failed to load scenario", logging.String("path", *scenarioPath), logging.String("error", err.Error()))
		os.Exit(1)
	}

	required := info.MinCoverage
	if *minCoverage >= 0 {
		required = *minCoverage
	}

	log.Info(ctx, "scenario loaded",
		logging.String("path", *scenarioPath),
		logging.Int("users", info.Users),
		logging.Int("satellites", info.Satellites),
		logging.Float64("min_coverage", required),
	)

	var plannerOpts []core.PlannerOption
	if collector != nil {
		plannerOpts = append(plannerOpts, core.WithMetrics(collector))
	}
	if *verbose {
		plannerOpts = append(plannerOpts, core.WithProgress(func(p core.Progress) {
			log.Info(ctx, "planning progress",
				logging.String("phase", p.Phase),
				logging.Int("served", p.Served),
				logging.Int("total", p.Total),
				logging.Duration("elapsed", p.Elapsed),
			)
		}))
	}

	planner := core.NewPlanner(plannerOpts...)
	planner.Profile = cfg.BeamProfile()
	planner.Budget = cfg.Solver.Budget
	if cfg.Solver.Workers > 0 {
		planner.Workers = cfg.Solver.Workers
	}
	planner.CellDeg = cfg.Solver.CellDeg
	planner.ExhaustiveThreshold = cfg.Solver.ExhaustiveThreshold

	// SIGINT cancels the run; the planner hands back its best partial
	// assignment instead of dying mid-solve.
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	result, err := planner.Plan(runCtx, fleet.Users(), fleet.Satellites())
	stop()
	if err != nil {
		log.Error(ctx, "planning failed", logging.String("error", err.Error()))
		os.Exit(1)
	}

	printReport(result, required)

	if *outPath != "" {
		if err := writeSolutionFile(*outPath, result); err != nil {
			log.Error(ctx, "failed to write solution", logging.String("path", *outPath), logging.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info(ctx, "solution written", logging.String("path", *outPath), logging.Int("beams", result.Served))
	}

	if cfg.History.Enabled {
		recordRun(ctx, cfg.History.Path, *scenarioPath, data, info, result, log)
	}

	exitCode := 0
	if len(result.Violations) > 0 {
		log.Error(ctx, "assignment failed validation", logging.Int("violations", len(result.Violations)))
		exitCode = 1
	}
	if required > 0 && result.Coverage < required {
		log.Error(ctx, "coverage below requirement",
			logging.Float64("coverage", result.Coverage),
			logging.Float64("required", required),
		)
		exitCode = 1
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
	os.Exit(exitCode)
}

func printReport(res *core.PlanResult, required float64) {
	fmt.Printf("Planned %d/%d users (%.2f%% coverage) in %s\n",
		res.Served, res.TotalUsers, res.Coverage*100, res.Elapsed.Round(time.Millisecond))
	fmt.Printf("  phase 1 served %d; %d refinement sweeps committed %d swaps\n",
		res.Phase1Served, res.Sweeps, res.Swaps)
	mode := "indexed"
	if res.Candidates.Exhaustive {
		mode = "exhaustive"
	}
	fmt.Printf("  candidate scan (%s): %d pairs tested, %d pruned (%.1f%%)\n",
		mode, res.Candidates.TestedPairs, res.Candidates.PrunedPairs, res.Candidates.PruneRatio()*100)
	if res.DeadlineHit {
		fmt.Println("  budget exhausted; reporting the best assignment found in time")
	}
	if required > 0 {
		verdict := "met"
		if res.Coverage < required {
			verdict = "MISSED"
		}
		fmt.Printf("  required coverage %.2f%%: %s\n", required*100, verdict)
	}
	for _, v := range res.Violations {
		fmt.Printf("  violation: %s\n", v)
	}
}

func writeSolutionFile(path string, res *core.PlanResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := kb.WriteSolution(f, res.Assignment); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func recordRun(ctx context.Context, path, scenarioPath string, raw []byte, info *kb.ScenarioInfo, res *core.PlanResult, log logging.Logger) {
	store, err := runstore.Open(path)
	if err != nil {
		log.Warn(ctx, "run history unavailable", logging.String("path", path), logging.String("error", err.Error()))
		return
	}
	defer store.Close()

	id, err := store.RecordRun(ctx, runstore.Run{
		ID:          logging.RunIDFromContext(ctx),
		Scenario:    filepath.Base(scenarioPath),
		Fingerprint: runstore.Fingerprint(raw),
		Users:       info.Users,
		Satellites:  info.Satellites,
		Served:      res.Served,
		Coverage:    res.Coverage,
		Duration:    res.Elapsed,
		Sweeps:      res.Sweeps,
		Swaps:       res.Swaps,
		DeadlineHit: res.DeadlineHit,
		Violations:  len(res.Violations),
	})
	if err != nil {
		log.Warn(ctx, "failed to record run", logging.String("error", err.Error()))
		return
	}
	log.Info(ctx, "run recorded", logging.String("run_id", id), logging.String("db", path))
}

func serveMetrics(addr string, collector *observability.PlannerCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
