// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/agents"
	"github.com/pdiddy/niche-engine/internal/backends"
	"github.com/pdiddy/niche-engine/internal/evidence"
	"github.com/pdiddy/niche-engine/internal/graph"
	"github.com/pdiddy/niche-engine/internal/metrics"
	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/report"
	"github.com/pdiddy/niche-engine/internal/scheduler"
	"github.com/pdiddy/niche-engine/internal/state"
	"github.com/pdiddy/niche-engine/internal/store"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [industry]",
	Short: "Run the research pipeline for an industry",
	Long: `Run executes the workflow graph (the built-in pipeline or --graph) for
one industry brief, stores the frozen result, and prints a phase summary.

Backends are chosen from the configured API keys: forum search always,
web search with a Serper key, trends with a SerpAPI key, and the LLM with
a Gemini key. --fixtures replays recorded responses instead, offline.

The run exits non-zero only when it failed outright. A partially
completed run is saved and reported like a completed one.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"input.industry":         "industry",
			"input.region":           "region",
			"input.market_type":      "market-type",
			"graph_file":             "graph",
			"backends.fixtures_file": "fixtures",
			"scheduler.max_parallel": "max-parallel",
		})
	},
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("industry", "", "industry to research (or pass it as the argument)")
	runCmd.Flags().String("region", "", "region for trends and personas, e.g. US")
	runCmd.Flags().String("market-type", "", "B2B, B2C, or B2B2C (default B2B)")
	runCmd.Flags().String("graph", "", "workflow definition YAML (default: built-in pipeline)")
	runCmd.Flags().String("fixtures", "", "replay tool responses from this YAML file")
	runCmd.Flags().Int("max-parallel", 0, "maximum concurrently running nodes")
	runCmd.Flags().String("report", "", "also write a Markdown report to this file")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run, e.g. :9090")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Input.Industry = args[0]
	}
	if err := cfg.Input.Validate(); err != nil {
		return err
	}
	cfg.Store = storeConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg, logger)
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		shutdown := serveMetrics(addr, reg)
		defer shutdown()
	}

	inv := tool.NewInvoker(tool.WithLogger(logger), tool.WithMetrics(collector))
	if err := backends.Register(ctx, inv, cfg, logger); err != nil {
		return err
	}

	gate := evidence.NewGate(cfg.Evidence)
	def, err := definition(cfg.GraphFile)
	if err != nil {
		return err
	}
	g, err := def.Build(agents.Registry(agents.Deps{Input: cfg.Input, Gate: gate, Logger: logger}), graph.Predicates(gate))
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger.Info("starting run",
		zap.String("run_id", runID),
		zap.String("graph", g.Name()),
		zap.String("industry", cfg.Input.Industry),
		zap.Strings("tools", inv.Names()))

	h := node.NewHarness(gate, inv, collector, logger)
	exec := scheduler.New(h, cfg.Scheduler, scheduler.WithLogger(logger), scheduler.WithMetrics(collector))
	res, err := exec.Run(ctx, g, state.New(runID, time.Now()))
	if err != nil {
		return err
	}

	doc := store.NewDocument(g.Name(), cfg.Input, res.Metadata, res.Snapshot, res.ToolLog)
	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()
	// An interrupted run is still saved.
	if err := s.Save(context.WithoutCancel(ctx), doc); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printRunSummary(out, doc, res.Errors)
	fmt.Fprintf(out, "Saved run %s to %s\n", runID, s.Dir())

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := writeReport(path, doc); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
	}

	if res.Status == types.RunFailed {
		return fmt.Errorf("run %s failed", runID)
	}
	return nil
}

// definition returns the graph definition at path, or the built-in one.
func definition(path string) (graph.Definition, error) {
	if path == "" {
		return graph.DefaultDefinition(), nil
	}
	return graph.LoadDefinition(path)
}

func printRunSummary(w io.Writer, d store.Document, errs []*node.Error) {
	fmt.Fprintf(w, "Run %s: %s (%s)\n", d.Run.RunID, d.Run.Status,
		d.Run.EndedAt.Sub(d.Run.StartedAt).Round(time.Millisecond))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, p := range d.Run.PhaseLog {
		fmt.Fprintf(w, "%-28s  %-18s  %s\n", p.NodeID, p.Outcome, p.Duration().Round(time.Millisecond))
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%d trends, %d pain points, %d personas, %d niches\n",
		len(d.Trends), len(d.PainPoints), len(d.Personas), len(d.Niches))
	fmt.Fprintf(w, "%d ideas: %d validated, %d evidence rejected; %d launch plans\n",
		len(d.Ideas), d.CountIdeas(types.IdeaValidated), d.CountIdeas(types.IdeaEvidenceRejected), len(d.Plans))
	for _, e := range errs {
		fmt.Fprintf(w, "error: %v\n", e)
	}
}

func writeReport(path string, d store.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.Write(f, d); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

// serveMetrics exposes reg on addr/metrics until the returned func is
// called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
