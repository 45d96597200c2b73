// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus collectors for tool invocations and
// node executions. Collectors register on a caller-supplied registry so
// tests and multiple runs in one process never collide.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Namespace prefixes every metric name.
const Namespace = "niche_engine"

// Collector records tool and node metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	toolCallsTotal    *prometheus.CounterVec
	toolCallDuration  *prometheus.HistogramVec
	toolAttemptsTotal *prometheus.CounterVec

	nodeRunsTotal   *prometheus.CounterVec
	nodeRunDuration *prometheus.HistogramVec
	commitsTotal    *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	return &Collector{
		toolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation latency including retries.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"tool"}),
		toolAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tool_attempts_total",
			Help:      "Individual tool attempts, retries included.",
		}, []string{"tool"}),
		nodeRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "node_runs_total",
			Help:      "Node phase records by node and outcome.",
		}, []string{"node", "outcome"}),
		nodeRunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "node_run_duration_seconds",
			Help:      "Node execution time.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"node"}),
		commitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "state_commits_total",
			Help:      "Research state commit attempts by node and result.",
		}, []string{"node", "result"}),
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Finished runs by final status.",
		}, []string{"status"}),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// RecordToolCall records one Invoke call.
func (c *Collector) RecordToolCall(tool, outcome string, attempts int, latency time.Duration) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(latency.Seconds())
	c.toolAttemptsTotal.WithLabelValues(tool).Add(float64(attempts))
}

// RecordNode records one phase record.
func (c *Collector) RecordNode(node, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.nodeRunsTotal.WithLabelValues(node, outcome).Inc()
	if d > 0 {
		c.nodeRunDuration.WithLabelValues(node).Observe(d.Seconds())
	}
}

// RecordCommit records a commit attempt; ok is false for rejected batches.
func (c *Collector) RecordCommit(node string, ok bool) {
	if c == nil {
		return
	}
	result := "applied"
	if !ok {
		result = "rejected"
	}
	c.commitsTotal.WithLabelValues(node, result).Inc()
}

// RecordRun records the final status of a run.
func (c *Collector) RecordRun(status string) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(status).Inc()
	c.logger.Debug("run recorded", zap.String("status", status))
}
