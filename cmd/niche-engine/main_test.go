// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/niche-engine/internal/secrets"
	"github.com/pdiddy/niche-engine/internal/store"
	"github.com/pdiddy/niche-engine/pkg/types"
)

const fixturesFile = "../../internal/backends/testdata/fixtures.yaml"

// execute runs the root command with args and returns what it printed.
// Commands are package globals, so callers set every flag they rely on.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadRunConfig(t *testing.T) {
	initConfig()
	t.Setenv("NICHE_ENGINE_BACKENDS_SERPER_API_KEY", "from-env")
	t.Setenv("NICHE_ENGINE_INPUT_MARKET_TYPE", "b2c")

	prev := loadedSecrets
	loadedSecrets = map[string]string{secrets.SerperKey: "from-secret", secrets.GeminiKey: "gemini"}
	t.Cleanup(func() { loadedSecrets = prev })

	cfg, err := loadRunConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Backends.SerperAPIKey, "environment wins over secrets")
	assert.Equal(t, "gemini", cfg.Backends.LLM.APIKey, "secrets fill empty keys")
	assert.Equal(t, types.MarketB2C, cfg.Input.MarketType)
	assert.Equal(t, types.DefaultEvidenceConfig(), cfg.Evidence)
	assert.Equal(t, 4, cfg.Scheduler.MaxParallel)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.NodeTimeout)
	assert.Equal(t, 30*time.Second, cfg.Backends.Timeout)
	assert.NotEmpty(t, cfg.Backends.UserAgent)
}

func TestRun_RequiresIndustry(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--industry", "", "--fixtures", fixturesFile,
		"--store-dir", dir, "--secrets-dir", filepath.Join(dir, "none"))
	assert.ErrorContains(t, err, "industry is required")
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "graph", "--file", "", "--yaml=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Graph niche-pipeline: 8 nodes, 8 edges")
	assert.Contains(t, out, "Phase 1: market_research\n")
	assert.Contains(t, out, "when has_eligible_niches")

	out, err = execute(t, "graph", "--file", "", "--yaml=true")
	require.NoError(t, err)
	assert.Contains(t, out, "name: niche-pipeline")
}

func TestGraph_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nnodes:\n  - id: nope\n"), 0o644))
	_, err := execute(t, "graph", "--file", path, "--yaml=false")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "niche-engine dev\n", out)
}

// TestPipelineCommands runs the pipeline offline from recorded tool
// responses and reads the result back through every store command.
func TestPipelineCommands(t *testing.T) {
	dir := t.TempDir()
	common := []string{"--store-dir", dir, "--secrets-dir", filepath.Join(dir, "none")}
	reportPath := filepath.Join(dir, "report.md")

	out, err := execute(t, append([]string{"run", "accounting", "--fixtures", fixturesFile, "--report", reportPath}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "1 validated")
	assert.Contains(t, out, "1 launch plans")

	out, err = execute(t, append([]string{"runs", "list", "--json=true", "--limit", "0"}, common...)...)
	require.NoError(t, err)
	var runs []store.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "accounting", run.Industry)
	assert.Equal(t, "niche-pipeline", run.Graph)
	assert.Equal(t, 1, run.Validated)

	out, err = execute(t, append([]string{"ideas", "--json=true", "--status", "validated", "--run", run.ID}, common...)...)
	require.NoError(t, err)
	var ideas []store.IdeaRow
	require.NoError(t, json.Unmarshal([]byte(out), &ideas))
	require.Len(t, ideas, 1)
	assert.Equal(t, "idea-a5699357c16a", ideas[0].ID)
	assert.Equal(t, []string{"pain-af618c5b6e0c", "trend-66a0d2de05c1"}, ideas[0].EvidenceRefs)

	_, err = execute(t, append([]string{"ideas", "--status", "approved"}, common...)...)
	assert.ErrorContains(t, err, "unknown status")

	out, err = execute(t, append([]string{"export", run.ID, "--format", "json", "--stdout=false"}, common...)...)
	require.NoError(t, err)
	exported := filepath.Join(dir, "exports", run.ID+".json")
	assert.Contains(t, out, exported)

	out, err = execute(t, append([]string{"report", "--from", exported, "--output", ""}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "# Niche research: accounting")
	assert.Contains(t, out, "Bookkeepers re-key bank transactions")

	written, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), "## Launch plans")

	_, err = execute(t, append([]string{"report", "--from", ""}, common...)...)
	assert.Error(t, err, "neither a run nor a document")

	out, err = execute(t, append([]string{"runs", "delete", run.ID}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+run.ID)

	_, err = execute(t, append([]string{"runs", "show", run.ID}, common...)...)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
