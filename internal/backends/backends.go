// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backends provides the concrete research tools: Serper web
// search, Reddit forum search, Google Trends through SerpAPI, Gemini as the
// llm tool, and a fixture replay that stands in for all of them.
//
// Backends classify their own failures only where the status is known
// (HTTP status codes, Gemini API errors); retrying is the invoker's job.
package backends

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/httputil"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// DefaultUserAgent is sent when the configuration sets none.
const DefaultUserAgent = "niche-engine/0.1 (+https://github.com/pdiddy/niche-engine)"

// Register builds the backends cfg selects and registers them on inv with
// their configured policies. A fixtures file replaces every network
// backend. Tools whose credentials are missing are skipped with a warning;
// nodes that call them fail with a permanent tool error.
func Register(ctx context.Context, inv *tool.Invoker, cfg types.RunConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "backends"))

	tools, err := build(ctx, cfg.Backends, logger)
	if err != nil {
		return err
	}
	for _, t := range tools {
		if err := inv.Register(t, cfg.ToolPolicy(t.Name())); err != nil {
			return err
		}
	}
	for _, name := range []string{types.ToolTrends, types.ToolWebSearch, types.ToolForumSearch, types.ToolLLM} {
		if !inv.Has(name) {
			logger.Warn("tool not configured", zap.String("tool", name))
		}
	}
	return nil
}

func build(ctx context.Context, cfg types.BackendConfig, logger *zap.Logger) ([]tool.Tool, error) {
	if cfg.FixturesFile != "" {
		f, err := LoadFixtures(cfg.FixturesFile)
		if err != nil {
			return nil, err
		}
		logger.Info("replaying tool fixtures", zap.String("file", cfg.FixturesFile))
		return f.Tools(), nil
	}

	client := httputil.NewClient(cfg.HTTPConfig)
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	tools := []tool.Tool{(&Reddit{Client: client, UserAgent: ua}).Tool()}
	if cfg.SerperAPIKey != "" {
		tools = append(tools, (&Serper{Client: client, APIKey: cfg.SerperAPIKey, UserAgent: ua}).Tool())
	}
	if cfg.SerpAPIKey != "" {
		tools = append(tools, (&GoogleTrends{Client: client, APIKey: cfg.SerpAPIKey, UserAgent: ua, Logger: logger}).Tool())
	}
	if cfg.LLM.APIKey != "" {
		g, err := NewGemini(ctx, cfg.LLM, client, "")
		if err != nil {
			return nil, fmt.Errorf("llm backend: %w", err)
		}
		tools = append(tools, g.Tool())
	}
	return tools, nil
}
