// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backends

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// AnyQuery in a fixture matches every query without an exact entry.
const AnyQuery = "*"

// LLMFixture is one recorded llm answer.
type LLMFixture struct {
	Task string `yaml:"task"`

	// Contains, when set, must appear in the prompt.
	Contains string `yaml:"contains,omitempty"`

	Text string `yaml:"text"`
}

// Fixtures are recorded tool responses for offline, reproducible runs.
type Fixtures struct {
	Trends      []types.TrendResponse  `yaml:"trends"`
	WebSearch   []types.SearchResponse `yaml:"web_search"`
	ForumSearch []types.SearchResponse `yaml:"forum_search"`
	LLM         []LLMFixture           `yaml:"llm"`
}

// LoadFixtures reads a fixtures YAML file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures %s: %w", path, err)
	}
	return &f, nil
}

// Tools returns one replay tool per tool name. Searches without a fixture
// return no hits; trends and llm calls without one fail permanently.
func (f *Fixtures) Tools() []tool.Tool {
	return []tool.Tool{
		tool.Typed(types.ToolTrends, func(_ context.Context, req types.TrendRequest) (types.TrendResponse, error) {
			for _, pass := range []func(string) bool{exact(req.Query), wildcard} {
				for _, t := range f.Trends {
					if pass(t.Query) {
						t.Query = req.Query
						return t, nil
					}
				}
			}
			return types.TrendResponse{}, tool.Permanent(fmt.Errorf("no trends fixture for %q", req.Query))
		}),
		tool.Typed(types.ToolWebSearch, searchReplay(f.WebSearch)),
		tool.Typed(types.ToolForumSearch, searchReplay(f.ForumSearch)),
		tool.Typed(types.ToolLLM, func(_ context.Context, req types.LLMRequest) (types.LLMResponse, error) {
			for _, l := range f.LLM {
				if l.Task == req.Task && strings.Contains(req.Prompt, l.Contains) {
					return types.LLMResponse{Text: l.Text}, nil
				}
			}
			return types.LLMResponse{}, tool.Permanent(fmt.Errorf("no llm fixture for task %q", req.Task))
		}),
	}
}

func searchReplay(recorded []types.SearchResponse) func(context.Context, types.SearchRequest) (types.SearchResponse, error) {
	return func(_ context.Context, req types.SearchRequest) (types.SearchResponse, error) {
		for _, pass := range []func(string) bool{exact(req.Query), wildcard} {
			for _, r := range recorded {
				if !pass(r.Query) {
					continue
				}
				out := types.SearchResponse{Query: req.Query, Hits: r.Hits}
				if req.Limit > 0 && len(out.Hits) > req.Limit {
					out.Hits = out.Hits[:req.Limit]
				}
				return out, nil
			}
		}
		return types.SearchResponse{Query: req.Query}, nil
	}
}

func exact(q string) func(string) bool {
	return func(recorded string) bool { return strings.EqualFold(recorded, q) }
}

func wildcard(recorded string) bool { return recorded == AnyQuery }
