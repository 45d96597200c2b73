// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Tool names. Agents call tools by these names; backends register under
// them.
const (
	ToolWebSearch   = "web_search"
	ToolForumSearch = "forum_search"
	ToolTrends      = "trends"
	ToolLLM         = "llm"
)

// SearchRequest is the request of the web_search and forum_search tools.
type SearchRequest struct {
	Query string `json:"query" yaml:"query"`
	Limit int    `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// SearchHit is one search result.
type SearchHit struct {
	Title   string `json:"title" yaml:"title"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`

	// Engagement is a source-specific popularity count: upvotes plus
	// comments for forums, zero for web results.
	Engagement int `json:"engagement,omitempty" yaml:"engagement,omitempty"`
}

// SearchResponse is the response of the search tools.
type SearchResponse struct {
	Query string      `json:"query" yaml:"query"`
	Hits  []SearchHit `json:"hits" yaml:"hits"`
}

// TrendRequest is the request of the trends tool.
type TrendRequest struct {
	Query  string `json:"query" yaml:"query"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// TrendResponse summarizes search interest for a query.
type TrendResponse struct {
	Query string `json:"query" yaml:"query"`

	// Interest is the mean relative search interest over the window, 0-100.
	Interest float64 `json:"interest" yaml:"interest"`

	// Rising lists related queries whose interest is growing.
	Rising []string `json:"rising,omitempty" yaml:"rising,omitempty"`
}

// LLMRequest is the request of the llm tool.
type LLMRequest struct {
	// Task names the agent step (e.g. "personas"). Fixture replay keys on it.
	Task   string `json:"task" yaml:"task"`
	Prompt string `json:"prompt" yaml:"prompt"`

	// JSON asks the model for a JSON-only response.
	JSON bool `json:"json,omitempty" yaml:"json,omitempty"`
}

// LLMResponse is the model output text.
type LLMResponse struct {
	Text string `json:"text" yaml:"text"`
}
