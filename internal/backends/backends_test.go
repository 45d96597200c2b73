// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backends

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/pdiddy/niche-engine/internal/httputil"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// swap points a package-level endpoint at ts for the duration of the test.
func swap(t *testing.T, target *string, ts *httptest.Server) {
	t.Helper()
	orig := *target
	*target = ts.URL
	t.Cleanup(func() { *target = orig })
}

func TestSerper_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "sk-test", r.Header.Get("X-API-KEY"))
		var body serperRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "invoice software", body.Q)
		assert.Equal(t, 2, body.Num)
		_, _ = w.Write([]byte(`{"organic": [
			{"title": "A", "link": "https://a.example", "snippet": "first"},
			{"title": "B", "link": "https://b.example"},
			{"title": "C", "link": "https://c.example"}
		]}`))
	}))
	defer ts.Close()
	swap(t, &serperURL, ts)

	s := &Serper{Client: ts.Client(), APIKey: "sk-test", UserAgent: "test"}
	got, err := s.Search(context.Background(), types.SearchRequest{Query: "invoice software", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, types.SearchResponse{Query: "invoice software", Hits: []types.SearchHit{
		{Title: "A", Snippet: "first", URL: "https://a.example"},
		{Title: "B", URL: "https://b.example"},
	}}, got)
}

func TestSerper_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()
			swap(t, &serperURL, ts)

			_, err := (&Serper{Client: ts.Client()}).Search(context.Background(), types.SearchRequest{Query: "q"})
			require.Error(t, err)
			var se *httputil.StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.transient, tool.IsTransient(err))
		})
	}
}

func TestSerper_EmptyQueryIsPermanent(t *testing.T) {
	_, err := (&Serper{}).Search(context.Background(), types.SearchRequest{})
	require.Error(t, err)
	assert.False(t, tool.IsTransient(err))
}

func TestReddit_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bookkeeping problems", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "niche-engine-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"data": {"children": [
			{"data": {"title": "Month-end is killing me", "selftext": "  every   month\nthe same ", "permalink": "/r/Bookkeeping/comments/x/", "subreddit": "Bookkeeping", "score": 120, "num_comments": 30}},
			{"data": {"title": ""}}
		]}}`))
	}))
	defer ts.Close()
	swap(t, &redditSearchURL, ts)

	r := &Reddit{Client: ts.Client(), UserAgent: "niche-engine-test"}
	got, err := r.Search(context.Background(), types.SearchRequest{Query: "bookkeeping problems"})
	require.NoError(t, err)
	require.Len(t, got.Hits, 1)
	assert.Equal(t, types.SearchHit{
		Title:      "r/Bookkeeping: Month-end is killing me",
		Snippet:    "every month the same",
		URL:        "https://www.reddit.com/r/Bookkeeping/comments/x/",
		Engagement: 150,
	}, got.Hits[0])
}

func TestGoogleTrends_Interest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google_trends", q.Get("engine"))
		assert.Equal(t, "serp-key", q.Get("api_key"))
		assert.Equal(t, "US", q.Get("geo"))
		switch q.Get("data_type") {
		case "TIMESERIES":
			_, _ = w.Write([]byte(`{"interest_over_time": {"timeline_data": [
				{"values": [{"query": "q", "extracted_value": 40}]},
				{"values": [{"query": "q", "extracted_value": 80}]}
			]}}`))
		case "RELATED_QUERIES":
			_, _ = w.Write([]byte(`{"related_queries": {"rising": [{"query": "ai bookkeeping"}, {"query": "auto reconcile"}]}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer ts.Close()
	swap(t, &serpAPIURL, ts)

	g := &GoogleTrends{Client: ts.Client(), APIKey: "serp-key"}
	got, err := g.Interest(context.Background(), types.TrendRequest{Query: "q", Region: "US"})
	require.NoError(t, err)
	assert.Equal(t, types.TrendResponse{Query: "q", Interest: 60, Rising: []string{"ai bookkeeping", "auto reconcile"}}, got)
}

func TestGoogleTrends_RelatedFailureTolerated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("data_type") == "RELATED_QUERIES" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"interest_over_time": {"timeline_data": [{"values": [{"extracted_value": 10}]}]}}`))
	}))
	defer ts.Close()
	swap(t, &serpAPIURL, ts)

	got, err := (&GoogleTrends{Client: ts.Client()}).Interest(context.Background(), types.TrendRequest{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Interest)
	assert.Empty(t, got.Rising)
}

func TestClassifyGenAI(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, true},
		{"unavailable", genai.APIError{Code: 503}, true},
		{"bad key", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, false},
		{"not found", genai.APIError{Code: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, tool.IsTransient(classifyGenAI(tt.err)))
		})
	}
}

func TestGemini_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, DefaultModel+":generateContent")
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "generationConfig")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"ok\": true}"}]}}]}`))
	}))
	defer ts.Close()

	g, err := NewGemini(context.Background(), types.AIConfig{APIKey: "test-key"}, ts.Client(), ts.URL+"/")
	require.NoError(t, err)
	got, err := g.Generate(context.Background(), types.LLMRequest{Task: "personas", Prompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, got.Text)
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), types.AIConfig{}, nil, "")
	assert.Error(t, err)
}

func TestFixtures_Replay(t *testing.T) {
	f, err := LoadFixtures("testdata/fixtures.yaml")
	require.NoError(t, err)

	inv := tool.NewInvoker()
	for _, tl := range f.Tools() {
		require.NoError(t, inv.Register(tl, types.ToolPolicy{}))
	}
	ctx := context.Background()

	hot, err := tool.Call[types.TrendRequest, types.TrendResponse](ctx, inv, types.ToolTrends, types.TrendRequest{Query: "Accounting Automation AI"})
	require.NoError(t, err)
	assert.Equal(t, 85.0, hot.Interest)
	assert.Equal(t, "Accounting Automation AI", hot.Query)

	other, err := tool.Call[types.TrendRequest, types.TrendResponse](ctx, inv, types.ToolTrends, types.TrendRequest{Query: "accounting productivity"})
	require.NoError(t, err)
	assert.Equal(t, 40.0, other.Interest)

	hits, err := tool.Call[types.SearchRequest, types.SearchResponse](ctx, inv, types.ToolWebSearch, types.SearchRequest{Query: "x", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, hits.Hits, 1)

	llm, err := tool.Call[types.LLMRequest, types.LLMResponse](ctx, inv, types.ToolLLM, types.LLMRequest{Task: "personas", Prompt: "p"})
	require.NoError(t, err)
	assert.Contains(t, llm.Text, "bookkeeping practice")

	_, err = tool.Call[types.LLMRequest, types.LLMResponse](ctx, inv, types.ToolLLM, types.LLMRequest{Task: "unknown"})
	var te *tool.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.KindPermanent, te.Kind)
}

func TestFixtures_MissingSearchIsEmpty(t *testing.T) {
	f := &Fixtures{}
	resp, err := searchReplay(f.ForumSearch)(context.Background(), types.SearchRequest{Query: "nothing"})
	require.NoError(t, err)
	assert.Equal(t, types.SearchResponse{Query: "nothing"}, resp)
}

func TestRegister_Fixtures(t *testing.T) {
	inv := tool.NewInvoker()
	cfg := types.RunConfig{Backends: types.BackendConfig{FixturesFile: "testdata/fixtures.yaml"}}
	require.NoError(t, Register(context.Background(), inv, cfg, nil))
	assert.Equal(t, []string{types.ToolForumSearch, types.ToolLLM, types.ToolTrends, types.ToolWebSearch}, inv.Names())
}

func TestRegister_WithoutKeys(t *testing.T) {
	inv := tool.NewInvoker()
	require.NoError(t, Register(context.Background(), inv, types.RunConfig{}, nil))
	assert.Equal(t, []string{types.ToolForumSearch}, inv.Names())
}

func TestRegister_MissingFixtures(t *testing.T) {
	cfg := types.RunConfig{Backends: types.BackendConfig{FixturesFile: "testdata/nope.yaml"}}
	assert.Error(t, Register(context.Background(), tool.NewInvoker(), cfg, nil))
}
