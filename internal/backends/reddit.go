// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backends

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/niche-engine/internal/httputil"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// redditSearchURL is Reddit's public search listing. Declared as a var so
// tests can substitute an httptest server.
var redditSearchURL = "https://www.reddit.com/search.json"

const (
	redditBase       = "https://www.reddit.com"
	maxSnippetLength = 300
)

// Reddit is the forum_search backend. It needs no credentials but Reddit
// rejects requests without a descriptive User-Agent.
type Reddit struct {
	Client    *http.Client
	UserAgent string
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string `json:"title"`
				Selftext    string `json:"selftext"`
				Permalink   string `json:"permalink"`
				Subreddit   string `json:"subreddit"`
				Score       int    `json:"score"`
				NumComments int    `json:"num_comments"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Search queries Reddit posts of the past year by relevance.
func (r *Reddit) Search(ctx context.Context, req types.SearchRequest) (types.SearchResponse, error) {
	if req.Query == "" {
		return types.SearchResponse{}, tool.Permanent(errors.New("empty query"))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{
		"q":     {req.Query},
		"limit": {strconv.Itoa(limit)},
		"sort":  {"relevance"},
		"t":     {"year"},
	}
	httpReq, err := httputil.NewJSONRequest(ctx, http.MethodGet, redditSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return types.SearchResponse{}, tool.Permanent(err)
	}

	var listing redditListing
	if err := httputil.DoJSON(r.Client, httpReq, r.UserAgent, &listing); err != nil {
		return types.SearchResponse{}, err
	}

	out := types.SearchResponse{Query: req.Query}
	for _, c := range listing.Data.Children {
		p := c.Data
		if p.Title == "" {
			continue
		}
		title := p.Title
		if p.Subreddit != "" {
			title = "r/" + p.Subreddit + ": " + title
		}
		hit := types.SearchHit{
			Title:      title,
			Snippet:    truncate(p.Selftext, maxSnippetLength),
			Engagement: p.Score + p.NumComments,
		}
		if p.Permalink != "" {
			hit.URL = redditBase + p.Permalink
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// Tool returns the backend as the forum_search tool.
func (r *Reddit) Tool() tool.Tool {
	return tool.Typed(types.ToolForumSearch, r.Search)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
