// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backends

import (
	"context"
	"errors"
	"net/http"

	"github.com/pdiddy/niche-engine/internal/httputil"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// serperURL is the Serper Google search endpoint. Declared as a var so
// tests can substitute an httptest server.
var serperURL = "https://google.serper.dev/search"

// Serper is the web_search backend.
type Serper struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search runs one Google search through Serper.
func (s *Serper) Search(ctx context.Context, req types.SearchRequest) (types.SearchResponse, error) {
	if req.Query == "" {
		return types.SearchResponse{}, tool.Permanent(errors.New("empty query"))
	}
	httpReq, err := httputil.NewJSONRequest(ctx, http.MethodPost, serperURL, serperRequest{Q: req.Query, Num: req.Limit})
	if err != nil {
		return types.SearchResponse{}, tool.Permanent(err)
	}
	httpReq.Header.Set("X-API-KEY", s.APIKey)

	var sr serperResponse
	if err := httputil.DoJSON(s.Client, httpReq, s.UserAgent, &sr); err != nil {
		return types.SearchResponse{}, err
	}

	out := types.SearchResponse{Query: req.Query}
	for _, o := range sr.Organic {
		if req.Limit > 0 && len(out.Hits) == req.Limit {
			break
		}
		out.Hits = append(out.Hits, types.SearchHit{Title: o.Title, Snippet: o.Snippet, URL: o.Link})
	}
	return out, nil
}

// Tool returns the backend as the web_search tool.
func (s *Serper) Tool() tool.Tool {
	return tool.Typed(types.ToolWebSearch, s.Search)
}
