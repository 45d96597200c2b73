// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backends

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/pdiddy/niche-engine/internal/httputil"
	"github.com/pdiddy/niche-engine/internal/tool"
	"github.com/pdiddy/niche-engine/pkg/types"
)

// serpAPIURL is the SerpAPI search endpoint. Declared as a var so tests can
// substitute an httptest server.
var serpAPIURL = "https://serpapi.com/search.json"

const maxRising = 5

// GoogleTrends is the trends backend, backed by SerpAPI's google_trends
// engine.
type GoogleTrends struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
	Logger    *zap.Logger
}

type timeseriesResponse struct {
	InterestOverTime struct {
		TimelineData []struct {
			Values []struct {
				Query          string  `json:"query"`
				ExtractedValue float64 `json:"extracted_value"`
			} `json:"values"`
		} `json:"timeline_data"`
	} `json:"interest_over_time"`
}

type relatedResponse struct {
	RelatedQueries struct {
		Rising []struct {
			Query string `json:"query"`
		} `json:"rising"`
	} `json:"related_queries"`
}

// Interest returns the mean interest over the past twelve months and the
// rising related queries. A failed related-queries lookup does not fail
// the call.
func (g *GoogleTrends) Interest(ctx context.Context, req types.TrendRequest) (types.TrendResponse, error) {
	if req.Query == "" {
		return types.TrendResponse{}, tool.Permanent(errors.New("empty query"))
	}

	var ts timeseriesResponse
	if err := g.get(ctx, req, "TIMESERIES", &ts); err != nil {
		return types.TrendResponse{}, err
	}
	out := types.TrendResponse{Query: req.Query}
	var sum float64
	var n int
	for _, point := range ts.InterestOverTime.TimelineData {
		for _, v := range point.Values {
			sum += v.ExtractedValue
			n++
		}
	}
	if n > 0 {
		out.Interest = sum / float64(n)
	}

	var rel relatedResponse
	if err := g.get(ctx, req, "RELATED_QUERIES", &rel); err != nil {
		g.logger().Debug("related queries unavailable", zap.String("query", req.Query), zap.Error(err))
		return out, nil
	}
	for _, r := range rel.RelatedQueries.Rising {
		if len(out.Rising) == maxRising {
			break
		}
		out.Rising = append(out.Rising, r.Query)
	}
	return out, nil
}

func (g *GoogleTrends) get(ctx context.Context, req types.TrendRequest, dataType string, out any) error {
	params := url.Values{
		"engine":    {"google_trends"},
		"q":         {req.Query},
		"data_type": {dataType},
		"date":      {"today 12-m"},
		"api_key":   {g.APIKey},
	}
	if req.Region != "" {
		params.Set("geo", req.Region)
	}
	httpReq, err := httputil.NewJSONRequest(ctx, http.MethodGet, serpAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return tool.Permanent(err)
	}
	return httputil.DoJSON(g.Client, httpReq, g.UserAgent, out)
}

func (g *GoogleTrends) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

// Tool returns the backend as the trends tool.
func (g *GoogleTrends) Tool() tool.Tool {
	return tool.Typed(types.ToolTrends, g.Interest)
}
