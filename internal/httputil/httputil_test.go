// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/niche-engine/pkg/types"
)

func TestDoJSON_DecodesSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "niche-engine/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "saas", in["q"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer": 42}`))
	}))
	defer ts.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodPost, ts.URL, map[string]string{"q": "saas"})
	require.NoError(t, err)

	var out struct {
		Answer int `json:"answer"`
	}
	require.NoError(t, DoJSON(ts.Client(), req, "niche-engine/test", &out))
	assert.Equal(t, 42, out.Answer)
}

func TestDoJSON_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("  upstream says no \n"))
			}))
			defer ts.Close()

			req, err := NewJSONRequest(context.Background(), http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			err = DoJSON(ts.Client(), req, "", nil)
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "upstream says no", se.Body)
			assert.Equal(t, tt.transient, se.Transient())
		})
	}
}

func TestDoJSON_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer ts.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	var out map[string]any
	err = DoJSON(ts.Client(), req, "", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestDoJSON_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req, err := NewJSONRequest(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	err = DoJSON(ts.Client(), req, "", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewClient(types.HTTPConfig{}).Timeout)
	assert.Equal(t, 5*time.Second, NewClient(types.HTTPConfig{Timeout: 5 * time.Second}).Timeout)
}

func TestStatusError_DropsQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodGet, ts.URL+"/search.json?api_key=hunter2", nil)
	require.NoError(t, err)

	err = DoJSON(ts.Client(), req, "", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "/search.json")
}
