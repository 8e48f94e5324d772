package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func TestDecide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/decisions", r.URL.Path)
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))

		var req domain.DecisionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "WETH", req.Token)
		assert.Equal(t, int64(300), req.TimeBudgetSeconds)

		json.NewEncoder(w).Encode(domain.Decision{
			Approved:   true,
			Confidence: 88,
			Reason:     "looks good",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k1")
	decision, err := c.Decide(context.Background(), domain.DecisionRequest{
		Token:             "WETH",
		SizeUSD:           10_000,
		TimeBudgetSeconds: 300,
	})
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, 88, decision.Confidence)
}

func TestDecideNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Decide(context.Background(), domain.DecisionRequest{Token: "WETH"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestDecideRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "")
	_, err := c.Decide(ctx, domain.DecisionRequest{Token: "WETH"})
	assert.Error(t, err)
}
