// Package oracle is the HTTP client for the external plan-decision service.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Client is the REST client for the decision oracle.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a decision oracle client.
//
// baseURL is the service root, e.g. "https://oracle.internal". The request
// deadline is controlled by the caller's context; the embedded client timeout
// is only a safety net.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Decide posts the plan summary to /v1/decisions and returns the verdict.
func (c *Client) Decide(ctx context.Context, req domain.DecisionRequest) (domain.Decision, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("oracle: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/decisions", bytes.NewReader(payload))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("oracle: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("oracle: decide: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("oracle: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Decision{}, fmt.Errorf("oracle: decide: status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var decision domain.Decision
	if err := json.Unmarshal(body, &decision); err != nil {
		return domain.Decision{}, fmt.Errorf("oracle: decode decision: %w", err)
	}
	return decision, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
