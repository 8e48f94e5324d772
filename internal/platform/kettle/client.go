// Package kettle is the HTTP client for the private bundle staging service.
package kettle

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

// BodySigner produces the authentication header value for a request body.
type BodySigner interface {
	SignBody(body []byte) (string, error)
}

// Client is the REST client for the staging service. Submissions are signed;
// status polls are not.
type Client struct {
	baseURL    string
	signer     BodySigner
	httpClient *http.Client
}

// NewClient creates a staging service client. signer may be nil when the
// endpoint does not require authentication (local development). A
// non-positive timeout falls back to 30 seconds.
func NewClient(baseURL string, signer BodySigner, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type submitResponse struct {
	BundleID string `json:"bundleId"`
	Status   string `json:"status"`
}

type statusResponse struct {
	Status         string `json:"status"`
	InclusionBlock string `json:"inclusionBlock,omitempty"`
}

// Submit posts a bundle to /v1/bundles and returns the service's bundle
// reference.
func (c *Client) Submit(ctx context.Context, bundle domain.Bundle) (string, error) {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("kettle: marshal bundle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/bundles", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("kettle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		sig, err := c.signer.SignBody(payload)
		if err != nil {
			return "", fmt.Errorf("kettle: sign bundle: %w", err)
		}
		req.Header.Set("X-Kettle-Signature", sig)
	}

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("kettle: submit bundle %s: %w", bundle.ID, err)
	}

	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("kettle: decode submit response: %w", err)
	}
	if out.BundleID == "" {
		// service echoes our ID when it does not assign one
		return bundle.ID, nil
	}
	return out.BundleID, nil
}

// Status fetches the current inclusion status of a submitted bundle.
func (c *Client) Status(ctx context.Context, bundleID string) (domain.BundleStatus, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/bundles/"+bundleID, nil)
	if err != nil {
		return "", "", fmt.Errorf("kettle: build request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return "", "", fmt.Errorf("kettle: bundle status %s: %w", bundleID, err)
	}

	var out statusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", "", fmt.Errorf("kettle: decode status response: %w", err)
	}

	switch out.Status {
	case "included":
		return domain.BundleIncluded, out.InclusionBlock, nil
	case "failed", "dropped":
		return domain.BundleFailed, "", nil
	default:
		return domain.BundlePending, "", nil
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
