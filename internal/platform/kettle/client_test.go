package kettle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

type staticSigner struct{ header string }

func (s staticSigner) SignBody([]byte) (string, error) { return s.header, nil }

func testBundle() domain.Bundle {
	return domain.Bundle{
		ID: "bundle-1",
		Inclusion: domain.BundleInclusion{
			Block:    "latest",
			MaxBlock: "latest+2",
		},
	}
}

func TestSubmitSignsAndReturnsServiceID(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/bundles", r.URL.Path)
		gotSig = r.Header.Get("X-Kettle-Signature")
		json.NewEncoder(w).Encode(map[string]string{"bundleId": "svc-42", "status": "pending"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticSigner{header: "0xabc:0xsig"}, 5*time.Second)
	id, err := c.Submit(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, "svc-42", id)
	assert.Equal(t, "0xabc:0xsig", gotSig)
}

func TestSubmitEchoesLocalIDWhenServiceAssignsNone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, 0)
	id, err := c.Submit(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Equal(t, "bundle-1", id)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		service string
		want    domain.BundleStatus
		block   string
	}{
		{"included", domain.BundleIncluded, "19000123"},
		{"failed", domain.BundleFailed, ""},
		{"dropped", domain.BundleFailed, ""},
		{"pending", domain.BundlePending, ""},
		{"something-new", domain.BundlePending, ""},
	}

	for _, tc := range cases {
		t.Run(tc.service, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/bundles/b1", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]string{
					"status":         tc.service,
					"inclusionBlock": tc.block,
				})
			}))
			defer srv.Close()

			c := NewClient(srv.URL, nil, 0)
			status, block, err := c.Status(context.Background(), "b1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
			assert.Equal(t, tc.block, block)
		})
	}
}

func TestSubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, 0)
	_, err := c.Submit(context.Background(), testBundle())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
