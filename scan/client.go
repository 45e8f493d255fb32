package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/covalent-sh/warden/iox"
	"github.com/covalent-sh/warden/types"
)

// DefaultTimeout is the default per-query timeout. The gate sits on the
// interactive path, so a slow scoring service must not stall the user.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes bounds scoring response reads.
const maxResponseBytes = 8 * 1024 * 1024

// Config configures the HTTP scanner client.
type Config struct {
	// URL is the scoring service base URL (required).
	URL string
	// Token authenticates the query; empty sends an anonymous query.
	Token string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
}

// Client queries the remote scoring service over HTTP.
// A circuit breaker sheds queries after repeated failures so a dead
// scoring service costs one failed call, not one timeout per invocation.
type Client struct {
	config  Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a scanner client from the given config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("scanner requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "scoring-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})

	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}, nil
}

// scanRequest is the wire shape of a batch query.
type scanRequest struct {
	QueryID    string                   `json:"query_id"`
	References []types.PackageReference `json:"references"`
}

// scanResponse is the wire shape of a batch answer.
// Unknown fields are ignored for forward compatibility.
type scanResponse struct {
	Findings []types.Finding `json:"findings"`
}

// Scan batches all references into a single query.
func (c *Client) Scan(ctx context.Context, refs []types.PackageReference) ([]types.Finding, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(scanRequest{
		QueryID:    uuid.NewString(),
		References: refs,
	})
	if err != nil {
		return nil, fmt.Errorf("scan: marshal query: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doQuery(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	return result.([]types.Finding), nil
}

// doQuery performs a single POST to the scan endpoint.
func (c *Client) doQuery(ctx context.Context, body []byte) ([]types.Finding, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+"/v0/scan", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scan: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan: query failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scan: unexpected status %d", resp.StatusCode)
	}

	var decoded scanResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("scan: decode response: %w", err)
	}

	return decoded.Findings, nil
}
