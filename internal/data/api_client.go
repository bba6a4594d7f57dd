package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"farmlokal/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// APIClient talks to the upstream data provider (API A). It implements
// biz.UpstreamClient: a single request/response call that either returns
// structured data or fails with a transport error. Retries and circuit
// breaking live in the biz layer, not here.
type APIClient struct {
	cfg    *conf.API
	client *http.Client
	logger *log.Helper
}

// NewAPIClient creates a new upstream data provider client.
func NewAPIClient(c *conf.Upstream, logger log.Logger) *APIClient {
	cfg := &conf.API{Timeout: 5 * time.Second}
	if c != nil && c.API != nil {
		cfg = c.API
	}

	return &APIClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.NewHelper(logger),
	}
}

// FetchProduct performs a single GET against the provider.
// bearer may be empty when the provider needs no credential.
func (c *APIClient) FetchProduct(ctx context.Context, productID int64, bearer string) (json.RawMessage, error) {
	if c.cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream API base URL is not configured")
	}

	endpoint := fmt.Sprintf("%s/posts/%d", c.cfg.BaseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	return json.RawMessage(body), nil
}
