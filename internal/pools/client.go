package pools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/metrics"
)

// Client reads the DEX pool index over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.Metrics
	logger     *logrus.Logger
}

// ClientConfig holds configuration for the pool index client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  *logrus.Logger
}

// NewClient creates a pool index client. BaseURL is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: pool index url is required", apperr.ErrInvalidParameters)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out any) (err error) {
	started := time.Now()
	defer func() { c.metrics.ObserveIndexer(endpoint, started, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: pool index %s: %v", apperr.ErrUpstreamUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: pool index %s: %v", apperr.ErrUpstreamUnavailable, endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: pool index %s", apperr.ErrNotFound, endpoint)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: pool index %s: http %d: %s", apperr.ErrUpstreamUnavailable, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: pool index %s: decode: %v", apperr.ErrUpstreamUnavailable, endpoint, err)
	}
	return nil
}

func (c *Client) V2PoolByPair(ctx context.Context, assetA, assetB string) (*Pool, error) {
	var p Pool
	q := url.Values{"assetA": {assetA}, "assetB": {assetB}}
	if err := c.get(ctx, "v2/pools/pair", "/v2/pools/pair", q, &p); err != nil {
		return nil, err
	}
	if p.Address == "" {
		return nil, fmt.Errorf("%w: v2 pool %s/%s", apperr.ErrNotFound, assetA, assetB)
	}
	p.Version = "v2"
	return &p, nil
}

func (c *Client) V1Pools(ctx context.Context, page, count int) ([]Pool, error) {
	var out []Pool
	q := url.Values{
		"page":  {fmt.Sprint(page)},
		"count": {fmt.Sprint(count)},
		"order": {"asc"},
	}
	if err := c.get(ctx, "v1/pools", "/v1/pools", q, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Version = "v1"
	}
	return out, nil
}
