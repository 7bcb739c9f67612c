package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

// stats is one entry of a CoinGecko simple/price response.
type stats struct {
	USD       *float64 `json:"usd"`
	Volume24h *float64 `json:"usd_24h_vol"`
	Change24h *float64 `json:"usd_24h_change"`
}

type CrawlerConfig struct {
	URL        string
	TokenIDs   []string
	Interval   time.Duration
	Store      *Store
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Crawler polls a CoinGecko compatible simple-price endpoint and appends
// what it gets to the store.
type Crawler struct {
	url      string
	tokens   []string
	interval time.Duration
	store    *Store
	client   *http.Client
	logger   *logrus.Logger
	now      func() time.Time
}

func NewCrawler(cfg CrawlerConfig) (*Crawler, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: price store is nil", apperr.ErrInvalidParameters)
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: price url: %v", apperr.ErrInvalidParameters, err)
	}
	tokens := make([]string, 0, len(cfg.TokenIDs))
	for _, t := range cfg.TokenIDs {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no token ids to crawl", apperr.ErrInvalidParameters)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Crawler{
		url:      cfg.URL,
		tokens:   tokens,
		interval: cfg.Interval,
		store:    cfg.Store,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
		now:      time.Now,
	}, nil
}

// RoundTimestamp returns the next interval boundary after now, in UTC.
func RoundTimestamp(now time.Time, interval time.Duration) time.Time {
	return now.UTC().Truncate(interval).Add(interval)
}

// Fetch queries current USD price, 24h volume and 24h change for every
// configured token. Tokens the endpoint does not know are left out.
func (c *Crawler) Fetch(ctx context.Context) ([]Sample, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(c.tokens, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_vol", "true")
	q.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: price request: %v", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: price endpoint returned %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body map[string]stats
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode prices: %v", apperr.ErrUpstreamUnavailable, err)
	}

	ts := RoundTimestamp(c.now(), c.interval)
	ids := make([]string, 0, len(body))
	for id := range body {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Sample, 0, len(ids))
	for _, id := range ids {
		st := body[id]
		if st.USD == nil {
			c.logger.WithField("token", id).Warn("price missing from response")
			continue
		}
		out = append(out, Sample{
			TokenID:   id,
			Timestamp: ts,
			Price:     *st.USD,
			Volume24h: st.Volume24h,
			Change24h: st.Change24h,
		})
	}
	return out, nil
}

// Crawl fetches once and stores the result.
func (c *Crawler) Crawl(ctx context.Context) ([]Sample, error) {
	samples, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.Insert(ctx, samples); err != nil {
		return nil, err
	}
	for _, s := range samples {
		c.logger.WithFields(logrus.Fields{
			"token": s.TokenID,
			"price": s.Price,
			"at":    s.Timestamp.Format("2006-01-02 15:04:05"),
		}).Info("price recorded")
	}
	return samples, nil
}

// Run crawls immediately and then every interval until ctx is cancelled.
// A failed round is logged and the loop keeps going.
func (c *Crawler) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.Crawl(ctx); err != nil {
			c.logger.WithError(err).Error("price crawl failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
