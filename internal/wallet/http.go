package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
)

// HTTPConnector reaches a CIP-30 wallet through a small signing bridge that
// exposes the wallet's enable and signTx calls over HTTP:
//
//	GET  /health
//	POST /enable   -> {"session": "..."}
//	POST /sign-tx  {"session","tx","partial_sign"} -> {"witness_set": "<hex>"}
type HTTPConnector struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *logrus.Logger
}

// NewHTTPConnector returns nil when no bridge url is configured so callers
// report the wallet as unavailable.
func NewHTTPConnector(cfg HTTPConfig) *HTTPConnector {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &HTTPConnector{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

func (c *HTTPConnector) Available(ctx context.Context) bool {
	if c == nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Debug("wallet bridge unreachable")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *HTTPConnector) Enable(ctx context.Context) (API, error) {
	var out struct {
		Session string `json:"session"`
	}
	if err := c.post(ctx, "/enable", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &httpAPI{conn: c, session: out.Session}, nil
}

func (c *HTTPConnector) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrWalletUnavailable, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrWalletUnavailable, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: http %d: %s", apperr.ErrWalletUnavailable, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", apperr.ErrWalletUnavailable, path, err)
	}
	return nil
}

type httpAPI struct {
	conn    *HTTPConnector
	session string
}

func (a *httpAPI) SignTx(ctx context.Context, txHex string, partialSign bool) (string, error) {
	in := map[string]any{
		"session":      a.session,
		"tx":           txHex,
		"partial_sign": partialSign,
	}
	var out struct {
		WitnessSet string `json:"witness_set"`
	}
	if err := a.conn.post(ctx, "/sign-tx", in, &out); err != nil {
		return "", err
	}
	if out.WitnessSet == "" {
		return "", fmt.Errorf("%w: bridge returned no witness set", apperr.ErrWalletUnavailable)
	}
	return out.WitnessSet, nil
}
