package blockfrost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	bfg "github.com/blockfrost/blockfrost-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/metrics"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

const pageSize = 100

// Client wraps the Blockfrost SDK with input checks, rate limiting, metrics
// and apperr mapping. It never retries: every failure goes back to the
// caller.
type Client struct {
	api     bfg.APIClient
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// ClientConfig holds configuration for the indexer client
type ClientConfig struct {
	BaseURL           string
	ProjectID         string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables client-side limiting
	Metrics           *metrics.Metrics
	Logger            *logrus.Logger
}

// NewClient creates an indexer client. A project id is mandatory.
func NewClient(cfg ClientConfig) (*Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("%w: blockfrost project id is required", apperr.ErrInvalidParameters)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	server := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if server == "" {
		server = bfg.CardanoMainNet
	}

	// passing our own http.Client keeps the SDK from wrapping it in retries
	api := bfg.NewAPIClient(bfg.APIClientOptions{
		ProjectID: projectID,
		Server:    server,
		Client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &recordingTransport{next: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			}},
		},
	})

	return &Client{
		api:     api,
		limiter: limiter,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}, nil
}

// call runs one SDK request under the limiter and turns its failure into an
// apperr kind using the HTTP status the transport recorded.
func (c *Client) call(ctx context.Context, endpoint string, submit bool, fn func(ctx context.Context) error) (err error) {
	started := time.Now()
	defer func() { c.metrics.ObserveIndexer(endpoint, started, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrUpstreamUnavailable, endpoint, err)
	}

	ctx, ex := withExchange(ctx)
	callErr := fn(ctx)

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   ex.status,
		"took":     time.Since(started),
	}).Debug("indexer call")

	if callErr == nil && ex.ok() {
		return nil
	}
	if ex.status == 0 {
		return fmt.Errorf("%w: %s: request failed: %v", apperr.ErrUpstreamUnavailable, endpoint, callErr)
	}
	if ex.ok() {
		return fmt.Errorf("%w: %s: failed to decode response: %v", apperr.ErrUpstreamUnavailable, endpoint, callErr)
	}

	apiErr := ex.apiError()
	switch {
	case ex.status == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %v", apperr.ErrNotFound, endpoint, apiErr)
	case ex.status == http.StatusBadRequest && submit:
		return fmt.Errorf("%w: %s: %v", apperr.ErrInvalidParameters, endpoint, apiErr)
	}
	return fmt.Errorf("%w: %s: %v", apperr.ErrUpstreamUnavailable, endpoint, apiErr)
}

// reshape moves an SDK result into the package's wire types, which keep
// track of fields the indexer left null.
func reshape(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// AddressUTxOs returns every UTxO at address, following pagination. An
// address the indexer has never seen has no UTxOs.
func (c *Client) AddressUTxOs(ctx context.Context, address string) ([]models.UTxO, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: address is required", apperr.ErrInvalidParameters)
	}

	var out []models.UTxO
	for page := 1; ; page++ {
		var batch []utxoJSON
		err := c.call(ctx, "addresses/utxos", false, func(ctx context.Context) error {
			res, err := c.api.AddressUTXOs(ctx, address, bfg.APIQueryParams{Count: pageSize, Page: page})
			if err != nil {
				return err
			}
			return reshape(res, &batch)
		})
		if errors.Is(err, apperr.ErrNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		for i, raw := range batch {
			u, err := toUTxO(raw, address)
			if err != nil {
				return nil, fmt.Errorf("%w: malformed utxo %d on page %d: %v", apperr.ErrUpstreamUnavailable, i, page, err)
			}
			out = append(out, u)
		}

		if len(batch) < pageSize {
			return out, nil
		}
	}
}

func toUTxO(raw utxoJSON, address string) (models.UTxO, error) {
	if raw.OutputIndex == nil {
		return models.UTxO{}, fmt.Errorf("missing output_index")
	}
	u := models.UTxO{
		TxHash:      raw.TxHash,
		OutputIndex: *raw.OutputIndex,
		Address:     raw.Address,
		Amounts:     make([]models.Amount, 0, len(raw.Amount)),
	}
	if u.Address == "" {
		u.Address = address
	}
	for _, a := range raw.Amount {
		q, err := models.ParseQuantity(a.Quantity)
		if err != nil {
			return models.UTxO{}, err
		}
		u.Amounts = append(u.Amounts, models.Amount{Unit: a.Unit, Quantity: q})
	}
	return u, u.Validate()
}

// Asset fetches registry metadata for a unit.
func (c *Client) Asset(ctx context.Context, unit string) (*AssetInfo, error) {
	if strings.TrimSpace(unit) == "" {
		return nil, fmt.Errorf("%w: asset unit is required", apperr.ErrInvalidParameters)
	}
	var raw assetJSON
	err := c.call(ctx, "assets", false, func(ctx context.Context) error {
		res, err := c.api.Asset(ctx, unit)
		if err != nil {
			return err
		}
		return reshape(res, &raw)
	})
	if err != nil {
		return nil, err
	}
	if raw.Asset == "" {
		return nil, fmt.Errorf("%w: asset response missing asset id", apperr.ErrUpstreamUnavailable)
	}

	info := &AssetInfo{Unit: raw.Asset, PolicyID: raw.PolicyID}
	if m := raw.Metadata; m != nil && !m.empty() {
		info.Name = raw.Metadata.Name
		info.Ticker = raw.Metadata.Ticker
		info.Decimals = raw.Metadata.Decimals
	}
	return info, nil
}

// LatestBlock returns the chain tip.
func (c *Client) LatestBlock(ctx context.Context) (*models.ChainTip, error) {
	var raw blockJSON
	err := c.call(ctx, "blocks/latest", false, func(ctx context.Context) error {
		res, err := c.api.BlockLatest(ctx)
		if err != nil {
			return err
		}
		return reshape(res, &raw)
	})
	if err != nil {
		return nil, err
	}
	// the SDK reports a null slot as zero
	if raw.Slot == nil || *raw.Slot == 0 {
		return nil, fmt.Errorf("%w: could not get current slot", apperr.ErrInvalidParameters)
	}

	tip := &models.ChainTip{Hash: raw.Hash, Slot: *raw.Slot}
	if raw.Height != nil {
		tip.Height = *raw.Height
	}
	if raw.Epoch != nil {
		tip.Epoch = *raw.Epoch
	}
	return tip, nil
}

// LatestParameters returns the current epoch's protocol parameters.
func (c *Client) LatestParameters(ctx context.Context) (*models.ProtocolParams, error) {
	var raw paramsJSON
	err := c.call(ctx, "epochs/latest/parameters", false, func(ctx context.Context) error {
		res, err := c.api.LatestEpochParameters(ctx)
		if err != nil {
			return err
		}
		return reshape(res, &raw)
	})
	if err != nil {
		return nil, err
	}

	if raw.MinFeeA.Value == 0 || raw.MinFeeB.Value == 0 {
		return nil, fmt.Errorf("%w: protocol parameters missing fee coefficients", apperr.ErrInvalidParameters)
	}
	p := &models.ProtocolParams{
		Epoch:            raw.Epoch.Value,
		MinFeeA:          raw.MinFeeA.Value,
		MinFeeB:          raw.MinFeeB.Value,
		PoolDeposit:      raw.PoolDeposit.Value,
		KeyDeposit:       raw.KeyDeposit.Value,
		CoinsPerUTxOByte: raw.CoinsPerUTxOSize.Value,
		MaxValSize:       raw.MaxValSize.Value,
		MaxTxSize:        raw.MaxTxSize.Value,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// SubmitTx posts a signed CBOR transaction and returns its hash.
func (c *Client) SubmitTx(ctx context.Context, signedTx []byte) (string, error) {
	if len(signedTx) == 0 {
		return "", fmt.Errorf("%w: empty transaction", apperr.ErrInvalidParameters)
	}

	var hash string
	err := c.call(ctx, "tx/submit", true, func(ctx context.Context) (err error) {
		hash, err = c.api.TransactionSubmit(ctx, signedTx)
		return err
	})
	if err != nil {
		return "", err
	}
	if hash == "" {
		return "", fmt.Errorf("%w: submit returned no transaction hash", apperr.ErrUpstreamUnavailable)
	}
	return hash, nil
}

// Transaction looks up a transaction by hash. Transactions still in the
// mempool are ErrNotFound.
func (c *Client) Transaction(ctx context.Context, hash string) (*TxInfo, error) {
	if len(hash) != 64 {
		return nil, fmt.Errorf("%w: transaction hash must be 64 hex characters", apperr.ErrInvalidParameters)
	}
	var raw txJSON
	err := c.call(ctx, "txs", false, func(ctx context.Context) error {
		res, err := c.api.Transaction(ctx, hash)
		if err != nil {
			return err
		}
		return reshape(res, &raw)
	})
	if err != nil {
		return nil, err
	}
	if raw.Slot == nil || raw.Block == "" {
		return nil, fmt.Errorf("%w: transaction response missing block", apperr.ErrUpstreamUnavailable)
	}

	info := &TxInfo{Hash: raw.Hash, Block: raw.Block, Slot: *raw.Slot, Fee: raw.Fees.Value, Valid: true}
	if raw.BlockHeight != nil {
		info.BlockHeight = *raw.BlockHeight
	}
	if raw.BlockTime != nil {
		info.BlockTime = *raw.BlockTime
	}
	if raw.ValidContract != nil {
		info.Valid = *raw.ValidContract
	}
	return info, nil
}
