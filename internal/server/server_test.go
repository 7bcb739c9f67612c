package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/confirm"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/flags"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/prices"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/swap"
)

const testAPIKey = "secret"

var minUnit = constants.TokenUnits["MIN"]

type fakeSwaps struct {
	mu        sync.Mutex
	balance   *big.Int
	quoteErr  error
	buildErr  error
	lastBuild swap.SwapRequest
}

func (f *fakeSwaps) CheckBalance(context.Context, string, string) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeSwaps) GetTokenDecimal(context.Context, string) (int32, error) {
	return 6, nil
}

func (f *fakeSwaps) ResolveTokenAddress(t string) (string, error) {
	switch strings.ToUpper(t) {
	case "ADA", "LOVELACE":
		return constants.NativeUnit, nil
	case "MIN":
		return minUnit, nil
	case "":
		return "", fmt.Errorf("%w: empty ticker", apperr.ErrInvalidParameters)
	}
	if len(t) >= constants.PolicyIDLength {
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown token %q", apperr.ErrNotFound, t)
}

func (f *fakeSwaps) GetAmountOut(_ context.Context, from, to string, amountIn *big.Int, slippage float64) (*models.SwapQuote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	if slippage < 0 || slippage >= 1 {
		return nil, fmt.Errorf("%w: slippage", apperr.ErrInvalidParameters)
	}
	return &models.SwapQuote{
		Quote: models.Quote{
			AmountIn:     amountIn,
			AmountOut:    big.NewInt(4_935_790),
			AmountOutMin: big.NewInt(4_886_432),
			Slippage:     slippage,
		},
		FromAsset:   from,
		ToAsset:     to,
		PoolAddress: "addr1pool",
	}, nil
}

func (f *fakeSwaps) DefaultSlippage() float64 { return 0.01 }

func (f *fakeSwaps) BuildSwap(_ context.Context, req swap.SwapRequest) (*swap.BuiltSwap, error) {
	f.mu.Lock()
	f.lastBuild = req
	f.mu.Unlock()
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	return &swap.BuiltSwap{ExecutionID: "exec-1", TxHash: strings.Repeat("ab", 32), TxHex: "84a0", Fee: 180_000, TTL: 120_007_200}, nil
}

func (f *fakeSwaps) SubmitWitnessed(_ context.Context, unsignedHex, witnessHex string) (string, error) {
	if witnessHex == "bad" {
		return "", fmt.Errorf("%w: witness set is not hex", apperr.ErrInvalidParameters)
	}
	return strings.Repeat("cd", 32), nil
}

func (f *fakeSwaps) QuoteIntent(ctx context.Context, intent *models.SwapIntent) (*models.SwapParams, *models.SwapQuote, error) {
	from, err := f.ResolveTokenAddress(intent.FromToken)
	if err != nil {
		return nil, nil, err
	}
	to, err := f.ResolveTokenAddress(intent.ToToken)
	if err != nil {
		return nil, nil, err
	}
	params := &models.SwapParams{FromUnit: from, ToUnit: to, AmountIn: "25000000", Slippage: 0.01}
	q, err := f.GetAmountOut(ctx, from, to, big.NewInt(25_000_000), 0.01)
	return params, q, err
}

type fakeHalts struct {
	mu    sync.Mutex
	items map[string]*flags.Halt
}

func (f *fakeHalts) Upsert(_ context.Context, scope string, active bool, reason string) (*flags.Halt, error) {
	s, err := flags.NormalizeScope(scope)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &flags.Halt{Scope: s, Active: active, Reason: reason, UpdatedAt: time.Now().UTC()}
	f.items[s] = h
	return h, nil
}

func (f *fakeHalts) Get(_ context.Context, scope string) (*flags.Halt, error) {
	s, err := flags.NormalizeScope(scope)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.items[s]
	if !ok {
		return nil, flags.ErrNotFound
	}
	return h, nil
}

func (f *fakeHalts) List(context.Context) ([]*flags.Halt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*flags.Halt{}
	for _, h := range f.items {
		out = append(out, h)
	}
	return out, nil
}

func (f *fakeHalts) Delete(_ context.Context, scope string) error {
	s, err := flags.NormalizeScope(scope)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, s)
	return nil
}

type fakeRecent struct{ items []*models.SwapEvent }

func (f *fakeRecent) RecentSwaps(_ context.Context, limit int64) ([]*models.SwapEvent, error) {
	if int64(len(f.items)) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

type fakeAI struct{}

func (fakeAI) Parse(_ context.Context, text string) (*models.SwapIntent, error) {
	if strings.Contains(text, "weather") {
		return nil, fmt.Errorf("%w: could not understand the request", apperr.ErrInvalidParameters)
	}
	fields := strings.Fields(text)
	return &models.SwapIntent{FromToken: fields[2], ToToken: fields[4]}, nil
}

type fakePrices struct{}

func (fakePrices) Latest(_ context.Context, token string) (*prices.Sample, error) {
	if token != "cardano" {
		return nil, fmt.Errorf("%w: no price for %s", apperr.ErrNotFound, token)
	}
	return &prices.Sample{TokenID: "cardano", Price: 0.62, Timestamp: time.Unix(1_700_000_000, 0).UTC()}, nil
}

type fakeConfirm struct{}

func (fakeConfirm) Status(_ context.Context, hash string) (*confirm.Status, error) {
	return &confirm.Status{TxHash: hash, State: confirm.StateConfirmed, BlockHeight: 10, Confirmations: 3}, nil
}

type testEnv struct {
	swaps  *fakeSwaps
	halts  *fakeHalts
	server *Server
}

func newTestEnv(t *testing.T, apiKey string, mutate func(*Handlers)) *testEnv {
	t.Helper()
	env := &testEnv{
		swaps: &fakeSwaps{balance: big.NewInt(100_000_000)},
		halts: &fakeHalts{items: map[string]*flags.Halt{}},
	}
	h := &Handlers{
		Swaps:   env.swaps,
		Recent:  &fakeRecent{items: []*models.SwapEvent{{ExecutionID: "e2"}, {ExecutionID: "e1"}}},
		Halts:   env.halts,
		AI:      fakeAI{},
		Prices:  fakePrices{},
		Confirm: fakeConfirm{},
	}
	if mutate != nil {
		mutate(h)
	}
	s, err := NewServer(ServerDeps{Handlers: h, Config: ServerConfig{APIKey: apiKey, Gatherer: prometheus.NewRegistry()}})
	require.NoError(t, err)
	env.server = s
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestNewServer_RequiresSwaps(t *testing.T) {
	_, err := NewServer(ServerDeps{Handlers: &Handlers{}})
	assert.Error(t, err)
}

func TestHealth_NoKeyNeeded(t *testing.T) {
	env := newTestEnv(t, testAPIKey, nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, testAPIKey, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/tokens/min", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/tokens/min", "").Code)
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodGet, "/v1/balance?address=addr1wallet", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp BalanceResponse
	decode(t, rec, &resp)
	assert.Equal(t, constants.NativeUnit, resp.Unit)
	assert.Equal(t, "100000000", resp.Balance)
	assert.Equal(t, "100", resp.Display)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/balance", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/balance?address=a&unit=FOO", "").Code)
}

func TestTokens(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodGet, "/v1/tokens/min", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tok TokenResponse
	decode(t, rec, &tok)
	assert.Equal(t, TokenResponse{Ticker: "MIN", Unit: minUnit}, tok)

	rec = env.do(t, http.MethodGet, "/v1/tokens/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown token")

	rec = env.do(t, http.MethodGet, "/v1/assets/"+minUnit+"/decimals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dec DecimalsResponse
	decode(t, rec, &dec)
	assert.Equal(t, minUnit, dec.Unit)
	assert.Equal(t, int32(6), dec.Decimals)
}

func TestQuote(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodGet, "/v1/quote?from=ada&to=min&amount=10000000&slippage=0.01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var q models.SwapQuote
	decode(t, rec, &q)
	assert.Equal(t, "4886432", q.AmountOutMin.String())
	assert.Equal(t, minUnit, q.ToAsset)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/quote?from=ada&to=min", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/quote?from=ada&to=min&amount=1.5", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/quote?from=ada&to=min&amount=1&slippage=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/quote?from=ada&to=min&amount=1&slippage=2", "").Code)
}

func TestQuote_UpstreamHidesDetails(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.swaps.quoteErr = fmt.Errorf("pool: %w: indexer returned 503", apperr.ErrUpstreamUnavailable)

	rec := env.do(t, http.MethodGet, "/v1/quote?from=ada&to=min&amount=1", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "upstream unavailable", resp.Error)
	assert.Nil(t, resp.Details)
}

func TestBuildSwap(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodPost, "/v1/swaps/build", `{"from":"ada","to":"MIN","amount_in":"10000000","wallet":"addr1wallet"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var built swap.BuiltSwap
	decode(t, rec, &built)
	assert.Equal(t, "84a0", built.TxHex)
	assert.Equal(t, uint64(120_007_200), built.TTL)

	// Without amount_out_min the quoted minimum is used.
	assert.Equal(t, "4886432", env.swaps.lastBuild.AmountOutMin.String())
	assert.Equal(t, constants.NativeUnit, env.swaps.lastBuild.FromAsset)

	rec = env.do(t, http.MethodPost, "/v1/swaps/build", `{"from":"ada","to":"MIN","amount_in":"10000000","amount_out_min":"1","wallet":"addr1wallet"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), env.swaps.lastBuild.AmountOutMin.Int64())
}

func TestBuildSwap_Errors(t *testing.T) {
	env := newTestEnv(t, "", nil)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/swaps/build", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/swaps/build", `{"from":"ada","to":"min","amount_in":"1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/swaps/build", `{"from":"ada","to":"min","amount_in":"-1","wallet":"w"}`).Code)

	env.swaps.buildErr = fmt.Errorf("%w: wallet holds 5 of lovelace", apperr.ErrInsufficientBalance)
	rec := env.do(t, http.MethodPost, "/v1/swaps/build", `{"from":"ada","to":"min","amount_in":"10","amount_out_min":"1","wallet":"w"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient balance")
}

func TestSubmitSwap(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodPost, "/v1/swaps/submit", `{"tx_cbor":"84a0","witness_set":"a0"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SubmitSwapResponse
	decode(t, rec, &resp)
	assert.Len(t, resp.TxHash, 64)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/swaps/submit", `{"tx_cbor":"84a0"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/swaps/submit", `{"tx_cbor":"84a0","witness_set":"bad"}`).Code)
}

func TestRecentAndHistory(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodGet, "/v1/swaps/recent?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SwapsResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "e2", resp.Items[0].ExecutionID)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/swaps/recent?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/swaps/recent?limit=x", "").Code)

	// No history store configured.
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/v1/swaps/history?wallet=w", "").Code)
}

func TestPrice(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodGet, "/v1/prices/Cardano", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p PriceResponse
	decode(t, rec, &p)
	assert.Equal(t, 0.62, p.Price)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/prices/hosky", "").Code)
}

func TestHaltsCRUD(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodPost, "/v1/halts", `{"scope":"ada-min","active":true,"reason":"maintenance"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var h flags.Halt
	decode(t, rec, &h)
	assert.Equal(t, "ADA-MIN", h.Scope)
	assert.True(t, h.Active)

	rec = env.do(t, http.MethodGet, "/v1/halts/ADA-MIN", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/halts/ADA-MIN", `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &h)
	assert.False(t, h.Active)

	rec = env.do(t, http.MethodGet, "/v1/halts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []*flags.Halt `json:"items"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Items, 1)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/v1/halts/ADA-MIN", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/halts/ADA-MIN", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/halts", `{"scope":"bad scope"}`).Code)
}

func TestHalts_NotConfigured(t *testing.T) {
	env := newTestEnv(t, "", func(h *Handlers) { h.Halts = nil })
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/v1/halts", "").Code)
}

func TestAIIntent(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rec := env.do(t, http.MethodPost, "/v1/ai/intent", `{"text":"swap 25 ada for min"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp IntentResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ada", resp.Intent.FromToken)
	assert.Equal(t, minUnit, resp.Params.ToUnit)
	assert.Equal(t, "4886432", resp.Quote.AmountOutMin.String())

	rec = env.do(t, http.MethodPost, "/v1/ai/intent", `{"text":"swap 25 ada for foo"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"intent"`)
}

func TestAIIntent_RateLimited(t *testing.T) {
	env := newTestEnv(t, "", nil)

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(t, http.MethodPost, "/v1/ai/intent", `{"text":"what is the weather"}`).Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

func TestMetricsAndNotFound(t *testing.T) {
	env := newTestEnv(t, "", nil)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/metrics", "").Code)

	rec := env.do(t, http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "not found", strings.ToLower(resp.Error))
}

func TestSwapStatus(t *testing.T) {
	env := newTestEnv(t, testAPIKey, nil)
	hash := strings.Repeat("ab", 32)

	rec := env.do(t, http.MethodGet, "/v1/swaps/"+hash+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st confirm.Status
	decode(t, rec, &st)
	assert.Equal(t, confirm.StateConfirmed, st.State)
	assert.Equal(t, uint64(3), st.Confirmations)

	rec = env.do(t, http.MethodGet, "/v1/swaps/abc/status", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env = newTestEnv(t, testAPIKey, func(h *Handlers) { h.Confirm = nil })
	rec = env.do(t, http.MethodGet, "/v1/swaps/"+hash+"/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
