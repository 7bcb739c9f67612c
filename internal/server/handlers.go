package server

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/confirm"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/flags"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/prices"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/swap"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/units"
)

// SwapAPI is the swap surface the handlers expose. *swap.Service implements it.
type SwapAPI interface {
	CheckBalance(ctx context.Context, address, assetUnit string) (*big.Int, error)
	GetTokenDecimal(ctx context.Context, assetUnit string) (int32, error)
	ResolveTokenAddress(ticker string) (string, error)
	GetAmountOut(ctx context.Context, fromAsset, toAsset string, amountIn *big.Int, slippage float64) (*models.SwapQuote, error)
	DefaultSlippage() float64
	BuildSwap(ctx context.Context, req swap.SwapRequest) (*swap.BuiltSwap, error)
	SubmitWitnessed(ctx context.Context, unsignedHex, witnessHex string) (string, error)
	QuoteIntent(ctx context.Context, intent *models.SwapIntent) (*models.SwapParams, *models.SwapQuote, error)
}

type RecentStore interface {
	RecentSwaps(ctx context.Context, limit int64) ([]*models.SwapEvent, error)
}

type HistoryStore interface {
	WalletHistory(ctx context.Context, wallet string, limit int) ([]*models.SwapEvent, error)
}

type HaltStore interface {
	Upsert(ctx context.Context, scope string, active bool, reason string) (*flags.Halt, error)
	Get(ctx context.Context, scope string) (*flags.Halt, error)
	List(ctx context.Context) ([]*flags.Halt, error)
	Delete(ctx context.Context, scope string) error
}

type IntentParser interface {
	Parse(ctx context.Context, text string) (*models.SwapIntent, error)
}

type TxTracker interface {
	Status(ctx context.Context, txHash string) (*confirm.Status, error)
}

type PriceStore interface {
	Latest(ctx context.Context, tokenID string) (*prices.Sample, error)
}

// Handlers contains all dependencies for API endpoint handlers. Everything
// except Swaps is optional; a missing store answers 503.
type Handlers struct {
	Swaps   SwapAPI
	Recent  RecentStore  // Redis recent-swap list
	History HistoryStore // ClickHouse swap history
	Halts   HaltStore    // Redis trading halts
	AI      IntentParser
	Prices  PriceStore // SQLite price samples
	Confirm TxTracker  // indexer-backed tx status
	DevMode bool       // Enable detailed error responses in development
	Logger  *logrus.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail answers with the status of err's kind. Caller mistakes carry the
// message; server-side failures only do in dev mode.
func (h *Handlers) fail(c echo.Context, err error) error {
	code := apperr.HTTPStatus(err)
	if errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusGatewayTimeout
	}
	if code < http.StatusInternalServerError {
		return h.err(c, code, err.Error(), nil)
	}
	if h.Logger != nil {
		h.Logger.WithError(err).WithField("path", c.Path()).Warn("request failed")
	}
	msg := http.StatusText(code)
	if k := apperr.Kind(err); k != nil {
		msg = k.Error()
	}
	return h.err(c, code, msg, map[string]any{"err": err.Error()})
}

func (h *Handlers) unavailable(c echo.Context, what string) error {
	return h.err(c, http.StatusServiceUnavailable, what+" is not configured", nil)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// resolve accepts a ticker or a unit.
func (h *Handlers) resolve(token string) (string, error) {
	return h.Swaps.ResolveTokenAddress(strings.TrimSpace(token))
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Balance returns ?address's holding of ?unit (ticker or unit, default ADA).
func (h *Handlers) Balance(c echo.Context) error {
	address := strings.TrimSpace(c.QueryParam("address"))
	if address == "" {
		return h.err(c, http.StatusBadRequest, "invalid address", map[string]any{"address": "required"})
	}
	token := c.QueryParam("unit")
	if strings.TrimSpace(token) == "" {
		token = constants.NativeUnit
	}
	unit, err := h.resolve(token)
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	bal, err := h.Swaps.CheckBalance(ctx, address, unit)
	if err != nil {
		return h.fail(c, err)
	}
	dec, err := h.Swaps.GetTokenDecimal(ctx, unit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, BalanceResponse{
		Address: address,
		Unit:    unit,
		Balance: bal.String(),
		Display: units.ToDisplay(bal, dec).String(),
	})
}

func (h *Handlers) ResolveToken(c echo.Context) error {
	ticker := c.Param("ticker")
	unit, err := h.resolve(ticker)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, TokenResponse{Ticker: strings.ToUpper(ticker), Unit: unit})
}

func (h *Handlers) TokenDecimals(c echo.Context) error {
	unit, err := h.resolve(c.Param("unit"))
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	dec, err := h.Swaps.GetTokenDecimal(ctx, unit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, DecimalsResponse{Unit: unit, Decimals: dec})
}

func parseSlippage(s string, def float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, apperr.ErrInvalidParameters
	}
	return v, nil
}

// Quote prices ?amount smallest units of ?from into ?to.
func (h *Handlers) Quote(c echo.Context) error {
	from, err := h.resolve(c.QueryParam("from"))
	if err != nil {
		return h.fail(c, err)
	}
	to, err := h.resolve(c.QueryParam("to"))
	if err != nil {
		return h.fail(c, err)
	}
	amountStr := strings.TrimSpace(c.QueryParam("amount"))
	if amountStr == "" {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "required"})
	}
	amount, err := models.ParseQuantity(amountStr)
	if err != nil {
		return h.fail(c, err)
	}
	slippage, err := parseSlippage(c.QueryParam("slippage"), h.Swaps.DefaultSlippage())
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid slippage", map[string]any{"slippage": "must be a fraction, e.g. 0.01"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	q, err := h.Swaps.GetAmountOut(ctx, from, to, amount, slippage)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// BuildSwap returns an unsigned transaction for a browser wallet to sign.
func (h *Handlers) BuildSwap(c echo.Context) error {
	var req BuildSwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Wallet) == "" {
		return h.err(c, http.StatusBadRequest, "invalid wallet", map[string]any{"wallet": "required"})
	}
	from, err := h.resolve(req.From)
	if err != nil {
		return h.fail(c, err)
	}
	to, err := h.resolve(req.To)
	if err != nil {
		return h.fail(c, err)
	}
	amountIn, err := models.ParseQuantity(strings.TrimSpace(req.AmountIn))
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	var amountOutMin *big.Int
	if s := strings.TrimSpace(req.AmountOutMin); s != "" {
		if amountOutMin, err = models.ParseQuantity(s); err != nil {
			return h.fail(c, err)
		}
	} else {
		slippage := h.Swaps.DefaultSlippage()
		if req.Slippage != nil {
			slippage = *req.Slippage
		}
		q, err := h.Swaps.GetAmountOut(ctx, from, to, amountIn, slippage)
		if err != nil {
			return h.fail(c, err)
		}
		amountOutMin = q.AmountOutMin
	}

	built, err := h.Swaps.BuildSwap(ctx, swap.SwapRequest{
		FromAsset:    from,
		ToAsset:      to,
		AmountIn:     amountIn,
		AmountOutMin: amountOutMin,
		Wallet:       strings.TrimSpace(req.Wallet),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, built)
}

// SubmitSwap merges a wallet witness set into a built transaction and
// submits it.
func (h *Handlers) SubmitSwap(c echo.Context) error {
	var req SubmitSwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if req.TxCBOR == "" || req.WitnessSet == "" {
		return h.err(c, http.StatusBadRequest, "tx_cbor and witness_set are required", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	hash, err := h.Swaps.SubmitWitnessed(ctx, strings.TrimSpace(req.TxCBOR), strings.TrimSpace(req.WitnessSet))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, SubmitSwapResponse{TxHash: hash})
}

// SwapStatus reports whether a submitted transaction has reached a block.
func (h *Handlers) SwapStatus(c echo.Context) error {
	if h.Confirm == nil {
		return h.unavailable(c, "confirmation tracking")
	}
	hash := strings.ToLower(strings.TrimSpace(c.Param("hash")))
	if len(hash) != 64 {
		return h.err(c, http.StatusBadRequest, "hash must be 64 hex characters", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	st, err := h.Confirm.Status(ctx, hash)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func parseLimit(s string, def, maxN int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxN {
		return 0, false
	}
	return n, true
}

// RecentSwaps returns the most recent submitted swaps, newest first.
// Accepts limit query parameter (default: 20, range: 1-100)
func (h *Handlers) RecentSwaps(c echo.Context) error {
	if h.Recent == nil {
		return h.unavailable(c, "swap cache")
	}
	limit, ok := parseLimit(c.QueryParam("limit"), 20, constants.MaxRecentSwaps)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Recent.RecentSwaps(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get swaps", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, SwapsResponse{Items: items})
}

// SwapHistory returns a wallet's swaps from the history store.
func (h *Handlers) SwapHistory(c echo.Context) error {
	if h.History == nil {
		return h.unavailable(c, "swap history")
	}
	wallet := strings.TrimSpace(c.QueryParam("wallet"))
	if wallet == "" {
		return h.err(c, http.StatusBadRequest, "invalid wallet", map[string]any{"wallet": "required"})
	}
	limit, ok := parseLimit(c.QueryParam("limit"), 50, 500)
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 500"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.History.WalletHistory(ctx, wallet, limit)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get history", map[string]any{"err": err.Error()})
	}
	if items == nil {
		items = []*models.SwapEvent{}
	}
	return c.JSON(http.StatusOK, SwapsResponse{Items: items})
}

// Price returns the latest crawled USD price for a CoinGecko token id.
func (h *Handlers) Price(c echo.Context) error {
	if h.Prices == nil {
		return h.unavailable(c, "price store")
	}
	token := strings.ToLower(strings.TrimSpace(c.Param("token")))
	if token == "" {
		return h.err(c, http.StatusBadRequest, "invalid token", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	s, err := h.Prices.Latest(ctx, token)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, PriceResponse{
		Token:     s.TokenID,
		Price:     s.Price,
		Volume24h: s.Volume24h,
		Change24h: s.Change24h,
		At:        s.Timestamp.Format(time.RFC3339),
	})
}

func (h *Handlers) HaltsList(c echo.Context) error {
	if h.Halts == nil {
		return h.unavailable(c, "halt store")
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Halts.List(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) HaltsUpsert(c echo.Context) error {
	if h.Halts == nil {
		return h.unavailable(c, "halt store")
	}
	var req HaltUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Halts.Upsert(ctx, req.Scope, req.Active, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) HaltsUpdate(c echo.Context) error {
	if h.Halts == nil {
		return h.unavailable(c, "halt store")
	}
	var req HaltUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Halts.Upsert(ctx, c.Param("scope"), req.Active, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) HaltsGet(c echo.Context) error {
	if h.Halts == nil {
		return h.unavailable(c, "halt store")
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Halts.Get(ctx, c.Param("scope"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// HaltsDelete returns 204 No Content on successful deletion
func (h *Handlers) HaltsDelete(c echo.Context) error {
	if h.Halts == nil {
		return h.unavailable(c, "halt store")
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Halts.Delete(ctx, c.Param("scope")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AIIntent parses a natural-language swap request and quotes it. An intent
// that parses but cannot be quoted is still returned alongside the error.
func (h *Handlers) AIIntent(c echo.Context) error {
	if h.AI == nil {
		return h.unavailable(c, "ai")
	}
	var req IntentRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return h.err(c, http.StatusBadRequest, "text is required", map[string]any{"text": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()
	intent, err := h.AI.Parse(ctx, req.Text)
	if err != nil {
		return h.fail(c, err)
	}

	params, q, err := h.Swaps.QuoteIntent(ctx, intent)
	if err != nil {
		code := apperr.HTTPStatus(err)
		return c.JSON(code, map[string]any{
			"error":  err.Error(),
			"code":   code,
			"intent": intent,
		})
	}
	return c.JSON(http.StatusOK, IntentResponse{Intent: intent, Params: params, Quote: q, TookMs: time.Since(start).Milliseconds()})
}
