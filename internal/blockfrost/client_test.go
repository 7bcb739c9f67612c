package blockfrost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/metrics"
)

const testHash = "aa00000000000000000000000000000000000000000000000000000000000001"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL, ProjectID: "test-project"})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresProjectID(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "http://localhost"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidParameters))
}

func TestAddressUTxOs_Paginates(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "test-project", r.Header.Get("project_id"))
		assert.Equal(t, "/addresses/addr1xyz/utxos", r.URL.Path)

		n := 0
		switch r.URL.Query().Get("page") {
		case "1":
			n = pageSize
		case "2":
			n = 3
		}
		items := make([]string, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, fmt.Sprintf(`{"tx_hash":"%s","output_index":%d,"amount":[{"unit":"lovelace","quantity":"1000000"}]}`, testHash, i))
		}
		_, _ = io.WriteString(w, "["+strings.Join(items, ",")+"]")
	})

	utxos, err := c.AddressUTxOs(context.Background(), "addr1xyz")
	require.NoError(t, err)
	assert.Len(t, utxos, pageSize+3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "addr1xyz", utxos[0].Address)
	assert.Equal(t, int64(1_000_000), utxos[0].Quantity("lovelace").Int64())
}

func TestAddressUTxOs_UnknownAddressIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status_code":404,"error":"Not Found","message":"The requested component has not been found."}`)
	})

	utxos, err := c.AddressUTxOs(context.Background(), "addr1unused")
	require.NoError(t, err)
	assert.Empty(t, utxos)
}

func TestAddressUTxOs_MalformedRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"tx_hash":"`+testHash+`","output_index":0,"amount":[{"unit":"lovelace","quantity":"-1"}]}]`)
	})

	_, err := c.AddressUTxOs(context.Background(), "addr1xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUpstreamUnavailable))
}

func TestAddressUTxOs_ServerErrorNoRetry(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.AddressUTxOs(context.Background(), "addr1xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUpstreamUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAddressUTxOs_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: url, ProjectID: "p"})
	require.NoError(t, err)
	_, err = c.AddressUTxOs(context.Background(), "addr1xyz")
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

func TestAddressUTxOs_RequiresAddress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.AddressUTxOs(context.Background(), " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidParameters)
}

func TestAsset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assets/withdec":
			_, _ = io.WriteString(w, `{"asset":"withdec","policy_id":"p","metadata":{"name":"Minswap","ticker":"MIN","decimals":6}}`)
		case "/assets/nometa":
			_, _ = io.WriteString(w, `{"asset":"nometa","policy_id":"p","metadata":null}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	info, err := c.Asset(context.Background(), "withdec")
	require.NoError(t, err)
	require.NotNil(t, info.Decimals)
	assert.Equal(t, 6, *info.Decimals)
	assert.Equal(t, "MIN", info.Ticker)

	info, err = c.Asset(context.Background(), "nometa")
	require.NoError(t, err)
	assert.Nil(t, info.Decimals)

	_, err = c.Asset(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestLatestBlock(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hash":"abc","height":10,"slot":123456,"epoch":500}`)
	})
	tip, err := c.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), tip.Slot)
	assert.Equal(t, uint64(500), tip.Epoch)
}

func TestLatestBlock_MissingSlot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hash":"abc","height":10,"slot":null}`)
	})
	_, err := c.LatestBlock(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrInvalidParameters))
}

func TestLatestParameters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"epoch":500,"min_fee_a":44,"min_fee_b":155381,"key_deposit":"2000000",
			"pool_deposit":"500000000","max_val_size":"5000","max_tx_size":16384,"coins_per_utxo_size":"4310"}`)
	})
	p, err := c.LatestParameters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(44), p.MinFeeA)
	assert.Equal(t, uint64(155381), p.MinFeeB)
	assert.Equal(t, uint64(2_000_000), p.KeyDeposit)
	assert.Equal(t, uint64(500_000_000), p.PoolDeposit)
	assert.Equal(t, uint64(5000), p.MaxValSize)
	assert.Equal(t, uint64(16384), p.MaxTxSize)
	assert.Equal(t, uint64(4310), p.CoinsPerUTxOByte)
}

func TestLatestParameters_MissingCoinsPerByte(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"min_fee_a":44,"min_fee_b":155381,"max_val_size":"5000","max_tx_size":16384,"coins_per_utxo_size":null}`)
	})
	_, err := c.LatestParameters(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrInvalidParameters))
}

func TestSubmitTx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/cbor", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte{0x84, 0x01}, body)
		_, _ = io.WriteString(w, `"`+testHash+`"`)
	})
	hash, err := c.SubmitTx(context.Background(), []byte{0x84, 0x01})
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
}

func TestSubmitTx_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status_code":400,"error":"Bad Request","message":"ValueNotConservedUTxO"}`)
	})
	_, err := c.SubmitTx(context.Background(), []byte{0x84})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidParameters))
	assert.Contains(t, err.Error(), "ValueNotConservedUTxO")
}

func TestClient_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hash":"abc","slot":1}`)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, ProjectID: "p", Metrics: m, RequestsPerSecond: 50})
	require.NoError(t, err)
	_, err = c.LatestBlock(context.Background())
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "swap_indexer_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/txs/"+testHash, r.URL.Path)
		_, _ = io.WriteString(w, `{"hash":"`+testHash+`","block":"blk","block_height":42,"block_time":1700000000,"slot":99,"fees":"182000","valid_contract":true}`)
	})
	tx, err := c.Transaction(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, "blk", tx.Block)
	assert.Equal(t, uint64(42), tx.BlockHeight)
	assert.Equal(t, uint64(99), tx.Slot)
	assert.Equal(t, uint64(182000), tx.Fee)
	assert.True(t, tx.Valid)
}

func TestTransaction_PendingIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status_code":404,"error":"Not Found","message":"The requested component has not been found."}`)
	})
	_, err := c.Transaction(context.Background(), testHash)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = c.Transaction(context.Background(), "abc")
	assert.ErrorIs(t, err, apperr.ErrInvalidParameters)
}

func TestRecordingTransport_KeepsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"status_code":429,"error":"Project Over Limit","message":"slow down"}`)
	}))
	defer srv.Close()

	ctx, ex := withExchange(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := (&http.Client{Transport: &recordingTransport{next: http.DefaultTransport}}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "slow down")
	assert.Equal(t, http.StatusTooManyRequests, ex.status)
	assert.Equal(t, "blockfrost http 429: slow down", ex.apiError().Error())
}
