package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/txbuilder"
)

// witness set {0: [[vkey, sig]]}
var walletWitness = func() []byte {
	w, err := cbor.Encode([][]byte{make([]byte, 32), make([]byte, 64)})
	if err != nil {
		panic(err)
	}
	b, err := cbor.Encode(map[uint64][]cbor.RawMessage{0: {w}})
	if err != nil {
		panic(err)
	}
	return b
}()

type fakeConnector struct {
	available bool
	enableErr error
	signErr   error
	partial   *bool
}

func (f *fakeConnector) Available(context.Context) bool { return f.available }

func (f *fakeConnector) Enable(context.Context) (API, error) {
	if f.enableErr != nil {
		return nil, f.enableErr
	}
	return f, nil
}

func (f *fakeConnector) SignTx(_ context.Context, _ string, partialSign bool) (string, error) {
	f.partial = &partialSign
	if f.signErr != nil {
		return "", f.signErr
	}
	return hex.EncodeToString(walletWitness), nil
}

type fakeSubmitter struct {
	got   []byte
	calls int
}

func (f *fakeSubmitter) SubmitTx(_ context.Context, tx []byte) (string, error) {
	f.calls++
	f.got = tx
	return "cafe", nil
}

func unsignedTx(t *testing.T) (*txbuilder.Transaction, []byte) {
	t.Helper()
	b, err := txbuilder.NewBuilder(txbuilder.ConfigFromParams(&models.ProtocolParams{
		MinFeeA: 44, MinFeeB: 155381, CoinsPerUTxOByte: 4310, MaxValSize: 5000, MaxTxSize: 16384,
	}))
	require.NoError(t, err)
	addr, err := txbuilder.EncodeAddress("addr", bytes.Repeat([]byte{0x01}, 57))
	require.NoError(t, err)
	require.NoError(t, b.AddInput(txbuilder.Input{
		TxHash:  "aa00000000000000000000000000000000000000000000000000000000000001",
		Address: addr,
		Amount:  txbuilder.NewValue(big.NewInt(10_000_000)),
	}))
	require.NoError(t, b.AddOutput(txbuilder.Output{Address: addr, Amount: txbuilder.NewValue(big.NewInt(3_000_000))}))
	tx, err := b.Build(addr)
	require.NoError(t, err)
	raw, err := tx.Bytes()
	require.NoError(t, err)
	return tx, raw
}

func TestBridge_NoConnector(t *testing.T) {
	sub := &fakeSubmitter{}
	_, err := NewBridge(BridgeConfig{Submitter: sub}).SignAndSubmit(context.Background(), []byte{0x80})
	assert.True(t, errors.Is(err, apperr.ErrWalletUnavailable))
	assert.Zero(t, sub.calls)
}

func TestBridge_NilHTTPConnector(t *testing.T) {
	sub := &fakeSubmitter{}
	br := NewBridge(BridgeConfig{Connector: NewHTTPConnector(HTTPConfig{}), Submitter: sub})
	_, err := br.SignAndSubmit(context.Background(), []byte{0x80})
	assert.True(t, errors.Is(err, apperr.ErrWalletUnavailable))
}

func TestBridge_Ready(t *testing.T) {
	assert.ErrorIs(t, NewBridge(BridgeConfig{}).Ready(context.Background()), apperr.ErrWalletUnavailable)

	conn := &fakeConnector{available: false}
	br := NewBridge(BridgeConfig{Connector: conn})
	assert.ErrorIs(t, br.Ready(context.Background()), apperr.ErrWalletUnavailable)

	conn.available = true
	assert.NoError(t, br.Ready(context.Background()))
}

func TestBridge_NotDetected(t *testing.T) {
	sub := &fakeSubmitter{}
	br := NewBridge(BridgeConfig{Connector: &fakeConnector{available: false}, Submitter: sub})
	_, err := br.SignAndSubmit(context.Background(), []byte{0x80})
	assert.True(t, errors.Is(err, apperr.ErrWalletUnavailable))
	assert.Zero(t, sub.calls)
}

func TestBridge_UserRejects(t *testing.T) {
	_, raw := unsignedTx(t)
	sub := &fakeSubmitter{}
	br := NewBridge(BridgeConfig{
		Connector: &fakeConnector{available: true, signErr: errors.New("user declined")},
		Submitter: sub,
	})
	_, err := br.SignAndSubmit(context.Background(), raw)
	assert.True(t, errors.Is(err, apperr.ErrWalletUnavailable))
	assert.Zero(t, sub.calls)
}

func TestBridge_SignAndSubmit(t *testing.T) {
	tx, raw := unsignedTx(t)
	conn := &fakeConnector{available: true}
	sub := &fakeSubmitter{}

	hash, err := NewBridge(BridgeConfig{Connector: conn, Submitter: sub}).SignAndSubmit(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "cafe", hash)
	require.NotNil(t, conn.partial)
	assert.True(t, *conn.partial)

	var parts []cbor.RawMessage
	_, err = cbor.Decode(sub.got, &parts)
	require.NoError(t, err)
	require.Len(t, parts, 4)
	assert.Equal(t, tx.BodyBytes(), []byte(parts[0]))
	assert.Equal(t, walletWitness, []byte(parts[1]))
}

func TestHTTPConnector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/enable":
			_ = json.NewEncoder(w).Encode(map[string]string{"session": "s1"})
		case "/sign-tx":
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["session"] != "s1" || in["partial_sign"] != true {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"witness_set": "a0"})
		}
	}))
	defer srv.Close()

	c := NewHTTPConnector(HTTPConfig{BaseURL: srv.URL})
	require.NotNil(t, c)
	assert.True(t, c.Available(context.Background()))

	api, err := c.Enable(context.Background())
	require.NoError(t, err)
	ws, err := api.SignTx(context.Background(), "84", true)
	require.NoError(t, err)
	assert.Equal(t, "a0", ws)

	_, err = api.SignTx(context.Background(), "84", false)
	assert.True(t, errors.Is(err, apperr.ErrWalletUnavailable))
}

func TestHTTPConnector_Unreachable(t *testing.T) {
	c := NewHTTPConnector(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	assert.False(t, c.Available(context.Background()))
}
