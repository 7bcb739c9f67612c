package poolstate

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

const (
	minUnit = "29d222ce763455e3d7a09a665ce554f00ac89d2e99a1a83d267170c64d494e"
	nftUnit = "0be55d262b29f564998ff81efe21bdc0022621c12f15af08d0f2ddb1" + "aa"
)

type fakeSource struct {
	utxos []models.UTxO
	err   error
	calls int
}

func (f *fakeSource) AddressUTxOs(_ context.Context, _ string) ([]models.UTxO, error) {
	f.calls++
	return f.utxos, f.err
}

func utxo(idx uint32, amounts ...models.Amount) models.UTxO {
	return models.UTxO{
		TxHash:      "bb00000000000000000000000000000000000000000000000000000000000000",
		OutputIndex: idx,
		Amounts:     amounts,
	}
}

func amt(unit string, q int64) models.Amount {
	return models.Amount{Unit: unit, Quantity: big.NewInt(q)}
}

// Two UTxOs both carry native value: the overwrite policy reports only the
// second, the sum policy reports their total.
func twoNativeUTxOs() []models.UTxO {
	return []models.UTxO{
		utxo(0, amt("lovelace", 600_000_000), amt(minUnit, 200_000_000)),
		utxo(1, amt("lovelace", 400_000_000), amt(minUnit, 300_000_000)),
	}
}

func TestGetReserves_OverwritePolicy(t *testing.T) {
	src := &fakeSource{utxos: twoNativeUTxOs()}
	st, err := NewReader(src, PolicyOverwrite, nil).GetReserves(context.Background(), "addr1pool", minUnit)
	require.NoError(t, err)

	assert.Equal(t, int64(400_000_000), st.ReserveNative.Int64())
	assert.Equal(t, int64(300_000_000), st.ReserveOther.Int64())
	assert.Equal(t, minUnit, st.OtherUnit)
	assert.Len(t, st.UTxOs, 2)
	assert.Equal(t, 1, src.calls)
}

func TestGetReserves_SumPolicy(t *testing.T) {
	src := &fakeSource{utxos: twoNativeUTxOs()}
	st, err := NewReader(src, PolicySum, nil).GetReserves(context.Background(), "addr1pool", minUnit)
	require.NoError(t, err)

	assert.Equal(t, int64(1_000_000_000), st.ReserveNative.Int64())
	assert.Equal(t, int64(500_000_000), st.ReserveOther.Int64())
}

func TestGetReserves_SumPolicyWithoutHint(t *testing.T) {
	src := &fakeSource{utxos: []models.UTxO{
		utxo(0, amt("lovelace", 10), amt(nftUnit, 1), amt(minUnit, 70)),
		utxo(1, amt(minUnit, 30)),
	}}
	st, err := NewReader(src, PolicySum, nil).GetReserves(context.Background(), "addr1pool", "")
	require.NoError(t, err)
	assert.Equal(t, minUnit, st.OtherUnit)
	assert.Equal(t, int64(100), st.ReserveOther.Int64())
}

func TestGetReserves_OverwriteTakesLastNonNative(t *testing.T) {
	src := &fakeSource{utxos: []models.UTxO{
		utxo(0, amt("lovelace", 10), amt(minUnit, 70), amt(nftUnit, 1)),
	}}
	st, err := NewReader(src, PolicyOverwrite, nil).GetReserves(context.Background(), "addr1pool", minUnit)
	require.NoError(t, err)
	assert.Equal(t, nftUnit, st.OtherUnit)
	assert.Equal(t, int64(1), st.ReserveOther.Int64())
}

func TestGetReserves_EmptyPool(t *testing.T) {
	_, err := NewReader(&fakeSource{}, PolicySum, nil).GetReserves(context.Background(), "addr1pool", "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGetReserves_SourceError(t *testing.T) {
	src := &fakeSource{err: apperr.ErrUpstreamUnavailable}
	_, err := NewReader(src, PolicySum, nil).GetReserves(context.Background(), "addr1pool", "")
	assert.True(t, errors.Is(err, apperr.ErrUpstreamUnavailable))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyOverwrite, p)

	p, err = ParsePolicy(" SUM ")
	require.NoError(t, err)
	assert.Equal(t, PolicySum, p)

	_, err = ParsePolicy("average")
	assert.True(t, errors.Is(err, apperr.ErrInvalidParameters))
}
