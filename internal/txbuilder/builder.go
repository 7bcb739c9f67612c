// Package txbuilder adapts swap inputs and outputs to the apollo transaction
// builder: protocol limits, min-UTxO, linear fee, change and time-to-live.
package txbuilder

import (
	"fmt"
	"math/big"

	"github.com/Salvionied/apollo"
	serAddress "github.com/Salvionied/apollo/serialization/Address"
	"github.com/Salvionied/apollo/serialization/UTxO"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

const maxFeeIterations = 10

// Input references an output being spent together with its address and the
// value it holds.
type Input struct {
	TxHash  string
	Index   uint32
	Address string
	Amount  Value
}

func (in Input) key() string { return fmt.Sprintf("%s#%d", in.TxHash, in.Index) }

// Output pays Amount to a bech32 address.
type Output struct {
	Address string
	Amount  Value
}

// Builder collects a transaction's inputs and outputs and checks them
// against protocol limits before apollo assembles it.
type Builder struct {
	cfg     Config
	inputs  []Input
	utxos   []UTxO.UTxO
	outputs []Output
	seen    map[string]struct{}
	ttl     uint64
}

// NewBuilder returns an empty builder for the given protocol limits.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.CoinsPerUTxOByte == 0 || cfg.MaxValueSize == 0 || cfg.MaxTxSize == 0 {
		return nil, fmt.Errorf("%w: builder needs coins per utxo byte, max value size and max tx size", apperr.ErrInvalidParameters)
	}
	if cfg.Witnesses <= 0 {
		cfg.Witnesses = 1
	}
	return &Builder{cfg: cfg, seen: map[string]struct{}{}}, nil
}

// AddInput spends an output. Adding the same reference twice is an error.
func (b *Builder) AddInput(in Input) error {
	if _, dup := b.seen[in.key()]; dup {
		return fmt.Errorf("%w: input %s added twice", apperr.ErrInvalidParameters, in.key())
	}
	in.Amount = in.Amount.Clone()
	u, err := apolloUTxO(in)
	if err != nil {
		return err
	}
	b.seen[in.key()] = struct{}{}
	b.inputs = append(b.inputs, in)
	b.utxos = append(b.utxos, u)
	return nil
}

// AddOutput appends an output after checking it against min-UTxO and the
// value size limit.
func (b *Builder) AddOutput(out Output) error {
	out.Amount = out.Amount.Clone()
	if err := b.checkOutput(out); err != nil {
		return err
	}
	b.outputs = append(b.outputs, out)
	return nil
}

func (b *Builder) checkOutput(out Output) error {
	if out.Address == "" {
		return fmt.Errorf("%w: output without address", apperr.ErrInvalidParameters)
	}
	minCoin, err := b.MinCoinFor(out)
	if err != nil {
		return err
	}
	if size := valueSize(out.Amount); uint64(size) > b.cfg.MaxValueSize {
		return fmt.Errorf("%w: output value is %d bytes, limit %d", apperr.ErrInvalidParameters, size, b.cfg.MaxValueSize)
	}
	if out.Amount.coin().Cmp(minCoin) < 0 {
		return fmt.Errorf("%w: output holds %s lovelace, minimum is %s", apperr.ErrInvalidParameters, out.Amount.coin(), minCoin)
	}
	return nil
}

func (b *Builder) SetTTL(slot uint64) { b.ttl = slot }

// MinCoinFor reports the min-UTxO lovelace for an output as given.
func (b *Builder) MinCoinFor(out Output) (*big.Int, error) {
	_, raw, err := builderAddress(out.Address)
	if err != nil {
		return nil, err
	}
	return b.cfg.MinCoin(outputSize(len(raw), out.Amount)), nil
}

// Build balances the transaction: whatever the inputs hold beyond the
// outputs and fee returns to changeAddress. Change too small for its own
// output is added to the fee when it carries no tokens. The fee is raised
// until it covers the signed size.
func (b *Builder) Build(changeAddress string) (*Transaction, error) {
	if len(b.inputs) == 0 {
		return nil, fmt.Errorf("%w: transaction has no inputs", apperr.ErrInvalidParameters)
	}
	if len(b.outputs) == 0 {
		return nil, fmt.Errorf("%w: transaction has no outputs", apperr.ErrInvalidParameters)
	}
	change, _, err := builderAddress(changeAddress)
	if err != nil {
		return nil, fmt.Errorf("change address: %w", err)
	}

	in := NewValue(nil)
	for _, i := range b.inputs {
		in = in.Add(i.Amount)
	}
	out := NewValue(nil)
	for _, o := range b.outputs {
		out = out.Add(o.Amount)
	}
	surplus, err := in.Sub(out)
	if err != nil {
		return nil, fmt.Errorf("inputs do not cover outputs: %w", err)
	}

	fee := b.cfg.Fee.MinFee(0)
	for iter := 0; iter < maxFeeIterations; iter++ {
		outputs, absorbed, err := b.withChange(surplus, fee, changeAddress)
		if err != nil {
			return nil, err
		}
		total := fee + absorbed

		raw, err := b.complete(change, total)
		if err != nil {
			return nil, err
		}
		size := len(raw) + b.cfg.witnessAllowance()
		if uint64(size) > b.cfg.MaxTxSize {
			return nil, fmt.Errorf("%w: transaction is %d bytes, limit %d", apperr.ErrInvalidParameters, size, b.cfg.MaxTxSize)
		}

		need := b.cfg.Fee.MinFee(size)
		if need <= total {
			return newTransaction(raw, b.inputs, outputs, total, b.ttl)
		}
		fee = need
	}
	return nil, fmt.Errorf("%w: fee did not converge", apperr.ErrInvalidParameters)
}

// complete has apollo lay out the inputs and outputs with a fixed fee; it
// returns the remainder to change.
func (b *Builder) complete(change serAddress.Address, fee uint64) ([]byte, error) {
	cc := apollo.NewEmptyBackend()
	ab := apollo.New(&cc).
		AddInputAddress(change).
		AddInput(b.utxos...)
	if b.ttl > 0 {
		ab = ab.SetTtl(int64(b.ttl))
	}

	for i, o := range b.outputs {
		addr, _, err := builderAddress(o.Address)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		coin, units, err := payment(o.Amount)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		ab = ab.PayToAddress(addr, coin, units...)
	}

	ab, err := ab.CompleteExact(int(fee))
	if err != nil {
		return nil, fmt.Errorf("%w: balance transaction: %v", apperr.ErrInsufficientBalance, err)
	}
	raw, err := ab.GetTx().Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	return raw, nil
}

// withChange returns the outputs including change for the given fee, and any
// lovelace folded into the fee because it could not form a change output.
func (b *Builder) withChange(surplus Value, fee uint64, changeAddress string) ([]Output, uint64, error) {
	change, err := surplus.Sub(NewValue(new(big.Int).SetUint64(fee)))
	if err != nil {
		return nil, 0, fmt.Errorf("inputs do not cover fee of %d: %w", fee, err)
	}

	outputs := append([]Output(nil), b.outputs...)
	if change.IsZero() {
		return outputs, 0, nil
	}

	co := Output{Address: changeAddress, Amount: change}
	minCoin, err := b.MinCoinFor(co)
	if err != nil {
		return nil, 0, err
	}
	if change.Coin.Cmp(minCoin) < 0 {
		if change.HasAssets() {
			return nil, 0, fmt.Errorf("%w: change holds tokens but only %s lovelace, minimum is %s", apperr.ErrInsufficientBalance, change.Coin, minCoin)
		}
		return outputs, change.Coin.Uint64(), nil
	}
	return append(outputs, co), 0, nil
}
