package txbuilder

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

// MultiAsset maps policy id (hex) to asset name (hex) to quantity.
type MultiAsset map[string]map[string]*big.Int

// Value is a coin amount plus native tokens.
type Value struct {
	Coin   *big.Int
	Assets MultiAsset
}

func NewValue(coin *big.Int) Value {
	if coin == nil {
		coin = new(big.Int)
	}
	return Value{Coin: new(big.Int).Set(coin), Assets: MultiAsset{}}
}

// ValueFromAmounts folds indexer amounts into a Value, summing repeats.
func ValueFromAmounts(amounts []models.Amount) (Value, error) {
	v := NewValue(nil)
	for _, a := range amounts {
		if err := v.AddUnit(a.Unit, a.Quantity); err != nil {
			return Value{}, err
		}
	}
	return v, nil
}

// AddUnit adds q of unit, where unit is the native sentinel or policy+name.
func (v *Value) AddUnit(unit string, q *big.Int) error {
	if q == nil || q.Sign() < 0 {
		return fmt.Errorf("%w: negative quantity for %s", apperr.ErrInvalidParameters, unit)
	}
	if unit == constants.NativeUnit {
		v.Coin = new(big.Int).Add(v.coin(), q)
		return nil
	}
	asset, err := models.ParseAsset(unit)
	if err != nil {
		return err
	}
	if v.Assets == nil {
		v.Assets = MultiAsset{}
	}
	names, ok := v.Assets[asset.PolicyID]
	if !ok {
		names = map[string]*big.Int{}
		v.Assets[asset.PolicyID] = names
	}
	cur, ok := names[asset.Name]
	if !ok {
		cur = new(big.Int)
	}
	names[asset.Name] = new(big.Int).Add(cur, q)
	return nil
}

// Quantity returns the amount of unit held.
func (v Value) Quantity(unit string) *big.Int {
	if unit == constants.NativeUnit {
		return new(big.Int).Set(v.coin())
	}
	asset, err := models.ParseAsset(unit)
	if err != nil {
		return new(big.Int)
	}
	if q, ok := v.Assets[asset.PolicyID][asset.Name]; ok {
		return new(big.Int).Set(q)
	}
	return new(big.Int)
}

func (v Value) coin() *big.Int {
	if v.Coin == nil {
		return new(big.Int)
	}
	return v.Coin
}

func (v Value) Clone() Value {
	out := NewValue(v.coin())
	for policy, names := range v.Assets {
		cp := make(map[string]*big.Int, len(names))
		for name, q := range names {
			cp[name] = new(big.Int).Set(q)
		}
		out.Assets[policy] = cp
	}
	return out
}

func (v Value) Add(o Value) Value {
	out := v.Clone()
	out.Coin.Add(out.Coin, o.coin())
	for policy, names := range o.Assets {
		dst, ok := out.Assets[policy]
		if !ok {
			dst = make(map[string]*big.Int, len(names))
			out.Assets[policy] = dst
		}
		for name, q := range names {
			if cur, ok := dst[name]; ok {
				cur.Add(cur, q)
				continue
			}
			dst[name] = new(big.Int).Set(q)
		}
	}
	return out
}

// Sub returns v - o and fails when any component would go negative. Entries
// that reach zero are dropped.
func (v Value) Sub(o Value) (Value, error) {
	out := v.Clone()
	out.Coin.Sub(out.Coin, o.coin())
	if out.Coin.Sign() < 0 {
		return Value{}, fmt.Errorf("%w: short %s lovelace", apperr.ErrInsufficientBalance, new(big.Int).Neg(out.Coin))
	}
	for policy, names := range o.Assets {
		for name, q := range names {
			if q.Sign() == 0 {
				continue
			}
			have, ok := out.Assets[policy][name]
			if !ok || have.Cmp(q) < 0 {
				return Value{}, fmt.Errorf("%w: short of asset %s%s", apperr.ErrInsufficientBalance, policy, name)
			}
			have.Sub(have, q)
		}
	}
	out.prune()
	return out, nil
}

func (v *Value) prune() {
	for policy, names := range v.Assets {
		for name, q := range names {
			if q.Sign() == 0 {
				delete(names, name)
			}
		}
		if len(names) == 0 {
			delete(v.Assets, policy)
		}
	}
}

// HasAssets reports whether any native token is present.
func (v Value) HasAssets() bool {
	for _, names := range v.Assets {
		for _, q := range names {
			if q.Sign() > 0 {
				return true
			}
		}
	}
	return false
}

func (v Value) IsZero() bool {
	return v.coin().Sign() == 0 && !v.HasAssets()
}

// Units lists every unit held with a positive quantity, sorted.
func (v Value) Units() []string {
	var out []string
	if v.coin().Sign() > 0 {
		out = append(out, constants.NativeUnit)
	}
	for policy, names := range v.Assets {
		for name, q := range names {
			if q.Sign() > 0 {
				out = append(out, policy+name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func toInt(q *big.Int, what string) (int, error) {
	if q.Sign() < 0 || !q.IsInt64() || q.Int64() > int64(math.MaxInt) {
		return 0, fmt.Errorf("%w: %s quantity %s out of range", apperr.ErrInvalidParameters, what, q)
	}
	return int(q.Int64()), nil
}
