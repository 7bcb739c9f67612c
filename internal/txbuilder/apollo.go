package txbuilder

import (
	"encoding/hex"
	"fmt"

	"github.com/Salvionied/apollo"
	"github.com/Salvionied/apollo/serialization/Asset"
	"github.com/Salvionied/apollo/serialization/AssetName"
	apolloMultiAsset "github.com/Salvionied/apollo/serialization/MultiAsset"
	"github.com/Salvionied/apollo/serialization/Policy"
	"github.com/Salvionied/apollo/serialization/TransactionInput"
	"github.com/Salvionied/apollo/serialization/TransactionOutput"
	"github.com/Salvionied/apollo/serialization/UTxO"
	apolloValuePkg "github.com/Salvionied/apollo/serialization/Value"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
)

// payment splits v into the coin and unit list apollo's PayToAddress takes.
// Asset names are passed as raw bytes.
func payment(v Value) (int, []apollo.Unit, error) {
	coin, err := toInt(v.coin(), "coin")
	if err != nil {
		return 0, nil, err
	}
	var units []apollo.Unit
	for _, unit := range v.Units() {
		if unit == constants.NativeUnit {
			continue
		}
		policy, name := unit[:constants.PolicyIDLength], unit[constants.PolicyIDLength:]
		rawName, err := hex.DecodeString(name)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: asset name %q", apperr.ErrInvalidParameters, name)
		}
		q, err := toInt(v.Quantity(unit), unit)
		if err != nil {
			return 0, nil, err
		}
		units = append(units, apollo.NewUnit(policy, string(rawName), q))
	}
	return coin, units, nil
}

// apolloValue converts v into a ledger value.
func apolloValue(v Value) (apolloValuePkg.Value, error) {
	coin, err := toInt(v.coin(), "coin")
	if err != nil {
		return apolloValuePkg.Value{}, err
	}
	if !v.HasAssets() {
		return apolloValuePkg.PureLovelaceValue(int64(coin)), nil
	}

	ma := apolloMultiAsset.MultiAsset[int64]{}
	for policy, names := range v.Assets {
		pid := Policy.PolicyId{Value: policy}
		for name, q := range names {
			if q.Sign() == 0 {
				continue
			}
			n, err := toInt(q, policy+name)
			if err != nil {
				return apolloValuePkg.Value{}, err
			}
			if _, ok := ma[pid]; !ok {
				ma[pid] = Asset.Asset[int64]{}
			}
			ma[pid][*AssetName.NewAssetNameFromHexString(name)] = int64(n)
		}
	}
	return apolloValuePkg.SimpleValue(int64(coin), ma), nil
}

// apolloUTxO turns a spent output into the form apollo takes as an
// explicit input.
func apolloUTxO(in Input) (UTxO.UTxO, error) {
	txID, err := hex.DecodeString(in.TxHash)
	if err != nil || len(txID) != 32 {
		return UTxO.UTxO{}, fmt.Errorf("%w: input tx hash %q", apperr.ErrInvalidParameters, in.TxHash)
	}
	addr, _, err := builderAddress(in.Address)
	if err != nil {
		return UTxO.UTxO{}, fmt.Errorf("input %s: %w", in.key(), err)
	}
	val, err := apolloValue(in.Amount)
	if err != nil {
		return UTxO.UTxO{}, fmt.Errorf("input %s: %w", in.key(), err)
	}
	return UTxO.UTxO{
		Input:  TransactionInput.TransactionInput{TransactionId: txID, Index: int(in.Index)},
		Output: TransactionOutput.SimpleTransactionOutput(addr, val),
	}, nil
}
