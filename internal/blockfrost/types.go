package blockfrost

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// APIError is the error body the indexer returns on non-2xx responses,
// recovered from the transport rather than the SDK.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorName  string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("blockfrost http %d", e.StatusCode)
	}
	return fmt.Sprintf("blockfrost http %d: %s", e.StatusCode, msg)
}

type amountJSON struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type utxoJSON struct {
	Address     string       `json:"address"`
	TxHash      string       `json:"tx_hash"`
	OutputIndex *uint32      `json:"output_index"`
	Amount      []amountJSON `json:"amount"`
	DataHash    *string      `json:"data_hash"`
	InlineDatum *string      `json:"inline_datum"`
}

type assetMetaJSON struct {
	Name     string `json:"name"`
	Ticker   string `json:"ticker"`
	Decimals *int   `json:"decimals"`
}

// empty is true for the zero object some SDK versions emit for null metadata.
func (m *assetMetaJSON) empty() bool {
	return m.Name == "" && m.Ticker == "" && (m.Decimals == nil || *m.Decimals == 0)
}

type assetJSON struct {
	Asset    string         `json:"asset"`
	PolicyID string         `json:"policy_id"`
	Quantity string         `json:"quantity"`
	Metadata *assetMetaJSON `json:"metadata"`
}

// AssetInfo is the part of asset metadata the assistant uses.
type AssetInfo struct {
	Unit     string
	PolicyID string
	Name     string
	Ticker   string
	Decimals *int // nil when the registry declares none
}

type blockJSON struct {
	Hash   string  `json:"hash"`
	Height *uint64 `json:"height"`
	Slot   *uint64 `json:"slot"`
	Epoch  *uint64 `json:"epoch"`
}

// flexUint accepts both JSON numbers and numeric strings; the indexer uses
// strings for lovelace-sized parameters. Null and "" leave it unset.
type flexUint struct {
	Value uint64
	Set   bool
}

func (f *flexUint) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an unsigned integer: %s", s)
	}
	f.Value, f.Set = v, true
	return nil
}

type paramsJSON struct {
	Epoch            flexUint `json:"epoch"`
	MinFeeA          flexUint `json:"min_fee_a"`
	MinFeeB          flexUint `json:"min_fee_b"`
	KeyDeposit       flexUint `json:"key_deposit"`
	PoolDeposit      flexUint `json:"pool_deposit"`
	MaxValSize       flexUint `json:"max_val_size"`
	MaxTxSize        flexUint `json:"max_tx_size"`
	CoinsPerUTxOSize flexUint `json:"coins_per_utxo_size"`
}

type txJSON struct {
	Hash          string   `json:"hash"`
	Block         string   `json:"block"`
	BlockHeight   *uint64  `json:"block_height"`
	BlockTime     *int64   `json:"block_time"`
	Slot          *uint64  `json:"slot"`
	Fees          flexUint `json:"fees"`
	ValidContract *bool    `json:"valid_contract"`
}

// TxInfo is an on-chain transaction as the indexer reports it.
type TxInfo struct {
	Hash        string
	Block       string
	BlockHeight uint64
	BlockTime   int64 // unix seconds
	Slot        uint64
	Fee         uint64
	Valid       bool
}
