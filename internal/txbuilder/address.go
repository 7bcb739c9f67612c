package txbuilder

import (
	"fmt"
	"strings"

	serAddress "github.com/Salvionied/apollo/serialization/Address"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/mr-tron/base58"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

func isShelley(addr string) bool {
	return strings.HasPrefix(addr, "addr") || strings.HasPrefix(addr, "stake")
}

// DecodeAddress turns a bech32 Shelley address or a base58 Byron address
// into its raw bytes.
func DecodeAddress(addr string) ([]byte, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("%w: empty address", apperr.ErrInvalidParameters)
	}

	if isShelley(addr) {
		// Shelley addresses exceed the 90 character BIP-173 limit.
		_, data, err := bech32.DecodeNoLimit(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: bech32 address: %v", apperr.ErrInvalidParameters, err)
		}
		raw, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return nil, fmt.Errorf("%w: bech32 payload: %v", apperr.ErrInvalidParameters, err)
		}
		if len(raw) < 29 {
			return nil, fmt.Errorf("%w: address payload too short", apperr.ErrInvalidParameters)
		}
		return raw, nil
	}

	raw, err := base58.Decode(addr)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: unrecognised address %q", apperr.ErrInvalidParameters, addr)
	}
	return raw, nil
}

// EncodeAddress renders raw Shelley address bytes under hrp.
func EncodeAddress(hrp string, raw []byte) (string, error) {
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidParameters, err)
	}
	return bech32.Encode(hrp, data)
}

// builderAddress checks addr and converts it for the transaction builder,
// which only pays Shelley addresses.
func builderAddress(addr string) (serAddress.Address, []byte, error) {
	raw, err := DecodeAddress(addr)
	if err != nil {
		return serAddress.Address{}, nil, err
	}
	if !isShelley(strings.TrimSpace(addr)) {
		return serAddress.Address{}, nil, fmt.Errorf("%w: byron address %s cannot be used in a swap", apperr.ErrInvalidParameters, addr)
	}
	a, err := serAddress.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return serAddress.Address{}, nil, fmt.Errorf("%w: address %s: %v", apperr.ErrInvalidParameters, addr, err)
	}
	return a, raw, nil
}
