package models

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
)

const maxAssetNameHex = 64

// Asset is a parsed asset identifier. The zero value is the native unit.
type Asset struct {
	PolicyID string // 56 hex chars, empty for the native unit
	Name     string // hex asset name, may be empty
}

// ParseAsset splits a unit string into policy id and asset name. The native
// sentinel is never split.
func ParseAsset(unit string) (Asset, error) {
	unit = strings.TrimSpace(unit)
	if unit == constants.NativeUnit {
		return Asset{}, nil
	}
	if len(unit) < constants.PolicyIDLength {
		return Asset{}, fmt.Errorf("%w: asset %q shorter than a policy id", apperr.ErrInvalidParameters, unit)
	}
	unit = strings.ToLower(unit)
	policy, name := unit[:constants.PolicyIDLength], unit[constants.PolicyIDLength:]
	if _, err := hex.DecodeString(policy); err != nil {
		return Asset{}, fmt.Errorf("%w: policy id of %q is not hex", apperr.ErrInvalidParameters, unit)
	}
	if len(name) > maxAssetNameHex {
		return Asset{}, fmt.Errorf("%w: asset name of %q exceeds 32 bytes", apperr.ErrInvalidParameters, unit)
	}
	if _, err := hex.DecodeString(name); err != nil {
		return Asset{}, fmt.Errorf("%w: asset name of %q is not hex", apperr.ErrInvalidParameters, unit)
	}
	return Asset{PolicyID: policy, Name: name}, nil
}

// MustParseAsset is ParseAsset for constants and tests.
func MustParseAsset(unit string) Asset {
	a, err := ParseAsset(unit)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Asset) IsNative() bool { return a.PolicyID == "" }

// Unit returns the concatenated identifier used by the indexer.
func (a Asset) Unit() string {
	if a.IsNative() {
		return constants.NativeUnit
	}
	return a.PolicyID + a.Name
}

func (a Asset) String() string { return a.Unit() }

// PolicyBytes and NameBytes only fail on values not produced by ParseAsset.
func (a Asset) PolicyBytes() ([]byte, error) { return hex.DecodeString(a.PolicyID) }
func (a Asset) NameBytes() ([]byte, error)   { return hex.DecodeString(a.Name) }
