// Package poolstate reads the reserves of a constant-product pool from the
// UTxOs sitting at its address.
package poolstate

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
)

// ReservePolicy decides how quantities of the same side are combined when a
// pool address holds more than one UTxO.
type ReservePolicy string

const (
	// PolicyOverwrite keeps the last quantity seen for each side.
	PolicyOverwrite ReservePolicy = "overwrite"
	// PolicySum adds quantities across UTxOs.
	PolicySum ReservePolicy = "sum"
)

func ParsePolicy(s string) (ReservePolicy, error) {
	switch ReservePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicySum:
		return PolicySum, nil
	default:
		return "", fmt.Errorf("%w: unknown reserve policy %q", apperr.ErrInvalidParameters, s)
	}
}

// UTxOSource lists the UTxOs at an address.
type UTxOSource interface {
	AddressUTxOs(ctx context.Context, address string) ([]models.UTxO, error)
}

// Reader derives pool reserves from the UTxOs at a pool address.
type Reader struct {
	src    UTxOSource
	policy ReservePolicy
	now    func() time.Time
	logger *logrus.Logger
}

// NewReader returns a reader; an empty policy means PolicyOverwrite.
func NewReader(src UTxOSource, policy ReservePolicy, logger *logrus.Logger) *Reader {
	if policy == "" {
		policy = PolicyOverwrite
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{src: src, policy: policy, now: time.Now, logger: logger}
}

func (r *Reader) Policy() ReservePolicy { return r.policy }

// GetReserves takes one snapshot of poolAddress and derives both reserves
// from it. otherUnit narrows the non-native side under PolicySum; the
// overwrite policy ignores it.
func (r *Reader) GetReserves(ctx context.Context, poolAddress, otherUnit string) (*models.PoolState, error) {
	utxos, err := r.src.AddressUTxOs(ctx, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("read pool %s: %w", poolAddress, err)
	}
	if len(utxos) == 0 {
		return nil, fmt.Errorf("%w: pool %s holds no utxos", apperr.ErrNotFound, poolAddress)
	}

	var st *models.PoolState
	if r.policy == PolicySum {
		st = sumReserves(utxos, otherUnit)
	} else {
		st = overwriteReserves(utxos)
		if len(utxos) > 1 {
			r.logger.WithFields(logrus.Fields{
				"pool":  poolAddress,
				"utxos": len(utxos),
			}).Warn("pool address holds several utxos; overwrite policy keeps the last quantity per side")
		}
	}

	st.Address = poolAddress
	st.UTxOs = utxos
	st.FetchedAt = r.now()
	return st, nil
}

func overwriteReserves(utxos []models.UTxO) *models.PoolState {
	st := &models.PoolState{ReserveNative: new(big.Int), ReserveOther: new(big.Int)}
	for _, u := range utxos {
		for _, a := range u.Amounts {
			if a.Unit == constants.NativeUnit {
				st.ReserveNative = new(big.Int).Set(a.Quantity)
			} else {
				st.ReserveOther = new(big.Int).Set(a.Quantity)
				st.OtherUnit = a.Unit
			}
		}
	}
	return st
}

func sumReserves(utxos []models.UTxO, otherUnit string) *models.PoolState {
	st := &models.PoolState{ReserveNative: models.SumUnit(utxos, constants.NativeUnit)}
	if otherUnit != "" {
		st.OtherUnit = otherUnit
		st.ReserveOther = models.SumUnit(utxos, otherUnit)
		return st
	}

	// Without a hint the largest non-native holding is taken as the reserve;
	// pool NFTs and LP tokens sit at quantity one or far below it.
	totals := map[string]*big.Int{}
	var order []string
	for _, u := range utxos {
		for _, a := range u.Amounts {
			if a.Unit == constants.NativeUnit {
				continue
			}
			if _, ok := totals[a.Unit]; !ok {
				totals[a.Unit] = new(big.Int)
				order = append(order, a.Unit)
			}
			totals[a.Unit].Add(totals[a.Unit], a.Quantity)
		}
	}
	st.ReserveOther = new(big.Int)
	for _, unit := range order {
		if totals[unit].Cmp(st.ReserveOther) > 0 {
			st.ReserveOther, st.OtherUnit = totals[unit], unit
		}
	}
	return st
}
