// Package risk enforces operator trade limits on built swaps: a per-swap
// ceiling, a rolling 24h ceiling, a token allow list and a price impact cap.
// All values are in lovelace so no price feed is involved.
package risk

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
)

const window = 24 * time.Hour

// Config holds the limits. Zero values disable the matching rule.
type Config struct {
	MaxSwapLovelace    *big.Int
	DailyLimitLovelace *big.Int
	MaxPriceImpactBps  int64
	// AllowedUnits are asset units or known tickers. Empty allows all.
	AllowedUnits []string
}

// Trade summarises one built swap.
type Trade struct {
	FromUnit string
	ToUnit   string
	AmountIn *big.Int
	// NativeValue is the lovelace side of the swap.
	NativeValue *big.Int
	ReserveIn   *big.Int
}

type usage struct {
	at       time.Time
	lovelace *big.Int
}

// Manager checks trades against Config and tracks rolling usage in memory.
type Manager struct {
	cfg     Config
	allowed map[string]bool

	mu    sync.Mutex
	usage []usage
	now   func() time.Time
}

func NewManager(cfg Config) *Manager {
	m := &Manager{cfg: cfg, now: time.Now}
	if len(cfg.AllowedUnits) > 0 {
		m.allowed = map[string]bool{}
		for _, u := range cfg.AllowedUnits {
			u = strings.TrimSpace(u)
			switch {
			case strings.EqualFold(u, constants.NativeTicker):
				u = constants.NativeUnit
			case constants.TokenUnits[strings.ToUpper(u)] != "":
				u = constants.TokenUnits[strings.ToUpper(u)]
			}
			if u != "" {
				m.allowed[u] = true
			}
		}
	}
	return m
}

// Enabled reports whether any rule is active.
func (m *Manager) Enabled() bool {
	return positive(m.cfg.MaxSwapLovelace) || positive(m.cfg.DailyLimitLovelace) ||
		m.cfg.MaxPriceImpactBps > 0 || len(m.allowed) > 0
}

// Check rejects t with ErrInvalidParameters when a rule is broken. It does
// not record usage; call Record once the swap is submitted.
func (m *Manager) Check(t Trade) error {
	if m.allowed != nil {
		for _, u := range []string{t.FromUnit, t.ToUnit} {
			if !m.allowed[u] {
				return fmt.Errorf("%w: token %s is not on the allow list", apperr.ErrInvalidParameters, u)
			}
		}
	}

	value := t.NativeValue
	if value == nil {
		value = new(big.Int)
	}
	if positive(m.cfg.MaxSwapLovelace) && value.Cmp(m.cfg.MaxSwapLovelace) > 0 {
		return fmt.Errorf("%w: swap moves %s lovelace, limit is %s per swap", apperr.ErrInvalidParameters, value, m.cfg.MaxSwapLovelace)
	}

	if positive(m.cfg.DailyLimitLovelace) {
		used := m.DailyUsage()
		if total := new(big.Int).Add(used, value); total.Cmp(m.cfg.DailyLimitLovelace) > 0 {
			return fmt.Errorf("%w: daily limit exceeded: used %s + %s > %s lovelace", apperr.ErrInvalidParameters, used, value, m.cfg.DailyLimitLovelace)
		}
	}

	if m.cfg.MaxPriceImpactBps > 0 && t.AmountIn != nil && t.ReserveIn != nil {
		if impact := ImpactBps(t.AmountIn, t.ReserveIn); impact > m.cfg.MaxPriceImpactBps {
			return fmt.Errorf("%w: price impact %d bps exceeds max %d bps", apperr.ErrInvalidParameters, impact, m.cfg.MaxPriceImpactBps)
		}
	}
	return nil
}

// Record adds a submitted swap to the rolling window.
func (m *Manager) Record(lovelace *big.Int) {
	if lovelace == nil || lovelace.Sign() <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup()
	m.usage = append(m.usage, usage{at: m.now(), lovelace: new(big.Int).Set(lovelace)})
}

// DailyUsage is the lovelace recorded in the last 24 hours.
func (m *Manager) DailyUsage() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup()

	total := new(big.Int)
	for _, u := range m.usage {
		total.Add(total, u.lovelace)
	}
	return total
}

// cleanup drops records older than the window. Caller holds mu.
func (m *Manager) cleanup() {
	cutoff := m.now().Add(-window)
	kept := m.usage[:0]
	for _, u := range m.usage {
		if u.at.After(cutoff) {
			kept = append(kept, u)
		}
	}
	m.usage = kept
}

// ImpactBps is the share of the input-side reserve the trade adds, in basis
// points: floor(amountIn * 10000 / (reserveIn + amountIn)).
func ImpactBps(amountIn, reserveIn *big.Int) int64 {
	denom := new(big.Int).Add(reserveIn, amountIn)
	if denom.Sign() <= 0 {
		return 0
	}
	n := new(big.Int).Mul(amountIn, big.NewInt(10_000))
	return n.Quo(n, denom).Int64()
}

func positive(v *big.Int) bool { return v != nil && v.Sign() > 0 }
