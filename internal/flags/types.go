package flags

import (
	"fmt"
	"time"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

// GlobalScope halts every pair at once.
const GlobalScope = "all"

var ErrNotFound = fmt.Errorf("%w: trading halt", apperr.ErrNotFound)

// Halt is an operator switch that stops new swaps on a pair, or on every
// pair when Scope is GlobalScope. A stored Halt with Active false is kept
// for the audit trail and blocks nothing.
type Halt struct {
	Scope     string    `json:"scope"`
	Active    bool      `json:"active"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
