package pools

import "context"

// Pool is one liquidity pool as listed by the pool index.
type Pool struct {
	Address string `json:"address"`
	AssetA  string `json:"assetA"`
	AssetB  string `json:"assetB"`
	Version string `json:"version,omitempty"`
}

// Matches reports whether the pool trades a against b in either order.
func (p Pool) Matches(a, b string) bool {
	return (p.AssetA == a && p.AssetB == b) || (p.AssetA == b && p.AssetB == a)
}

// Index is the pool discovery surface: a current-generation pair lookup and
// the legacy paged listing.
type Index interface {
	// V2PoolByPair returns apperr.ErrNotFound when the pair has no pool.
	V2PoolByPair(ctx context.Context, assetA, assetB string) (*Pool, error)
	V1Pools(ctx context.Context, page, count int) ([]Pool, error)
}
