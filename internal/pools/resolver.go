package pools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
)

// Resolver finds the pool address for an asset pair. It asks for a V2 pool
// first and only then scans one page of the legacy listing. Pools beyond that
// page are never found.
type Resolver struct {
	index    Index
	pageSize int
	logger   *logrus.Logger
}

// NewResolver returns a resolver scanning pageSize legacy pools at most.
func NewResolver(index Index, pageSize int, logger *logrus.Logger) *Resolver {
	if pageSize <= 0 {
		pageSize = constants.DefaultLegacyPoolPageSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{index: index, pageSize: pageSize, logger: logger}
}

// FindPool returns the pool trading from against to. Argument order does not
// matter.
func (r *Resolver) FindPool(ctx context.Context, from, to string) (*Pool, error) {
	if from == "" || to == "" || from == to {
		return nil, fmt.Errorf("%w: pair %q/%q", apperr.ErrInvalidParameters, from, to)
	}

	p, err := r.index.V2PoolByPair(ctx, from, to)
	switch {
	case err == nil:
		return p, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("v2 pool lookup: %w", err)
	}

	r.logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("pool not found in v2, scanning legacy listing")

	legacy, err := r.index.V1Pools(ctx, 1, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("legacy pool listing: %w", err)
	}
	for _, lp := range legacy {
		if lp.Matches(from, to) {
			found := lp
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: no pool for %s/%s", apperr.ErrNotFound, from, to)
}

// FindPoolAddress is FindPool reduced to the address.
func (r *Resolver) FindPoolAddress(ctx context.Context, from, to string) (string, error) {
	p, err := r.FindPool(ctx, from, to)
	if err != nil {
		return "", err
	}
	return p.Address, nil
}
