// Package taxoracle exposes the host chain's current transfer-tax
// parameters to the vault, so tax math always reads live rate/cap values
// rather than a value baked into the vault's own config at deploy time
// (SPEC_FULL.md's Open Questions decision). Grounded on native/lending's
// external price/param oracle collaborator pattern: a narrow read-only
// query interface plus a static mock for tests.
package taxoracle

import (
	"context"

	"github.com/holiman/uint256"
)

type Amount = uint256.Int

// Params is a snapshot of the host chain's transfer-tax configuration for a
// single denom.
type Params struct {
	RateRay *Amount
	CapWei  *Amount
}

// Oracle is the collaborator interface for querying live tax parameters.
type Oracle interface {
	TaxParams(ctx context.Context, denom string) (Params, error)
}

// Static is a fixed-parameter oracle, sufficient for the mock token ledger
// and for deployments where the host chain's tax schedule rarely changes.
type Static struct {
	byDenom map[string]Params
	fallback Params
}

// NewStatic builds an Oracle returning fallback for any denom not present
// in byDenom.
func NewStatic(fallback Params, byDenom map[string]Params) *Static {
	return &Static{byDenom: byDenom, fallback: fallback}
}

func (s *Static) TaxParams(ctx context.Context, denom string) (Params, error) {
	if p, ok := s.byDenom[denom]; ok {
		return p, nil
	}
	return s.fallback, nil
}

var _ Oracle = (*Static)(nil)
