package field

import (
	"context"

	"github.com/nhbchain/field/external/amm"
	"github.com/nhbchain/field/external/redbank"
)

// Valuator computes a position's Health (spec.md §4.2) by pricing its
// pooled bond units and debt units against the AMM's current marginal
// price and the red bank's current total debt, all expressed in the short
// asset's own denomination so LTV is a single comparable ratio.
type Valuator struct {
	Pair    amm.Pair
	Market  redbank.DebtMarket
}

// Health values position against state's pool-wide totals, entirely in the
// short asset's own denomination, matching spec.md §4.2: the long leg of the
// position's underlying claim is converted to short units via the pair's
// marginal price (R_S/R_L, the pre-fee constant-product approximation the
// spec permits), while the short leg and the money-market debt are already
// short-denominated and need no conversion. For a balanced constant-product
// claim this collapses to the spec's documented "2 x R_S x L / T"
// shorthand. The LTV is nil (⊥) whenever the position's bond value is zero,
// matching spec.md §4.2's treatment of "no collateral, no leverage ratio"
// rather than reporting an infinite or zero LTV.
func (v *Valuator) Health(ctx context.Context, state *State, position *Position) (Health, error) {
	shareAmount, err := bondValueOf(position, totalBondShares(state), state.TotalBondUnits)
	if err != nil {
		return Health{}, err
	}
	bondValue, err := v.valueOfShares(ctx, shareAmount)
	if err != nil {
		return Health{}, err
	}

	totalDebt, err := v.Market.CurrentDebt(ctx)
	if err != nil {
		return Health{}, newCollaboratorError("redbank", err)
	}
	debtValue, err := debtValueOf(position, totalDebt, state.TotalDebtUnits)
	if err != nil {
		return Health{}, err
	}

	return buildHealth(bondValue, debtValue)
}

// GlobalHealth values the vault's entire bonded position and outstanding
// debt, rather than a single user's fractional claim — the "global" variant
// of spec.md §6's health query when no user is named.
func (v *Valuator) GlobalHealth(ctx context.Context, state *State) (Health, error) {
	bondValue, err := v.valueOfShares(ctx, totalBondShares(state))
	if err != nil {
		return Health{}, err
	}
	debtValue, err := v.Market.CurrentDebt(ctx)
	if err != nil {
		return Health{}, newCollaboratorError("redbank", err)
	}
	return buildHealth(bondValue, debtValue)
}

// valueOfShares converts shareAmount (an LP-share-denominated quantity) into
// the short asset's own denomination, matching spec.md §4.2: the long leg of
// the underlying claim is converted via the pair's marginal price (R_S/R_L,
// the pre-fee constant-product approximation the spec permits), while the
// short leg needs no conversion since it is already short-denominated. For a
// balanced constant-product claim this collapses to the spec's documented
// "2 x R_S x L / T" shorthand.
func (v *Valuator) valueOfShares(ctx context.Context, shareAmount *Amount) (*Amount, error) {
	reserves, err := v.Pair.Reserves(ctx)
	if err != nil {
		return nil, newCollaboratorError("amm", err)
	}
	totalShares, err := v.Pair.TotalShares(ctx)
	if err != nil {
		return nil, newCollaboratorError("amm", err)
	}

	longValue, shortValue, err := shareToUnderlying(shareAmount, reserves, totalShares)
	if err != nil {
		return nil, err
	}

	var longInShort *Amount
	if longValue.IsZero() || reserves.Long.IsZero() {
		longInShort = zero()
	} else {
		longInShort, err = mulDivDown(longValue, reserves.Short, reserves.Long)
		if err != nil {
			return nil, err
		}
	}
	return addChecked(longInShort, shortValue)
}

// buildHealth derives the LTV from a bond/debt value pair already expressed
// in the short asset's own denomination, nil-ing the ratio per spec.md §4.2
// when there is no collateral to divide by.
func buildHealth(bondValue, debtValue *Amount) (Health, error) {
	health := Health{BondValue: bondValue, DebtValue: debtValue}
	if bondValue.IsZero() {
		health.LTVRay = nil
		return health, nil
	}
	ltv, err := ratioDown(debtValue, bondValue)
	if err != nil {
		return Health{}, err
	}
	health.LTVRay = ltv
	return health, nil
}

// IsLiquidatable reports whether health's LTV strictly exceeds maxLTVRay.
// Equality is accepted collateralization (the Open Questions decision
// recorded in SPEC_FULL.md §5): a position sitting exactly at the
// configured ceiling is not yet eligible for close_position.
func IsLiquidatable(health Health, maxLTVRay *Amount) bool {
	if health.LTVRay == nil {
		return false
	}
	return health.LTVRay.Cmp(maxLTVRay) > 0
}

// totalBondShares reports the LP-share-denominated value backing the
// pool's total bond units. The ledger's unit system is scale-free: one
// bond unit is only ever "worth" the pool's total staked share balance
// divided by total bond units, so the pool's total staked share balance
// doubles as the unit system's valueBefore.
func totalBondShares(state *State) *Amount {
	if state.TotalBondShares == nil {
		return zero()
	}
	return state.TotalBondShares
}

// shareToUnderlying converts an LP share amount into the long/short
// reserves it is redeemable for, at the pool's current ratio.
func shareToUnderlying(shareAmount *Amount, reserves amm.Reserves, totalShares *Amount) (*Amount, *Amount, error) {
	if shareAmount.IsZero() || totalShares.IsZero() {
		return zero(), zero(), nil
	}
	longValue, err := mulDivDown(shareAmount, reserves.Long, totalShares)
	if err != nil {
		return nil, nil, err
	}
	shortValue, err := mulDivDown(shareAmount, reserves.Short, totalShares)
	if err != nil {
		return nil, nil, err
	}
	return longValue, shortValue, nil
}
