// Package amm models the constant-product pair the vault bonds liquidity
// into. None of the retrieved example repos ship an AMM, so this package is
// grounded on spec.md's own formulas (§4.2's marginal-price valuation,
// §4.4's provide/withdraw liquidity sub-operations) using the same
// engine/types file split and ray-scaled big.Int math native/swap and
// native/lending use for their own collaborator-facing arithmetic.
package amm

import (
	"context"
	"math/big"

	"github.com/holiman/uint256"
)

// Amount matches native/field's own fixed-point type so callers never pay
// a conversion cost at the collaborator boundary.
type Amount = uint256.Int

// Reserves is a pair's current constant-product state.
type Reserves struct {
	Long  *Amount
	Short *Amount
}

// Pair is the collaborator interface the vault depends on for its swap
// legs. A production deployment points this at a real on-chain pair
// contract; Mock below is the in-memory stand-in this repo tests against.
type Pair interface {
	// Reserves returns the pair's current reserves.
	Reserves(ctx context.Context) (Reserves, error)

	// ProvideLiquidity deposits longAmount/shortAmount at the pool's
	// current ratio (deviation from the ratio is rejected, matching a
	// real constant-product pair's slippage guard) and returns the LP
	// shares minted.
	ProvideLiquidity(ctx context.Context, longAmount, shortAmount *Amount) (shares *Amount, err error)

	// WithdrawLiquidity burns shares and returns the long/short amounts
	// released.
	WithdrawLiquidity(ctx context.Context, shares *Amount) (longAmount, shortAmount *Amount, err error)

	// Swap exchanges exactAmountIn of one asset for the other, returning
	// the amount received net of the pair's own swap fee.
	Swap(ctx context.Context, longForShort bool, exactAmountIn *Amount) (amountOut *Amount, err error)

	// TotalShares returns the pair's LP token supply, the denominator a
	// caller needs to convert its own share balance into a pool-ownership
	// fraction.
	TotalShares(ctx context.Context) (*Amount, error)
}

// MarginalPrice returns the instantaneous price of the short asset in terms
// of the long asset implied by reserves, i.e. long/short, scaled to 18
// fractional digits. spec.md §4.2 values a position by this marginal price
// rather than a time-weighted average, the same way a constant-product AMM
// quotes a spot price: cheap to query, manipulable within a single block,
// acceptable for this vault because liquidation already requires crossing a
// governance-set LTV buffer.
func MarginalPrice(reserves Reserves) (*Amount, error) {
	if reserves.Short == nil || reserves.Short.IsZero() {
		return nil, ErrEmptyPool
	}
	scale := uint256.NewInt(1_000_000_000_000_000_000)
	num := new(big.Int).Mul(reserves.Long.ToBig(), scale.ToBig())
	quotient := new(big.Int).Quo(num, reserves.Short.ToBig())
	out, overflow := uint256.FromBig(quotient)
	if overflow {
		return nil, ErrEmptyPool
	}
	return out, nil
}
