// Package redbank models the money-market collaborator the vault borrows
// its short leg from. The interface and the scaled-debt accrual technique
// in mock.go are adapted from the deleted native/lending engine's own
// borrow-index bookkeeping: a single global debtIndexRay that only ever
// increases, with each borrower holding scaledDebt = principal / index at
// borrow time so that interest accrual is an O(1) index bump rather than an
// O(borrowers) sweep.
package redbank

import (
	"context"

	"github.com/holiman/uint256"
)

type Amount = uint256.Int

// DebtMarket is the collaborator interface for the money market the vault
// draws its borrowed leg from.
type DebtMarket interface {
	// Borrow draws amount of the market's borrowed asset to the vault's
	// account, increasing the vault's outstanding debt.
	Borrow(ctx context.Context, amount *Amount) error

	// Repay reduces the vault's outstanding debt by up to amount,
	// returning the amount actually applied (capped at the current debt).
	Repay(ctx context.Context, amount *Amount) (*Amount, error)

	// CurrentDebt returns the vault's outstanding debt, inclusive of
	// accrued interest as of the current block.
	CurrentDebt(ctx context.Context) (*Amount, error)
}
