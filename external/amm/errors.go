package amm

import "errors"

var (
	// ErrEmptyPool is returned by any operation that requires a nonzero
	// reserve on both sides of the pair.
	ErrEmptyPool = errors.New("amm: pool has no reserves")

	// ErrSlippage is returned when ProvideLiquidity's implied ratio
	// diverges from the pair's current reserves ratio beyond the mock's
	// fixed tolerance.
	ErrSlippage = errors.New("amm: deposit ratio diverges from pool reserves")

	// ErrInsufficientShares is returned when WithdrawLiquidity is asked
	// to burn more shares than TotalShares reports outstanding.
	ErrInsufficientShares = errors.New("amm: insufficient shares outstanding")
)
