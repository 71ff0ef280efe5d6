package token

import "errors"

var (
	// ErrInsufficientBalance is returned when a transfer's sender lacks
	// the gross amount requested.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrBalanceOverflow is returned when a balance query result exceeds
	// 256 bits, which should be unreachable.
	ErrBalanceOverflow = errors.New("token: balance overflow")
)
