package redbank

import "errors"

// ErrDebtOverflow is returned when an accrued-debt computation exceeds 256
// bits, which under normal interest rates and deposit sizes should be
// unreachable.
var ErrDebtOverflow = errors.New("redbank: debt computation overflow")
