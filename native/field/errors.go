package field

import "errors"

// Error kinds are stable sentinel values, not type names, matching the
// package-level error variables native/lending declares (errInsufficientBalance,
// errHealthCheckFailed, ...). Callers compare with errors.Is; the JSON-RPC
// transport in rpcapi maps each kind to a fixed numeric code and HTTP status.
var (
	// ErrUnauthorized is returned when the caller is not permitted to invoke
	// the handler (non-keeper calling harvest, non-governance updating config).
	ErrUnauthorized = errors.New("field: unauthorized")

	// ErrInvalidConfig is returned when a config value falls outside its
	// documented domain (max_ltv, fee_rate, or a required address is empty).
	ErrInvalidConfig = errors.New("field: invalid config")

	// ErrInsufficientFunds is returned when a caller asks to burn more bond
	// units than its position holds. A deposit larger than the caller's
	// token balance is not reported with this error; it surfaces as a
	// CollaboratorError from the token ledger.
	ErrInsufficientFunds = errors.New("field: insufficient funds")

	// ErrNotLiquidatable is returned when close_position is invoked on a
	// position whose LTV does not exceed the configured maximum, and when
	// liquidate is invoked on a position that still holds bond units.
	ErrNotLiquidatable = errors.New("field: position not liquidatable")

	// ErrCollaboratorFailure wraps a downstream AMM/staking/red-bank/token
	// failure. Use newCollaboratorError to attach the origin.
	ErrCollaboratorFailure = errors.New("field: collaborator call failed")

	// ErrArithmeticOverflow signals a fixed-point computation exceeded 256
	// bits. Should be unreachable given the mulDiv helpers in fixedpoint.go.
	ErrArithmeticOverflow = errors.New("field: arithmetic overflow")

	// ErrUnimplemented marks a code path intentionally left disabled.
	ErrUnimplemented = errors.New("field: unimplemented")

	// ErrPositionNotFound is returned by queries against an Empty position.
	ErrPositionNotFound = errors.New("field: position not found")

	// ErrNothingToDo is returned for handler calls that would be vacuous: a
	// zero-amount liquidation deposit or a liquidation of a position with no
	// unlocked assets and no debt, a zero-amount pay_debt or one against
	// a position with no debt, and a reduce_position that would burn zero
	// units. A zero-reward harvest is not rejected with it: Harvest treats
	// that case as a successful no-op and returns nil.
	ErrNothingToDo = errors.New("field: nothing to do")

	// ErrNoDeposit is returned when a handler requiring a positive deposit
	// receives zero for every asset.
	ErrNoDeposit = errors.New("field: no deposit supplied")

	// ErrModulePaused is re-exported so callers of this package do not need
	// to additionally import native/common to recognize a pause rejection.
	ErrModulePaused = errors.New("field: module paused")

	// ErrQuotaExceeded is re-exported for the same reason: it fires when a
	// caller's per-epoch deposit quota (Config.DepositQuota) is exhausted.
	ErrQuotaExceeded = errors.New("field: deposit quota exceeded")
)

// CollaboratorError wraps a downstream failure with the name of the
// collaborator that produced it, satisfying spec.md §7's requirement that
// "the string must include the origin."
type CollaboratorError struct {
	Origin string
	Err    error
}

func (e *CollaboratorError) Error() string {
	if e == nil {
		return ""
	}
	return "field: " + e.Origin + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return ErrCollaboratorFailure
}

func newCollaboratorError(origin string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Origin: origin, Err: err}
}
