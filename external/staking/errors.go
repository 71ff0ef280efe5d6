package staking

import "errors"

// ErrInsufficientStake is returned by Unstake when bondAmount exceeds the
// vault's currently staked balance.
var ErrInsufficientStake = errors.New("staking: insufficient staked balance")
