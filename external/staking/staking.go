// Package staking models the bonding contract the vault deposits its AMM
// LP shares into to earn reward-token emissions, per spec.md §4.4's harvest
// sub-operation. Grounded on native/lending's collaborator-call shape
// (external balance query + external mutating call, both context-scoped
// and error-wrapped at the call site) since no pack repo ships a staking
// contract of its own.
package staking

import (
	"context"

	"github.com/holiman/uint256"
)

type Amount = uint256.Int

// Bond is the collaborator interface for the staking contract holding the
// vault's bonded LP shares.
type Bond interface {
	// Stake deposits bondAmount of the bond asset (the AMM's LP share
	// token) on behalf of the vault.
	Stake(ctx context.Context, bondAmount *Amount) error

	// Unstake withdraws bondAmount previously staked.
	Unstake(ctx context.Context, bondAmount *Amount) error

	// PendingReward returns the reward-token amount currently claimable
	// by the vault, without claiming it.
	PendingReward(ctx context.Context) (*Amount, error)

	// ClaimReward claims all pending reward and returns the amount
	// transferred to the vault.
	ClaimReward(ctx context.Context) (*Amount, error)

	// StakedBalance returns the bond-asset amount currently staked by the
	// vault.
	StakedBalance(ctx context.Context) (*Amount, error)
}
