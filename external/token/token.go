// Package token models the fungible asset transfers the vault performs
// against the host chain's own token ledger, including the transfer-tax
// behavior spec.md §4.3 requires callers to account for. Grounded on the
// deleted native/lending engine's balance-transfer collaborator calls,
// generalized to expose the pre-tax/post-tax split explicitly rather than
// hiding it inside a single opaque Transfer call.
package token

import (
	"context"

	"github.com/holiman/uint256"
)

type Amount = uint256.Int

// Ledger is the collaborator interface for a single fungible asset's
// balance ledger.
type Ledger interface {
	// BalanceOf returns denom's balance held by the given holder.
	BalanceOf(ctx context.Context, denom string, holder string) (*Amount, error)

	// Transfer moves amount of denom from the vault's own account to
	// recipient, net of any transfer tax the host chain applies. Returns
	// the amount actually received by recipient.
	Transfer(ctx context.Context, denom string, recipient string, amount *Amount) (received *Amount, err error)

	// TransferFrom pulls amount of denom from sender into the vault's own
	// account, net of tax. Returns the amount actually received by the
	// vault.
	TransferFrom(ctx context.Context, denom string, sender string, amount *Amount) (received *Amount, err error)
}
