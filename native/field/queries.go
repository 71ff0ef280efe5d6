package field

import (
	"context"

	"github.com/nhbchain/field/crypto"
)

// GetConfig returns a copy of the vault's current configuration.
func (e *Engine) GetConfig() Config {
	return e.Config
}

// GetState returns a copy of the vault's global ledger totals.
func (e *Engine) GetState() State {
	return State{
		TotalBondUnits:  new(Amount).Set(e.State.TotalBondUnits),
		TotalDebtUnits:  new(Amount).Set(e.State.TotalDebtUnits),
		TotalBondShares: new(Amount).Set(e.State.TotalBondShares),
	}
}

// GetPosition returns a copy of user's position, or ErrPositionNotFound if
// user has never held one (or has since fully exited, per invariant I6).
func (e *Engine) GetPosition(user crypto.Address) (Position, error) {
	p, ok := e.Positions[user.String()]
	if !ok || p.IsEmpty() {
		return Position{}, ErrPositionNotFound
	}
	return *p.clone(), nil
}

// GetHealth computes user's current Health without mutating any state.
// Returns ErrPositionNotFound if user has never held a position, matching
// spec.md §6's "not-found if Empty user" query contract.
func (e *Engine) GetHealth(ctx context.Context, user crypto.Address) (Health, error) {
	p, ok := e.Positions[user.String()]
	if !ok || p.IsEmpty() {
		return Health{}, ErrPositionNotFound
	}
	return e.Valuator.Health(ctx, e.State, p)
}

// GetGlobalHealth computes the vault's aggregate Health across every
// position — the `health(user=⊥)` variant spec.md §6 describes.
func (e *Engine) GetGlobalHealth(ctx context.Context) (Health, error) {
	return e.Valuator.GlobalHealth(ctx, e.State)
}

// GetSnapshot returns the position and health pair as of the end of the
// last transaction that touched user — the persisted lagging mirror
// spec.md §9 describes, not a live recomputation. A handler that doesn't
// touch user leaves their stored Snapshot exactly as it was, even if
// user's live Health has since drifted (a price move, another user's
// liquidation, ...). Returns ErrPositionNotFound if user has never held a
// position, or has since fully exited per invariant I6.
func (e *Engine) GetSnapshot(ctx context.Context, user crypto.Address) (Snapshot, error) {
	snap, ok := e.Snapshots[user.String()]
	if !ok {
		return Snapshot{}, ErrPositionNotFound
	}
	return Snapshot{Position: *snap.Position.clone(), Health: snap.Health}, nil
}
