package field

import "context"

// Step is a single sub-operation of a handler's pipeline: one collaborator
// call or one ledger mutation. Steps run strictly in order; a step that
// returns an error aborts the remaining steps.
type Step func(ctx context.Context) error

// Pipeline is the ordered-sub-operation executor spec.md §4.4 describes for
// every multi-collaborator handler (increase_position chains a red bank
// borrow, an AMM deposit, and a staking bond; close_position chains an
// unstake, an AMM withdrawal, and a red bank repay). Grounded on the
// deleted native/escrow trade engine's own step-list-plus-settlement
// pattern: run every step, then hand control to a single Reconcile
// callback that is the only place allowed to mutate the position/state
// ledger, so a handler can never leave the ledger updated for a
// collaborator call that didn't actually happen.
type Pipeline struct {
	Steps     []Step
	Reconcile func(ctx context.Context) error
}

// Execute runs every step in order. If all steps succeed, Reconcile runs
// and its error (if any) is returned. If any step fails, execution stops
// immediately and Reconcile never runs — the handler's caller is expected
// to propagate the error and let the surrounding transaction revert,
// exactly as a failed native/escrow trade leg aborts the whole trade
// rather than attempting a partial unwind.
func (p *Pipeline) Execute(ctx context.Context) error {
	for _, step := range p.Steps {
		if step == nil {
			continue
		}
		if err := step(ctx); err != nil {
			return err
		}
	}
	if p.Reconcile == nil {
		return nil
	}
	return p.Reconcile(ctx)
}
