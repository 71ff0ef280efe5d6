package field

import (
	"github.com/nhbchain/field/core/events"
	"github.com/nhbchain/field/crypto"
)

// Each position handler and update_config emits exactly one of these event
// types on success, via the Engine's events.Emitter (a zero-reward harvest
// and add_keeper/remove_keeper emit none), matching the one-event-per-state-transition
// convention the deleted native/escrow trade engine used for its own
// Emitter field.

type PositionIncreased struct {
	User          crypto.Address
	BondUnitsAdded *Amount
	DebtUnitsAdded *Amount
}

func (PositionIncreased) EventType() string { return "field.position_increased" }

type PositionReduced struct {
	User             crypto.Address
	BondUnitsBurned  *Amount
	LongReturned     *Amount
	ShortReturned    *Amount
}

func (PositionReduced) EventType() string { return "field.position_reduced" }

type DebtRepaid struct {
	User            crypto.Address
	DebtUnitsBurned *Amount
	AmountRepaid    *Amount
}

func (DebtRepaid) EventType() string { return "field.debt_repaid" }

type Harvested struct {
	Keeper       crypto.Address
	RewardClaimed *Amount
	FeeCharged    *Amount
	BondUnitsAdded *Amount
}

func (Harvested) EventType() string { return "field.harvested" }

type PositionClosed struct {
	User          crypto.Address
	LongReturned  *Amount
	ShortReturned *Amount
}

func (PositionClosed) EventType() string { return "field.position_closed" }

type PositionLiquidated struct {
	User            crypto.Address
	Liquidator      crypto.Address
	DepositReceived *Amount
	RefundIssued    *Amount
}

func (PositionLiquidated) EventType() string { return "field.position_liquidated" }

type ConfigUpdated struct {
	Governance crypto.Address
}

func (ConfigUpdated) EventType() string { return "field.config_updated" }

var _ events.Event = PositionIncreased{}
