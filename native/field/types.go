package field

import (
	"github.com/nhbchain/field/crypto"
	nativecommon "github.com/nhbchain/field/native/common"
)

// AssetSlot indexes the three scratch balances a Position's unlocked assets
// carry: the long asset, the short asset, and the AMM's LP share token.
type AssetSlot int

const (
	SlotLong AssetSlot = iota
	SlotShort
	SlotShare
	slotCount
)

// SwapConfig names the AMM pair collaborator and the LP share token it mints.
type SwapConfig struct {
	Pair       crypto.Address
	ShareToken string
}

// StakingConfig names the staking collaborator and the tokens it deals in.
type StakingConfig struct {
	Contract   crypto.Address
	RewardAsset string
	BondAsset   string
}

// TaxParams mirrors spec.md §4.3/§9: the host chain's transfer tax rate and
// per-transfer cap, sourced from config rather than hardcoded so a tax-free
// deployment can simply set Rate=0, CapWei=unbounded.
type TaxParams struct {
	// RateRay is the tax rate R expressed as an 18-decimal fixed point
	// fraction (e.g. 0.001 == 1_000_000_000_000_000).
	RateRay *Amount
	// CapWei is the maximum tax charged on a single transfer. CapUnbounded
	// represents "no cap"; a zero value caps the tax at zero, and a nil
	// value applies no cap.
	CapWei *Amount
}

// CapUnbounded marks TaxParams.CapWei as having no ceiling.
func CapUnbounded() *Amount {
	return new(Amount).Not(zero())
}

// Config is the vault's owner-controlled parameter record (spec.md §3).
type Config struct {
	LongAsset   string
	ShortAsset  string
	RedBank     crypto.Address
	Swap        SwapConfig
	Staking     StakingConfig
	Keepers     []crypto.Address
	Treasury    crypto.Address
	Governance  crypto.Address
	MaxLTVRay   *Amount // decimal, 18 fractional digits, domain (0,1)
	FeeRateRay  *Amount // decimal, 18 fractional digits, domain [0,1]
	Tax         TaxParams
	Pauses      ActionPauses

	// DepositQuota caps how much deposit volume (the raw long and short
	// deposit amounts added together; the auto-borrow is not counted) and how many
	// increase_position calls a single address may make per epoch. A zero
	// value (the default) disables both limits.
	DepositQuota nativecommon.Quota
}

// ActionPauses lets governance halt individual handlers without a redeploy,
// the same fine-grained switch native/lending's RiskParameters.Pauses and
// native/escrow's nativecommon.Guard(pauses, moduleName) expose.
type ActionPauses struct {
	Increase bool
	Reduce   bool
	PayDebt  bool
	Harvest  bool
	Close    bool
	Liquidate bool
}

// IsPaused implements native/common.PauseView for the handler names this
// package guards with.
func (p ActionPauses) IsPaused(module string) bool {
	switch module {
	case "increase_position":
		return p.Increase
	case "reduce_position":
		return p.Reduce
	case "pay_debt":
		return p.PayDebt
	case "harvest":
		return p.Harvest
	case "close_position":
		return p.Close
	case "liquidate":
		return p.Liquidate
	default:
		return false
	}
}

// State is the vault's global accounting singleton (spec.md §3).
type State struct {
	TotalBondUnits *Amount
	TotalDebtUnits *Amount

	// TotalBondShares is the AMM LP share amount currently staked by the
	// vault, the valueBefore the bond-unit ledger dilutes against. It is
	// updated by increase/reduce/close/harvest handlers as they
	// stake/unstake shares with the staking collaborator, not derived
	// on the fly from a collaborator query, so a handler can reason
	// about it mid-pipeline before the staking call actually lands.
	TotalBondShares *Amount
}

func newState() *State {
	return &State{
		TotalBondUnits:  zero(),
		TotalDebtUnits:  zero(),
		TotalBondShares: zero(),
	}
}

// UnlockedAssets is the per-user scratch-space triple described in spec.md
// §3: assets pulled into the vault but not yet committed to (or released
// from) a bond.
type UnlockedAssets [slotCount]*Amount

func newUnlockedAssets() UnlockedAssets {
	return UnlockedAssets{zero(), zero(), zero()}
}

// Position is a user's accounting record (spec.md §3).
type Position struct {
	BondUnits      *Amount
	DebtUnits      *Amount
	UnlockedAssets UnlockedAssets
}

func emptyPosition() *Position {
	return &Position{
		BondUnits:      zero(),
		DebtUnits:      zero(),
		UnlockedAssets: newUnlockedAssets(),
	}
}

// IsEmpty reports whether the position satisfies invariant I6 and should be
// deleted from the positions map.
func (p *Position) IsEmpty() bool {
	if p == nil {
		return true
	}
	if p.BondUnits.Sign() != 0 || p.DebtUnits.Sign() != 0 {
		return false
	}
	for _, v := range p.UnlockedAssets {
		if v.Sign() != 0 {
			return false
		}
	}
	return true
}

// clone returns a deep copy so callers mutating the returned Position never
// alias the ledger's own state.
func (p *Position) clone() *Position {
	if p == nil {
		return emptyPosition()
	}
	out := &Position{
		BondUnits: new(Amount).Set(p.BondUnits),
		DebtUnits: new(Amount).Set(p.DebtUnits),
	}
	for i, v := range p.UnlockedAssets {
		out.UnlockedAssets[i] = new(Amount).Set(v)
	}
	return out
}

// Health is the computed (never stored) valuation of a position.
type Health struct {
	BondValue *Amount
	DebtValue *Amount
	// LTVRay is nil (⊥) when BondValue is zero.
	LTVRay *Amount
}

// Snapshot is the lagging mirror spec.md §9 describes: the position and its
// health as of the end of the last transaction that touched that user. It
// is deliberately not recomputed on read — a handler that doesn't touch a
// user must leave that user's stored Snapshot untouched even though their
// live Health may have drifted (e.g. a price move, or another user's
// liquidation), which is how a front-end detects "this position was
// liquidated while I wasn't looking".
type Snapshot struct {
	Position Position
	Health   Health
}
