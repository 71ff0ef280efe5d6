package field

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nhbchain/field/core/events"
	"github.com/nhbchain/field/crypto"
	"github.com/nhbchain/field/external/amm"
	"github.com/nhbchain/field/external/redbank"
	"github.com/nhbchain/field/external/staking"
	"github.com/nhbchain/field/external/taxoracle"
	"github.com/nhbchain/field/external/token"
	nativecommon "github.com/nhbchain/field/native/common"
)

// Engine is the vault's handler surface: one exported method per spec.md
// §4.4 operation, each built as a Pipeline of collaborator calls followed
// by a single ledger-mutating Reconcile step. Mirrors the deleted
// native/lending Engine's shape (config + state + collaborators + logger +
// emitter, one method per instruction) generalized across five external
// collaborators instead of one.
type Engine struct {
	Config Config
	State  *State

	Positions map[string]*Position
	// Snapshots is the persisted lagging-mirror store spec.md §3/§9
	// describes: written only by writeSnapshot at the end of a handler
	// that actually touched the user, never recomputed on a plain read.
	Snapshots map[string]Snapshot

	Pair     amm.Pair
	Market   redbank.DebtMarket
	Bond     staking.Bond
	Token    token.Ledger
	TaxOracle taxoracle.Oracle
	Valuator *Valuator

	Emitter events.Emitter
	Logger  *slog.Logger

	// QuotaStore persists per-address, per-epoch deposit quota counters
	// (Config.DepositQuota). NewEngine sets it to an in-process MemStore;
	// when it is nil the deposit quota is not enforced.
	QuotaStore nativecommon.Store
}

// NewEngine constructs an Engine with an empty ledger and no open
// positions, ready to accept handler calls once its collaborators are
// wired in.
func NewEngine(cfg Config, pair amm.Pair, market redbank.DebtMarket, bond staking.Bond, ledger token.Ledger, oracle taxoracle.Oracle, emitter events.Emitter, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	state := newState()
	return &Engine{
		Config:     cfg,
		State:      state,
		Positions:  make(map[string]*Position),
		Snapshots:  make(map[string]Snapshot),
		Pair:       pair,
		Market:     market,
		Bond:       bond,
		Token:      ledger,
		TaxOracle:  oracle,
		Valuator:   &Valuator{Pair: pair, Market: market},
		Emitter:    emitter,
		Logger:     logger,
		QuotaStore: nativecommon.NewMemStore(),
	}, nil
}

func (e *Engine) emitter() events.Emitter {
	if e.Emitter == nil {
		return events.NoopEmitter{}
	}
	return e.Emitter
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) position(user crypto.Address) *Position {
	key := user.String()
	if p, ok := e.Positions[key]; ok {
		return p
	}
	p := emptyPosition()
	e.Positions[key] = p
	return p
}

func (e *Engine) prunePosition(user crypto.Address) {
	key := user.String()
	if p, ok := e.Positions[key]; ok && p.IsEmpty() {
		delete(e.Positions, key)
	}
}

// writeSnapshot refreshes user's stored Snapshot to the position/health pair
// as of right now, called once at the end of every handler that actually
// touched user (spec.md §9: harvest and other users' operations must never
// update it). If the position was pruned to Empty by this same commit, the
// stored snapshot is deleted too, so snapshot(u) and position(u) agree on
// not-found per invariant I6.
func (e *Engine) writeSnapshot(ctx context.Context, user crypto.Address) error {
	key := user.String()
	p, ok := e.Positions[key]
	if !ok || p.IsEmpty() {
		delete(e.Snapshots, key)
		return nil
	}
	health, err := e.Valuator.Health(ctx, e.State, p)
	if err != nil {
		return err
	}
	e.Snapshots[key] = Snapshot{Position: *p.clone(), Health: health}
	return nil
}

// guard translates a native/common pause rejection into this package's own
// ErrModulePaused sentinel so callers never need to import native/common
// themselves to recognize it.
func (e *Engine) guard(module string) error {
	if err := nativecommon.Guard(e.Config.Pauses, module); err != nil {
		return ErrModulePaused
	}
	return nil
}

// refreshTax pulls the host chain's live tax parameters for denom into
// the engine's own Config, per SPEC_FULL.md's Open Questions decision that
// tax math must never consult a stale, deploy-time-baked rate.
func (e *Engine) refreshTax(ctx context.Context, denom string) error {
	if e.TaxOracle == nil {
		return nil
	}
	params, err := e.TaxOracle.TaxParams(ctx, denom)
	if err != nil {
		return newCollaboratorError("taxoracle", err)
	}
	e.Config.Tax = TaxParams{RateRay: params.RateRay, CapWei: params.CapWei}
	return nil
}

// checkDepositQuota enforces Config.DepositQuota for increase_position: a
// disabled quota (zero Quota) is a no-op, matching
// native/common.CheckQuota's own "0 means unlimited" convention.
func (e *Engine) checkDepositQuota(user crypto.Address, total *Amount) error {
	q := e.Config.DepositQuota
	if q.MaxRequestsPerMin == 0 && q.MaxNHBPerEpoch == 0 {
		return nil
	}
	if e.QuotaStore == nil {
		return nil
	}
	epochSeconds := uint64(q.EpochSeconds)
	if epochSeconds == 0 {
		epochSeconds = 60
	}
	epoch := uint64(time.Now().Unix()) / epochSeconds

	var nhbUsed uint64
	if total.IsUint64() {
		nhbUsed = total.Uint64()
	} else if q.MaxNHBPerEpoch > 0 {
		return ErrQuotaExceeded
	}

	_, err := nativecommon.Apply(e.QuotaStore, "increase_position", epoch, user.Bytes(), q, 1, nhbUsed)
	if err != nil {
		if errors.Is(err, nativecommon.ErrQuotaRequestsExceeded) || errors.Is(err, nativecommon.ErrQuotaNHBCapExceeded) {
			return ErrQuotaExceeded
		}
		return err
	}
	return nil
}

// IncreasePosition deposits longDeposit/shortDeposit of collateral. If the
// short side on hand isn't enough to pair the long side at the pool's
// current ratio, it auto-borrows the shortfall from the red bank (sized
// gross through addTax so the net disbursement after transfer tax still
// covers it), then provides both legs into the AMM pair and bonds the
// resulting LP shares into the staking contract (spec.md §4.4
// increase_position, step 3's leverage sizing).
func (e *Engine) IncreasePosition(ctx context.Context, user crypto.Address, longDeposit, shortDeposit *Amount) error {
	if err := e.guard("increase_position"); err != nil {
		return err
	}
	if longDeposit.IsZero() && shortDeposit.IsZero() {
		return ErrNoDeposit
	}
	if err := e.refreshTax(ctx, e.Config.ShortAsset); err != nil {
		return err
	}

	depositTotal, err := addChecked(longDeposit, shortDeposit)
	if err != nil {
		return err
	}
	if err := e.checkDepositQuota(user, depositTotal); err != nil {
		return err
	}

	position := e.position(user)

	var longNet, shortNet, shares *Amount
	var borrowGross *Amount
	var bondMinted, debtMinted *Amount
	var reserves amm.Reserves

	pipeline := &Pipeline{
		Steps: []Step{
			func(ctx context.Context) error {
				r, err := e.Pair.Reserves(ctx)
				if err != nil {
					return newCollaboratorError("amm", err)
				}
				reserves = r
				return nil
			},
			func(ctx context.Context) error {
				if longDeposit.IsZero() {
					longNet = zero()
					return nil
				}
				received, err := e.Token.TransferFrom(ctx, e.Config.LongAsset, user.String(), longDeposit)
				if err != nil {
					return newCollaboratorError("token", err)
				}
				longNet = received
				return nil
			},
			func(ctx context.Context) error {
				if shortDeposit.IsZero() {
					shortNet = zero()
					return nil
				}
				received, err := e.Token.TransferFrom(ctx, e.Config.ShortAsset, user.String(), shortDeposit)
				if err != nil {
					return newCollaboratorError("token", err)
				}
				shortNet = received
				return nil
			},
			// spec.md §4.4 step 3: ust_needed = long_in_vault * R_S / R_L;
			// borrow the gross amount whose after-tax delivery covers
			// whatever of that the deposited short doesn't already.
			func(ctx context.Context) error {
				borrowGross = zero()
				if reserves.Long.IsZero() || longNet.IsZero() {
					return nil
				}
				ustNeeded, err := mulDivDown(longNet, reserves.Short, reserves.Long)
				if err != nil {
					return err
				}
				if ustNeeded.Cmp(shortNet) <= 0 {
					return nil
				}
				shortfall, err := subChecked(ustNeeded, shortNet)
				if err != nil {
					return err
				}
				gross, err := addTax(shortfall, e.Config.Tax)
				if err != nil {
					return err
				}
				if err := e.Market.Borrow(ctx, gross); err != nil {
					return newCollaboratorError("redbank", err)
				}
				net, _, err := deductTax(gross, e.Config.Tax)
				if err != nil {
					return err
				}
				borrowGross = gross
				shortNet, err = addChecked(shortNet, net)
				if err != nil {
					return err
				}
				return nil
			},
			// spec.md §4.4 step 4: provide only as much short as the pool
			// ratio calls for, leaving any surplus as dust rather than
			// overshooting into the pair's slippage guard.
			func(ctx context.Context) error {
				shortToProvide := shortNet
				if !reserves.Long.IsZero() && !longNet.IsZero() {
					ustNeeded, err := mulDivDown(longNet, reserves.Short, reserves.Long)
					if err != nil {
						return err
					}
					shortToProvide = minAmount(shortNet, ustNeeded)
				}
				minted, err := e.Pair.ProvideLiquidity(ctx, longNet, shortToProvide)
				if err != nil {
					return newCollaboratorError("amm", err)
				}
				shares = minted
				remaining, err := subChecked(shortNet, shortToProvide)
				if err != nil {
					return err
				}
				shortNet = remaining
				return nil
			},
			func(ctx context.Context) error {
				if err := e.Bond.Stake(ctx, shares); err != nil {
					return newCollaboratorError("staking", err)
				}
				return nil
			},
		},
		Reconcile: func(ctx context.Context) error {
			minted, err := applyBondIncrease(e.State, position, shares, totalBondShares(e.State))
			if err != nil {
				return err
			}
			bondMinted = minted
			newTotalShares, err := addChecked(e.State.TotalBondShares, shares)
			if err != nil {
				return err
			}
			e.State.TotalBondShares = newTotalShares

			if !borrowGross.IsZero() {
				totalDebt, err := e.Market.CurrentDebt(ctx)
				if err != nil {
					return newCollaboratorError("redbank", err)
				}
				debtBefore, err := subChecked(totalDebt, borrowGross)
				if err != nil {
					return err
				}
				minted, err := applyDebtIncrease(e.State, position, borrowGross, debtBefore)
				if err != nil {
					return err
				}
				debtMinted = minted
			} else {
				debtMinted = zero()
			}

			dust, err := addChecked(position.UnlockedAssets[SlotShort], shortNet)
			if err != nil {
				return err
			}
			position.UnlockedAssets[SlotShort] = dust
			return nil
		},
	}

	if err := pipeline.Execute(ctx); err != nil {
		return err
	}
	if err := e.writeSnapshot(ctx, user); err != nil {
		return err
	}

	e.emitter().Emit(PositionIncreased{User: user, BondUnitsAdded: bondMinted, DebtUnitsAdded: debtMinted})
	e.logger().Info("position increased", "user", user.String(), "bond_units", bondMinted.String(), "debt_units", debtMinted.String())
	return nil
}

// ReducePosition burns bondUnitsToBurn of the caller's bond units, or every
// unit the caller holds when bondUnitsToBurn is nil (spec.md §4.4's ⊥
// sentinel for "burn all"). remove gates whether the released LP shares are
// withdrawn to their underlying long/short assets; repay gates whether
// proceeds are first applied against the caller's outstanding debt, up to
// min(unlocked_short, current_user_debt), before whatever remains — long,
// short, and any un-withdrawn LP shares alike — is refunded to the caller.
// Chaining bondUnitsToBurn=nil, remove=true, repay=true after
// increase_position is the §4.4/§8 round-trip: it must leave the caller
// with zero residual debt whenever the proceeds cover it.
func (e *Engine) ReducePosition(ctx context.Context, user crypto.Address, bondUnitsToBurn *Amount, remove, repay bool) error {
	if err := e.guard("reduce_position"); err != nil {
		return err
	}
	if err := e.refreshTax(ctx, e.Config.ShortAsset); err != nil {
		return err
	}

	position := e.position(user)

	var burnUnits *Amount
	if bondUnitsToBurn == nil {
		burnUnits = new(Amount).Set(position.BondUnits)
	} else {
		burnUnits = new(Amount).Set(bondUnitsToBurn)
	}
	if burnUnits.IsZero() {
		return ErrNothingToDo
	}
	if burnUnits.Cmp(position.BondUnits) > 0 {
		return ErrInsufficientFunds
	}

	sharesToRelease, err := burnBondUnits(burnUnits, totalBondShares(e.State), e.State.TotalBondUnits)
	if err != nil {
		return err
	}

	var longOut, shortOut *Amount
	var repaidApplied, debtBefore *Amount
	var longSent, shortSent, shareSent *Amount

	pipeline := &Pipeline{
		Steps: []Step{
			func(ctx context.Context) error {
				return translateErr("staking", e.Bond.Unstake(ctx, sharesToRelease))
			},
			func(ctx context.Context) error {
				if !remove {
					longOut, shortOut = zero(), zero()
					return nil
				}
				long, short, err := e.Pair.WithdrawLiquidity(ctx, sharesToRelease)
				if err != nil {
					return newCollaboratorError("amm", err)
				}
				longOut, shortOut = long, short
				return nil
			},
			func(ctx context.Context) error {
				repaidApplied, debtBefore = zero(), zero()
				if !repay || position.DebtUnits.IsZero() {
					return nil
				}
				availableShort, err := addChecked(position.UnlockedAssets[SlotShort], shortOut)
				if err != nil {
					return err
				}
				owed, err := e.Market.CurrentDebt(ctx)
				if err != nil {
					return newCollaboratorError("redbank", err)
				}
				userDebt, err := debtValueOf(position, owed, e.State.TotalDebtUnits)
				if err != nil {
					return err
				}
				toRepay := minAmount(availableShort, userDebt)
				if toRepay.IsZero() {
					return nil
				}
				applied, err := e.Market.Repay(ctx, toRepay)
				if err != nil {
					return newCollaboratorError("redbank", err)
				}
				repaidApplied = applied
				debtBefore = owed
				return nil
			},
			func(ctx context.Context) error {
				totalLong, err := addChecked(position.UnlockedAssets[SlotLong], longOut)
				if err != nil {
					return err
				}
				if totalLong.IsZero() {
					longSent = zero()
					return nil
				}
				sent, err := e.Token.Transfer(ctx, e.Config.LongAsset, user.String(), totalLong)
				if err != nil {
					return newCollaboratorError("token", err)
				}
				longSent = sent
				return nil
			},
			func(ctx context.Context) error {
				totalShort, err := addChecked(position.UnlockedAssets[SlotShort], shortOut)
				if err != nil {
					return err
				}
				remainingShort, err := subChecked(totalShort, repaidApplied)
				if err != nil {
					return err
				}
				if remainingShort.IsZero() {
					shortSent = zero()
					return nil
				}
				sent, err := e.Token.Transfer(ctx, e.Config.ShortAsset, user.String(), remainingShort)
				if err != nil {
					return newCollaboratorError("token", err)
				}
				shortSent = sent
				return nil
			},
			func(ctx context.Context) error {
				if remove {
					shareSent = zero()
					return nil
				}
				totalShare, err := addChecked(position.UnlockedAssets[SlotShare], sharesToRelease)
				if err != nil {
					return err
				}
				if totalShare.IsZero() {
					shareSent = zero()
					return nil
				}
				sent, err := e.Token.Transfer(ctx, e.Config.Swap.ShareToken, user.String(), totalShare)
				if err != nil {
					return newCollaboratorError("token", err)
				}
				shareSent = sent
				return nil
			},
		},
		Reconcile: func(ctx context.Context) error {
			if _, err := applyBondDecrease(e.State, position, burnUnits, totalBondShares(e.State)); err != nil {
				return err
			}
			newTotalShares, err := subChecked(e.State.TotalBondShares, sharesToRelease)
			if err != nil {
				return err
			}
			e.State.TotalBondShares = newTotalShares

			if !repaidApplied.IsZero() {
				if _, err := applyDebtDecrease(e.State, position, repaidApplied, debtBefore); err != nil {
					return err
				}
			}

			position.UnlockedAssets[SlotLong] = zero()
			position.UnlockedAssets[SlotShort] = zero()
			position.UnlockedAssets[SlotShare] = zero()
			e.prunePosition(user)
			return nil
		},
	}

	if err := pipeline.Execute(ctx); err != nil {
		return err
	}
	if err := e.writeSnapshot(ctx, user); err != nil {
		return err
	}

	e.emitter().Emit(PositionReduced{User: user, BondUnitsBurned: burnUnits, LongReturned: longSent, ShortReturned: shortSent})
	e.logger().Info("position reduced", "user", user.String(), "bond_units_burned", burnUnits.String(), "lp_shares_returned", shareSent.String())
	return nil
}

// PayDebt accepts a direct repayment of the short asset from the caller,
// applying it to the red bank and burning the corresponding debt units
// without touching the bonded collateral (spec.md §4.4 pay_debt).
func (e *Engine) PayDebt(ctx context.Context, user crypto.Address, repayAmount *Amount) error {
	if err := e.guard("pay_debt"); err != nil {
		return err
	}
	if repayAmount.IsZero() {
		return ErrNothingToDo
	}

	position := e.position(user)
	if position.DebtUnits.IsZero() {
		return ErrNothingToDo
	}

	var repaidNet, applied, unitsBurned *Amount

	pipeline := &Pipeline{
		Steps: []Step{
			func(ctx context.Context) error {
				received, err := e.Token.TransferFrom(ctx, e.Config.ShortAsset, user.String(), repayAmount)
				if err != nil {
					return newCollaboratorError("token", err)
				}
				repaidNet = received
				return nil
			},
			func(ctx context.Context) error {
				app, err := e.Market.Repay(ctx, repaidNet)
				if err != nil {
					return newCollaboratorError("redbank", err)
				}
				applied = app
				return nil
			},
		},
		Reconcile: func(ctx context.Context) error {
			totalDebtAfter, err := e.Market.CurrentDebt(ctx)
			if err != nil {
				return newCollaboratorError("redbank", err)
			}
			debtBefore, err := addChecked(totalDebtAfter, applied)
			if err != nil {
				return err
			}
			burned, err := applyDebtDecrease(e.State, position, applied, debtBefore)
			if err != nil {
				return err
			}
			unitsBurned = burned
			e.prunePosition(user)
			return nil
		},
	}

	if err := pipeline.Execute(ctx); err != nil {
		return err
	}
	if err := e.writeSnapshot(ctx, user); err != nil {
		return err
	}

	e.emitter().Emit(DebtRepaid{User: user, DebtUnitsBurned: unitsBurned, AmountRepaid: applied})
	e.logger().Info("debt repaid", "user", user.String(), "amount", applied.String())
	return nil
}

// Harvest is keeper-only (spec.md §4.4 harvest): it claims accrued staking
// reward, sends a performance fee to the treasury, swaps half the
// remainder for the short asset, and reinvests both legs into the pool.
// Reinvestment increases
// TotalBondShares without minting any bond units, which raises the value
// of every existing unit rather than diluting current holders — the
// compounding behavior a performance fee is meant to fund.
func (e *Engine) Harvest(ctx context.Context, keeper crypto.Address) error {
	if err := e.guard("harvest"); err != nil {
		return err
	}
	if !e.Config.IsKeeper(keeper) {
		return ErrUnauthorized
	}

	var claimed, feeAmount, net, halfLong, halfToSwap, swappedShort, shares *Amount

	pipeline := &Pipeline{
		Steps: []Step{
			func(ctx context.Context) error {
				amount, err := e.Bond.ClaimReward(ctx)
				if err != nil {
					return newCollaboratorError("staking", err)
				}
				claimed = amount
				if claimed.IsZero() {
					return ErrNothingToDo
				}
				return nil
			},
			func(ctx context.Context) error {
				fee, err := mulDivDown(claimed, e.Config.FeeRateRay, ray)
				if err != nil {
					return err
				}
				feeAmount = fee
				remainder, err := subChecked(claimed, fee)
				if err != nil {
					return err
				}
				net = remainder
				if !feeAmount.IsZero() {
					if _, err := e.Token.Transfer(ctx, e.Config.Staking.RewardAsset, e.Config.Treasury.String(), feeAmount); err != nil {
						return newCollaboratorError("token", err)
					}
				}
				return nil
			},
			func(ctx context.Context) error {
				half, err := mulDivDown(net, fromUint64(1), fromUint64(2))
				if err != nil {
					return err
				}
				halfLong = half
				halfToSwap, err = subChecked(net, half)
				if err != nil {
					return err
				}
				return nil
			},
			func(ctx context.Context) error {
				if halfToSwap.IsZero() {
					swappedShort = zero()
					return nil
				}
				out, err := e.Pair.Swap(ctx, true, halfToSwap)
				if err != nil {
					return newCollaboratorError("amm", err)
				}
				swappedShort = out
				return nil
			},
			func(ctx context.Context) error {
				minted, err := e.Pair.ProvideLiquidity(ctx, halfLong, swappedShort)
				if err != nil {
					return newCollaboratorError("amm", err)
				}
				shares = minted
				return nil
			},
			func(ctx context.Context) error {
				return translateErr("staking", e.Bond.Stake(ctx, shares))
			},
		},
		Reconcile: func(ctx context.Context) error {
			newTotal, err := addChecked(e.State.TotalBondShares, shares)
			if err != nil {
				return err
			}
			e.State.TotalBondShares = newTotal
			return nil
		},
	}

	if err := pipeline.Execute(ctx); err != nil {
		if err == ErrNothingToDo {
			return nil
		}
		return err
	}

	e.emitter().Emit(Harvested{Keeper: keeper, RewardClaimed: claimed, FeeCharged: feeAmount, BondUnitsAdded: zero()})
	e.logger().Info("harvested", "keeper", keeper.String(), "reward", claimed.String(), "fee", feeAmount.String())
	return nil
}

// ClosePosition is the first phase of spec.md §4.4's two-phase liquidation:
// any caller may force-close a position whose LTV strictly exceeds the
// configured maximum. The entire bond is unwound and the debt repaid as
// far as the released collateral allows; whatever remains unconverted is
// parked in the position's UnlockedAssets for a subsequent Liquidate call
// to claim, rather than sent anywhere automatically.
func (e *Engine) ClosePosition(ctx context.Context, caller, user crypto.Address) error {
	if err := e.guard("close_position"); err != nil {
		return err
	}

	position := e.position(user)
	health, err := e.Valuator.Health(ctx, e.State, position)
	if err != nil {
		return err
	}
	if !IsLiquidatable(health, e.Config.MaxLTVRay) {
		return ErrNotLiquidatable
	}

	shares := new(Amount).Set(position.BondUnits)
	var sharesReleased, longOut, shortOut, debtBefore, debtOwed, repaid *Amount

	pipeline := &Pipeline{
		Steps: []Step{
			func(ctx context.Context) error {
				released, err := burnBondUnits(shares, totalBondShares(e.State), e.State.TotalBondUnits)
				if err != nil {
					return err
				}
				sharesReleased = released
				return translateErr("staking", e.Bond.Unstake(ctx, sharesReleased))
			},
			func(ctx context.Context) error {
				long, short, err := e.Pair.WithdrawLiquidity(ctx, sharesReleased)
				if err != nil {
					return newCollaboratorError("amm", err)
				}
				longOut, shortOut = long, short
				return nil
			},
			func(ctx context.Context) error {
				owed, err := e.Market.CurrentDebt(ctx)
				if err != nil {
					return newCollaboratorError("redbank", err)
				}
				debtOwed, err = debtValueOf(position, owed, e.State.TotalDebtUnits)
				if err != nil {
					return err
				}
				debtBefore = owed
				toRepay := minAmount(debtOwed, shortOut)
				if toRepay.IsZero() {
					repaid = zero()
					return nil
				}
				app, err := e.Market.Repay(ctx, toRepay)
				if err != nil {
					return newCollaboratorError("redbank", err)
				}
				repaid = app
				return nil
			},
		},
		Reconcile: func(ctx context.Context) error {
			if _, err := applyBondDecrease(e.State, position, shares, totalBondShares(e.State)); err != nil {
				return err
			}
			newTotalShares, err := subChecked(e.State.TotalBondShares, sharesReleased)
			if err != nil {
				return err
			}
			e.State.TotalBondShares = newTotalShares

			if !repaid.IsZero() {
				if _, err := applyDebtDecrease(e.State, position, repaid, debtBefore); err != nil {
					return err
				}
			}

			remainingShort, err := subChecked(shortOut, repaid)
			if err != nil {
				remainingShort = zero()
			}
			position.UnlockedAssets[SlotLong], err = addChecked(position.UnlockedAssets[SlotLong], longOut)
			if err != nil {
				return err
			}
			position.UnlockedAssets[SlotShort], err = addChecked(position.UnlockedAssets[SlotShort], remainingShort)
			if err != nil {
				return err
			}
			return nil
		},
	}

	if err := pipeline.Execute(ctx); err != nil {
		return err
	}
	if err := e.writeSnapshot(ctx, user); err != nil {
		return err
	}

	e.emitter().Emit(PositionClosed{User: user, LongReturned: longOut, ShortReturned: shortOut})
	e.logger().Info("position closed", "caller", caller.String(), "user", user.String())
	return nil
}

// Liquidate is the second phase: a liquidator deposits depositAmount of the
// short asset, which is first earmarked into the user's own
// UnlockedAssets[short] alongside whatever is already parked there, repays
// as much of the user's outstanding debt as that balance covers, and is
// paid a share of the user's UnlockedAssets proportional to
// coverage_fraction = repaid / debt_before_repay — not the whole balance,
// since a liquidator is never obligated to clear all of a user's debt in
// one call (spec.md §4.4 liquidate). Only once the user's debt reaches zero
// is the leftover remainder refunded to the user and the position deleted.
func (e *Engine) Liquidate(ctx context.Context, liquidator, user crypto.Address, depositAmount *Amount) error {
	if err := e.guard("liquidate"); err != nil {
		return err
	}
	if depositAmount.IsZero() {
		return ErrNothingToDo
	}

	position := e.position(user)
	if position.BondUnits.Sign() != 0 {
		return ErrNotLiquidatable
	}
	if position.UnlockedAssets[SlotLong].IsZero() && position.UnlockedAssets[SlotShort].IsZero() && position.DebtUnits.IsZero() {
		return ErrNothingToDo
	}

	var depositNet, debtBefore, debtOwedBeforeRepay, repaid, coverageRay *Amount
	var longPayout, shortPayout, longRefund, shortRefund *Amount
	// shortScratch projects what position.UnlockedAssets[SlotShort] will
	// become once Reconcile actually commits it; every Step reads/writes
	// this local instead of the position, so a mid-pipeline collaborator
	// failure leaves the position completely untouched.
	shortScratch := new(Amount).Set(position.UnlockedAssets[SlotShort])
	debtCleared := false

	pipeline := &Pipeline{
		Steps: []Step{
			func(ctx context.Context) error {
				received, err := e.Token.TransferFrom(ctx, e.Config.ShortAsset, liquidator.String(), depositAmount)
				if err != nil {
					return newCollaboratorError("token", err)
				}
				depositNet = received
				var err2 error
				shortScratch, err2 = addChecked(shortScratch, depositNet)
				return err2
			},
			func(ctx context.Context) error {
				if position.DebtUnits.IsZero() {
					repaid = zero()
					debtOwedBeforeRepay = zero()
					return nil
				}
				owed, err := e.Market.CurrentDebt(ctx)
				if err != nil {
					return newCollaboratorError("redbank", err)
				}
				debtBefore = owed
				userDebt, err := debtValueOf(position, owed, e.State.TotalDebtUnits)
				if err != nil {
					return err
				}
				debtOwedBeforeRepay = userDebt
				if userDebt.IsZero() {
					repaid = zero()
					return nil
				}
				toRepay := minAmount(shortScratch, userDebt)
				if toRepay.IsZero() {
					repaid = zero()
					return nil
				}
				app, err := e.Market.Repay(ctx, toRepay)
				if err != nil {
					return newCollaboratorError("redbank", err)
				}
				repaid = app
				return nil
			},
			func(ctx context.Context) error {
				if repaid.IsZero() || debtOwedBeforeRepay.IsZero() {
					coverageRay = zero()
					return nil
				}
				c, err := ratioDown(repaid, debtOwedBeforeRepay)
				if err != nil {
					return err
				}
				coverageRay = minAmount(c, ray)
				return nil
			},
			func(ctx context.Context) error {
				var err error
				shortScratch, err = subChecked(shortScratch, repaid)
				return err
			},
			func(ctx context.Context) error {
				var err error
				if coverageRay.IsZero() {
					longPayout, shortPayout = zero(), zero()
					return nil
				}
				longPayout, err = mulDivDown(position.UnlockedAssets[SlotLong], coverageRay, ray)
				if err != nil {
					return err
				}
				shortPayout, err = mulDivDown(shortScratch, coverageRay, ray)
				return err
			},
			func(ctx context.Context) error {
				if !longPayout.IsZero() {
					if _, err := e.Token.Transfer(ctx, e.Config.LongAsset, liquidator.String(), longPayout); err != nil {
						return newCollaboratorError("token", err)
					}
				}
				if !shortPayout.IsZero() {
					if _, err := e.Token.Transfer(ctx, e.Config.ShortAsset, liquidator.String(), shortPayout); err != nil {
						return newCollaboratorError("token", err)
					}
				}
				return nil
			},
		},
		Reconcile: func(ctx context.Context) error {
			if !repaid.IsZero() {
				if _, err := applyDebtDecrease(e.State, position, repaid, debtBefore); err != nil {
					return err
				}
			}
			debtCleared = position.DebtUnits.IsZero()

			remainingLong, err := subChecked(position.UnlockedAssets[SlotLong], longPayout)
			if err != nil {
				return err
			}
			remainingShort, err := subChecked(shortScratch, shortPayout)
			if err != nil {
				return err
			}
			position.UnlockedAssets[SlotLong] = remainingLong
			position.UnlockedAssets[SlotShort] = remainingShort

			if debtCleared {
				longRefund = new(Amount).Set(remainingLong)
				shortRefund = new(Amount).Set(remainingShort)
				if !longRefund.IsZero() {
					if _, err := e.Token.Transfer(ctx, e.Config.LongAsset, user.String(), longRefund); err != nil {
						return newCollaboratorError("token", err)
					}
				}
				if !shortRefund.IsZero() {
					if _, err := e.Token.Transfer(ctx, e.Config.ShortAsset, user.String(), shortRefund); err != nil {
						return newCollaboratorError("token", err)
					}
				}
				position.UnlockedAssets[SlotLong] = zero()
				position.UnlockedAssets[SlotShort] = zero()
				e.prunePosition(user)
			} else {
				longRefund, shortRefund = zero(), zero()
			}
			return nil
		},
	}

	if err := pipeline.Execute(ctx); err != nil {
		return err
	}
	if err := e.writeSnapshot(ctx, user); err != nil {
		return err
	}

	e.emitter().Emit(PositionLiquidated{User: user, Liquidator: liquidator, DepositReceived: depositNet, RefundIssued: addOrZero(longRefund, shortRefund)})
	e.logger().Info("position liquidated", "user", user.String(), "liquidator", liquidator.String(), "repaid", repaid.String(), "coverage_ray", coverageRay.String())
	return nil
}

// addOrZero sums a and b for the liquidation-refund event field, tolerating
// either being nil on an early pipeline abort path.
func addOrZero(a, b *Amount) *Amount {
	if a == nil {
		a = zero()
	}
	if b == nil {
		b = zero()
	}
	sum, err := addChecked(a, b)
	if err != nil {
		return zero()
	}
	return sum
}

// UpdateConfig applies patch to the vault's config; governance-only
// (spec.md §4.4 update_config).
func (e *Engine) UpdateConfig(caller crypto.Address, patch ConfigPatch) error {
	if !e.Config.IsGovernance(caller) {
		return ErrUnauthorized
	}
	merged, err := e.Config.ApplyPatch(patch)
	if err != nil {
		return err
	}
	e.Config = merged
	e.emitter().Emit(ConfigUpdated{Governance: caller})
	return nil
}

// AddKeeper grants addr keeper access (harvest-only); governance gated.
func (e *Engine) AddKeeper(caller, addr crypto.Address) error {
	if !e.Config.IsGovernance(caller) {
		return ErrUnauthorized
	}
	e.Config.AddKeeper(addr)
	return nil
}

// RemoveKeeper revokes addr's keeper access; governance gated.
func (e *Engine) RemoveKeeper(caller, addr crypto.Address) error {
	if !e.Config.IsGovernance(caller) {
		return ErrUnauthorized
	}
	e.Config.RemoveKeeper(addr)
	return nil
}

func translateErr(origin string, err error) error {
	if err == nil {
		return nil
	}
	return newCollaboratorError(origin, err)
}
