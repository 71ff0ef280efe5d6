package field

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhbchain/field/crypto"
	"github.com/nhbchain/field/external/amm"
	"github.com/nhbchain/field/external/redbank"
	"github.com/nhbchain/field/external/staking"
	"github.com/nhbchain/field/external/taxoracle"
	"github.com/nhbchain/field/external/token"
)

type testHarness struct {
	engine  *Engine
	pair    *amm.Mock
	market  *redbank.Mock
	bond    *staking.Mock
	ledger  *token.Mock
	treasury crypto.Address
	gov      crypto.Address
	user     crypto.Address
	keeper   crypto.Address
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	treasury := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(1))
	gov := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(2))
	user := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(3))
	keeper := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(4))

	cfg := Config{
		LongAsset:  "NHB",
		ShortAsset: "ZNHB",
		Treasury:   treasury,
		Governance: gov,
		Keepers:    []crypto.Address{keeper},
		MaxLTVRay:  fromUint64(700_000_000_000_000_000),
		FeeRateRay: fromUint64(100_000_000_000_000_000),
		Tax: TaxParams{
			RateRay: zero(),
			CapWei:  CapUnbounded(),
		},
		Staking: StakingConfig{RewardAsset: "REWARD"},
		Swap:    SwapConfig{ShareToken: "FIELD-LP"},
	}

	taxOracle := taxoracle.NewStatic(taxoracle.Params{RateRay: cfg.Tax.RateRay, CapWei: cfg.Tax.CapWei}, nil)
	ledger := token.NewMock("vault", func(denom string, gross *Amount) (*Amount, error) {
		if denom != cfg.ShortAsset {
			return zero(), nil
		}
		params, err := taxOracle.TaxParams(context.Background(), cfg.ShortAsset)
		if err != nil {
			return nil, err
		}
		_, tax, err := deductTax(gross, TaxParams{RateRay: params.RateRay, CapWei: params.CapWei})
		return tax, err
	})
	ledger.Credit("NHB", user.String(), fromUint64(1_000_000))
	ledger.Credit("ZNHB", user.String(), fromUint64(1_000_000))
	ledger.Credit("ZNHB", "liquidator", fromUint64(1_000_000))

	pair := amm.NewMock(zero(), zero(), zero(), fromUint64(3_000_000_000_000_000))
	market := redbank.NewMock()
	bond := staking.NewMock(fromUint64(0))

	engine, err := NewEngine(cfg, pair, market, bond, ledger, taxOracle, nil, nil)
	require.NoError(t, err)

	return &testHarness{
		engine:   engine,
		pair:     pair,
		market:   market,
		bond:     bond,
		ledger:   ledger,
		treasury: treasury,
		gov:      gov,
		user:     user,
		keeper:   keeper,
	}
}

func bytes20(b byte) []byte {
	out := make([]byte, 20)
	out[19] = b
	return out
}

func TestIncreasePositionBootstrapsBondAndDebtUnits(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// Seed the pool at a 2:1 long:short ratio via outside liquidity so
	// increase_position's step 3 has a nonzero ust_needed to auto-borrow
	// against when the user deposits long only.
	_, err := h.pair.ProvideLiquidity(ctx, fromUint64(2), fromUint64(1))
	require.NoError(t, err)

	err = h.engine.IncreasePosition(ctx, h.user, fromUint64(1000), zero())
	require.NoError(t, err)

	position, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.False(t, position.BondUnits.IsZero())
	require.False(t, position.DebtUnits.IsZero(), "a bare long deposit against a nonempty pool must auto-borrow the paired short leg")

	state := h.engine.GetState()
	require.Equal(t, position.BondUnits, state.TotalBondUnits)
	require.Equal(t, position.DebtUnits, state.TotalDebtUnits)
}

func TestIncreasePositionRejectsAllZeroDeposit(t *testing.T) {
	h := newTestHarness(t)
	err := h.engine.IncreasePosition(context.Background(), h.user, zero(), zero())
	require.ErrorIs(t, err, ErrNoDeposit)
}

func TestReducePositionReturnsUnderlyingAssets(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(1000), fromUint64(1000)))
	position, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)

	before, err := h.ledger.BalanceOf(ctx, "NHB", h.user.String())
	require.NoError(t, err)

	require.NoError(t, h.engine.ReducePosition(ctx, h.user, position.BondUnits, true, true))

	after, err := h.ledger.BalanceOf(ctx, "NHB", h.user.String())
	require.NoError(t, err)
	require.True(t, after.Cmp(before) > 0)

	_, err = h.engine.GetPosition(h.user)
	require.ErrorIs(t, err, ErrPositionNotFound)
}

func TestReducePositionBurnsAllUnitsAndClearsDebtOnNilSentinel(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// The user's own first deposit seeds the pool at 2:1 (no borrow: the
	// pool is still empty at that point); a second long-only deposit then
	// auto-borrows the matching short leg against it (spec.md §8 "open with
	// full borrow"). Because this user owns the entire pool outright, the
	// round-trip law's burn-everything-and-repay call below has no other
	// LP's claim to round against and must leave zero residual debt.
	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(2), fromUint64(1)))
	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(999_998), zero()))

	position, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.False(t, position.DebtUnits.IsZero())

	require.NoError(t, h.engine.ReducePosition(ctx, h.user, nil, true, true))

	_, err = h.engine.GetPosition(h.user)
	require.ErrorIs(t, err, ErrPositionNotFound, "a full burn that clears its own debt leaves no residual position")
}

func TestReducePositionWithoutRemoveReturnsLPSharesNotUnderlying(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(1000), fromUint64(1000)))
	position, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)

	longBefore, err := h.ledger.BalanceOf(ctx, "NHB", h.user.String())
	require.NoError(t, err)
	shareBefore, err := h.ledger.BalanceOf(ctx, h.engine.GetConfig().Swap.ShareToken, h.user.String())
	require.NoError(t, err)

	require.NoError(t, h.engine.ReducePosition(ctx, h.user, position.BondUnits, false, false))

	longAfter, err := h.ledger.BalanceOf(ctx, "NHB", h.user.String())
	require.NoError(t, err)
	require.Equal(t, longBefore, longAfter, "remove=false must not withdraw liquidity to underlying assets")

	shareAfter, err := h.ledger.BalanceOf(ctx, h.engine.GetConfig().Swap.ShareToken, h.user.String())
	require.NoError(t, err)
	require.True(t, shareAfter.Cmp(shareBefore) > 0, "the unstaked LP shares must be sent to the user instead of parked")
}

func TestPayDebtBurnsDebtUnits(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.pair.ProvideLiquidity(ctx, fromUint64(2), fromUint64(1))
	require.NoError(t, err)
	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(1000), zero()))
	position, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.False(t, position.DebtUnits.IsZero())

	// The 2:1 seed pool sizes the auto-borrow at exactly 500 (long 1000 x
	// R_S/R_L = 1000 x 1/2), so repaying 500 of the zero-tax short asset
	// clears it exactly.
	require.NoError(t, h.engine.PayDebt(ctx, h.user, fromUint64(500)))

	position, err = h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.True(t, position.DebtUnits.IsZero())
}

func TestHarvestRequiresKeeper(t *testing.T) {
	h := newTestHarness(t)
	err := h.engine.Harvest(context.Background(), h.user)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHarvestWithNoPendingRewardIsNoop(t *testing.T) {
	h := newTestHarness(t)
	err := h.engine.Harvest(context.Background(), h.keeper)
	require.NoError(t, err)
}

func TestHarvestCompoundsWithoutDilutingExistingUnits(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(10_000), fromUint64(10_000)))
	position, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)
	bondUnitsBefore := new(Amount).Set(position.BondUnits)

	h.bond.RewardPerTick = fromUint64(1000)
	h.bond.Tick()

	require.NoError(t, h.engine.Harvest(ctx, h.keeper))

	position, err = h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.Equal(t, bondUnitsBefore, position.BondUnits, "harvest must not mint new bond units for existing holders")
}

func TestCloseRejectsHealthyPosition(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(10_000), fromUint64(10_000)))

	err := h.engine.ClosePosition(ctx, h.keeper, h.user)
	require.ErrorIs(t, err, ErrNotLiquidatable)
}

func TestUpdateConfigRequiresGovernance(t *testing.T) {
	h := newTestHarness(t)
	err := h.engine.UpdateConfig(h.user, ConfigPatch{})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateConfigMergesPartialPatch(t *testing.T) {
	h := newTestHarness(t)
	newMaxLTV := fromUint64(500_000_000_000_000_000)
	err := h.engine.UpdateConfig(h.gov, ConfigPatch{MaxLTVRay: newMaxLTV})
	require.NoError(t, err)
	require.Equal(t, newMaxLTV, h.engine.GetConfig().MaxLTVRay)
	require.Equal(t, "NHB", h.engine.GetConfig().LongAsset) // untouched fields survive the merge
}

func TestAddAndRemoveKeeper(t *testing.T) {
	h := newTestHarness(t)
	newKeeper := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(9))

	require.NoError(t, h.engine.AddKeeper(h.gov, newKeeper))
	cfg := h.engine.GetConfig()
	require.True(t, cfg.IsKeeper(newKeeper))

	require.NoError(t, h.engine.RemoveKeeper(h.gov, newKeeper))
	cfg = h.engine.GetConfig()
	require.False(t, cfg.IsKeeper(newKeeper))
}

func TestLiquidateRejectsZeroDeposit(t *testing.T) {
	h := newTestHarness(t)
	liquidator := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(5))
	err := h.engine.Liquidate(context.Background(), liquidator, h.user, zero())
	require.ErrorIs(t, err, ErrNothingToDo)
}

func TestHealthIsDenominatedInShortAssetUnits(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// A balanced constant-product claim values at 2 x R_S x L / T
	// (spec.md §4.2's documented shorthand): deposit long==short so the
	// pool seeds symmetrically. With no debt the LTV is zero, not ⊥.
	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(10_000), fromUint64(10_000)))

	health, err := h.engine.GetHealth(ctx, h.user)
	require.NoError(t, err)
	require.Equal(t, fromUint64(20_000), health.BondValue, "a balanced claim on an x*y=k pool values at 2 x short reserve x share")
	require.True(t, health.DebtValue.IsZero())
	require.Equal(t, zero(), health.LTVRay)
}

func TestGetHealthNotFoundForNeverSeenUser(t *testing.T) {
	h := newTestHarness(t)
	stranger := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(42))
	_, err := h.engine.GetHealth(context.Background(), stranger)
	require.ErrorIs(t, err, ErrPositionNotFound)
}

func TestSnapshotIsALaggingMirror(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.pair.ProvideLiquidity(ctx, fromUint64(2), fromUint64(1))
	require.NoError(t, err)
	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(10_000), zero()))

	snapBefore, err := h.engine.GetSnapshot(ctx, h.user)
	require.NoError(t, err)

	live, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.Equal(t, live, snapBefore.Position)

	// A price move (simulating another participant's trade) changes live
	// health without the user's own handler running; the stored snapshot
	// must not follow it.
	h.pair.Swap(ctx, true, fromUint64(5_000))

	liveHealthAfter, err := h.engine.GetHealth(ctx, h.user)
	require.NoError(t, err)
	require.NotEqual(t, snapBefore.Health.BondValue, liveHealthAfter.BondValue, "live health should have drifted")

	snapAfter, err := h.engine.GetSnapshot(ctx, h.user)
	require.NoError(t, err)
	require.Equal(t, snapBefore, snapAfter, "snapshot must stay frozen until a handler touches this user again")

	// Harvest doesn't touch this user's own position either.
	h.bond.RewardPerTick = fromUint64(100)
	h.bond.Tick()
	require.NoError(t, h.engine.Harvest(ctx, h.keeper))

	snapAfterHarvest, err := h.engine.GetSnapshot(ctx, h.user)
	require.NoError(t, err)
	require.Equal(t, snapBefore, snapAfterHarvest, "harvest must not refresh another user's snapshot")

	// pay_debt does touch this user, so the snapshot now catches up.
	require.NoError(t, h.engine.PayDebt(ctx, h.user, fromUint64(1_000)))
	snapFinal, err := h.engine.GetSnapshot(ctx, h.user)
	require.NoError(t, err)
	liveFinal, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.Equal(t, liveFinal, snapFinal.Position)
}

func TestLiquidatePartialPaysOnlyCoverageFraction(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	liquidator1 := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(11))
	liquidator2 := crypto.MustNewAddress(crypto.NHBPrefix, bytes20(12))
	h.ledger.Credit("ZNHB", liquidator1.String(), fromUint64(1_000_000))
	h.ledger.Credit("ZNHB", liquidator2.String(), fromUint64(1_000_000))

	// A 2:1 long:short outside pool sizes increase_position's auto-borrow at
	// exactly 500,000 (long 1,000,000 x R_S/R_L = 1,000,000 x 1/2), the same
	// "open with full borrow" figures spec.md §8's walkthrough uses.
	_, err := h.pair.ProvideLiquidity(ctx, fromUint64(2), fromUint64(1))
	require.NoError(t, err)
	require.NoError(t, h.engine.IncreasePosition(ctx, h.user, fromUint64(1_000_000), zero()))

	// Simulate an external actor crashing the long asset's price so the
	// user's position becomes liquidatable, the same stress scenario
	// spec.md §8's concrete end-to-end walkthrough drives.
	_, err = h.pair.Swap(ctx, true, fromUint64(2_000_000))
	require.NoError(t, err)

	require.NoError(t, h.engine.ClosePosition(ctx, liquidator1, h.user))

	closed, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.True(t, closed.BondUnits.IsZero())
	require.False(t, closed.DebtUnits.IsZero(), "a price crash this large should leave residual debt after close_position")
	longAvailable := new(Amount).Set(closed.UnlockedAssets[SlotLong])
	require.False(t, longAvailable.IsZero())

	health, err := h.engine.GetHealth(ctx, h.user)
	require.NoError(t, err)
	fullDebt := health.DebtValue

	partial, err := mulDivDown(fullDebt, fromUint64(1), fromUint64(2))
	require.NoError(t, err)
	require.False(t, partial.IsZero())

	before1, err := h.ledger.BalanceOf(ctx, "NHB", liquidator1.String())
	require.NoError(t, err)

	require.NoError(t, h.engine.Liquidate(ctx, liquidator1, h.user, partial))

	afterPartial, err := h.engine.GetPosition(h.user)
	require.NoError(t, err)
	require.False(t, afterPartial.DebtUnits.IsZero(), "a partial repayment must not clear the user's debt")
	require.False(t, afterPartial.UnlockedAssets[SlotLong].IsZero(), "the user's remaining collateral share must stay earmarked, not fully drained by one partial liquidator")

	after1, err := h.ledger.BalanceOf(ctx, "NHB", liquidator1.String())
	require.NoError(t, err)
	paid1 := new(Amount).Sub(after1, before1)
	require.False(t, paid1.IsZero())
	require.True(t, paid1.Cmp(longAvailable) < 0, "a partial liquidator must receive strictly less than the user's entire unlocked long balance")

	remainingHealth, err := h.engine.GetHealth(ctx, h.user)
	require.NoError(t, err)

	before2, err := h.ledger.BalanceOf(ctx, "NHB", liquidator2.String())
	require.NoError(t, err)

	require.NoError(t, h.engine.Liquidate(ctx, liquidator2, h.user, remainingHealth.DebtValue))

	_, err = h.engine.GetPosition(h.user)
	require.ErrorIs(t, err, ErrPositionNotFound, "fully repaying the residual debt must delete the position per invariant I6")

	_, err = h.engine.GetSnapshot(ctx, h.user)
	require.ErrorIs(t, err, ErrPositionNotFound, "a deleted position's snapshot must also disappear")

	after2, err := h.ledger.BalanceOf(ctx, "NHB", liquidator2.String())
	require.NoError(t, err)
	paid2 := new(Amount).Sub(after2, before2)
	require.False(t, paid2.IsZero())

	total := new(Amount).Add(paid1, paid2)
	require.Equal(t, longAvailable, total, "the two liquidators together must receive exactly the long collateral close_position earmarked, no more and no less")
}
