package field

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyBondIncreaseBootstraps(t *testing.T) {
	state := newState()
	position := emptyPosition()

	minted, err := applyBondIncrease(state, position, fromUint64(100), zero())
	require.NoError(t, err)
	require.Equal(t, fromUint64(100_000_000), minted) // 100 * bootstrapMultiplier
	require.Equal(t, minted, state.TotalBondUnits)
	require.Equal(t, minted, position.BondUnits)
}

func TestApplyBondIncreaseDilutesProportionally(t *testing.T) {
	state := newState()
	first := emptyPosition()
	_, err := applyBondIncrease(state, first, fromUint64(100), zero())
	require.NoError(t, err)

	second := emptyPosition()
	// Second depositor adds 100 more value against a pool now worth 100.
	minted, err := applyBondIncrease(state, second, fromUint64(100), fromUint64(100))
	require.NoError(t, err)
	require.Equal(t, first.BondUnits, minted) // matches the bootstrap depositor's units
}

func TestApplyBondDecreaseRejectsOverBurn(t *testing.T) {
	state := newState()
	position := emptyPosition()
	_, err := applyBondIncrease(state, position, fromUint64(100), zero())
	require.NoError(t, err)

	tooMany := new(Amount).Add(position.BondUnits, fromUint64(1))
	_, err = applyBondDecrease(state, position, tooMany, fromUint64(100))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestApplyBondIncreaseThenFullDecreaseEmptiesPosition(t *testing.T) {
	state := newState()
	position := emptyPosition()
	minted, err := applyBondIncrease(state, position, fromUint64(100), zero())
	require.NoError(t, err)

	released, err := applyBondDecrease(state, position, minted, fromUint64(100))
	require.NoError(t, err)
	require.Equal(t, fromUint64(100), released)
	require.True(t, position.BondUnits.IsZero())
	require.True(t, state.TotalBondUnits.IsZero())
}

func TestApplyDebtIncreaseAndDecreaseRoundTrip(t *testing.T) {
	state := newState()
	position := emptyPosition()

	minted, err := applyDebtIncrease(state, position, fromUint64(50), zero())
	require.NoError(t, err)
	require.Equal(t, fromUint64(50_000_000), minted)

	burned, err := applyDebtDecrease(state, position, fromUint64(50), fromUint64(50))
	require.NoError(t, err)
	require.Equal(t, minted, burned)
	require.True(t, position.DebtUnits.IsZero())
	require.True(t, state.TotalDebtUnits.IsZero())
}

func TestBondValueOfEmptyPosition(t *testing.T) {
	position := emptyPosition()
	value, err := bondValueOf(position, fromUint64(100), fromUint64(100))
	require.NoError(t, err)
	require.True(t, value.IsZero())
}
