package field

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMulDivDownFloors(t *testing.T) {
	a := fromUint64(10)
	b := fromUint64(3)
	c := fromUint64(4)
	got, err := mulDivDown(a, b, c)
	require.NoError(t, err)
	require.Equal(t, fromUint64(7), got) // floor(30/4) = 7
}

func TestMulDivUpCeils(t *testing.T) {
	a := fromUint64(10)
	b := fromUint64(3)
	c := fromUint64(4)
	got, err := mulDivUp(a, b, c)
	require.NoError(t, err)
	require.Equal(t, fromUint64(8), got) // ceil(30/4) = 8
}

func TestMulDivZeroDenominator(t *testing.T) {
	_, err := mulDivDown(fromUint64(1), fromUint64(1), zero())
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestSubCheckedUnderflow(t *testing.T) {
	_, err := subChecked(fromUint64(1), fromUint64(2))
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestMinAmount(t *testing.T) {
	require.Equal(t, fromUint64(3), minAmount(fromUint64(3), fromUint64(5)))
	require.Equal(t, fromUint64(3), minAmount(fromUint64(5), fromUint64(3)))
}

func TestRatioDown(t *testing.T) {
	got, err := ratioDown(fromUint64(1), fromUint64(4))
	require.NoError(t, err)
	require.Equal(t, fromUint64(250_000_000_000_000_000), got) // 0.25 at 18dp
}
