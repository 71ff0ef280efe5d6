package field

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pctParams(rateRay uint64, cap *Amount) TaxParams {
	return TaxParams{RateRay: fromUint64(rateRay), CapWei: cap}
}

func TestDeductTaxUncapped(t *testing.T) {
	params := pctParams(10_000_000_000_000_000, CapUnbounded()) // 1%
	net, tax, err := deductTax(fromUint64(1000), params)
	require.NoError(t, err)
	require.Equal(t, fromUint64(10), tax)
	require.Equal(t, fromUint64(990), net)
}

func TestDeductTaxCapped(t *testing.T) {
	params := pctParams(500_000_000_000_000_000, fromUint64(5)) // 50% rate, 5wei cap
	net, tax, err := deductTax(fromUint64(1000), params)
	require.NoError(t, err)
	require.Equal(t, fromUint64(5), tax)
	require.Equal(t, fromUint64(995), net)
}

func TestDeductTaxZeroGross(t *testing.T) {
	params := pctParams(10_000_000_000_000_000, CapUnbounded())
	net, tax, err := deductTax(zero(), params)
	require.NoError(t, err)
	require.True(t, net.IsZero())
	require.True(t, tax.IsZero())
}

func TestAddTaxInvertsDeductTaxUncapped(t *testing.T) {
	params := pctParams(10_000_000_000_000_000, CapUnbounded()) // 1%
	net := fromUint64(990)
	gross, err := addTax(net, params)
	require.NoError(t, err)

	delivered, _, err := deductTax(gross, params)
	require.NoError(t, err)
	require.True(t, delivered.Cmp(net) >= 0, "delivered %s should be >= requested net %s", delivered, net)

	// gross should be the smallest amount achieving that, i.e. one unit
	// less should fall short.
	oneLess := new(Amount).Sub(gross, fromUint64(1))
	deliveredLess, _, err := deductTax(oneLess, params)
	require.NoError(t, err)
	require.True(t, deliveredLess.Cmp(net) < 0)
}

func TestAddTaxWithBindingCap(t *testing.T) {
	params := pctParams(500_000_000_000_000_000, fromUint64(5)) // 50% rate, 5wei cap
	net := fromUint64(995)
	gross, err := addTax(net, params)
	require.NoError(t, err)

	delivered, _, err := deductTax(gross, params)
	require.NoError(t, err)
	require.True(t, delivered.Cmp(net) >= 0)
}

func TestAddTaxZeroNet(t *testing.T) {
	params := pctParams(10_000_000_000_000_000, CapUnbounded())
	gross, err := addTax(zero(), params)
	require.NoError(t, err)
	require.True(t, gross.IsZero())
}
