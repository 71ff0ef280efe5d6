package amm

import (
	"context"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

// Mock is an in-memory constant-product pair used by the vault's own test
// suite and by a development deployment of services/fieldd in place of a
// real chain's pair contract. It charges a fixed swap fee and enforces the
// constant-product invariant x*y=k on every swap.
type Mock struct {
	mu sync.Mutex

	reserves    Reserves
	totalShares *Amount

	// FeeRateRay is the swap fee, 18-decimal fixed point (e.g.
	// 0.003e18 == 0.3%), deducted from amountIn before the constant-product
	// formula runs.
	FeeRateRay *Amount
}

// NewMock constructs a Mock seeded with the given reserves and share
// supply. Passing zero reserves is valid; the first ProvideLiquidity call
// then seeds the pool at whatever ratio the caller supplies.
func NewMock(longReserve, shortReserve, totalShares *Amount, feeRateRay *Amount) *Mock {
	return &Mock{
		reserves:    Reserves{Long: new(Amount).Set(longReserve), Short: new(Amount).Set(shortReserve)},
		totalShares: new(Amount).Set(totalShares),
		FeeRateRay:  new(Amount).Set(feeRateRay),
	}
}

func (m *Mock) Reserves(ctx context.Context) (Reserves, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Reserves{
		Long:  new(Amount).Set(m.reserves.Long),
		Short: new(Amount).Set(m.reserves.Short),
	}, nil
}

func (m *Mock) TotalShares(ctx context.Context) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(Amount).Set(m.totalShares), nil
}

func (m *Mock) ProvideLiquidity(ctx context.Context, longAmount, shortAmount *Amount) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reserves.Long.IsZero() && m.reserves.Short.IsZero() {
		shares := new(big.Int).Sqrt(new(big.Int).Mul(longAmount.ToBig(), shortAmount.ToBig()))
		minted, overflow := uint256.FromBig(shares)
		if overflow {
			return nil, ErrEmptyPool
		}
		m.reserves.Long = new(Amount).Set(longAmount)
		m.reserves.Short = new(Amount).Set(shortAmount)
		m.totalShares = new(Amount).Set(minted)
		return new(Amount).Set(minted), nil
	}

	// Reject deposits whose ratio diverges from the pool's current
	// reserves by more than 0.5%, the same slippage guard a real
	// constant-product router enforces client-side.
	lhs := new(big.Int).Mul(longAmount.ToBig(), m.reserves.Short.ToBig())
	rhs := new(big.Int).Mul(shortAmount.ToBig(), m.reserves.Long.ToBig())
	diff := new(big.Int).Sub(lhs, rhs)
	diff.Abs(diff)
	tolerance := new(big.Int).Div(rhs, big.NewInt(200))
	if diff.Cmp(tolerance) > 0 {
		return nil, ErrSlippage
	}

	sharesNum := new(big.Int).Mul(longAmount.ToBig(), m.totalShares.ToBig())
	shares := new(big.Int).Quo(sharesNum, m.reserves.Long.ToBig())
	minted, overflow := uint256.FromBig(shares)
	if overflow {
		return nil, ErrEmptyPool
	}

	m.reserves.Long.Add(m.reserves.Long, longAmount)
	m.reserves.Short.Add(m.reserves.Short, shortAmount)
	m.totalShares.Add(m.totalShares, minted)
	return new(Amount).Set(minted), nil
}

func (m *Mock) WithdrawLiquidity(ctx context.Context, shares *Amount) (*Amount, *Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.totalShares.IsZero() || shares.Cmp(m.totalShares) > 0 {
		return nil, nil, ErrInsufficientShares
	}

	longOut := new(big.Int).Quo(new(big.Int).Mul(shares.ToBig(), m.reserves.Long.ToBig()), m.totalShares.ToBig())
	shortOut := new(big.Int).Quo(new(big.Int).Mul(shares.ToBig(), m.reserves.Short.ToBig()), m.totalShares.ToBig())

	longAmount, overflow1 := uint256.FromBig(longOut)
	shortAmount, overflow2 := uint256.FromBig(shortOut)
	if overflow1 || overflow2 {
		return nil, nil, ErrEmptyPool
	}

	m.reserves.Long.Sub(m.reserves.Long, longAmount)
	m.reserves.Short.Sub(m.reserves.Short, shortAmount)
	m.totalShares.Sub(m.totalShares, shares)
	return longAmount, shortAmount, nil
}

func (m *Mock) Swap(ctx context.Context, longForShort bool, exactAmountIn *Amount) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scale := big.NewInt(1_000_000_000_000_000_000)
	feeComplement := new(big.Int).Sub(scale, m.FeeRateRay.ToBig())
	amountInAfterFee := new(big.Int).Quo(new(big.Int).Mul(exactAmountIn.ToBig(), feeComplement), scale)

	var reserveIn, reserveOut *Amount
	if longForShort {
		reserveIn, reserveOut = m.reserves.Long, m.reserves.Short
	} else {
		reserveIn, reserveOut = m.reserves.Short, m.reserves.Long
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrEmptyPool
	}

	numerator := new(big.Int).Mul(amountInAfterFee, reserveOut.ToBig())
	denominator := new(big.Int).Add(reserveIn.ToBig(), amountInAfterFee)
	out := new(big.Int).Quo(numerator, denominator)

	amountOut, overflow := uint256.FromBig(out)
	if overflow {
		return nil, ErrEmptyPool
	}

	if longForShort {
		m.reserves.Long.Add(m.reserves.Long, exactAmountIn)
		m.reserves.Short.Sub(m.reserves.Short, amountOut)
	} else {
		m.reserves.Short.Add(m.reserves.Short, exactAmountIn)
		m.reserves.Long.Sub(m.reserves.Long, amountOut)
	}
	return amountOut, nil
}

var _ Pair = (*Mock)(nil)
