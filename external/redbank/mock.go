package redbank

import (
	"context"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

var rayScale = big.NewInt(1_000_000_000_000_000_000)

// Mock is an in-memory money market that charges compounding interest via a
// monotonically increasing debt index (each AccrueInterest call multiplies
// it), the same scaled-debt bookkeeping
// native/lending's engine used for its borrow side. scaledDebt is the
// vault's principal measured at the index value in effect when it was
// borrowed; CurrentDebt reapplies the current index to report accrued
// interest without a per-block sweep.
type Mock struct {
	mu sync.Mutex

	indexRay   *big.Int
	scaledDebt *big.Int
}

// NewMock constructs a money market starting at index 1.0 (rayScale).
func NewMock() *Mock {
	return &Mock{
		indexRay:   new(big.Int).Set(rayScale),
		scaledDebt: big.NewInt(0),
	}
}

// AccrueInterest advances the debt index by rateRay (an 18-decimal
// fixed-point fraction applied multiplicatively), simulating one period of
// interest. Test code drives this explicitly rather than the mock
// free-running on a clock.
func (m *Mock) AccrueInterest(rateRay *Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	growth := new(big.Int).Add(rayScale, rateRay.ToBig())
	m.indexRay.Mul(m.indexRay, growth)
	m.indexRay.Quo(m.indexRay, rayScale)
}

func (m *Mock) Borrow(ctx context.Context, amount *Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scaled := new(big.Int).Quo(new(big.Int).Mul(amount.ToBig(), rayScale), m.indexRay)
	m.scaledDebt.Add(m.scaledDebt, scaled)
	return nil
}

func (m *Mock) Repay(ctx context.Context, amount *Amount) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	currentDebt := m.currentDebtLocked()
	applied := new(big.Int).Set(amount.ToBig())
	if applied.Cmp(currentDebt) > 0 {
		applied.Set(currentDebt)
	}

	remaining := new(big.Int).Sub(currentDebt, applied)
	m.scaledDebt.Quo(new(big.Int).Mul(remaining, rayScale), m.indexRay)

	out, overflow := uint256.FromBig(applied)
	if overflow {
		return nil, ErrDebtOverflow
	}
	return out, nil
}

func (m *Mock) CurrentDebt(ctx context.Context) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, overflow := uint256.FromBig(m.currentDebtLocked())
	if overflow {
		return nil, ErrDebtOverflow
	}
	return out, nil
}

func (m *Mock) currentDebtLocked() *big.Int {
	return new(big.Int).Quo(new(big.Int).Mul(m.scaledDebt, m.indexRay), rayScale)
}

var _ DebtMarket = (*Mock)(nil)
