package token

import (
	"context"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

// TaxFunc computes the tax owed on a gross transfer of denom. Callers
// supply the same function the vault's own tax.go uses so the mock ledger
// and the vault's internal accounting never disagree about how much a
// transfer actually delivers. A host chain's transfer tax is a property of
// a single native coin's transfer path, not every denom the vault moves, so
// the func is expected to branch on denom and return a zero tax for
// anything else.
type TaxFunc func(denom string, gross *Amount) (*Amount, error)

// Mock is an in-memory multi-denom, multi-holder ledger that applies a
// caller-supplied tax function to every transfer, mirroring a host chain
// whose native transfer hook deducts tax before the recipient's balance is
// credited.
type Mock struct {
	mu sync.Mutex

	balances map[string]map[string]*big.Int
	tax      TaxFunc

	// VaultAccount is the holder key the vault itself transfers to/from.
	VaultAccount string
}

func NewMock(vaultAccount string, tax TaxFunc) *Mock {
	return &Mock{
		balances:     make(map[string]map[string]*big.Int),
		tax:          tax,
		VaultAccount: vaultAccount,
	}
}

// Credit seeds holder's denom balance, used by test setup to fund accounts
// without going through a taxed transfer.
func (m *Mock) Credit(denom, holder string, amount *Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(denom, holder)
	m.balances[denom][holder].Add(m.balances[denom][holder], amount.ToBig())
}

func (m *Mock) ensure(denom, holder string) {
	if m.balances[denom] == nil {
		m.balances[denom] = make(map[string]*big.Int)
	}
	if m.balances[denom][holder] == nil {
		m.balances[denom][holder] = big.NewInt(0)
	}
}

func (m *Mock) BalanceOf(ctx context.Context, denom, holder string) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(denom, holder)
	out, overflow := uint256.FromBig(m.balances[denom][holder])
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return out, nil
}

func (m *Mock) Transfer(ctx context.Context, denom, recipient string, amount *Amount) (*Amount, error) {
	return m.move(denom, m.VaultAccount, recipient, amount)
}

func (m *Mock) TransferFrom(ctx context.Context, denom, sender string, amount *Amount) (*Amount, error) {
	return m.move(denom, sender, m.VaultAccount, amount)
}

func (m *Mock) move(denom, from, to string, amount *Amount) (*Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensure(denom, from)
	m.ensure(denom, to)

	if m.balances[denom][from].Cmp(amount.ToBig()) < 0 {
		return nil, ErrInsufficientBalance
	}

	taxOwed, err := m.tax(denom, amount)
	if err != nil {
		return nil, err
	}
	received := new(Amount).Sub(amount, taxOwed)

	m.balances[denom][from].Sub(m.balances[denom][from], amount.ToBig())
	m.balances[denom][to].Add(m.balances[denom][to], received.ToBig())
	return new(Amount).Set(received), nil
}

var _ Ledger = (*Mock)(nil)
