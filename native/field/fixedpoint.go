package field

import (
	"math/big"

	"github.com/holiman/uint256"
)

// ray is the 18-fractional-digit fixed-point scale used throughout the
// vault's ratio math (unit dilution, tax, LTV). It mirrors the same 1e18
// "ray" precision native/lending uses for its supply/borrow indexes.
var ray = uint256.NewInt(1_000_000_000_000_000_000)

// Amount is the vault's native numeric type. Every quantity that crosses a
// collaborator boundary (LP shares, debt, token balances) is carried as a
// 256-bit unsigned integer so that intermediate products of two on-chain
// quantities — as spec.md §4.3 requires — can never silently wrap the way a
// 128-bit accumulator would.
type Amount = uint256.Int

// zero returns a fresh zero-valued Amount.
func zero() *Amount { return uint256.NewInt(0) }

// fromUint64 builds an Amount from a plain uint64 literal, used for
// bootstrap multipliers and basis-point denominators.
func fromUint64(v uint64) *Amount { return uint256.NewInt(v) }

// mulDivDown computes floor(a*b/c) using a big.Int intermediate so the
// product can never overflow regardless of how large a and b are, then
// verifies the final quotient still fits in 256 bits before handing control
// back to uint256 arithmetic. c = 0 returns ArithmeticOverflow rather than
// panicking the way a native division would.
func mulDivDown(a, b, c *Amount) (*Amount, error) {
	if c == nil || c.IsZero() {
		return nil, ErrArithmeticOverflow
	}
	if a == nil || a.IsZero() || b == nil || b.IsZero() {
		return zero(), nil
	}
	bigA := a.ToBig()
	bigB := b.ToBig()
	bigC := c.ToBig()
	product := new(big.Int).Mul(bigA, bigB)
	quotient := new(big.Int).Quo(product, bigC)
	return bigToAmount(quotient)
}

// mulDivUp is mulDivDown's ceiling counterpart, used where an amount owed
// must not be understated: a position's debt value (ledger.go's
// debtValueOf) and the transfer tax (tax.go's deductTax).
func mulDivUp(a, b, c *Amount) (*Amount, error) {
	if c == nil || c.IsZero() {
		return nil, ErrArithmeticOverflow
	}
	if a == nil || a.IsZero() || b == nil || b.IsZero() {
		return zero(), nil
	}
	bigA := a.ToBig()
	bigB := b.ToBig()
	bigC := c.ToBig()
	product := new(big.Int).Mul(bigA, bigB)
	quotient, rem := new(big.Int).QuoRem(product, bigC, new(big.Int))
	if rem.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return bigToAmount(quotient)
}

func bigToAmount(v *big.Int) (*Amount, error) {
	if v.Sign() < 0 {
		return nil, ErrArithmeticOverflow
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

func addChecked(a, b *Amount) (*Amount, error) {
	out, overflow := new(Amount).AddOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

func subChecked(a, b *Amount) (*Amount, error) {
	if a.Cmp(b) < 0 {
		return nil, ErrArithmeticOverflow
	}
	return new(Amount).Sub(a, b), nil
}

// minAmount returns the smaller of two amounts without mutating either input.
func minAmount(a, b *Amount) *Amount {
	if a.Cmp(b) <= 0 {
		return new(Amount).Set(a)
	}
	return new(Amount).Set(b)
}

// ratioDown computes floor(numerator * ray / denominator), the canonical
// 18-decimal fixed-point ratio used for LTV and price quotes.
func ratioDown(numerator, denominator *Amount) (*Amount, error) {
	return mulDivDown(numerator, ray, denominator)
}
