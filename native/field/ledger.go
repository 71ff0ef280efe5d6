package field

// bootstrapMultiplier is the scale-free unit system's seed ratio (spec.md
// §4.1): the first depositor into an empty pool receives
// bootstrapMultiplier units per unit of value, so later rounding in favor
// of the pool never starves the pool down to zero units while value
// remains outstanding.
var bootstrapMultiplier = fromUint64(1_000_000)

// mintBondUnits computes how many bond units `valueAdded` (measured in the
// bonded asset's own denomination) is worth against the pool's existing
// valueBefore/unitsBefore ratio, and returns the minted unit count. Passing
// unitsBefore == 0 triggers the bootstrap multiplier rather than a 0/0
// division.
func mintBondUnits(valueAdded, valueBefore, unitsBefore *Amount) (*Amount, error) {
	if valueAdded == nil || valueAdded.IsZero() {
		return zero(), nil
	}
	if unitsBefore == nil || unitsBefore.IsZero() {
		minted, err := mulDivDown(valueAdded, bootstrapMultiplier, fromUint64(1))
		if err != nil {
			return nil, err
		}
		return minted, nil
	}
	if valueBefore == nil || valueBefore.IsZero() {
		// Units outstanding against zero value cannot happen under I3; a
		// caller hitting this has a ledger inconsistency, not a normal
		// empty-pool bootstrap.
		return nil, ErrArithmeticOverflow
	}
	return mulDivDown(valueAdded, unitsBefore, valueBefore)
}

// burnBondUnits is mintBondUnits' inverse: given a unit count to redeem
// against the pool's current value/units ratio, it returns the value
// released. Rounds down so the pool never pays out more value than its
// units entitle, leaving any remainder as dust credited to the remaining
// unit holders.
func burnBondUnits(unitsBurned, valueBefore, unitsBefore *Amount) (*Amount, error) {
	if unitsBurned == nil || unitsBurned.IsZero() {
		return zero(), nil
	}
	if unitsBefore == nil || unitsBefore.IsZero() {
		return nil, ErrArithmeticOverflow
	}
	return mulDivDown(unitsBurned, valueBefore, unitsBefore)
}

// mintDebtUnits and burnDebtUnits mirror the bond-side functions for the
// borrowed-asset ledger. The two ledgers are kept as separate functions
// rather than a single generic helper because spec.md treats bond
// dilution and debt dilution as independently governed quantities even
// though the arithmetic is identical.
func mintDebtUnits(amountBorrowed, debtBefore, unitsBefore *Amount) (*Amount, error) {
	return mintBondUnits(amountBorrowed, debtBefore, unitsBefore)
}

func burnDebtUnits(unitsRepaid, debtBefore, unitsBefore *Amount) (*Amount, error) {
	return burnBondUnits(unitsRepaid, debtBefore, unitsBefore)
}

// applyBondIncrease mutates state and position to record a deposit of
// valueAdded against the pool's valueBefore, returning the units minted.
func applyBondIncrease(state *State, position *Position, valueAdded, valueBefore *Amount) (*Amount, error) {
	minted, err := mintBondUnits(valueAdded, valueBefore, state.TotalBondUnits)
	if err != nil {
		return nil, err
	}
	newTotal, err := addChecked(state.TotalBondUnits, minted)
	if err != nil {
		return nil, err
	}
	newPosition, err := addChecked(position.BondUnits, minted)
	if err != nil {
		return nil, err
	}
	state.TotalBondUnits = newTotal
	position.BondUnits = newPosition
	return minted, nil
}

// applyBondDecrease mutates state and position to burn unitsToBurn from
// position's bond units, returning the value released.
func applyBondDecrease(state *State, position *Position, unitsToBurn, valueBefore *Amount) (*Amount, error) {
	if unitsToBurn.Cmp(position.BondUnits) > 0 {
		return nil, ErrInsufficientFunds
	}
	released, err := burnBondUnits(unitsToBurn, valueBefore, state.TotalBondUnits)
	if err != nil {
		return nil, err
	}
	newTotal, err := subChecked(state.TotalBondUnits, unitsToBurn)
	if err != nil {
		return nil, err
	}
	newPosition, err := subChecked(position.BondUnits, unitsToBurn)
	if err != nil {
		return nil, err
	}
	state.TotalBondUnits = newTotal
	position.BondUnits = newPosition
	return released, nil
}

// applyDebtIncrease mutates state and position to record a new borrow of
// amountBorrowed against the pool's debtBefore, returning the units minted.
func applyDebtIncrease(state *State, position *Position, amountBorrowed, debtBefore *Amount) (*Amount, error) {
	minted, err := mintDebtUnits(amountBorrowed, debtBefore, state.TotalDebtUnits)
	if err != nil {
		return nil, err
	}
	newTotal, err := addChecked(state.TotalDebtUnits, minted)
	if err != nil {
		return nil, err
	}
	newPosition, err := addChecked(position.DebtUnits, minted)
	if err != nil {
		return nil, err
	}
	state.TotalDebtUnits = newTotal
	position.DebtUnits = newPosition
	return minted, nil
}

// applyDebtDecrease mutates state and position to burn the debt units that
// repayAmount is worth against the pre-repayment total debt debtBefore,
// returning the number of units burned (capped at the position's own debt
// units). Rounds down so the position never retires more debt units than
// the repayment actually covers (favoring the red bank, not the borrower).
func applyDebtDecrease(state *State, position *Position, repayAmount, debtBefore *Amount) (*Amount, error) {
	if state.TotalDebtUnits == nil || state.TotalDebtUnits.IsZero() {
		return nil, ErrArithmeticOverflow
	}
	unitsToBurn, err := mulDivDown(repayAmount, state.TotalDebtUnits, debtBefore)
	if err != nil {
		return nil, err
	}
	unitsToBurn = minAmount(unitsToBurn, position.DebtUnits)
	newTotal, err := subChecked(state.TotalDebtUnits, unitsToBurn)
	if err != nil {
		return nil, err
	}
	newPosition, err := subChecked(position.DebtUnits, unitsToBurn)
	if err != nil {
		return nil, err
	}
	state.TotalDebtUnits = newTotal
	position.DebtUnits = newPosition
	return unitsToBurn, nil
}

// bondValueOf returns the value a position's bond units represent against
// the pool's current valueBefore/unitsBefore ratio, used by the valuator
// for health checks without mutating the ledger.
func bondValueOf(position *Position, valueBefore, unitsBefore *Amount) (*Amount, error) {
	if position.BondUnits.IsZero() {
		return zero(), nil
	}
	if unitsBefore == nil || unitsBefore.IsZero() {
		return zero(), nil
	}
	return mulDivDown(position.BondUnits, valueBefore, unitsBefore)
}

// debtValueOf returns the borrowed-asset amount a position's debt units
// represent against the red bank's current debtBefore/unitsBefore ratio.
func debtValueOf(position *Position, debtBefore, unitsBefore *Amount) (*Amount, error) {
	if position.DebtUnits.IsZero() {
		return zero(), nil
	}
	if unitsBefore == nil || unitsBefore.IsZero() {
		return zero(), nil
	}
	return mulDivUp(position.DebtUnits, debtBefore, unitsBefore)
}
