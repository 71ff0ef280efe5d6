package rpcapi

import (
	"context"
	"encoding/json"

	"github.com/holiman/uint256"

	"github.com/nhbchain/field/crypto"
	"github.com/nhbchain/field/native/field"
)

func uint256FromDecimal(s string) (*uint256.Int, error) {
	return uint256.FromDecimal(s)
}

// registerHandlers wires the six mutating vault operations plus
// update_config/add_keeper/remove_keeper, all of which require a verified
// caller identity.
func (s *Server) registerHandlers() {
	if s.methods == nil {
		s.methods = make(map[string]methodSpec)
	}

	s.methods["field_increasePosition"] = methodSpec{requiresAuth: true, handler: s.handleIncreasePosition}
	s.methods["field_reducePosition"] = methodSpec{requiresAuth: true, handler: s.handleReducePosition}
	s.methods["field_payDebt"] = methodSpec{requiresAuth: true, handler: s.handlePayDebt}
	s.methods["field_harvest"] = methodSpec{requiresAuth: true, handler: s.handleHarvest}
	s.methods["field_closePosition"] = methodSpec{requiresAuth: true, handler: s.handleClosePosition}
	s.methods["field_liquidate"] = methodSpec{requiresAuth: true, handler: s.handleLiquidate}
	s.methods["field_updateConfig"] = methodSpec{requiresAuth: true, handler: s.handleUpdateConfig}
	s.methods["field_addKeeper"] = methodSpec{requiresAuth: true, handler: s.handleAddKeeper}
	s.methods["field_removeKeeper"] = methodSpec{requiresAuth: true, handler: s.handleRemoveKeeper}
}

// params: [longDeposit, shortDeposit] — caller is resolved from the bearer
// token, not a params entry. The engine sizes any auto-borrow itself; the
// caller never specifies one directly.
func (s *Server) handleIncreasePosition(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	longDeposit, err := decodeAmount(params, 0)
	if err != nil {
		return nil, err
	}
	shortDeposit, err := decodeAmount(params, 1)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.IncreasePosition(ctx, caller, longDeposit, shortDeposit); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// params: [bondUnitsToBurn, remove, repay] — bondUnitsToBurn may be JSON
// null, the wire form of the ⊥ "burn everything" sentinel.
func (s *Server) handleReducePosition(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	raw, err := paramAt(params, 0)
	if err != nil {
		return nil, err
	}
	var bondUnits *field.Amount
	if !isNullParam(raw) {
		bondUnits, err = decodeAmount(params, 0)
		if err != nil {
			return nil, err
		}
	}
	remove, err := decodeBool(params, 1)
	if err != nil {
		return nil, err
	}
	repay, err := decodeBool(params, 2)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.ReducePosition(ctx, caller, bondUnits, remove, repay); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// params: [repayAmount]
func (s *Server) handlePayDebt(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	repayAmount, err := decodeAmount(params, 0)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.PayDebt(ctx, caller, repayAmount); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// params: none — caller must be a configured keeper.
func (s *Server) handleHarvest(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	if err := s.Engine.Harvest(ctx, caller); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// params: [user]
func (s *Server) handleClosePosition(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	user, err := decodeAddress(params, 0)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.ClosePosition(ctx, caller, user); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// params: [user, depositAmount]
func (s *Server) handleLiquidate(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	user, err := decodeAddress(params, 0)
	if err != nil {
		return nil, err
	}
	depositAmount, err := decodeAmount(params, 1)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.Liquidate(ctx, caller, user, depositAmount); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// configPatchWire is the JSON wire shape for update_config: every field is
// a string (or nested string fields) so amounts and addresses travel as
// plain decimal/bech32 text rather than requiring field.Config's internal
// types to implement JSON (un)marshaling themselves. A nil/absent field
// leaves that part of the config unchanged, matching field.ConfigPatch's
// own merge semantics.
type configPatchWire struct {
	MaxLTVRay  *string `json:"max_ltv_ray,omitempty"`
	FeeRateRay *string `json:"fee_rate_ray,omitempty"`
	Tax        *struct {
		RateRay string `json:"rate_ray"`
		CapWei  string `json:"cap_wei"`
	} `json:"tax,omitempty"`
	Treasury *string `json:"treasury,omitempty"`
	Pauses   *field.ActionPauses `json:"pauses,omitempty"`
}

func (w configPatchWire) toPatch() (field.ConfigPatch, error) {
	var patch field.ConfigPatch
	if w.MaxLTVRay != nil {
		v, err := uint256FromDecimal(*w.MaxLTVRay)
		if err != nil {
			return patch, err
		}
		patch.MaxLTVRay = v
	}
	if w.FeeRateRay != nil {
		v, err := uint256FromDecimal(*w.FeeRateRay)
		if err != nil {
			return patch, err
		}
		patch.FeeRateRay = v
	}
	if w.Tax != nil {
		rate, err := uint256FromDecimal(w.Tax.RateRay)
		if err != nil {
			return patch, err
		}
		cap, err := uint256FromDecimal(w.Tax.CapWei)
		if err != nil {
			return patch, err
		}
		patch.Tax = &field.TaxParams{RateRay: rate, CapWei: cap}
	}
	if w.Treasury != nil {
		addr, err := crypto.DecodeAddress(*w.Treasury)
		if err != nil {
			return patch, err
		}
		patch.Treasury = &addr
	}
	if w.Pauses != nil {
		patch.Pauses = w.Pauses
	}
	return patch, nil
}

// params: [patch] — a configPatchWire object.
func (s *Server) handleUpdateConfig(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	raw, err := paramAt(params, 0)
	if err != nil {
		return nil, err
	}
	var wire configPatchWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	patch, err := wire.toPatch()
	if err != nil {
		return nil, err
	}
	if err := s.Engine.UpdateConfig(caller, patch); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// params: [keeperAddress]
func (s *Server) handleAddKeeper(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	keeper, err := decodeAddress(params, 0)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.AddKeeper(caller, keeper); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

// params: [keeperAddress]
func (s *Server) handleRemoveKeeper(ctx context.Context, params []json.RawMessage) (any, error) {
	caller, _ := callerFromContext(ctx)
	keeper, err := decodeAddress(params, 0)
	if err != nil {
		return nil, err
	}
	if err := s.Engine.RemoveKeeper(caller, keeper); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}
