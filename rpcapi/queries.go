package rpcapi

import (
	"context"
	"encoding/json"
)

// registerQueries wires the five read-only vault queries. None require a
// bearer token: spec.md treats queries as public, matching the deleted
// rpc/lending_handlers.go's own split between its mutating, auth-gated
// methods and its freely callable query methods.
func (s *Server) registerQueries() {
	if s.methods == nil {
		s.methods = make(map[string]methodSpec)
	}
	s.methods["field_getConfig"] = methodSpec{handler: s.handleGetConfig}
	s.methods["field_getState"] = methodSpec{handler: s.handleGetState}
	s.methods["field_getPosition"] = methodSpec{handler: s.handleGetPosition}
	s.methods["field_getHealth"] = methodSpec{handler: s.handleGetHealth}
	s.methods["field_getSnapshot"] = methodSpec{handler: s.handleGetSnapshot}
}

func (s *Server) handleGetConfig(ctx context.Context, params []json.RawMessage) (any, error) {
	return s.Engine.GetConfig(), nil
}

func (s *Server) handleGetState(ctx context.Context, params []json.RawMessage) (any, error) {
	return s.Engine.GetState(), nil
}

// params: [user]
func (s *Server) handleGetPosition(ctx context.Context, params []json.RawMessage) (any, error) {
	user, err := decodeAddress(params, 0)
	if err != nil {
		return nil, err
	}
	return s.Engine.GetPosition(user)
}

// params: [user?] — omitted or null requests the vault-wide aggregate
// health, matching spec.md §6's `health(user?)` contract.
func (s *Server) handleGetHealth(ctx context.Context, params []json.RawMessage) (any, error) {
	if len(params) == 0 || isNullParam(params[0]) {
		return s.Engine.GetGlobalHealth(ctx)
	}
	user, err := decodeAddress(params, 0)
	if err != nil {
		return nil, err
	}
	return s.Engine.GetHealth(ctx, user)
}

// params: [user]
func (s *Server) handleGetSnapshot(ctx context.Context, params []json.RawMessage) (any, error) {
	user, err := decodeAddress(params, 0)
	if err != nil {
		return nil, err
	}
	return s.Engine.GetSnapshot(ctx, user)
}
