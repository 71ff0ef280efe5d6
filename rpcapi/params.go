package rpcapi

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/holiman/uint256"

	"github.com/nhbchain/field/crypto"
)

// ErrMissingParam is returned when a handler expects more positional
// params than the request supplied.
var ErrMissingParam = errors.New("rpcapi: missing parameter")

func paramAt(params []json.RawMessage, index int) (json.RawMessage, error) {
	if index >= len(params) {
		return nil, ErrMissingParam
	}
	return params[index], nil
}

// isNullParam reports whether a positional param was supplied as JSON null,
// the wire representation of the optional "global" sentinel in queries like
// field_getHealth's user? parameter.
func isNullParam(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeBool parses a positional boolean param, used by reduce_position's
// remove/repay flags.
func decodeBool(params []json.RawMessage, index int) (bool, error) {
	raw, err := paramAt(params, index)
	if err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, err
	}
	return b, nil
}

func decodeAddress(params []json.RawMessage, index int) (crypto.Address, error) {
	raw, err := paramAt(params, index)
	if err != nil {
		return crypto.Address{}, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return crypto.Address{}, err
	}
	return crypto.DecodeAddress(s)
}

// decodeAmount parses a base-10 decimal string param into a uint256.Int.
// Amounts travel as JSON strings rather than numbers so a 256-bit value
// never round-trips through a float64-backed JSON number decoder.
func decodeAmount(params []json.RawMessage, index int) (*uint256.Int, error) {
	raw, err := paramAt(params, index)
	if err != nil {
		return nil, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, err
	}
	return amount, nil
}
