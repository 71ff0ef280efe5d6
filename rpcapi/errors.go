package rpcapi

import (
	"errors"
	"net/http"

	"github.com/nhbchain/field/native/field"
)

// translateEngineError maps a native/field sentinel error to the HTTP
// status and JSON-RPC code this transport reports, the same per-error-kind
// translation table the deleted rpc/lending_handlers.go built around
// native/lending's own sentinel errors.
func translateEngineError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, field.ErrUnauthorized):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeUnauthorized, Message: err.Error()}
	case errors.Is(err, field.ErrInvalidConfig):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, field.ErrInsufficientFunds):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, field.ErrNotLiquidatable):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeServerError, Message: err.Error()}
	case errors.Is(err, field.ErrCollaboratorFailure):
		return &ModuleError{HTTPStatus: http.StatusBadGateway, Code: codeServerError, Message: err.Error()}
	case errors.Is(err, field.ErrArithmeticOverflow):
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	case errors.Is(err, field.ErrPositionNotFound):
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, field.ErrNothingToDo), errors.Is(err, field.ErrNoDeposit):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, field.ErrModulePaused):
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: err.Error()}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
}
