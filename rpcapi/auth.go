package rpcapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhbchain/field/crypto"
)

// ErrMissingBearerToken and ErrInvalidBearerToken are returned by
// Authenticator.Authenticate; the HTTP handler maps both to 401 the same
// way the deleted services/lending server's Authorizer interface did.
var (
	ErrMissingBearerToken = errors.New("rpcapi: missing bearer token")
	ErrInvalidBearerToken = errors.New("rpcapi: invalid bearer token")
)

type callerContextKey struct{}

// Authenticator verifies a bearer token and resolves it to the caller's
// on-chain address, the address the vault's Engine checks against its
// governance/keeper sets. Grounded on services/lending/server's own
// Authorizer interface: a single verification seam a handler wraps around
// every mutating RPC method, with the signing mechanism left to the
// concrete implementation.
type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (crypto.Address, error)
}

// JWTAuthenticator verifies HS256/RS256 JWTs whose "sub" claim is the
// caller's bech32-encoded address.
type JWTAuthenticator struct {
	KeyFunc jwt.Keyfunc
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, bearerToken string) (crypto.Address, error) {
	if bearerToken == "" {
		return crypto.Address{}, ErrMissingBearerToken
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(bearerToken, claims, a.KeyFunc)
	if err != nil || !token.Valid {
		return crypto.Address{}, ErrInvalidBearerToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return crypto.Address{}, ErrInvalidBearerToken
	}
	addr, err := crypto.DecodeAddress(sub)
	if err != nil {
		return crypto.Address{}, ErrInvalidBearerToken
	}
	return addr, nil
}

// bearerTokenFromRequest extracts the token from the standard
// "Authorization: Bearer <token>" header.
func bearerTokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

func withCaller(ctx context.Context, addr crypto.Address) context.Context {
	return context.WithValue(ctx, callerContextKey{}, addr)
}

func callerFromContext(ctx context.Context) (crypto.Address, bool) {
	addr, ok := ctx.Value(callerContextKey{}).(crypto.Address)
	return addr, ok
}
