package rpcapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/nhbchain/field/native/field"
)

// handlerFunc executes one JSON-RPC method against req.Params, returning
// the value to marshal as the result.
type handlerFunc func(ctx context.Context, params []json.RawMessage) (any, error)

// Server mounts the vault's Engine behind a single JSON-RPC endpoint,
// grounded on the deleted rpc/http.go's single-POST-endpoint dispatch
// table plus this repo's own chi-based routing for everything else
// (health, metrics).
type Server struct {
	Engine  *field.Engine
	Auth    Authenticator
	Metrics *Metrics

	// RateLimitPerMin bounds how many requests a single caller may issue
	// per minute; zero disables rate limiting.
	RateLimitPerMin int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	methods map[string]methodSpec
}

type methodSpec struct {
	handler       handlerFunc
	requiresAuth  bool
}

// NewServer builds a Server with the full vault method table registered.
func NewServer(engine *field.Engine, auth Authenticator, metrics *Metrics, rateLimitPerMin int) *Server {
	s := &Server{
		Engine:          engine,
		Auth:            auth,
		Metrics:         metrics,
		RateLimitPerMin: rateLimitPerMin,
		limiters:        make(map[string]*rate.Limiter),
	}
	s.registerHandlers()
	s.registerQueries()
	return s
}

// Router returns the chi.Router serving the vault's HTTP surface: the
// JSON-RPC endpoint at /rpc, wrapped in OpenTelemetry instrumentation, plus
// a plain /healthz liveness probe.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Handle("/rpc", otelhttp.NewHandler(http.HandlerFunc(s.serveRPC), "field.rpc"))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 0, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: "malformed request body"})
		return
	}

	spec, ok := s.methods[req.Method]
	if !ok {
		writeError(w, req.ID, &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeMethodNotFound, Message: "unknown method " + req.Method})
		return
	}

	ctx := r.Context()
	var callerKey string
	if spec.requiresAuth {
		token := bearerTokenFromRequest(r)
		addr, err := s.Auth.Authenticate(ctx, token)
		if err != nil {
			writeError(w, req.ID, &ModuleError{HTTPStatus: http.StatusUnauthorized, Code: codeUnauthorized, Message: err.Error()})
			return
		}
		ctx = withCaller(ctx, addr)
		callerKey = addr.String()
	} else {
		callerKey = r.RemoteAddr
	}

	if s.RateLimitPerMin > 0 && !s.limiterFor(callerKey).Allow() {
		writeError(w, req.ID, &ModuleError{HTTPStatus: http.StatusTooManyRequests, Code: codeServerError, Message: "rate limit exceeded"})
		return
	}

	correlationID := uuid.NewString()
	ctx = context.WithValue(ctx, correlationIDKey{}, correlationID)

	result, err := spec.handler(ctx, req.Params)
	if s.Metrics != nil {
		s.Metrics.observeRequest(req.Method, time.Since(start).Seconds())
	}
	if err != nil {
		modErr := translateEngineError(err)
		if s.Metrics != nil {
			s.Metrics.observeError(req.Method, modErr.Code)
		}
		writeError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) limiterFor(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(s.RateLimitPerMin)/60.0), s.RateLimitPerMin)
		s.limiters[key] = lim
	}
	return lim
}

type correlationIDKey struct{}

func writeResult(w http.ResponseWriter, id int, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id int, modErr *ModuleError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(modErr.HTTPStatus)
	json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: modErr.Code, Message: modErr.Message, Data: modErr.Data},
	})
}
