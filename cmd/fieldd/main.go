// Command fieldd runs the leveraged yield vault as a standalone JSON-RPC
// service, wiring native/field.Engine against in-memory mock
// implementations of its five collaborators. A production deployment
// swaps the external/* mocks for real chain-bound clients; the Engine and
// the RPC surface are unchanged either way.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhbchain/field/crypto"
	"github.com/nhbchain/field/external/amm"
	"github.com/nhbchain/field/external/redbank"
	"github.com/nhbchain/field/external/staking"
	"github.com/nhbchain/field/external/taxoracle"
	"github.com/nhbchain/field/external/token"
	"github.com/nhbchain/field/native/field"
	"github.com/nhbchain/field/observability/logging"
	observabilityotel "github.com/nhbchain/field/observability/otel"
	"github.com/nhbchain/field/rpcapi"
	"github.com/nhbchain/field/services/fieldd"
)

func main() {
	configPath := flag.String("config", "", "optional path to a fieldd YAML config overlay")
	flag.Parse()

	cfg, err := fieldd.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("fieldd", cfg.Environment)
	logger.Info("starting fieldd", "config", cfg.Sanitized())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observabilityotel.Init(ctx, observabilityotel.Config{
		ServiceName: "fieldd",
		Environment: cfg.Environment,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	registry := prometheus.NewRegistry()
	metrics := rpcapi.NewMetrics(registry)

	engine, err := buildEngine(logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	auth := &rpcapi.JWTAuthenticator{
		KeyFunc: func(t *jwt.Token) (any, error) {
			return []byte(cfg.JWTHMACSecret), nil
		},
	}

	server := rpcapi.NewServer(engine, auth, metrics, cfg.RateLimitPerMin)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	go func() {
		logger.Info("rpc server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("rpc server failed", "error", err)
		}
	}()
	go func() {
		logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
}

// buildEngine wires native/field.Engine against in-memory development
// collaborators. Swap each mock for a real binding when deploying against
// an actual chain.
func buildEngine(logger *slog.Logger) (*field.Engine, error) {
	treasury := crypto.MustNewAddress(crypto.NHBPrefix, make([]byte, 20))
	governance := crypto.MustNewAddress(crypto.NHBPrefix, make([]byte, 20))

	cfg := field.Config{
		LongAsset:  "NHB",
		ShortAsset: "ZNHB",
		Treasury:   treasury,
		Governance: governance,
		MaxLTVRay:  mustAmount("700000000000000000"), // 0.7
		FeeRateRay: mustAmount("100000000000000000"), // 0.10 performance fee
		Tax: field.TaxParams{
			RateRay: mustAmount("1000000000000000"), // 0.001
			CapWei:  mustAmount("1000000000000000000000"),
		},
	}

	pair := amm.NewMock(mustAmount("0"), mustAmount("0"), mustAmount("0"), mustAmount("3000000000000000"))
	market := redbank.NewMock()
	bond := staking.NewMock(mustAmount("0"))
	taxOracle := taxoracle.NewStatic(taxoracle.Params{RateRay: cfg.Tax.RateRay, CapWei: cfg.Tax.CapWei}, nil)
	ledger := token.NewMock("field-vault", func(denom string, gross *field.Amount) (*field.Amount, error) {
		if denom != cfg.ShortAsset {
			return uint256.NewInt(0), nil
		}
		oracleParams, err := taxOracle.TaxParams(context.Background(), cfg.ShortAsset)
		if err != nil {
			return nil, err
		}
		_, tax, err := field.DeductTax(gross, field.TaxParams{RateRay: oracleParams.RateRay, CapWei: oracleParams.CapWei})
		if err != nil {
			return nil, err
		}
		return tax, nil
	})

	return field.NewEngine(cfg, pair, market, bond, ledger, taxOracle, nil, logger)
}

func mustAmount(decimal string) *field.Amount {
	amount, err := uint256.FromDecimal(decimal)
	if err != nil {
		panic(err)
	}
	return amount
}
