package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"server/internal/account"
	"server/internal/admin"
	"server/internal/backend"
	"server/internal/coupon"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/payment"
	"server/internal/plans"
	"server/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	backendOpts := backend.Options{BaseURL: cfg.BackendBaseURL, AnonKey: cfg.BackendAnonKey}
	client, err := backend.New(backendOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build backend client")
	}
	functions, err := backend.NewFunctions(backendOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build functions client")
	}

	sessions := session.NewAccessor(session.NewFileStore(cfg.SessionFilePath), session.NewMemStore())

	resolver := plans.NewResolver(client, logger)
	// best-effort overlay; defaults serve if the backend is unreachable
	resolver.Refresh(context.Background())

	accounts := account.NewAggregator(client, sessions, resolver, logger)
	coupons := coupon.NewValidator(client)

	gateway, err := payment.NewCheckoutGateway(payment.GatewayOptions{
		Functions: functions,
		KeyID:     cfg.CheckoutKeyID,
		KeySecret: cfg.CheckoutKeySecret,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build checkout gateway")
	}
	payments := payment.NewOrchestrator(gateway, logger)

	guard := admin.NewGuard(client, logger)

	resolverGeo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, locale falls back to headers")
	}

	app := handlers.NewApp(cfg, logger)
	app.Backend = client
	app.Functions = functions
	app.Sessions = sessions
	app.Accounts = accounts
	app.Plans = resolver
	app.Coupons = coupons
	app.Payments = payments

	router := httpapi.NewRouter(app, httpapi.Options{
		Guard:    guard,
		GeoIP:    resolverGeo,
		Registry: prometheus.NewRegistry(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
