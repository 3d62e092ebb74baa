package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/supermartsg/checkout/internal/checkout"
	"github.com/supermartsg/checkout/internal/config"
	"github.com/supermartsg/checkout/internal/httpx"
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/payment"
	"github.com/supermartsg/checkout/internal/payment/nets"
	"github.com/supermartsg/checkout/internal/payment/paypal"
	"github.com/supermartsg/checkout/internal/pkg/telemetry"
	"github.com/supermartsg/checkout/internal/session"
	"github.com/supermartsg/checkout/internal/stock"
	"github.com/supermartsg/checkout/internal/storage/sqlite"
	"github.com/supermartsg/checkout/internal/wallet"
)

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "checkout-service"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	cfg := config.Load()

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	sessions := session.NewRedisStore(cfg.RedisAddr, cfg.SessionPrefix)
	orders := order.NewStore(order.NewFileFeedStore(cfg.FeedFile))
	walletSrv := wallet.NewService(store)

	paypalClient := paypal.NewClient(paypal.Config{
		BaseURL:  cfg.PayPalAPIBase,
		ClientID: cfg.PayPalClientID,
		Secret:   cfg.PayPalSecret,
	})
	netsClient := nets.NewClient(nets.Config{
		BaseURL:   cfg.NetsAPIBase,
		APIKey:    cfg.NetsAPIKey,
		ProjectID: cfg.NetsProjectID,
	})

	orc := checkout.New(checkout.Config{
		Ledger:   stock.NewLedger(store),
		Wallet:   walletSrv,
		Cards:    store,
		Carts:    store,
		Orders:   orders,
		Sessions: sessions,
		Strategies: payment.NewRegistry(
			payment.CashStrategy{},
			payment.PayNowStrategy{},
			payment.NewWalletStrategy(walletSrv),
			payment.NewCardStrategy(store),
		),
		PayPal:         paypalClient,
		Nets:           netsClient,
		PayPalClientID: cfg.PayPalClientID,
	})

	handler := httpx.NewHandler(orc, walletSrv, sessions)
	router := httpx.NewRouter(handler, sessions)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("checkout service running", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
