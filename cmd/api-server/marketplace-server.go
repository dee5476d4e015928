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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tutormarket/db"
	"tutormarket/internal/auth"
	"tutormarket/internal/classroom"
	"tutormarket/internal/config"
	"tutormarket/internal/handlers"
	"tutormarket/internal/lifecycle"
	"tutormarket/internal/metrics"
	"tutormarket/internal/notify"
	"tutormarket/internal/payments"
	"tutormarket/internal/profiles"
	"tutormarket/pkg/logging"
)

const siteName = "Tutor Market"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Setup()
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("cannot connect to DB", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.SMTP.Enabled() {
		notifier = notify.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		slog.Warn("SMTP is not configured, notifications go to the log")
	}

	manager := lifecycle.NewManager(store, m)
	ledger := lifecycle.NewLedger(store, cfg.AwardPolicy,
		lifecycle.WithMetrics(m),
		lifecycle.WithNotifier(notify.NewBidMailer(store, notifier, siteName), cfg.SMTP.NotifyTimeout),
	)

	var (
		gateway payments.Gateway
		linker  payments.AccountLinker
	)
	if cfg.Stripe.SecretKey != "" {
		stripeGateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.ClientID, nil)
		gateway = stripeGateway
		if cfg.Stripe.ClientID != "" {
			linker = stripeGateway
		} else {
			slog.Warn("STRIPE_CLIENT_ID is not set, tutors cannot connect payout accounts")
		}
	} else {
		slog.Warn("STRIPE_SECRET_KEY is not set, payments are disabled")
	}
	fees := payments.Fees{Percent: cfg.Stripe.PlatformFeePercent, Min: cfg.Stripe.PlatformFeeMin}

	provisioner := classroom.NewLocalProvisioner(cfg.Classroom.TokenSecret, cfg.Classroom.TokenTTL)

	h := &handlers.Handler{
		Categories:  store,
		Projects:    manager,
		Bids:        ledger,
		Classrooms:  classroom.NewService(store, manager, provisioner, m),
		Payments:    payments.NewService(store, manager, gateway, cfg.Stripe.Currency, fees, m),
		Payouts:     payments.NewConnector(store, linker, cfg.JWTSecret),
		Profiles:    profiles.NewService(store),
		PageSize:    cfg.PageSize,
		MaxPageSize: cfg.MaxPageSize,
	}
	jwt := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	router := handlers.NewRouter(h, jwt, store, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddress, "award_policy", cfg.AwardPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	// Дожидаемся уведомлений о предложениях, отправленных до остановки.
	ledger.Wait()
}
