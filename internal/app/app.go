// Package app is the composition root: it wires the store, the license
// core, the payment gate, and the HTTP transport into one runnable server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rfxlicense/internal/config"
	"rfxlicense/internal/license"
	"rfxlicense/internal/metrics"
	"rfxlicense/internal/middleware"
	"rfxlicense/internal/payment"
	"rfxlicense/internal/store"
	handlers "rfxlicense/internal/transport/http"
)

// Application holds the wired components of the license server.
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	Router   *chi.Mux
	Server   *http.Server
	DB       *store.DB
	Verifier *license.Verifier
	Licenses *license.Service
	Payments *payment.Gate
}

// New builds the application: opens the store, applies migrations, and
// assembles the service graph and router.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	db, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	licenseRepo := store.NewLicenseRepo(db)
	paymentRepo := store.NewPaymentRepo(db)
	activityRepo := store.NewActivityRepo(db)

	keygen := license.NewKeyGenerator(licenseRepo, cfg.License.Secret, cfg.License.KeyPrefix, logger)
	sm := license.NewStateMachine(licenseRepo, keygen, cfg.License.TrialDuration, cfg.License.MonthlyDuration, logger)
	guard := license.NewBindingGuard(licenseRepo, logger)

	m := metrics.New(prometheus.DefaultRegisterer)
	verifier := license.NewVerifier(licenseRepo, guard, activityRepo, paymentRepo, m, logger)
	gate := payment.NewGate(paymentRepo, sm, nil, logger)

	licenseService := license.NewService(keygen, sm)
	adminService := store.NewAdminService(licenseRepo, activityRepo)
	healthService := store.NewHealthService(db, licenseRepo, paymentRepo)

	app := &Application{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Verifier: verifier,
		Licenses: licenseService,
		Payments: gate,
	}
	app.Router = app.buildRouter(licenseService, gate, adminService, healthService)
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

func (a *Application) buildRouter(
	licenseService handlers.LicenseService,
	paymentService handlers.PaymentService,
	adminService handlers.AdminService,
	healthService handlers.HealthService,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(middleware.Recoverer(a.Logger))
	r.Use(middleware.RateLimit(a.Config.Server.RateLimitRPS, a.Config.Server.RateLimitBurst))
	r.Use(middleware.Actor(a.Config))

	verifyHandler := handlers.NewVerifyHandler(a.Verifier, a.Logger)
	licenseHandler := handlers.NewLicenseHandler(licenseService, a.Logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, a.Logger)
	adminHandler := handlers.NewAdminHandler(adminService, a.Logger)
	healthHandler := handlers.NewHealthHandler(healthService, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/verify", verifyHandler.Routes())
		r.Mount("/license", licenseHandler.Routes())
		r.Mount("/payments", paymentHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
		r.Mount("/", healthHandler.Routes())
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully within the configured timeout.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("license server listening",
			slog.String("addr", a.Server.Addr),
		)
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		a.Logger.Info("shutting down")
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("close store", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	a.Logger.Info("stopped", slog.Duration("shutdown_timeout", a.Config.Server.ShutdownTimeout))
	return err
}
