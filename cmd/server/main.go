package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/awkward-3312/SDSinventory/internal/config"
	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/db"
	"github.com/awkward-3312/SDSinventory/internal/inventory"
	"github.com/awkward-3312/SDSinventory/internal/logger"
	"github.com/awkward-3312/SDSinventory/internal/migrations"
	"github.com/awkward-3312/SDSinventory/internal/quote"
	"github.com/awkward-3312/SDSinventory/internal/seed"
	"github.com/awkward-3312/SDSinventory/internal/store"
)

type server struct {
	auth      *authService
	store     *store.Store
	engine    *costing.Engine
	quotes    *quote.Service
	inventory *inventory.Service
	validate  *validator.Validate
}

type quoteExpirer interface {
	ExpireQuotes(ctx context.Context, today time.Time) (int, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LoggerLevel, cfg.LoggerAsJSON); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, w := range cfg.Warnings() {
		logger.Warn(ctx, "configuration warning", logger.String("detail", w))
	}

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(ctx, database); err != nil {
			return fmt.Errorf("run database migrations: %w", err)
		}
	}
	stats, err := seed.Run(ctx, database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	logger.Info(ctx, "seed applied", logger.Int("inserts", stats.Inserts), logger.Int("updates", stats.Updates))

	st := store.New(database, cfg.RecipeCacheTTL)
	engine := costing.NewEngine(st, st, st, cfg.Currency)
	srv := &server{
		auth:      newAuthService(database, cfg.SessionSecret),
		store:     st,
		engine:    engine,
		quotes:    quote.NewService(engine, st, cfg.Currency, cfg.QuoteValidDays),
		inventory: inventory.NewService(engine, st, cfg.Currency),
		validate:  newValidator(),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info(egCtx, "listening", logger.String("addr", httpServer.Addr), logger.String("env", cfg.AppEnv))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		return runQuoteExpiry(egCtx, st, cfg.QuoteExpiryInterval)
	})

	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "error during server shutdown", logger.ErrorF(err))
			return err
		}
		logger.Info(shutdownCtx, "server stopped")
		return nil
	})

	return eg.Wait()
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.authMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Get("/units", s.handleUnitsList)
	r.Get("/supplies", s.handleSuppliesList)
	r.Post("/supplies", s.handleSupplyCreate)
	r.Post("/purchases", s.handlePurchaseCreate)
	r.Get("/alerts/low-stock", s.handleLowStock)
	r.Get("/movements", s.handleMovementsList)
	r.Get("/movements/summary", s.handleMovementsSummary)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleProductsList)
		r.Post("/", s.handleProductCreate)
		r.Get("/{id}", s.handleProductGet)
		r.Put("/{id}", s.handleProductUpdate)
		r.Put("/{id}/active", s.handleProductActive)
	})

	r.Get("/recipes", s.handleRecipesList)
	r.Post("/recipes", s.handleRecipeCreate)
	r.Route("/recipes/{id}", func(r chi.Router) {
		r.Get("/", s.handleRecipeGet)
		r.Get("/config", s.handleRecipeConfig)
		r.Put("/margin", s.handleRecipeMargin)
		r.Post("/items", s.handleRecipeItemCreate)
		r.Put("/items/{itemID}", s.handleRecipeItemUpdate)
		r.Delete("/items/{itemID}", s.handleRecipeItemDelete)
		r.Post("/variables", s.handleRecipeVariableCreate)
		r.Put("/variables/{variableID}", s.handleRecipeVariableUpdate)
		r.Delete("/variables/{variableID}", s.handleRecipeVariableDelete)
		r.Post("/options", s.handleRecipeOptionCreate)
		r.Put("/options/{optionID}", s.handleRecipeOptionUpdate)
		r.Delete("/options/{optionID}", s.handleRecipeOptionDelete)
		r.Post("/options/{optionID}/values", s.handleRecipeOptionValueCreate)
		r.Put("/options/{optionID}/values/{valueID}", s.handleRecipeOptionValueUpdate)
		r.Delete("/options/{optionID}/values/{valueID}", s.handleRecipeOptionValueDelete)
		r.Post("/rules", s.handleRecipeRuleCreate)
		r.Put("/rules/order", s.handleRecipeRulesReorder)
		r.Put("/rules/{ruleID}", s.handleRecipeRuleUpdate)
		r.Delete("/rules/{ruleID}", s.handleRecipeRuleDelete)
		r.Get("/cost", s.handleRecipeCost)
		r.Post("/cost", s.handleRecipeCost)
		r.Get("/suggested-price", s.handleSuggestedPrice)
	})
	r.Post("/costing/allocate", s.handleAllocate)

	r.Route("/fixed-costs", func(r chi.Router) {
		r.Get("/active", s.handleActivePeriod)
		r.Post("/periods", s.handlePeriodCreate)
		r.Get("/periods", s.handlePeriodsList)
		r.Post("/periods/{id}/items", s.handleFixedCostItemCreate)
		r.Put("/periods/{id}/active", s.handlePeriodActivate)
		r.Get("/periods/{id}/summary", s.handlePeriodSummary)
	})

	r.Route("/quotes", func(r chi.Router) {
		r.Post("/", s.handleQuoteCreate)
		r.Get("/", s.handleQuotesList)
		r.Get("/{id}", s.handleQuoteGet)
		r.Post("/{id}/status", s.handleQuoteStatus)
		r.Get("/{id}/text", s.handleQuoteText)
		r.Get("/{id}/xlsx", s.handleQuoteXLSX)
		r.Post("/{id}/convert", s.handleQuoteConvert)
	})

	r.Route("/sales", func(r chi.Router) {
		r.Post("/", s.handleSaleCreate)
		r.Get("/", s.handleSalesList)
		r.Get("/summary", s.handleSalesSummary)
		r.Get("/{id}", s.handleSaleGet)
		r.Post("/{id}/void", s.handleSaleVoid)
	})
	r.Post("/production", s.handleProductionCreate)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := logger.WithContext(r.Context(), logger.String("request_id", middleware.GetReqID(r.Context())))

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Debug(ctx, "http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
		)
	})
}

// runQuoteExpiry marks overdue draft and sent quotes as expired on start and then every interval.
func runQuoteExpiry(ctx context.Context, quotes quoteExpirer, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	expire := func() {
		n, err := quotes.ExpireQuotes(ctx, time.Now())
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn(ctx, "quote expiry failed", logger.ErrorF(err))
			}
			return
		}
		if n > 0 {
			logger.Info(ctx, "quotes expired", logger.Int("count", n))
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	expire()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			expire()
		}
	}
}
