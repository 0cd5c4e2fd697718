package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sangkips/gstbill-desk/internal/application/service"
	"github.com/sangkips/gstbill-desk/internal/bridge"
	"github.com/sangkips/gstbill-desk/internal/config"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	domainRepo "github.com/sangkips/gstbill-desk/internal/domain/repository"
	"github.com/sangkips/gstbill-desk/internal/infrastructure/database"
	"github.com/sangkips/gstbill-desk/internal/infrastructure/repository"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/handler"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/routes"
	"github.com/sangkips/gstbill-desk/pkg/clock"
	"github.com/sangkips/gstbill-desk/pkg/logger"
	"github.com/sangkips/gstbill-desk/pkg/printer"
	"github.com/sangkips/gstbill-desk/pkg/utils"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shutdownTimeout        = 20 * time.Second
	idempotencyCleanupTick = time.Hour
)

func main() {
	// Load configuration
	cfg := config.Load()

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.NewDB(&cfg.Database, cfg.App.Debug, zl)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.AutoMigrate(db, zl); err != nil {
		zl.Fatal("failed to run migrations", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedisClient(ctx, &cfg.Redis, zl)
		if err != nil {
			zl.Fatal("failed to connect to redis", zap.Error(err))
		}
	}

	clk := clock.New()

	// Printer
	thermalPrinter := newPrinter(cfg, rdb, zl)

	// Repositories
	printJobRepo := repository.NewPrintJobRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	draftStore := newDraftStore(cfg, db, rdb, clk, zl)

	// Bridge push events
	hub := bridge.NewHub(bridge.DefaultSubscriberBuffer, zl)

	// Services
	printQueue := service.NewPrintQueueService(thermalPrinter, printJobRepo, hub, clk, service.PrintQueueOptions{
		ListLimit:      cfg.PrintQueue.ListLimit,
		MaxRetries:     cfg.PrintQueue.MaxRetries,
		PollInterval:   cfg.PrintQueue.PollInterval,
		InitialBackoff: cfg.PrintQueue.InitialBackoff,
		MaxBackoff:     cfg.PrintQueue.MaxBackoff,
		Multiplier:     cfg.PrintQueue.Multiplier,
		PrinterTimeout: cfg.Printer.Timeout,
		JournalFlush:   cfg.PrintQueue.JournalFlush,
		PaperWidth:     cfg.Printer.PaperWidth,
		Header: entity.ReceiptHeader{
			StoreName: cfg.Store.Name,
			Address:   cfg.Store.Address,
			Phone:     cfg.Store.Phone,
			GSTIN:     cfg.Store.GSTIN,
		},
		Footer: cfg.Store.Footer,
	}, logger.Component(zl, "print_queue"))

	drafts := service.NewDraftService(draftStore, clk, service.DraftOptions{
		AutoSaveDelay: cfg.Draft.AutoSaveDelay,
		MaxBytes:      cfg.Draft.MaxBytes,
	}, logger.Component(zl, "drafts"))

	if err := printQueue.Restore(ctx); err != nil {
		// The queue still works in memory; old jobs stay in the journal.
		zl.Error("failed to restore print queue", zap.Error(err))
	}
	printQueue.Start(ctx)

	b := bridge.New(zl)
	bridge.RegisterChannels(b, printQueue, drafts)

	go cleanupIdempotencyKeys(ctx, idempotencyRepo, zl)

	// HTTP
	if err := handler.RegisterValidators(); err != nil {
		zl.Fatal("failed to register validators", zap.Error(err))
	}
	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiryHours)
	handlers := &routes.Handlers{
		Bridge: handler.NewBridgeHandler(b, hub, printQueue, originChecker(cfg.CORS.AllowedOrigins), zl),
		Print:  handler.NewPrintHandler(printQueue),
	}
	router := routes.Setup(ctx, handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		IdempotencyRepo: idempotencyRepo,
		Queue:           printQueue,
		Logger:          zl,
	})

	port := cfg.App.Port
	if port == "" {
		port = "8765"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("starting server",
			zap.String("service", cfg.App.Name),
			zap.String("port", port),
			zap.String("env", cfg.App.Env),
			zap.String("printer", thermalPrinter.Info().Type),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		zl.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			zl.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Streams end first so Shutdown does not wait on them.
	hub.Close()
	err = multierr.Combine(
		srv.Shutdown(shutdownCtx),
		printQueue.Stop(shutdownCtx),
	)
	drafts.Close()
	err = multierr.Append(err, thermalPrinter.Close())
	if rdb != nil {
		err = multierr.Append(err, rdb.Close())
	}
	err = multierr.Append(err, database.Close(db))

	if err != nil {
		for _, e := range multierr.Errors(err) {
			zl.Error("shutdown error", zap.Error(e))
		}
		os.Exit(1)
	}
	zl.Info("server stopped")
}

// newPrinter builds the configured printer. A bad configuration falls back
// to the null printer so bills can still be finalized.
func newPrinter(cfg *config.Config, rdb *redis.Client, zl *zap.Logger) printer.Printer {
	p, err := printer.NewPrinterFromConfig(cfg.Printer.Name, cfg.Printer.Type, cfg.Printer.USBPath, cfg.Printer.Address)
	if err != nil {
		zl.Warn("failed to initialize printer, printing disabled", zap.Error(err))
		return printer.NewNullPrinter()
	}

	if cfg.Printer.SharedLock {
		if rdb == nil {
			zl.Warn("PRINTER_SHARED_LOCK needs REDIS_ENABLED, printing without a shared lock")
			return p
		}
		return printer.NewLockedPrinter(p, database.NewLocker(rdb), cfg.Printer.LockTTL)
	}
	return p
}

func newDraftStore(cfg *config.Config, db *gorm.DB, rdb *redis.Client, clk clock.Clock, zl *zap.Logger) domainRepo.DraftStore {
	switch cfg.Draft.Store {
	case "redis":
		if rdb != nil {
			return repository.NewRedisDraftStore(rdb, "gstbill:", cfg.Draft.TTL)
		}
		zl.Warn("DRAFT_STORE=redis needs REDIS_ENABLED, using the database")
	case "memory":
		return repository.NewMemoryDraftStore()
	}
	return repository.NewGormDraftStore(db, cfg.Draft.TTL, clk)
}

// originChecker accepts WebSocket upgrades from the configured CORS origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func cleanupIdempotencyKeys(ctx context.Context, repo domainRepo.IdempotencyRepository, zl *zap.Logger) {
	ticker := time.NewTicker(idempotencyCleanupTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, time.Now())
			if err != nil {
				zl.Warn("failed to delete expired idempotency keys", zap.Error(err))
				continue
			}
			if n > 0 {
				zl.Info("deleted expired idempotency keys", zap.Int64("count", n))
			}
		}
	}
}
