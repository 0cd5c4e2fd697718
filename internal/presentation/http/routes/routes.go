package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/gstbill-desk/internal/config"
	domainRepo "github.com/sangkips/gstbill-desk/internal/domain/repository"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/handler"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/middleware"
	"github.com/sangkips/gstbill-desk/pkg/utils"
	"go.uber.org/zap"
)

// PermissionManagePrinter guards the printer admin routes.
const PermissionManagePrinter = "manage-printer"

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Bridge *handler.BridgeHandler
	Print  *handler.PrintHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	IdempotencyRepo domainRepo.IdempotencyRepository
	Queue           handler.QueueSnapshotter
	Logger          *zap.Logger
}

// Setup creates the Gin router and registers all routes. ctx bounds the
// background work of the middleware.
func Setup(ctx context.Context, h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		queue := "ok"
		if _, err := deps.Queue.GetPrintQueue(c.Request.Context()); err != nil {
			queue = "unavailable"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     deps.Cfg.App.Name,
			"print_queue": queue,
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTManager))

		rateLimiter := middleware.NewRateLimiter(ctx, middleware.RateLimiterConfigFrom(deps.Cfg.RateLimit))
		protected.Use(rateLimiter.Middleware())

		registerBridgeRoutes(protected, h)
		registerPrintRoutes(protected, h, deps)
	}

	return router
}

func registerBridgeRoutes(protected *gin.RouterGroup, h *Handlers) {
	bridgeGroup := protected.Group("/bridge")
	{
		bridgeGroup.GET("/channels", h.Bridge.Channels)
		bridgeGroup.POST("/invoke/:channel", h.Bridge.Invoke)
		bridgeGroup.GET("/events", h.Bridge.Events)
		bridgeGroup.GET("/ws", h.Bridge.WebSocket)
	}
}

func registerPrintRoutes(protected *gin.RouterGroup, h *Handlers, deps *Deps) {
	printerGroup := protected.Group("/printer")
	printerGroup.Use(middleware.RequirePermission(PermissionManagePrinter))
	{
		printerGroup.GET("/status", h.Print.GetPrinterStatus)
		printerGroup.POST("/test", h.Print.TestPrint)
	}

	jobs := protected.Group("/print-jobs")
	jobs.Use(middleware.RequirePermission(PermissionManagePrinter))
	{
		jobs.GET("/queue", h.Print.GetQueue)
		jobs.GET("", middleware.RequireTenant(), h.Print.List)
		jobs.GET("/export", middleware.RequireTenant(), h.Print.Export)

		idempotency := middleware.IdempotencyRequired(middleware.IdempotencyConfig{
			Repo:   deps.IdempotencyRepo,
			Logger: deps.Logger,
		})
		jobs.POST("", idempotency, h.Print.CreatePrintJob)
	}
}
