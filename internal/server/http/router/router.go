package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/codeskytz/smmbot/internal/config"
	"github.com/codeskytz/smmbot/internal/server/http/handlers"
	"github.com/codeskytz/smmbot/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.BotFacade, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	chatHandler := handlers.NewChatHandler(facade)
	paymentHandler := handlers.NewPaymentWebhookHandler(facade)
	adminHandler := handlers.NewAdminHandler(facade)
	healthHandler := handlers.NewHealthHandler(facade)

	engine.GET("/health", healthHandler.Check)

	webhook := engine.Group("/webhook")
	webhook.POST("/chat", chatHandler.Inbound)
	webhook.POST("/payment", middleware.APIKeyRequired(cfg.PaymentAPIKey), paymentHandler.Receive)

	admin := engine.Group("/admin")
	admin.POST("/login", adminHandler.Login)

	adminAuth := admin.Group("")
	adminAuth.Use(middleware.AdminRequired(facade))
	adminAuth.GET("/orders", adminHandler.Orders)
	adminAuth.GET("/orders/:id", adminHandler.Order)
	adminAuth.POST("/catalog/import", adminHandler.ImportCatalog)

	return engine
}
