package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/redis"
	"storefront/internal/utils"
)

func setupRouter(a *app) *gin.Engine {
	cfg := a.cfg
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger(a.metrics))
	if cfg.Security.CORS.Enabled {
		router.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins:     cfg.Security.CORS.AllowOrigins,
			AllowMethods:     cfg.Security.CORS.AllowMethods,
			AllowHeaders:     cfg.Security.CORS.AllowHeaders,
			ExposeHeaders:    cfg.Security.CORS.ExposeHeaders,
			AllowCredentials: cfg.Security.CORS.AllowCredentials,
			MaxAge:           time.Duration(cfg.Security.CORS.MaxAge) * time.Second,
		}))
	}

	checks := map[string]handler.HealthCheck{
		"database": database.Health,
		"queue":    func(context.Context) error { return a.queue.Health() },
	}
	if a.redis != nil {
		checks["redis"] = redis.Health
	}
	health := handler.NewHealthHandler(checks)
	router.GET("/health", health.Health)
	router.GET("/ping", health.Ping)

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}

	jwtManager := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, cfg.Security.JWT.Expire)

	interactions := handler.NewInteractionHandler(a.front)
	orders := handler.NewOrderHandler(a.orders)
	admin := handler.NewAdminHandler(a.front, a.ledger, cfg.Storefront.SummaryMonths)
	catalogs := handler.NewCatalogHandler(a.catalog)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	v1.Use(middleware.Auth(jwtManager.ValidateToken))
	if a.limiter != nil {
		v1.Use(middleware.RateLimit(a.limiter))
	}
	{
		v1.POST("/interactions", interactions.Interact)
		v1.POST("/dialogue/reply", interactions.DialogueReply)
		v1.GET("/cart", interactions.GetCart)

		v1.GET("/orders/pending", orders.GetPending)
		v1.GET("/dialogue", orders.GetDialogue)

		v1.GET("/catalogs/:catalog_id/products", catalogs.ListProducts)
		v1.GET("/products/:name", catalogs.GetProduct)

		adminGroup := v1.Group("/admin", middleware.RequireAdmin())
		{
			adminGroup.PUT("/products/:name/stock", admin.SetStock)
			adminGroup.GET("/sales/summary", admin.SalesSummary)
			adminGroup.GET("/products/:name/waitlist", admin.Waitlist)
			adminGroup.GET("/users/:user_id/sales", admin.UserSales)
		}
	}

	return router
}
