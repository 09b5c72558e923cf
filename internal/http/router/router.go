// Package router builds the Gin engine and mounts every registered module.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "chatwidget_backend/internal/http"
	"chatwidget_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// TenantAuth bundles the widget-key resolver the router needs to build the
// authenticated widget group.
type TenantAuth struct {
	Resolver httpkit.TenantResolver
}

func New(app *apphttp.App, auth TenantAuth) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app.Config))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(20), 40, app.Logger)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := app.Health.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	v1 := engine.Group("/api/v1")
	v1.Use(limiter.RateLimit())

	widget := v1.Group("/widget")
	widget.Use(httpkit.WidgetAuth(auth.Resolver))

	webhook := v1.Group("/webhooks")
	webhook.Use(httpkit.WebhookAuth(app.Config.GetWebhookSecret()))

	routerCtx := &apphttp.RouterContext{
		Engine:  engine,
		V1:      v1,
		Widget:  widget,
		Webhook: webhook,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(routerCtx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsMiddleware(cfg apphttp.RouterConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", httpkit.WidgetKeyHeader, httpkit.WebhookSecretHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	return cors.New(corsCfg)
}
