package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/helioslab/credgate/internal/config"
	"github.com/helioslab/credgate/internal/http/handler"
	httpmiddleware "github.com/helioslab/credgate/internal/http/middleware"
	"github.com/helioslab/credgate/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, sessionHandler *handler.SessionHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.POST("/register", sessionHandler.Register)
	r.POST("/login", sessionHandler.Login)
	r.POST("/refresh", sessionHandler.Refresh)
	r.POST("/logout", sessionHandler.Logout)
	r.GET("/me", authMiddleware.ValidateBearer, sessionHandler.Me)
	r.GET("/healthz", sessionHandler.Healthz)

	return r
}
