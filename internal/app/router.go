package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"studentfees/internal/handler"
	"studentfees/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	MpesaHandler   *handler.MpesaHandler
	AccountHandler *handler.AccountHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyHeader},
		ExposeHeaders:   []string{"Content-Length", middleware.ReplayHeader},
		MaxAge:          12 * time.Hour,
	}))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": time.Now().UTC()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	mpesa := router.Group("/mpesa")
	{
		mpesa.POST("/stkpush", middleware.Idempotency(deps.RedisClient, "stkpush"), deps.MpesaHandler.STKPush)
		mpesa.POST("/query", deps.MpesaHandler.Query)
		mpesa.POST("/callback", deps.MpesaHandler.Callback)
		mpesa.GET("/transaction/:checkoutRequestId", deps.MpesaHandler.GetTransaction)
		mpesa.GET("/token", deps.MpesaHandler.Token)
	}

	accounts := router.Group("/accounts")
	{
		accounts.POST("", middleware.Idempotency(deps.RedisClient, "accounts"), deps.AccountHandler.Create)
		accounts.GET("/:id", deps.AccountHandler.Get)
	}

	return router
}
