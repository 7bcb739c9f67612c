package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = jsonErrors(h.Logger)

	e.Use(SetNoCacheHeaders)

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) == 1, nil
			},
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health"
			},
		}))
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API v1 routes
	v1 := e.Group("/v1", SetJSONContentType)
	v1.GET("/health", h.Health)
	v1.GET("/balance", h.Balance)
	v1.GET("/tokens/:ticker", h.ResolveToken)
	v1.GET("/assets/:unit/decimals", h.TokenDecimals)
	v1.GET("/quote", h.Quote)
	v1.GET("/prices/:token", h.Price)

	swaps := v1.Group("/swaps")
	swaps.POST("/build", h.BuildSwap)
	swaps.POST("/submit", h.SubmitSwap)
	swaps.GET("/recent", h.RecentSwaps)
	swaps.GET("/history", h.SwapHistory)
	swaps.GET("/:hash/status", h.SwapStatus)

	// AI endpoints with rate limiting
	aigroup := v1.Group("/ai")
	aigroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,
		ExpiresIn: 2 * time.Minute,
	})))
	aigroup.POST("/intent", h.AIIntent)

	// Trading halts CRUD endpoints
	halts := v1.Group("/halts")
	halts.GET("", h.HaltsList)
	halts.POST("", h.HaltsUpsert)
	halts.GET("/:scope", h.HaltsGet)
	halts.PUT("/:scope", h.HaltsUpdate)
	halts.DELETE("/:scope", h.HaltsDelete)

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
