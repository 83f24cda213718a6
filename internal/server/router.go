// Package server assembles the HTTP API: middleware, routes and the
// dependencies each handler needs.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"archive/internal/auth"
	"archive/internal/books"
	"archive/internal/live"
	"archive/internal/metrics"
	"archive/internal/ratelimit"
	"archive/internal/reviews"
	"archive/internal/validation"
	"archive/pkg/utils"
)

type Deps struct {
	Config   *utils.Config
	DB       *sql.DB
	Hub      *live.Hub
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	// Limiter throttles register and login per client IP. Nil disables it.
	Limiter *ratelimit.KeyedRateLimiter
	Logger  *slog.Logger
}

// New builds the API handler. CORS runs ahead of gin so preflight requests
// are answered before routing.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	cfg := d.Config

	router := gin.New()
	router.Use(requestLogger(d.Logger), requestMetrics(d.Metrics), gin.Recovery())

	v := validation.New()
	tokens := auth.TokenService{
		Secret:   []byte(cfg.Auth.Secret),
		Issuer:   cfg.Auth.Issuer,
		Duration: cfg.Auth.TTL,
	}
	cookie := auth.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure}

	reviewRepo := reviews.NewRepo(d.DB)
	authSvc := auth.NewService(auth.NewRepo(d.DB), auth.Hasher{Cost: cfg.Auth.BcryptCost}, reviewRepo, v)
	gate := auth.Middleware(tokens, authSvc, cookie.Name)

	var limit gin.HandlerFunc
	if d.Limiter != nil {
		limit = ratelimit.Middleware(d.Limiter)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", readyHandler(d.DB, d.Hub))
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	api := router.Group("/api")
	auth.NewHandler(authSvc, tokens, cookie, gate, limit).RegisterRoutes(api.Group("/auth"))
	bookHandler := books.NewHandler(books.NewRepo(d.DB), v)
	bookHandler.BaseURL = cfg.Server.BaseURL
	bookHandler.RegisterRoutes(api.Group("/books"), gate)

	var recorder reviews.Recorder
	if d.Metrics != nil {
		recorder = d.Metrics
	}
	var feed reviews.Broadcaster
	if d.Hub != nil {
		feed = d.Hub
		api.GET("/reviews/live", live.Handler(d.Hub, cfg.CORS.Origins))
	}
	engine := reviews.NewEngine(reviewRepo, feed, recorder, d.Logger)
	reviews.NewHandler(engine, reviewRepo).RegisterRoutes(api.Group("/reviews"), gate)

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)
}

func readyHandler(db *sql.DB, hub *live.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		clients := 0
		if hub != nil {
			clients = hub.Count()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":       "not_ready",
				"db_error":     err.Error(),
				"live_clients": clients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "ready",
			"db":           "ok",
			"live_clients": clients,
		})
	}
}
