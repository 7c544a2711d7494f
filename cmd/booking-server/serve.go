package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lawfirm/booking/internal/config"
	"github.com/lawfirm/booking/internal/domain/blocking"
	"github.com/lawfirm/booking/internal/domain/consultation"
	"github.com/lawfirm/booking/internal/domain/scheduling"
	"github.com/lawfirm/booking/internal/platform/auth"
	"github.com/lawfirm/booking/internal/platform/db"
	"github.com/lawfirm/booking/internal/platform/middleware"
	"github.com/lawfirm/booking/internal/platform/notification"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)

	if cfg.IsDev() {
		logger.Warn().Msg("ENV=development: every request runs with an admin session; do not expose this server")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg, "booking-server")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	rdb := notification.NewRedisClient(redisConfig(cfg))
	defer rdb.Close()

	e := newServer(cfg, pool, rdb, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires repositories, services and routes. Nothing here touches
// the network until a request arrives.
func newServer(cfg *config.Config, pool *pgxpool.Pool, redisPing notification.Pinger, logger zerolog.Logger) *echo.Echo {
	loc := cfg.Location()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader, "If-None-Match"},
		ExposeHeaders: []string{middleware.RequestIDHeader, "ETag", "Retry-After"},
	}))
	e.Use(echomw.BodyLimit("64K"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	if cfg.IsDev() {
		e.Use(auth.DevSessionMiddleware())
	} else {
		e.Use(auth.SessionMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, logger))
	e.GET("/health/queue", notification.HealthHandler(redisPing))

	// Repositories
	txm := db.NewTxManager(pool)
	lawyers := scheduling.NewLawyerRepoPG(pool)
	rules := scheduling.NewRuleRepoPG(pool)
	appts := consultation.NewRepoPG(pool)
	notifier := notification.NewQueue(notification.NewTemplateEngine(), notification.NewStorePG(pool), cfg.FirmName)

	// Services
	schedSvc := scheduling.NewService(lawyers, rules, appts, scheduling.Settings{
		Location:     loc,
		DefaultWeeks: cfg.DefaultBookingWeeks,
		MaxWeeks:     cfg.MaxBookingWeeks,
	})
	consultSvc := consultation.NewService(txm, lawyers, rules, appts, notifier, loc, logger)
	blockSvc := blocking.NewService(txm, lawyers, rules, appts, notifier, loc, logger)

	// API groups
	public := e.Group("/api/v1")
	staff := e.Group("/api/v1",
		auth.RequireRole(auth.RoleAdmin, auth.RoleLawyer),
		middleware.Audit(logger.With().Str("component", "audit").Logger()),
	)

	cache := middleware.DefaultCacheConfig()
	cache.MaxAge = cfg.AvailabilityCacheSeconds
	limit := middleware.DefaultRateLimitConfig()
	limit.RequestsPerSecond = cfg.RateLimitRPS
	limit.BurstSize = cfg.RateLimitBurst

	scheduling.NewHandler(schedSvc).RegisterRoutes(public, staff, middleware.CacheControl(cache))
	consultation.NewHandler(consultSvc).RegisterRoutes(public, staff, middleware.RateLimit(limit))
	blocking.NewHandler(blockSvc).RegisterRoutes(staff)

	return e
}
