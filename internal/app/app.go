// Package app wires the application together.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pcktbot/google-timeline/internal/config"
	"github.com/pcktbot/google-timeline/internal/handler"
	"github.com/pcktbot/google-timeline/internal/middleware"
	"github.com/pcktbot/google-timeline/internal/routing"
	"github.com/pcktbot/google-timeline/internal/service"
	"github.com/pcktbot/google-timeline/internal/storage"
)

// DBError represents a database-related error during startup.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("db error during %q: %v", e.Op, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

// App holds the application-level dependencies.
type App struct {
	DB     *pgxpool.Pool // nil when running on the in-memory store
	Router *gin.Engine
	Log    *logrus.Logger
	cfg    *config.Config
}

// New initializes the application: connects to PostgreSQL (or falls back to
// the in-memory store when no DSN is configured), runs migrations, wires
// the domain dependencies, and configures the HTTP engine with routes.
func New(cfg *config.Config, log *logrus.Logger) (*App, error) {
	var (
		pool  *pgxpool.Pool
		store storage.Store
	)

	if cfg.DBDSN == "" {
		log.Warn("DB_DSN not set; using in-memory store, data will not survive a restart")
		store = storage.NewMemoryStore()
	} else {
		poolCfg, err := pgxpool.ParseConfig(cfg.DBDSN)
		if err != nil {
			return nil, &DBError{Op: "parse_dsn", Err: err}
		}
		poolCfg.MaxConns = 20
		poolCfg.MaxConnLifetime = 30 * time.Second
		poolCfg.MaxConnIdleTime = 10 * time.Second

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, &DBError{Op: "connect", Err: err}
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, &DBError{Op: "ping", Err: err}
		}
		log.Info("database connection pool established")

		if err := storage.RunMigrations(context.Background(), pool, log); err != nil {
			return nil, fmt.Errorf("app: run migrations: %w", err)
		}
		log.Info("database schema up to date")

		store = storage.NewPostgresStore(pool)
	}

	// --- Domain dependencies ---
	osrmRouter := routing.NewOSRMRouter(cfg.OSRMURL)
	tripService := service.NewTripService(store, osrmRouter, log, cfg.RouteProfile)

	// --- HTTP engine ---
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handler.New(tripService, store.Timeline(), log)

	api := router.Group("/api/v1")
	{
		api.POST("/trips", h.CreateTrip)
		api.GET("/trips", h.ListTrips)
		api.GET("/trips/:id", h.GetTrip)
		api.PATCH("/trips/:id", h.UpdateTrip)
		api.DELETE("/trips/:id", h.DeleteTrip)

		api.POST("/trips/:id/stops", h.AddStop)
		api.DELETE("/trips/:id/stops/:stopID", h.DeleteStop)
		api.PUT("/trips/:id/stops/order", h.ReorderStops)

		api.POST("/trips/:id/routes", h.GenerateRoutes)

		api.GET("/timeline/nearby", h.NearbyTimelineEntries)
	}

	return &App{
		DB:     pool,
		Router: router,
		Log:    log,
		cfg:    cfg,
	}, nil
}

// Shutdown gracefully closes the database pool.
func (a *App) Shutdown() {
	if a.DB != nil {
		a.DB.Close()
		a.Log.Info("database connection pool closed")
	}
}
