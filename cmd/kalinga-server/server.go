package main

import (
	"context"
	"fmt"
	"io/fs"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kalinga/kalinga/internal/config"
	"github.com/kalinga/kalinga/internal/domain/assessment"
	"github.com/kalinga/kalinga/internal/domain/course"
	"github.com/kalinga/kalinga/internal/domain/incident"
	"github.com/kalinga/kalinga/internal/domain/notification"
	"github.com/kalinga/kalinga/internal/domain/triage"
	"github.com/kalinga/kalinga/internal/domain/weather"
	"github.com/kalinga/kalinga/internal/platform/auth"
	"github.com/kalinga/kalinga/internal/platform/blobstore"
	"github.com/kalinga/kalinga/internal/platform/db"
	"github.com/kalinga/kalinga/internal/platform/kv"
	"github.com/kalinga/kalinga/internal/platform/middleware"
	"github.com/kalinga/kalinga/internal/platform/progress"
	"github.com/kalinga/kalinga/internal/platform/timer"
	"github.com/kalinga/kalinga/internal/platform/validation"
	"github.com/kalinga/kalinga/internal/platform/websocket"
	"github.com/kalinga/kalinga/migrations"
)

const (
	tokenIssuer    = "kalinga"
	requestTimeout = 30 * time.Second
	weatherMaxAge  = 60 * time.Second
	weatherTimeout = 10 * time.Second
	notifyTimeout  = 10 * time.Second
	redisKeyPrefix = "kalinga:"
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func migrationsFS(cmd *cobra.Command) fs.FS {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

// backend is the progress store selected by STORE_BACKEND.
type backend struct {
	store kv.Store
	ping  db.Pinger
	pool  *pgxpool.Pool
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case "redis":
		rs, err := kv.NewRedisStore(ctx, cfg.RedisURL, redisKeyPrefix)
		if err != nil {
			return nil, err
		}
		return &backend{store: rs, ping: rs, close: func() { rs.Close() }}, nil
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &backend{store: kv.NewPostgresStore(pool), ping: pool, pool: pool, close: pool.Close}, nil
	case "memory":
		return &backend{store: kv.NewMemoryStore(), close: func() {}}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// topicPolicy joins every socket to the shared feeds and the learner's own
// dwell countdown, and refuses subscriptions to anyone else's countdown.
func topicPolicy() websocket.TopicPolicy {
	return websocket.TopicPolicy{
		Defaults: func(learner string) []string {
			return []string{notification.Topic, triage.Topic, course.DwellTopic(learner)}
		},
		Allow: func(learner, topic string) bool {
			own := course.DwellTopic(learner)
			if strings.HasPrefix(topic, course.DwellTopic("")) {
				return topic == own
			}
			return topic == notification.Topic || topic == triage.Topic
		},
	}
}

// app is the assembled server plus the background work it owns.
type app struct {
	echo      *echo.Echo
	cron      *cron.Cron
	simulator *notification.Simulator
	dwell     *course.DwellGate
	hub       *websocket.Hub
	backend   *backend
}

// shutdownEvent tells connected clients to reconnect later.
func shutdownEvent(now time.Time) websocket.Event {
	return websocket.Event{
		Type:         "server.shutdown",
		ResourceType: "Server",
		Timestamp:    now.UTC(),
	}
}

func newApp(cfg *config.Config, logger zerolog.Logger, clock timer.Clock, back *backend) (*app, error) {
	catalog, err := course.LoadCatalog(cfg.CourseCatalogPath)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub(logger, topicPolicy())
	store := progress.New(back.store, logger)
	blobs := blobstore.NewKVBlobStore(back.store, cfg.UploadMaxBytes)

	dwell := course.NewDwellGate(clock, hub, logger)
	courseSvc := course.NewService(catalog, store, dwell, blobs, clock, logger)
	assessSvc := assessment.NewService(catalog, store, courseSvc, clock, logger)

	triageSvc := triage.NewService(triage.NewSeededGenerator(cfg.TriageSeed), triage.DefaultFacilities(), clock, logger)
	triageSvc.SetPublisher(hub)

	var collab notification.Collaborator
	if cfg.NotifyMode == "remote" {
		collab = notification.NewRemoteCollaborator(cfg.NotifyBaseURL, notifyTimeout)
	} else {
		collab = notification.NewMockCollaborator(clock, cfg.NotifyLatencyScale)
	}
	notifySvc := notification.NewService(collab, hub, clock, logger)
	sim := notification.NewSimulator(notifySvc, clock, rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg.NotifySimMin, cfg.NotifySimMax, logger)

	weatherSvc := weather.NewService(weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, weatherTimeout),
		clock, weatherMaxAge, logger)

	c := cron.New()
	if _, err := triageSvc.Schedule(c, cfg.TriageRefresh); err != nil {
		return nil, fmt.Errorf("schedule triage refresh: %w", err)
	}
	if _, err := weatherSvc.Schedule(c, cfg.WeatherRefresh); err != nil {
		return nil, fmt.Errorf("schedule weather refresh: %w", err)
	}

	v := validation.New()
	if err := v.RegisterString("mental_status", triage.ValidMentalStatus); err != nil {
		return nil, err
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = v

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit("1M", cfg.UploadMaxBytes+1<<20))
	e.Use(middleware.RequestTimeout(requestTimeout))

	jwtMW := auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     tokenIssuer,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	})
	loginMW := auth.RequireLogin(store, logger)

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1", jwtMW, loginMW, middleware.RateLimit(rateLimitCfg), middleware.Audit(logger))

	issuer := &auth.Issuer{Key: []byte(cfg.AuthSigningKey), Issuer: tokenIssuer, TTL: cfg.AuthTokenTTL}
	auth.NewLoginHandler(issuer, store, logger).RegisterRoutes(apiV1, apiV1)

	triage.NewHandler(triageSvc).RegisterRoutes(apiV1)
	incident.NewHandler(triageSvc).RegisterRoutes(apiV1)
	course.NewHandler(courseSvc, logger).RegisterRoutes(apiV1)
	assessment.NewHandler(assessSvc, logger).RegisterRoutes(apiV1)
	notification.NewHandler(notifySvc).RegisterRoutes(apiV1)
	weather.NewHandler(weatherSvc).RegisterRoutes(apiV1)

	websocket.NewWebSocketHandler(hub).RegisterRoutes(e, jwtMW, loginMW)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"version": "0.1.0",
			"websocket": map[string]int{
				"clients":       hub.ClientCount(),
				"notifications": hub.TopicCount(notification.Topic),
				"triage":        hub.TopicCount(triage.Topic),
			},
		})
	})
	e.GET("/health/db", db.HealthHandler(cfg.StoreBackend, back.ping, back.pool))

	return &app{echo: e, cron: c, simulator: sim, dwell: dwell, hub: hub, backend: back}, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	back, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open progress store")
	}
	defer back.close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("progress store ready")

	a, err := newApp(cfg, logger, timer.Real(), back)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble server")
	}

	a.cron.Start()
	simHandle := a.simulator.Start(ctx)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	simHandle.Stop()
	<-a.cron.Stop().Done()
	a.dwell.Close()
	a.hub.BroadcastAll(shutdownEvent(time.Now()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
