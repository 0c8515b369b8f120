package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"adstudio-server/internal/config"
	"adstudio-server/internal/handler"
	applogger "adstudio-server/internal/logger"
	"adstudio-server/internal/messaging"
	"adstudio-server/internal/models"
	"adstudio-server/internal/orchestrator"
	"adstudio-server/internal/provider"
	"adstudio-server/internal/repository"
	"adstudio-server/internal/ws"
)

const jobUpdatesQueue = "adstudio_job_updates"

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	logger, err := applogger.New(applogger.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))
	zap.L().Info("Configuration loaded")

	// --- External Connections ---
	pgPool, err := setupPostgres(cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()
	zap.L().Info("Connected to PostgreSQL")

	if err := repository.ApplyMigrations("migrations", cfg.GetDSN(), logger); err != nil {
		zap.L().Fatal("Failed to apply migrations", zap.Error(err))
	}

	redisClient, err := setupRedis(cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	zap.L().Info("Connected to Redis")

	mqConn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
	if err != nil {
		zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()
	zap.L().Info("Connected to RabbitMQ")

	// --- Dependency Injection ---
	canvasRepo := repository.NewPgCanvasRepository(pgPool, logger)
	creditRepo := repository.NewPgCreditRepository(pgPool, logger)
	sessionStore := repository.NewRedisSessionStore(redisClient, logger)

	videoClient := provider.NewVideoClient(provider.VideoClientConfig{
		BaseURL:    cfg.VideoProviderBaseURL,
		APIKey:     cfg.VideoProviderAPIKey,
		Timeout:    cfg.VideoProviderTimeout,
		MaxRetries: cfg.VideoProviderMaxRetries,
		RetryDelay: cfg.VideoProviderRetryDelay,
	}, logger)
	bgClient := provider.NewBgRemovalClient(provider.BgRemovalClientConfig{
		BaseURL: cfg.BgRemovalBaseURL,
		Timeout: cfg.BgRemovalTimeout,
	}, logger)
	scriptClient, err := provider.NewScriptClient(provider.ScriptClientConfig{
		APIKey:  cfg.AIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	}, logger)
	if err != nil {
		zap.L().Fatal("Failed to create script client", zap.Error(err))
	}

	jobEventPublisher, err := messaging.NewRabbitMQJobEventPublisher(mqConn, jobUpdatesQueue, logger)
	if err != nil {
		zap.L().Fatal("Failed to create job event publisher", zap.Error(err))
	}

	wsManager := ws.NewManager(logger)
	notifier := ws.NewJobUpdateNotifier(wsManager, jobEventPublisher, logger)

	sessions := orchestrator.NewSessionManager(sessionStore, canvasRepo, creditRepo, cfg.SessionTTL, logger)
	poller := orchestrator.NewPoller(videoClient, canvasRepo, sessions, notifier, cfg.PollInterval, logger)
	gateway := orchestrator.NewGateway(canvasRepo, creditRepo, videoClient, sessions, poller, logger)
	scriptGate := orchestrator.NewScriptGate(scriptClient, gateway, sessions, logger)
	imageService := orchestrator.NewImageService(bgClient, sessions, logger)

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()
	sessions.StartCleanup(appCtx, cfg.SessionSweepEvery)

	// --- Rate Limiter Middleware Setup ---
	rateLimitStore := ratelimit.RedisStore(&ratelimit.RedisOptions{
		RedisClient: redisClient,
		Rate:        time.Minute,
		Limit:       uint(cfg.RateLimitPerMinute),
	})
	rateLimitMiddleware := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			zap.L().Warn("Rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Code:    "RATE_LIMITED",
				Message: "Too many requests, try again in " + time.Until(info.ResetTime).String(),
			})
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
	zap.L().Info("Rate limiter middleware initialized")

	httpHandler := handler.NewHandler(sessions, gateway, scriptGate, imageService, wsManager, logger)
	authMiddleware := handler.AuthMiddleware(cfg.JWTSecret, logger)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(handler.GinZapLogger(logger))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	allowedOrigins := cfg.GetAllowedOrigins()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Session-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	httpHandler.RegisterRoutes(router, authMiddleware, rateLimitMiddleware)

	// Prometheus middleware goes on after the routes so it sees them all.
	p.Use(router)

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.ServerPort))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	// Stop the pollers first so no more provider calls go out, then close
	// client connections and the publisher, then the HTTP server.
	appCancel()
	poller.Stop()
	wsManager.CloseAll()
	if err := jobEventPublisher.Close(); err != nil {
		zap.L().Error("Error closing job event publisher", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

// setupPostgres initializes the PostgreSQL connection pool with retry logic.
func setupPostgres(cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	var pool *pgxpool.Pool
	var lastErr error
	maxRetries := 50
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		attempt := i + 1
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		pool, err = pgxpool.NewWithConfig(connectCtx, poolConfig)
		connectCancel()

		if err != nil {
			lastErr = fmt.Errorf("unable to create postgres connection pool (attempt %d/%d): %w", attempt, maxRetries, err)
			zap.L().Warn("Postgres connection pool creation failed, retrying...",
				zap.Int("attempt", attempt), zap.Error(err))
			if i < maxRetries-1 {
				time.Sleep(retryDelay)
			}
			continue
		}

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = pool.Ping(pingCtx)
		pingCancel()

		if err == nil {
			zap.L().Info("Connected and pinged PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}

		pool.Close()
		lastErr = fmt.Errorf("unable to ping postgres database (attempt %d/%d): %w", attempt, maxRetries, err)
		zap.L().Warn("Postgres ping failed, retrying...",
			zap.Int("attempt", attempt), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, lastErr)
}

// setupRedis initializes the Redis client with retry logic.
func setupRedis(cfg *config.Config) (*redis.Client, error) {
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	var client *redis.Client
	var lastErr error
	maxRetries := 50
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		attempt := i + 1
		client = redis.NewClient(redisOpts)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := client.Ping(pingCtx).Result()
		pingCancel()

		if err == nil {
			zap.L().Info("Connected and pinged Redis", zap.Int("attempt", attempt))
			return client, nil
		}

		client.Close()
		lastErr = fmt.Errorf("unable to ping redis (attempt %d/%d): %w", attempt, maxRetries, err)
		zap.L().Warn("Redis ping failed, retrying...",
			zap.Int("attempt", attempt), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, lastErr)
}

// connectRabbitMQ dials RabbitMQ with retry logic.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 50
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("RabbitMQ dial failed, retrying...",
			zap.Int("attempt", i+1), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", maxRetries, err)
}
