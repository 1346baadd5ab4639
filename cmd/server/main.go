package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/themobileprof/telecare-be/internal/api"
	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/chat"
	"github.com/themobileprof/telecare-be/internal/config"
	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/internal/triage"
	"github.com/themobileprof/telecare-be/internal/ws"
	"github.com/themobileprof/telecare-be/pkg/auth"
	"github.com/themobileprof/telecare-be/pkg/logger"
	"github.com/themobileprof/telecare-be/pkg/metrics"
)

const maxBodyBytes = 10 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zlog = zlog.With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Environment))

	// Initialize database
	database, err := db.New(db.Config{
		URL:             cfg.Database.URL,
		MaxConnections:  cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx)
		cancel()
		if err != nil {
			zlog.Fatal("failed to apply schema", zap.Error(err))
		}
		zlog.Info("database schema applied")
	}
	zlog.Info("database connected")

	// Initialize components
	collector := metrics.NewCollector(cfg.App.Name)
	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)

	realtime := ws.NewRouter(ws.NewAuthenticator(tokens, database), collector, zlog.Named("realtime"), ws.Options{
		SendBuffer:        cfg.Realtime.SendBuffer,
		MessagesPerMinute: cfg.Realtime.MessagesPerMinute,
		PingInterval:      cfg.Realtime.PingInterval,
		PongWait:          cfg.Realtime.PongWait,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
	})

	triageService := triage.NewService(database, collector, zlog.Named("triage"))
	chatService := chat.NewService(database, realtime, zlog.Named("chat"))

	// Initialize handlers
	apiLog := zlog.Named("api")
	handlers := &api.Handlers{
		Auth:         api.NewAuthHandler(database, tokens, apiLog),
		Triage:       api.NewTriageHandler(triageService, apiLog),
		Chat:         api.NewChatHandler(chatService, apiLog),
		Appointments: api.NewAppointmentHandler(database, collector, apiLog),
		Records:      api.NewRecordHandler(database, apiLog),
		Admin:        api.NewAdminHandler(database, realtime, apiLog),
	}

	// Rate limiters: per IP before auth, per user after it
	perSecond := rate.Limit(cfg.RateLimit.RequestsPerMinute / 60.0)
	ipLimiter := middleware.NewRateLimiter(perSecond, cfg.RateLimit.Burst)
	defer ipLimiter.Stop()
	userLimiter := middleware.NewRateLimiter(perSecond, cfg.RateLimit.Burst)
	defer userLimiter.Stop()

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(zlog.Named("http")))
	router.Use(middleware.RequestMetrics(collector))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := database.PingContext(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":      status,
			"online":      realtime.OnlineCount(),
			"timestamp":   time.Now().UTC(),
			"environment": cfg.App.Environment,
		})
	})
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	// Realtime channel authenticates on the handshake itself
	router.GET("/ws", realtime.ServeWS)

	apiGroup := router.Group("", middleware.PerIP(ipLimiter), middleware.BodyLimit(maxBodyBytes))
	handlers.Register(apiGroup, tokens, database, middleware.PerUser(userLimiter))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		zlog.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	// Hijacked websocket connections are not tracked by Shutdown
	realtime.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}
