package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/audit"
	"github.com/gatewarden/gatewarden/config"
	"github.com/gatewarden/gatewarden/controller"
	"github.com/gatewarden/gatewarden/dao"
	"github.com/gatewarden/gatewarden/db"
	logger "github.com/gatewarden/gatewarden/logging"
	"github.com/gatewarden/gatewarden/pdp/engine"
	"github.com/gatewarden/gatewarden/retention"
	"github.com/gatewarden/gatewarden/router"
	"github.com/gatewarden/gatewarden/service"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger()
	defer logger.Sync()

	// Initialize Postgres
	if err := db.InitPostgres(); err != nil {
		logger.Fatal("Failed to initialize Postgres", zap.Error(err))
	}
	defer db.ClosePostgres()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	queryTimeout := config.GetDuration("postgres.queryTimeout")

	// Initialize DAOs
	resourceDAO := dao.NewResourceDAO(db.PgPool, queryTimeout)
	sessionDAO := dao.NewSessionDAO()
	retentionDAO := dao.NewRetentionDAO(db.PgPool, queryTimeout)

	// Pick the audit sink
	auditRepo, err := newAuditRepository()
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}

	// Initialize the verification pipeline
	resolver := engine.NewResolver(resourceDAO, sessionDAO, engine.Config{
		MaxKeys:       config.GetInt("cache.maxKeys"),
		SweepInterval: config.GetDuration("cache.sweepInterval"),
		ResourceTTL:   config.GetDuration("cache.resourceTTL"),
		RulesTTL:      config.GetDuration("cache.rulesTTL"),
		SessionTTL:    config.GetDuration("cache.sessionTTL"),
		GrantTTL:      config.GetDuration("cache.grantTTL"),
	})

	redirects := engine.NewRedirectPolicy(config.GetString("gateway.challengePathPrefix"))

	gate := retention.NewGate(retentionDAO, retention.GateConfig{
		MaxKeys:       config.GetInt("cache.maxKeys"),
		SweepInterval: config.GetDuration("cache.sweepInterval"),
		TTL:           config.GetDuration("cache.retentionFlagTTL"),
		DefaultOpen:   config.GetBool("audit.retentionDefaultOpen"),
	})

	batcher := audit.NewBatcher(auditRepo, gate, audit.BatcherConfig{
		BatchSize:       config.GetInt("audit.batchSize"),
		MaxBufferSize:   config.GetInt("audit.maxBufferSize"),
		FlushInterval:   config.GetDuration("audit.flushInterval"),
		MaxRetries:      config.GetInt("audit.maxRetries"),
		RetryBackoff:    config.GetDuration("audit.retryBackoff"),
		RetryBackoffCap: config.GetDuration("audit.retryBackoffCap"),
		WriteTimeout:    config.GetDuration("audit.writeTimeout"),
	})
	batcher.Start()

	scheduler := retention.NewScheduler(retentionDAO, auditRepo,
		config.GetDuration("retention.sweepInterval"),
		config.GetDuration("outbound.timeout"))
	scheduler.Start()

	// Initialize services and controllers
	verifyService := service.NewVerifyService(resolver, redirects, batcher)
	verifyController := controller.NewVerifyController(verifyService, config.GetString("gateway.sessionCookie"))

	// Set up the server
	engineRouter := router.SetupRouter(
		verifyController,
		config.GetInt("ratelimit.requests"),
		config.GetDuration("ratelimit.window"),
	)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engineRouter,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop background work and drain pending audit records before the
	// storage clients close.
	scheduler.Stop()
	batcher.Shutdown(ctx)

	logger.Info("Server exiting")
}

func newAuditRepository() (audit.Repository, error) {
	switch backend := config.GetString("audit.backend"); backend {
	case "elasticsearch":
		return audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	case "postgres":
		return audit.NewPostgresRepository(db.PgPool), nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", backend)
	}
}
