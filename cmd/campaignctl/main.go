// cmd/campaignctl serves the §6 control-plane HTTP API: campaign
// creation, lifecycle transitions, state queries, and the per-tenant SSE
// event stream. Grounded on the teacher's cmd/server/main.go startup
// sequence (config load, DB/Redis wiring, signal-driven graceful
// shutdown), trimmed to this domain's dependency surface — campaignctl
// has no ESP/ad-network/CRM integrations to assemble.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/blastcampaign/internal/adaptive"
	"github.com/ignite/blastcampaign/internal/antidetect"
	"github.com/ignite/blastcampaign/internal/config"
	"github.com/ignite/blastcampaign/internal/controlplane"
	"github.com/ignite/blastcampaign/internal/emitter"
	"github.com/ignite/blastcampaign/internal/health"
	"github.com/ignite/blastcampaign/internal/pkg/clock"
	"github.com/ignite/blastcampaign/internal/pkg/distlock"
	"github.com/ignite/blastcampaign/internal/pkg/logger"
	"github.com/ignite/blastcampaign/internal/queue"
	"github.com/ignite/blastcampaign/internal/repository/postgres"
	"github.com/ignite/blastcampaign/internal/runner"
	"github.com/ignite/blastcampaign/internal/transport"
	"github.com/ignite/blastcampaign/internal/validation"
)

func main() {
	logger.Info("campaignctl: starting control plane")

	cfgPath := "config/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("campaignctl: load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("campaignctl: connect database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime())

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("campaignctl: ping database: %v", err)
	}
	logger.Info("campaignctl: connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			opts = &redis.Options{Addr: cfg.Redis.URL}
		}
		redisClient = redis.NewClient(opts)
		rc, rcancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(rc).Err(); err != nil {
			logger.Warn("campaignctl: redis ping failed, L2 validation cache disabled", "error", err.Error())
			redisClient.Close()
			redisClient = nil
		}
		rcancel()
	}

	campaignRepo := postgres.NewCampaignRepo(db)
	validationStore := postgres.NewValidationStore(db)
	queueStore := queue.NewPostgresStore(db)

	transportBaseURL := os.Getenv("CHAT_PLATFORM_BASE_URL")
	transportAPIKey := os.Getenv("CHAT_PLATFORM_API_KEY")
	chatTransport := transport.NewHTTPTransport(transportBaseURL, transportAPIKey, nil)

	validationCache := validation.NewCache(validation.Config{
		L1TTL: cfg.Validation.L1TTL(),
		L2TTL: cfg.Validation.L2TTL(),
		L3TTL: cfg.Validation.L3TTL(),
	}, redisClient, validationStore)

	deps := runner.Deps{
		Repo:       campaignRepo,
		Queue:      queueStore,
		Validation: validationCache,
		Transport:  chatTransport,
		AntiDetect: antidetect.NewEngine(),
		Adaptive:   adaptive.NewController(nil),
		Health:     health.NewMonitor(nil),
		Emitter:    emitter.New(),
		Clock:      clock.NewReal(),
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	backgroundValidation := validation.NewBackgroundQueue(validationCache, deps.Clock, rand.New(rand.NewSource(time.Now().UnixNano())))
	backgroundValidation.Start(bgCtx)

	handlers := &controlplane.Handlers{
		Deps:     deps,
		Registry: runner.NewRegistry(),
		Locker: func(key string) distlock.DistLock {
			return distlock.NewLock(redisClient, db, key, 30*time.Second)
		},
		BackgroundValidation: backgroundValidation,
		WarmWindow:           cfg.Validation.WarmWindow(),
	}
	router := controlplane.SetupRoutes(handlers)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("campaignctl: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("campaignctl: server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("campaignctl: shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("campaignctl: shutdown error", "error", err.Error())
	}

	logger.Info("campaignctl: stopped")
}
