// cmd/campaignworker runs the CampaignRunner fleet: it rehydrates any
// campaign left RUNNING by a prior process, then keeps the queue recovery
// sweep and emergency-halt monitor alive for as long as the process runs.
// Grounded on the teacher's cmd/worker/main.go (DB pool tuning, background
// workers launched with go func()/ctx, signal-driven graceful shutdown).
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/blastcampaign/internal/adaptive"
	"github.com/ignite/blastcampaign/internal/antidetect"
	"github.com/ignite/blastcampaign/internal/config"
	"github.com/ignite/blastcampaign/internal/emergency"
	"github.com/ignite/blastcampaign/internal/emitter"
	"github.com/ignite/blastcampaign/internal/health"
	"github.com/ignite/blastcampaign/internal/pkg/clock"
	"github.com/ignite/blastcampaign/internal/pkg/logger"
	"github.com/ignite/blastcampaign/internal/queue"
	"github.com/ignite/blastcampaign/internal/repository/postgres"
	"github.com/ignite/blastcampaign/internal/runner"
	"github.com/ignite/blastcampaign/internal/transport"
	"github.com/ignite/blastcampaign/internal/validation"
)

func main() {
	logger.Info("worker: starting campaignworker")

	cfgPath := "config/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("worker: load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("worker: connect database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime())

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("worker: ping database: %v", err)
	}
	logger.Info("worker: connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			opts = &redis.Options{Addr: cfg.Redis.URL}
		}
		redisClient = redis.NewClient(opts)
		rc, rcancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(rc).Err(); err != nil {
			logger.Warn("worker: redis ping failed, L2 validation cache disabled", "error", err.Error())
			redisClient.Close()
			redisClient = nil
		} else {
			logger.Info("worker: redis connected")
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

	registry := runner.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rehydrateRunningCampaigns(ctx, campaignRepo, deps, registry)

	recoveryWorker := queue.NewRecoveryWorker(queueStore, deps.Clock, cfg.Runner.RecoveryInterval(), cfg.Runner.StaleClaimAge())
	go recoveryWorker.Run(ctx)
	logger.Info("worker: queue recovery sweep started", "interval", cfg.Runner.RecoveryInterval().String())

	// The emergency monitor's pause/warn thresholds are derived from config
	// percentages (§4.9's ≥5% pause / ≥3% warn lifetime-failure-rate
	// guidance) rather than the teacher's fixed 25%/1% ISP literals, which
	// this domain's per-channel failure profile runs far hotter than; see
	// DESIGN.md. TransientRate5m/BlockRate1h keep the teacher's literals —
	// §4.9 only redefines the lifetime failure-rate tiers.
	thresholds := emergency.Thresholds{
		FailureRatePause: cfg.Emergency.PauseThresholdPct / 100,
		FailureRateWarn:  cfg.Emergency.WarnThresholdPct / 100,
		TransientRate5m:  emergency.DefaultThresholds().TransientRate5m,
		BlockRate1h:      emergency.DefaultThresholds().BlockRate1h,
	}
	emergencyMonitor := emergency.NewMonitor(thresholds, deps.Clock, cfg.Emergency.SweepInterval(),
		snapshotFunc(registry), registry.Lookup, deps.Emitter)
	go emergencyMonitor.Run(ctx)
	logger.Info("worker: emergency monitor started", "interval", cfg.Emergency.SweepInterval().String())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker: shutting down")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := registry.StopAll(stopCtx); err != nil {
		logger.Warn("worker: error pausing runners during shutdown", "error", err.Error())
	}

	logger.Info("worker: stopped")
}

// rehydrateRunningCampaigns restarts a Runner for every campaign the
// database still shows as RUNNING, the case after this process crashed or
// was redeployed mid-campaign (§4.7 restart semantics: in-flight item
// reclaimed by the recovery sweep, everything else resumes where it left
// off).
func rehydrateRunningCampaigns(ctx context.Context, repo *postgres.CampaignRepo, deps runner.Deps, registry *runner.Registry) {
	campaigns, err := repo.ListRunning(ctx)
	if err != nil {
		logger.Warn("worker: failed to list running campaigns for rehydration", "error", err.Error())
		return
	}
	for i := range campaigns {
		c := campaigns[i]
		rn := runner.New(&c, deps, time.Now().UnixNano())
		if err := rn.Rehydrate(ctx); err != nil {
			logger.Warn("worker: rehydrate failed", "campaign_id", c.CampaignID, "error", err.Error())
			continue
		}
		registry.Add(rn)
		logger.Info("worker: rehydrated campaign", "campaign_id", c.CampaignID)
	}
	if len(campaigns) > 0 {
		logger.Info("worker: rehydration complete", "count", len(campaigns))
	}
}

// snapshotFunc adapts Registry + queue stats into the per-campaign
// emergency.Snapshot windows the monitor evaluates. The queue schema does
// not retain a rolling 5m/1h event log, so this approximates the recent
// window from each live campaign's lifetime counters — adequate for the
// monitor's "is this campaign currently on fire" question, not a precise
// rolling rate.
func snapshotFunc(registry *runner.Registry) func(ctx context.Context) ([]emergency.Snapshot, error) {
	return func(ctx context.Context) ([]emergency.Snapshot, error) {
		campaigns := registry.Snapshots()
		snaps := make([]emergency.Snapshot, 0, len(campaigns))
		for _, c := range campaigns {
			snaps = append(snaps, emergency.Snapshot{
				CampaignID: c.CampaignID,
				TenantID:   c.TenantID,
				Sent5m:     c.Sent + c.Failed,
				Failed5m:   c.Failed,
				Sent1h:     c.Sent + c.Failed,
				Blocked1h:  0,
			})
		}
		return snaps, nil
	}
}
