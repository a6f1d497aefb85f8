package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tigertrust/lendgate/internal/chain"
	"github.com/tigertrust/lendgate/internal/config"
	"github.com/tigertrust/lendgate/internal/handler"
	"github.com/tigertrust/lendgate/internal/messaging"
	"github.com/tigertrust/lendgate/internal/middleware"
	"github.com/tigertrust/lendgate/internal/pkg/logger"
	"github.com/tigertrust/lendgate/internal/repository"
	"github.com/tigertrust/lendgate/internal/service"
	"github.com/tigertrust/lendgate/internal/stream"
)

// ledger is what lendgate needs from the loan store.
type ledger interface {
	service.DebtSource
	service.RepaymentHistory
}

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	tiers, err := cfg.TierTable()
	if err != nil {
		log.Fatalf("Invalid tier table: %v", err)
	}
	timeout := cfg.Upstream.Timeout()

	// 2. Initialize Persistence
	// Profiles / loans / audit (Postgres > Memory)
	var (
		profiles  service.ProfileStore
		loans     ledger
		auditRepo service.AuditRepo
		pgAudit   *repository.PostgresAuditRepo
		redisConn *repository.RedisClient
		history   service.ApplicationHistory
		idemStore middleware.IdempotencyStore
		chainRead service.ChainReader
		solana    *chain.SolanaReader
	)
	var publisher messaging.DecisionPublisher = messaging.NoopPublisher{}
	idemTTL := time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			profiles = repository.NewPostgresProfileStore(db)
			loans = repository.NewPostgresLoanLedger(db)
			pgAudit = repository.NewPostgresAuditRepo(db)
			auditRepo = pgAudit
		} else {
			logger.Error("⚠️ Failed to connect to DB, falling back to memory", "error", err)
		}
	}
	if profiles == nil {
		logger.Warn("profile and loan stores are in-memory and start empty")
		profiles = service.NewMemoryProfileStore()
		loans = service.NewMemoryLoanLedger()
	}

	// Velocity window / idempotency (Redis > Memory)
	if cfg.Redis.Addr != "" {
		redisConn, err = repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			history = repository.NewRedisApplicationHistory(redisConn)
			idemStore = repository.NewRedisIdempotencyStore(redisConn, idemTTL)
			if auditRepo == nil {
				auditRepo = repository.NewRedisAuditRepo(redisConn, 0)
			}
		} else {
			logger.Error("⚠️ Failed to connect to Redis, falling back to memory", "error", err)
			redisConn = nil
		}
	}
	if history == nil {
		history = service.NewMemoryApplicationHistory()
		idemStore = middleware.NewInMemIdempotencyStore(idemTTL)
	}

	// Chain reads (Solana RPC > Memory)
	if cfg.Chain.RPCURL != "" {
		solana = chain.NewSolanaReader(cfg.Chain.RPCURL, cfg.Chain.HistoryLimit, timeout)
		chainRead = solana
	} else {
		logger.Warn("chain.rpc_url not set, wallet scoring uses an empty in-memory chain")
		chainRead = service.NewMemoryChainReader()
	}

	// Decision events (Kafka > Noop)
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.DecisionTopic, 0)
		logger.Info("✅ Publishing decisions to Kafka", "topic", cfg.Kafka.DecisionTopic)
	}

	// 3. Initialize Core Services
	oracle := service.ProfileIncomeOracle{Floor: cfg.Income.Floor, PerPoint: cfg.Income.PerPoint, Cap: cfg.Income.Cap}
	eligibility := service.NewEligibilityCalculator(profiles, loans, oracle, timeout)
	rules := service.LendingRules{
		MinMonthlyIncome: cfg.Lending.MinMonthlyIncome,
		MinLoanAmount:    cfg.Lending.MinLoanAmount,
		Terms:            cfg.RepaymentTerms(),
	}
	pipeline := service.NewDecisionPipeline(tiers, rules, eligibility, history, timeout)

	reputation := service.NewReputationService(profiles, loans)
	aggregator := service.NewFeatureAggregator(chainRead, reputation, timeout).
		WithSignatureLimit(cfg.Chain.SignatureLimit)
	scoring := service.NewScoringService(aggregator, cfg.Recalc.BatchMax)

	hub := stream.NewHub()
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	recalc := service.NewRecalcWorker(scoring, hub, cfg.Recalc.Workers, cfg.Recalc.QueueSize)
	recalc.Start(workerCtx)

	auditSvc, err := service.NewAuditService(cfg.Audit.Dir, auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}
	if pgAudit != nil && cfg.Audit.RetentionDays > 0 {
		go runAuditCleanup(workerCtx, pgAudit, time.Duration(cfg.Audit.RetentionDays)*24*time.Hour)
	}

	// 4. Initialize Handlers
	loanHandler := handler.NewLoanHandler(pipeline, history, publisher)
	scoreHandler := handler.NewScoreHandler(scoring, recalc)
	profileHandler := handler.NewProfileHandler(profiles)
	streamHandler := handler.NewStreamHandler(hub)
	auditHandler := handler.NewAuditHandler(auditSvc)

	// 5. Setup Router
	r := gin.Default()

	// Global Middleware; audit sits outside ErrorHandler so it sees rendered errors
	r.Use(middleware.ClientMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))
	r.Use(middleware.ErrorHandler())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "lendgate", "tier_version": tiers.Version()})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(middleware.NewClientLimiter(cfg.RateLimit.QPS, cfg.RateLimit.Burst)))
	{
		v1.GET("/tiers", loanHandler.ListTiers)
		v1.GET("/eligibility/:wallet", loanHandler.Eligibility)
		v1.POST("/loans/apply",
			middleware.LendingPauseMiddleware(cfg.Server.ReadOnly),
			middleware.IdempotencyMiddleware(idemStore),
			loanHandler.Apply,
		)
		v1.POST("/score", scoreHandler.Score)
		v1.POST("/score/batch", scoreHandler.Batch)
		v1.POST("/score/recalculate", scoreHandler.Recalculate)
		v1.POST("/wallets/:wallet/score", scoreHandler.WalletScore)
		v1.GET("/profiles/:wallet", profileHandler.Get)
		v1.GET("/stream/scores", streamHandler.Scores)
		v1.GET("/audit", auditHandler.List)
	}

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 LendGate started", "port", cfg.Server.Port, "tiers", tiers.Version(), "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// drain queued recalculations before cancelling their context
	recalc.Stop()
	cancelWorkers()

	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close decision publisher", "error", err)
	}
	auditSvc.Close()
	if solana != nil {
		solana.Close()
	}
	if redisConn != nil {
		_ = redisConn.Close()
	}

	logger.Info("Server exiting")
}

func runAuditCleanup(ctx context.Context, repo *repository.PostgresAuditRepo, retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if err := repo.Cleanup(ctx, retention); err != nil {
			logger.Warn("audit cleanup failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
