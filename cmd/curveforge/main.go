package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ares_api/internal/capital"
	"ares_api/internal/config"
	"ares_api/internal/consensus"
	"ares_api/internal/eventbus"
	"ares_api/internal/executor"
	"ares_api/internal/graduation"
	"ares_api/internal/models"
	"ares_api/internal/monitor"
	"ares_api/internal/observability"
	"ares_api/internal/onchain"
	"ares_api/internal/position"
	"ares_api/internal/repositories"
	"ares_api/internal/signer"
	"ares_api/internal/strategy"
	"ares_api/internal/subscribers"
	"ares_api/internal/txbuilder"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DBDSN()), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		log.Fatal("db connection failed: ", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("db handle failed: ", err)
	}
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.Strategy{},
		&models.Edge{},
		&models.Position{},
		&models.Trade{},
		&models.ConsensusDecision{},
		&models.ReviewResult{},
		&observability.ServiceLog{},
		&observability.ServiceMetric{},
	); err != nil {
		log.Fatal("schema migration failed: ", err)
	}

	otelShutdown, err := observability.SetupOTelSDK(context.Background())
	if err != nil {
		log.Fatal("otel setup failed: ", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	svcLog := observability.NewLogger(db, "curveforge")
	metrics := observability.NewMetricsCollector(db, "curveforge")
	svcLog.Info(ctx, "curveforge starting", nil)

	eb := eventbus.NewEventBus()
	defer eb.Close()

	if cfg.RedisAddr != "" {
		bridge, err := eventbus.NewRedisBridge(cfg.RedisAddr, eb)
		if err != nil {
			log.Printf("[curveforge] redis bridge unavailable, running single-process: %v", err)
		} else {
			defer bridge.Close()
			for _, topic := range []string{
				eventbus.TopicEdgeDetected, eventbus.TopicEdgeExecuting, eventbus.TopicEdgeExecuted, eventbus.TopicEdgeFailed,
				eventbus.TopicPositionExitCompleted,
				eventbus.TopicCurveGraduationImminent, eventbus.TopicCurveGraduating,
				eventbus.TopicCurveGraduated, eventbus.TopicCurveGraduationFailed,
				eventbus.TopicConsensusApproved, eventbus.TopicConsensusRejected,
			} {
				if err := bridge.MirrorTopic(topic); err != nil {
					log.Printf("[curveforge] failed to mirror topic %s: %v", topic, err)
				}
			}
		}
	}

	rpcClient := rpc.New(cfg.RPCEndpoint)
	fetcher := onchain.NewFetcher(rpcClient)

	builder := txbuilder.NewBuilder(rpcClient, txbuilder.Config{
		ComputeUnitLimit:         cfg.ComputeUnitLimit,
		PriorityFeeMicroLamports: cfg.PriorityFeeMicroLamports,
		GlobalState:              onchain.ResolveAccount(cfg.GlobalStateOverride, onchain.DefaultGlobalState),
		FeeRecipient:             onchain.ResolveAccount(cfg.FeeRecipientOverride, onchain.DefaultFeeRecipient),
		EventAuthority:           onchain.ResolveAccount(cfg.EventAuthorityOverride, onchain.DefaultEventAuthority),
		FeeProgram:               onchain.ResolveAccount(cfg.FeeProgramOverride, onchain.DefaultFeeProgram),
	})

	capitalMgr := capital.NewManager()

	strategyRepo := repositories.NewStrategyRepository(db)
	strategyRegistry, err := strategy.NewRegistry(strategyRepo)
	if err != nil {
		log.Fatal("load strategy registry failed: ", err)
	}
	if loaded, err := strategyRepo.ListAll(); err != nil {
		log.Printf("[curveforge] failed to list strategies for capital ceilings: %v", err)
	} else {
		for i := range loaded {
			s := loaded[i]
			risk := s.Risk()
			maxAlloc := risk.MaxAllocationPercent
			if maxAlloc == 0 {
				maxAlloc = cfg.DefaultMaxAllocationPercent
			}
			maxPos := risk.MaxPositions
			if maxPos == 0 {
				maxPos = cfg.DefaultMaxPositions
			}
			capitalMgr.RegisterStrategy(s.StrategyID, maxAlloc, maxPos)
		}
	}

	policyGate := capital.NewPolicyGate(capital.PolicyGateConfig{
		MaxTransactionAmountLamports: cfg.MaxTransactionAmountLamports,
		DailyVolumeLimitLamports:     cfg.DailyVolumeLimitLamports,
		MaxTransactionsPerDay:        cfg.MaxTransactionsPerDay,
		MinProfitThresholdLamports:   cfg.MinProfitThresholdLamports,
	}, capital.RealClock)

	signerImpl, err := signer.New(cfg.WalletPrivateKey, policyGate)
	if err != nil {
		log.Fatal("configure signer failed: ", err)
	}
	if !signerImpl.IsConfigured() {
		log.Println("[curveforge] no wallet key configured, running in detection-only mode")
	}

	positionMgr := position.NewManager(repositories.NewPositionRepository(db), capitalMgr, eb)

	consensusEngine := consensus.New(
		consensus.ParseModels(cfg.ConsensusModels),
		"consensus-panel",
		cfg.ConsensusThreshold,
		cfg.ConsensusTimeout,
		repositories.NewConsensusRepository(db),
	)

	exec := executor.New(
		eb,
		strategyRegistry,
		capitalMgr,
		fetcher,
		builder,
		rpcClient,
		signerImpl,
		positionMgr,
		consensusEngine,
		repositories.NewEdgeRepository(db),
		repositories.NewTradeRepository(db),
		executor.Config{DefaultFeeBps: cfg.DefaultFeeBps, DefaultSlippageBps: cfg.DefaultSlippageBps},
	)
	exec.Subscribe(ctx)

	stream := monitor.NewWSAccountStream(cfg.WSEndpoint)
	if err := stream.Connect(ctx); err != nil {
		log.Printf("[curveforge] account stream connect failed, monitor falls back to polling: %v", err)
	}
	mon := monitor.New(stream, positionMgr, exec, eb)
	go mon.Run(ctx)

	grad := graduation.New(fetcher, graduation.NoopPoolFinder{}, eb)
	go grad.Run(ctx)

	subscribers.NewTradeAuditSubscriber(db).Subscribe(eb)
	analytics := subscribers.NewAnalyticsSubscriber()
	analytics.Subscribe(eb)

	go runReviewLoop(ctx, consensusEngine, cfg.ConsensusReviewInterval)
	go runSystemMetricsLoop(ctx, metrics)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "eventbus": eb.Health()})
	})
	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, analytics.GetStats())
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[curveforge] ops http server shutdown: %v", err)
	}
	if err := stream.Close(); err != nil {
		log.Printf("[curveforge] account stream close: %v", err)
	}
	log.Println("exited")
}

// runReviewLoop drives the consensus engine's periodic-review mode
// (§4.11), independent of any single edge evaluation.
func runReviewLoop(ctx context.Context, engine *consensus.Engine, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.GenerateReview(ctx); err != nil {
				log.Printf("[curveforge] periodic consensus review failed: %v", err)
			}
		}
	}
}

// runSystemMetricsLoop samples host CPU/memory via gopsutil and persists
// them as gauges through the metrics collector, the same way the teacher
// tracks every other service metric.
func runSystemMetricsLoop(ctx context.Context, metrics *observability.MetricsCollector) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
				metrics.RecordGauge("host_cpu_percent", pct[0], nil)
			}
			if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
				metrics.RecordGauge("host_memory_used_percent", vm.UsedPercent, nil)
			}
		}
	}
}
