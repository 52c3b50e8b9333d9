package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quipflip/backend/internal/config"
	"github.com/quipflip/backend/internal/db"
	"github.com/quipflip/backend/internal/engine"
	httpServer "github.com/quipflip/backend/internal/http"
	"github.com/quipflip/backend/internal/http/handlers"
	"github.com/quipflip/backend/internal/http/middleware"
	"github.com/quipflip/backend/internal/lock"
	"github.com/quipflip/backend/internal/logger"
	"github.com/quipflip/backend/internal/repository"
	"github.com/quipflip/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", "error", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, falling back to in-process locking", "error", err)
			redisClient = nil
		}
	}
	locker := lock.NewLocker(redisClient)

	playerRepo := repository.NewPlayerRepository(dbPool)
	roundRepo := repository.NewRoundRepository(dbPool)
	phrasesetRepo := repository.NewPhrasesetRepository(dbPool)
	voteRepo := repository.NewVoteRepository(dbPool)
	transactionRepo := repository.NewTransactionRepository(dbPool)
	sessionRepo := repository.NewSessionRepository(dbPool)
	dailyBonusRepo := repository.NewDailyBonusRepository(dbPool)
	abandonedRepo := repository.NewAbandonedRepository(dbPool)
	resultViewRepo := repository.NewResultViewRepository(dbPool)

	ledger := service.NewLedger(dbPool, playerRepo, transactionRepo)
	jwtIssuer := service.NewJWTIssuer(cfg.SecretKey, cfg.AccessTokenTTL)
	authSvc := service.NewAuthService(playerRepo, sessionRepo, jwtIssuer, cfg.RefreshTokenTTL)
	playerSvc := service.NewPlayerService(dbPool, playerRepo, dailyBonusRepo, ledger, locker, cfg.StartingBalance, cfg.DailyBonus, cfg.MaxOutstandingPrompts)
	queue := service.NewQueueStore(roundRepo, abandonedRepo, locker, cfg.DiscountThreshold, cfg.AbandonedCooldown)

	dict := engine.NewDictionary(mustLoadWordList(cfg.DictionaryPath))
	validator := engine.NewPhraseValidator(dict, engine.NewBigramCosineScorer(), cfg.SimilarityThreshold)
	prompts := engine.NewPromptLibrary(mustLoadWordList(cfg.PromptsPath))

	roundSvc := service.NewRoundService(dbPool, roundRepo, phrasesetRepo, abandonedRepo, playerSvc, ledger, queue, validator, prompts, locker, service.RoundServiceConfig{
		PromptCost:       cfg.PromptCost,
		CopyCostNormal:   cfg.CopyCostNormal,
		CopyCostDiscount: cfg.CopyCostDiscount,
		VoteCost:         cfg.VoteCost,
		BasePrizePool:    cfg.BasePrizePool,
		PromptWindow:     cfg.PromptWindow,
		CopyWindow:       cfg.CopyWindow,
		VoteWindow:       cfg.VoteWindow,
		GraceBand:        cfg.GraceBand,
		TimeoutPenalty:   config.TimeoutPenalty,
	})

	voteSvc := service.NewVoteService(dbPool, roundRepo, phrasesetRepo, voteRepo, resultViewRepo, playerSvc, ledger, locker, service.VoteServiceConfig{
		CorrectVotePayout: cfg.CorrectVotePayout,
		RapidWindow:       cfg.FifthVoteWindow,
		MaxVotes:          cfg.MaxVotes,
		GraceBand:         cfg.GraceBand,
	})

	resultsSvc := service.NewResultsService(dbPool, roundRepo, phrasesetRepo, voteRepo, resultViewRepo, ledger, locker)

	sweeper := service.NewTimeoutSweeper(roundRepo, phrasesetRepo, roundSvc, voteSvc, cfg.SweepInterval, cfg.GraceBand, cfg.ThirdVoteWindow)

	ctx, stop := context.WithCancel(context.Background())
	go sweeper.Run(ctx)

	h := handlers.NewHandler(playerSvc, authSvc, roundSvc, voteSvc, resultsSvc, ledger, queue)

	r := gin.Default()

	// Backstops RedisRateLimit/UserRateLimit, which fail open when Redis is
	// unreachable: an in-process per-IP limiter still applies across every
	// route even if the shared limiter is down.
	r.Use(middleware.SimpleRateLimit(300, time.Minute))

	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	redisAddr, redisPassword, redisDB := "", "", 0
	if redisClient != nil {
		opts := redisClient.Options()
		redisAddr, redisPassword, redisDB = opts.Addr, opts.Password, opts.DB
	}
	middleware.InitRedisRateLimiter(redisAddr, redisPassword, redisDB)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer.RegisterRoutes(r, dbPool, "1.0.0", h, authSvc)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	stop()

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

// mustLoadWordList reads one word per line, skipping blanks — the format
// both the dictionary and the prompt pool are seeded from.
func mustLoadWordList(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		logger.Fatal("load word list", "path", path, "error", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		logger.Fatal("load word list", "path", path, "error", err)
	}
	return words
}
