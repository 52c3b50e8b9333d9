package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the economic constants and infra endpoints from spec.md §6.
type Config struct {
	AppPort     string
	DatabaseURL string
	RedisURL    string
	SecretKey   string
	DictionaryPath string
	PromptsPath    string

	StartingBalance int64
	DailyBonus      int64

	PromptCost       int64
	CopyCostNormal   int64
	CopyCostDiscount int64
	VoteCost         int64

	CorrectVotePayout  int64
	BasePrizePool      int64
	DiscountThreshold  int
	MaxOutstandingPrompts int

	PromptWindow time.Duration
	CopyWindow   time.Duration
	VoteWindow   time.Duration
	GraceBand    time.Duration

	ThirdVoteWindow time.Duration
	FifthVoteWindow time.Duration
	MaxVotes        int

	AbandonedCooldown time.Duration
	SimilarityThreshold float64

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	SweepInterval time.Duration

	LogLevel string
	LogJSON  bool
}

func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	secretKey := os.Getenv("SECRET_KEY")
	if secretKey == "" {
		log.Fatal("SECRET_KEY is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	dictPath := os.Getenv("DICTIONARY_PATH")
	if dictPath == "" {
		dictPath = "internal/engine/testdata/naspa.txt"
	}

	promptsPath := os.Getenv("PROMPTS_PATH")
	if promptsPath == "" {
		promptsPath = "internal/engine/testdata/prompts.txt"
	}

	return &Config{
		AppPort:        port,
		DatabaseURL:    dbURL,
		RedisURL:       os.Getenv("REDIS_URL"),
		SecretKey:      secretKey,
		DictionaryPath: dictPath,
		PromptsPath:    promptsPath,

		StartingBalance: envInt64("STARTING_BALANCE", 1000),
		DailyBonus:      envInt64("DAILY_BONUS", 100),

		PromptCost:       envInt64("PROMPT_COST", 100),
		CopyCostNormal:   envInt64("COPY_COST_NORMAL", 100),
		CopyCostDiscount: envInt64("COPY_COST_DISCOUNT", 90),
		VoteCost:         envInt64("VOTE_COST", 1),

		CorrectVotePayout:     envInt64("CORRECT_VOTE_PAYOUT", 5),
		BasePrizePool:         envInt64("BASE_PRIZE_POOL", 300),
		DiscountThreshold:     envInt("DISCOUNT_THRESHOLD", 10),
		MaxOutstandingPrompts: envInt("MAX_OUTSTANDING_PROMPTS", 10),

		PromptWindow: envSeconds("PROMPT_WINDOW_SECONDS", 180),
		CopyWindow:   envSeconds("COPY_WINDOW_SECONDS", 180),
		VoteWindow:   envSeconds("VOTE_WINDOW_SECONDS", 60),
		GraceBand:    envSeconds("GRACE_BAND_SECONDS", 5),

		ThirdVoteWindow: envSeconds("THIRD_VOTE_WINDOW_SECONDS", 600),
		FifthVoteWindow: envSeconds("FIFTH_VOTE_WINDOW_SECONDS", 60),
		MaxVotes:        envInt("MAX_VOTES", 20),

		AbandonedCooldown:   time.Duration(envInt("ABANDONED_COOLDOWN_HOURS", 24)) * time.Hour,
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.85),

		AccessTokenTTL:  envSeconds("ACCESS_TOKEN_TTL_SECONDS", 900),
		RefreshTokenTTL: time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,

		SweepInterval: envSeconds("SWEEP_INTERVAL_SECONDS", 5),

		LogLevel: envString("LOG_LEVEL", "info"),
		LogJSON:  envBool("LOG_JSON", false),
	}
}

// TimeoutPenalty is the $10 penalty for both prompt and copy timeouts, fixed
// per spec.md §4.6 and not configurable — it is the difference between the
// normal cost and the refund, not an independent knob.
const TimeoutPenalty = 10

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(envInt(key, defSeconds)) * time.Second
}
