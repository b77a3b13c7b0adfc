package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Ticket     TicketPolicyConfig
	Scoring    ScoringConfig
	RateLimit  RateLimitConfig
	Escalation EscalationConfig
	Cache      CacheConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// TicketPolicyConfig carries input bounds for ticket creation.
type TicketPolicyConfig struct {
	SubjectMinLen int
	SubjectMaxLen int
	BodyMinLen    int
	BodyMaxLen    int
}

// ScoringConfig names the assignment-score weights. Defaults reproduce the
// production heuristics; all values are env-overridable.
type ScoringConfig struct {
	BaseScore             int
	ExpertiseWeight       int
	LoadPenalty           int
	RecencyBonus          int
	RecencyWindow         time.Duration
	PriorityAffinityBonus int
	AffinityMinLevel      int
}

// RateLimitRule configures one action's sliding window.
type RateLimitRule struct {
	MaxAttempts int
	Window      time.Duration
}

// RateLimitConfig maps action names to their admission rules. Actions
// absent from the map are unrestricted.
type RateLimitConfig struct {
	Rules map[string]RateLimitRule
}

// EscalationConfig controls the overdue sweep.
type EscalationConfig struct {
	Threshold     time.Duration
	SweepInterval time.Duration
	Enabled       bool
}

// CacheConfig controls the workload snapshot cache.
type CacheConfig struct {
	WorkloadTTL time.Duration
	Enabled     bool
}

// Rate-limited action names shared between config and callers.
const (
	ActionCreateTicket       = "CreateTicket"
	ActionSendMessage        = "SendMessage"
	ActionCreateAnnouncement = "CreateAnnouncement"
	ActionRegisterForEvent   = "RegisterForEvent"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "appeal-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Ticket: TicketPolicyConfig{
			SubjectMinLen: getEnvAsInt("TICKET_SUBJECT_MIN_LEN", 5),
			SubjectMaxLen: getEnvAsInt("TICKET_SUBJECT_MAX_LEN", 200),
			BodyMinLen:    getEnvAsInt("TICKET_BODY_MIN_LEN", 10),
			BodyMaxLen:    getEnvAsInt("TICKET_BODY_MAX_LEN", 4000),
		},
		Scoring: ScoringConfig{
			BaseScore:             getEnvAsInt("SCORING_BASE", 100),
			ExpertiseWeight:       getEnvAsInt("SCORING_EXPERTISE_WEIGHT", 10),
			LoadPenalty:           getEnvAsInt("SCORING_LOAD_PENALTY", 20),
			RecencyBonus:          getEnvAsInt("SCORING_RECENCY_BONUS", 30),
			RecencyWindow:         getEnvAsMinutes("SCORING_RECENCY_WINDOW_MINUTES", 4*60),
			PriorityAffinityBonus: getEnvAsInt("SCORING_PRIORITY_AFFINITY_BONUS", 50),
			AffinityMinLevel:      getEnvAsInt("SCORING_AFFINITY_MIN_LEVEL", 4),
		},
		RateLimit: RateLimitConfig{
			Rules: map[string]RateLimitRule{
				ActionCreateTicket: {
					MaxAttempts: getEnvAsInt("RATE_LIMIT_CREATE_TICKET_MAX", 5),
					Window:      getEnvAsMinutes("RATE_LIMIT_CREATE_TICKET_WINDOW_MINUTES", 30),
				},
				ActionSendMessage: {
					MaxAttempts: getEnvAsInt("RATE_LIMIT_SEND_MESSAGE_MAX", 20),
					Window:      getEnvAsMinutes("RATE_LIMIT_SEND_MESSAGE_WINDOW_MINUTES", 1),
				},
				ActionCreateAnnouncement: {
					MaxAttempts: getEnvAsInt("RATE_LIMIT_CREATE_ANNOUNCEMENT_MAX", 10),
					Window:      getEnvAsMinutes("RATE_LIMIT_CREATE_ANNOUNCEMENT_WINDOW_MINUTES", 60),
				},
				ActionRegisterForEvent: {
					MaxAttempts: getEnvAsInt("RATE_LIMIT_REGISTER_EVENT_MAX", 5),
					Window:      getEnvAsMinutes("RATE_LIMIT_REGISTER_EVENT_WINDOW_MINUTES", 10),
				},
			},
		},
		Escalation: EscalationConfig{
			Threshold:     getEnvAsMinutes("ESCALATION_THRESHOLD_MINUTES", 24*60),
			SweepInterval: getEnvAsMinutes("ESCALATION_SWEEP_INTERVAL_MINUTES", 15),
			Enabled:       getEnvAsBool("ESCALATION_ENABLED", true),
		},
		Cache: CacheConfig{
			WorkloadTTL: time.Duration(getEnvAsInt("CACHE_WORKLOAD_TTL_SECONDS", 15)) * time.Second,
			Enabled:     getEnvAsBool("CACHE_WORKLOAD_ENABLED", true),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsMinutes(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Minute
}
