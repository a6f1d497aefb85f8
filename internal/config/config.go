package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tigertrust/lendgate/internal/model"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Income    IncomeConfig    `mapstructure:"income"`
	Lending   LendingConfig   `mapstructure:"lending"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Recalc    RecalcConfig    `mapstructure:"recalc"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"` // pause ApplyForLoan, keep reads
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
}

type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	KeyPrefix             string `mapstructure:"key_prefix"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type ChainConfig struct {
	RPCURL         string `mapstructure:"rpc_url"`
	SignatureLimit int    `mapstructure:"signature_limit"` // recent-activity window, max 500
	HistoryLimit   int    `mapstructure:"history_limit"`   // signatures scanned for tx count / age
}

type UpstreamConfig struct {
	TimeoutMs int `mapstructure:"timeout_ms"`
}

func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutMs) * time.Millisecond
}

// IncomeConfig parameterises the profile-derived income oracle.
type IncomeConfig struct {
	Floor    float64 `mapstructure:"floor"`
	PerPoint float64 `mapstructure:"per_point"`
	Cap      float64 `mapstructure:"cap"`
}

type LendingConfig struct {
	TierVersion      string           `mapstructure:"tier_version"`
	Tiers            []model.LoanTier `mapstructure:"tiers"`
	MinMonthlyIncome float64          `mapstructure:"min_monthly_income"`
	MinLoanAmount    float64          `mapstructure:"min_loan_amount"`
	RepaymentTerms   map[string]int   `mapstructure:"repayment_terms"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	DecisionTopic string   `mapstructure:"decision_topic"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type RecalcConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
	BatchMax  int `mapstructure:"batch_max"`
}

type AuditConfig struct {
	Dir           string `mapstructure:"dir"`
	RetentionDays int    `mapstructure:"retention_days"` // database rows only; 0 keeps forever
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. LENDGATE_CHAIN_RPC_URL
	v.SetEnvPrefix("lendgate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_only", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	// empty defaults so env-only values are seen by Unmarshal
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("redis.key_prefix", "lendgate")
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("chain.signature_limit", 500)
	v.SetDefault("chain.history_limit", 1000)
	v.SetDefault("upstream.timeout_ms", 5000)
	v.SetDefault("income.floor", 200)
	v.SetDefault("income.per_point", 0.5)
	v.SetDefault("income.cap", 5000)
	v.SetDefault("lending.tier_version", "2024-default")
	v.SetDefault("lending.tiers", tierDefaults())
	v.SetDefault("lending.min_monthly_income", 100)
	v.SetDefault("lending.min_loan_amount", 10)
	v.SetDefault("lending.repayment_terms", map[string]int(model.DefaultRepaymentTerms()))
	v.SetDefault("kafka.decision_topic", "lending.decisions")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("ratelimit.qps", 10)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("recalc.workers", 4)
	v.SetDefault("recalc.queue_size", 256)
	v.SetDefault("recalc.batch_max", 100)
	v.SetDefault("audit.dir", "./logs")
	v.SetDefault("audit.retention_days", 90)
}

// tierDefaults is the default tier table in the shape viper decodes from yaml.
func tierDefaults() []map[string]interface{} {
	tiers := model.DefaultTiers()
	out := make([]map[string]interface{}, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, map[string]interface{}{
			"level":                      t.Level,
			"min_score":                  t.MinScore,
			"max_loan_limit":             t.MaxLoanLimit,
			"base_interest_rate":         t.BaseInterestRate,
			"max_dti_ratio":              t.MaxDTIRatio,
			"application_velocity_limit": t.ApplicationVelocityLimit,
			"description":                t.Description,
		})
	}
	return out
}

// TierTable freezes the configured tiers.
func (c *Config) TierTable() (*model.TierTable, error) {
	return model.NewTierTable(c.Lending.TierVersion, c.Lending.Tiers)
}

// RepaymentTerms returns the configured term keys, falling back to the stock set.
func (c *Config) RepaymentTerms() model.RepaymentTerms {
	if len(c.Lending.RepaymentTerms) == 0 {
		return model.DefaultRepaymentTerms()
	}
	terms := make(model.RepaymentTerms, len(c.Lending.RepaymentTerms))
	for k, d := range c.Lending.RepaymentTerms {
		terms[k] = d
	}
	return terms
}
