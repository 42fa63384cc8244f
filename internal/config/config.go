package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"` // seconds
}

// RedisConfig holds Redis settings for the shared KPI cache tier.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Address  string `mapstructure:"address" yaml:"address"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// JWTConfig holds session-token verification settings. Token issuance lives
// in the external auth service; only verification happens here.
type JWTConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret" validate:"required"`
}

// ScoringWeights are the composite-score weights. They must sum to 1.0.
type ScoringWeights struct {
	Location  float64 `mapstructure:"location" yaml:"location" validate:"gte=0,lte=1"`
	Sqft      float64 `mapstructure:"sqft" yaml:"sqft" validate:"gte=0,lte=1"`
	Price     float64 `mapstructure:"price" yaml:"price" validate:"gte=0,lte=1"`
	AssetType float64 `mapstructure:"asset_type" yaml:"asset_type" validate:"gte=0,lte=1"`
	Amenities float64 `mapstructure:"amenities" yaml:"amenities" validate:"gte=0,lte=1"`
}

// Sum returns the total of all five weights.
func (w ScoringWeights) Sum() float64 {
	return w.Location + w.Sqft + w.Price + w.AssetType + w.Amenities
}

// ScoringConfig tunes the scoring engine without touching its logic.
type ScoringConfig struct {
	Weights ScoringWeights `mapstructure:"weights" yaml:"weights"`
	// DecaySteepness controls the linear falloff for out-of-range sqft and
	// price: score = 100 * (1 - distance/steepness), where distance is the
	// fractional distance outside the nearest bound. 1.0 means a value 100%
	// outside the bound scores 0.
	DecaySteepness float64 `mapstructure:"decay_steepness" yaml:"decay_steepness" validate:"gt=0"`
	// RelatedTypeCredit is the partial-credit sub-score for related but not
	// identical asset types.
	RelatedTypeCredit float64 `mapstructure:"related_type_credit" yaml:"related_type_credit" validate:"gte=0,lte=100"`
	// NeutralPriceScore is awarded when the asking price is undisclosed.
	NeutralPriceScore float64 `mapstructure:"neutral_price_score" yaml:"neutral_price_score" validate:"gte=0,lte=100"`
	// TopN is how many matches a matches-updated event carries.
	TopN int `mapstructure:"top_n" yaml:"top_n" validate:"gt=0"`
}

// KPIConfig tunes the dashboard KPI cache.
type KPIConfig struct {
	TTL            time.Duration `mapstructure:"ttl" yaml:"ttl"`
	ComputeTimeout time.Duration `mapstructure:"compute_timeout" yaml:"compute_timeout"`
}

// RealtimeConfig tunes the websocket gateway.
type RealtimeConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout" yaml:"pong_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	SendQueueSize   int           `mapstructure:"send_queue_size" yaml:"send_queue_size"`
	PullTimeout     time.Duration `mapstructure:"pull_timeout" yaml:"pull_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
}

// Config is the application configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt" yaml:"jwt"`
	Scoring  ScoringConfig  `mapstructure:"scoring" yaml:"scoring"`
	KPI      KPIConfig      `mapstructure:"kpi" yaml:"kpi"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 120*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("scoring.weights.location", 0.30)
	v.SetDefault("scoring.weights.sqft", 0.20)
	v.SetDefault("scoring.weights.price", 0.20)
	v.SetDefault("scoring.weights.asset_type", 0.15)
	v.SetDefault("scoring.weights.amenities", 0.15)
	v.SetDefault("scoring.decay_steepness", 1.0)
	v.SetDefault("scoring.related_type_credit", 40.0)
	v.SetDefault("scoring.neutral_price_score", 50.0)
	v.SetDefault("scoring.top_n", 5)

	v.SetDefault("kpi.ttl", 5*time.Minute)
	v.SetDefault("kpi.compute_timeout", 5*time.Second)

	v.SetDefault("realtime.read_buffer_size", 1024)
	v.SetDefault("realtime.write_buffer_size", 1024)
	v.SetDefault("realtime.ping_interval", 30*time.Second)
	v.SetDefault("realtime.pong_timeout", 60*time.Second)
	v.SetDefault("realtime.write_timeout", 10*time.Second)
	v.SetDefault("realtime.send_queue_size", 256)
	v.SetDefault("realtime.pull_timeout", 5*time.Second)
	v.SetDefault("realtime.max_message_size", 4096)
}

// Load reads configuration from the optional YAML file at path, then applies
// LEASEMATCH_-prefixed environment overrides, then validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LEASEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the cross-field weight invariant.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if sum := c.Scoring.Weights.Sum(); math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}
