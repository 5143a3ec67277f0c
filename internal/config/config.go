package config

import (
	"fmt"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Security   SecurityConfig   `mapstructure:"security"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// RequestTimeout bounds each handler's context, outbound calls included
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	NodeID         int64         `mapstructure:"node_id"` // snowflake node, 0..1023
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig represents tracing configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// RateLimitConfig limits inbound interactions per caller
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// CacheConfig represents catalog cache configuration
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	MaxSizeMB       int           `mapstructure:"max_size_mb"`
	BloomCapacity   uint          `mapstructure:"bloom_capacity"`
	BloomFPRate     float64       `mapstructure:"bloom_fp_rate"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWT struct {
		Secret string        `mapstructure:"secret"`
		Expire time.Duration `mapstructure:"expire"`
		Issuer string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	CORS struct {
		Enabled          bool     `mapstructure:"enabled"`
		AllowOrigins     []string `mapstructure:"allow_origins"`
		AllowMethods     []string `mapstructure:"allow_methods"`
		AllowHeaders     []string `mapstructure:"allow_headers"`
		ExposeHeaders    []string `mapstructure:"expose_headers"`
		AllowCredentials bool     `mapstructure:"allow_credentials"`
		MaxAge           int      `mapstructure:"max_age"`
	} `mapstructure:"cors"`
}

// GatewayConfig outbound messaging gateway
type GatewayConfig struct {
	Driver  string        `mapstructure:"driver"` // webhook, log
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	DMRate  float64       `mapstructure:"dm_rate"` // direct messages per second per user
	DMBurst int           `mapstructure:"dm_burst"`
	Breaker struct {
		MaxRequests  uint32        `mapstructure:"max_requests"`
		Interval     time.Duration `mapstructure:"interval"`
		Timeout      time.Duration `mapstructure:"timeout"`
		FailureRatio float64       `mapstructure:"failure_ratio"`
		MinRequests  uint32        `mapstructure:"min_requests"`
	} `mapstructure:"breaker"`
}

// StorefrontConfig business configuration
type StorefrontConfig struct {
	AdminChannel    string            `mapstructure:"admin_channel"`
	FinanceChannel  string            `mapstructure:"finance_channel"`
	OperatorChannel string            `mapstructure:"operator_channel"`
	CatalogChannels map[string]string `mapstructure:"catalog_channels"`
	WaitlistBackend string            `mapstructure:"waitlist_backend"` // memory, redis
	WaitlistPrefix  string            `mapstructure:"waitlist_prefix"`
	SummaryMonths   int               `mapstructure:"summary_months"`
	SummaryInterval time.Duration     `mapstructure:"summary_interval"`
	SummaryLockTTL  time.Duration     `mapstructure:"summary_lock_ttl"`
	ReconcileTopic  string            `mapstructure:"reconcile_topic"`
	ReconcileBuffer int               `mapstructure:"reconcile_buffer"`
}

// GetAddr returns the server address
func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetDSN returns the database DSN
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.ParseTime, d.Loc)
}

// GetAddr returns the Redis address
func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.NodeID < 0 || c.Server.NodeID > 1023 {
		return fmt.Errorf("invalid node id: %d", c.Server.NodeID)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	switch c.Gateway.Driver {
	case "log":
	case "webhook":
		if c.Gateway.URL == "" {
			return fmt.Errorf("gateway url is required for the webhook driver")
		}
	default:
		return fmt.Errorf("unknown gateway driver: %s", c.Gateway.Driver)
	}

	switch c.Storefront.WaitlistBackend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("redis waitlist backend requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown waitlist backend: %s", c.Storefront.WaitlistBackend)
	}

	if c.Storefront.AdminChannel == "" {
		return fmt.Errorf("storefront admin channel is required")
	}
	if c.Storefront.SummaryMonths < 1 || c.Storefront.SummaryMonths > 36 {
		return fmt.Errorf("summary months must be within 1..36, got %d", c.Storefront.SummaryMonths)
	}

	return nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}

	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Loc == "" {
		c.Database.Loc = "Local"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 10 * time.Minute
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.PoolTimeout == 0 {
		c.Redis.PoolTimeout = 4 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "storefront"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "storefront"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.RateLimit.TTL == 0 {
		c.RateLimit.TTL = 10 * time.Minute
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.MaxSizeMB == 0 {
		c.Cache.MaxSizeMB = 64
	}
	if c.Cache.BloomCapacity == 0 {
		c.Cache.BloomCapacity = 10000
	}
	if c.Cache.BloomFPRate == 0 {
		c.Cache.BloomFPRate = 0.01
	}
	if c.Cache.RefreshInterval == 0 {
		c.Cache.RefreshInterval = time.Minute
	}

	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = 24 * time.Hour
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "storefront"
	}

	if c.Gateway.Driver == "" {
		c.Gateway.Driver = "log"
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 10 * time.Second
	}
	if c.Gateway.DMRate == 0 {
		c.Gateway.DMRate = 1
	}
	if c.Gateway.DMBurst == 0 {
		c.Gateway.DMBurst = 5
	}
	if c.Gateway.Breaker.MaxRequests == 0 {
		c.Gateway.Breaker.MaxRequests = 3
	}
	if c.Gateway.Breaker.Interval == 0 {
		c.Gateway.Breaker.Interval = time.Minute
	}
	if c.Gateway.Breaker.Timeout == 0 {
		c.Gateway.Breaker.Timeout = 30 * time.Second
	}
	if c.Gateway.Breaker.FailureRatio == 0 {
		c.Gateway.Breaker.FailureRatio = 0.6
	}
	if c.Gateway.Breaker.MinRequests == 0 {
		c.Gateway.Breaker.MinRequests = 5
	}

	if c.Storefront.WaitlistBackend == "" {
		c.Storefront.WaitlistBackend = "memory"
	}
	if c.Storefront.WaitlistPrefix == "" {
		c.Storefront.WaitlistPrefix = "waitlist:"
	}
	if c.Storefront.SummaryMonths == 0 {
		c.Storefront.SummaryMonths = 6
	}
	if c.Storefront.SummaryInterval == 0 {
		c.Storefront.SummaryInterval = 5 * time.Hour
	}
	if c.Storefront.SummaryLockTTL == 0 {
		c.Storefront.SummaryLockTTL = time.Minute
	}
	if c.Storefront.ReconcileTopic == "" {
		c.Storefront.ReconcileTopic = "ledger_reconcile"
	}
	if c.Storefront.ReconcileBuffer == 0 {
		c.Storefront.ReconcileBuffer = 256
	}
}
