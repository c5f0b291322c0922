package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Output   OutputConfig   `mapstructure:"output"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// HarvestConfig holds the pipeline scheduling knobs
type HarvestConfig struct {
	Site               string        `mapstructure:"site"`
	BaseURL            string        `mapstructure:"base_url"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	CollectConcurrency int           `mapstructure:"collect_concurrency"`
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	PageDelay          time.Duration `mapstructure:"page_delay"`
	MaxPages           int           `mapstructure:"max_pages"`
	RetryableStatuses  []int         `mapstructure:"retryable_statuses"`
}

// HTTPConfig holds the outbound client configuration
type HTTPConfig struct {
	Timeout              time.Duration     `mapstructure:"timeout"`
	UserAgent            string            `mapstructure:"user_agent"`
	Headers              map[string]string `mapstructure:"headers"`
	MaxRequestsPerSecond int               `mapstructure:"max_requests_per_second"`
	Proxies              []string          `mapstructure:"proxies"`
	ProxyTestURL         string            `mapstructure:"proxy_test_url"`
	RateLimitMarkers     []string          `mapstructure:"rate_limit_markers"`
	InsecureSkipVerify   bool              `mapstructure:"insecure_skip_verify"`
}

// SourcesConfig says where the enumerate phase gets its sources from
type SourcesConfig struct {
	File      string       `mapstructure:"file"`      // CSV with url,category columns
	Directory string       `mapstructure:"directory"` // Page listing every category
	Seeds     []SeedConfig `mapstructure:"seeds"`
}

// SeedConfig is one source given inline
type SeedConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// OutputConfig holds the record sink destinations
type OutputConfig struct {
	CSVPath   string         `mapstructure:"csv_path"`
	JSONLPath string         `mapstructure:"jsonl_path"`
	Fields    []string       `mapstructure:"fields"`
	Postgres  PostgresOutput `mapstructure:"postgres"`
}

// PostgresOutput enables the append-only table sink
type PostgresOutput struct {
	Enabled bool   `mapstructure:"enabled"`
	Table   string `mapstructure:"table"`
}

// LedgerConfig holds failure ledger destinations
type LedgerConfig struct {
	Backend    string `mapstructure:"backend"` // file or redis
	Path       string `mapstructure:"path"`
	SourcePath string `mapstructure:"source_path"`
	Stream     string `mapstructure:"stream"`
}

// RetryConfig drives the retry entry point
type RetryConfig struct {
	Input        string `mapstructure:"input"`
	Output       string `mapstructure:"output"`
	SourceOutput string `mapstructure:"source_output"`
	Distinct     bool   `mapstructure:"distinct"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN renders the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	Database  int    `mapstructure:"database"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr renders host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig configures logrus
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from a YAML file with environment variable overrides.
// An empty path searches the current directory for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Defaults and environment alone are a valid configuration.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Harvest.Site == "":
		return errors.New("harvest.site must be set")
	case c.Harvest.MaxConcurrency < 1:
		return fmt.Errorf("harvest.max_concurrency must be positive, got %d", c.Harvest.MaxConcurrency)
	case c.Harvest.CollectConcurrency < 1:
		return fmt.Errorf("harvest.collect_concurrency must be positive, got %d", c.Harvest.CollectConcurrency)
	case c.Harvest.MaxAttempts < 1:
		return fmt.Errorf("harvest.max_attempts must be positive, got %d", c.Harvest.MaxAttempts)
	case c.Harvest.BaseDelay < 0 || c.Harvest.PageDelay < 0:
		return errors.New("harvest delays must not be negative")
	case c.Output.CSVPath == "" && c.Output.JSONLPath == "" && !c.Output.Postgres.Enabled:
		return errors.New("at least one output destination must be configured")
	}

	switch c.Ledger.Backend {
	case "file":
		if c.Ledger.Path == "" {
			return errors.New("ledger.path must be set for the file backend")
		}
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("ledger.backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.site", "businesslist")
	v.SetDefault("harvest.base_url", "https://www.businesslist.co.ke")
	v.SetDefault("harvest.max_concurrency", 8)
	v.SetDefault("harvest.collect_concurrency", 6)
	v.SetDefault("harvest.base_delay", "500ms")
	v.SetDefault("harvest.max_attempts", 3)
	v.SetDefault("harvest.page_delay", "500ms")
	v.SetDefault("harvest.max_pages", 0)
	v.SetDefault("harvest.retryable_statuses", []int{})

	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36")
	v.SetDefault("http.max_requests_per_second", 10)
	v.SetDefault("http.proxy_test_url", "")
	v.SetDefault("http.rate_limit_markers", []string{"Quota Exceeded"})
	v.SetDefault("http.insecure_skip_verify", false)

	v.SetDefault("sources.file", "")
	v.SetDefault("sources.directory", "")

	v.SetDefault("output.csv_path", "data/profiles.csv")
	v.SetDefault("output.jsonl_path", "data/profiles.jsonl")
	v.SetDefault("output.postgres.enabled", false)
	v.SetDefault("output.postgres.table", "harvest_records")

	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.path", "logs/failed_items.txt")
	v.SetDefault("ledger.source_path", "logs/failed_sources.txt")
	v.SetDefault("ledger.stream", "failures")

	v.SetDefault("retry.input", "")
	v.SetDefault("retry.output", "logs/final_failed_items.txt")
	v.SetDefault("retry.source_output", "logs/final_failed_sources.txt")
	v.SetDefault("retry.distinct", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "harvest")
	v.SetDefault("database.user", "harvest_user")
	v.SetDefault("database.password", "harvest_pass")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.key_prefix", "harvest:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
