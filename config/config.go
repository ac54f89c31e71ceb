package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxSearchCallsCeiling bounds pipeline.max_search_calls.
const MaxSearchCallsCeiling = 3

// Config holds all configuration for the civicnav service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Session   SessionConfig   `mapstructure:"session"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LLMConfig selects and configures the reasoning backend
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, anthropic
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", l.Provider)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	return nil
}

// SearchConfig configures the web search backend. An empty api_key is valid:
// turns then fall back to the built-in referral directory unless the caller
// supplies a key.
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serper, brave
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "serper", "brave":
	default:
		return fmt.Errorf("search.provider must be serper or brave, got %q", s.Provider)
	}
	if s.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	return nil
}

// SessionConfig controls session retention
type SessionConfig struct {
	Backend  string        `mapstructure:"backend"` // inmemory, redis
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

func (s SessionConfig) Validate() error {
	switch s.Backend {
	case "inmemory", "redis":
	default:
		return fmt.Errorf("session.backend must be inmemory or redis, got %q", s.Backend)
	}
	if s.Capacity <= 0 {
		return fmt.Errorf("session.capacity must be > 0")
	}
	if s.TTL <= 0 {
		return fmt.Errorf("session.ttl must be > 0")
	}
	return nil
}

// StageNamesConfig holds the identifiers reported in progress events and timings.
type StageNamesConfig struct {
	Initialize string `mapstructure:"initialize"`
	Decide     string `mapstructure:"decide"`
	Search     string `mapstructure:"search"`
	Merge      string `mapstructure:"merge"`
	Generate   string `mapstructure:"generate"`
}

// All returns the names in execution order.
func (s StageNamesConfig) All() []string {
	return []string{s.Initialize, s.Decide, s.Search, s.Merge, s.Generate}
}

// PipelineConfig contains the per-turn pipeline settings
type PipelineConfig struct {
	MaxSearchCalls      int              `mapstructure:"max_search_calls"`
	MaxResourcesPerTurn int              `mapstructure:"max_resources_per_turn"`
	StageTimeout        time.Duration    `mapstructure:"stage_timeout"`
	HistoryTurns        int              `mapstructure:"history_turns"`
	Location            string           `mapstructure:"location"`
	SearchArea          string           `mapstructure:"search_area"`
	PromptsFile         string           `mapstructure:"prompts_file"`
	StageNames          StageNamesConfig `mapstructure:"stage_names"`
}

// Normalize applies defaults for unset pipeline values.
func (p PipelineConfig) Normalize() PipelineConfig {
	if p.MaxSearchCalls <= 0 {
		p.MaxSearchCalls = 2
	}
	if p.MaxResourcesPerTurn <= 0 {
		p.MaxResourcesPerTurn = 6
	}
	if p.StageTimeout <= 0 {
		p.StageTimeout = 30 * time.Second
	}
	if p.HistoryTurns <= 0 {
		p.HistoryTurns = 3
	}
	p.Location = strings.TrimSpace(p.Location)
	if p.Location == "" {
		p.Location = "Central Illinois"
	}
	p.SearchArea = strings.TrimSpace(p.SearchArea)
	if p.SearchArea == "" {
		p.SearchArea = "Peoria Illinois"
	}
	defaults := DefaultStageNames()
	fill := func(v *string, d string) {
		if *v = strings.TrimSpace(*v); *v == "" {
			*v = d
		}
	}
	fill(&p.StageNames.Initialize, defaults.Initialize)
	fill(&p.StageNames.Decide, defaults.Decide)
	fill(&p.StageNames.Search, defaults.Search)
	fill(&p.StageNames.Merge, defaults.Merge)
	fill(&p.StageNames.Generate, defaults.Generate)
	return p
}

// Validate checks the pipeline configuration.
func (p PipelineConfig) Validate() error {
	if p.MaxSearchCalls < 1 || p.MaxSearchCalls > MaxSearchCallsCeiling {
		return fmt.Errorf("pipeline.max_search_calls must be within [1, %d]", MaxSearchCallsCeiling)
	}
	if p.MaxResourcesPerTurn <= 0 {
		return fmt.Errorf("pipeline.max_resources_per_turn must be > 0")
	}
	if p.StageTimeout <= 0 {
		return fmt.Errorf("pipeline.stage_timeout must be > 0")
	}
	seen := map[string]struct{}{}
	for _, name := range p.StageNames.All() {
		if name == "" {
			return fmt.Errorf("pipeline.stage_names entries must not be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("pipeline.stage_names has duplicate %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// DefaultStageNames returns the stage identifiers used when none are configured.
func DefaultStageNames() StageNamesConfig {
	return StageNamesConfig{
		Initialize: "initialize_context",
		Decide:     "decide_strategy",
		Search:     "search_resources",
		Merge:      "merge_resources",
		Generate:   "generate_response",
	}
}

// DefaultPipeline returns a normalized pipeline configuration.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{}.Normalize()
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings for the conversation archive
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether an archive database is configured at all.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN returns the connection string, building one from parts when url is unset.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port, ssl := p.Port, p.SSLMode
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if !p.Enabled() || strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Validate checks every section, including the cross-section requirements.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if c.Session.Backend == "redis" {
		if err := c.Storage.Redis.Validate(); err != nil {
			return err
		}
	}
	return c.Storage.Postgres.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("search.provider", "serper")
	v.SetDefault("search.max_results", 8)
	v.SetDefault("search.timeout", 20*time.Second)
	v.SetDefault("session.backend", "inmemory")
	v.SetDefault("session.capacity", 500)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.prefix", "civicnav:")
	v.SetDefault("pipeline.max_search_calls", 2)
	v.SetDefault("pipeline.max_resources_per_turn", 6)
	v.SetDefault("pipeline.stage_timeout", 30*time.Second)
	v.SetDefault("pipeline.history_turns", 3)
	v.SetDefault("pipeline.location", "Central Illinois")
	v.SetDefault("pipeline.search_area", "Peoria Illinois")
	names := DefaultStageNames()
	v.SetDefault("pipeline.stage_names.initialize", names.Initialize)
	v.SetDefault("pipeline.stage_names.decide", names.Decide)
	v.SetDefault("pipeline.stage_names.search", names.Search)
	v.SetDefault("pipeline.stage_names.merge", names.Merge)
	v.SetDefault("pipeline.stage_names.generate", names.Generate)
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.postgres.timeout", 5*time.Second)
	v.SetDefault("telemetry.service_name", "civicnav")
}

// LoadConfig reads config from path, or from the usual lookup directories when
// path is empty. A missing config file is not an error; defaults and
// CIVICNAV_* environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("CIVICNAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Pipeline = cfg.Pipeline.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
