package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	LLM          LLMConfig          `yaml:"llm"`
	Security     SecurityConfig     `yaml:"security"`
	Store        StoreConfig        `yaml:"store"`
	Continuity   ContinuityConfig   `yaml:"continuity"`
	Tools        ToolsConfig        `yaml:"tools"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

type LLMConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	Timeout     string   `yaml:"timeout"`
}

type SecurityConfig struct {
	APIKeySecret string `yaml:"api_key_secret"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver"`
	DataDir string `yaml:"data_dir"`
	DSN     string `yaml:"dsn"`
}

type ContinuityConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	TTL       string `yaml:"ttl"`
}

type ToolsConfig struct {
	Timeout string `yaml:"timeout"`
}

type OrchestratorConfig struct {
	MaxRounds int `yaml:"max_rounds"`
}

const (
	DefaultHTTPAddr      = ":3000"
	DefaultModel         = "gpt-4.1"
	DefaultLLMTimeout    = 120 * time.Second
	DefaultToolTimeout   = 30 * time.Second
	DefaultContinuityTTL = 30 * time.Minute
	DefaultMaxRounds     = 20
)

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Security.APIKeySecret = expandEnv(cfg.Security.APIKeySecret)
	cfg.Store.DSN = expandEnv(cfg.Store.DSN)
	cfg.Continuity.RedisAddr = expandEnv(cfg.Continuity.RedisAddr)
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "data"
	}
	if c.Orchestrator.MaxRounds <= 0 {
		c.Orchestrator.MaxRounds = DefaultMaxRounds
	}
}

// LLMTimeout returns the per-request timeout for LLM calls.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, DefaultLLMTimeout)
}

// ToolTimeout returns the per-call timeout for tool executor calls.
func (c *Config) ToolTimeout() time.Duration {
	return parseDuration(c.Tools.Timeout, DefaultToolTimeout)
}

// ContinuityTTL returns how long a conversation continuity handle is retained.
func (c *Config) ContinuityTTL() time.Duration {
	return parseDuration(c.Continuity.TTL, DefaultContinuityTTL)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
