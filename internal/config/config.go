package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Pland4r/project-ai/internal/analysis"
)

const defaultTemperature = 0.3

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Cleaning CleaningConfig `yaml:"cleaning"`
	Summary  SummaryConfig  `yaml:"summary"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	UploadDir      string   `yaml:"upload_dir"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CleaningConfig holds the cleaner's numeric guard
type CleaningConfig struct {
	Ceiling float64 `yaml:"ceiling"`
}

// SummaryConfig selects and configures the summary generator
type SummaryConfig struct {
	Provider       string   `yaml:"provider"` // "none", "ollama", "openai"
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	OllamaBaseURL  string   `yaml:"ollama_base_url"`
	OllamaModel    string   `yaml:"ollama_model"`
	BaseURL        string   `yaml:"base_url"`
	Model          string   `yaml:"model"`
	APIKey         string   `yaml:"api_key"`
	Temperature    *float64 `yaml:"temperature"` // unset means 0.3
	MaxTokens      int      `yaml:"max_tokens"`
}

// Timeout returns the summary call timeout
func (c SummaryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig is the Postgres instance /api/db/analyze reads from when a
// request carries no dsn. An empty Host leaves it unset.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"` // "disable", "require"
}

// DSN renders the config as a lib/pq connection string, or "" when unset
func (c DatabaseConfig) DSN() string {
	if c.Host == "" {
		return ""
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(c.Host), port, dsnValue(c.User), dsnValue(c.Password), dsnValue(c.DBName), dsnValue(sslMode))
}

// dsnValue quotes a key/value DSN value when it is empty or holds spaces,
// quotes or backslashes
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8001
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "./uploads"
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 100
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if c.Cleaning.Ceiling == 0 {
		c.Cleaning.Ceiling = analysis.DefaultCeiling
	}
	if c.Summary.Provider == "" {
		c.Summary.Provider = "none"
	}
	if c.Summary.TimeoutSeconds == 0 {
		c.Summary.TimeoutSeconds = 30
	}
	if c.Summary.OllamaBaseURL == "" {
		c.Summary.OllamaBaseURL = "http://localhost:11434"
	}
	if c.Summary.OllamaModel == "" {
		c.Summary.OllamaModel = "qwen3-vl:2b"
	}
	if c.Summary.BaseURL == "" {
		c.Summary.BaseURL = "https://models.github.ai/inference"
	}
	if c.Summary.Model == "" {
		c.Summary.Model = "openai/gpt-4o"
	}
	if c.Summary.Temperature == nil {
		t := defaultTemperature
		c.Summary.Temperature = &t
	}
	if c.Summary.MaxTokens == 0 {
		c.Summary.MaxTokens = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file in the working directory is read first if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Server.UploadDir = v
	}
	if v := os.Getenv("CLEANING_CEILING"); v != "" {
		ceiling, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("CLEANING_CEILING: %w", err)
		}
		cfg.Cleaning.Ceiling = ceiling
	}
	if v := os.Getenv("SUMMARY_PROVIDER"); v != "" {
		cfg.Summary.Provider = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Summary.OllamaBaseURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Summary.OllamaModel = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Summary.APIKey = v
	}
	if v := os.Getenv("SUMMARY_BASE_URL"); v != "" {
		cfg.Summary.BaseURL = v
	}
	if v := os.Getenv("SUMMARY_MODEL"); v != "" {
		cfg.Summary.Model = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("DB_PORT: %w", err)
		}
		cfg.Database.Port = port
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}

// Validate checks values that would make the service misbehave
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Cleaning.Ceiling <= 0 || c.Cleaning.Ceiling > analysis.MaxCeiling {
		return fmt.Errorf("cleaning.ceiling must be in (0, %d], got %v", analysis.MaxCeiling, c.Cleaning.Ceiling)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	switch c.Summary.Provider {
	case "none", "ollama", "openai":
	default:
		return fmt.Errorf("summary.provider %q is not one of none, ollama, openai", c.Summary.Provider)
	}
	return nil
}
