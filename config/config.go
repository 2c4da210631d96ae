package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Text     TextConfig     `yaml:"text"`
	Drawing  DrawingConfig  `yaml:"drawing"`
	Minio    MinioConfig    `yaml:"minio"`
	Mineru   MineruConfig   `yaml:"mineru"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Auth     AuthConfig     `yaml:"auth"`
	Users    []User         `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PipelineConfig struct {
	BatchTimeoutMinutes int `yaml:"batch_timeout_minutes"`
	MaxFiles            int `yaml:"max_files"`
	MaxFileSizeMB       int `yaml:"max_file_size_mb"`
}

type StoreConfig struct {
	MaxBatches int `yaml:"max_batches"`
}

// Text backends
const (
	TextBackendDocconv = "docconv"
	TextBackendMineru  = "mineru"
	TextBackendNone    = "none"
)

type TextConfig struct {
	Backend        string `yaml:"backend"` // docconv, mineru, none
	UseReadability bool   `yaml:"use_readability"`
}

type DrawingConfig struct {
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type MineruConfig struct {
	APIURL              string `yaml:"api_url"`
	APIToken            string `yaml:"api_token"`
	ModelVersion        string `yaml:"model_version"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxPollAttempts     int    `yaml:"max_poll_attempts"`
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	MaxRetries int    `yaml:"max_retries"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Tenant   string `yaml:"tenant"`
}

// Load reads the YAML file at path, applies defaults and then environment
// overrides. A .env file in the working directory is loaded if present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with only defaults and environment
// overrides applied.
func Default() *Config {
	var cfg Config
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Pipeline.BatchTimeoutMinutes == 0 {
		cfg.Pipeline.BatchTimeoutMinutes = 30
	}
	if cfg.Pipeline.MaxFiles == 0 {
		cfg.Pipeline.MaxFiles = 50
	}
	if cfg.Pipeline.MaxFileSizeMB == 0 {
		cfg.Pipeline.MaxFileSizeMB = 100
	}
	if cfg.Store.MaxBatches == 0 {
		cfg.Store.MaxBatches = 100
	}
	if cfg.Text.Backend == "" {
		cfg.Text.Backend = TextBackendDocconv
	}
	if cfg.Drawing.TimeoutSeconds == 0 {
		cfg.Drawing.TimeoutSeconds = 120
	}
	if cfg.Minio.Bucket == "" {
		cfg.Minio.Bucket = "construction-docs"
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.Mineru.ModelVersion == "" {
		cfg.Mineru.ModelVersion = "vlm"
	}
	if cfg.Mineru.PollIntervalSeconds == 0 {
		cfg.Mineru.PollIntervalSeconds = 5
	}
	if cfg.Mineru.MaxPollAttempts == 0 {
		cfg.Mineru.MaxPollAttempts = 60
	}
	if cfg.RabbitMQ.Queue == "" {
		cfg.RabbitMQ.Queue = "document_results"
	}
	if cfg.RabbitMQ.MaxRetries == 0 {
		cfg.RabbitMQ.MaxRetries = 5
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
}

// applyEnv overrides secrets and endpoints from the environment.
func applyEnv(cfg *Config) {
	setString(&cfg.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Mineru.APIToken, "MINERU_API_TOKEN")
	setString(&cfg.Drawing.APIURL, "DRAWING_API_URL")
	setString(&cfg.Drawing.APIToken, "DRAWING_API_TOKEN")
	setString(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Text.Backend, "TEXT_BACKEND")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Text.Backend {
	case TextBackendDocconv, TextBackendNone:
	case TextBackendMineru:
		if c.Mineru.APIURL == "" {
			return fmt.Errorf("text backend %q requires mineru.api_url", c.Text.Backend)
		}
		if c.Minio.Endpoint == "" {
			return fmt.Errorf("text backend %q requires minio.endpoint", c.Text.Backend)
		}
	default:
		return fmt.Errorf("unknown text backend %q", c.Text.Backend)
	}
	if c.Pipeline.MaxFiles < 0 || c.Pipeline.MaxFileSizeMB < 0 {
		return fmt.Errorf("pipeline limits must not be negative")
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
