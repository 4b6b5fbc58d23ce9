package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		Env            string   `yaml:"env"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	Stripe struct {
		WebhookSecret     string `yaml:"webhook_secret"`
		ReplayInterval    int    `yaml:"replay_interval"` // seconds
		ReplayMaxAttempts int    `yaml:"replay_max_attempts"`
	} `yaml:"stripe"`

	OCR struct {
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		BaseURL        string `yaml:"base_url"`
		MaxRetries     *int   `yaml:"max_retries"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		Queue          string `yaml:"queue"` // memory, redis
		Workers        int    `yaml:"workers"`
		QueueSize      int    `yaml:"queue_size"`
	} `yaml:"ocr"`

	Upload struct {
		TempDir    string `yaml:"temp_dir"`
		TempTTL    int    `yaml:"temp_ttl"` // minutes
		MaxRequest int64  `yaml:"max_request"`
	} `yaml:"upload"`

	// Archive keeps originals after OCR.
	Storage struct {
		Type      string `yaml:"type"`      // local, cloudflare_r2
		BasePath  string `yaml:"base_path"` // local
		BaseURL   string `yaml:"base_url"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Endpoint  string `yaml:"endpoint"`
	} `yaml:"storage"`

	Redis struct {
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		PoolSize  int    `yaml:"pool_size"`
		OCRQueue  string `yaml:"ocr_queue"`
		DLQSuffix string `yaml:"dlq_suffix"`
	} `yaml:"redis"`

	Email struct {
		Enabled      bool   `yaml:"enabled"`
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`
}

const defaultConfigPath = "config/config.yaml"

// LoadConfig reads the yaml file (CONFIG_PATH or config/config.yaml) when present,
// applies environment overrides and defaults, then validates.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file at %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// env only
	default:
		return nil, fmt.Errorf("failed to open config file at %s: %w", configPath, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Env, "SERVER_ENV")
	setString(&c.Server.Host, "SERVER_HOST")
	setInt(&c.Server.Port, "SERVER_PORT")
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	setString(&c.Database.DSN, "DATABASE_URL")

	setString(&c.JWT.Secret, "JWT_SECRET")
	setInt(&c.JWT.TTL, "JWT_TTL_MINUTES")

	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	setString(&c.OCR.APIKey, "GEMINI_API_KEY")
	setString(&c.OCR.Model, "GEMINI_MODEL")
	setString(&c.OCR.BaseURL, "GEMINI_BASE_URL")
	if v := os.Getenv("OCR_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.OCR.MaxRetries = &n
		}
	}
	setInt(&c.OCR.TimeoutSeconds, "OCR_TIMEOUT_SECONDS")
	setString(&c.OCR.Queue, "OCR_QUEUE")
	setInt(&c.OCR.Workers, "OCR_WORKERS")

	setString(&c.Upload.TempDir, "UPLOAD_TEMP_DIR")

	setString(&c.Storage.Type, "STORAGE_TYPE")
	setString(&c.Storage.BasePath, "STORAGE_BASE_PATH")
	setString(&c.Storage.Bucket, "R2_BUCKET")
	setString(&c.Storage.Endpoint, "R2_ENDPOINT")
	setString(&c.Storage.AccessKey, "R2_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "R2_SECRET_KEY")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.Email.SMTPHost, "SMTP_HOST")
	setInt(&c.Email.SMTPPort, "SMTP_PORT")
	setString(&c.Email.SMTPUsername, "SMTP_USER")
	setString(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	if v := os.Getenv("EMAIL_ENABLED"); v != "" {
		c.Email.Enabled, _ = strconv.ParseBool(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 60 * 24
	}
	if c.Stripe.ReplayInterval == 0 {
		c.Stripe.ReplayInterval = 60
	}
	if c.Stripe.ReplayMaxAttempts == 0 {
		c.Stripe.ReplayMaxAttempts = 5
	}
	if c.OCR.Model == "" {
		c.OCR.Model = "gemini-1.5-flash"
	}
	if c.OCR.BaseURL == "" {
		c.OCR.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if c.OCR.MaxRetries == nil {
		n := 2
		c.OCR.MaxRetries = &n
	} else if *c.OCR.MaxRetries < 0 {
		n := 0
		c.OCR.MaxRetries = &n
	}
	if c.OCR.TimeoutSeconds == 0 {
		c.OCR.TimeoutSeconds = 60
	}
	if c.OCR.Queue == "" {
		c.OCR.Queue = "memory"
	}
	if c.OCR.Workers == 0 {
		c.OCR.Workers = 4
	}
	if c.OCR.QueueSize == 0 {
		c.OCR.QueueSize = 100
	}
	if c.Upload.TempDir == "" {
		c.Upload.TempDir = os.TempDir() + "/cfipros-uploads"
	}
	if c.Upload.TempTTL == 0 {
		c.Upload.TempTTL = 24 * 60
	}
	if c.Upload.MaxRequest == 0 {
		c.Upload.MaxRequest = 64 << 20
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.BasePath == "" {
		c.Storage.BasePath = "./archive"
	}
	if c.Redis.OCRQueue == "" {
		c.Redis.OCRQueue = "ocr:jobs"
	}
	if c.Redis.DLQSuffix == "" {
		c.Redis.DLQSuffix = ":dlq"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
}

// Validate fails fast on settings the server cannot run without.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.DSN == "" {
		missing = append(missing, "database.url (DATABASE_URL)")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret (JWT_SECRET)")
	}
	if c.Upload.TempDir == "" {
		missing = append(missing, "upload.temp_dir (UPLOAD_TEMP_DIR)")
	}
	if !c.IsTest() {
		if c.Stripe.WebhookSecret == "" {
			missing = append(missing, "stripe.webhook_secret (STRIPE_WEBHOOK_SECRET)")
		}
		if c.OCR.APIKey == "" {
			missing = append(missing, "ocr.api_key (GEMINI_API_KEY)")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.OCR.Queue {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("ocr.queue is redis but redis.addr (REDIS_ADDR) is empty")
		}
	default:
		return fmt.Errorf("unsupported ocr.queue: %s", c.OCR.Queue)
	}

	switch c.Storage.Type {
	case "local", "cloudflare_r2":
	default:
		return fmt.Errorf("unsupported storage.type: %s", c.Storage.Type)
	}

	if c.Email.Enabled && c.Email.SMTPHost == "" {
		return errors.New("email.enabled requires email.smtp_host (SMTP_HOST)")
	}
	return nil
}

func (c *Config) IsTest() bool {
	return c.Server.Env == "test"
}

// OCRMaxRetries is the number of retries after the first OCR attempt.
func (c *Config) OCRMaxRetries() int {
	if c.OCR.MaxRetries == nil {
		return 2
	}
	return *c.OCR.MaxRetries
}

func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.OCR.TimeoutSeconds) * time.Second
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWT.TTL) * time.Minute
}

func (c *Config) TempTTL() time.Duration {
	return time.Duration(c.Upload.TempTTL) * time.Minute
}

func (c *Config) ReplayInterval() time.Duration {
	return time.Duration(c.Stripe.ReplayInterval) * time.Second
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
