package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

type Config struct {
	Server struct {
		Port           int   `yaml:"port"`
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	} `yaml:"server"`

	Model struct {
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float32       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxAttempts int           `yaml:"max_attempts"`
		BaseDelay   time.Duration `yaml:"base_delay"`
		MaxDelay    time.Duration `yaml:"max_delay"`
	} `yaml:"model"`

	Interpreter struct {
		ConfidencePolicy string `yaml:"confidence_policy"`
		Disclaimer       *bool  `yaml:"disclaimer"`
	} `yaml:"interpreter"`

	Image struct {
		MaxDimension int `yaml:"max_dimension"`
		MaxPixels    int `yaml:"max_pixels"`
	} `yaml:"image"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	RateLimit struct {
		Capacity        int     `yaml:"capacity"`
		RefillPerSecond float64 `yaml:"refill_per_second"`
	} `yaml:"rate_limit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// Load baca file config.yaml, lalu override dari env dan isi default.
// A missing file is fine: env and defaults are enough to boot.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MODEL_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv("MODEL_BASE_URL"); v != "" {
		c.Model.BaseURL = v
	}
	if v := os.Getenv("MODEL_ID"); v != "" {
		c.Model.Model = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 10 << 20
	}
	if c.Model.Model == "" {
		c.Model.Model = "gpt-4o-mini"
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 512
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = 30 * time.Second
	}
	if c.Model.MaxAttempts == 0 {
		c.Model.MaxAttempts = 3
	}
	if c.Model.BaseDelay == 0 {
		c.Model.BaseDelay = 500 * time.Millisecond
	}
	if c.Model.MaxDelay == 0 {
		c.Model.MaxDelay = 4 * time.Second
	}
	if c.Interpreter.ConfidencePolicy == "" {
		c.Interpreter.ConfidencePolicy = string(interpretation.ConfidenceClamp)
	}
	if c.Interpreter.Disclaimer == nil {
		on := true
		c.Interpreter.Disclaimer = &on
	}
	if c.Image.MaxDimension == 0 {
		c.Image.MaxDimension = 1120
	}
	if c.Image.MaxPixels == 0 {
		c.Image.MaxPixels = 40_000_000
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 30
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 0.5
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
}

// Validate cek nilai yang tidak masuk akal.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Model.MaxTokens < 0 {
		errs = append(errs, errors.New("model.max_tokens must be positive"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature %.2f out of range [0,2]", c.Model.Temperature))
	}
	if c.Model.MaxAttempts < 0 {
		errs = append(errs, errors.New("model.max_attempts must be positive"))
	}
	if c.Model.Timeout < 0 || c.Model.BaseDelay < 0 || c.Model.MaxDelay < 0 {
		errs = append(errs, errors.New("model durations must not be negative"))
	}
	if _, err := interpretation.ParseConfidencePolicy(c.Interpreter.ConfidencePolicy); err != nil {
		errs = append(errs, fmt.Errorf("interpreter.confidence_policy: %w", err))
	}
	if c.Image.MaxDimension < 0 {
		errs = append(errs, errors.New("image.max_dimension must be positive"))
	}
	if c.Image.MaxPixels < 0 {
		errs = append(errs, errors.New("image.max_pixels must be positive"))
	}
	if c.Minio.Endpoint != "" && c.Minio.BucketName == "" {
		errs = append(errs, errors.New("minio.bucketName is required when minio.endpoint is set"))
	}
	if c.RateLimit.Capacity < 0 || c.RateLimit.RefillPerSecond < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// DisclaimerEnabled reports whether responses carry the safety disclaimer.
func (c *Config) DisclaimerEnabled() bool {
	return c.Interpreter.Disclaimer == nil || *c.Interpreter.Disclaimer
}

// MinioEnabled reports whether object storage is configured.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != ""
}
