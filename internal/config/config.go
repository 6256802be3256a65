// Package config loads AgriAI runtime configuration from defaults, an
// optional config file and AGRIAI_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. AGRIAI_AWS_REGION.
const EnvPrefix = "AGRIAI"

// Config is the typed application configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	SageMaker SageMakerConfig `mapstructure:"sagemaker"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Flags     FlagsConfig     `mapstructure:"flags"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	LogLevel  string          `mapstructure:"log_level"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// RequireTLS rejects requests that did not arrive over HTTPS.
	RequireTLS   bool          `mapstructure:"require_tls"`
}

// AWSConfig holds settings shared by both AWS runtimes.
type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// BedrockConfig configures the conversational adapter.
type BedrockConfig struct {
	ChatModelID string        `mapstructure:"chat_model_id"`
	TextModelID string        `mapstructure:"text_model_id"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// Mode is "parsed" or "reference".
	Mode        string        `mapstructure:"mode"`
}

// SageMakerConfig configures the inference adapter.
type SageMakerConfig struct {
	CropEndpoint  string        `mapstructure:"crop_endpoint"`
	PestEndpoint  string        `mapstructure:"pest_endpoint"`
	YieldEndpoint string        `mapstructure:"yield_endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DemoFallback  bool          `mapstructure:"demo_fallback"`
}

// RateLimitConfig holds per-IP request budgets per minute.
type RateLimitConfig struct {
	Expensive int `mapstructure:"expensive"`
	Standard  int `mapstructure:"standard"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// PubSubConfig names the worker subscription.
type PubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	Subscription string `mapstructure:"subscription"`
}

// WorkerConfig sizes the report job pool.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	FarmTimeout time.Duration `mapstructure:"farm_timeout"`
}

// FlagsConfig configures the feature flag cache.
type FlagsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ReportsConfig configures the report store.
type ReportsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// SetDefaults registers every key with its default so environment
// variables are picked up when unmarshalling.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.require_tls", false)

	v.SetDefault("aws.region", "us-east-1")

	v.SetDefault("bedrock.chat_model_id", "anthropic.claude-3-sonnet-20240229-v1:0")
	v.SetDefault("bedrock.text_model_id", "amazon.titan-text-express-v1")
	v.SetDefault("bedrock.timeout", 20*time.Second)
	v.SetDefault("bedrock.mode", "parsed")

	v.SetDefault("sagemaker.crop_endpoint", "crop-recommendation-endpoint")
	v.SetDefault("sagemaker.pest_endpoint", "pest-detection-endpoint")
	v.SetDefault("sagemaker.yield_endpoint", "yield-prediction-endpoint")
	v.SetDefault("sagemaker.timeout", 20*time.Second)
	v.SetDefault("sagemaker.demo_fallback", true)

	v.SetDefault("ratelimit.expensive", 30)
	v.SetDefault("ratelimit.standard", 100)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.subscription", "agriai-reports")

	v.SetDefault("worker.concurrency", 3)
	v.SetDefault("worker.farm_timeout", 30*time.Second)

	v.SetDefault("flags.cache_ttl", time.Minute)
	v.SetDefault("reports.ttl", 7*24*time.Hour)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the defaults cannot guarantee.
func (c *Config) Validate() error {
	var errs []error
	switch c.Bedrock.Mode {
	case "parsed", "reference":
	default:
		errs = append(errs, fmt.Errorf("bedrock.mode must be parsed or reference, got %q", c.Bedrock.Mode))
	}
	if c.Bedrock.Timeout <= 0 {
		errs = append(errs, errors.New("bedrock.timeout must be positive"))
	}
	if c.SageMaker.Timeout <= 0 {
		errs = append(errs, errors.New("sagemaker.timeout must be positive"))
	}
	if c.AWS.Region == "" {
		errs = append(errs, errors.New("aws.region is required"))
	}
	if c.RateLimit.Expensive < 1 || c.RateLimit.Standard < 1 {
		errs = append(errs, errors.New("ratelimit values must be at least 1"))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker.concurrency must be at least 1"))
	}
	return errors.Join(errs...)
}
