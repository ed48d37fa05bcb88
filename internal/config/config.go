// Package config loads PhotoSync's server configuration from environment
// variables, following the teacher's viper+mapstructure+validator pattern
// but binding the bare (unprefixed) variable names spec.md fixes for
// operator/app compatibility rather than a PHOTOSYNC_-namespaced set.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/photosync/backend/internal/bytesize"
)

// Config is the complete set of environment-tunable server behavior.
type Config struct {
	Port               int    `mapstructure:"PORT" validate:"required,gt=0"`
	EnableHTTPS        bool   `mapstructure:"ENABLE_HTTPS"`
	HTTPSPort          int    `mapstructure:"HTTPS_PORT"`
	TLSKeyPath         string `mapstructure:"TLS_KEY_PATH"`
	TLSCertPath        string `mapstructure:"TLS_CERT_PATH"`
	ForceHTTPSRedirect bool   `mapstructure:"FORCE_HTTPS_REDIRECT"`

	JWTSecret     string `mapstructure:"JWT_SECRET" validate:"required"`
	BcryptRounds  int    `mapstructure:"BCRYPT_ROUNDS" validate:"required,gte=4,lte=31"`

	AuthRateLimitWindowMS int `mapstructure:"AUTH_RATE_LIMIT_WINDOW_MS" validate:"required,gt=0"`
	AuthRateLimitMax      int `mapstructure:"AUTH_RATE_LIMIT_MAX" validate:"required,gt=0"`

	PhotoSyncDataDir  string `mapstructure:"PHOTOSYNC_DATA_DIR"`
	UploadDir         string `mapstructure:"UPLOAD_DIR"`
	DBPath            string `mapstructure:"DB_PATH"`
	CloudDir          string `mapstructure:"CLOUD_DIR"`
	CapacityJSONPath  string `mapstructure:"CAPACITY_JSON_PATH"`

	UserQuotaMarginBytes  bytesize.ByteSize `mapstructure:"USER_QUOTA_MARGIN_BYTES"`
	EnableCloudUploadLock bool              `mapstructure:"ENABLE_CLOUD_UPLOAD_LOCK"`

	SubscriptionGraceDays    int    `mapstructure:"SUBSCRIPTION_GRACE_DAYS" validate:"required,gt=0"`
	TrialDays                int    `mapstructure:"TRIAL_DAYS" validate:"required,gt=0"`
	RevenueCatWebhookSecret  string `mapstructure:"REVENUECAT_WEBHOOK_SECRET"`

	MetricsPort int `mapstructure:"METRICS_PORT"`

	// LogLevel/LogFormat configure internal/logger, ambient stack carried
	// regardless of spec.md's scope per the teacher's logging.level/format.
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// S3MirrorEnabled turns on the optional off-box chunk mirror (§4.F).
	// The local filesystem store is always authoritative regardless.
	S3MirrorEnabled   bool   `mapstructure:"S3_MIRROR_ENABLED"`
	S3MirrorEndpoint  string `mapstructure:"S3_MIRROR_ENDPOINT"`
	S3MirrorRegion    string `mapstructure:"S3_MIRROR_REGION"`
	S3MirrorBucket    string `mapstructure:"S3_MIRROR_BUCKET"`
	S3MirrorAccessKey string `mapstructure:"S3_MIRROR_ACCESS_KEY_ID"`
	S3MirrorSecretKey string `mapstructure:"S3_MIRROR_SECRET_ACCESS_KEY"`
	S3MirrorForcePath bool   `mapstructure:"S3_MIRROR_FORCE_PATH_STYLE"`
	S3MirrorQueueSize int    `mapstructure:"S3_MIRROR_QUEUE_SIZE"`
}

// insecureDefaultJWTSecret is rejected at startup with a warning, per §6.
const insecureDefaultJWTSecret = "changeme"

var envKeys = []string{
	"PORT", "ENABLE_HTTPS", "HTTPS_PORT", "TLS_KEY_PATH", "TLS_CERT_PATH", "FORCE_HTTPS_REDIRECT",
	"JWT_SECRET", "BCRYPT_ROUNDS",
	"AUTH_RATE_LIMIT_WINDOW_MS", "AUTH_RATE_LIMIT_MAX",
	"PHOTOSYNC_DATA_DIR", "UPLOAD_DIR", "DB_PATH", "CLOUD_DIR", "CAPACITY_JSON_PATH",
	"USER_QUOTA_MARGIN_BYTES", "ENABLE_CLOUD_UPLOAD_LOCK",
	"SUBSCRIPTION_GRACE_DAYS", "TRIAL_DAYS", "REVENUECAT_WEBHOOK_SECRET",
	"METRICS_PORT", "LOG_LEVEL", "LOG_FORMAT",
	"S3_MIRROR_ENABLED", "S3_MIRROR_ENDPOINT", "S3_MIRROR_REGION", "S3_MIRROR_BUCKET",
	"S3_MIRROR_ACCESS_KEY_ID", "S3_MIRROR_SECRET_ACCESS_KEY", "S3_MIRROR_FORCE_PATH_STYLE",
	"S3_MIRROR_QUEUE_SIZE",
}

// Load binds the recognized environment variables and applies defaults for
// any unset value. It does not validate the result; call Validate for that.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	applyViperDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(bytesize.DecodeHook)); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// applyViperDefaults seeds viper with spec.md §6's stated defaults before
// unmarshalling, so BindEnv-bound-but-unset variables resolve to them.
func applyViperDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 3000)
	v.SetDefault("BCRYPT_ROUNDS", 10)
	v.SetDefault("AUTH_RATE_LIMIT_WINDOW_MS", 15*60*1000)
	v.SetDefault("AUTH_RATE_LIMIT_MAX", 20)
	v.SetDefault("USER_QUOTA_MARGIN_BYTES", "50Mi")
	v.SetDefault("ENABLE_CLOUD_UPLOAD_LOCK", true)
	v.SetDefault("SUBSCRIPTION_GRACE_DAYS", 3)
	v.SetDefault("TRIAL_DAYS", 7)
	v.SetDefault("METRICS_PORT", 9090)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("S3_MIRROR_QUEUE_SIZE", 256)
}

// Validate runs struct-tag validation and the startup warnings §6 calls
// for (rejecting the insecure default JWT secret).
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.JWTSecret == insecureDefaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must not be left at its insecure default value")
	}
	return nil
}
