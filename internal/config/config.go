// Package config loads service settings from the environment and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	PolicyAdditive  = "additive"
	PolicyReconcile = "reconcile"
)

// Config holds every setting the service reads at startup.
type Config struct {
	DevMode bool

	RootFolderID      string
	RootFolderName    string
	AdminEmail        string
	AccessPolicy      string
	RequireAdminGrant bool
	GrantConcurrency  int

	UsersTable  string
	ClaimsTable string
	ClaimTTL    time.Duration
	ClaimPoll   time.Duration

	RedisURL string
	IndexTTL time.Duration

	ServiceKeyParam        string
	ServiceKeyKMSEncrypted bool
	KMSKeyID               string
	JWTSecretParam         string
	APIGatewaySecretParam  string
	InternalAPIKeyParam    string
	FrontendURL            string

	LogLevel  string
	LogFormat string

	RetryAttempts int
	RetryInitial  time.Duration
	RetryMax      time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dev_mode", false)
	v.SetDefault("root_folder_id", "")
	v.SetDefault("root_folder_name", "SmartLens")
	v.SetDefault("admin_email", "")
	v.SetDefault("access_policy", PolicyAdditive)
	v.SetDefault("require_admin_grant", false)
	v.SetDefault("grant_concurrency", 8)
	v.SetDefault("users_table", "Users")
	v.SetDefault("claims_table", "FolderClaims")
	v.SetDefault("claim_ttl", 30*time.Second)
	v.SetDefault("claim_poll", 250*time.Millisecond)
	v.SetDefault("redis_url", "")
	v.SetDefault("index_ttl", 10*time.Minute)
	v.SetDefault("service_key_param", "/smartlens/drive-service-key")
	v.SetDefault("service_key_kms_encrypted", false)
	v.SetDefault("kms_key_id", "alias/smartlens-service-key")
	v.SetDefault("jwt_secret_param", "/smartlens/jwt-secret")
	v.SetDefault("api_gateway_secret_param", "/smartlens/api-gateway-secret")
	v.SetDefault("internal_api_key_param", "/smartlens/internal-api-key")
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_initial", time.Second)
	v.SetDefault("retry_max", 30*time.Second)
}

// New returns a viper instance bound to the environment with defaults applied.
// Environment variables use the upper-cased key, e.g. ROOT_FOLDER_ID.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

// Load reads config.yaml from the working directory when present and
// resolves every setting.
func Load() (*Config, error) {
	v := New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper resolves a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DevMode:                v.GetBool("dev_mode"),
		RootFolderID:           v.GetString("root_folder_id"),
		RootFolderName:         v.GetString("root_folder_name"),
		AdminEmail:             v.GetString("admin_email"),
		AccessPolicy:           strings.ToLower(v.GetString("access_policy")),
		RequireAdminGrant:      v.GetBool("require_admin_grant"),
		GrantConcurrency:       v.GetInt("grant_concurrency"),
		UsersTable:             v.GetString("users_table"),
		ClaimsTable:            v.GetString("claims_table"),
		ClaimTTL:               v.GetDuration("claim_ttl"),
		ClaimPoll:              v.GetDuration("claim_poll"),
		RedisURL:               v.GetString("redis_url"),
		IndexTTL:               v.GetDuration("index_ttl"),
		ServiceKeyParam:        v.GetString("service_key_param"),
		ServiceKeyKMSEncrypted: v.GetBool("service_key_kms_encrypted"),
		KMSKeyID:               v.GetString("kms_key_id"),
		JWTSecretParam:         v.GetString("jwt_secret_param"),
		APIGatewaySecretParam:  v.GetString("api_gateway_secret_param"),
		InternalAPIKeyParam:    v.GetString("internal_api_key_param"),
		FrontendURL:            v.GetString("frontend_url"),
		LogLevel:               v.GetString("log_level"),
		LogFormat:              v.GetString("log_format"),
		RetryAttempts:          v.GetInt("retry_attempts"),
		RetryInitial:           v.GetDuration("retry_initial"),
		RetryMax:               v.GetDuration("retry_max"),
	}

	if cfg.AccessPolicy != PolicyAdditive && cfg.AccessPolicy != PolicyReconcile {
		return nil, fmt.Errorf("invalid access_policy %q: want %q or %q", cfg.AccessPolicy, PolicyAdditive, PolicyReconcile)
	}
	if cfg.GrantConcurrency < 1 {
		cfg.GrantConcurrency = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.RootFolderName == "" {
		return nil, errors.New("root_folder_name must not be empty")
	}
	return cfg, nil
}
