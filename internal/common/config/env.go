package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config represents the application configuration
// This struct contains all configuration parameters for the webhook
type Config struct {
	// Banking backend
	BankingHostname string
	InstitutionID   string

	// Enrichment polling
	MaxPollAttempts int

	// Session account cache (DynamoDB); empty table name disables it
	SessionTableName string
	SessionCacheTTL  time.Duration

	// Inbound request verification
	GoogleJWKSURL string
	ProjectID     string

	// Secrets Manager secret holding overrides for sensitive values
	ConfigSecretID string

	// Environment and region info
	Environment string
	AWSRegion   string

	// Lambda detection flag (cached)
	isLambda bool
}

// LoadFromEnv loads the configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}

	cfg.BankingHostname = os.Getenv("BANKING_HOSTNAME")
	if cfg.BankingHostname == "" {
		cfg.BankingHostname = "digital.garden-fi.com"
	}

	// Required: which institution's accounts we are allowed to surface
	cfg.InstitutionID = os.Getenv("INSTITUTION_ID")
	if cfg.InstitutionID == "" {
		return nil, errors.New("INSTITUTION_ID environment variable is required")
	}
	if _, err := uuid.Parse(cfg.InstitutionID); err != nil {
		return nil, errors.New("INSTITUTION_ID must be a UUID")
	}

	cfg.MaxPollAttempts = 30
	if v := os.Getenv("MAX_POLL_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil || attempts < 1 {
			return nil, errors.New("MAX_POLL_ATTEMPTS must be a positive integer")
		}
		cfg.MaxPollAttempts = attempts
	}

	cfg.SessionTableName = os.Getenv("SESSION_TABLE_NAME")

	cfg.SessionCacheTTL = 5 * time.Minute
	if v := os.Getenv("SESSION_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return nil, errors.New("SESSION_CACHE_TTL must be a positive duration")
		}
		cfg.SessionCacheTTL = ttl
	}

	cfg.GoogleJWKSURL = os.Getenv("GOOGLE_JWKS_URL")
	if cfg.GoogleJWKSURL == "" {
		cfg.GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	}

	// The assistant project id; used as the expected JWT audience
	cfg.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")

	cfg.ConfigSecretID = os.Getenv("CONFIG_SECRET_ID")

	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "dev" // Default to dev environment
	}

	cfg.AWSRegion = os.Getenv("AWS_REGION")
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = "us-east-1"
	}

	// Check if running in Lambda
	cfg.isLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	return cfg, nil
}

func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// IsLambda returns true if the application is running in AWS Lambda
func (c *Config) IsLambda() bool {
	return c.isLambda
}

// CacheEnabled reports whether the session account cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.SessionTableName != ""
}
