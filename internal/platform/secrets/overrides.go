// Package secrets loads configuration overrides from AWS Secrets Manager.
// Values that should not live in plain environment variables (institution
// id, project id) are kept in one JSON secret and folded over the env
// config at startup.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"

	"github.com/garden-fi/assistant-fulfillment/internal/common/config"
)

// Overrides is the JSON shape of the configuration secret. Empty fields
// leave the corresponding env value in place.
type Overrides struct {
	InstitutionID   string `json:"institutionId,omitempty"`
	BankingHostname string `json:"bankingHostname,omitempty"`
	ProjectID       string `json:"projectId,omitempty"`
}

// Repository reads the configuration secret, preferring the process-local
// secret cache over direct API calls.
type Repository struct {
	client      *secretsmanager.Client
	secretCache *secretcache.Cache
	secretID    string
}

// NewRepository creates a repository for the given secret id.
func NewRepository(client *secretsmanager.Client, secretID string) *Repository {
	cache, err := secretcache.New(
		func(c *secretcache.Cache) {
			c.Client = client
		},
	)
	if err != nil {
		// Fall back to direct API calls when the cache cannot be built
		fmt.Printf("Failed to initialize secretCache: %v\n", err)
		cache = nil
	}

	return &Repository{
		client:      client,
		secretCache: cache,
		secretID:    secretID,
	}
}

// Load reads and decodes the configuration secret.
func (r *Repository) Load(ctx context.Context) (Overrides, error) {
	var secretString string
	var err error

	if r.secretCache != nil {
		secretString, err = r.secretCache.GetSecretString(r.secretID)
	} else {
		var result *secretsmanager.GetSecretValueOutput
		result, err = r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(r.secretID),
		})
		if err == nil {
			secretString = aws.ToString(result.SecretString)
		}
	}
	if err != nil {
		return Overrides{}, fmt.Errorf("reading config secret %s: %w", r.secretID, err)
	}

	var overrides Overrides
	if err := json.Unmarshal([]byte(secretString), &overrides); err != nil {
		return Overrides{}, fmt.Errorf("decoding config secret %s: %w", r.secretID, err)
	}
	return overrides, nil
}

// Apply folds non-empty override values into the configuration.
func Apply(cfg *config.Config, overrides Overrides) {
	if overrides.InstitutionID != "" {
		cfg.InstitutionID = overrides.InstitutionID
	}
	if overrides.BankingHostname != "" {
		cfg.BankingHostname = overrides.BankingHostname
	}
	if overrides.ProjectID != "" {
		cfg.ProjectID = overrides.ProjectID
	}
}
