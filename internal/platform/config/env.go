package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
)

// SecretsClient is the subset of the Secrets Manager API used at startup.
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadEnv pulls secrets from AWS Secrets Manager when AWS_SECRETS_MANAGER_SECRET_ID
// is set and then loads a local .env file. Neither source is required.
func LoadEnv(ctx context.Context, logger *slog.Logger, defaultEnvPath string) {
	if secretID := os.Getenv("AWS_SECRETS_MANAGER_SECRET_ID"); secretID != "" {
		client, err := newSecretsClient(ctx, os.Getenv("AWS_SECRETS_MANAGER_REGION"))
		if err == nil {
			err = loadSecretIntoEnv(ctx, client, secretID, logger)
		}
		if err != nil {
			logger.WarnContext(ctx, "skipping AWS Secrets Manager load", "secret_id", secretID, "error", err)
		}
	}
	loadDotEnv(logger, defaultEnvPath)
}

func loadDotEnv(logger *slog.Logger, defaultEnvPath string) {
	envFile := os.Getenv("ENV_FILE_PATH")
	if envFile == "" {
		envFile = defaultEnvPath
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load env file", "path", envFile, "error", err)
	}
}

func newSecretsClient(ctx context.Context, region string) (SecretsClient, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// loadSecretIntoEnv fetches a JSON object secret and exports its keys. Existing
// variables win unless AWS_SECRETS_MANAGER_OVERWRITE=true.
func loadSecretIntoEnv(ctx context.Context, client SecretsClient, secretID string, logger *slog.Logger) error {
	input := &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	}
	if stage := os.Getenv("AWS_SECRETS_MANAGER_VERSION_STAGE"); stage != "" {
		input.VersionStage = aws.String(stage)
	}

	output, err := client.GetSecretValue(ctx, input)
	if err != nil {
		return fmt.Errorf("fetch secret %s: %w", secretID, err)
	}

	var payload string
	switch {
	case output.SecretString != nil:
		payload = *output.SecretString
	case len(output.SecretBinary) > 0:
		payload = string(output.SecretBinary)
	default:
		return fmt.Errorf("secret %s has no payload", secretID)
	}

	overwrite := strings.EqualFold(os.Getenv("AWS_SECRETS_MANAGER_OVERWRITE"), "true")
	applied, err := applySecretPayload(payload, overwrite)
	if err != nil {
		return fmt.Errorf("apply secret %s: %w", secretID, err)
	}
	logger.InfoContext(ctx, "loaded env vars from AWS Secrets Manager", "secret_id", secretID, "applied", applied)
	return nil
}

func applySecretPayload(payload string, overwrite bool) (int, error) {
	var kv map[string]any
	if err := json.Unmarshal([]byte(payload), &kv); err != nil {
		return 0, fmt.Errorf("secret is not a JSON object: %w", err)
	}

	applied := 0
	for key, val := range kv {
		if !overwrite && os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return applied, fmt.Errorf("set %s: %w", key, err)
		}
		applied++
	}
	return applied, nil
}
