package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("COMPONENT_APPID", "wxcomponent0001")
	t.Setenv("COMPONENT_APPSECRET", "component-secret")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123")
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, "https://api.weixin.qq.com", cfg.Platform.BaseURL)
		assert.Equal(t, 5*time.Second, cfg.Platform.Timeout)
		assert.Empty(t, cfg.Redis.URL)
		assert.False(t, cfg.Session.Revocation)
	})

	t.Run("overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("PLATFORM_TIMEOUT", "2s")
		t.Setenv("PLATFORM_RPS", "5.5")
		t.Setenv("SESSION_REVOCATION", "true")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
		assert.Equal(t, 2*time.Second, cfg.Platform.Timeout)
		assert.InDelta(t, 5.5, cfg.Platform.RequestsPerSecond, 0.001)
		assert.True(t, cfg.Session.Revocation)
	})

	t.Run("missing component credentials", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "0123456789abcdef0123")
		t.Setenv("COMPONENT_APPID", "")
		t.Setenv("COMPONENT_APPSECRET", "")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "COMPONENT_APPID is required")
	})

	t.Run("short session secret", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SESSION_SECRET", "short")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_SECRET must be at least 16")
	})

	t.Run("unparsable duration", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PLATFORM_TIMEOUT", "soon")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PLATFORM_TIMEOUT")
	})
}

type fakeSecrets struct {
	out *secretsmanager.GetSecretValueOutput
	err error
	got *secretsmanager.GetSecretValueInput
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.got = in
	return f.out, f.err
}

func TestLoadSecretIntoEnv(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("exports keys without overriding existing values", func(t *testing.T) {
		t.Setenv("CREDGATE_TEST_KEEP", "local")
		t.Setenv("CREDGATE_TEST_NEW", "")
		client := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
			SecretString: aws.String(`{"CREDGATE_TEST_KEEP":"remote","CREDGATE_TEST_NEW":"remote","CREDGATE_TEST_NUM":42}`),
		}}

		require.NoError(t, loadSecretIntoEnv(ctx, client, "credgate/prod", logger))
		assert.Equal(t, "credgate/prod", aws.ToString(client.got.SecretId))
		assert.Equal(t, "AWSCURRENT", aws.ToString(client.got.VersionStage))
		assert.Equal(t, "local", os.Getenv("CREDGATE_TEST_KEEP"))
		assert.Equal(t, "remote", os.Getenv("CREDGATE_TEST_NEW"))
		assert.Equal(t, "42", os.Getenv("CREDGATE_TEST_NUM"))
		_ = os.Unsetenv("CREDGATE_TEST_NUM")
	})

	t.Run("overwrite flag replaces existing values", func(t *testing.T) {
		t.Setenv("AWS_SECRETS_MANAGER_OVERWRITE", "true")
		t.Setenv("CREDGATE_TEST_KEEP", "local")
		client := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{
			SecretBinary: []byte(`{"CREDGATE_TEST_KEEP":"remote"}`),
		}}

		require.NoError(t, loadSecretIntoEnv(ctx, client, "credgate/prod", logger))
		assert.Equal(t, "remote", os.Getenv("CREDGATE_TEST_KEEP"))
	})

	t.Run("fetch failure", func(t *testing.T) {
		client := &fakeSecrets{err: errors.New("access denied")}
		err := loadSecretIntoEnv(ctx, client, "credgate/prod", logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})

	t.Run("non JSON payload", func(t *testing.T) {
		client := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("plain")}}
		require.Error(t, loadSecretIntoEnv(ctx, client, "credgate/prod", logger))
	})

	t.Run("empty payload", func(t *testing.T) {
		client := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{}}
		require.Error(t, loadSecretIntoEnv(ctx, client, "credgate/prod", logger))
	})
}

func TestLoadDotEnv(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CREDGATE_TEST_DOTENV=fromfile\n"), 0o600))
	t.Setenv("ENV_FILE_PATH", path)
	t.Setenv("CREDGATE_TEST_DOTENV", "")
	_ = os.Unsetenv("CREDGATE_TEST_DOTENV")

	loadDotEnv(logger, "/nonexistent/.env")
	assert.Equal(t, "fromfile", os.Getenv("CREDGATE_TEST_DOTENV"))
}
