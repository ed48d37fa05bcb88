package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	withEnv(t, map[string]string{"JWT_SECRET": "s3cret"})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 10, cfg.BcryptRounds)
	assert.Equal(t, 3, cfg.SubscriptionGraceDays)
	assert.Equal(t, 7, cfg.TrialDays)
	assert.EqualValues(t, 50*1024*1024, cfg.UserQuotaMarginBytes)
	assert.True(t, cfg.EnableCloudUploadLock)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	withEnv(t, map[string]string{
		"JWT_SECRET":               "s3cret",
		"PORT":                     "8080",
		"USER_QUOTA_MARGIN_BYTES":  "100Mi",
		"BCRYPT_ROUNDS":            "12",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 12, cfg.BcryptRounds)
	assert.EqualValues(t, 100*1024*1024, cfg.UserQuotaMarginBytes)
}

func TestValidateRejectsDefaultSecret(t *testing.T) {
	cfg := &Config{
		Port: 3000, JWTSecret: insecureDefaultJWTSecret, BcryptRounds: 10,
		AuthRateLimitWindowMS: 1000, AuthRateLimitMax: 10,
		SubscriptionGraceDays: 3, TrialDays: 7,
	}
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	cfg := &Config{
		Port: 3000, BcryptRounds: 10,
		AuthRateLimitWindowMS: 1000, AuthRateLimitMax: 10,
		SubscriptionGraceDays: 3, TrialDays: 7,
	}
	err := Validate(cfg)
	assert.Error(t, err)
}
