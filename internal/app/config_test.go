package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/recipe")
	t.Setenv("S3_BUCKET", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.AppAddr)
	assert.Equal(t, 10*time.Minute, cfg.TokenCacheTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.StorageEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_ADDR", ":9000")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("S3_BUCKET", "images")
	t.Setenv("S3_ACCESS_KEY", "key")
	t.Setenv("S3_SECRET_KEY", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9000", cfg.AppAddr)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.True(t, cfg.StorageEnabled())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{PGDSN: "dsn", RateLimitPerMinute: 1}, true},
		{"missing dsn", Config{RateLimitPerMinute: 1}, false},
		{"zero rate", Config{PGDSN: "dsn"}, false},
		{"bucket without creds", Config{PGDSN: "dsn", RateLimitPerMinute: 1, S3Bucket: "b"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv("RECIPE_TEST_MODE", "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv("RECIPE_TEST_MODE", "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
