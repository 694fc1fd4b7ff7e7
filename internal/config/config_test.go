package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.App.StoreDriver)
	assert.Equal(t, "queue", cfg.Email.NotifyMode)
	assert.Equal(t, "http://localhost:8080", cfg.Site.Domain)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.MinIO.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("NOTIFY_MODE", "smtp")
	t.Setenv("SITE_DOMAIN", "https://blackcat.example/")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("MINIO_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.App.StoreDriver)
	assert.Equal(t, "smtp", cfg.Email.NotifyMode)
	assert.Equal(t, "https://blackcat.example", cfg.Site.Domain)
	assert.Equal(t, 5432, cfg.Database.Port, "invalid ints fall back to default")
	assert.True(t, cfg.MinIO.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid development config",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.App.StoreDriver = "sqlite" },
			wantErr: "STORE_DRIVER",
		},
		{
			name:    "unknown notify mode",
			mutate:  func(c *Config) { c.Email.NotifyMode = "carrier-pigeon" },
			wantErr: "NOTIFY_MODE",
		},
		{
			name: "production requires jwt secret",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Database.Password = "secret"
			},
			wantErr: "JWT_SECRET",
		},
		{
			name: "production requires db password",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.JWT.Secret = "real-secret"
			},
			wantErr: "DB_PASSWORD",
		},
		{
			name: "production rejects memory store",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.App.StoreDriver = "memory"
				c.JWT.Secret = "real-secret"
			},
			wantErr: "memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				App:   AppConfig{Environment: "development", StoreDriver: "postgres"},
				JWT:   JWTConfig{Secret: defaultJWTSecret},
				Email: EmailConfig{NotifyMode: "queue"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDatabaseConfig(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_RETRY_DELAY", "250ms")

	dbCfg, err := LoadDatabaseConfig()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", dbCfg.Host)
	assert.Equal(t, 6543, dbCfg.Port)
	assert.Equal(t, 250*time.Millisecond, dbCfg.RetryDelay)
	assert.Equal(t, int32(25), dbCfg.MaxConns)

	t.Setenv("DB_CONNECT_TIMEOUT", "soon")
	_, err = LoadDatabaseConfig()
	assert.ErrorContains(t, err, "DB_CONNECT_TIMEOUT")
}
