package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 10.0, cfg.Commission.DefaultRate)
	assert.Equal(t, 10.0, cfg.Referral.SellerAccountRate)
	assert.Equal(t, 5.0, cfg.Referral.ProductRate)
	assert.Equal(t, 8, cfg.Referral.CodeLength)
	assert.Equal(t, 30*24*time.Hour, cfg.Referral.ReferralTTL)
	assert.Equal(t, "ledger.events", cfg.Outbox.Topic)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_SERVER_PORT", "9090")
	t.Setenv("LEDGER_DATABASE_DRIVER", "sqlite")
	t.Setenv("LEDGER_DATABASE_DSN", "file::memory:")
	t.Setenv("LEDGER_COMMISSION_DEFAULT_RATE", "12.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 12.5, cfg.Commission.DefaultRate)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("LEDGER_DATABASE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
