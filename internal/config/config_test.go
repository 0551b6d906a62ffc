package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  port: 8080
database:
  host: localhost
  user: rently
  database: rently
jwt:
  secret: 0123456789abcdef0123456789abcdef
storage:
  upload_dir: /tmp/uploads
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 5, cfg.Database.MaxRetries)
	assert.Equal(t, 8081, cfg.Server.GRPCPort)
	assert.Equal(t, 60, cfg.JWT.AccessTokenExpiry)
	assert.Equal(t, int64(10), cfg.Storage.MaxFileSize)
	assert.Contains(t, cfg.Storage.AllowedTypes, "video/mp4")

	assert.Equal(t, 0.07, cfg.Escrow.CommissionRate)
	assert.Equal(t, 0.10, cfg.Escrow.NoShowPenaltyRate)
	assert.Equal(t, int64(10), cfg.Escrow.NoShowMinPrice)
	assert.Equal(t, 100, cfg.Escrow.SweepBatchSize)
	require.NotNil(t, cfg.Escrow.RequireHandoffToken)
	assert.True(t, *cfg.Escrow.RequireHandoffToken)

	assert.Equal(t, 15, cfg.Payments.StripeTopUpExpiryMinutes)
	assert.Equal(t, 48, cfg.Payments.ExchangeWithdrawalExpiryHours)
	assert.Equal(t, "rental_events", cfg.Notification.AMQP.Exchange)
	assert.Equal(t, defaultSweepSpec, cfg.Scheduler.ExpireTopUps)

	assert.Equal(t, "postgres://rently:@localhost:0/rently?sslmode=disable", cfg.GetDatabaseConnectionString())
	assert.Equal(t, ":8080", cfg.GetServerAddress())
}

func TestParse_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"Missing port", `
jwt:
  secret: 0123456789abcdef0123456789abcdef
`},
		{"Short secret", `
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: short
storage:
  upload_dir: /tmp
`},
		{"Unknown driver", `
server:
  port: 8080
database:
  driver: sqlite
jwt:
  secret: 0123456789abcdef0123456789abcdef
storage:
  upload_dir: /tmp
`},
		{"Commission out of range", minimalYAML + `
escrow:
  commission_rate: 1.5
`},
		{"SendGrid without key", minimalYAML + `
notification:
  sendgrid:
    enabled: true
`},
		{"Malformed yaml", "server: ["},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 9091, cfg.Server.GRPCPort)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("Health"))
	assert.Equal(t, SecurityAdmin, GetSecurityLevel("ResolveIssueReport"))
	assert.Equal(t, SecurityService, GetSecurityLevel("ConfirmTopUp"))
	assert.Equal(t, SecurityService, GetSecurityLevel("NoSuchRoute"))
}
