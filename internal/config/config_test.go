package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PRESENCE_TIMEOUT", "")
	t.Setenv("ESCALATION_WINDOW", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 70*time.Second, cfg.PresenceTimeout)
	assert.Equal(t, 2*time.Minute, cfg.EscalationWindow)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.SweepItemTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PRESENCE_TIMEOUT", "90")
	t.Setenv("ESCALATION_WINDOW", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.PresenceTimeout)
	assert.Equal(t, 5*time.Minute, cfg.EscalationWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SWEEP_INTERVAL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "SWEEP_INTERVAL")

	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	_, err = Load()
	assert.ErrorContains(t, err, "JWT_SECRET is required")
	assert.ErrorContains(t, err, "POSTGRES_DSN is required")
}

func TestValidateAlertChannels(t *testing.T) {
	cfg := Config{
		JWTSecret: "x", DBDriver: "sqlite", JWTTTL: time.Hour, PresenceTimeout: time.Second,
		EscalationWindow: time.Second, SweepInterval: time.Second, SweepItemTimeout: time.Second,
	}
	require.NoError(t, cfg.Validate())

	cfg.TwilioSID = "AC123"
	assert.ErrorContains(t, cfg.Validate(), "TWILIO_TOKEN")
	cfg.TwilioSID = ""
	cfg.SendGridAPIKey = "SG.x"
	assert.ErrorContains(t, cfg.Validate(), "SENDGRID_FROM")
}
