package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SMTP_PORT", "")
	t.Setenv("TRUST_PROXY", "")
	t.Setenv("OTP_TTL", "")
	cfg := Load()
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, "EPAYTEST", cfg.ESewa.ProductCode)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SMTP_PORT", "2465")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TRUST_PROXY", "true")
	cfg := Load()
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, 2465, cfg.SMTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SMTP_TIMEOUT", "soon")
	assert.Equal(t, 3*time.Second, getEnvDuration("SMTP_TIMEOUT", 3*time.Second))
}
