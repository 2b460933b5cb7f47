package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, defaultGraphURL, cfg.GraphURL)
	assert.Equal(t, defaultAuthorityHost, cfg.AuthorityHost)
	assert.Equal(t, []string{defaultScope}, cfg.Scopes)
	assert.Equal(t, "My", cfg.StoreName)
	assert.Equal(t, "CurrentUser", cfg.StoreLocation)
	assert.Equal(t, "5MiB", cfg.ChunkSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Equal(t, "10s", cfg.ConnectTimeout)
	assert.Equal(t, "60s", cfg.DataTimeout)
	assert.Contains(t, cfg.AuthRecordFile, appName)
	assert.Empty(t, cfg.AuthMode)
	assert.Empty(t, cfg.SiteURL)
}

func TestDefaultConfig_PassesValueValidation(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestEffectiveAuthMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  AuthConfig
		want string
	}{
		{"explicit wins", AuthConfig{AuthMode: AuthModeChained, CertificatePath: "c.pfx"}, AuthModeChained},
		{"certificate file", AuthConfig{CertificatePath: "c.pfx"}, AuthModeCertificate},
		{"certificate thumbprint", AuthConfig{CertificateThumbprint: "AB"}, AuthModeCertificate},
		{"nothing", AuthConfig{}, AuthModeInteractive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AuthConfig: tt.cfg}
			assert.Equal(t, tt.want, cfg.EffectiveAuthMode())
		})
	}
}

func TestChunkSizeBytes(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int64(5*1024*1024), cfg.ChunkSizeBytes())

	cfg.ChunkSize = "bogus"
	assert.Zero(t, cfg.ChunkSizeBytes())
}
