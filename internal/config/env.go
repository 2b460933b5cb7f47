package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig              = "SPUPLOAD_CONFIG"
	EnvCertificatePassword = "SPUPLOAD_CERTIFICATE_PASSWORD"
	EnvTenantID            = "SPUPLOAD_TENANT_ID"
	EnvClientID            = "SPUPLOAD_CLIENT_ID"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath          string // SPUPLOAD_CONFIG: override config file path
	CertificatePassword string // SPUPLOAD_CERTIFICATE_PASSWORD: keeps the secret out of the file
	TenantID            string // SPUPLOAD_TENANT_ID
	ClientID            string // SPUPLOAD_CLIENT_ID
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:          os.Getenv(EnvConfig),
		CertificatePassword: os.Getenv(EnvCertificatePassword),
		TenantID:            os.Getenv(EnvTenantID),
		ClientID:            os.Getenv(EnvClientID),
	}
}

func (e EnvOverrides) apply(cfg *Config) {
	if e.CertificatePassword != "" {
		cfg.CertificatePassword = e.CertificatePassword
	}

	if e.TenantID != "" {
		cfg.TenantID = e.TenantID
	}

	if e.ClientID != "" {
		cfg.ClientID = e.ClientID
	}
}
