package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validResolved() *Config {
	cfg := DefaultConfig()
	cfg.SiteURL = "https://contoso.sharepoint.com/sites/team"
	cfg.Library = "Documents"
	cfg.TenantID = "tenant"
	cfg.ClientID = "client"
	cfg.CertificatePath = "/certs/app.pfx"
	cfg.AuthRecordFile = "/data/auth-record.json"

	return cfg
}

func TestValidateResolved_Valid(t *testing.T) {
	assert.NoError(t, ValidateResolved(validResolved()))
}

func TestValidateResolved_Target(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing site", func(c *Config) { c.SiteURL = "" }, "site_url: required"},
		{"http site", func(c *Config) { c.SiteURL = "http://contoso.sharepoint.com/sites/team" }, "absolute https URL"},
		{"relative site", func(c *Config) { c.SiteURL = "/sites/team" }, "absolute https URL"},
		{"missing library", func(c *Config) { c.Library = "  " }, "library: required"},
		{"missing tenant", func(c *Config) { c.TenantID = "" }, "tenant_id: required"},
		{"missing client", func(c *Config) { c.ClientID = "" }, "client_id: required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validResolved()
			tt.mutate(cfg)

			err := ValidateResolved(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateResolved_EmptyFolderIsLibraryRoot(t *testing.T) {
	cfg := validResolved()
	cfg.Folder = ""
	assert.NoError(t, ValidateResolved(cfg))
}

func TestValidateAuth_MaterialPerMode(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "certificate without material",
			mutate: func(c *Config) {
				c.AuthMode = AuthModeCertificate
				c.CertificatePath = ""
			},
			wantErr: "requires certificate_path or certificate_thumbprint",
		},
		{
			name: "client credentials without material",
			mutate: func(c *Config) {
				c.AuthMode = AuthModeClientCredentials
				c.CertificatePath = ""
			},
			wantErr: "requires certificate_path or certificate_thumbprint",
		},
		{
			name: "thumbprint without store name",
			mutate: func(c *Config) {
				c.CertificatePath = ""
				c.CertificateThumbprint = "AB CD"
				c.StoreName = ""
			},
			wantErr: "requires store_name",
		},
		{
			name: "thumbprint without store dir",
			mutate: func(c *Config) {
				c.CertificatePath = ""
				c.CertificateThumbprint = "AB CD"
				c.CertStoreDir = ""
			},
			wantErr: "requires cert_store_dir",
		},
		{
			name: "interactive without record",
			mutate: func(c *Config) {
				c.AuthMode = AuthModeInteractive
				c.AuthRecordFile = ""
			},
			wantErr: "requires auth_record_file",
		},
		{
			name: "chained without record",
			mutate: func(c *Config) {
				c.AuthMode = AuthModeChained
				c.AuthRecordFile = ""
			},
			wantErr: "requires auth_record_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validResolved()
			tt.mutate(cfg)

			err := ValidateAuth(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAuth_ThumbprintWithStore(t *testing.T) {
	cfg := validResolved()
	cfg.CertificatePath = ""
	cfg.CertificateThumbprint = "AB:CD"
	cfg.CertStoreDir = "/store"

	assert.NoError(t, ValidateAuth(cfg))
}

func TestValidateAuth_ChainedWithoutCertificate(t *testing.T) {
	cfg := validResolved()
	cfg.AuthMode = AuthModeChained
	cfg.CertificatePath = ""

	assert.NoError(t, ValidateAuth(cfg))

	cfg.CertificateThumbprint = "AB:CD"
	cfg.StoreName = ""

	err := ValidateAuth(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth_mode chained: certificate_thumbprint requires store_name")
}

func TestValidate_Values(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad auth mode", func(c *Config) { c.AuthMode = "device_code" }, "auth_mode"},
		{"both certificate sources", func(c *Config) {
			c.CertificatePath = "a.pfx"
			c.CertificateThumbprint = "AB"
		}, "set only one"},
		{"bad store location", func(c *Config) { c.StoreLocation = "Somewhere" }, "store_location"},
		{"redirect port", func(c *Config) { c.RedirectPort = 70000 }, "redirect_port"},
		{"no scopes", func(c *Config) { c.Scopes = nil }, "scopes"},
		{"http authority", func(c *Config) { c.AuthorityHost = "http://login" }, "authority_host"},
		{"chunk not aligned", func(c *Config) { c.ChunkSize = "1MB" }, "multiple of 320 KiB"},
		{"chunk too small", func(c *Config) { c.ChunkSize = "100KiB" }, "between 320KiB and 60MiB"},
		{"chunk too large", func(c *Config) { c.ChunkSize = "61MiB" }, "between 320KiB and 60MiB"},
		{"chunk unparsable", func(c *Config) { c.ChunkSize = "big" }, "chunk_size"},
		{"graph url", func(c *Config) { c.GraphURL = "graph.microsoft.com" }, "graph_url"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"connect timeout", func(c *Config) { c.ConnectTimeout = "10ms" }, "connect_timeout"},
		{"data timeout", func(c *Config) { c.DataTimeout = "soon" }, "data_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_StoreLocationCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoreLocation = "localmachine"
	assert.NoError(t, Validate(cfg))
}

func TestNetworkConfig_Durations(t *testing.T) {
	n := defaultNetworkConfig()
	connect, data := n.Durations()

	assert.Equal(t, "10s", connect.String())
	assert.Equal(t, "1m0s", data.String())
}
