package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

const fullConfig = `
site_url = "https://contoso.sharepoint.com/sites/team"
library = "Documents"
folder = "Shared/Reports"

tenant_id = "11111111-2222-3333-4444-555555555555"
client_id = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
auth_mode = "certificate"
certificate_path = "/etc/spupload/app.pfx"
certificate_password = "pw"
scopes = ["https://graph.microsoft.com/.default"]

chunk_size = "10MiB"
log_level = "debug"
log_format = "json"
log_file = "/var/log/spupload.log"
connect_timeout = "5s"
data_timeout = "2m"
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://contoso.sharepoint.com/sites/team", cfg.SiteURL)
	assert.Equal(t, "Documents", cfg.Library)
	assert.Equal(t, "Shared/Reports", cfg.Folder)
	assert.Equal(t, AuthModeCertificate, cfg.AuthMode)
	assert.Equal(t, "/etc/spupload/app.pfx", cfg.CertificatePath)
	assert.Equal(t, int64(10*1024*1024), cfg.ChunkSizeBytes())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/var/log/spupload.log", cfg.LogFile)

	// Unset keys keep their defaults.
	assert.Equal(t, defaultGraphURL, cfg.GraphURL)
	assert.Equal(t, "My", cfg.StoreName)
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(writeTestConfig(t, `site_url = `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(writeTestConfig(t, `
chunk_size = "1000"
log_level = "loud"
auth_mode = "password"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "auth_mode")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func ptr[T any](v T) *T { return &v }

func TestResolve_LayerPrecedence(t *testing.T) {
	path := writeTestConfig(t, fullConfig)

	env := EnvOverrides{
		ConfigPath:          path,
		TenantID:            "tenant-env",
		CertificatePassword: "env-pass",
	}
	cli := CLIOverrides{
		Library: ptr("Reports Library"),
		Folder:  ptr(""),
	}

	cfg, err := Resolve(env, cli)
	require.NoError(t, err)

	assert.Equal(t, "tenant-env", cfg.TenantID, "env beats file")
	assert.Equal(t, "env-pass", cfg.CertificatePassword)
	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", cfg.ClientID, "file kept when env unset")
	assert.Equal(t, "Reports Library", cfg.Library, "flag beats file")
	assert.Empty(t, cfg.Folder, "explicit empty flag clears folder")
	assert.Equal(t, "https://contoso.sharepoint.com/sites/team", cfg.SiteURL)
}

func TestResolve_CLIConfigPathBeatsEnv(t *testing.T) {
	envPath := writeTestConfig(t, `library = "FromEnv"`)
	cliPath := writeTestConfig(t, fullConfig)

	cfg, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, "Documents", cfg.Library)
}

func TestResolve_ExplicitMissingFileFails(t *testing.T) {
	_, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: filepath.Join(t.TempDir(), "nope.toml")})
	require.Error(t, err)
}

func TestResolve_MissingRequiredFieldsReportedTogether(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := Resolve(EnvOverrides{}, CLIOverrides{AuthMode: ptr(AuthModeCertificate)})
	require.Error(t, err)

	for _, want := range []string{"site_url", "library", "tenant_id", "client_id", "certificate_path"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLayer_SkipsRequiredFields(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Layer(EnvOverrides{TenantID: "t", ClientID: "c"}, CLIOverrides{})
	require.NoError(t, err)
	assert.NoError(t, ValidateAuth(cfg))
	assert.Error(t, ValidateResolved(cfg))
}
