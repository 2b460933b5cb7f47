// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for spupload. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
//
// All keys are flat and top-level; the embedded sub-structs only group them
// for readability.
package config

// Config is the configuration for one upload run.
type Config struct {
	TargetConfig
	AuthConfig
	TransferConfig
	LoggingConfig
	NetworkConfig
}

// TargetConfig names where the file goes.
type TargetConfig struct {
	SiteURL string `toml:"site_url"`
	Library string `toml:"library"`
	// Folder is a slash-separated path inside the library; empty means the
	// library root.
	Folder string `toml:"folder"`
}

// AuthConfig selects the credential strategy and carries its material.
// Only the fields of the effective auth mode are required.
type AuthConfig struct {
	TenantID string `toml:"tenant_id"`
	ClientID string `toml:"client_id"`
	// AuthMode is certificate, interactive, chained or client_credentials.
	// Empty infers the mode from the material present.
	AuthMode      string   `toml:"auth_mode"`
	AuthorityHost string   `toml:"authority_host"`
	Scopes        []string `toml:"scopes"`

	CertificatePath     string `toml:"certificate_path"`
	CertificatePassword string `toml:"certificate_password"`

	CertificateThumbprint string `toml:"certificate_thumbprint"`
	StoreName             string `toml:"store_name"`
	StoreLocation         string `toml:"store_location"`
	CertStoreDir          string `toml:"cert_store_dir"`

	AuthRecordFile string `toml:"auth_record_file"`
	RedirectPort   int    `toml:"redirect_port"`
}

// TransferConfig controls the Graph endpoint and upload chunking.
// The chunk_size must be a multiple of 320 KiB per the upload session API.
type TransferConfig struct {
	ChunkSize string `toml:"chunk_size"`
	GraphURL  string `toml:"graph_url"`
}

// LoggingConfig controls log output behavior: level, format and destination.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior. connect_timeout bounds the
// TCP/TLS dial; data_timeout bounds the wait for response headers. Neither
// limits the length of a whole upload.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the empty string", which matters for --folder ""
// (upload into the library root even if the file names a folder).
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	SiteURL    *string // --site
	Library    *string // --library
	Folder     *string // --folder
	AuthMode   *string // --auth-mode
}

// EffectiveAuthMode returns the configured auth mode, or infers one:
// certificate material selects certificate, anything else interactive.
func (c *Config) EffectiveAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}

	if c.HasCertificate() {
		return AuthModeCertificate
	}

	return AuthModeInteractive
}

// HasCertificate reports whether a certificate file or thumbprint is set.
func (c *Config) HasCertificate() bool {
	return c.CertificatePath != "" || c.CertificateThumbprint != ""
}

// ChunkSizeBytes returns chunk_size in bytes. The value has already been
// validated, so a parse failure yields 0 (the engine default).
func (c *Config) ChunkSizeBytes() int64 {
	n, err := ParseSize(c.ChunkSize)
	if err != nil {
		return 0
	}

	return n
}
