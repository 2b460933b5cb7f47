package config

import "path/filepath"

// Auth modes accepted in auth_mode.
const (
	AuthModeCertificate       = "certificate"
	AuthModeInteractive       = "interactive"
	AuthModeChained           = "chained"
	AuthModeClientCredentials = "client_credentials"
)

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain.
const (
	defaultGraphURL       = "https://graph.microsoft.com/v1.0"
	defaultAuthorityHost  = "https://login.microsoftonline.com"
	defaultScope          = "https://graph.microsoft.com/.default"
	defaultStoreName      = "My"
	defaultStoreLocation  = "CurrentUser"
	defaultChunkSize      = "5MiB"
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	defaultConnectTimeout = "10s"
	defaultDataTimeout    = "60s"
	authRecordFileName    = "auth-record.json"
	certStoreDirName      = "certificates"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		AuthConfig:     defaultAuthConfig(),
		TransferConfig: defaultTransferConfig(),
		LoggingConfig:  defaultLoggingConfig(),
		NetworkConfig:  defaultNetworkConfig(),
	}
}

func defaultAuthConfig() AuthConfig {
	a := AuthConfig{
		AuthorityHost: defaultAuthorityHost,
		Scopes:        []string{defaultScope},
		StoreName:     defaultStoreName,
		StoreLocation: defaultStoreLocation,
	}

	if dir := DefaultDataDir(); dir != "" {
		a.AuthRecordFile = filepath.Join(dir, authRecordFileName)
		a.CertStoreDir = filepath.Join(dir, certStoreDirName)
	}

	return a
}

func defaultTransferConfig() TransferConfig {
	return TransferConfig{
		ChunkSize: defaultChunkSize,
		GraphURL:  defaultGraphURL,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout: defaultConnectTimeout,
		DataTimeout:    defaultDataTimeout,
	}
}
