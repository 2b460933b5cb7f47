package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validation range constants.
const (
	chunkAlignBytes   = 327_680    // 320 KiB alignment for upload chunks
	minChunkBytes     = 327_680    // 320 KiB
	maxChunkBytes     = 62_914_560 // 60 MiB
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
	maxRedirectPort   = 65535
)

// Validate checks the values present in a config file and returns all errors
// found. It accumulates every error rather than stopping at the first, so
// users see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.AuthConfig)...)
	errs = append(errs, validateTransfer(&cfg.TransferConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)

	return errors.Join(errs...)
}

// ValidateResolved checks the required fields and cross-field constraints on
// the final merged configuration. Unlike Validate(), which checks raw config
// file values, this runs after the four-layer override chain has been applied.
func ValidateResolved(cfg *Config) error {
	errs := []error{Validate(cfg), ValidateAuth(cfg)}

	errs = append(errs, validateTarget(&cfg.TargetConfig)...)

	return errors.Join(errs...)
}

// ValidateAuth checks only what a credential needs: tenant, client and the
// material of the effective auth mode. Used by commands that never touch a
// site, such as login.
func ValidateAuth(cfg *Config) error {
	var errs []error

	if cfg.TenantID == "" {
		errs = append(errs, errors.New("tenant_id: required"))
	}

	if cfg.ClientID == "" {
		errs = append(errs, errors.New("client_id: required"))
	}

	errs = append(errs, validateAuthMaterial(cfg)...)

	return errors.Join(errs...)
}

func validateTarget(t *TargetConfig) []error {
	var errs []error

	if t.SiteURL == "" {
		errs = append(errs, errors.New("site_url: required"))
	} else if err := validateHTTPSURL(t.SiteURL); err != nil {
		errs = append(errs, fmt.Errorf("site_url: %w", err))
	}

	if strings.TrimSpace(t.Library) == "" {
		errs = append(errs, errors.New("library: required"))
	}

	return errs
}

func validateHTTPSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("must be an absolute https URL, got %q", raw)
	}

	return nil
}

var validAuthModes = map[string]bool{
	"":                        true,
	AuthModeCertificate:       true,
	AuthModeInteractive:       true,
	AuthModeChained:           true,
	AuthModeClientCredentials: true,
}

var validStoreLocations = map[string]bool{
	"currentuser":  true,
	"localmachine": true,
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if !validAuthModes[a.AuthMode] {
		errs = append(errs, fmt.Errorf(
			"auth_mode: must be one of certificate, interactive, chained, client_credentials; got %q", a.AuthMode))
	}

	if a.CertificatePath != "" && a.CertificateThumbprint != "" {
		errs = append(errs, errors.New("certificate_path and certificate_thumbprint: set only one"))
	}

	if a.StoreLocation != "" && !validStoreLocations[strings.ToLower(a.StoreLocation)] {
		errs = append(errs, fmt.Errorf("store_location: must be CurrentUser or LocalMachine, got %q", a.StoreLocation))
	}

	if a.RedirectPort < 0 || a.RedirectPort > maxRedirectPort {
		errs = append(errs, fmt.Errorf("redirect_port: must be between 0 and %d, got %d", maxRedirectPort, a.RedirectPort))
	}

	if len(a.Scopes) == 0 {
		errs = append(errs, errors.New("scopes: must not be empty"))
	}

	if err := validateHTTPSURL(a.AuthorityHost); err != nil {
		errs = append(errs, fmt.Errorf("authority_host: %w", err))
	}

	return errs
}

// validateAuthMaterial checks that the effective auth mode has what it needs.
func validateAuthMaterial(cfg *Config) []error {
	var errs []error

	mode := cfg.EffectiveAuthMode()

	switch mode {
	case AuthModeCertificate, AuthModeClientCredentials:
		errs = append(errs, validateCertificateSource(cfg, mode)...)
	case AuthModeInteractive:
		errs = append(errs, validateRecordFile(cfg, mode)...)
	case AuthModeChained:
		// Certificate material is optional: without it the chain falls
		// through to interactive login.
		if cfg.HasCertificate() {
			errs = append(errs, validateCertificateSource(cfg, mode)...)
		}

		errs = append(errs, validateRecordFile(cfg, mode)...)
	}

	return errs
}

func validateCertificateSource(cfg *Config, mode string) []error {
	if cfg.CertificatePath != "" {
		return nil
	}

	if cfg.CertificateThumbprint == "" {
		return []error{fmt.Errorf(
			"auth_mode %s: requires certificate_path or certificate_thumbprint", mode)}
	}

	var errs []error

	if cfg.StoreName == "" {
		errs = append(errs, fmt.Errorf("auth_mode %s: certificate_thumbprint requires store_name", mode))
	}

	if cfg.StoreLocation == "" {
		errs = append(errs, fmt.Errorf("auth_mode %s: certificate_thumbprint requires store_location", mode))
	}

	if cfg.CertStoreDir == "" {
		errs = append(errs, fmt.Errorf("auth_mode %s: certificate_thumbprint requires cert_store_dir", mode))
	}

	return errs
}

func validateRecordFile(cfg *Config, mode string) []error {
	if cfg.AuthRecordFile == "" {
		return []error{fmt.Errorf("auth_mode %s: requires auth_record_file", mode)}
	}

	return nil
}

func validateTransfer(t *TransferConfig) []error {
	var errs []error

	errs = append(errs, validateChunkSize(t.ChunkSize)...)

	if err := validateHTTPSURL(t.GraphURL); err != nil {
		errs = append(errs, fmt.Errorf("graph_url: %w", err))
	}

	return errs
}

func validateChunkSize(s string) []error {
	bytes, err := ParseSize(s)
	if err != nil {
		return []error{fmt.Errorf("chunk_size: %w", err)}
	}

	if bytes < minChunkBytes || bytes > maxChunkBytes {
		return []error{fmt.Errorf("chunk_size: must be between 320KiB and 60MiB, got %s", s)}
	}

	if bytes%chunkAlignBytes != 0 {
		return []error{fmt.Errorf(
			"chunk_size: must be a multiple of 320 KiB (%d bytes), got %s (%d bytes)",
			chunkAlignBytes, s, bytes)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

// Durations returns the parsed connect and data timeouts. Values have
// already been validated.
func (n *NetworkConfig) Durations() (connect, data time.Duration) {
	connect, _ = time.ParseDuration(n.ConnectTimeout) //nolint:errcheck // validated
	data, _ = time.ParseDuration(n.DataTimeout)       //nolint:errcheck // validated

	return connect, data
}
