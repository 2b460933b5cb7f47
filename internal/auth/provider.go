// Package auth acquires bearer tokens for the Graph API.
//
// Every strategy implements Provider. The strategies are selected by Mode:
//   - certificate: app-only token from a certificate-signed client assertion
//   - interactive: user token from a browser login, refreshed silently on
//     later runs from the persisted authentication record
//   - chained: certificate first, interactive if that fails
//   - client_credentials: like certificate, but the token request is built
//     and its error body decoded by hand
//
// New wraps the selected strategy in a CachedProvider so one run reuses its
// token until shortly before expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Mode selects a credential strategy.
type Mode string

// Supported modes.
const (
	ModeCertificate       Mode = "certificate"
	ModeInteractive       Mode = "interactive"
	ModeChained           Mode = "chained"
	ModeClientCredentials Mode = "client_credentials"
)

// DefaultAuthorityHost is the Microsoft identity platform authority.
const DefaultAuthorityHost = "https://login.microsoftonline.com"

// DefaultScope requests every Graph permission consented for the app.
const DefaultScope = "https://graph.microsoft.com/.default"

var (
	// ErrNoPrivateKey is returned when a certificate carries no private key.
	ErrNoPrivateKey = errors.New("auth: certificate has no private key")

	// ErrNotConfigured is returned by a strategy whose settings are absent.
	ErrNotConfigured = errors.New("auth: strategy not configured")
)

// Credential is a bearer token and the instant it stops being valid.
type Credential struct {
	AccessToken string
	ExpiresOn   time.Time
}

// Valid reports whether the credential is usable at now with skew to spare.
func (c Credential) Valid(now time.Time, skew time.Duration) bool {
	return c.AccessToken != "" && (c.ExpiresOn.IsZero() || now.Add(skew).Before(c.ExpiresOn))
}

// Provider acquires credentials for the given scopes.
type Provider interface {
	Acquire(ctx context.Context, scopes []string) (Credential, error)
	// Name identifies the strategy in logs and errors.
	Name() string
}

// Config carries everything any strategy may need. Only the fields for the
// selected Mode have to be set.
type Config struct {
	Mode          Mode
	TenantID      string
	ClientID      string
	AuthorityHost string

	// Certificate from a file.
	CertificatePath     string
	CertificatePassword string

	// Certificate from a store, looked up by thumbprint.
	CertificateThumbprint string
	StoreName             string
	StoreLocation         string
	StoreDir              string

	// Interactive login.
	RecordPath   string
	RedirectPort int
	OpenURL      func(string) error

	HTTPClient *http.Client
}

// HasCertificate reports whether any certificate source is configured.
func (c *Config) HasCertificate() bool {
	return c.CertificatePath != "" || c.CertificateThumbprint != ""
}

// New builds the provider for cfg.Mode, wrapped in a CachedProvider.
func New(cfg Config, logger *slog.Logger) (*CachedProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var p Provider

	switch cfg.Mode {
	case ModeCertificate:
		p = NewCertificateProvider(cfg, logger)
	case ModeClientCredentials:
		p = NewRawClientCredentialsProvider(cfg, logger)
	case ModeInteractive:
		p = NewInteractiveProvider(cfg, logger)
	case ModeChained:
		p = NewChainedProvider(logger, NewCertificateProvider(cfg, logger), NewInteractiveProvider(cfg, logger))
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}

	logger.Debug("credential provider selected", slog.String("mode", string(cfg.Mode)))

	return NewCachedProvider(p, logger), nil
}

// authority returns the tenant-scoped authority URL without trailing slash.
func authority(host, tenantID string) string {
	if host == "" {
		host = DefaultAuthorityHost
	}

	return strings.TrimSuffix(host, "/") + "/" + tenantID
}

// tokenEndpoint is the v2.0 token endpoint for the tenant. It is also the
// audience of client assertions.
func tokenEndpoint(host, tenantID string) string {
	return authority(host, tenantID) + "/oauth2/v2.0/token"
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}

	return c
}
