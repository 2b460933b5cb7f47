package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// CertificateProvider acquires app-only tokens with a certificate-signed
// client assertion through the OAuth2 client credentials grant.
type CertificateProvider struct {
	cfg        Config
	certs      *certificateSource
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewCertificateProvider creates a CertificateProvider. The certificate is
// loaded on first use so a chained provider can fall through when it is
// missing or unusable.
func NewCertificateProvider(cfg Config, logger *slog.Logger) *CertificateProvider {
	return &CertificateProvider{
		cfg:        cfg,
		certs:      &certificateSource{cfg: cfg, logger: logger},
		httpClient: httpClientOrDefault(cfg.HTTPClient),
		logger:     logger,
		now:        time.Now,
	}
}

// Name implements Provider.
func (p *CertificateProvider) Name() string { return string(ModeCertificate) }

// Acquire implements Provider.
func (p *CertificateProvider) Acquire(ctx context.Context, scopes []string) (Credential, error) {
	cert, err := p.certs.load()
	if err != nil {
		return Credential{}, err
	}

	endpoint := tokenEndpoint(p.cfg.AuthorityHost, p.cfg.TenantID)

	assertion, err := BuildAssertion(cert, p.cfg.ClientID, endpoint, p.now())
	if err != nil {
		return Credential{}, err
	}

	cc := &clientcredentials.Config{
		ClientID: p.cfg.ClientID,
		TokenURL: endpoint,
		Scopes:   scopes,
		EndpointParams: url.Values{
			"client_assertion_type": {AssertionType},
			"client_assertion":      {assertion},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}

	p.logger.Info("requesting app-only token",
		slog.String("tenant_id", p.cfg.TenantID),
		slog.String("client_id", p.cfg.ClientID),
		slog.String("thumbprint", cert.ThumbprintHex()),
	)

	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient))
	if err != nil {
		return Credential{}, fmt.Errorf("auth: exchanging client assertion: %w", err)
	}

	p.logger.Debug("app-only token acquired", slog.Time("expiry", tok.Expiry))

	return Credential{AccessToken: tok.AccessToken, ExpiresOn: tok.Expiry}, nil
}
