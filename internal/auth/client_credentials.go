package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tonimelisma/sharepoint-upload/internal/graph"
)

// maxTokenResponse bounds how much of a token endpoint response is read.
const maxTokenResponse = 64 * 1024

// TokenError is an error document returned by the token endpoint.
type TokenError struct {
	StatusCode    int
	Code          string `json:"error"`
	Description   string `json:"error_description"`
	ErrorCodes    []int  `json:"error_codes"`
	TraceID       string `json:"trace_id"`
	CorrelationID string `json:"correlation_id"`
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("auth: token endpoint returned HTTP %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// Structured exposes the document in the shape the error report renders.
func (e *TokenError) Structured() *graph.ProviderError {
	pe := &graph.ProviderError{Code: e.Code, Message: e.Description}

	if len(e.ErrorCodes) > 0 {
		codes := make([]string, len(e.ErrorCodes))
		for i, c := range e.ErrorCodes {
			codes[i] = "AADSTS" + strconv.Itoa(c)
		}

		pe.Details = append(pe.Details, graph.ErrorDetail{Target: "error_codes", Message: strings.Join(codes, ", ")})
	}

	if e.CorrelationID != "" {
		pe.Details = append(pe.Details, graph.ErrorDetail{Target: "correlation_id", Message: e.CorrelationID})
	}

	if e.TraceID != "" {
		pe.Details = append(pe.Details, graph.ErrorDetail{Target: "trace_id", Message: e.TraceID})
	}

	return pe
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

// RawClientCredentialsProvider performs the client credentials grant with a
// hand-built request: the signed assertion is posted as a form and the
// response, including the identity platform's error document, is decoded
// directly.
type RawClientCredentialsProvider struct {
	cfg        Config
	certs      *certificateSource
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewRawClientCredentialsProvider creates a RawClientCredentialsProvider.
func NewRawClientCredentialsProvider(cfg Config, logger *slog.Logger) *RawClientCredentialsProvider {
	return &RawClientCredentialsProvider{
		cfg:        cfg,
		certs:      &certificateSource{cfg: cfg, logger: logger},
		httpClient: httpClientOrDefault(cfg.HTTPClient),
		logger:     logger,
		now:        time.Now,
	}
}

// Name implements Provider.
func (p *RawClientCredentialsProvider) Name() string { return string(ModeClientCredentials) }

// Acquire implements Provider.
func (p *RawClientCredentialsProvider) Acquire(ctx context.Context, scopes []string) (Credential, error) {
	cert, err := p.certs.load()
	if err != nil {
		return Credential{}, err
	}

	endpoint := tokenEndpoint(p.cfg.AuthorityHost, p.cfg.TenantID)
	issued := p.now()

	assertion, err := BuildAssertion(cert, p.cfg.ClientID, endpoint, issued)
	if err != nil {
		return Credential{}, err
	}

	form := url.Values{
		"client_id":             {p.cfg.ClientID},
		"scope":                 {strings.Join(scopes, " ")},
		"grant_type":            {"client_credentials"},
		"client_assertion_type": {AssertionType},
		"client_assertion":      {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("auth: creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	p.logger.Info("requesting app-only token (raw client credentials)",
		slog.String("tenant_id", p.cfg.TenantID),
		slog.String("client_id", p.cfg.ClientID),
	)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("auth: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return Credential{}, fmt.Errorf("auth: reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		te := &TokenError{}
		if jsonErr := json.Unmarshal(body, te); jsonErr != nil || te.Code == "" {
			te = &TokenError{Code: "http_error", Description: strings.TrimSpace(string(body))}
		}

		te.StatusCode = resp.StatusCode

		return Credential{}, te
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Credential{}, fmt.Errorf("auth: decoding token response: %w", err)
	}

	if tr.AccessToken == "" {
		return Credential{}, fmt.Errorf("auth: token response has no access_token")
	}

	expiresIn, err := parseExpiresIn(tr.ExpiresIn)
	if err != nil {
		return Credential{}, err
	}

	cred := Credential{AccessToken: tr.AccessToken}
	if expiresIn > 0 {
		cred.ExpiresOn = issued.Add(time.Duration(expiresIn) * time.Second)
	}

	p.logger.Debug("app-only token acquired", slog.Time("expiry", cred.ExpiresOn))

	return cred, nil
}

// parseExpiresIn accepts expires_in as a JSON number or a numeric string;
// the identity platform has sent both.
func parseExpiresIn(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	s := strings.Trim(string(raw), `"`)

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("auth: invalid expires_in %s: %w", raw, err)
	}

	return n, nil
}
