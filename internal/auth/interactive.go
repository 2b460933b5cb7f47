package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/tonimelisma/sharepoint-upload/internal/authrecord"
)

// loginScopes are requested on every interactive login in addition to the
// configured scopes, so the response carries a refresh token and an id_token.
var loginScopes = []string{"openid", "profile", "offline_access"}

// reloginCodes are token endpoint error codes that mean the refresh token can
// no longer be used silently.
var reloginCodes = []string{"invalid_grant", "interaction_required", "login_required", "consent_required"}

// stateTokenBytes is the number of random bytes for the OAuth2 state parameter.
const stateTokenBytes = 16

// callbackPath is the HTTP path the OAuth2 redirect hits on the local server.
// Root path matches the registered "http://localhost" redirect URI exactly.
const callbackPath = "/"

// shutdownTimeout is how long to wait for the callback server to drain.
const shutdownTimeout = 5 * time.Second

// callbackResult carries the authorization code or error from the callback handler.
type callbackResult struct {
	code string
	err  error
}

// InteractiveProvider acquires user tokens. The first run opens a browser
// for an authorization code + PKCE login and persists an authentication
// record; later runs refresh silently from that record.
type InteractiveProvider struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewInteractiveProvider creates an InteractiveProvider.
func NewInteractiveProvider(cfg Config, logger *slog.Logger) *InteractiveProvider {
	return &InteractiveProvider{
		cfg:        cfg,
		httpClient: httpClientOrDefault(cfg.HTTPClient),
		logger:     logger,
		now:        time.Now,
	}
}

// Name implements Provider.
func (p *InteractiveProvider) Name() string { return string(ModeInteractive) }

// Acquire implements Provider. It never fails just because the record is
// missing, corrupt or issued for another tenant or client; those cases
// trigger an interactive login.
func (p *InteractiveProvider) Acquire(ctx context.Context, scopes []string) (Credential, error) {
	if p.cfg.RecordPath == "" {
		return Credential{}, fmt.Errorf("%w: no authentication record file", ErrNotConfigured)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	oc := p.oauthConfig(scopes)

	if rec := p.loadRecord(); rec != nil {
		cred, err := p.refresh(ctx, oc, rec)
		if err == nil {
			return cred, nil
		}

		if !needsRelogin(err) {
			return Credential{}, err
		}

		p.logger.Info("saved login expired, interactive login required",
			slog.String("error", err.Error()),
		)
	}

	cred, saveErr, err := p.login(ctx, oc)
	if err != nil {
		return Credential{}, err
	}

	// The token is good for this run; only the next run's silent refresh
	// needs the record.
	if saveErr != nil {
		p.logger.Warn("authentication record not saved, next run will prompt again",
			slog.String("path", p.cfg.RecordPath),
			slog.String("error", saveErr.Error()),
		)
	}

	return cred, nil
}

// Login runs the browser flow unconditionally and replaces the record.
// Failing to save the record is an error here.
func (p *InteractiveProvider) Login(ctx context.Context, scopes []string) (Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	cred, saveErr, err := p.login(ctx, p.oauthConfig(scopes))
	if err != nil {
		return Credential{}, err
	}

	if saveErr != nil {
		return Credential{}, saveErr
	}

	return cred, nil
}

// login runs the browser flow and tries to save the record. saveErr reports
// a record that could not be written alongside a usable credential.
func (p *InteractiveProvider) login(ctx context.Context, oc *oauth2.Config) (cred Credential, saveErr, err error) {
	tok, err := p.authCodeLogin(ctx, oc)
	if err != nil {
		return Credential{}, nil, err
	}

	rec := &authrecord.Record{
		Authority: authority(p.cfg.AuthorityHost, p.cfg.TenantID),
		TenantID:  p.cfg.TenantID,
		ClientID:  p.cfg.ClientID,
		Scopes:    oc.Scopes,
	}
	fillIdentity(rec, tok, p.logger)

	saveErr = p.saveRecord(rec, tok)

	p.logger.Info("interactive login successful",
		slog.String("username", rec.Username),
		slog.Time("expiry", tok.Expiry),
	)

	return Credential{AccessToken: tok.AccessToken, ExpiresOn: tok.Expiry}, saveErr, nil
}

func (p *InteractiveProvider) oauthConfig(scopes []string) *oauth2.Config {
	all := slices.Clone(scopes)
	for _, s := range loginScopes {
		if !slices.Contains(all, s) {
			all = append(all, s)
		}
	}

	endpoint := microsoft.AzureADEndpoint(p.cfg.TenantID)
	if p.cfg.AuthorityHost != "" && strings.TrimSuffix(p.cfg.AuthorityHost, "/") != DefaultAuthorityHost {
		base := authority(p.cfg.AuthorityHost, p.cfg.TenantID)
		endpoint = oauth2.Endpoint{
			AuthURL:  base + "/oauth2/v2.0/authorize",
			TokenURL: base + "/oauth2/v2.0/token",
		}
	}

	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &oauth2.Config{
		ClientID: p.cfg.ClientID,
		Scopes:   all,
		Endpoint: endpoint,
	}
}

// loadRecord returns the record if it can be trusted for the active tenant
// and client, or nil.
func (p *InteractiveProvider) loadRecord() *authrecord.Record {
	rec, err := authrecord.Load(p.cfg.RecordPath)
	if err != nil {
		p.logger.Warn("ignoring unusable authentication record",
			slog.String("path", p.cfg.RecordPath),
			slog.String("error", err.Error()),
		)

		return nil
	}

	if rec == nil {
		p.logger.Debug("no authentication record", slog.String("path", p.cfg.RecordPath))
		return nil
	}

	if !rec.Matches(p.cfg.TenantID, p.cfg.ClientID) {
		p.logger.Warn("ignoring authentication record for another tenant or client",
			slog.String("path", p.cfg.RecordPath),
			slog.String("record_tenant_id", rec.TenantID),
			slog.String("record_client_id", rec.ClientID),
		)

		return nil
	}

	return rec
}

// refresh redeems the record's refresh token. A rotated refresh token is
// written back so the next run can use it.
func (p *InteractiveProvider) refresh(ctx context.Context, oc *oauth2.Config, rec *authrecord.Record) (Credential, error) {
	p.logger.Info("refreshing token from authentication record",
		slog.String("username", rec.Username),
		slog.Time("saved_at", rec.SavedAt),
	)

	tok, err := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: rec.RefreshToken}).Token()
	if err != nil {
		return Credential{}, fmt.Errorf("auth: silent refresh: %w", err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != rec.RefreshToken {
		updated := *rec
		updated.SavedAt = time.Time{}

		if err := p.saveRecord(&updated, tok); err != nil {
			p.logger.Warn("failed to persist rotated refresh token", slog.String("error", err.Error()))
		} else {
			p.logger.Debug("persisted rotated refresh token", slog.String("path", p.cfg.RecordPath))
		}
	}

	return Credential{AccessToken: tok.AccessToken, ExpiresOn: tok.Expiry}, nil
}

func (p *InteractiveProvider) saveRecord(rec *authrecord.Record, tok *oauth2.Token) error {
	if tok.RefreshToken == "" {
		return errors.New("auth: login response has no refresh token (is offline_access granted?)")
	}

	rec.RefreshToken = tok.RefreshToken

	if err := authrecord.Save(p.cfg.RecordPath, rec); err != nil {
		return fmt.Errorf("auth: saving authentication record: %w", err)
	}

	return nil
}

// needsRelogin reports whether err means the refresh token is no longer
// usable and the user must log in again.
func needsRelogin(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}

	return slices.Contains(reloginCodes, re.ErrorCode)
}

// fillIdentity copies the user name and home account id from the id_token.
// The token was just received over TLS from the token endpoint, so its
// signature is not checked here.
func fillIdentity(rec *authrecord.Record, tok *oauth2.Token, logger *slog.Logger) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		logger.Debug("could not parse id_token", slog.String("error", err.Error()))
		return
	}

	for _, key := range []string{"preferred_username", "upn", "email"} {
		if v, ok := claims[key].(string); ok && v != "" {
			rec.Username = v
			break
		}
	}

	oid, _ := claims["oid"].(string)
	tid, _ := claims["tid"].(string)

	if oid != "" && tid != "" {
		rec.HomeAccountID = oid + "." + tid
	}
}

// authCodeLogin performs the authorization code + PKCE flow:
//  1. Binds a localhost HTTP server
//  2. Opens the browser to the authorization endpoint
//  3. Receives the callback with the authorization code
//  4. Exchanges the code for tokens using PKCE
//
// No timeout is imposed; the caller's context bounds the wait.
func (p *InteractiveProvider) authCodeLogin(ctx context.Context, oc *oauth2.Config) (*oauth2.Token, error) {
	p.logger.Info("starting browser login (authorization code + PKCE)",
		slog.String("tenant_id", p.cfg.TenantID),
	)

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, mux, p.cfg.RedirectPort, resultCh, p.logger)
	if err != nil {
		return nil, err
	}

	defer shutdownCallbackServer(srv, p.logger)

	oc.RedirectURL = fmt.Sprintf("http://localhost:%d", port)

	verifier := oauth2.GenerateVerifier()

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("auth: generating state token: %w", err)
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL := oc.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	launchBrowser(authURL, p.cfg.OpenURL, p.logger)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return nil, err
	}

	p.logger.Info("received authorization code, exchanging for token")

	tok, err := oc.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: token exchange failed: %w", err)
	}

	return tok, nil
}

// startCallbackServer binds to 127.0.0.1 on the given port (0 picks one)
// and starts an HTTP server with the given mux.
func startCallbackServer(
	ctx context.Context,
	mux *http.ServeMux,
	port int,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, 0, fmt.Errorf("auth: binding localhost listener: %w", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, fmt.Errorf("auth: listener address is not TCP")
	}

	logger.Info("callback server listening", slog.Int("port", tcpAddr.Port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			select {
			case resultCh <- callbackResult{err: fmt.Errorf("auth: callback server error: %w", serveErr)}:
			default:
			}
		}
	}()

	return srv, tcpAddr.Port, nil
}

// registerCallbackHandler adds the callback route to the mux.
// Must be called before the browser redirects back.
func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		handleOAuthCallback(w, r, state, resultCh)
	})
}

// handleOAuthCallback validates the state, extracts the code, and sends the result.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	q := r.URL.Query()

	var result callbackResult

	switch {
	case q.Get("state") != state:
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		result.err = errors.New("auth: OAuth2 state mismatch (possible CSRF)")
	case q.Get("error") != "":
		http.Error(w, "Authorization failed: "+q.Get("error"), http.StatusBadRequest)
		result.err = fmt.Errorf("auth: authorization failed: %s: %s", q.Get("error"), q.Get("error_description"))
	case q.Get("code") == "":
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		result.err = errors.New("auth: callback missing authorization code")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
			"<p>You can close this window and return to the terminal.</p></body></html>")

		result.code = q.Get("code")
	}

	// Only the first callback counts; later ones (favicon retries, reloads)
	// must not block the handler.
	select {
	case resultCh <- result:
	default:
	}
}

// shutdownCallbackServer gracefully shuts down the callback HTTP server.
func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
	}
}

// launchBrowser attempts to open the auth URL. If it fails, prints the URL
// to stderr so the user can copy-paste it.
func launchBrowser(authURL string, openURL func(string) error, logger *slog.Logger) {
	logger.Info("opening browser for authorization")

	if openURL == nil {
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
		return
	}

	if openErr := openURL(authURL); openErr != nil {
		logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or the context is canceled.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("auth: browser login canceled: %w", ctx.Err())
	}
}

// generateState produces a random hex string for the OAuth2 state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
