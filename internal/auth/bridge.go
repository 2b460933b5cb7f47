package auth

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/sharepoint-upload/internal/failure"
)

// TokenSource adapts a Provider to graph.TokenSource.
//
// It binds ctx at construction; ctx must outlive the TokenSource.
type TokenSource struct {
	ctx      context.Context //nolint:containedctx // graph.TokenSource has no context parameter
	provider Provider
	scopes   []string
	logger   *slog.Logger
}

// NewTokenSource creates a TokenSource for the given scopes.
func NewTokenSource(ctx context.Context, provider Provider, scopes []string, logger *slog.Logger) *TokenSource {
	return &TokenSource{ctx: ctx, provider: provider, scopes: scopes, logger: logger}
}

// Token returns a bearer token. Failures are reported as AuthFailure.
func (t *TokenSource) Token() (string, error) {
	cred, err := t.provider.Acquire(t.ctx, t.scopes)
	if err != nil {
		t.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", failure.Auth("acquire token", err)
	}

	t.logger.Debug("token acquired", slog.Time("expiry", cred.ExpiresOn))

	return cred.AccessToken, nil
}
