package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ChainedProvider tries each provider in order and returns the first
// credential obtained. It is an ordered fallback, never a race.
type ChainedProvider struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChainedProvider creates a ChainedProvider over providers, tried in the
// given order.
func NewChainedProvider(logger *slog.Logger, providers ...Provider) *ChainedProvider {
	return &ChainedProvider{providers: providers, logger: logger}
}

// Name implements Provider.
func (c *ChainedProvider) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}

	return string(ModeChained) + "(" + strings.Join(names, ",") + ")"
}

// Acquire implements Provider. When every provider fails the returned error
// joins all of their errors, in order.
func (c *ChainedProvider) Acquire(ctx context.Context, scopes []string) (Credential, error) {
	var errs []error

	for _, p := range c.providers {
		cred, err := p.Acquire(ctx, scopes)
		if err == nil {
			c.logger.Info("credential acquired", slog.String("provider", p.Name()))
			return cred, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Credential{}, fmt.Errorf("auth: %w", errors.Join(errs...))
		}

		c.logger.Warn("credential provider failed, trying next",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()),
		)
	}

	if len(errs) == 0 {
		return Credential{}, fmt.Errorf("%w: empty provider chain", ErrNotConfigured)
	}

	return Credential{}, fmt.Errorf("auth: all credential providers failed: %w", errors.Join(errs...))
}
