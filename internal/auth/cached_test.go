package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/sharepoint-upload/internal/failure"
)

func TestCached_ReusesValidCredential(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	inner := &fakeProvider{name: "certificate", cred: Credential{AccessToken: "tok", ExpiresOn: now.Add(time.Hour)}}

	c := NewCachedProvider(inner, slog.Default())
	c.now = func() time.Time { return now }

	for range 3 {
		cred, err := c.Acquire(context.Background(), []string{DefaultScope})
		require.NoError(t, err)
		assert.Equal(t, "tok", cred.AccessToken)
	}

	assert.Equal(t, 1, inner.calls)
}

func TestCached_ReacquiresNearExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	inner := &fakeProvider{name: "certificate", cred: Credential{AccessToken: "tok", ExpiresOn: now.Add(time.Hour)}}

	c := NewCachedProvider(inner, slog.Default())
	c.now = func() time.Time { return now }

	_, err := c.Acquire(context.Background(), []string{DefaultScope})
	require.NoError(t, err)

	// A long upload: one minute before expiry the cached token is replaced.
	c.now = func() time.Time { return now.Add(59 * time.Minute) }

	_, err = c.Acquire(context.Background(), []string{DefaultScope})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_DifferentScopes(t *testing.T) {
	inner := &fakeProvider{name: "x", cred: Credential{AccessToken: "tok", ExpiresOn: time.Now().Add(time.Hour)}}
	c := NewCachedProvider(inner, slog.Default())

	_, err := c.Acquire(context.Background(), []string{"a"})
	require.NoError(t, err)
	_, err = c.Acquire(context.Background(), []string{"b"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCached_ErrorNotCached(t *testing.T) {
	inner := &fakeProvider{name: "x", err: errors.New("boom")}
	c := NewCachedProvider(inner, slog.Default())

	_, err := c.Acquire(context.Background(), nil)
	require.Error(t, err)
	_, err = c.Acquire(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCredential_Valid(t *testing.T) {
	now := time.Now()

	assert.False(t, Credential{}.Valid(now, 0))
	assert.True(t, Credential{AccessToken: "t"}.Valid(now, time.Hour))
	assert.True(t, Credential{AccessToken: "t", ExpiresOn: now.Add(5 * time.Minute)}.Valid(now, expirySkew))
	assert.False(t, Credential{AccessToken: "t", ExpiresOn: now.Add(time.Minute)}.Valid(now, expirySkew))
}

func TestTokenSource(t *testing.T) {
	inner := &fakeProvider{name: "x", cred: Credential{AccessToken: "bearer-1"}}
	ts := NewTokenSource(context.Background(), inner, []string{DefaultScope}, slog.Default())

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "bearer-1", tok)
}

func TestTokenSource_FailureIsAuth(t *testing.T) {
	inner := &fakeProvider{name: "x", err: ErrNoPrivateKey}
	ts := NewTokenSource(context.Background(), inner, []string{DefaultScope}, slog.Default())

	_, err := ts.Token()
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrAuth)
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}

func TestNew_SelectsMode(t *testing.T) {
	tests := []struct {
		mode Mode
		name string
	}{
		{ModeCertificate, "certificate"},
		{ModeInteractive, "interactive"},
		{ModeClientCredentials, "client_credentials"},
		{ModeChained, "chained(certificate,interactive)"},
	}

	for _, tt := range tests {
		p, err := New(Config{Mode: tt.mode, TenantID: testTenant, ClientID: testClient}, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.name, p.Name())
	}

	_, err := New(Config{Mode: "magic"}, nil)
	assert.Error(t, err)
}
