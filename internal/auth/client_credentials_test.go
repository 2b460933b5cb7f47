package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/sharepoint-upload/internal/failure"
)

func rawProvider(t *testing.T, host string) *RawClientCredentialsProvider {
	t.Helper()

	leaf, key := newTestCert(t, "uploader")
	path := filepath.Join(t.TempDir(), "app.pfx")
	writePFX(t, path, leaf, key, testPFXPwd)

	return NewRawClientCredentialsProvider(Config{
		TenantID:            testTenant,
		ClientID:            testClient,
		AuthorityHost:       host,
		CertificatePath:     path,
		CertificatePassword: testPFXPwd,
	}, slog.Default())
}

func TestRawClientCredentials_Acquire(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, AssertionType, r.PostForm.Get("client_assertion_type"))
		assert.NotEmpty(t, r.PostForm.Get("client_assertion"))
		assert.Equal(t, DefaultScope, r.PostForm.Get("scope"))

		// The identity platform has sent expires_in as a string.
		writeJSON(w, http.StatusOK, map[string]any{
			"token_type":   "Bearer",
			"expires_in":   "3599",
			"access_token": "raw-app-token",
		})
	}))
	defer srv.Close()

	p := rawProvider(t, srv.URL)
	issued := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return issued }

	cred, err := p.Acquire(context.Background(), []string{DefaultScope})
	require.NoError(t, err)

	assert.Equal(t, "raw-app-token", cred.AccessToken)
	assert.Equal(t, issued.Add(3599*time.Second), cred.ExpiresOn)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRawClientCredentials_ErrorDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_client",
			"error_description": "AADSTS700016: Application not found in the directory.",
			"error_codes":       []int{700016},
			"trace_id":          "trace-1",
			"correlation_id":    "corr-1",
		})
	}))
	defer srv.Close()

	_, err := rawProvider(t, srv.URL).Acquire(context.Background(), []string{DefaultScope})
	require.Error(t, err)

	var te *TokenError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Equal(t, "invalid_client", te.Code)
	assert.Equal(t, []int{700016}, te.ErrorCodes)

	report := failure.Translate("acquire token", err)
	assert.Contains(t, report, "acquire token failed: invalid_client: AADSTS700016")
	assert.Contains(t, report, "detail [error_codes]: AADSTS700016")
	assert.Contains(t, report, "detail [correlation_id]: corr-1")
}

func TestRawClientCredentials_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := rawProvider(t, srv.URL).Acquire(context.Background(), []string{DefaultScope})

	var te *TokenError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "http_error", te.Code)
	assert.Equal(t, "upstream down", te.Description)
}

func TestRawClientCredentials_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token_type": "Bearer"})
	}))
	defer srv.Close()

	_, err := rawProvider(t, srv.URL).Acquire(context.Background(), []string{DefaultScope})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access_token")
}

func TestParseExpiresIn(t *testing.T) {
	n, err := parseExpiresIn(json.RawMessage(`3600`))
	require.NoError(t, err)
	assert.Equal(t, int64(3600), n)

	n, err = parseExpiresIn(json.RawMessage(`"120"`))
	require.NoError(t, err)
	assert.Equal(t, int64(120), n)

	n, err = parseExpiresIn(nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = parseExpiresIn(json.RawMessage(`"soon"`))
	assert.Error(t, err)
}
