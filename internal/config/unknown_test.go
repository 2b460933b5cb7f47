package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_Suggestion(t *testing.T) {
	path := writeTestConfig(t, `site_ulr = "https://contoso.sharepoint.com/sites/team"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "site_ulr"`)
	assert.Contains(t, err.Error(), `did you mean "site_url"`)
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	_, err := Load(writeTestConfig(t, `completely_unrelated_key = true`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_UnknownKey_KnownKeyInsideSection(t *testing.T) {
	_, err := Load(writeTestConfig(t, "[auth]\ntenant_id = \"t\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"auth.tenant_id"`)
	assert.Contains(t, err.Error(), `top-level "tenant_id"`)
}

func TestLoad_UnknownKey_AllReported(t *testing.T) {
	_, err := Load(writeTestConfig(t, "libary = \"x\"\nchunksize = \"5MiB\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"library"`)
	assert.Contains(t, err.Error(), `"chunk_size"`)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"tenant", "tenant_id", 3},
		{"client_di", "client_id", 2},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "store_name", closestMatch("store_nam", knownKeysList))
	assert.Equal(t, "", closestMatch("completely_unrelated", knownKeysList))
}
