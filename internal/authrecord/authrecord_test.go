package authrecord

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	return &Record{
		Authority:     "https://login.microsoftonline.com/",
		TenantID:      "11111111-2222-3333-4444-555555555555",
		ClientID:      "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		Username:      "alice@contoso.com",
		HomeAccountID: "uid.utid",
		Scopes:        []string{"Sites.ReadWrite.All"},
		RefreshToken:  "refresh-123",
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	rec, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Nil(t, rec)
	assert.NoError(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "record.json")

	require.NoError(t, Save(path, sampleRecord()))

	rec, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, CurrentVersion, rec.Version)
	assert.Equal(t, "alice@contoso.com", rec.Username)
	assert.Equal(t, "refresh-123", rec.RefreshToken)
	assert.Equal(t, []string{"Sites.ReadWrite.All"}, rec.Scopes)
	assert.False(t, rec.SavedAt.IsZero())
}

func TestSave_KeepsExplicitSavedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := sampleRecord()
	rec.SavedAt = when
	require.NoError(t, Save(path, rec))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.SavedAt.Equal(when))
}

func TestSave_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}

	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, Save(path, sampleRecord()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSave_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, Save(path, sampleRecord()))

	rec := sampleRecord()
	rec.RefreshToken = "rotated"
	require.NoError(t, Save(path, rec))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rotated", loaded.RefreshToken)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestSave_Nil(t *testing.T) {
	assert.Error(t, Save(filepath.Join(t.TempDir(), "r.json"), nil))
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{not json`},
		{"wrong version", `{"version":99,"tenant_id":"t","client_id":"c","refresh_token":"r"}`},
		{"missing tenant", `{"version":1,"client_id":"c","refresh_token":"r"}`},
		{"missing refresh token", `{"version":1,"tenant_id":"t","client_id":"c"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "record.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			rec, err := Load(path)
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestRecord_Matches(t *testing.T) {
	rec := sampleRecord()

	assert.True(t, rec.Matches(rec.TenantID, rec.ClientID))
	assert.True(t, rec.Matches("11111111-2222-3333-4444-555555555555", "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE"))
	assert.False(t, rec.Matches("other-tenant", rec.ClientID))
	assert.False(t, rec.Matches(rec.TenantID, "other-client"))
}

func TestRecord_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(sampleRecord())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "tenant_id")
	assert.Contains(t, raw, "refresh_token")
	assert.Contains(t, raw, "home_account_id")
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, Save(path, sampleRecord()))

	require.NoError(t, Delete(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Deleting again is fine.
	assert.NoError(t, Delete(path))
}
