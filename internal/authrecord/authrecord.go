// Package authrecord persists the authentication record that lets a later
// run refresh a user token silently. The record is the only state kept
// across runs; a missing, unreadable or foreign record is reported as such so
// the caller can fall back to an interactive login.
package authrecord

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// FilePerms restricts record files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the record's directory.
const DirPerms = 0o700

// CurrentVersion is written into every saved record. Records with another
// version are treated as corrupt.
const CurrentVersion = 1

// ErrCorrupt is returned by Load when the file exists but cannot be trusted
// as a record.
var ErrCorrupt = errors.New("authrecord: corrupt record")

// Record is the on-disk authentication record. RefreshToken is the opaque
// continuation data; it is never logged.
type Record struct {
	Version       int       `json:"version"`
	Authority     string    `json:"authority"`
	TenantID      string    `json:"tenant_id"`
	ClientID      string    `json:"client_id"`
	Username      string    `json:"username,omitempty"`
	HomeAccountID string    `json:"home_account_id,omitempty"`
	Scopes        []string  `json:"scopes,omitempty"`
	RefreshToken  string    `json:"refresh_token"`
	SavedAt       time.Time `json:"saved_at"`
}

// Matches reports whether the record was issued for the given tenant and
// client. Ids are GUIDs or domain names, both compared case-insensitively.
func (r *Record) Matches(tenantID, clientID string) bool {
	return strings.EqualFold(r.TenantID, tenantID) && strings.EqualFold(r.ClientID, clientID)
}

// Load reads a record from path. Returns (nil, nil) if the file does not
// exist and an error wrapping ErrCorrupt if it cannot be decoded or lacks
// required fields.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("authrecord: reading %s: %w", path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrCorrupt, path, err)
	}

	switch {
	case rec.Version != CurrentVersion:
		return nil, fmt.Errorf("%w: %s has version %d, want %d", ErrCorrupt, path, rec.Version, CurrentVersion)
	case rec.TenantID == "" || rec.ClientID == "":
		return nil, fmt.Errorf("%w: %s missing tenant or client id", ErrCorrupt, path)
	case rec.RefreshToken == "":
		return nil, fmt.Errorf("%w: %s missing refresh token", ErrCorrupt, path)
	}

	return &rec, nil
}

// Save writes rec to path atomically (write-to-temp + rename) with 0600
// permissions. Concurrent writers from other processes are serialized with a
// lock file next to the record; the last writer wins.
func Save(path string, rec *Record) error {
	if rec == nil {
		return errors.New("authrecord: nil record")
	}

	saved := *rec
	saved.Version = CurrentVersion

	if saved.SavedAt.IsZero() {
		saved.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("authrecord: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("authrecord: creating directory %s: %w", dir, mkErr)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("authrecord: locking %s: %w", path, err)
	}
	defer lock.Unlock() //nolint:errcheck // best-effort release; the lock dies with the process anyway

	return writeAtomic(dir, path, data)
}

func writeAtomic(dir, path string, data []byte) error {
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".authrecord-*.tmp")
	if err != nil {
		return fmt.Errorf("authrecord: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("authrecord: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("authrecord: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("authrecord: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("authrecord: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("authrecord: renaming: %w", err)
	}

	success = true

	return nil
}

// Delete removes the record at path. A missing file is not an error.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("authrecord: deleting %s: %w", path, err)
	}

	_ = os.Remove(path + ".lock")

	return nil
}
