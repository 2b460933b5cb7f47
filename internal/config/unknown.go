package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys are the valid top-level keys in the config file.
var knownKeys = map[string]bool{
	// Target
	"site_url": true, "library": true, "folder": true,
	// Auth
	"tenant_id": true, "client_id": true, "auth_mode": true, "authority_host": true, "scopes": true,
	"certificate_path": true, "certificate_password": true,
	"certificate_thumbprint": true, "store_name": true, "store_location": true, "cert_store_dir": true,
	"auth_record_file": true, "redirect_port": true,
	// Transfer
	"chunk_size": true, "graph_url": true,
	// Logging
	"log_level": true, "log_file": true, "log_format": true,
	// Network
	"connect_timeout": true, "data_timeout": true,
}

// knownKeysList is the sorted slice form of knownKeys, so ties in edit
// distance suggest the same key every time.
var knownKeysList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key. Tables are
// reported by their own name: the file has no sections.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	// A table shows up both as itself and as each of its keys; report the
	// keys, falling back to the table name for an empty table.
	tables := make(map[string]bool)

	for _, key := range undecoded {
		if len(key) > 1 {
			tables[key[0]] = true
		}
	}

	var errs []error

	for _, key := range undecoded {
		if len(key) == 1 && tables[key[0]] {
			continue
		}

		errs = append(errs, unknownKeyError(key.String()))
	}

	return errors.Join(errs...)
}

// unknownKeyError describes an unknown key, suggesting the closest known key
// by its last component (so "[auth] tenant_id" points at the flat key).
func unknownKeyError(keyStr string) error {
	parts := strings.Split(keyStr, ".")
	leaf := parts[len(parts)-1]

	if len(parts) > 1 && knownKeys[leaf] {
		return fmt.Errorf("unknown config key %q: keys are not grouped in sections, use top-level %q", keyStr, leaf)
	}

	if suggestion := closestMatch(leaf, knownKeysList); suggestion != "" {
		return fmt.Errorf("unknown config key %q, did you mean %q?", keyStr, suggestion)
	}

	return fmt.Errorf("unknown config key %q", keyStr)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings using a single
// pair of rows.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
