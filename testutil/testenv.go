// Package testutil provides shared environment helpers for the live-tenant
// E2E tests. It depends only on stdlib so that E2E tests (which cannot
// import internal/) can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by the E2E suite.
const (
	EnvTestSite     = "SPUPLOAD_TEST_SITE"
	EnvAllowedSites = "SPUPLOAD_ALLOWED_TEST_SITES"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist exits the process unless SPUPLOAD_TEST_SITE is set and
// listed in SPUPLOAD_ALLOWED_TEST_SITES. Uploads are real writes; the
// allowlist keeps a stray environment from pointing them at a production
// site. Returns the test site URL.
func ValidateAllowlist() string {
	allowlist := os.Getenv(EnvAllowedSites)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvAllowedSites)
		fmt.Fprintln(os.Stderr, "Example: "+EnvAllowedSites+"=https://contoso.sharepoint.com/sites/spupload-test")
		os.Exit(1)
	}

	site := strings.TrimSuffix(os.Getenv(EnvTestSite), "/")
	if site == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvTestSite)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.EqualFold(strings.TrimSuffix(strings.TrimSpace(a), "/"), site) {
			return site
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", EnvTestSite, site, EnvAllowedSites, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
