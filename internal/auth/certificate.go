package auth

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // x5t is defined as the SHA-1 thumbprint
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"software.sslmate.com/src/go-pkcs12"
)

// Store locations accepted for thumbprint lookup.
var storeLocations = []string{"CurrentUser", "LocalMachine"}

// Certificate is a leaf certificate with its RSA private key.
type Certificate struct {
	Leaf *x509.Certificate
	Key  *rsa.PrivateKey
}

// Thumbprint returns the SHA-1 digest of the DER-encoded leaf certificate.
func (c *Certificate) Thumbprint() []byte {
	sum := sha1.Sum(c.Leaf.Raw) //nolint:gosec // see import

	return sum[:]
}

// ThumbprintHex returns the thumbprint as upper-case hex, the way certificate
// stores display it.
func (c *Certificate) ThumbprintHex() string {
	return strings.ToUpper(hex.EncodeToString(c.Thumbprint()))
}

// NormalizeThumbprint strips the separators and invisible marks certificate
// tools insert when a thumbprint is copied, and upper-cases the rest.
func NormalizeThumbprint(s string) string {
	s = strings.NewReplacer(" ", "", ":", "", "\u200e", "").Replace(s)

	return strings.ToUpper(s)
}

// LoadCertificateFile reads a PKCS#12 (.pfx, .p12) or PEM file. The file
// must contain a private key; a file with only certificates yields
// ErrNoPrivateKey.
func LoadCertificateFile(path, password string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: reading certificate %s: %w", path, err)
	}

	cert, err := parseCertificate(data, password)
	if err != nil {
		return nil, fmt.Errorf("auth: loading certificate %s: %w", path, err)
	}

	return cert, nil
}

func parseCertificate(data []byte, password string) (*Certificate, error) {
	if bytes.Contains(data, []byte("-----BEGIN")) {
		return parsePEM(data)
	}

	return parsePKCS12(data, password)
}

func parsePKCS12(data []byte, password string) (*Certificate, error) {
	key, leaf, _, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		// A trust store decodes fine but has no key bag.
		if certs, tsErr := pkcs12.DecodeTrustStore(data, password); tsErr == nil && len(certs) > 0 {
			return nil, ErrNoPrivateKey
		}

		return nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}

	return newCertificate(leaf, key)
}

func parsePEM(data []byte) (*Certificate, error) {
	var (
		leaf *x509.Certificate
		key  any
	)

	for {
		var block *pem.Block

		block, data = pem.Decode(data)
		if block == nil {
			break
		}

		switch block.Type {
		case "CERTIFICATE":
			if leaf != nil {
				continue
			}

			c, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing PEM certificate: %w", err)
			}

			leaf = c
		case "PRIVATE KEY":
			k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing PKCS#8 key: %w", err)
			}

			key = k
		case "RSA PRIVATE KEY":
			k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing PKCS#1 key: %w", err)
			}

			key = k
		case "ENCRYPTED PRIVATE KEY":
			return nil, errors.New("encrypted PEM keys are not supported, convert to PKCS#12")
		}
	}

	if leaf == nil {
		return nil, errors.New("no CERTIFICATE block in PEM data")
	}

	if key == nil {
		return nil, ErrNoPrivateKey
	}

	return newCertificate(leaf, key)
}

func newCertificate(leaf *x509.Certificate, key any) (*Certificate, error) {
	if key == nil {
		return nil, ErrNoPrivateKey
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T, RS256 needs RSA", key)
	}

	pub, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok || !pub.Equal(&rsaKey.PublicKey) {
		return nil, errors.New("private key does not match certificate")
	}

	return &Certificate{Leaf: leaf, Key: rsaKey}, nil
}

// LoadCertificateFromStore finds the certificate with the given thumbprint in
// the directory store {dir}/{location}/{name}. Every .pfx, .p12 and .pem file
// in the store is examined; files that fail to decode are skipped.
func LoadCertificateFromStore(dir, location, name, thumbprint, password string, logger *slog.Logger) (*Certificate, error) {
	loc, err := canonicalLocation(location)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = "My"
	}

	want := NormalizeThumbprint(thumbprint)
	storePath := filepath.Join(dir, loc, name)

	entries, err := os.ReadDir(storePath)
	if err != nil {
		return nil, fmt.Errorf("auth: opening certificate store %s: %w", storePath, err)
	}

	var keyless bool

	for _, e := range entries {
		if e.IsDir() || !isCertificateFile(e.Name()) {
			continue
		}

		path := filepath.Join(storePath, e.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Debug("skipping unreadable store entry", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}

		leaf, key, err := decodeStoreEntry(data, password)
		if err != nil {
			logger.Debug("skipping undecodable store entry", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}

		sum := sha1.Sum(leaf.Raw) //nolint:gosec // see import
		if strings.ToUpper(hex.EncodeToString(sum[:])) != want {
			continue
		}

		if key == nil {
			keyless = true
			continue
		}

		logger.Info("certificate found in store",
			slog.String("store", storePath),
			slog.String("thumbprint", want),
		)

		return newCertificate(leaf, key)
	}

	if keyless {
		return nil, fmt.Errorf("auth: certificate %s in %s: %w", want, storePath, ErrNoPrivateKey)
	}

	return nil, fmt.Errorf("auth: no certificate with thumbprint %s in %s", want, storePath)
}

// decodeStoreEntry returns the leaf and, when present, its key. Unlike
// parseCertificate it does not treat a missing key as an error so the caller
// can match thumbprints first.
func decodeStoreEntry(data []byte, password string) (*x509.Certificate, any, error) {
	if bytes.Contains(data, []byte("-----BEGIN")) {
		cert, err := parsePEM(data)
		if errors.Is(err, ErrNoPrivateKey) {
			return leafFromPEM(data)
		}

		if err != nil {
			return nil, nil, err
		}

		return cert.Leaf, cert.Key, nil
	}

	key, leaf, _, err := pkcs12.DecodeChain(data, password)
	if err == nil {
		return leaf, key, nil
	}

	certs, tsErr := pkcs12.DecodeTrustStore(data, password)
	if tsErr != nil || len(certs) == 0 {
		return nil, nil, err
	}

	return certs[0], nil, nil
}

func leafFromPEM(data []byte) (*x509.Certificate, any, error) {
	for {
		var block *pem.Block

		block, data = pem.Decode(data)
		if block == nil {
			return nil, nil, errors.New("no CERTIFICATE block in PEM data")
		}

		if block.Type == "CERTIFICATE" {
			c, err := x509.ParseCertificate(block.Bytes)

			return c, nil, err
		}
	}
}

func canonicalLocation(location string) (string, error) {
	if location == "" {
		return storeLocations[0], nil
	}

	for _, l := range storeLocations {
		if strings.EqualFold(l, location) {
			return l, nil
		}
	}

	return "", fmt.Errorf("auth: unknown store location %q (want one of %s)", location, strings.Join(storeLocations, ", "))
}

func isCertificateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pfx", ".p12", ".pem":
		return true
	default:
		return false
	}
}

// certificateSource loads the configured certificate once and remembers the
// outcome, including failure.
type certificateSource struct {
	cfg    Config
	logger *slog.Logger

	once sync.Once
	cert *Certificate
	err  error
}

func (s *certificateSource) load() (*Certificate, error) {
	s.once.Do(func() {
		switch {
		case s.cfg.CertificatePath != "":
			s.cert, s.err = LoadCertificateFile(s.cfg.CertificatePath, s.cfg.CertificatePassword)
		case s.cfg.CertificateThumbprint != "":
			s.cert, s.err = LoadCertificateFromStore(s.cfg.StoreDir, s.cfg.StoreLocation, s.cfg.StoreName,
				s.cfg.CertificateThumbprint, s.cfg.CertificatePassword, s.logger)
		default:
			s.err = fmt.Errorf("%w: no certificate path or thumbprint", ErrNotConfigured)
		}

		if s.err == nil {
			s.logger.Debug("certificate loaded",
				slog.String("subject", s.cert.Leaf.Subject.String()),
				slog.String("thumbprint", s.cert.ThumbprintHex()),
				slog.Time("not_after", s.cert.Leaf.NotAfter),
			)
		}
	})

	return s.cert, s.err
}
