package auth

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// assertionLifetime is how long a client assertion stays valid.
const assertionLifetime = time.Hour

// AssertionType is the client_assertion_type for JWT bearer assertions.
const AssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// BuildAssertion signs a client assertion for clientID, addressed to the
// token endpoint audience. The header carries the certificate's SHA-1
// thumbprint as x5t so the identity platform can pick the right key.
func BuildAssertion(cert *Certificate, clientID, audience string, now time.Time) (string, error) {
	if cert == nil || cert.Key == nil {
		return "", ErrNoPrivateKey
	}

	claims := jwt.MapClaims{
		"aud": audience,
		"exp": now.Add(assertionLifetime).Unix(),
		"iss": clientID,
		"jti": uuid.NewString(),
		"nbf": now.Unix(),
		"sub": clientID,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["x5t"] = base64.RawURLEncoding.EncodeToString(cert.Thumbprint())

	signed, err := tok.SignedString(cert.Key)
	if err != nil {
		return "", fmt.Errorf("auth: signing client assertion: %w", err)
	}

	return signed, nil
}
