package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidKey indicates the private key PEM could not be parsed as an RSA key.
var ErrInvalidKey = errors.New("kalshi: invalid private key")

// Signer produces request signatures for the Kalshi trade API.
//
// Kalshi authenticates each request with an RSA-PSS signature over the
// canonical message "{timestamp}{method}{path}", where path has any query
// string stripped. PSS is randomized, so two signatures over the same
// message differ byte-for-byte; only verification against the public key
// is meaningful.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner parses a PEM-encoded RSA private key (PKCS#8 or PKCS#1).
func NewSigner(pemBytes []byte) (*Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	// Try PKCS#8 first (BEGIN PRIVATE KEY), then fall back to
	// PKCS#1 (BEGIN RSA PRIVATE KEY).
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: PKCS#8 key is not RSA", ErrInvalidKey)
		}
		return &Signer{key: key}, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &Signer{key: key}, nil
}

// PublicKey returns the public half of the signing key, for verification.
func (s *Signer) PublicKey() *rsa.PublicKey {
	return &s.key.PublicKey
}

// Sign returns the base64 RSA-PSS signature for a request.
// timestampMillis must be the same value sent in the timestamp header.
func (s *Signer) Sign(method, path string, timestampMillis int64) (string, error) {
	// Query params are not part of the signed message.
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	message := strconv.FormatInt(timestampMillis, 10) + method + path
	digest := sha256.Sum256([]byte(message))

	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: 32,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("rsa signing failed: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}
