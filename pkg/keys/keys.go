// Package keys derives purpose-bound keys from the signing secret so the
// token MAC key and the certificate seal key never coincide.
package keys

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// InfoSigningToken binds the key used to MAC signing tokens.
	InfoSigningToken = "coown/signing-token/v1"
	// InfoCertificateSeal binds the key used to seal certificate rows.
	InfoCertificateSeal = "coown/certificate-seal/v1"

	keyLen = 32
)

var salt = []byte("coown-esign")

// ErrEmptySecret is returned when no master secret is configured.
var ErrEmptySecret = errors.New("signing secret is empty")

// Derive expands secret into a 32-byte key for the given purpose.
func Derive(secret []byte, info string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if info == "" {
		return nil, errors.New("key purpose is required")
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// Set holds the derived keys handed to the token and certificate services.
type Set struct {
	SigningToken    []byte
	CertificateSeal []byte
}

// DeriveSet derives every purpose key from one secret.
func DeriveSet(secret string) (Set, error) {
	token, err := Derive([]byte(secret), InfoSigningToken)
	if err != nil {
		return Set{}, err
	}
	seal, err := Derive([]byte(secret), InfoCertificateSeal)
	if err != nil {
		return Set{}, err
	}
	return Set{SigningToken: token, CertificateSeal: seal}, nil
}
