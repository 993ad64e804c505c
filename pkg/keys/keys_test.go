package keys

import (
	"bytes"
	"testing"
)

func TestDeriveIsDeterministicAndPurposeBound(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	a, err := Derive(secret, InfoSigningToken)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := Derive(secret, InfoSigningToken)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("expected identical keys for identical input")
	}
	if len(a) != keyLen {
		t.Fatalf("expected %d byte key, got %d", keyLen, len(a))
	}

	seal, err := Derive(secret, InfoCertificateSeal)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(a, seal) {
		t.Fatal("purposes must yield different keys")
	}
	if bytes.Equal(a, secret) {
		t.Fatal("derived key must differ from the secret")
	}
}

func TestDeriveRejectsEmptyInput(t *testing.T) {
	if _, err := Derive(nil, InfoSigningToken); err != ErrEmptySecret {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
	if _, err := Derive([]byte("secret"), ""); err == nil {
		t.Fatal("expected missing purpose error")
	}
}

func TestDeriveSet(t *testing.T) {
	set, err := DeriveSet("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("derive set: %v", err)
	}
	if len(set.SigningToken) != keyLen || len(set.CertificateSeal) != keyLen {
		t.Fatal("expected both keys populated")
	}
	if _, err := DeriveSet(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
