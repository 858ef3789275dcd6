package crypto

import (
	"encoding/base64"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	enc, err := NewEncryptor("test-encryption-key")
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	for _, plaintext := range []string{"", "short", "JBSWY3DPEHPK3PXP", "with spaces and ünïcode"} {
		sealed, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}
		if sealed == plaintext {
			t.Fatalf("ciphertext equals plaintext for %q", plaintext)
		}
		opened, err := enc.Decrypt(sealed)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plaintext, err)
		}
		if opened != plaintext {
			t.Fatalf("roundtrip mismatch: got %q want %q", opened, plaintext)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	enc, _ := NewEncryptor("test-encryption-key")

	a, _ := enc.Encrypt("same input")
	b, _ := enc.Encrypt("same input")
	if a == b {
		t.Fatalf("two encryptions of the same plaintext must differ")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	enc, _ := NewEncryptor("test-encryption-key")

	sealed, err := enc.Encrypt("secret value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := enc.Decrypt(tampered); err == nil {
		t.Fatalf("tampered ciphertext must not decrypt")
	}
	if _, err := enc.Decrypt("not base64 !!!"); err == nil {
		t.Fatalf("invalid encoding must not decrypt")
	}
	if _, err := enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("x"))); err == nil {
		t.Fatalf("truncated ciphertext must not decrypt")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	enc, _ := NewEncryptor("key-one")
	other, _ := NewEncryptor("key-two")

	sealed, _ := enc.Encrypt("secret value")
	if _, err := other.Decrypt(sealed); err == nil {
		t.Fatalf("ciphertext must not open under a different key")
	}
}

func TestNewEncryptorRequiresKey(t *testing.T) {
	if _, err := NewEncryptor(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
