package backup

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dukerupert/barangay/internal/sentinel"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("SQLite format 3\x00 resident rows")

	enc, err := Encrypt(plain, "correct horse")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(enc, []byte("resident rows")) {
		t.Error("ciphertext contains plaintext")
	}
	if len(enc) <= saltSize+nonceSize {
		t.Fatalf("ciphertext too short: %d bytes", len(enc))
	}

	dec, err := Decrypt(enc, "correct horse")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Errorf("decrypted = %q, want %q", dec, plain)
	}
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	a, _ := Encrypt([]byte("same"), "pass")
	b, _ := Encrypt([]byte("same"), "pass")
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("two archives share a salt")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := Encrypt([]byte("secret data"), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	_, err = Decrypt(enc, "wrong")
	if !errors.Is(err, ErrDecrypt) {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
	if !errors.Is(err, sentinel.ErrValidation) {
		t.Errorf("err = %v, want it to wrap ErrValidation", err)
	}
}

func TestDecryptTamperedAndShort(t *testing.T) {
	enc, _ := Encrypt([]byte("secret data"), "pass")
	enc[len(enc)-1] ^= 0xff
	if _, err := Decrypt(enc, "pass"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("tampered err = %v, want ErrDecrypt", err)
	}
	if _, err := Decrypt([]byte("short"), "pass"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("short err = %v, want ErrDecrypt", err)
	}
}

func TestEncryptEmptyPassphrase(t *testing.T) {
	if _, err := Encrypt([]byte("x"), ""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}
