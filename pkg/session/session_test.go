package session

import (
	"bytes"
	"testing"
)

func TestImportKeyIdempotentFailure(t *testing.T) {
	var s Session
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.ImportKey([]byte("shared-secret-material")); err != nil {
		t.Fatalf("first ImportKey: %v", err)
	}
	if err := s.ImportKey([]byte("shared-secret-material")); err != ErrKeyAlreadySet {
		t.Fatalf("second ImportKey err = %v, want ErrKeyAlreadySet", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	var s Session
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.ImportKey([]byte("shared-secret-material")); err != nil {
		t.Fatalf("ImportKey: %v", err)
	}

	iv, ct, tag, err := s.Encrypt([]byte("hello device"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	plaintext, err := s.Decrypt(iv, ct, tag)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("hello device")) {
		t.Fatalf("plaintext = %q, want %q", plaintext, "hello device")
	}
}

func TestIVNeverRepeatsAcrossMessages(t *testing.T) {
	var s Session
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.ImportKey([]byte("shared-secret-material")); err != nil {
		t.Fatalf("ImportKey: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		iv, _, _, err := s.Encrypt([]byte("msg"))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		key := string(iv)
		if seen[key] {
			t.Fatalf("IV repeated at iteration %d: %x", i, iv)
		}
		seen[key] = true
	}
}

func TestDecryptFailureLeavesStateUnchanged(t *testing.T) {
	var s Session
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.ImportKey([]byte("shared-secret-material")); err != nil {
		t.Fatalf("ImportKey: %v", err)
	}

	iv, ct, tag, err := s.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tag[0] ^= 0xff // tamper

	if _, err := s.Decrypt(iv, ct, tag); err != ErrCryptoFailure {
		t.Fatalf("Decrypt err = %v, want ErrCryptoFailure", err)
	}
	if !s.HasKey() {
		t.Fatal("decrypt failure must not clear the session key")
	}
}

func TestAssignIsIdempotentForMatchingID(t *testing.T) {
	var s Session
	id := []byte("session-id-bytes")
	if err := s.Assign(id); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if err := s.Assign(id); err != nil {
		t.Fatalf("second Assign with same id: %v", err)
	}
	if err := s.Assign([]byte("different-id")); err != ErrSessionIDMismatch {
		t.Fatalf("Assign with different id: %v, want ErrSessionIDMismatch", err)
	}
}

func TestEndClearsKeyMaterial(t *testing.T) {
	var s Session
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.ImportKey([]byte("shared-secret-material")); err != nil {
		t.Fatalf("ImportKey: %v", err)
	}
	s.End()
	if s.HasKey() || s.HasSessionID() {
		t.Fatal("End must clear key and session id")
	}
}
