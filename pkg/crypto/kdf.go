// Package crypto provides the key-derivation, AEAD, and elliptic-curve
// primitives shared by the SPAKE2 driver, the encrypted session, and the
// credential model. It is grounded on the teacher's pkg/crypto package
// (HKDFSHA256/PBKDF2SHA256) and, for the AEAD choice, on the corpus's own
// precedent of building AES-GCM directly on crypto/aes + crypto/cipher.
package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 iteration bounds for deriving the SPAKE2 password scalar.
const (
	PBKDF2IterationsMin = 1000
	PBKDF2IterationsMax = 100000
)

// HKDFSHA256 derives length bytes of key material from inputKey using
// HKDF-SHA256 (RFC 5869).
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PBKDF2SHA256 derives keyLen bytes from password using PBKDF2-HMAC-SHA256.
func PBKDF2SHA256(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}
