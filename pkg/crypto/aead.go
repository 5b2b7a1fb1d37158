package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
)

// AEAD sizes for the encrypted session. 256-bit keys and a 96-bit IV are
// the corpus's own way of building AEAD on crypto/aes + crypto/cipher
// (see other_examples' vault_lifecycle.go), applied here in place of the
// teacher's hand-rolled AES-CCM since this protocol has no CCM-specific
// wire requirement to satisfy.
const (
	AEADKeySize = 32
	AEADIVSize  = 12
	AEADTagSize = 16
)

var (
	ErrInvalidKeySize = errors.New("crypto: AEAD key must be 32 bytes")
	ErrInvalidIVSize  = errors.New("crypto: AEAD IV must be 12 bytes")
	ErrSealFailed     = errors.New("crypto: AEAD seal failed")
	ErrOpenFailed     = errors.New("crypto: AEAD open failed")
)

// Sealed is the on-wire representation of an AEAD-protected payload.
type Sealed struct {
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AEADKeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, AEADIVSize)
}

// Seal encrypts plaintext under key using the given IV, returning the
// ciphertext and detached tag separately (the wire format in this
// protocol carries IV, tag, and ciphertext as three distinct TLV fields).
func Seal(key, iv, plaintext []byte) (ciphertext, tag []byte, err error) {
	if len(iv) != AEADIVSize {
		return nil, nil, ErrInvalidIVSize
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	if len(sealed) < AEADTagSize {
		return nil, nil, ErrSealFailed
	}
	ctLen := len(sealed) - AEADTagSize
	return sealed[:ctLen], sealed[ctLen:], nil
}

// Open verifies tag and decrypts ciphertext under key and iv. It returns
// ErrOpenFailed without distinguishing the cause, matching the protocol's
// requirement that AEAD failure never leaks detail to the caller.
func Open(key, iv, ciphertext, tag []byte) ([]byte, error) {
	if len(iv) != AEADIVSize {
		return nil, ErrInvalidIVSize
	}
	if len(tag) != AEADTagSize {
		return nil, ErrOpenFailed
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrOpenFailed
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// BuildIV constructs a 96-bit IV from a 64-bit strictly-monotonic
// per-session counter (low bits) and a 32-bit per-session random salt
// (high bits). Uniqueness of the IV for the session's lifetime follows
// from counter monotonicity alone; the salt only defends against
// cross-session IV collisions if a key were ever (incorrectly) reused.
func BuildIV(salt uint32, counter uint64) []byte {
	iv := make([]byte, AEADIVSize)
	binary.BigEndian.PutUint32(iv[:4], salt)
	binary.BigEndian.PutUint64(iv[4:], counter)
	return iv
}
