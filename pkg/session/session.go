// Package session implements the PAKE-derived encrypted session: a
// single AEAD key imported once from the SPAKE2 shared secret, and a
// strictly-monotonic IV counter guaranteeing IV uniqueness for the
// session's lifetime. Grounded on the teacher's pase.Session key
// derivation (HKDF-SHA256 split of a shared secret into named session
// keys) and on device.cpp/authenticator.cpp's EncryptSession usage
// (begin/assign/makeName/importKey/encrypt/decrypt).
package session

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/ndnob/onboard/pkg/crypto"
	"github.com/ndnob/onboard/pkg/ndnname"
)

var (
	ErrAlreadyStarted    = errors.New("session: already begun")
	ErrKeyAlreadySet     = errors.New("session: key already imported")
	ErrInvalidKeyInput   = errors.New("session: invalid key input length")
	ErrNoKey             = errors.New("session: no key imported")
	ErrCryptoFailure     = errors.New("session: AEAD operation failed")
	ErrSessionIDMismatch = errors.New("session: session id does not match the bound session")
)

const sessionIDSize = 8

// Session owns the per-exchange session identifier, the AEAD key derived
// from the SPAKE2 shared secret, and the outbound IV counter. Its
// zero value is a session that has not yet begun.
type Session struct {
	sessionID []byte // random name component, minted by the Authenticator
	key       []byte // 32-byte AES-256-GCM key, set exactly once
	ivSalt    uint32
	ivCounter uint64
}

// Begin mints a fresh random session identifier. Called by the
// Authenticator when starting a new exchange.
func (s *Session) Begin() error {
	if s.sessionID != nil {
		return ErrAlreadyStarted
	}
	id := make([]byte, sessionIDSize)
	if _, err := rand.Read(id); err != nil {
		return err
	}
	var saltBuf [4]byte
	if _, err := rand.Read(saltBuf[:]); err != nil {
		return err
	}
	s.sessionID = id
	s.ivSalt = binary.BigEndian.Uint32(saltBuf[:])
	return nil
}

// Assign binds the session identifier extracted from an inbound
// Interest's name. The Device calls this on every request it serves,
// mirroring checkInterestVerb's repeated m_session.assign(...) call: the
// first call binds the session ID, every later call must see the same
// one (each onboarding Interest after the first carries the session ID
// assigned by the PAKE request).
func (s *Session) Assign(sessionID []byte) error {
	if s.sessionID != nil {
		if !bytes.Equal(s.sessionID, sessionID) {
			return ErrSessionIDMismatch
		}
		return nil
	}
	var saltBuf [4]byte
	if _, err := rand.Read(saltBuf[:]); err != nil {
		return err
	}
	s.sessionID = append([]byte(nil), sessionID...)
	s.ivSalt = binary.BigEndian.Uint32(saltBuf[:])
	return nil
}

// SessionIDComponent returns the session identifier as a generic Name
// component, suitable for embedding in onboarding Interest names.
func (s *Session) SessionIDComponent() ndnname.Component {
	return ndnname.Component{Type: ndnname.ComponentGeneric, Value: s.sessionID}
}

// HasSessionID reports whether Begin or Assign has run.
func (s *Session) HasSessionID() bool { return s.sessionID != nil }

// ImportKey sets the AEAD key exactly once from the SPAKE2 shared secret.
// It is HKDF-expanded to 32 bytes so the key length is independent of the
// raw SPAKE2 output size.
func (s *Session) ImportKey(sharedSecret []byte) error {
	if s.key != nil {
		return ErrKeyAlreadySet
	}
	if len(sharedSecret) == 0 {
		return ErrInvalidKeyInput
	}
	key, err := crypto.HKDFSHA256(sharedSecret, s.sessionID, []byte("EncryptSessionKey"), crypto.AEADKeySize)
	if err != nil {
		return err
	}
	s.key = key
	return nil
}

// HasKey reports whether ImportKey has succeeded.
func (s *Session) HasKey() bool { return s.key != nil }

// Encrypt seals plaintext under the session key with a freshly minted,
// never-reused IV.
func (s *Session) Encrypt(plaintext []byte) (iv, ciphertext, tag []byte, err error) {
	if s.key == nil {
		return nil, nil, nil, ErrNoKey
	}
	iv = crypto.BuildIV(s.ivSalt, s.ivCounter)
	s.ivCounter++
	ciphertext, tag, err = crypto.Seal(s.key, iv, plaintext)
	if err != nil {
		return nil, nil, nil, ErrCryptoFailure
	}
	return iv, ciphertext, tag, nil
}

// Decrypt verifies tag and recovers plaintext. Any failure returns
// ErrCryptoFailure without mutating session state, so the caller can
// treat the packet as if it were never received.
func (s *Session) Decrypt(iv, ciphertext, tag []byte) ([]byte, error) {
	if s.key == nil {
		return nil, ErrNoKey
	}
	plaintext, err := crypto.Open(s.key, iv, ciphertext, tag)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	return plaintext, nil
}

// End resets the session to its zero value, destroying the key and
// session identifier so no key material remains reachable.
func (s *Session) End() {
	*s = Session{}
}
