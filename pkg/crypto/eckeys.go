package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// P-256 sizes used by the certificate and temp-key-pair codecs.
const (
	P256GroupSizeBytes     = 32
	P256PublicKeySizeBytes = 65 // 0x04 || X || Y
	P256SignatureSizeBytes = 64 // r || s
)

// ECKeyPair is a P-256 signing key pair.
type ECKeyPair struct {
	priv *ecdsa.PrivateKey
}

// GenerateECKeyPair generates a fresh P-256 key pair, used by the Device
// to mint its temp key bound to the deterministic subject name.
func GenerateECKeyPair() (*ECKeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate EC key pair: %w", err)
	}
	return &ECKeyPair{priv: priv}, nil
}

// PublicKey returns the public key in uncompressed form (65 bytes).
func (kp *ECKeyPair) PublicKey() []byte {
	return elliptic.Marshal(elliptic.P256(), kp.priv.X, kp.priv.Y)
}

// Sign produces a 64-byte (r || s) ECDSA signature over SHA-256(message).
func (kp *ECKeyPair) Sign(message []byte) ([]byte, error) {
	return ECDSASign(kp.priv, message)
}

// ECDSASign signs message under priv, returning a fixed 64-byte signature.
func ECDSASign(priv *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, priv, hash[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: ECDSA sign: %w", err)
	}

	sig := make([]byte, P256SignatureSizeBytes)
	rBytes, sBytes := r.Bytes(), s.Bytes()
	copy(sig[P256GroupSizeBytes-len(rBytes):P256GroupSizeBytes], rBytes)
	copy(sig[P256SignatureSizeBytes-len(sBytes):], sBytes)
	return sig, nil
}

// ECDSAVerify verifies a 64-byte (r || s) signature over SHA-256(message)
// against an uncompressed 65-byte public key.
func ECDSAVerify(publicKey, message, signature []byte) (bool, error) {
	if len(publicKey) != P256PublicKeySizeBytes || publicKey[0] != 0x04 {
		return false, fmt.Errorf("crypto: public key must be %d uncompressed bytes", P256PublicKeySizeBytes)
	}
	if len(signature) != P256SignatureSizeBytes {
		return false, fmt.Errorf("crypto: signature must be %d bytes", P256SignatureSizeBytes)
	}

	x := new(big.Int).SetBytes(publicKey[1:33])
	y := new(big.Int).SetBytes(publicKey[33:65])
	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		return false, fmt.Errorf("crypto: public key point is not on P-256")
	}
	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}

	r := new(big.Int).SetBytes(signature[:P256GroupSizeBytes])
	s := new(big.Int).SetBytes(signature[P256GroupSizeBytes:])

	hash := sha256.Sum256(message)
	return ecdsa.Verify(pub, hash[:], r, s), nil
}
