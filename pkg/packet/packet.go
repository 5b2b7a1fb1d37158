// Package packet implements the Interest/Data packet model this protocol
// runs over: a named request carrying application parameters bound into
// its own name via a trailing parameters-digest component, and a named
// response whose full name carries a trailing implicit-digest component
// computed over its own encoding. Grounded on original_source's
// device.cpp/authenticator.cpp usage of ndnph::Interest/Data (checkDigest,
// getAppParameters, sign(NullKey::get()), FullName via implicit digest).
package packet

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/ndnob/onboard/pkg/ndnname"
)

var (
	ErrMalformedPacket  = errors.New("packet: malformed packet")
	ErrDigestMismatch   = errors.New("packet: digest verification failed")
	ErrMissingParamsTag = errors.New("packet: interest name missing parameters digest")
)

// SignerNullKey marks a Data packet as unauthenticated: this protocol
// only signs responses observed before the session key exists (PAKE
// handshake replies), relying on the AEAD session rather than packet
// signatures for everything after. Mirrors the original's NullKey.
const SignerNullKey = 0

// SignerECDSA marks a Data packet as bearing a real ECDSA signature, used
// by certificate and CA-profile Data packets.
const SignerECDSA = 1

// Interest is a named request. Name's last component is a
// ComponentImplicitDigest computed over AppParameters (the "parameters
// digest"), binding the parameters to the name the way NDN's
// ParametersSha256DigestComponent does.
type Interest struct {
	Name          ndnname.Name
	AppParameters []byte
}

// NewInterest builds an Interest over the given prefix, appending the
// parameters-digest component derived from params.
func NewInterest(prefix ndnname.Name, params []byte) Interest {
	digest := sha256.Sum256(params)
	return Interest{
		Name:          prefix.Append(ndnname.ImplicitDigest(digest)),
		AppParameters: params,
	}
}

// CheckDigest verifies that Name's trailing component is the correct
// parameters digest of AppParameters.
func (i Interest) CheckDigest() error {
	if i.Name.Len() == 0 || !i.Name.HasTrailingImplicitDigest() {
		return ErrMissingParamsTag
	}
	want := sha256.Sum256(i.AppParameters)
	if !bytes.Equal(i.Name.At(-1).Value, want[:]) {
		return ErrDigestMismatch
	}
	return nil
}

// Prefix returns Name without its trailing parameters-digest component.
func (i Interest) Prefix() ndnname.Name {
	return i.Name.Prefix(i.Name.Len() - 1)
}

// Data is a named response. SignerType distinguishes the null signature
// used for PAKE handshake replies from a real ECDSA signature carried by
// certificate/profile responses.
type Data struct {
	Name       ndnname.Name
	Content    []byte
	SignerType int
	Signature  []byte

	fullName *ndnname.Name
}

// SignNull marks the Data as unauthenticated, mirroring
// data.sign(ndnph::NullKey::get()).
func (d *Data) SignNull() {
	d.SignerType = SignerNullKey
	d.Signature = nil
}

// encodingForDigest returns the bytes over which the implicit digest (and,
// for signed packets, the signature) are computed: name, content and
// signer type, but not the signature itself.
func (d *Data) encodingForDigest() []byte {
	var buf bytes.Buffer
	buf.Write(d.Name.Encode())
	buf.Write(d.Content)
	buf.WriteByte(byte(d.SignerType))
	return buf.Bytes()
}

// FullName returns Name with a trailing ComponentImplicitDigest computed
// over the packet's encoding, computed lazily and cached.
func (d *Data) FullName() ndnname.Name {
	if d.fullName != nil {
		return *d.fullName
	}
	digest := sha256.Sum256(d.encodingForDigest())
	full := d.Name.Append(ndnname.ImplicitDigest(digest))
	d.fullName = &full
	return full
}
