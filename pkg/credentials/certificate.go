// Package credentials implements the certificate and CA-profile envelope
// this protocol exchanges: a Subject/Issuer name pair, a validity window,
// an uncompressed P-256 public key, and a raw ECDSA signature, all carried
// as a TLV structure. Grounded on the teacher's pkg/credentials
// certificate.go (field layout, EncodeTLV/WriteTLV/ReadTLV, validity-time
// helpers), simplified from the teacher's Distinguished-Name subject model
// to this protocol's plain Name subject/issuer, since no Matter DN
// attribute vocabulary applies here.
package credentials

import (
	"bytes"
	"errors"
	"time"

	"github.com/ndnob/onboard/pkg/crypto"
	"github.com/ndnob/onboard/pkg/ndnname"
	"github.com/ndnob/onboard/pkg/tlv"
)

// Size limits mirrored from the teacher's certificate size budget, cut
// down to this protocol's fixed-size EC fields.
const (
	PublicKeySize = crypto.P256PublicKeySizeBytes
	SignatureSize = crypto.P256SignatureSizeBytes
)

var (
	ErrInvalidPublicKeySize = errors.New("credentials: public key must be 65 bytes")
	ErrInvalidSignatureSize = errors.New("credentials: signature must be 64 bytes")
	ErrSignatureInvalid     = errors.New("credentials: signature verification failed")
	ErrNotYetValid          = errors.New("credentials: certificate not yet valid")
	ErrExpired              = errors.New("credentials: certificate expired")
)

// TLV context tags for Certificate fields.
const (
	tagIssuer    = 1
	tagSubject   = 2
	tagNotBefore = 3
	tagNotAfter  = 4
	tagPublicKey = 5
	tagSignature = 6
)

// epochStart mirrors the teacher's MatterEpochStart convention of encoding
// validity times as epoch-second offsets from a fixed start, rather than
// raw Unix time, so certificates stay small on the wire.
var epochStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Certificate binds a Subject name to a public key, issued and signed by
// the Issuer named within it.
type Certificate struct {
	Issuer    ndnname.Name
	Subject   ndnname.Name
	NotBefore time.Time
	NotAfter  time.Time
	PublicKey []byte // 65-byte uncompressed P-256 point
	Signature []byte // 64-byte r||s, absent until Sign is called
}

// signedFields returns the byte string that Sign and Verify operate over:
// every field except the signature itself.
func (c *Certificate) signedFields() []byte {
	var buf bytes.Buffer
	buf.Write(c.Issuer.Encode())
	buf.Write(c.Subject.Encode())
	var tbuf [8]byte
	putUint32(tbuf[:4], toEpoch(c.NotBefore))
	putUint32(tbuf[4:], toEpoch(c.NotAfter))
	buf.Write(tbuf[:])
	buf.Write(c.PublicKey)
	return buf.Bytes()
}

// Sign computes the certificate's signature over its fields using the
// issuer's private key, per-field-order mirroring the teacher's WriteTLV
// field sequence so signed bytes are unambiguous.
func (c *Certificate) Sign(issuerKey *crypto.ECKeyPair) error {
	if len(c.PublicKey) != PublicKeySize {
		return ErrInvalidPublicKeySize
	}
	sig, err := issuerKey.Sign(c.signedFields())
	if err != nil {
		return err
	}
	c.Signature = sig
	return nil
}

// Verify checks the certificate's signature against the issuer's public
// key and, if now is non-zero, the validity window.
func (c *Certificate) Verify(issuerPublicKey []byte, now time.Time) error {
	if len(c.Signature) != SignatureSize {
		return ErrInvalidSignatureSize
	}
	ok, err := crypto.ECDSAVerify(issuerPublicKey, c.signedFields(), c.Signature)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSignatureInvalid
	}
	if !now.IsZero() {
		if !c.NotBefore.IsZero() && now.Before(c.NotBefore) {
			return ErrNotYetValid
		}
		if !c.NotAfter.IsZero() && now.After(c.NotAfter) {
			return ErrExpired
		}
	}
	return nil
}

func toEpoch(t time.Time) uint32 {
	if t.IsZero() || t.Before(epochStart) {
		return 0
	}
	return uint32(t.Sub(epochStart).Seconds())
}

func fromEpoch(v uint32) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return epochStart.Add(time.Duration(v) * time.Second)
}

func putUint32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// EncodeTLV serializes the certificate as an anonymous TLV structure.
func (c *Certificate) EncodeTLV() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := c.WriteTLV(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTLV writes the certificate's fields into an already-open writer.
func (c *Certificate) WriteTLV(w *tlv.Writer) error {
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return err
	}
	if err := w.PutBytes(tlv.ContextTag(tagIssuer), c.Issuer.Encode()); err != nil {
		return err
	}
	if err := w.PutBytes(tlv.ContextTag(tagSubject), c.Subject.Encode()); err != nil {
		return err
	}
	if err := w.PutUintWithWidth(tlv.ContextTag(tagNotBefore), uint64(toEpoch(c.NotBefore)), 4); err != nil {
		return err
	}
	if err := w.PutUintWithWidth(tlv.ContextTag(tagNotAfter), uint64(toEpoch(c.NotAfter)), 4); err != nil {
		return err
	}
	if err := w.PutBytes(tlv.ContextTag(tagPublicKey), c.PublicKey); err != nil {
		return err
	}
	if len(c.Signature) > 0 {
		if err := w.PutBytes(tlv.ContextTag(tagSignature), c.Signature); err != nil {
			return err
		}
	}
	return w.EndContainer()
}

// DecodeTLV parses a Certificate from its anonymous TLV encoding.
func DecodeTLV(data []byte) (*Certificate, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	c := &Certificate{}
	if err := c.ReadTLV(r); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadTLV reads the certificate's fields from an already-positioned
// reader whose next element is the certificate's top-level structure.
func (c *Certificate) ReadTLV(r *tlv.Reader) error {
	if err := r.Next(); err != nil {
		return err
	}
	if err := r.EnterContainer(); err != nil {
		return err
	}
	for {
		if err := r.Next(); err != nil {
			return err
		}
		if r.IsEndOfContainer() {
			break
		}
		tag := r.Tag()
		switch tag.TagNumber() {
		case tagIssuer:
			b, err := r.Bytes()
			if err != nil {
				return err
			}
			name, err := ndnname.Decode(b)
			if err != nil {
				return err
			}
			c.Issuer = name
		case tagSubject:
			b, err := r.Bytes()
			if err != nil {
				return err
			}
			name, err := ndnname.Decode(b)
			if err != nil {
				return err
			}
			c.Subject = name
		case tagNotBefore:
			v, err := r.Uint()
			if err != nil {
				return err
			}
			c.NotBefore = fromEpoch(uint32(v))
		case tagNotAfter:
			v, err := r.Uint()
			if err != nil {
				return err
			}
			c.NotAfter = fromEpoch(uint32(v))
		case tagPublicKey:
			b, err := r.Bytes()
			if err != nil {
				return err
			}
			c.PublicKey = append([]byte(nil), b...)
		case tagSignature:
			b, err := r.Bytes()
			if err != nil {
				return err
			}
			c.Signature = append([]byte(nil), b...)
		default:
			if err := r.Skip(); err != nil {
				return err
			}
		}
	}
	return r.ExitContainer()
}
