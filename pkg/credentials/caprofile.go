package credentials

import (
	"bytes"
	"time"

	"github.com/ndnob/onboard/pkg/tlv"
)

// TLV context tags for CaProfile fields.
const (
	tagCAPublicKey = 1
	tagCANotBefore = 2
	tagCANotAfter  = 3
)

// CaProfile is the structured envelope this module uses for the CA
// profile referenced by spec.md: the CA's public key and its own
// validity window. It is carried as a Data packet's content rather than
// as a raw certificate, per SPEC_FULL.md §3.
type CaProfile struct {
	PublicKey []byte // 65-byte uncompressed P-256 point
	NotBefore time.Time
	NotAfter  time.Time
}

// EncodeTLV serializes the profile as an anonymous TLV structure.
func (p *CaProfile) EncodeTLV() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagCAPublicKey), p.PublicKey); err != nil {
		return nil, err
	}
	if err := w.PutUintWithWidth(tlv.ContextTag(tagCANotBefore), uint64(toEpoch(p.NotBefore)), 4); err != nil {
		return nil, err
	}
	if err := w.PutUintWithWidth(tlv.ContextTag(tagCANotAfter), uint64(toEpoch(p.NotAfter)), 4); err != nil {
		return nil, err
	}
	if err := w.EndContainer(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCaProfileTLV parses a CaProfile from its anonymous TLV encoding.
func DecodeCaProfileTLV(data []byte) (*CaProfile, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	if err := r.Next(); err != nil {
		return nil, err
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}
	p := &CaProfile{}
	for {
		if err := r.Next(); err != nil {
			return nil, err
		}
		if r.IsEndOfContainer() {
			break
		}
		switch r.Tag().TagNumber() {
		case tagCAPublicKey:
			b, err := r.Bytes()
			if err != nil {
				return nil, err
			}
			p.PublicKey = append([]byte(nil), b...)
		case tagCANotBefore:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			p.NotBefore = fromEpoch(uint32(v))
		case tagCANotAfter:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			p.NotAfter = fromEpoch(uint32(v))
		default:
			if err := r.Skip(); err != nil {
				return nil, err
			}
		}
	}
	if err := r.ExitContainer(); err != nil {
		return nil, err
	}
	return p, nil
}
