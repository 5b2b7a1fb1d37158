// Package pake implements the PAKE-based onboarding exchange: the
// Authenticator and Device state machines, their wire packet structures,
// and the deterministic temporary-subject-name derivation they share.
// Grounded on original_source/src/ndnob/pake/{authenticator,device}.cpp
// for the state machine and packet-struct shapes, and on the teacher's
// tlv package for the wire codec.
package pake

import (
	"bytes"
	"io"

	"github.com/ndnob/onboard/pkg/tlv"
)

// Context tag numbers for this protocol's wire fields, per the external
// interface's TLV type list.
const (
	tagSpake2T               = 1
	tagSpake2S               = 2
	tagSpake2Fkcb            = 3
	tagSpake2Fkca            = 4
	tagNc                    = 5
	tagCaProfileName         = 6
	tagAuthenticatorCertName = 7
	tagDeviceName            = 8
	tagTimestamp             = 9
	tagTReq                  = 10
	tagIssuedCertName        = 11
	tagIV                    = 12
	tagAuthTag               = 13
	tagEncryptedPayload      = 14
)

// pakeRequest carries the Authenticator's first SPAKE2 share, sent as the
// "pake" Interest's application parameters.
type pakeRequest struct {
	Spake2T []byte
}

func (m pakeRequest) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.PutBytes(tlv.ContextTag(tagSpake2T), m.Spake2T); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePakeRequest(data []byte) (pakeRequest, error) {
	var m pakeRequest
	r := tlv.NewReader(bytes.NewReader(data))
	for {
		if err := r.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return m, err
		}
		if r.Tag().TagNumber() == tagSpake2T {
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.Spake2T = b
		} else if err := r.Skip(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// pakeResponse carries the Device's SPAKE2 share and key-confirmation
// MAC, sent as the "pake" Data's content.
type pakeResponse struct {
	Spake2S    []byte
	Spake2Fkcb []byte
}

func (m pakeResponse) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.PutBytes(tlv.ContextTag(tagSpake2S), m.Spake2S); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagSpake2Fkcb), m.Spake2Fkcb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePakeResponse(data []byte) (pakeResponse, error) {
	var m pakeResponse
	r := tlv.NewReader(bytes.NewReader(data))
	for {
		if err := r.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return m, err
		}
		switch r.Tag().TagNumber() {
		case tagSpake2S:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.Spake2S = b
		case tagSpake2Fkcb:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.Spake2Fkcb = b
		default:
			if err := r.Skip(); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// encryptedEnvelope carries a session-encrypted payload's IV, tag and
// ciphertext as sibling TLV fields.
type encryptedEnvelope struct {
	IV         []byte
	Tag        []byte
	Ciphertext []byte
}

func (e encryptedEnvelope) writeFields(w *tlv.Writer) error {
	if err := w.PutBytes(tlv.ContextTag(tagIV), e.IV); err != nil {
		return err
	}
	if err := w.PutBytes(tlv.ContextTag(tagAuthTag), e.Tag); err != nil {
		return err
	}
	return w.PutBytes(tlv.ContextTag(tagEncryptedPayload), e.Ciphertext)
}

// confirmRequestPlain is the cleartext confirmation MAC sent alongside the
// encrypted envelope in the "confirm" Interest's application parameters.
type confirmRequest struct {
	Spake2Fkca []byte
	Encrypted  encryptedEnvelope
}

func (m confirmRequest) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.PutBytes(tlv.ContextTag(tagSpake2Fkca), m.Spake2Fkca); err != nil {
		return nil, err
	}
	if err := m.Encrypted.writeFields(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeConfirmRequest(data []byte) (confirmRequest, error) {
	var m confirmRequest
	r := tlv.NewReader(bytes.NewReader(data))
	for {
		if err := r.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return m, err
		}
		switch r.Tag().TagNumber() {
		case tagSpake2Fkca:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.Spake2Fkca = b
		case tagIV:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.Encrypted.IV = b
		case tagAuthTag:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.Encrypted.Tag = b
		case tagEncryptedPayload:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.Encrypted.Ciphertext = b
		default:
			if err := r.Skip(); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// confirmRequestInner is the plaintext sealed inside confirmRequest's
// encrypted envelope.
type confirmRequestInner struct {
	Nc                    []byte
	CaProfileName         []byte // encoded ndnname.Name, full name
	AuthenticatorCertName []byte // encoded ndnname.Name, full name
	DeviceName            []byte // encoded ndnname.Name
	Timestamp             uint64
}

func (m confirmRequestInner) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.PutBytes(tlv.ContextTag(tagNc), m.Nc); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagCaProfileName), m.CaProfileName); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagAuthenticatorCertName), m.AuthenticatorCertName); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagDeviceName), m.DeviceName); err != nil {
		return nil, err
	}
	if err := w.PutUintWithWidth(tlv.ContextTag(tagTimestamp), m.Timestamp, 8); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeConfirmRequestInner(data []byte) (confirmRequestInner, error) {
	var m confirmRequestInner
	r := tlv.NewReader(bytes.NewReader(data))
	for {
		if err := r.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return m, err
		}
		switch r.Tag().TagNumber() {
		case tagNc:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.Nc = b
		case tagCaProfileName:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.CaProfileName = b
		case tagAuthenticatorCertName:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.AuthenticatorCertName = b
		case tagDeviceName:
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.DeviceName = b
		case tagTimestamp:
			v, err := r.Uint()
			if err != nil {
				return m, err
			}
			m.Timestamp = v
		default:
			if err := r.Skip(); err != nil {
				return m, err
			}
		}
	}
	return m, nil
}

// confirmResponseInner carries the Device's self-signed temp-certificate
// request, sealed inside the "confirm" Data's encrypted content.
type confirmResponseInner struct {
	TReq []byte
}

func (m confirmResponseInner) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.PutBytes(tlv.ContextTag(tagTReq), m.TReq); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeConfirmResponseInner(data []byte) (confirmResponseInner, error) {
	var m confirmResponseInner
	r := tlv.NewReader(bytes.NewReader(data))
	for {
		if err := r.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return m, err
		}
		if r.Tag().TagNumber() == tagTReq {
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.TReq = b
		} else if err := r.Skip(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// credentialRequestInner names the issued temp certificate the
// Authenticator wants the Device to fetch and persist.
type credentialRequestInner struct {
	IssuedCertName []byte
}

func (m credentialRequestInner) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := w.PutBytes(tlv.ContextTag(tagIssuedCertName), m.IssuedCertName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCredentialRequestInner(data []byte) (credentialRequestInner, error) {
	var m credentialRequestInner
	r := tlv.NewReader(bytes.NewReader(data))
	for {
		if err := r.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return m, err
		}
		if r.Tag().TagNumber() == tagIssuedCertName {
			b, err := r.Bytes()
			if err != nil {
				return m, err
			}
			m.IssuedCertName = b
		} else if err := r.Skip(); err != nil {
			return m, err
		}
	}
	return m, nil
}

func encodeEncryptedEnvelope(e encryptedEnvelope) ([]byte, error) {
	var buf bytes.Buffer
	w := tlv.NewWriter(&buf)
	if err := e.writeFields(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEncryptedEnvelope(data []byte) (encryptedEnvelope, error) {
	var e encryptedEnvelope
	r := tlv.NewReader(bytes.NewReader(data))
	for {
		if err := r.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return e, err
		}
		switch r.Tag().TagNumber() {
		case tagIV:
			b, err := r.Bytes()
			if err != nil {
				return e, err
			}
			e.IV = b
		case tagAuthTag:
			b, err := r.Bytes()
			if err != nil {
				return e, err
			}
			e.Tag = b
		case tagEncryptedPayload:
			b, err := r.Bytes()
			if err != nil {
				return e, err
			}
			e.Ciphertext = b
		default:
			if err := r.Skip(); err != nil {
				return e, err
			}
		}
	}
	return e, nil
}
