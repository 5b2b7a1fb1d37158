package credentials

import (
	"testing"
	"time"

	"github.com/ndnob/onboard/pkg/crypto"
	"github.com/ndnob/onboard/pkg/ndnname"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	issuerKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	subjectKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}

	cert := &Certificate{
		Issuer:    ndnname.New(ndnname.Generic("ca")),
		Subject:   ndnname.New(ndnname.Generic("device-1")),
		NotBefore: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		PublicKey: subjectKey.PublicKey(),
	}
	if err := cert.Sign(issuerKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := cert.Verify(issuerKey.PublicKey(), now); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuerKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	subjectKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	cert := &Certificate{
		Issuer:    ndnname.New(ndnname.Generic("ca")),
		Subject:   ndnname.New(ndnname.Generic("device-1")),
		NotBefore: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		PublicKey: subjectKey.PublicKey(),
	}
	if err := cert.Sign(issuerKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := cert.Verify(issuerKey.PublicKey(), now); err != ErrExpired {
		t.Fatalf("Verify err = %v, want ErrExpired", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	issuerKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	subjectKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	cert := &Certificate{
		Issuer:    ndnname.New(ndnname.Generic("ca")),
		Subject:   ndnname.New(ndnname.Generic("device-1")),
		PublicKey: subjectKey.PublicKey(),
	}
	if err := cert.Sign(issuerKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	cert.Signature[0] ^= 0xff

	if err := cert.Verify(issuerKey.PublicKey(), time.Time{}); err != ErrSignatureInvalid {
		t.Fatalf("Verify err = %v, want ErrSignatureInvalid", err)
	}
}

func TestEncodeDecodeTLVRoundTrip(t *testing.T) {
	issuerKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	subjectKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	cert := &Certificate{
		Issuer:    ndnname.New(ndnname.Generic("ca")),
		Subject:   ndnname.New(ndnname.Generic("device-1")),
		NotBefore: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		PublicKey: subjectKey.PublicKey(),
	}
	if err := cert.Sign(issuerKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	data, err := cert.EncodeTLV()
	if err != nil {
		t.Fatalf("EncodeTLV: %v", err)
	}
	decoded, err := DecodeTLV(data)
	if err != nil {
		t.Fatalf("DecodeTLV: %v", err)
	}
	if !decoded.Subject.Equal(cert.Subject) || !decoded.Issuer.Equal(cert.Issuer) {
		t.Fatal("decoded names do not match original")
	}
	if err := decoded.Verify(issuerKey.PublicKey(), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Verify(decoded): %v", err)
	}
}
