package pake

import (
	"testing"
	"time"

	"github.com/ndnob/onboard/pkg/credentials"
	"github.com/ndnob/onboard/pkg/crypto"
	"github.com/ndnob/onboard/pkg/face"
	"github.com/ndnob/onboard/pkg/ndnname"
	"github.com/ndnob/onboard/pkg/packet"
)

func newTestAuthenticator(t *testing.T, f face.Face) (*Authenticator, *crypto.ECKeyPair) {
	t.Helper()
	caKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	authKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cert := credentials.Certificate{
		Issuer:    ndnname.New(ndnname.Generic("ca")),
		Subject:   ndnname.New(ndnname.Generic("authenticator"), ndnname.Generic("001")),
		NotBefore: now.Add(-time.Hour),
		NotAfter:  now.Add(24 * time.Hour),
		PublicKey: authKey.PublicKey(),
	}
	if err := cert.Sign(caKey); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	opts := AuthenticatorOptions{
		Face:             f,
		OnboardingPrefix: ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("onboard")),
		DeviceName:       ndnname.New(ndnname.Generic("device"), ndnname.Generic("001")),
		DeviceEndpoint:   "device",
		CaProfile: credentials.CaProfile{
			PublicKey: caKey.PublicKey(),
			NotBefore: now.Add(-time.Hour),
			NotAfter:  now.Add(100 * 365 * 24 * time.Hour),
		},
		CaProfileName: ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("ca-profile")),
		Cert:          cert,
		CertName:      ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("authenticator-cert")),
		PrivateKey:    authKey,
	}
	a, err := NewAuthenticator(opts)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	a.Now = func() time.Time { return now }
	return a, caKey
}

func TestAuthenticatorBeginStartsPakeRequest(t *testing.T) {
	a, _ := newTestAuthenticator(t, &face.MemoryFace{})
	if err := a.Begin([]byte("secret")); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if a.State() != AuthenticatorSendPakeRequest {
		t.Fatalf("state = %d, want AuthenticatorSendPakeRequest", a.State())
	}
}

func TestAuthenticatorEndResetsToIdle(t *testing.T) {
	a, _ := newTestAuthenticator(t, &face.MemoryFace{})
	if err := a.Begin([]byte("secret")); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	a.End()
	if a.State() != AuthenticatorIdle {
		t.Fatalf("state = %d, want AuthenticatorIdle", a.State())
	}
	if a.session.HasSessionID() {
		t.Fatal("End must clear the session")
	}
}

func TestAuthenticatorServesCaProfileAndCertByFullName(t *testing.T) {
	fa, fb := face.NewMemoryLink("a", "b", nil)
	a, _ := newTestAuthenticator(t, fa)

	var got packet.Data
	var ok bool
	fb.RegisterHandler(nil, func(d packet.Data) bool {
		got = d
		ok = true
		return true
	})

	caName := a.caProfileData.FullName()
	if _, err := fb.Send(packet.Interest{Name: caName}, "a"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	face.PumpUntilIdle(fa, fb, 5)
	if !ok {
		t.Fatal("authenticator did not reply to a matching ca-profile fetch")
	}
	if string(got.Content) == "" {
		t.Fatal("ca-profile reply had empty content")
	}
}

func TestAuthenticatorRejectsNonMatchingFetch(t *testing.T) {
	fa, fb := face.NewMemoryLink("a", "b", nil)
	a, _ := newTestAuthenticator(t, fa)

	called := false
	fb.RegisterHandler(nil, func(d packet.Data) bool {
		called = true
		return true
	})

	_ = a
	wrong := ndnname.New(ndnname.Generic("nope"))
	if _, err := fb.Send(packet.Interest{Name: wrong}, "a"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	face.PumpUntilIdle(fa, fb, 5)
	if called {
		t.Fatal("authenticator must not reply to an unrelated name")
	}
}
