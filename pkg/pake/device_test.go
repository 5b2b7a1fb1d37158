package pake

import (
	"testing"
	"time"

	"github.com/ndnob/onboard/pkg/face"
	"github.com/ndnob/onboard/pkg/ndnname"
	"github.com/ndnob/onboard/pkg/packet"
)

func newTestDevice(t *testing.T, f face.Face) *Device {
	t.Helper()
	opts := DeviceOptions{
		Face:             f,
		OnboardingPrefix: ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("onboard")),
		DeviceName:       ndnname.New(ndnname.Generic("device"), ndnname.Generic("001")),
	}
	d := NewDevice(opts)
	d.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return d
}

func TestDeviceBeginWaitsForPakeRequest(t *testing.T) {
	d := newTestDevice(t, &face.MemoryFace{})
	if err := d.Begin([]byte("secret")); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if d.State() != DeviceWaitPakeRequest {
		t.Fatalf("state = %d, want DeviceWaitPakeRequest", d.State())
	}
}

func TestDeviceEndResetsToIdle(t *testing.T) {
	d := newTestDevice(t, &face.MemoryFace{})
	if err := d.Begin([]byte("secret")); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	d.End()
	if d.State() != DeviceIdle {
		t.Fatalf("state = %d, want DeviceIdle", d.State())
	}
}

func TestCheckInterestVerbRejectsWrongVerb(t *testing.T) {
	fa, fb := face.NewMemoryLink("a", "b", nil)
	d := newTestDevice(t, fb)
	if err := d.Begin([]byte("secret")); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	sessionID := ndnname.Generic("sess1")
	name := requestName(d.onboardingPrefix, sessionID, verbConfirm) // wrong verb for WaitPakeRequest
	interest := packet.NewInterest(name, []byte("params"))

	if _, err := fa.Send(interest, "b"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	face.PumpUntilIdle(fa, fb, 5)
	if d.State() != DeviceWaitPakeRequest {
		t.Fatalf("state = %d, want device to stay in DeviceWaitPakeRequest on unmatched verb", d.State())
	}
}

func TestCheckInterestVerbRejectsTamperedDigest(t *testing.T) {
	fa, fb := face.NewMemoryLink("a", "b", nil)
	d := newTestDevice(t, fb)
	if err := d.Begin([]byte("secret")); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	sessionID := ndnname.Generic("sess1")
	name := requestName(d.onboardingPrefix, sessionID, verbPake)
	interest := packet.NewInterest(name, []byte("params"))
	interest.AppParameters = []byte("tampered")

	if _, err := fa.Send(interest, "b"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	face.PumpUntilIdle(fa, fb, 5)
	if d.State() != DeviceFailure {
		t.Fatalf("state = %d, want DeviceFailure after a digest mismatch", d.State())
	}
}

func TestSendFetchInterestRegistersPending(t *testing.T) {
	fa, fb := face.NewMemoryLink("a", "b", nil)
	_ = fa
	d := newTestDevice(t, fb)
	d.caProfileName = ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("ca-profile"))
	d.lastInterestEndpoint = "a"
	d.state = DeviceFetchCaProfile

	d.Loop()
	if d.state != DeviceWaitCaProfile {
		t.Fatalf("state = %d, want DeviceWaitCaProfile", d.state)
	}
	if !d.pending.Outstanding() {
		t.Fatal("Loop must register the fetch as pending")
	}
}
