package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/ndnob/onboard/pkg/ndnname"
)

func TestAdvertiserStartRegistersExpectedTXT(t *testing.T) {
	factory := &MockServerFactory{}
	a := NewAdvertiser(AdvertiserConfig{InstanceName: "dev-001", Port: 6363, ServerFactory: factory})

	txt := DeviceTXT{
		DeviceName:       ndnname.New(ndnname.Generic("device"), ndnname.Generic("001")),
		OnboardingPrefix: ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("onboard")),
	}
	if err := a.Start(txt); err != nil {
		t.Fatalf("Start: %v", err)
	}

	call, ok := factory.LastCall()
	if !ok {
		t.Fatal("Register was not called")
	}
	if call.instance != "dev-001" || call.service != ServiceType || call.port != 6363 {
		t.Fatalf("unexpected registration: %+v", call)
	}

	decoded, err := decodeDeviceTXT(call.txt)
	if err != nil {
		t.Fatalf("decodeDeviceTXT: %v", err)
	}
	if !decoded.DeviceName.Equal(txt.DeviceName) || !decoded.OnboardingPrefix.Equal(txt.OnboardingPrefix) {
		t.Fatal("round-tripped txt does not match what was advertised")
	}

	if err := a.Start(txt); err != ErrAlreadyStarted {
		t.Fatalf("second Start: got %v, want ErrAlreadyStarted", err)
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !factory.LastServer().wasShutdown() {
		t.Fatal("Stop did not shut down the registered server")
	}
}

func TestResolverBrowseDecodesMatchingEntries(t *testing.T) {
	mock := NewMockResolver()
	txt := DeviceTXT{
		DeviceName:       ndnname.New(ndnname.Generic("device"), ndnname.Generic("001")),
		OnboardingPrefix: ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("onboard")),
	}
	mock.AddEntry(ServiceType, &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "dev-001"},
		Port:          6363,
		AddrIPv4:      []net.IP{net.ParseIP("192.0.2.1")},
		Text:          txt.encode(),
	})
	// An entry with no usable IP should be skipped, not crash the browse.
	mock.AddEntry(ServiceType, &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "dev-002"},
		Port:          6363,
		Text:          txt.encode(),
	})

	r, err := NewResolver(ResolverConfig{MDNSResolver: mock})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	results, err := r.Browse(ctx)
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}

	var found []ResolvedDevice
	for dev := range results {
		found = append(found, dev)
	}
	if len(found) != 1 {
		t.Fatalf("got %d resolved devices, want 1", len(found))
	}
	if found[0].Endpoint != "192.0.2.1:6363" {
		t.Fatalf("endpoint = %q, want 192.0.2.1:6363", found[0].Endpoint)
	}
	if !found[0].DeviceName.Equal(txt.DeviceName) {
		t.Fatal("resolved device name does not match advertised name")
	}
}
