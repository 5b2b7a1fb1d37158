// Package discovery implements DNS-SD (mDNS) discovery of onboardable
// devices: a Device advertises a service carrying its name and the
// onboarding prefix it listens on, and an Authenticator browses for it to
// learn the Device's network endpoint before starting the PAKE exchange.
// Grounded on the teacher's pkg/discovery (Advertiser/Resolver split,
// MDNSServer/MDNSResolver dependency-injection interfaces wrapping
// grandcat/zeroconf, instance-name/TXT conventions) adapted from Matter's
// commissionable-node discovery to this protocol's onboarding service.
package discovery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"

	"github.com/ndnob/onboard/pkg/ndnname"
)

// ServiceType is the DNS-SD service type this protocol advertises under.
const ServiceType = "_ndnob-onboard._udp"

// DefaultDomain is the mDNS domain searched and advertised in.
const DefaultDomain = "local."

var (
	ErrClosed        = errors.New("discovery: advertiser is closed")
	ErrAlreadyStarted = errors.New("discovery: already advertising")
	ErrNotStarted    = errors.New("discovery: not advertising")
)

// TXT keys carried by the onboarding service record.
const (
	txtKeyDeviceName       = "dn"
	txtKeyOnboardingPrefix = "pfx"
)

// DeviceTXT holds the attributes a Device advertises about itself.
type DeviceTXT struct {
	// DeviceName is this protocol's device name, used by the
	// Authenticator to address its onboarding requests.
	DeviceName ndnname.Name

	// OnboardingPrefix is the name prefix the Device's onboarding
	// handlers are registered under.
	OnboardingPrefix ndnname.Name
}

func (t DeviceTXT) encode() []string {
	return []string{
		txtKeyDeviceName + "=" + hex.EncodeToString(t.DeviceName.Encode()),
		txtKeyOnboardingPrefix + "=" + hex.EncodeToString(t.OnboardingPrefix.Encode()),
	}
}

func decodeDeviceTXT(fields []string) (DeviceTXT, error) {
	var t DeviceTXT
	var haveName, havePrefix bool
	for _, f := range fields {
		key, value, ok := splitTXT(f)
		if !ok {
			continue
		}
		switch key {
		case txtKeyDeviceName:
			raw, err := hex.DecodeString(value)
			if err != nil {
				return DeviceTXT{}, fmt.Errorf("discovery: malformed %s txt field: %w", txtKeyDeviceName, err)
			}
			name, err := ndnname.Decode(raw)
			if err != nil {
				return DeviceTXT{}, err
			}
			t.DeviceName = name
			haveName = true
		case txtKeyOnboardingPrefix:
			raw, err := hex.DecodeString(value)
			if err != nil {
				return DeviceTXT{}, fmt.Errorf("discovery: malformed %s txt field: %w", txtKeyOnboardingPrefix, err)
			}
			prefix, err := ndnname.Decode(raw)
			if err != nil {
				return DeviceTXT{}, err
			}
			t.OnboardingPrefix = prefix
			havePrefix = true
		}
	}
	if !haveName || !havePrefix {
		return DeviceTXT{}, errors.New("discovery: txt record missing required fields")
	}
	return t, nil
}

func splitTXT(field string) (key, value string, ok bool) {
	for i := 0; i < len(field); i++ {
		if field[i] == '=' {
			return field[:i], field[i+1:], true
		}
	}
	return "", "", false
}

// MDNSServer is the interface for an active mDNS service registration,
// letting tests substitute a fake in place of a real zeroconf.Server.
type MDNSServer interface {
	Shutdown()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

type zeroconfServerFactory struct{}

func (zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// InstanceName is the DNS-SD instance name. If empty, a random one
	// is generated.
	InstanceName string

	// Port is the UDP port the Device's onboarding Face listens on.
	Port int

	// Interfaces restricts which network interfaces to advertise on.
	// If nil, all interfaces are used.
	Interfaces []net.Interface

	// ServerFactory overrides the mDNS registration backend, used by
	// tests. Defaults to the real grandcat/zeroconf-backed factory.
	ServerFactory MDNSServerFactory

	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes a Device's onboarding service over mDNS.
type Advertiser struct {
	config  AdvertiserConfig
	factory MDNSServerFactory
	log     logging.LeveledLogger

	mu     sync.Mutex
	server MDNSServer
}

// NewAdvertiser constructs an Advertiser. It does not start advertising;
// call Start.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	factory := config.ServerFactory
	if factory == nil {
		factory = zeroconfServerFactory{}
	}
	a := &Advertiser{config: config, factory: factory}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("discovery")
	}
	return a
}

// Start registers the onboarding service, carrying txt as its TXT record.
func (a *Advertiser) Start(txt DeviceTXT) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return ErrAlreadyStarted
	}

	instance := a.config.InstanceName
	if instance == "" {
		instance = randomInstanceName()
	}

	server, err := a.factory.Register(instance, ServiceType, DefaultDomain, a.config.Port, txt.encode(), a.config.Interfaces)
	if err != nil {
		return fmt.Errorf("discovery: register failed: %w", err)
	}
	a.server = server
	if a.log != nil {
		a.log.Infof("discovery: advertising %s as %s on port %d", ServiceType, instance, a.config.Port)
	}
	return nil
}

// Stop withdraws the service registration.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return ErrNotStarted
	}
	a.server.Shutdown()
	a.server = nil
	return nil
}

func randomInstanceName() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return "ndnob-" + hex.EncodeToString(b[:])
}

// MDNSResolver is the interface for mDNS service browsing, letting tests
// substitute a fake in place of a real zeroconf.Resolver.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfResolver struct {
	r *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{r: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.r.Browse(ctx, service, domain, entries)
}

// DefaultBrowseTimeout bounds how long Browse waits for responses when
// ctx carries no deadline of its own.
const DefaultBrowseTimeout = 5 * time.Second

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// MDNSResolver overrides the mDNS browse backend, used by tests.
	// Defaults to the real grandcat/zeroconf-backed resolver.
	MDNSResolver MDNSResolver

	BrowseTimeout time.Duration
}

// ResolvedDevice is a discovered onboarding service instance.
type ResolvedDevice struct {
	InstanceName string
	Endpoint     string // "host:port", suitable as a Face Send endpoint
	DeviceTXT
}

// Resolver discovers onboardable devices via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
}

// NewResolver constructs a Resolver.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	return &Resolver{config: config, resolver: resolver}, nil
}

// Browse discovers onboarding services until ctx is done or the browse
// timeout expires, streaming each valid one as it's found. Entries whose
// TXT record cannot be parsed are silently skipped.
func (r *Resolver) Browse(ctx context.Context) (<-chan ResolvedDevice, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	results := make(chan ResolvedDevice)

	go func() {
		defer close(results)
		go func() {
			defer close(entries)
			r.resolver.Browse(ctx, ServiceType, DefaultDomain, entries)
		}()
		for entry := range entries {
			dev, ok := entryToResolvedDevice(entry)
			if !ok {
				continue
			}
			select {
			case results <- dev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results, nil
}

func entryToResolvedDevice(entry *zeroconf.ServiceEntry) (ResolvedDevice, bool) {
	txt, err := decodeDeviceTXT(entry.Text)
	if err != nil {
		return ResolvedDevice{}, false
	}
	ip := preferredIP(entry)
	if ip == nil {
		return ResolvedDevice{}, false
	}
	return ResolvedDevice{
		InstanceName: entry.Instance,
		Endpoint:     net.JoinHostPort(ip.String(), fmt.Sprint(entry.Port)),
		DeviceTXT:    txt,
	}, true
}

func preferredIP(entry *zeroconf.ServiceEntry) net.IP {
	if len(entry.AddrIPv4) > 0 {
		return entry.AddrIPv4[0]
	}
	if len(entry.AddrIPv6) > 0 {
		return entry.AddrIPv6[0]
	}
	return nil
}
