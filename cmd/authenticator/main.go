// authenticator runs the onboarding protocol's initiator side against a
// single Device, over a real UDP socket.
//
// Usage:
//
//	authenticator -password <secret> -device-addr <host:port> -device-name <name>
//
// If -device-addr is omitted, the Device is discovered via mDNS instead;
// -device-name must then match the name it advertises.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/ndnob/onboard/pkg/credentials"
	"github.com/ndnob/onboard/pkg/crypto"
	"github.com/ndnob/onboard/pkg/discovery"
	"github.com/ndnob/onboard/pkg/face"
	"github.com/ndnob/onboard/pkg/ndnname"
	"github.com/ndnob/onboard/pkg/pake"
)

func main() {
	port := flag.Int("port", 6364, "UDP port to listen on")
	password := flag.String("password", "", "shared onboarding password (required)")
	deviceAddr := flag.String("device-addr", "", "device's host:port; if empty, discover via mDNS")
	deviceName := flag.String("device-name", "", "device's onboarding name, slash-separated (required)")
	onboardingPrefix := flag.String("prefix", "/ndnob/onboard", "onboarding name prefix, slash-separated")
	discoverTimeout := flag.Duration("discover-timeout", 5*time.Second, "how long to browse for the device if -device-addr is empty")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *password == "" || *deviceName == "" {
		log.Fatal("authenticator: -password and -device-name are required")
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	if *verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	} else {
		loggerFactory.DefaultLogLevel = logging.LogLevelInfo
	}

	prefix := parseName(*onboardingPrefix)
	device := parseName(*deviceName)

	endpoint := *deviceAddr
	if endpoint == "" {
		resolved, err := discoverDevice(device, *discoverTimeout)
		if err != nil {
			log.Fatalf("authenticator: discovery failed: %v", err)
		}
		endpoint = resolved.Endpoint
		log.Printf("authenticator: discovered %s at %s", resolved.InstanceName, endpoint)
	}

	conn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("authenticator: listen: %v", err)
	}
	f := face.NewUDPFace(conn, loggerFactory)
	go func() {
		if err := f.Run(); err != nil {
			log.Printf("authenticator: face closed: %v", err)
		}
	}()

	caKey, caProfile := issueDemoTrustRoot()
	authKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		log.Fatalf("authenticator: generate key: %v", err)
	}
	certName := ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("authenticator-cert"))
	caProfileName := ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("ca-profile"))
	now := time.Now()
	cert := credentials.Certificate{
		Issuer:    ndnname.New(ndnname.Generic("ndnob"), ndnname.Generic("demo-ca")),
		Subject:   ndnname.New(ndnname.Generic("authenticator"), ndnname.Generic(fmt.Sprint(*port))),
		NotBefore: now.Add(-time.Minute),
		NotAfter:  now.Add(24 * time.Hour),
		PublicKey: authKey.PublicKey(),
	}
	if err := cert.Sign(caKey); err != nil {
		log.Fatalf("authenticator: sign demo cert: %v", err)
	}

	auth, err := pake.NewAuthenticator(pake.AuthenticatorOptions{
		Face:             f,
		OnboardingPrefix: prefix,
		DeviceName:       device,
		DeviceEndpoint:   endpoint,
		CaProfile:        caProfile,
		CaProfileName:    caProfileName,
		Cert:             cert,
		CertName:         certName,
		PrivateKey:       authKey,
		LoggerFactory:    loggerFactory,
	})
	if err != nil {
		log.Fatalf("authenticator: init: %v", err)
	}

	if err := auth.Begin([]byte(*password)); err != nil {
		log.Fatalf("authenticator: begin: %v", err)
	}

	for {
		auth.Loop()
		switch auth.State() {
		case pake.AuthenticatorSuccess:
			log.Println("authenticator: onboarding succeeded")
			return
		case pake.AuthenticatorFailure:
			log.Fatal("authenticator: onboarding failed")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func discoverDevice(want ndnname.Name, timeout time.Duration) (discovery.ResolvedDevice, error) {
	resolver, err := discovery.NewResolver(discovery.ResolverConfig{BrowseTimeout: timeout})
	if err != nil {
		return discovery.ResolvedDevice{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	results, err := resolver.Browse(ctx)
	if err != nil {
		return discovery.ResolvedDevice{}, err
	}
	for dev := range results {
		if dev.DeviceName.Equal(want) {
			return dev, nil
		}
	}
	return discovery.ResolvedDevice{}, fmt.Errorf("device %s not found within %s", want.String(), timeout)
}

// issueDemoTrustRoot mints an ephemeral CA key and profile for the demo
// binary; a real deployment would load a provisioned CA key instead.
func issueDemoTrustRoot() (*crypto.ECKeyPair, credentials.CaProfile) {
	caKey, err := crypto.GenerateECKeyPair()
	if err != nil {
		log.Fatalf("authenticator: generate demo CA key: %v", err)
	}
	now := time.Now()
	return caKey, credentials.CaProfile{
		PublicKey: caKey.PublicKey(),
		NotBefore: now.Add(-time.Minute),
		NotAfter:  now.Add(100 * 365 * 24 * time.Hour),
	}
}

func parseName(s string) ndnname.Name {
	s = strings.Trim(s, "/")
	if s == "" {
		return ndnname.New()
	}
	parts := strings.Split(s, "/")
	comps := make([]ndnname.Component, len(parts))
	for i, p := range parts {
		comps[i] = ndnname.Generic(p)
	}
	return ndnname.New(comps...)
}
