// device runs the onboarding protocol's responder side, waiting for a
// single Authenticator to complete the PAKE exchange and issue it a
// credential, over a real UDP socket.
//
// Usage:
//
//	device -password <secret> -name <name>
//
// Unless -no-advertise is set, the device also advertises itself over
// mDNS so an authenticator can discover its address without being told
// it directly.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/ndnob/onboard/pkg/discovery"
	"github.com/ndnob/onboard/pkg/face"
	"github.com/ndnob/onboard/pkg/ndnname"
	"github.com/ndnob/onboard/pkg/pake"
)

func main() {
	port := flag.Int("port", 6363, "UDP port to listen on")
	password := flag.String("password", "", "shared onboarding password (required)")
	name := flag.String("name", "", "this device's onboarding name, slash-separated (required)")
	onboardingPrefix := flag.String("prefix", "/ndnob/onboard", "onboarding name prefix, slash-separated")
	noAdvertise := flag.Bool("no-advertise", false, "disable mDNS advertising")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *password == "" || *name == "" {
		log.Fatal("device: -password and -name are required")
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	if *verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	} else {
		loggerFactory.DefaultLogLevel = logging.LogLevelInfo
	}

	prefix := parseName(*onboardingPrefix)
	deviceName := parseName(*name)

	conn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("device: listen: %v", err)
	}
	f := face.NewUDPFace(conn, loggerFactory)
	go func() {
		if err := f.Run(); err != nil {
			log.Printf("device: face closed: %v", err)
		}
	}()

	if !*noAdvertise {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{Port: *port, LoggerFactory: loggerFactory})
		if err := adv.Start(discovery.DeviceTXT{DeviceName: deviceName, OnboardingPrefix: prefix}); err != nil {
			log.Fatalf("device: advertise: %v", err)
		}
		defer adv.Stop()
	}

	dev := pake.NewDevice(pake.DeviceOptions{
		Face:             f,
		OnboardingPrefix: prefix,
		DeviceName:       deviceName,
		LoggerFactory:    loggerFactory,
	})

	if err := dev.Begin([]byte(*password)); err != nil {
		log.Fatalf("device: begin: %v", err)
	}

	for {
		dev.Loop()
		switch dev.State() {
		case pake.DeviceSuccess:
			log.Printf("device: onboarding succeeded, issued credential: %s", hex.EncodeToString(dev.IssuedCert))
			return
		case pake.DeviceFailure:
			log.Fatal("device: onboarding failed")
		}
		time.Sleep(20 * time.Millisecond)
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
