package face

import (
	"testing"
	"time"

	"github.com/ndnob/onboard/pkg/ndnname"
	"github.com/ndnob/onboard/pkg/packet"
)

func TestUDPFaceRoundTripsInterestAndData(t *testing.T) {
	a, b, stop := NewSimulatedUDPPair()
	defer stop()

	gotInterest := make(chan packet.Interest, 1)
	b.RegisterHandler(func(in packet.Interest) bool {
		gotInterest <- in
		reply := packet.Data{Name: in.Name, Content: []byte("pong")}
		reply.SignNull()
		b.Reply(reply, b.CurrentPacketInfo().PitToken)
		return true
	}, nil)

	gotData := make(chan packet.Data, 1)
	a.RegisterHandler(nil, func(d packet.Data) bool {
		gotData <- d
		return true
	})

	go a.Run()
	go b.Run()

	in := packet.NewInterest(ndnname.New(ndnname.Generic("ping")), []byte("hello"))
	if _, err := a.Send(in, "sim:1"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-gotInterest:
		if !got.Name.Equal(in.Name) {
			t.Fatalf("peer got name %s, want %s", got.Name.String(), in.Name.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for interest delivery")
	}

	select {
	case d := <-gotData:
		if string(d.Content) != "pong" {
			t.Fatalf("content = %q, want pong", d.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for data delivery")
	}
}
