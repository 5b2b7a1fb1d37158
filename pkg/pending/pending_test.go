package pending

import (
	"testing"
	"time"

	"github.com/ndnob/onboard/pkg/ndnname"
)

func TestSendRejectsSecondWhileOutstanding(t *testing.T) {
	var tr Tracker
	if err := tr.Send(1, nil); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := tr.Send(2, nil); err != ErrAlreadyOutstanding {
		t.Fatalf("second Send err = %v, want ErrAlreadyOutstanding", err)
	}
}

func TestMatchPitTokenAndMatch(t *testing.T) {
	var tr Tracker
	name := ndnname.New(ndnname.Generic("ca-profile"))
	if err := tr.Send(42, &name); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if tr.MatchPitToken(41) {
		t.Fatal("wrong token must not match")
	}
	if !tr.MatchPitToken(42) {
		t.Fatal("correct token must match")
	}
	other := ndnname.New(ndnname.Generic("other"))
	if tr.Match(42, other) {
		t.Fatal("mismatched name must not match")
	}
	if !tr.Match(42, name) {
		t.Fatal("matching token and name must match")
	}
}

func TestMatchWithoutExpectedNameIgnoresName(t *testing.T) {
	var tr Tracker
	if err := tr.Send(7, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	anyName := ndnname.New(ndnname.Generic("whatever"))
	if !tr.Match(7, anyName) {
		t.Fatal("with no expected name recorded, token match alone should suffice")
	}
}

func TestExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := Tracker{Now: func() time.Time { return now }}
	if err := tr.Send(1, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if tr.Expired() {
		t.Fatal("must not be expired immediately")
	}
	now = now.Add(DefaultTimeout + time.Millisecond)
	if !tr.Expired() {
		t.Fatal("must be expired after deadline passes")
	}
}

func TestClearAllowsNewSend(t *testing.T) {
	var tr Tracker
	if err := tr.Send(1, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	tr.Clear()
	if tr.Outstanding() {
		t.Fatal("Clear must reset outstanding flag")
	}
	if err := tr.Send(2, nil); err != nil {
		t.Fatalf("Send after Clear: %v", err)
	}
}
