package ndnname

import (
	"crypto/sha256"
	"testing"
)

func TestNameEqualAndSlice(t *testing.T) {
	n := New(Generic("example"), Generic("device"), Generic("alice"))
	if n.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", n.Len())
	}
	if n.At(-1).String() != "alice" {
		t.Fatalf("At(-1) = %q, want alice", n.At(-1).String())
	}

	prefix := n.Prefix(2)
	if !prefix.Equal(New(Generic("example"), Generic("device"))) {
		t.Fatalf("Prefix(2) = %v, want /example/device", prefix)
	}
}

func TestNameAppendDoesNotMutateReceiver(t *testing.T) {
	base := New(Generic("onboard"))
	extended := base.Append(Generic("sid1"), Generic("pake"))

	if base.Len() != 1 {
		t.Fatalf("base mutated: Len() = %d", base.Len())
	}
	if extended.Len() != 3 {
		t.Fatalf("extended.Len() = %d, want 3", extended.Len())
	}
}

func TestHasTrailingImplicitDigest(t *testing.T) {
	digest := sha256.Sum256([]byte("content"))
	withDigest := New(Generic("a")).Append(ImplicitDigest(digest))
	withoutDigest := New(Generic("a"), Generic("b"))

	if !withDigest.HasTrailingImplicitDigest() {
		t.Error("expected trailing implicit digest")
	}
	if withoutDigest.HasTrailingImplicitDigest() {
		t.Error("did not expect trailing implicit digest")
	}
	if New().HasTrailingImplicitDigest() {
		t.Error("empty name must not report a trailing digest")
	}
}

func TestComponentsReturnsCopy(t *testing.T) {
	n := New(Generic("a"), Generic("b"))
	comps := n.Components()
	comps[0] = Generic("mutated")
	if n.At(0).String() != "a" {
		t.Fatal("mutating the returned slice must not affect the Name")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	digest := sha256.Sum256([]byte("x"))
	n := New(Generic("onboard"), Generic("sid1")).Append(ImplicitDigest(digest))

	decoded, err := Decode(n.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.Equal(n) {
		t.Fatalf("decoded %v != original %v", decoded, n)
	}
}
