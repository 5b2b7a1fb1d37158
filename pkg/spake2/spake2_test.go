package spake2

import (
	"bytes"
	"testing"
)

func runExchange(t *testing.T, passwordA, passwordB []byte) (aKey, bKey []byte, err error) {
	salt := []byte("onboarding-salt")
	w0a := DeriveW0(passwordA, salt, 2000)
	w0b := DeriveW0(passwordB, salt, 2000)

	a, err := NewContext(RoleInitiator, w0a)
	if err != nil {
		t.Fatalf("NewContext(A): %v", err)
	}
	b, err := NewContext(RoleResponder, w0b)
	if err != nil {
		t.Fatalf("NewContext(B): %v", err)
	}

	spake2T, err := a.GenerateFirstMessage()
	if err != nil {
		t.Fatalf("A.GenerateFirstMessage: %v", err)
	}
	spake2S, err := b.GenerateFirstMessage()
	if err != nil {
		t.Fatalf("B.GenerateFirstMessage: %v", err)
	}

	if err := b.ProcessFirstMessage(spake2T); err != nil {
		t.Fatalf("B.ProcessFirstMessage: %v", err)
	}
	spake2Fkcb, err := b.GenerateSecondMessage()
	if err != nil {
		t.Fatalf("B.GenerateSecondMessage: %v", err)
	}

	if err := a.ProcessFirstMessage(spake2S); err != nil {
		t.Fatalf("A.ProcessFirstMessage: %v", err)
	}
	spake2Fkca, err := a.GenerateSecondMessage()
	if err != nil {
		t.Fatalf("A.GenerateSecondMessage: %v", err)
	}

	if err := a.ProcessSecondMessage(spake2Fkcb); err != nil {
		return nil, nil, err
	}
	if err := b.ProcessSecondMessage(spake2Fkca); err != nil {
		return nil, nil, err
	}

	return a.SharedKey(), b.SharedKey(), nil
}

func TestSamePasswordYieldsSameSharedKey(t *testing.T) {
	aKey, bKey, err := runExchange(t, []byte("hunter2"), []byte("hunter2"))
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if len(aKey) == 0 || !bytes.Equal(aKey, bKey) {
		t.Fatalf("shared keys differ: a=%x b=%x", aKey, bKey)
	}
}

func TestDifferentPasswordFailsConfirmation(t *testing.T) {
	_, _, err := runExchange(t, []byte("hunter2"), []byte("hunter3"))
	if err == nil {
		t.Fatal("expected confirmation failure with mismatched passwords")
	}
}

func TestWrongShareSizeRejected(t *testing.T) {
	w0 := DeriveW0([]byte("hunter2"), []byte("salt"), 2000)
	c, err := NewContext(RoleInitiator, w0)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if _, err := c.GenerateFirstMessage(); err != nil {
		t.Fatalf("GenerateFirstMessage: %v", err)
	}
	if err := c.ProcessFirstMessage([]byte{0x04, 0x01, 0x02}); err != ErrInvalidShareSize {
		t.Fatalf("ProcessFirstMessage err = %v, want ErrInvalidShareSize", err)
	}
}
