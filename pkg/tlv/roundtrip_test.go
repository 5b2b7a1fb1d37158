package tlv

import (
	"bytes"
	"testing"
)

func TestRoundTrip_Uint(t *testing.T) {
	cases := []struct {
		name         string
		value        uint64
		expectedType ElementType
	}{
		{"zero", 0, ElementTypeUInt8},
		{"max_uint8", 255, ElementTypeUInt8},
		{"needs_uint16", 256, ElementTypeUInt16},
		{"max_uint16", 65535, ElementTypeUInt16},
		{"needs_uint32", 65536, ElementTypeUInt32},
		{"needs_uint64", 1 << 40, ElementTypeUInt64},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			if err := w.PutUint(Anonymous(), tc.value); err != nil {
				t.Fatalf("PutUint: %v", err)
			}

			r := NewReader(bytes.NewReader(buf.Bytes()))
			if err := r.Next(); err != nil {
				t.Fatalf("Next: %v", err)
			}
			if r.Type() != tc.expectedType {
				t.Errorf("type = %v, want %v", r.Type(), tc.expectedType)
			}
			got, err := r.Uint()
			if err != nil {
				t.Fatalf("Uint: %v", err)
			}
			if got != tc.value {
				t.Errorf("value = %d, want %d", got, tc.value)
			}
		})
	}
}

func TestRoundTrip_FixedWidth(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutUintWithWidth(ContextTag(4), 7, 4); err != nil {
		t.Fatalf("PutUintWithWidth: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r.Type() != ElementTypeUInt32 {
		t.Fatalf("type = %v, want UInt32 (width must be stable)", r.Type())
	}
	if !r.Tag().IsContext() || r.Tag().TagNumber() != 4 {
		t.Fatalf("tag = %+v, want context tag 4", r.Tag())
	}
}

func TestRoundTrip_Bytes(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutBytes(ContextTag(1), payload); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	got, err := r.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("bytes = %x, want %x", got, payload)
	}
}

func TestRoundTrip_EmptyBytes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutBytes(Anonymous(), nil); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	got, err := r.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("bytes = %x, want empty", got)
	}
}

func TestRoundTrip_Structure(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.StartStructure(Anonymous()); err != nil {
		t.Fatalf("StartStructure: %v", err)
	}
	if err := w.PutUint(ContextTag(1), 9); err != nil {
		t.Fatalf("PutUint: %v", err)
	}
	if err := w.PutBytes(ContextTag(2), []byte("hi")); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if err := w.EndContainer(); err != nil {
		t.Fatalf("EndContainer: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r.Type() != ElementTypeStruct {
		t.Fatalf("type = %v, want Struct", r.Type())
	}
	if err := r.EnterContainer(); err != nil {
		t.Fatalf("EnterContainer: %v", err)
	}

	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	n, err := r.Uint()
	if err != nil || n != 9 {
		t.Fatalf("first field = %d, %v", n, err)
	}

	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	s, err := r.Bytes()
	if err != nil || string(s) != "hi" {
		t.Fatalf("second field = %q, %v", s, err)
	}

	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !r.IsEndOfContainer() {
		t.Fatalf("expected end of container")
	}
	if err := r.ExitContainer(); err != nil {
		t.Fatalf("ExitContainer: %v", err)
	}
}

func TestSkip_UnknownField(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.StartStructure(Anonymous()); err != nil {
		t.Fatalf("StartStructure: %v", err)
	}
	if err := w.PutBytes(ContextTag(99), []byte("unknown")); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if err := w.PutUint(ContextTag(1), 5); err != nil {
		t.Fatalf("PutUint: %v", err)
	}
	if err := w.EndContainer(); err != nil {
		t.Fatalf("EndContainer: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()))
	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := r.EnterContainer(); err != nil {
		t.Fatalf("EnterContainer: %v", err)
	}

	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := r.Skip(); err != nil {
		t.Fatalf("Skip: %v", err)
	}

	if err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	n, err := r.Uint()
	if err != nil || n != 5 {
		t.Fatalf("expected field after skip = 5, got %d, %v", n, err)
	}
}
