package pake

import "errors"

// Sentinel errors, one per package, following the teacher's per-package
// errors.go convention. The state machines never forward these to the
// peer; a malformed or out-of-sequence packet is simply dropped and the
// error is only available to the caller/log for diagnostics.
var (
	ErrMalformedPacket  = errors.New("pake: malformed packet")
	ErrCryptoFailure    = errors.New("pake: cryptographic operation failed")
	ErrPolicyViolation  = errors.New("pake: policy violation")
	ErrTimeout          = errors.New("pake: request timed out")
	ErrInternalFailure  = errors.New("pake: internal failure")
	ErrInvalidState     = errors.New("pake: operation invalid in current state")
	ErrNotDone          = errors.New("pake: exchange has not reached a terminal state")
)
