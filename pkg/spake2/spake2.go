// Package spake2 implements classic (non-augmented) SPAKE2 over P-256.
//
// Unlike the augmented SPAKE2+ the teacher's spake2p package implements
// for commissioner/commissionee PASE (where the verifier only ever holds
// a registration record w1/L derived from the password), this protocol's
// two endpoints both hold the same shared password directly — there is no
// prover/verifier asymmetry to exploit, so both sides derive the same w0
// from the password via PBKDF2 and neither needs a w1 or L.
//
// Protocol flow:
//
//	Initiator (A)                      Responder (B)
//	--------------                     --------------
//	GenerateFirstMessage() --X=T-->    ProcessFirstMessage(X)
//	                       <--Y=S--    GenerateFirstMessage()
//	ProcessFirstMessage(Y)             GenerateSecondMessage() -- Fkcb -->
//	GenerateSecondMessage() -- Fkca -->
//	                                   ProcessSecondMessage(Fkca)
//	ProcessSecondMessage(Fkcb)
//	SharedKey()                        SharedKey()
package spake2

import (
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"math/big"

	"github.com/ndnob/onboard/pkg/crypto"
)

const (
	GroupSizeBytes = 32
	PointSizeBytes = 65
)

// M and N are the well-known SPAKE2 generator points for P-256, taken
// from RFC 9383 (also used, for the augmented variant, by the teacher's
// spake2p package). M blinds the initiator's share, N the responder's.
var (
	pointMBytes = []byte{
		0x04, 0x88, 0x6e, 0x2f, 0x97, 0xac, 0xe4, 0x6e, 0x55, 0xba, 0x9d, 0xd7, 0x24, 0x25, 0x79, 0xf2, 0x99,
		0x3b, 0x64, 0xe1, 0x6e, 0xf3, 0xdc, 0xab, 0x95, 0xaf, 0xd4, 0x97, 0x33, 0x3d, 0x8f, 0xa1, 0x2f, 0x5f,
		0xf3, 0x55, 0x16, 0x3e, 0x43, 0xce, 0x22, 0x4e, 0x0b, 0x0e, 0x65, 0xff, 0x02, 0xac, 0x8e, 0x5c, 0x7b,
		0xe0, 0x94, 0x19, 0xc7, 0x85, 0xe0, 0xca, 0x54, 0x7d, 0x55, 0xa1, 0x2e, 0x2d, 0x20,
	}
	pointNBytes = []byte{
		0x04, 0xd8, 0xbb, 0xd6, 0xc6, 0x39, 0xc6, 0x29, 0x37, 0xb0, 0x4d, 0x99, 0x7f, 0x38, 0xc3, 0x77, 0x07,
		0x19, 0xc6, 0x29, 0xd7, 0x01, 0x4d, 0x49, 0xa2, 0x4b, 0x4f, 0x98, 0xba, 0xa1, 0x29, 0x2b, 0x49, 0x07,
		0xd6, 0x0a, 0xa6, 0xbf, 0xad, 0xe4, 0x50, 0x08, 0xa6, 0x36, 0x33, 0x7f, 0x51, 0x68, 0xc6, 0x4d, 0x9b,
		0xd3, 0x60, 0x34, 0x80, 0x8c, 0xd5, 0x64, 0x49, 0x0b, 0x1e, 0x65, 0x6e, 0xdb, 0xe7,
	}
)

var p256 = elliptic.P256()

// Role identifies which party a Context plays.
type Role int

const (
	RoleInitiator Role = iota // "A": the Authenticator, sends spake2T first.
	RoleResponder             // "B": the Device, sends spake2S + spake2Fkcb.
)

type state int

const (
	stateStart state = iota
	stateFirstSent
	stateFirstProcessed
	stateSecondSent
	stateDone
	stateErr
)

var (
	ErrInvalidState       = errors.New("spake2: operation invalid in current state")
	ErrInvalidShareSize   = errors.New("spake2: peer share must be 65 bytes")
	ErrPointNotOnCurve    = errors.New("spake2: point is not on P-256")
	ErrConfirmationFailed = errors.New("spake2: key confirmation failed")
)

type point struct{ x, y *big.Int }

// Context drives one side of a single SPAKE2 exchange. It holds no
// password; the caller derives w0 once (via DeriveW0) and passes it to
// NewContext, mirroring the source's begin(password) call.
type Context struct {
	role  Role
	w0    *big.Int
	state state

	myRandom  *big.Int
	myShare   []byte
	peerShare []byte

	kcMine, kcPeer []byte // this side's and the peer's confirmation keys
	sharedKey      []byte
}

// DeriveW0 derives the shared SPAKE2 password scalar from the protocol
// password via PBKDF2-HMAC-SHA256, reduced mod the P-256 group order.
// Both endpoints must call this with the same password and salt.
func DeriveW0(password, salt []byte, iterations int) []byte {
	w0s := crypto.PBKDF2SHA256(password, salt, iterations, 40)
	w0 := new(big.Int).SetBytes(w0s)
	w0.Mod(w0, p256.Params().N)
	out := make([]byte, GroupSizeBytes)
	w0.FillBytes(out)
	return out
}

// NewContext begins a SPAKE2 exchange in the given role with the derived
// password scalar w0 (32 bytes).
func NewContext(role Role, w0 []byte) (*Context, error) {
	if len(w0) != GroupSizeBytes {
		return nil, errors.New("spake2: w0 must be 32 bytes")
	}
	return &Context{
		role:  role,
		w0:    new(big.Int).SetBytes(w0),
		state: stateStart,
	}, nil
}

// GenerateFirstMessage produces this side's public share: spake2T for the
// initiator, spake2S for the responder.
func (c *Context) GenerateFirstMessage() ([]byte, error) {
	if c.state != stateStart {
		return nil, ErrInvalidState
	}
	random, err := generateRandomScalar(rand.Reader)
	if err != nil {
		return nil, err
	}
	c.myRandom = random

	gen := pointN
	if c.role == RoleInitiator {
		gen = pointM
	}
	share := computeShare(random, c.w0, gen())
	c.myShare = encodePoint(share)
	c.state = stateFirstSent
	return append([]byte(nil), c.myShare...), nil
}

// ProcessFirstMessage consumes the peer's share and derives the raw
// Diffie-Hellman value and transcript-based confirmation keys. It does
// not yet verify a confirmation MAC.
func (c *Context) ProcessFirstMessage(peerShare []byte) error {
	if c.state != stateFirstSent {
		return ErrInvalidState
	}
	if len(peerShare) != PointSizeBytes {
		return ErrInvalidShareSize
	}
	peer, err := decodePoint(peerShare)
	if err != nil {
		return err
	}
	c.peerShare = append([]byte(nil), peerShare...)

	blind := pointM
	if c.role == RoleInitiator {
		blind = pointN
	}
	w0Blind := scalarMult(blind(), c.w0)
	diff := pointSub(peer, w0Blind)
	Z := scalarMult(diff, c.myRandom)

	if err := c.deriveKeys(encodePoint(Z)); err != nil {
		return err
	}
	c.state = stateFirstProcessed
	return nil
}

// GenerateSecondMessage returns this side's key-confirmation MAC: Fkca
// for the initiator, Fkcb for the responder.
func (c *Context) GenerateSecondMessage() ([]byte, error) {
	if c.state != stateFirstProcessed {
		return nil, ErrInvalidState
	}
	mac := hmacSHA256(c.kcMine, c.peerShare)
	c.state = stateSecondSent
	return mac, nil
}

// ProcessSecondMessage verifies the peer's key-confirmation MAC.
func (c *Context) ProcessSecondMessage(peerConfirm []byte) error {
	if c.state != stateSecondSent && c.state != stateFirstProcessed {
		return ErrInvalidState
	}
	expected := hmacSHA256(c.kcPeer, c.myShare)
	if !hmac.Equal(expected, peerConfirm) {
		c.state = stateErr
		return ErrConfirmationFailed
	}
	c.state = stateDone
	return nil
}

// SharedKey returns the session key established by the exchange. It is
// only meaningful once ProcessSecondMessage has succeeded.
func (c *Context) SharedKey() []byte {
	return append([]byte(nil), c.sharedKey...)
}

// Done reports whether the exchange completed successfully.
func (c *Context) Done() bool { return c.state == stateDone }

func (c *Context) deriveKeys(z []byte) error {
	var x, y []byte
	if c.role == RoleInitiator {
		x, y = c.myShare, c.peerShare
	} else {
		x, y = c.peerShare, c.myShare
	}

	w0Bytes := make([]byte, GroupSizeBytes)
	c.w0.FillBytes(w0Bytes)

	var tt []byte
	tt = appendWithLen64(tt, pointMBytes)
	tt = appendWithLen64(tt, pointNBytes)
	tt = appendWithLen64(tt, x)
	tt = appendWithLen64(tt, y)
	tt = appendWithLen64(tt, z)
	tt = appendWithLen64(tt, w0Bytes)

	kae := sha256.Sum256(tt)
	ka := kae[:16]
	ke := append([]byte(nil), kae[16:]...)

	kcab, err := crypto.HKDFSHA256(ka, nil, []byte("ConfirmationKeys"), 32)
	if err != nil {
		return err
	}
	kcA, kcB := kcab[:16], kcab[16:]

	if c.role == RoleInitiator {
		c.kcMine, c.kcPeer = kcA, kcB
	} else {
		c.kcMine, c.kcPeer = kcB, kcA
	}
	c.sharedKey = ke
	return nil
}

func appendWithLen64(dst, data []byte) []byte {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(data)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, data...)
	return dst
}

func pointM() *point { return mustDecodePoint(pointMBytes) }
func pointN() *point { return mustDecodePoint(pointNBytes) }

func mustDecodePoint(data []byte) *point {
	p, err := decodePoint(data)
	if err != nil {
		panic(err)
	}
	return p
}

func decodePoint(data []byte) (*point, error) {
	if len(data) != PointSizeBytes || data[0] != 0x04 {
		return nil, ErrPointNotOnCurve
	}
	x := new(big.Int).SetBytes(data[1:33])
	y := new(big.Int).SetBytes(data[33:65])
	if !p256.IsOnCurve(x, y) {
		return nil, ErrPointNotOnCurve
	}
	return &point{x: x, y: y}, nil
}

func encodePoint(p *point) []byte {
	result := make([]byte, PointSizeBytes)
	result[0] = 0x04
	p.x.FillBytes(result[1:33])
	p.y.FillBytes(result[33:65])
	return result
}

func scalarMult(p *point, k *big.Int) *point {
	x, y := p256.ScalarMult(p.x, p.y, k.Bytes())
	return &point{x: x, y: y}
}

func pointAdd(p1, p2 *point) *point {
	x, y := p256.Add(p1.x, p1.y, p2.x, p2.y)
	return &point{x: x, y: y}
}

func pointSub(p1, p2 *point) *point {
	negY := new(big.Int).Neg(p2.y)
	negY.Mod(negY, p256.Params().P)
	x, y := p256.Add(p1.x, p1.y, p2.x, negY)
	return &point{x: x, y: y}
}

func computeShare(random, w0 *big.Int, generator *point) *point {
	rPx, rPy := p256.ScalarBaseMult(random.Bytes())
	rP := &point{x: rPx, y: rPy}
	w0G := scalarMult(generator, w0)
	return pointAdd(rP, w0G)
}

func generateRandomScalar(r io.Reader) (*big.Int, error) {
	n := p256.Params().N
	for {
		b := make([]byte, GroupSizeBytes)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		k := new(big.Int).SetBytes(b)
		if k.Sign() > 0 && k.Cmp(n) < 0 {
			return k, nil
		}
	}
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
