// Package face defines the transport abstraction the state machines talk
// to — RegisterHandler/Send/Reply/MatchPitToken/CurrentPacketInfo — and an
// in-memory, pipe-based implementation for deterministic tests and the
// demo CLI. Grounded on the teacher's commissioning/pase.go pattern of an
// injected transport plus a LeveledLogger, and on
// original_source/src/ndnob/pake's PacketHandler usage (reply/send against
// "the current packet info", m_pending.matchPitToken()).
package face

import (
	"errors"

	"github.com/pion/logging"

	"github.com/ndnob/onboard/pkg/packet"
)

var ErrNoPeer = errors.New("face: no peer connected")

// PacketInfo describes the packet currently being processed: which
// endpoint it arrived from and its correlator.
type PacketInfo struct {
	Endpoint string
	PitToken uint64
}

// Face is the transport surface the Authenticator and Device state
// machines run against.
type Face interface {
	// RegisterHandler installs the callbacks invoked for inbound Interest
	// and Data packets. Either may be nil.
	RegisterHandler(onInterest func(packet.Interest) bool, onData func(packet.Data) bool)

	// Send dispatches an Interest towards endpoint, returning the PIT
	// token minted for matching its eventual response. Delivery is not
	// guaranteed to have happened by the time Send returns.
	Send(interest packet.Interest, endpoint string) (pitToken uint64, err error)

	// Reply sends Data back carrying the given PIT token, binding it to
	// whichever Interest the caller is answering — which is not always
	// the packet currently being processed: a handler answering a
	// previously-saved Interest from within a later Data callback must
	// pass that Interest's own token, not CurrentPacketInfo's.
	Reply(data packet.Data, token uint64) error

	// MatchPitToken reports whether token matches the packet currently
	// being processed.
	MatchPitToken(token uint64) bool

	// CurrentPacketInfo returns the info for the packet currently being
	// processed by a handler callback.
	CurrentPacketInfo() PacketInfo
}

type queuedInterest struct {
	interest packet.Interest
	token    uint64
}

type queuedData struct {
	data  packet.Data
	token uint64
}

// MemoryFace is a point-to-point, in-memory Face used for tests and the
// demo CLI. Two MemoryFaces are linked with NewMemoryLink. Send and Reply
// only enqueue onto the peer's inbox; Pump delivers queued packets by
// invoking the peer's registered handlers. Separating enqueue from
// delivery keeps a Send/pending-tracker pair race-free: the caller
// records its pending request before the peer ever gets a chance to
// process and reply to it.
type MemoryFace struct {
	name string
	peer *MemoryFace

	onInterest func(packet.Interest) bool
	onData     func(packet.Data) bool

	nextToken uint64
	current   PacketInfo

	inboxInterests []queuedInterest
	inboxData      []queuedData

	logger logging.LeveledLogger

	// DropInterest and DropData, if set, let tests simulate packet loss:
	// returning true discards the packet instead of queuing it.
	DropInterest func(packet.Interest) bool
	DropData     func(packet.Data) bool

	// TamperData, if set, rewrites an outbound Data packet before
	// queuing, letting tests exercise tamper-detection invariants.
	TamperData func(packet.Data) packet.Data
}

// NewMemoryLink creates two MemoryFaces wired to each other. loggerFactory
// may be nil, in which case logging is disabled, mirroring the teacher's
// LoggerFactory convention.
func NewMemoryLink(nameA, nameB string, loggerFactory logging.LoggerFactory) (a, b *MemoryFace) {
	a = &MemoryFace{name: nameA}
	b = &MemoryFace{name: nameB}
	if loggerFactory != nil {
		a.logger = loggerFactory.NewLogger("face." + nameA)
		b.logger = loggerFactory.NewLogger("face." + nameB)
	}
	a.peer, b.peer = b, a
	return a, b
}

func (f *MemoryFace) RegisterHandler(onInterest func(packet.Interest) bool, onData func(packet.Data) bool) {
	f.onInterest = onInterest
	f.onData = onData
}

func (f *MemoryFace) Send(interest packet.Interest, endpoint string) (uint64, error) {
	f.nextToken++
	token := f.nextToken
	if f.peer == nil {
		return token, ErrNoPeer
	}
	if f.DropInterest != nil && f.DropInterest(interest) {
		if f.logger != nil {
			f.logger.Debugf("%s: dropped outbound interest %s", f.name, interest.Name.String())
		}
		return token, nil
	}
	f.peer.inboxInterests = append(f.peer.inboxInterests, queuedInterest{interest: interest, token: token})
	return token, nil
}

func (f *MemoryFace) Reply(data packet.Data, token uint64) error {
	if f.peer == nil {
		return ErrNoPeer
	}
	out := data
	if f.TamperData != nil {
		out = f.TamperData(out)
	}
	if f.DropData != nil && f.DropData(out) {
		if f.logger != nil {
			f.logger.Debugf("%s: dropped outbound data %s", f.name, out.Name.String())
		}
		return nil
	}
	f.peer.inboxData = append(f.peer.inboxData, queuedData{data: out, token: token})
	return nil
}

func (f *MemoryFace) MatchPitToken(token uint64) bool {
	return f.current.PitToken == token
}

func (f *MemoryFace) CurrentPacketInfo() PacketInfo {
	return f.current
}

// Pump delivers every packet currently queued in this face's inbox,
// invoking the registered handlers synchronously, and returns the number
// of packets delivered. The host harness (or a test loop) calls Pump on
// both ends of a link repeatedly until it returns 0 on both, draining a
// full handshake deterministically.
func (f *MemoryFace) Pump() int {
	delivered := 0

	interests := f.inboxInterests
	f.inboxInterests = nil
	for _, qi := range interests {
		f.current = PacketInfo{Endpoint: f.peer.name, PitToken: qi.token}
		if f.onInterest != nil {
			f.onInterest(qi.interest)
		}
		delivered++
	}

	datas := f.inboxData
	f.inboxData = nil
	for _, qd := range datas {
		f.current = PacketInfo{Endpoint: f.peer.name, PitToken: qd.token}
		if f.onData != nil {
			f.onData(qd.data)
		}
		delivered++
	}

	return delivered
}

// PumpUntilIdle repeatedly pumps both ends of a link until neither has
// anything left to deliver, bounding iterations so a protocol bug that
// never converges fails the test instead of hanging it.
func PumpUntilIdle(a, b *MemoryFace, maxRounds int) {
	for i := 0; i < maxRounds; i++ {
		if a.Pump()+b.Pump() == 0 {
			return
		}
	}
}
