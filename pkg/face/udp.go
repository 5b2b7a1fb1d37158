// UDPFace implements Face over any net.PacketConn: a real net.UDPConn in
// production, or an in-memory bridge connection in tests (see simnet.go).
// Each Interest or Data is framed as a single datagram: a one-byte
// discriminator followed by the packet's TLV encoding, following the same
// Writer/Anonymous-structure idiom pkg/credentials uses for certificates.
package face

import (
	"bytes"
	"errors"
	"net"
	"sync"

	"github.com/pion/logging"

	"github.com/ndnob/onboard/pkg/ndnname"
	"github.com/ndnob/onboard/pkg/packet"
	"github.com/ndnob/onboard/pkg/tlv"
)

var (
	ErrUnknownFrame = errors.New("face: unrecognized datagram frame")
	ErrUnknownToken = errors.New("face: no remote address recorded for token")
)

const (
	frameInterest byte = 0x01
	frameData     byte = 0x02
)

const (
	tagName          = 1
	tagAppParameters = 2
	tagContent       = 3
	tagSignerType    = 4
	tagSignature     = 5
)

func encodeInterestFrame(i packet.Interest) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(frameInterest)
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagName), i.Name.Encode()); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagAppParameters), i.AppParameters); err != nil {
		return nil, err
	}
	if err := w.EndContainer(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeInterestFrame(body []byte) (packet.Interest, error) {
	r := tlv.NewReader(bytes.NewReader(body))
	var name ndnname.Name
	var params []byte
	if err := r.Next(); err != nil {
		return packet.Interest{}, err
	}
	if err := r.EnterContainer(); err != nil {
		return packet.Interest{}, err
	}
	for {
		if err := r.Next(); err != nil {
			return packet.Interest{}, err
		}
		if r.IsEndOfContainer() {
			break
		}
		switch r.Tag().TagNumber() {
		case tagName:
			v, err := r.Bytes()
			if err != nil {
				return packet.Interest{}, err
			}
			n, err := ndnname.Decode(v)
			if err != nil {
				return packet.Interest{}, err
			}
			name = n
		case tagAppParameters:
			v, err := r.Bytes()
			if err != nil {
				return packet.Interest{}, err
			}
			params = v
		}
	}
	return packet.Interest{Name: name, AppParameters: params}, nil
}

func encodeDataFrame(d packet.Data) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(frameData)
	w := tlv.NewWriter(&buf)
	if err := w.StartStructure(tlv.Anonymous()); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagName), d.Name.Encode()); err != nil {
		return nil, err
	}
	if err := w.PutBytes(tlv.ContextTag(tagContent), d.Content); err != nil {
		return nil, err
	}
	if err := w.PutUintWithWidth(tlv.ContextTag(tagSignerType), uint64(d.SignerType), 1); err != nil {
		return nil, err
	}
	if len(d.Signature) > 0 {
		if err := w.PutBytes(tlv.ContextTag(tagSignature), d.Signature); err != nil {
			return nil, err
		}
	}
	if err := w.EndContainer(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeDataFrame(body []byte) (packet.Data, error) {
	r := tlv.NewReader(bytes.NewReader(body))
	d := packet.Data{}
	var name ndnname.Name
	if err := r.Next(); err != nil {
		return packet.Data{}, err
	}
	if err := r.EnterContainer(); err != nil {
		return packet.Data{}, err
	}
	for {
		if err := r.Next(); err != nil {
			return packet.Data{}, err
		}
		if r.IsEndOfContainer() {
			break
		}
		switch r.Tag().TagNumber() {
		case tagName:
			v, err := r.Bytes()
			if err != nil {
				return packet.Data{}, err
			}
			n, err := ndnname.Decode(v)
			if err != nil {
				return packet.Data{}, err
			}
			name = n
		case tagContent:
			v, err := r.Bytes()
			if err != nil {
				return packet.Data{}, err
			}
			d.Content = v
		case tagSignerType:
			v, err := r.Uint()
			if err != nil {
				return packet.Data{}, err
			}
			d.SignerType = int(v)
		case tagSignature:
			v, err := r.Bytes()
			if err != nil {
				return packet.Data{}, err
			}
			d.Signature = v
		}
	}
	d.Name = name
	return d, nil
}

// UDPFace is a real packet-oriented Face. Endpoints are addressed by
// string (e.g. "10.0.0.5:6363"), resolved with net.ResolveUDPAddr. Unlike
// MemoryFace, there is no synchronous caller-to-peer handoff: inbound
// datagrams are read and dispatched from a background goroutine started
// by Run, so RegisterHandler must be called before Run.
type UDPFace struct {
	conn net.PacketConn
	log  logging.LeveledLogger

	onInterest func(packet.Interest) bool
	onData     func(packet.Data) bool

	mu          sync.Mutex
	nextToken   uint64
	remote      map[uint64]net.Addr
	currentTok  uint64
	currentInfo PacketInfo

	closeOnce sync.Once
	closed    chan struct{}

	// Resolve turns a Send endpoint string into a net.Addr. It defaults
	// to net.ResolveUDPAddr("udp", endpoint); tests and the single-process
	// demo mode override it when the underlying conn is not a real UDP
	// socket (see NewSimulatedUDPPair).
	Resolve func(endpoint string) (net.Addr, error)
}

// NewUDPFace wraps conn as a Face. conn is typically a *net.UDPConn in
// production, or a simulated packet connection from NewSimulatedUDPPair
// in tests.
func NewUDPFace(conn net.PacketConn, loggerFactory logging.LoggerFactory) *UDPFace {
	f := &UDPFace{
		conn:   conn,
		remote: make(map[uint64]net.Addr),
		closed: make(chan struct{}),
	}
	if loggerFactory != nil {
		f.log = loggerFactory.NewLogger("face.udp")
	}
	return f
}

func (f *UDPFace) RegisterHandler(onInterest func(packet.Interest) bool, onData func(packet.Data) bool) {
	f.onInterest = onInterest
	f.onData = onData
}

// Run reads datagrams until the connection is closed, dispatching each to
// the registered handler. It blocks and is meant to run in its own
// goroutine, mirroring the teacher's Manager read loop over its
// transport.Factory connections.
func (f *UDPFace) Run() error {
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := f.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-f.closed:
				return nil
			default:
				return err
			}
		}
		if n == 0 {
			continue
		}
		f.dispatch(buf[:n], addr)
	}
}

func (f *UDPFace) dispatch(frame []byte, addr net.Addr) {
	if len(frame) == 0 {
		return
	}
	kind, body := frame[0], frame[1:]

	f.mu.Lock()
	f.nextToken++
	token := f.nextToken
	f.remote[token] = addr
	f.currentTok = token
	f.currentInfo = PacketInfo{Endpoint: addr.String(), PitToken: token}
	f.mu.Unlock()

	switch kind {
	case frameInterest:
		interest, err := decodeInterestFrame(body)
		if err != nil {
			if f.log != nil {
				f.log.Debugf("face.udp: dropped malformed interest from %s: %v", addr, err)
			}
			return
		}
		if f.onInterest != nil {
			f.onInterest(interest)
		}
	case frameData:
		data, err := decodeDataFrame(body)
		if err != nil {
			if f.log != nil {
				f.log.Debugf("face.udp: dropped malformed data from %s: %v", addr, err)
			}
			return
		}
		if f.onData != nil {
			f.onData(data)
		}
	default:
		if f.log != nil {
			f.log.Debugf("face.udp: unknown frame kind 0x%02x from %s", kind, addr)
		}
	}
}

func (f *UDPFace) Send(interest packet.Interest, endpoint string) (uint64, error) {
	resolve := f.Resolve
	if resolve == nil {
		resolve = func(e string) (net.Addr, error) { return net.ResolveUDPAddr("udp", e) }
	}
	addr, err := resolve(endpoint)
	if err != nil {
		return 0, err
	}
	frame, err := encodeInterestFrame(interest)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.nextToken++
	token := f.nextToken
	f.remote[token] = addr
	f.mu.Unlock()

	if _, err := f.conn.WriteTo(frame, addr); err != nil {
		return token, err
	}
	return token, nil
}

func (f *UDPFace) Reply(data packet.Data, token uint64) error {
	f.mu.Lock()
	addr, ok := f.remote[token]
	f.mu.Unlock()
	if !ok {
		return ErrUnknownToken
	}
	frame, err := encodeDataFrame(data)
	if err != nil {
		return err
	}
	_, err = f.conn.WriteTo(frame, addr)
	return err
}

func (f *UDPFace) MatchPitToken(token uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentTok == token
}

func (f *UDPFace) CurrentPacketInfo() PacketInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentInfo
}

// Close stops Run's read loop and closes the underlying connection.
func (f *UDPFace) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return f.conn.Close()
}

var _ Face = (*UDPFace)(nil)
