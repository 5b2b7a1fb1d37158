// Simulated network support for UDPFace, grounded on the teacher's
// pkg/transport/pipe.go "Virtual Network" pattern: pion/transport/v3/test
// provides a deterministic, flake-free net.Conn pair, which this file
// adapts to net.PacketConn so UDPFace's real datagram framing and
// dispatch logic runs unmodified in tests and in the demo CLI's
// single-process mode.
package face

import (
	"net"
	"time"

	"github.com/pion/transport/v3/test"
)

// simAddr implements net.Addr for a simulated bridge endpoint.
type simAddr struct{ id int }

func (a simAddr) Network() string { return "sim" }
func (a simAddr) String() string  { return "sim:" + string('0'+byte(a.id)) }

// bridgePacketConn adapts one endpoint of a pion/transport/v3/test.Bridge
// stream connection to net.PacketConn, the interface UDPFace drives. The
// bridge only ever has one peer, so ReadFrom/WriteTo always report the
// fixed peer address.
type bridgePacketConn struct {
	conn  net.Conn
	local net.Addr
	peer  net.Addr
}

func (c *bridgePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.conn.Read(b)
	return n, c.peer, err
}

func (c *bridgePacketConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	return c.conn.Write(b)
}

func (c *bridgePacketConn) Close() error                       { return c.conn.Close() }
func (c *bridgePacketConn) LocalAddr() net.Addr                { return c.local }
func (c *bridgePacketConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *bridgePacketConn) SetReadDeadline(t time.Time) error   { return c.conn.SetReadDeadline(t) }
func (c *bridgePacketConn) SetWriteDeadline(t time.Time) error  { return c.conn.SetWriteDeadline(t) }

var _ net.PacketConn = (*bridgePacketConn)(nil)

// NewSimulatedUDPPair builds two UDPFaces wired together through an
// in-memory pion/transport/v3/test.Bridge, for exercising UDPFace's real
// framing/dispatch path without opening real sockets. The returned close
// function tears down both faces and the underlying bridge.
func NewSimulatedUDPPair() (a, b *UDPFace, closeFn func()) {
	bridge := test.NewBridge()

	connA := &bridgePacketConn{conn: bridge.GetConn0(), local: simAddr{0}, peer: simAddr{1}}
	connB := &bridgePacketConn{conn: bridge.GetConn1(), local: simAddr{1}, peer: simAddr{0}}

	a = NewUDPFace(connA, nil)
	b = NewUDPFace(connB, nil)
	a.Resolve = func(string) (net.Addr, error) { return simAddr{1}, nil }
	b.Resolve = func(string) (net.Addr, error) { return simAddr{0}, nil }

	stop := make(chan struct{})
	ticker := time.NewTicker(time.Millisecond)
	go func() {
		for {
			select {
			case <-stop:
				ticker.Stop()
				return
			case <-ticker.C:
				bridge.Tick()
			}
		}
	}()

	return a, b, func() {
		a.Close()
		b.Close()
		close(stop)
	}
}
