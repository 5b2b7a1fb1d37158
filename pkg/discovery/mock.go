package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// mockServer is an MDNSServer that records whether it was shut down.
type mockServer struct {
	mu       sync.Mutex
	shutdown bool
}

func (s *mockServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
}

func (s *mockServer) wasShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// mockServerFactoryCall records the arguments of one Register call.
type mockServerFactoryCall struct {
	instance, service, domain string
	port                      int
	txt                       []string
}

// MockServerFactory is an MDNSServerFactory that avoids touching the
// network, recording each registration it's asked to make.
type MockServerFactory struct {
	mu      sync.Mutex
	calls   []mockServerFactoryCall
	servers []*mockServer
	err     error
}

// SetError makes every subsequent Register call fail with err.
func (f *MockServerFactory) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *MockServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, mockServerFactoryCall{instance, service, domain, port, txt})
	s := &mockServer{}
	f.servers = append(f.servers, s)
	return s, nil
}

// LastCall returns the arguments of the most recent Register call.
func (f *MockServerFactory) LastCall() (mockServerFactoryCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return mockServerFactoryCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

// LastServer returns the most recently registered mock server.
func (f *MockServerFactory) LastServer() *mockServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.servers) == 0 {
		return nil
	}
	return f.servers[len(f.servers)-1]
}

// MockResolver is an MDNSResolver that returns pre-registered entries
// instead of performing real mDNS browsing.
type MockResolver struct {
	mu      sync.Mutex
	entries map[string][]*zeroconf.ServiceEntry
}

// NewMockResolver constructs an empty MockResolver.
func NewMockResolver() *MockResolver {
	return &MockResolver{entries: make(map[string][]*zeroconf.ServiceEntry)}
}

// AddEntry registers an entry to be returned for browses of service.
func (m *MockResolver) AddEntry(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[service] = append(m.entries[service], entry)
}

func (m *MockResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	m.mu.Lock()
	found := make([]*zeroconf.ServiceEntry, len(m.entries[service]))
	copy(found, m.entries[service])
	m.mu.Unlock()

	for _, e := range found {
		select {
		case entries <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
