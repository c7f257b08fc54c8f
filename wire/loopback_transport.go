package wire

import (
	"context"
	"fmt"
	"sync"
)

// LoopbackTransport is an in-process Transport: Dial(addr) connects
// directly to whatever listener previously called Listen(addr) on the
// same LoopbackTransport instance, with no socket or serialization
// round-trip. Used by tests and by the simulated-remote-namespace
// scenario that exercises proxy behavior without a real
// network.
type LoopbackTransport struct {
	mu        sync.Mutex
	listeners map[string]func(Conn)
	closed    bool
}

func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{listeners: make(map[string]func(Conn))}
}

func (t *LoopbackTransport) Listen(ctx context.Context, addr string, accept func(Conn)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("wire: loopback transport closed")
	}
	t.listeners[addr] = accept
	return nil
}

func (t *LoopbackTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	t.mu.Lock()
	accept, ok := t.listeners[addr]
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("wire: loopback transport closed")
	}
	if !ok {
		return nil, fmt.Errorf("wire: no listener on %q", addr)
	}

	a, b := newLoopbackPipe(addr), newLoopbackPipe("dialer")
	a.peer, b.peer = b, a
	go accept(b)
	return a, nil
}

func (t *LoopbackTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.listeners = nil
	t.mu.Unlock()
	return nil
}

type loopbackConn struct {
	remote string
	peer   *loopbackConn

	mu     sync.Mutex
	inbox  chan Frame
	closed chan struct{}
	once   sync.Once
}

func newLoopbackPipe(remote string) *loopbackConn {
	return &loopbackConn{
		remote: remote,
		inbox:  make(chan Frame, 64),
		closed: make(chan struct{}),
	}
}

func (c *loopbackConn) Send(f Frame) error {
	select {
	case <-c.closed:
		return fmt.Errorf("wire: connection closed")
	default:
	}
	select {
	case c.peer.inbox <- f:
		return nil
	case <-c.peer.closed:
		return fmt.Errorf("wire: peer closed")
	}
}

func (c *loopbackConn) Recv() (Frame, error) {
	select {
	case f := <-c.inbox:
		return f, nil
	case <-c.closed:
		return Frame{}, fmt.Errorf("wire: connection closed")
	}
}

func (c *loopbackConn) RemoteAddr() string { return c.remote }

func (c *loopbackConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
