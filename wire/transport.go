package wire

import "context"

// Transport is the pluggable network boundary the middleman sits on top
// of: dial a peer, accept inbound peers, exchange frames.
// Neither party needs to know whether the peer is reached via gRPC, a
// raw socket, or (in tests) nothing at all.
type Transport interface {
	// Dial opens an outbound connection to addr, returning a Conn once
	// the peer accepts it.
	Dial(ctx context.Context, addr string) (Conn, error)
	// Listen starts accepting inbound connections on addr; accept is
	// called once per accepted peer, on its own goroutine.
	Listen(ctx context.Context, addr string, accept func(Conn)) error
	// Close releases listener and client resources. Whether open Conns
	// survive depends on the implementation: LoopbackTransport leaves
	// them open, GRPCTransport closes its client connections and with
	// them the streams of Conns it dialed.
	Close() error
}

// Conn is a single bidirectional frame stream to one peer.
type Conn interface {
	Send(f Frame) error
	Recv() (Frame, error)
	RemoteAddr() string
	Close() error
}
