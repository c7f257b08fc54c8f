package wire

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// rawMessage is the sole value ever marshaled/unmarshaled by the raw
// codec below: the kind byte plus payload produced by EncodeFrameBytes,
// without the length prefix, since each gRPC message is already
// delimited by the stream. This lets actorcore carry its frames over an
// HTTP/2 gRPC stream without ever generating a .proto schema for them.
type rawMessage struct{ data []byte }

type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(*rawMessage)
	if !ok {
		return nil, fmt.Errorf("wire: raw codec given non-raw value %T", v)
	}
	return m.data, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(*rawMessage)
	if !ok {
		return fmt.Errorf("wire: raw codec given non-raw value %T", v)
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return "actorcore.raw" }

func init() {
	encoding.RegisterCodec(rawCodec{})
}

const streamMethodName = "/actorcore.wire/Stream"

var streamDesc = grpc.StreamDesc{
	StreamName:    "Stream",
	ServerStreams: true,
	ClientStreams: true,
}

// GRPCTransport implements Transport over a bidirectional gRPC stream
// carrying raw frame bytes, avoiding protoc-generated service stubs
// entirely.
type GRPCTransport struct {
	mu      sync.Mutex
	server  *grpc.Server
	clients map[string]*grpc.ClientConn
}

func NewGRPCTransport() *GRPCTransport {
	return &GRPCTransport{clients: make(map[string]*grpc.ClientConn)}
}

func (t *GRPCTransport) Listen(ctx context.Context, addr string, accept func(Conn)) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("wire: grpc listen on %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "actorcore.wire",
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "Stream",
				Handler:       streamHandler(accept),
				ServerStreams: true,
				ClientStreams: true,
			},
		},
	}, struct{}{})

	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Printf("wire: grpc server on %s stopped: %v", addr, err)
		}
	}()
	return nil
}

func streamHandler(accept func(Conn)) func(srv interface{}, stream grpc.ServerStream) error {
	return func(_ interface{}, stream grpc.ServerStream) error {
		conn := &grpcConn{stream: stream, remote: "peer"}
		accept(conn)
		<-conn.done()
		return conn.err()
	}
}

func (t *GRPCTransport) Dial(ctx context.Context, addr string) (Conn, error) {
	t.mu.Lock()
	cc, ok := t.clients[addr]
	t.mu.Unlock()
	if !ok {
		var err error
		cc, err = grpc.NewClient(addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rawCodec{}.Name())))
		if err != nil {
			return nil, fmt.Errorf("wire: grpc dial %s: %w", addr, err)
		}
		t.mu.Lock()
		t.clients[addr] = cc
		t.mu.Unlock()
	}

	clientStream, err := cc.NewStream(ctx, &streamDesc, streamMethodName)
	if err != nil {
		return nil, fmt.Errorf("wire: grpc open stream to %s: %w", addr, err)
	}
	return &grpcConn{stream: clientStream, remote: addr}, nil
}

func (t *GRPCTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.server != nil {
		t.server.GracefulStop()
	}
	for _, cc := range t.clients {
		_ = cc.Close()
	}
	t.clients = nil
	return nil
}

// grpcConn adapts a grpc.Stream (client- or server-side) to Conn.
type grpcConn struct {
	stream grpc.Stream
	remote string

	mu       sync.Mutex
	finished chan struct{}
	finErr   error
	once     sync.Once
}

func (c *grpcConn) Send(f Frame) error {
	return c.stream.SendMsg(&rawMessage{data: EncodeFrameBytes(f)})
}

func (c *grpcConn) Recv() (Frame, error) {
	m := &rawMessage{}
	if err := c.stream.RecvMsg(m); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("wire: grpc recv: %w", err)
	}
	if len(m.data) < 1 {
		return Frame{}, fmt.Errorf("wire: empty grpc frame")
	}
	return Frame{Kind: m.data[0], Payload: m.data[1:]}, nil
}

func (c *grpcConn) RemoteAddr() string { return c.remote }

func (c *grpcConn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		if c.finished != nil {
			close(c.finished)
		}
		c.mu.Unlock()
	})
	return nil
}

func (c *grpcConn) done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished == nil {
		c.finished = make(chan struct{})
	}
	return c.finished
}

func (c *grpcConn) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finErr
}
