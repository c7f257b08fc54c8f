package wire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGRPCTransportRoundTrip(t *testing.T) {
	const addr = "127.0.0.1:18743"

	server := NewGRPCTransport()
	defer server.Close()

	accepted := make(chan Conn, 1)
	require.NoError(t, server.Listen(context.Background(), addr, func(c Conn) {
		accepted <- c
	}))
	time.Sleep(100 * time.Millisecond) // let the grpc.Server start accepting

	client := NewGRPCTransport()
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := client.Dial(ctx, addr)
	require.NoError(t, err)

	require.NoError(t, conn.Send(Frame{Kind: KindHello, Payload: []byte("hi")}))

	var serverConn Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted a stream")
	}

	f, err := serverConn.Recv()
	require.NoError(t, err)
	assert.Equal(t, uint8(KindHello), f.Kind)
	assert.Equal(t, "hi", string(f.Payload))
}
