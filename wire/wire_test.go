package wire

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Frame{Kind: KindDispatch, Payload: []byte("hello")}
	require.NoError(t, EncodeFrame(&buf, want))

	got, err := DecodeFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWireCodecRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteBool(true)
	enc.WriteInt64(-42)
	enc.WriteUint64(42)
	enc.WriteFloat64(3.5)
	enc.WriteString("actorcore")
	enc.WriteBytes([]byte{1, 2, 3})

	dec := NewDecoder(enc.Bytes())
	b, err := dec.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	i, err := dec.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), i)

	u, err := dec.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), u)

	f, err := dec.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 3.5, f)

	s, err := dec.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "actorcore", s)

	data, err := dec.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestLoopbackTransportDeliversFrames(t *testing.T) {
	transport := NewLoopbackTransport()
	defer transport.Close()

	accepted := make(chan Conn, 1)
	require.NoError(t, transport.Listen(context.Background(), "svc", func(c Conn) {
		accepted <- c
	}))

	conn, err := transport.Dial(context.Background(), "svc")
	require.NoError(t, err)

	var serverConn Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("listener never accepted")
	}

	require.NoError(t, conn.Send(Frame{Kind: KindHello, Payload: []byte("hi")}))
	f, err := serverConn.Recv()
	require.NoError(t, err)
	assert.Equal(t, uint8(KindHello), f.Kind)
	assert.Equal(t, "hi", string(f.Payload))
}

func TestLoopbackTransportDialWithoutListenerFails(t *testing.T) {
	transport := NewLoopbackTransport()
	defer transport.Close()

	_, err := transport.Dial(context.Background(), "nowhere")
	assert.Error(t, err)
}
