// Package wire implements the length-prefixed framing, serialization, and
// transport abstractions actorcore's middleman uses to move mailbox
// elements between processes.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Frame is a single length-prefixed unit on the wire: a header
// identifying the kind of payload, followed by the payload bytes
// themselves. Framing is adapted from a length-prefixed RPCServer/RPCClient
// request/response frames (infra/network/rpc.go), generalized from
// "method name + payload" to a small fixed header plus opaque payload
// so it can carry any of the message kinds the middleman exchanges
// (hello, dispatch, spawn request and reply).
type Frame struct {
	Kind    uint8
	Payload []byte
}

const (
	// KindDispatch carries a serialized mailbox element destined for a
	// local actor.
	KindDispatch uint8 = iota
	// KindMonitor asks the peer to watch a remote actor on our behalf.
	// The middleman neither sends nor handles it; its readLoop drops it.
	KindMonitor
	// KindDown reports a monitored actor's termination back to the peer.
	// The middleman neither sends nor handles it; its readLoop drops it.
	KindDown
	// KindSpawnRequest asks the peer to spawn a named behavior.
	KindSpawnRequest
	// KindSpawnReply answers a KindSpawnRequest with a resulting actor_id.
	KindSpawnReply
	// KindHello is the first frame exchanged on every connection: its
	// payload is the sender's EncodeNodeID bytes, letting each side learn
	// the other's real node_id instead of trusting the dial address.
	KindHello
)

// EncodeFrame writes TotalLength(int32) | Kind(uint8) | Payload to w,
// mirroring a "total frame length first" convention.
func EncodeFrame(w io.Writer, f Frame) error {
	var buf bytes.Buffer
	buf.WriteByte(f.Kind)
	buf.Write(f.Payload)

	total := int32(buf.Len())
	if err := binary.Write(w, binary.BigEndian, total); err != nil {
		return fmt.Errorf("wire: write frame length: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("wire: write frame body: %w", err)
	}
	return nil
}

// DecodeFrame reads one frame from r, blocking until a full frame has
// arrived or the stream ends.
func DecodeFrame(r io.Reader) (Frame, error) {
	var total int32
	if err := binary.Read(r, binary.BigEndian, &total); err != nil {
		return Frame{}, err
	}
	if total < 1 {
		return Frame{}, fmt.Errorf("wire: invalid frame length %d", total)
	}
	body := make([]byte, total)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("wire: read frame body: %w", err)
	}
	return Frame{Kind: body[0], Payload: body[1:]}, nil
}

// EncodeFrameBytes is EncodeFrame against an in-memory buffer, used by
// transports that hand whole frames to a stream API (e.g. gRPC) instead
// of a raw io.Writer.
func EncodeFrameBytes(f Frame) []byte {
	var buf bytes.Buffer
	_ = EncodeFrame(&buf, f)
	return buf.Bytes()[4:] // drop the length prefix; the stream transport has its own framing
}
