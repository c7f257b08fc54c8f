package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Serializer writes the primitive wire types (bool, signed
// and unsigned integers, float64, string, raw bytes) into a wire-format
// byte stream. Deserializer reads them back in the same order they were
// written; neither party needs a schema beyond "what did I write, in
// what order" — the same contract placed on user-defined
// serialize/deserialize overloads.
type Serializer interface {
	WriteBool(v bool)
	WriteInt64(v int64)
	WriteUint64(v uint64)
	WriteFloat64(v float64)
	WriteString(v string)
	WriteBytes(v []byte)
	Bytes() []byte
}

type Deserializer interface {
	ReadBool() (bool, error)
	ReadInt64() (int64, error)
	ReadUint64() (uint64, error)
	ReadFloat64() (float64, error)
	ReadString() (string, error)
	ReadBytes() ([]byte, error)
}

// WireCodec implements Serializer and Deserializer on top of
// protowire's varint and length-delimited primitives — the same
// low-level encoding protoc-generated code uses, without requiring a
// generated .pb.go schema for actorcore's own envelope types.
type WireCodec struct {
	buf []byte
	pos int
}

// NewEncoder returns a WireCodec ready to have values written into it.
func NewEncoder() *WireCodec {
	return &WireCodec{}
}

// NewDecoder wraps buf for sequential reads.
func NewDecoder(buf []byte) *WireCodec {
	return &WireCodec{buf: buf}
}

func (c *WireCodec) WriteBool(v bool) {
	var u uint64
	if v {
		u = 1
	}
	c.buf = protowire.AppendVarint(c.buf, u)
}

func (c *WireCodec) WriteInt64(v int64) {
	c.buf = protowire.AppendVarint(c.buf, protowire.EncodeZigZag(v))
}

func (c *WireCodec) WriteUint64(v uint64) {
	c.buf = protowire.AppendVarint(c.buf, v)
}

func (c *WireCodec) WriteFloat64(v float64) {
	c.buf = protowire.AppendFixed64(c.buf, protowire.EncodeFixed64(v))
}

func (c *WireCodec) WriteString(v string) {
	c.buf = protowire.AppendBytes(c.buf, []byte(v))
}

func (c *WireCodec) WriteBytes(v []byte) {
	c.buf = protowire.AppendBytes(c.buf, v)
}

func (c *WireCodec) Bytes() []byte {
	return c.buf
}

func (c *WireCodec) ReadBool() (bool, error) {
	v, err := c.readVarint()
	return v != 0, err
}

func (c *WireCodec) ReadInt64() (int64, error) {
	v, err := c.readVarint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

func (c *WireCodec) ReadUint64() (uint64, error) {
	return c.readVarint()
}

func (c *WireCodec) ReadFloat64() (float64, error) {
	v, n := protowire.ConsumeFixed64(c.buf[c.pos:])
	if n < 0 {
		return 0, fmt.Errorf("wire: truncated float64 at offset %d", c.pos)
	}
	c.pos += n
	return protowire.DecodeFixed64(v), nil
}

func (c *WireCodec) ReadString() (string, error) {
	b, err := c.readBytes()
	return string(b), err
}

func (c *WireCodec) ReadBytes() ([]byte, error) {
	return c.readBytes()
}

func (c *WireCodec) readVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(c.buf[c.pos:])
	if n < 0 {
		return 0, fmt.Errorf("wire: truncated varint at offset %d", c.pos)
	}
	c.pos += n
	return v, nil
}

func (c *WireCodec) readBytes() ([]byte, error) {
	b, n := protowire.ConsumeBytes(c.buf[c.pos:])
	if n < 0 {
		return nil, fmt.Errorf("wire: truncated length-delimited field at offset %d", c.pos)
	}
	c.pos += n
	return b, nil
}
