package classfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// cursor wraps an io.Reader with the big-endian primitive reads the class
// file format needs. It exists so every reading call site shares one
// Truncated error instead of each parse* function reinventing binary.Read
// error wrapping, as the teacher's parser.go did per-field.
type cursor struct {
	r io.Reader
}

func newCursor(r io.Reader) *cursor { return &cursor{r: r} }

func (c *cursor) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, wrapErr(ErrTruncated, err, "reading %d bytes", n)
	}
	return buf, nil
}

func (c *cursor) u8() (uint8, error) {
	b, err := c.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) i8() (int8, error) {
	b, err := c.u8()
	return int8(b), err
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) i16() (int16, error) {
	v, err := c.u16()
	return int16(v), err
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *cursor) i64() (int64, error) {
	v, err := c.u64()
	return int64(v), err
}

func (c *cursor) f32() (float32, error) {
	v, err := c.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (c *cursor) f64() (float64, error) {
	v, err := c.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// builder accumulates big-endian output. Unlike cursor, writes never fail:
// it is an in-memory byte builder per spec.md section 4.1.
type builder struct {
	buf bytes.Buffer
}

func newBuilder() *builder { return &builder{} }

func (b *builder) u8(v uint8)   { b.buf.WriteByte(v) }
func (b *builder) i8(v int8)    { b.buf.WriteByte(byte(v)) }
func (b *builder) u16(v uint16) { var tmp [2]byte; binary.BigEndian.PutUint16(tmp[:], v); b.buf.Write(tmp[:]) }
func (b *builder) i16(v int16)  { b.u16(uint16(v)) }
func (b *builder) u32(v uint32) { var tmp [4]byte; binary.BigEndian.PutUint32(tmp[:], v); b.buf.Write(tmp[:]) }
func (b *builder) i32(v int32)  { b.u32(uint32(v)) }
func (b *builder) u64(v uint64) { var tmp [8]byte; binary.BigEndian.PutUint64(tmp[:], v); b.buf.Write(tmp[:]) }
func (b *builder) i64(v int64)  { b.u64(uint64(v)) }
func (b *builder) f32(v float32) { b.u32(math.Float32bits(v)) }
func (b *builder) f64(v float64) { b.u64(math.Float64bits(v)) }
func (b *builder) raw(p []byte)  { b.buf.Write(p) }
func (b *builder) Bytes() []byte { return b.buf.Bytes() }
func (b *builder) Len() int      { return b.buf.Len() }
