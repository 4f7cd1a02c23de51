package classfile

import (
	"encoding/binary"

	"github.com/daimatz/minijvm/pkg/vmerr"
)

// Cursor is a bounds-checked, forward-only reader over an immutable byte
// buffer. Slices it returns alias the buffer; callers must not modify them.
// A failed read never advances the position.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor creates a Cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the length of the underlying buffer.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// AtEnd reports whether every byte has been consumed.
func (c *Cursor) AtEnd() bool { return c.pos == len(c.buf) }

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > len(c.buf)-c.pos {
		return nil, vmerr.OutOfBounds(vmerr.PhaseDecode, c.pos, n, len(c.buf))
	}
	b := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// Read returns a copy of the next n bytes and advances past them.
func (c *Cursor) Read(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Skip advances past n bytes and returns a view of them without copying.
// It is used for payloads that live on as part of a decoded structure.
func (c *Cursor) Skip(n int) ([]byte, error) {
	return c.take(n)
}

// ReadU1 reads one unsigned byte.
func (c *Cursor) ReadU1() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU2 reads a big-endian uint16.
func (c *Cursor) ReadU2() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU4 reads a big-endian uint32.
func (c *Cursor) ReadU4() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
