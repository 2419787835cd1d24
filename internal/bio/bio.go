// Package bio provides bit-level I/O for JPEG XS precinct and packet
// payloads.
//
// Every payload in a precinct (significance, GCLI, data, sign) is packed as
// a run of bits, and the packet boundary that follows it is byte-aligned
// (spec §4.I). Reader and Writer track a partial byte exactly the way the
// teacher codec's bit I/O does; unlike JPEG 2000, JPEG XS codestreams do not
// byte-stuff 0xFF bytes inside entropy payloads, so that variant is dropped
// here (see DESIGN.md).
package bio

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrShortRead is wrapped and returned when the underlying reader runs out
// of bytes mid-field; callers translate it to a DecoderBitstreamTooShort.
var ErrShortRead = errors.New("bio: short read")

// Reader provides bit-level reading from a byte stream.
type Reader struct {
	r   io.Reader
	buf byte
	cnt uint8 // valid bits remaining in buf, held in its low cnt bits
}

// NewReader creates a new bit reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadBit reads a single bit (0 or 1).
func (r *Reader) ReadBit() (int, error) {
	if r.cnt == 0 {
		var b [1]byte
		if _, err := io.ReadFull(r.r, b[:]); err != nil {
			return 0, errors.Wrap(ErrShortRead, err.Error())
		}
		r.buf = b[0]
		r.cnt = 8
	}
	r.cnt--
	return int((r.buf >> r.cnt) & 1), nil
}

// ReadBits reads n bits (0-32), MSB first, and returns them right-aligned.
func (r *Reader) ReadBits(n uint) (uint32, error) {
	var result uint32
	for i := uint(0); i < n; i++ {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		result = (result << 1) | uint32(bit)
	}
	return result, nil
}

// Align discards any remaining bits in the current byte so the next read
// starts at a byte boundary.
func (r *Reader) Align() {
	r.cnt = 0
}

// ReadByte reads a single aligned byte.
func (r *Reader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, errors.Wrap(ErrShortRead, err.Error())
	}
	return b[0], nil
}

// ReadU16 reads a big-endian uint16 from an aligned position.
func (r *Reader) ReadU16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, errors.Wrap(ErrShortRead, err.Error())
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// ReadU32 reads a big-endian uint32 from an aligned position.
func (r *Reader) ReadU32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, errors.Wrap(ErrShortRead, err.Error())
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// Writer provides bit-level writing to a byte stream.
type Writer struct {
	w   io.Writer
	buf byte
	cnt uint8
}

// NewWriter creates a new bit writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteBit writes a single bit.
func (w *Writer) WriteBit(bit int) error {
	w.buf = (w.buf << 1) | byte(bit&1)
	w.cnt++
	if w.cnt == 8 {
		return w.flushByte()
	}
	return nil
}

// WriteBits writes the low n bits of val, MSB first.
func (w *Writer) WriteBits(val uint32, n uint) error {
	for i := n; i > 0; i-- {
		if err := w.WriteBit(int((val >> (i - 1)) & 1)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) flushByte() error {
	b := [1]byte{w.buf}
	_, err := w.w.Write(b[:])
	w.buf, w.cnt = 0, 0
	return err
}

// Align zero-pads and flushes any partial byte.
func (w *Writer) Align() error {
	if w.cnt == 0 {
		return nil
	}
	w.buf <<= 8 - w.cnt
	w.cnt = 8
	return w.flushByte()
}

// WriteByte writes a single aligned byte; the caller must Align() first.
func (w *Writer) WriteByte(b byte) error {
	_, err := w.w.Write([]byte{b})
	return err
}

// WriteU16 writes a big-endian uint16 at an aligned position.
func (w *Writer) WriteU16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.w.Write(b[:])
	return err
}

// WriteU32 writes a big-endian uint32 at an aligned position.
func (w *Writer) WriteU32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.w.Write(b[:])
	return err
}

// CountingWriter discards bytes but counts them, so rate control can size a
// candidate (Q, R) encoding without materializing it.
type CountingWriter struct {
	n int
}

// Write implements io.Writer, discarding p but counting its length.
func (c *CountingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

// Len returns the number of bytes written so far.
func (c *CountingWriter) Len() int { return c.n }

// Reset zeroes the counter for reuse across rate-control probes.
func (c *CountingWriter) Reset() { c.n = 0 }
