package bio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteBit(1))
	require.NoError(t, w.WriteBit(0))
	require.NoError(t, w.WriteBits(0xA, 4))
	require.NoError(t, w.WriteBits(0x1FFFF, 17))
	require.NoError(t, w.Align())
	require.NoError(t, w.WriteU16(0xBEEF))
	require.NoError(t, w.WriteU32(0xCAFEF00D))

	r := NewReader(&buf)
	bit, err := r.ReadBit()
	require.NoError(t, err)
	require.Equal(t, 1, bit)

	bit, err = r.ReadBit()
	require.NoError(t, err)
	require.Equal(t, 0, bit)

	v, err := r.ReadBits(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0xA), v)

	v, err = r.ReadBits(17)
	require.NoError(t, err)
	require.Equal(t, uint32(0x1FFFF), v)

	r.Align()
	u16, err := r.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), u16)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xCAFEF00D), u32)
}

func TestAlignPadsWithZero(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteBits(0b101, 3))
	require.NoError(t, w.Align())
	require.Equal(t, []byte{0b10100000}, buf.Bytes())
}

func TestReadShortInputReturnsShortRead(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.ReadBit()
	require.ErrorIs(t, err, ErrShortRead)
}

func TestCountingWriter(t *testing.T) {
	var cw CountingWriter
	n, err := cw.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, cw.Len())
	cw.Reset()
	require.Equal(t, 0, cw.Len())
}
