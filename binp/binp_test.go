package binp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndianness(t *testing.T) {
	buf := make([]byte, 4)
	w := NewWriter(buf)
	w.PutU32(0x29B7F4AA)
	require.Equal(t, []byte{0x29, 0xB7, 0xF4, 0xAA}, buf)
}

func TestRoundTripPrimitives(t *testing.T) {
	buf := make([]byte, 64)
	w := NewWriter(buf)
	w.PutByte(0x7F).PutU32(0xDEADBEEF).PutU64(0x0102030405060708).PutString("hello")
	r := NewReader(w.Bytes())
	require.Equal(t, byte(0x7F), r.GetByte())
	require.Equal(t, uint32(0xDEADBEEF), r.GetU32())
	require.Equal(t, uint64(0x0102030405060708), r.GetU64())
	require.Equal(t, "hello", r.GetCString())
	require.True(t, r.End())
}

func TestGetDataRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	w.PutRaw([]byte{1, 2, 3, 4, 5})
	r := NewReader(w.Bytes())
	got := r.GetData(5)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, got)
	require.True(t, r.End())
}

func TestGetStringRelocatesAndNulTerminates(t *testing.T) {
	buf := make([]byte, 32)
	w := NewWriter(buf)
	w.PutU32(1).PutString("/tmp/a")
	r := NewReader(w.Bytes())
	require.Equal(t, uint32(1), r.GetU32())
	raw := r.GetPathCString()
	require.Equal(t, "/tmp/a", string(raw[:len(raw)-1]))
	require.Equal(t, byte(0), raw[len(raw)-1])
}

func TestOverreadIsFatal(t *testing.T) {
	buf := make([]byte, 2)
	r := NewReader(buf)
	require.Panics(t, func() { r.GetU32() })
}

func TestOverwriteIsFatal(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	require.Panics(t, func() { w.PutU32(1) })
}

func TestStringLengthExceedingRemainingIsFatal(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	w.PutU32(100) // declares a length far beyond what's left
	r := NewReader(w.Bytes())
	require.Panics(t, func() { r.GetCString() })
}

func TestPutU32AtBackPatchesLength(t *testing.T) {
	buf := make([]byte, 64)
	w := NewWriter(buf)
	w.PutU32(0) // placeholder length
	lenPos := 0
	w.PutByte(1).PutU32(42)
	w.PutU32At(lenPos, uint32(w.Pos()-4))
	r := NewReader(w.Bytes())
	l := r.GetU32()
	require.Equal(t, uint32(w.Pos()-4), l)
}

func TestSwapCursorRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	w := NewWriter(buf)
	w.PutByte(1).PutByte(2)
	saved := w.SaveCursor()
	w.PutByte(3).PutByte(4)
	w.SwapCursor(&saved)
	require.Equal(t, 2, w.Pos())
	w.SwapCursor(&saved)
	require.Equal(t, 4, w.Pos())
}

func TestRestoreDiscardsPartialWrite(t *testing.T) {
	buf := make([]byte, 32)
	w := NewWriter(buf)
	w.PutByte(1).PutByte(2)
	saved := w.SaveCursor()
	w.PutByte(3).PutByte(4).PutByte(5)
	w.Restore(saved)
	require.Equal(t, 2, w.Pos())
}

func TestReserveGivesDirectWriteView(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	dst := w.Reserve(4)
	copy(dst, []byte{9, 9, 9, 9})
	require.Equal(t, []byte{9, 9, 9, 9}, w.Bytes())
}
