package sftp

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFrameThenReadFrameRoundTrip(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	outBuf := make([]byte, frameHeaderSize+16)
	copy(outBuf[frameHeaderSize:], []byte("hello payload!!!"))
	n := frameHeaderSize + len("hello payload!!!")
	require.NoError(t, writeFrame(w, int(w.Fd()), outBuf, n))

	inBuf := make([]byte, 1024)
	got, err := readFrame(r, int(r.Fd()), inBuf)
	require.NoError(t, err)
	require.Equal(t, len("hello payload!!!"), got)
	require.Equal(t, "hello payload!!!", string(inBuf[:got]))
}

func TestWriteFrameWithNoPayloadWritesNothing(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	outBuf := make([]byte, frameHeaderSize)
	require.NoError(t, writeFrame(w, int(w.Fd()), outBuf, frameHeaderSize))
	require.NoError(t, w.Close())

	inBuf := make([]byte, 64)
	_, err = readFrame(r, int(r.Fd()), inBuf)
	require.Equal(t, errOrderlyEOF, err)
}

func TestReadFrameOrderlyEOF(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, w.Close())

	inBuf := make([]byte, 64)
	_, err = readFrame(r, int(r.Fd()), inBuf)
	require.Equal(t, errOrderlyEOF, err)
}

func TestReadFrameOversizeIsFatal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	var hdr [4]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = 0, 1, 0, 0 // 65536, larger than cap(inBuf)
	go func() { _, _ = w.Write(hdr[:]) }()

	inBuf := make([]byte, 64)
	_, err = readFrame(r, int(r.Fd()), inBuf)
	require.Error(t, err)
}
