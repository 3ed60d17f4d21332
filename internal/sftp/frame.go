package sftp

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// maxFramePayload is the maximum SFTP v3 packet payload this server
// accepts or emits: 34,000 bytes, the minimum a v3 server SHOULD support
// per the draft.
const maxFramePayload = 34000

// frameHeaderSize is the 4-byte big-endian length prefix of every frame.
const frameHeaderSize = 4

// waitReadable and waitWritable wait for readiness before every blocking
// read/write, so a descriptor the parent process left non-blocking
// doesn't turn a read/write into a busy spin. golang.org/x/sys/unix.Poll
// is the same low-level POSIX wrapper bramburn-gnssgo and restic depend
// on directly elsewhere in the pack.
func waitReadable(fd int) error { return pollWait(fd, unix.POLLIN) }
func waitWritable(fd int) error { return pollWait(fd, unix.POLLOUT) }

func pollWait(fd int, events int16) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "poll")
		}
		if n > 0 {
			return nil
		}
	}
}

// errOrderlyEOF signals a clean end-of-stream at a frame boundary: the
// main loop treats this as a successful exit (status 0), distinct from
// every other read failure, which is fatal.
var errOrderlyEOF = errors.New("orderly end of stream")

// readFrame reads one length-prefixed frame from r into buf[:n] and
// returns n, the payload length. A frame whose declared length exceeds
// cap(buf) is fatal: the caller's buffer capacity is a hard precondition,
// not merely advisory. A zero-byte read before any byte of the length
// header is reported as errOrderlyEOF; a short read anywhere else is
// fatal.
func readFrame(r *os.File, fd int, buf []byte) (int, error) {
	var hdr [frameHeaderSize]byte
	if err := waitReadable(fd); err != nil {
		return 0, errors.Wrap(err, "fatal: readiness wait on input descriptor")
	}
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && (err == io.EOF) {
			return 0, errOrderlyEOF
		}
		return 0, errors.Wrap(err, "fatal: reading frame length header")
	}
	length := int(binary.BigEndian.Uint32(hdr[:]))
	if length > cap(buf) {
		return 0, errors.Errorf("fatal: frame length %d exceeds buffer capacity %d", length, cap(buf))
	}
	if length == 0 {
		return 0, nil
	}
	if err := waitReadable(fd); err != nil {
		return 0, errors.Wrap(err, "fatal: readiness wait on input descriptor")
	}
	if _, err := io.ReadFull(r, buf[:length]); err != nil {
		return 0, errors.Wrap(err, "fatal: reading frame payload")
	}
	return length, nil
}

// writeFrame back-patches buf[0:4] with n-4 and writes buf[:n] to w in a
// readiness-waited loop until fully drained. If n == frameHeaderSize (the
// handler produced no reply, e.g. a zero-length input packet was
// silently discarded), nothing is written at all.
func writeFrame(w *os.File, fd int, buf []byte, n int) error {
	if n <= frameHeaderSize {
		return nil
	}
	binary.BigEndian.PutUint32(buf[0:frameHeaderSize], uint32(n-frameHeaderSize))
	total := 0
	for total < n {
		if err := waitWritable(fd); err != nil {
			return errors.Wrap(err, "fatal: readiness wait on output descriptor")
		}
		m, err := w.Write(buf[total:n])
		if err != nil {
			return errors.Wrap(err, "fatal: writing frame")
		}
		total += m
	}
	return nil
}
