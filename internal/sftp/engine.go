// Package sftp implements the request/response engine of an SFTP version 3
// server: framed packet ingest, the wire and attribute codecs, the handle
// table, the READDIR streaming packer, and the mapping from host
// filesystem errors to SFTP status codes. It has no knowledge of SSH
// transport or authentication -- it is handed two already-framed
// descriptors (conventionally stdin and stdout) by its caller.
package sftp

import (
	"os"

	"github.com/jevinskie/nih-sftp-server/binp"
	"github.com/pkg/errors"
	"github.com/taruti/bytepool"
)

// DebugLogger is the narrow logging seam threaded through every handler:
// a function value, not a global logger, so the engine itself stays
// agnostic to what backs it. cmd/nih-sftp-server wires a logrus-backed
// implementation.
type DebugLogger func(format string, args ...interface{})

func noopLogger(string, ...interface{}) {}

// Engine holds every piece of process-wide singleton state: the two
// frame buffers, the handle table, and the initialized flag. Nothing
// here needs a lock -- the engine is used from exactly one goroutine for
// its entire lifetime, processing requests synchronously one at a time.
type Engine struct {
	handles     handleTable
	initialized bool
	debugf      DebugLogger

	inBuf  []byte
	outBuf []byte
}

// NewEngine allocates the engine's two fixed frame buffers via
// github.com/taruti/bytepool, a bucketed-allocation library, used once at
// construction since the buffers live for the whole process rather than
// being alloc/free'd per request. If debugf is nil, debug logging is a
// no-op.
func NewEngine(debugf DebugLogger) *Engine {
	if debugf == nil {
		debugf = noopLogger
	}
	return &Engine{
		debugf: debugf,
		inBuf:  bytepool.Alloc(maxFramePayload),
		outBuf: bytepool.Alloc(frameHeaderSize + maxFramePayload),
	}
}

// Run is the main loop: read a frame, dispatch it, write the response if
// the handler produced one, repeat. It returns nil on an orderly peer
// close at a frame boundary and a non-nil error on any fatal condition --
// cmd/nih-sftp-server turns that distinction into the process's exit
// code.
func (e *Engine) Run(in, out *os.File) (err error) {
	defer e.handles.closeAll()
	// binp's Reader/Writer panic with a *binp.FatalError on a buffer-bounds
	// violation (an oversized string length, a reply that would overflow
	// the output buffer). That's exactly the engine's "fatal" tier, so it's
	// converted here into the same returned-error path every other fatal
	// condition takes, rather than left to crash with a bare stack trace.
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*binp.FatalError); ok {
				err = errors.Wrap(fe, "fatal: wire codec")
				return
			}
			panic(r)
		}
	}()

	inFd := int(in.Fd())
	outFd := int(out.Fd())

	for {
		n, rerr := readFrame(in, inFd, e.inBuf)
		if rerr == errOrderlyEOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}

		w := binp.NewWriter(e.outBuf)
		// Reserve the length prefix; handlers write starting at offset 4.
		w.Reserve(frameHeaderSize)

		if n > 0 {
			r := binp.NewReader(e.inBuf[:n])
			if derr := e.dispatch(r, w); derr != nil {
				return errors.Wrap(derr, "fatal: dispatch")
			}
		}
		// n == 0: a zero-length packet carries no opcode byte at all and
		// is silently discarded.

		if werr := writeFrame(out, outFd, e.outBuf, w.Pos()); werr != nil {
			return werr
		}
	}
}
